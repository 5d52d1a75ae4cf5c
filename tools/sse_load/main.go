// Command sse_load opens many concurrent subscriptions to the dashboard trade stream
// and reports connection and event counters.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	reconnects  atomic.Int64
	trades      atomic.Int64
	heartbeats  atomic.Int64
}

func (c *counters) fields() []zap.Field {
	return []zap.Field{
		zap.Int64("connected", c.connected.Load()),
		zap.Int64("connect_errs", c.connectErrs.Load()),
		zap.Int64("stream_errs", c.streamErrs.Load()),
		zap.Int64("reconnects", c.reconnects.Load()),
		zap.Int64("trades", c.trades.Load()),
		zap.Int64("heartbeats", c.heartbeats.Load()),
	}
}

type lineKind int

const (
	lineOther lineKind = iota
	lineHeartbeat
	lineID
	lineTrade
)

// classify recognizes the lines of the trade stream that matter for counting.
func classify(line string) (lineKind, string) {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.HasPrefix(line, ":"):
		return lineHeartbeat, ""
	case strings.HasPrefix(line, "id: "):
		return lineID, strings.TrimPrefix(line, "id: ")
	case line == "event: trade":
		return lineTrade, ""
	}
	return lineOther, ""
}

// subscriber keeps one stream open, resuming from the last seen id after a drop.
type subscriber struct {
	client    *http.Client
	url       string
	reconnect bool
	stats     *counters
}

func (s *subscriber) run(ctx context.Context) {
	lastID := ""
	for first := true; ctx.Err() == nil; first = false {
		if !first {
			if !s.reconnect {
				return
			}
			s.stats.reconnects.Add(1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}

		id, err := s.stream(ctx, lastID)
		if id != "" {
			lastID = id
		}
		if err != nil && ctx.Err() == nil {
			s.stats.streamErrs.Add(1)
		}
	}
}

func (s *subscriber) stream(ctx context.Context, lastID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		s.stats.connectErrs.Add(1)
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.stats.connectErrs.Add(1)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.stats.connectErrs.Add(1)
		return "", errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	s.stats.connected.Add(1)
	defer s.stats.connected.Add(-1)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return lastID, err
		}

		kind, value := classify(line)
		switch kind {
		case lineHeartbeat:
			s.stats.heartbeats.Add(1)
		case lineID:
			lastID = value
		case lineTrade:
			s.stats.trades.Add(1)
		}
	}
}

func main() {
	var (
		targetURL    string
		user         string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
		reconnect    bool
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/trades/stream", "trade stream URL")
	flag.StringVar(&user, "user", "", "limit the stream to one ledger")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent connections to open")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "ramp-up duration (spread connection starts across this window)")
	flag.BoolVar(&reconnect, "reconnect", true, "resume dropped streams with Last-Event-ID")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	if connections <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", connections))
	}
	if user != "" {
		sep := "?"
		if strings.Contains(targetURL, "?") {
			sep = "&"
		}
		targetURL += sep + "user=" + user
	}

	if rampUp == 0 && connections > 100 {
		// 1 second per 500 connections
		rampUp = time.Duration(connections/500) * time.Second
		if rampUp < time.Second {
			rampUp = time.Second
		}
	}

	logger.Info("starting trade stream load",
		zap.String("url", targetURL),
		zap.Int("conns", connections),
		zap.Duration("duration", testDuration),
		zap.Duration("ramp", rampUp))

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	stats := &counters{}
	start := time.Now()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("status", append(stats.fields(), zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))...)
			}
		}
	}()

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	var wg sync.WaitGroup
	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := &subscriber{client: client, url: targetURL, reconnect: reconnect, stats: stats}
			sub.run(ctx)
		}()
	}

	wg.Wait()

	elapsed := time.Since(start)
	if elapsed == 0 {
		elapsed = time.Millisecond
	}
	fmt.Printf("done: connect_errs=%d stream_errs=%d reconnects=%d trades=%d heartbeats=%d elapsed=%s trades/s=%.2f\n",
		stats.connectErrs.Load(),
		stats.streamErrs.Load(),
		stats.reconnects.Load(),
		stats.trades.Load(),
		stats.heartbeats.Load(),
		elapsed.Truncate(time.Millisecond),
		float64(stats.trades.Load())/elapsed.Seconds(),
	)
}
