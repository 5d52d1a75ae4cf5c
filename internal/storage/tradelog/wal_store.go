// Package tradelog journals executed transactions of all users in a WAL so the
// dashboard can stream them and resume from a known index.
package tradelog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

const (
	defaultJournalDir   = "./wal/trades"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	tradeKeyPrefix      = "trade_"
)

// Entry is the journaled form of one transaction.
type Entry struct {
	User      string        `json:"user"`
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"ts"`
	Action    domain.Action `json:"action"`
	AssetID   string        `json:"asset_id"`
	Quantity  string        `json:"quantity"`
	Price     string        `json:"price"`
	Profit    string        `json:"profit,omitempty"`
	Wallet    string        `json:"wallet"`
}

// NewEntry builds a journal entry for tx executed by user, with wallet being the balance after it.
func NewEntry(user string, tx domain.Transaction, wallet string) Entry {
	e := Entry{
		User:      user,
		ID:        tx.ID,
		Timestamp: tx.Timestamp.UTC(),
		Action:    tx.Action,
		AssetID:   tx.AssetID,
		Quantity:  tx.Quantity.String(),
		Price:     tx.Price.String(),
		Wallet:    wallet,
	}
	if tx.Profit.Valid {
		e.Profit = tx.Profit.Decimal.String()
	}
	return e
}

// Record bundles an entry with its WAL index.
type Record struct {
	Index uint64
	Entry Entry
}

// WALStore persists trade entries in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed trade journal under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "trades_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes the entry to the WAL.
func (s *WALStore) Append(entry Entry) error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}
	if entry.User == "" {
		return errors.New("trade journal entry user is required")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal trade entry")
	}

	key := fmt.Sprintf("%s%s", tradeKeyPrefix, entry.User)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// RecordsAfter returns all entries written after the provided WAL index.
func (s *WALStore) RecordsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trade journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, tradeKeyPrefix) {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, errors.Wrap(err, "decode trade entry")
		}
		records = append(records, Record{Index: idx, Entry: entry})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
