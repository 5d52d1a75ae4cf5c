package web

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/marketdata"
	"github.com/vadiminshakov/papertrade/internal/session"
)

const maxHistoryDays = 365

type holdingResponse struct {
	AssetID       string           `json:"asset_id"`
	Quantity      decimal.Decimal  `json:"quantity"`
	AvgPrice      decimal.Decimal  `json:"avg_price"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl,omitempty"`
}

type transactionResponse struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Action    domain.Action    `json:"action"`
	AssetID   string           `json:"asset_id"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	Profit    *decimal.Decimal `json:"profit,omitempty"`
}

type ledgerResponse struct {
	User           string                `json:"user"`
	Wallet         decimal.Decimal       `json:"wallet"`
	RealizedProfit decimal.Decimal       `json:"realized_profit"`
	Equity         decimal.Decimal       `json:"equity"`
	Holdings       []holdingResponse     `json:"holdings"`
	Recent         []transactionResponse `json:"recent"`
}

type tradeRequest struct {
	Action   string          `json:"action"`
	AssetID  string          `json:"asset_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

type tradeResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Wallet      decimal.Decimal     `json:"wallet"`
	Holding     *holdingResponse    `json:"holding,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.View(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLedgerResponse(view))
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	action, err := domain.ParseAction(req.Action)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	qty, err := session.ParseQuantity(req.Quantity.String())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.svc.Trade(r.Context(), chi.URLParam(r, "user"), action, req.AssetID, qty)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp := tradeResponse{
		Transaction: newTransactionResponse(res.Transaction),
		Wallet:      res.Ledger.Wallet,
	}
	if h, ok := res.Ledger.Holding(res.Transaction.AssetID); ok {
		resp.Holding = &holdingResponse{AssetID: res.Transaction.AssetID, Quantity: h.Quantity, AvgPrice: h.AvgPrice}
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Assets(r.Context()))
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	id := marketdata.NormalizeID(chi.URLParam(r, "assetID"))
	price, err := s.svc.Quote(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"asset_id": id, "price": price})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days := s.historyDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryDays {
			writeError(w, "days must be between 1 and 365", http.StatusBadRequest)
			return
		}
		days = n
	}

	writeJSON(w, http.StatusOK, s.svc.History(r.Context(), chi.URLParam(r, "assetID"), days))
}

// writeServiceError maps session errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var perr *domain.PersistenceError

	switch {
	case domain.IsBusinessError(err):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidOrder):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrPriceUnavailable):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &perr):
		s.logger.Error("ledger persistence failed", zap.Error(err))
		writeError(w, "ledger storage unavailable", http.StatusInternalServerError)
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func newLedgerResponse(view session.View) ledgerResponse {
	resp := ledgerResponse{
		User:           view.User,
		Wallet:         view.Ledger.Wallet,
		RealizedProfit: view.Ledger.RealizedProfit,
		Equity:         view.Equity,
		Holdings:       make([]holdingResponse, 0, len(view.Ledger.Holdings)),
		Recent:         make([]transactionResponse, 0, len(view.Recent)),
	}

	for id, h := range view.Ledger.Holdings {
		hr := holdingResponse{AssetID: id, Quantity: h.Quantity, AvgPrice: h.AvgPrice}
		if price, ok := view.Prices[id]; ok {
			pnl := h.UnrealizedPnL(price)
			hr.Price = &price
			hr.UnrealizedPnL = &pnl
		}
		resp.Holdings = append(resp.Holdings, hr)
	}
	sort.Slice(resp.Holdings, func(i, j int) bool {
		return resp.Holdings[i].AssetID < resp.Holdings[j].AssetID
	})

	for _, tx := range view.Recent {
		resp.Recent = append(resp.Recent, newTransactionResponse(tx))
	}

	return resp
}

func newTransactionResponse(tx domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:        tx.ID,
		Timestamp: tx.Timestamp.UTC(),
		Action:    tx.Action,
		AssetID:   tx.AssetID,
		Quantity:  tx.Quantity,
		Price:     tx.Price,
	}
	if tx.Profit.Valid {
		profit := tx.Profit.Decimal
		resp.Profit = &profit
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{Error: message})
}
