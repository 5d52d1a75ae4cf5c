package ledgerstate

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

// State is the persisted document of one ledger. Amounts are JSON numbers written
// from exact decimal strings so nothing is lost through float64.
type State struct {
	Wallet         json.Number              `json:"wallet"`
	Holdings       map[string]StoredHolding `json:"holdings"`
	History        []StoredTransaction      `json:"history"`
	RealizedProfit json.Number              `json:"realized_profit"`
}

// StoredHolding is a serializable snapshot of domain.Holding.
type StoredHolding struct {
	Quantity json.Number `json:"quantity"`
	AvgPrice json.Number `json:"avg_price"`
}

// StoredTransaction is a serializable snapshot of domain.Transaction.
type StoredTransaction struct {
	ID        string        `json:"id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Action    domain.Action `json:"action"`
	AssetID   string        `json:"asset_id"`
	Quantity  json.Number   `json:"quantity"`
	Price     json.Number   `json:"price"`
	Profit    *json.Number  `json:"profit,omitempty"`
}

// NewState converts a ledger into its stored representation.
func NewState(l domain.Ledger) State {
	state := State{
		Wallet:         number(l.Wallet),
		Holdings:       make(map[string]StoredHolding, len(l.Holdings)),
		History:        make([]StoredTransaction, 0, len(l.History)),
		RealizedProfit: number(l.RealizedProfit),
	}
	for id, h := range l.Holdings {
		state.Holdings[id] = StoredHolding{Quantity: number(h.Quantity), AvgPrice: number(h.AvgPrice)}
	}
	for _, tx := range l.History {
		stored := StoredTransaction{
			ID:        tx.ID,
			Timestamp: tx.Timestamp.UTC(),
			Action:    tx.Action,
			AssetID:   tx.AssetID,
			Quantity:  number(tx.Quantity),
			Price:     number(tx.Price),
		}
		if tx.Profit.Valid {
			profit := number(tx.Profit.Decimal)
			stored.Profit = &profit
		}
		state.History = append(state.History, stored)
	}
	return state
}

// ToLedger reconstructs and validates a ledger from stored data.
func (s State) ToLedger() (domain.Ledger, error) {
	wallet, err := parse(s.Wallet, "wallet")
	if err != nil {
		return domain.Ledger{}, err
	}
	realized, err := parse(s.RealizedProfit, "realized profit")
	if err != nil {
		return domain.Ledger{}, err
	}

	l := domain.Ledger{
		Wallet:         wallet,
		Holdings:       make(map[string]domain.Holding, len(s.Holdings)),
		History:        make([]domain.Transaction, 0, len(s.History)),
		RealizedProfit: realized,
	}

	for id, sh := range s.Holdings {
		qty, err := parse(sh.Quantity, id+" quantity")
		if err != nil {
			return domain.Ledger{}, err
		}
		avg, err := parse(sh.AvgPrice, id+" average price")
		if err != nil {
			return domain.Ledger{}, err
		}
		l.Holdings[id] = domain.Holding{Quantity: qty, AvgPrice: avg}
	}

	for i, st := range s.History {
		qty, err := parse(st.Quantity, "transaction quantity")
		if err != nil {
			return domain.Ledger{}, errors.Wrapf(err, "transaction %d", i)
		}
		price, err := parse(st.Price, "transaction price")
		if err != nil {
			return domain.Ledger{}, errors.Wrapf(err, "transaction %d", i)
		}
		tx := domain.Transaction{
			ID:        st.ID,
			Timestamp: st.Timestamp.UTC(),
			Action:    st.Action,
			AssetID:   st.AssetID,
			Quantity:  qty,
			Price:     price,
		}
		if st.Profit != nil {
			profit, err := parse(*st.Profit, "transaction profit")
			if err != nil {
				return domain.Ledger{}, errors.Wrapf(err, "transaction %d", i)
			}
			tx.Profit = decimal.NewNullDecimal(profit)
		}
		l.History = append(l.History, tx)
	}

	if err := l.Validate(); err != nil {
		return domain.Ledger{}, errors.Wrap(err, "invalid ledger state")
	}

	return l, nil
}

func encodeLedger(l domain.Ledger) ([]byte, error) {
	payload, err := json.MarshalIndent(NewState(l), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode ledger state")
	}
	return payload, nil
}

func decodeLedger(payload []byte) (domain.Ledger, error) {
	var state *State
	if err := json.Unmarshal(payload, &state); err != nil {
		return domain.Ledger{}, errors.Wrap(err, "decode ledger state")
	}
	if state == nil {
		return domain.Ledger{}, errors.New("decode ledger state: document is null")
	}
	return state.ToLedger()
}

func number(v decimal.Decimal) json.Number {
	return json.Number(v.String())
}

// parse requires n to be present; a missing amount means a corrupt record, not zero.
func parse(n json.Number, field string) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, errors.Errorf("decode %s: missing", field)
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "decode %s", field)
	}
	return v, nil
}
