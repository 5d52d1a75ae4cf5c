package ledgerstate

import (
	"context"
	"sync"

	"github.com/vadiminshakov/papertrade/internal/domain"
)

// MemoryStore keeps encoded ledgers in memory. Suitable for tests and throwaway sessions.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (domain.Ledger, error) {
	name, err := RecordName(key)
	if err != nil {
		return domain.Ledger{}, domain.NewPersistenceError("load", key, err)
	}

	s.mu.RLock()
	payload, ok := s.records[name]
	s.mu.RUnlock()
	if !ok {
		return domain.NewLedger(), nil
	}

	l, err := decodeLedger(payload)
	if err != nil {
		return domain.Ledger{}, domain.NewPersistenceError("load", key, err)
	}
	return l, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, l domain.Ledger) error {
	name, err := RecordName(key)
	if err != nil {
		return domain.NewPersistenceError("save", key, err)
	}

	payload, err := encodeLedger(l)
	if err != nil {
		return domain.NewPersistenceError("save", key, err)
	}

	s.mu.Lock()
	s.records[name] = payload
	s.mu.Unlock()
	return nil
}
