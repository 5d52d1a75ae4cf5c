// Package ledgerstate persists per-user ledgers.
package ledgerstate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

const (
	defaultStateDir = "./data/ledgers"
	stateDirEnv     = "PAPERTRADE_DATA_DIR"
)

// FileStore keeps one JSON document per user so restarts keep balances, holdings and history.
type FileStore struct {
	dir string
}

// StateDir returns dir, the PAPERTRADE_DATA_DIR environment variable or the default, in that order.
func StateDir(dir string) string {
	if dir != "" {
		return dir
	}
	if stateDir := os.Getenv(stateDirEnv); stateDir != "" {
		return stateDir
	}
	return defaultStateDir
}

// NewFileStore creates a ledger store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	dir = StateDir(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create ledger state dir")
	}

	return &FileStore{dir: dir}, nil
}

// Path returns the file backing the ledger of key.
func (s *FileStore) Path(key string) (string, error) {
	name, err := RecordName(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", name)), nil
}

// Load reads the ledger of key, returning a default ledger when none was saved yet.
func (s *FileStore) Load(_ context.Context, key string) (domain.Ledger, error) {
	path, err := s.Path(key)
	if err != nil {
		return domain.Ledger{}, domain.NewPersistenceError("load", key, err)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewLedger(), nil
		}

		return domain.Ledger{}, domain.NewPersistenceError("load", key, errors.Wrap(err, "read ledger state"))
	}

	if len(payload) == 0 {
		return domain.NewLedger(), nil
	}

	l, err := decodeLedger(payload)
	if err != nil {
		return domain.Ledger{}, domain.NewPersistenceError("load", key, err)
	}

	return l, nil
}

// Save writes the ledger of key atomically: a temp file in the same directory is
// synced and then renamed over the previous state.
func (s *FileStore) Save(_ context.Context, key string, l domain.Ledger) error {
	path, err := s.Path(key)
	if err != nil {
		return domain.NewPersistenceError("save", key, err)
	}

	payload, err := encodeLedger(l)
	if err != nil {
		return domain.NewPersistenceError("save", key, err)
	}

	if err := writeAtomic(path, payload); err != nil {
		return domain.NewPersistenceError("save", key, err)
	}

	return nil
}

func writeAtomic(path string, payload []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create ledger state temp file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write ledger state temp file")
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync ledger state temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close ledger state temp file")
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "chmod ledger state temp file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "persist ledger state")
	}

	return nil
}
