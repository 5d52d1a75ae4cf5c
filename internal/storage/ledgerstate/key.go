package ledgerstate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

const (
	maxSlugLen   = 32
	keyHashBytes = 8
	fallbackSlug = "user"
)

// ErrEmptyKey is returned for a blank user key.
var ErrEmptyKey = errors.New("user key is empty")

// NormalizeKey trims surrounding whitespace. Distinct normalized keys own distinct ledgers.
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}

// RecordName maps a user key to the name of its record: a readable slug followed by
// a hash of the exact normalized key, so keys that slug alike ("alice.smith",
// "alice_smith", "Alice Smith") never share a record.
func RecordName(key string) (string, error) {
	key = NormalizeKey(key)
	if key == "" {
		return "", ErrEmptyKey
	}

	sum := sha256.Sum256([]byte(key))
	return slug(key) + "-" + hex.EncodeToString(sum[:keyHashBytes]), nil
}

// slug lowercases value and collapses everything except [a-z0-9] into single underscores.
func slug(value string) string {
	var b strings.Builder

	prevUnderscore := false

	for _, r := range strings.ToLower(value) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)

			prevUnderscore = false

			continue
		}

		if !prevUnderscore {
			b.WriteByte('_')

			prevUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "_")
	if len(out) > maxSlugLen {
		out = strings.TrimRight(out[:maxSlugLen], "_")
	}
	if out == "" {
		return fallbackSlug
	}
	return out
}
