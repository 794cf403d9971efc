// Package accounts provides the read-only account store consulted by the chat dispatcher.
//
// Records keep their insertion order so that substring scans over account numbers
// resolve ties the same way on every run.
package accounts

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/BTreeMap/CardDesk/internal/models"
)

// Store is an immutable, ordered mapping from account number to record.
// It is safe for concurrent use once constructed.
type Store struct {
	keys    []string
	records map[string]models.AccountRecord
}

// NewStore builds a Store from records in the given order.
// Every record must validate and account numbers must be unique.
func NewStore(records ...models.AccountRecord) (*Store, error) {
	s := &Store{
		keys:    make([]string, 0, len(records)),
		records: make(map[string]models.AccountRecord, len(records)),
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid account record %q: %w", r.AccountNo, err)
		}
		if _, dup := s.records[r.AccountNo]; dup {
			return nil, fmt.Errorf("duplicate account number %q", r.AccountNo)
		}
		s.keys = append(s.keys, r.AccountNo)
		s.records[r.AccountNo] = r
	}
	slog.Debug("accounts.NewStore: store built", "count", len(s.keys))
	return s, nil
}

// Get returns the record for accountNo.
func (s *Store) Get(accountNo string) (models.AccountRecord, bool) {
	r, ok := s.records[accountNo]
	return r, ok
}

// Keys returns the account numbers in insertion order.
func (s *Store) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// All returns the records in insertion order.
func (s *Store) All() []models.AccountRecord {
	out := make([]models.AccountRecord, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.records[k])
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.keys)
}

// LastN returns the last n runes of s, or s itself when it is shorter.
func LastN(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	r := []rune(s)
	return string(r[count-n:])
}

// MaskCard masks a card number down to its last four characters.
func MaskCard(card string) string {
	return "****-****-****-" + LastN(card, 4)
}

// MaskPhone masks a phone number down to its last three digits.
func MaskPhone(phone string) string {
	return "*******" + LastN(phone, 3)
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
