package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// RevocationStore is a TTL-aware set of raw token strings.
type RevocationStore interface {
	// Add marks token revoked until expiresAt.
	Add(ctx context.Context, token string, expiresAt time.Time) error
	// Contains reports whether token is revoked and not yet past its expiry.
	Contains(ctx context.Context, token string) (bool, error)
	Close() error
}

// MemoryRevocationStore keeps the set in process memory. It only works for a
// single instance and grows until lookups prune expired entries; there is no
// background sweep.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryRevocationStore) Add(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[token] = expiresAt
	return nil
}

// Contains evicts an expired entry it finds and reports it as not revoked:
// an expired token is already invalid.
func (s *MemoryRevocationStore) Contains(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, found := s.entries[token]
	if !found {
		return false, nil
	}
	if !s.now().Before(expiresAt) {
		delete(s.entries, token)
		return false, nil
	}
	return true, nil
}

// Len returns the number of entries, expired ones included.
func (s *MemoryRevocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryRevocationStore) Close() error {
	return nil
}

const revokedKeyPrefix = "revoked:"

// BadgerRevocationStore persists the set in BadgerDB so it survives restarts.
// Entries carry a TTL equal to the token's remaining lifetime.
type BadgerRevocationStore struct {
	db *badger.DB
}

// OpenBadgerRevocationStore opens (or creates) a store at path.
func OpenBadgerRevocationStore(path string) (*BadgerRevocationStore, error) {
	const op = "auth.OpenBadgerRevocationStore"

	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewBadgerRevocationStore(db), nil
}

func NewBadgerRevocationStore(db *badger.DB) *BadgerRevocationStore {
	return &BadgerRevocationStore{db: db}
}

func (s *BadgerRevocationStore) key(token string) []byte {
	return []byte(revokedKeyPrefix + token)
}

func (s *BadgerRevocationStore) Add(_ context.Context, token string, expiresAt time.Time) error {
	const op = "auth.BadgerRevocationStore.Add"

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	value := []byte(strconv.FormatInt(expiresAt.Unix(), 10))
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(s.key(token), value).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *BadgerRevocationStore) Contains(_ context.Context, token string) (bool, error) {
	const op = "auth.BadgerRevocationStore.Contains"

	var revoked bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			expiresAt, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return err
			}
			revoked = time.Now().Unix() < expiresAt
			return nil
		})
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return revoked, nil
}

func (s *BadgerRevocationStore) Close() error {
	return s.db.Close()
}
