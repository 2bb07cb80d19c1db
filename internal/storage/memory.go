// internal/storage/memory.go
package storage

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// MemoryStore keeps accounts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[solana.PublicKey]*Account)}
}

// Get returns a copy of the stored account.
func (s *MemoryStore) Get(ctx context.Context, address solana.PublicKey) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[address]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

// Commit replaces all accounts of the set under a single write lock.
func (s *MemoryStore) Commit(ctx context.Context, writes map[solana.PublicKey]*Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for address, acc := range writes {
		s.accounts[address] = acc.Clone()
	}
	return nil
}

// Len returns the number of stored accounts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
