// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrAccountNotFound is returned when no account exists at the requested address.
var ErrAccountNotFound = errors.New("account not found")

// Account is a raw account as kept by the store: the owning program and its data.
type Account struct {
	Owner solana.PublicKey
	Data  []byte
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return &Account{Owner: a.Owner, Data: data}
}

// Store определяет интерфейс для работы с хранилищем аккаунтов
type Store interface {
	// Get returns a copy of the account or ErrAccountNotFound.
	Get(ctx context.Context, address solana.PublicKey) (*Account, error)

	// Commit writes every account of the set or none of them.
	Commit(ctx context.Context, writes map[solana.PublicKey]*Account) error

	Close() error
}
