// internal/runtime/overlay.go
package runtime

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-amm/internal/storage"
)

// overlay is the copy-on-write view of the store seen by one transaction.
// Nothing reaches the store until changes() is committed.
type overlay struct {
	ctx    context.Context
	store  storage.Store
	loaded map[solana.PublicKey]*storage.Account // nil value: known to be absent
	dirty  map[solana.PublicKey]struct{}
}

func newOverlay(ctx context.Context, store storage.Store) *overlay {
	return &overlay{
		ctx:    ctx,
		store:  store,
		loaded: make(map[solana.PublicKey]*storage.Account),
		dirty:  make(map[solana.PublicKey]struct{}),
	}
}

func (o *overlay) get(address solana.PublicKey) (*storage.Account, error) {
	if acc, ok := o.loaded[address]; ok {
		if acc == nil {
			return nil, storage.ErrAccountNotFound
		}
		return acc, nil
	}

	acc, err := o.store.Get(o.ctx, address)
	if errors.Is(err, storage.ErrAccountNotFound) {
		o.loaded[address] = nil
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	o.loaded[address] = acc
	return acc, nil
}

func (o *overlay) put(address solana.PublicKey, acc *storage.Account) {
	o.loaded[address] = acc
	o.dirty[address] = struct{}{}
}

func (o *overlay) changes() map[solana.PublicKey]*storage.Account {
	out := make(map[solana.PublicKey]*storage.Account, len(o.dirty))
	for address := range o.dirty {
		out[address] = o.loaded[address]
	}
	return out
}
