// internal/runtime/locks.go
package runtime

import (
	"bytes"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// lockTable hands out per-account read/write locks. Locks are always taken in
// ascending key order, so two transactions can never wait on each other.
type lockTable struct {
	mu    sync.Mutex
	locks map[solana.PublicKey]*sync.RWMutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[solana.PublicKey]*sync.RWMutex)}
}

func (t *lockTable) lockFor(key solana.PublicKey) *sync.RWMutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		t.locks[key] = l
	}
	return l
}

// acquire blocks until every writable key is held exclusively and every
// read-only key is held shared. The returned func releases them.
func (t *lockTable) acquire(access map[solana.PublicKey]bool) func() {
	keys := make([]solana.PublicKey, 0, len(access))
	for key := range access {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})

	release := make([]func(), 0, len(keys))
	for _, key := range keys {
		l := t.lockFor(key)
		if access[key] {
			l.Lock()
			release = append(release, l.Unlock)
		} else {
			l.RLock()
			release = append(release, l.RUnlock)
		}
	}

	return func() {
		for i := len(release) - 1; i >= 0; i-- {
			release[i]()
		}
	}
}
