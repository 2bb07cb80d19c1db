// internal/runtime/context.go
package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/events"
	"github.com/rovshanmuradov/solana-amm/internal/storage"
)

const maxCallDepth = 4

// InvokeContext is what a program sees while processing one instruction: the
// accounts passed to it, which of them signed, and the transaction overlay.
type InvokeContext struct {
	ctx       context.Context
	bank      *Bank
	programID solana.PublicKey
	state     *overlay
	signers   map[solana.PublicKey]struct{}
	accounts  map[solana.PublicKey]bool // true: writable
	logger    *zap.Logger
	emitted   *[]events.Event
	depth     int
}

// Context returns the transaction context.
func (c *InvokeContext) Context() context.Context {
	return c.ctx
}

// ProgramID returns the id of the program being executed.
func (c *InvokeContext) ProgramID() solana.PublicKey {
	return c.programID
}

// Logger returns a logger scoped to the executing program.
func (c *InvokeContext) Logger() *zap.Logger {
	return c.logger
}

// IsSigner reports whether key signed this instruction, directly or as a PDA of the caller.
func (c *InvokeContext) IsSigner(key solana.PublicKey) bool {
	_, ok := c.signers[key]
	return ok
}

// IsWritable reports whether key was passed as writable.
func (c *InvokeContext) IsWritable(key solana.PublicKey) bool {
	return c.accounts[key]
}

func (c *InvokeContext) declared(address solana.PublicKey) error {
	if _, ok := c.accounts[address]; !ok {
		return fmt.Errorf("%w: %s", ErrUndeclaredAccount, address)
	}
	return nil
}

// Exists reports whether an account is present.
func (c *InvokeContext) Exists(address solana.PublicKey) (bool, error) {
	if err := c.declared(address); err != nil {
		return false, err
	}
	_, err := c.state.get(address)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Load returns a copy of the account. Mutations are only persisted through Write.
func (c *InvokeContext) Load(address solana.PublicKey) (*storage.Account, error) {
	if err := c.declared(address); err != nil {
		return nil, err
	}
	acc, err := c.state.get(address)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", address, err)
	}
	return acc.Clone(), nil
}

// Create allocates a new account owned by the executing program.
func (c *InvokeContext) Create(address solana.PublicKey, data []byte) error {
	if err := c.declared(address); err != nil {
		return err
	}
	if !c.accounts[address] {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, address)
	}
	exists, err := c.Exists(address)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAccountInUse, address)
	}
	c.state.put(address, &storage.Account{Owner: c.programID, Data: clone(data)})
	return nil
}

// Write replaces the data of an existing account owned by the executing program.
func (c *InvokeContext) Write(address solana.PublicKey, data []byte) error {
	if err := c.declared(address); err != nil {
		return err
	}
	if !c.accounts[address] {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, address)
	}
	acc, err := c.state.get(address)
	if err != nil {
		return fmt.Errorf("write %s: %w", address, err)
	}
	if !acc.Owner.Equals(c.programID) {
		return fmt.Errorf("%w: %s owned by %s", ErrIllegalOwner, address, acc.Owner)
	}
	c.state.put(address, &storage.Account{Owner: acc.Owner, Data: clone(data)})
	return nil
}

// Emit records an event; it is published only if the transaction commits.
func (c *InvokeContext) Emit(ev events.Event) {
	*c.emitted = append(*c.emitted, ev)
}

// Invoke calls another program with the caller's privileges.
func (c *InvokeContext) Invoke(ix solana.Instruction) error {
	return c.InvokeSigned(ix)
}

// InvokeSigned calls another program. Each seed set is turned into a program
// address of the *executing* program and added to the signers, which is the
// only way a PDA can ever sign.
func (c *InvokeContext) InvokeSigned(ix solana.Instruction, signerSeeds ...[][]byte) error {
	if c.depth+1 > maxCallDepth {
		return ErrCallDepth
	}

	signers := make(map[solana.PublicKey]struct{}, len(c.signers)+len(signerSeeds))
	for key := range c.signers {
		signers[key] = struct{}{}
	}
	for _, seeds := range signerSeeds {
		pda, err := solana.CreateProgramAddress(seeds, c.programID)
		if err != nil {
			return fmt.Errorf("invalid signer seeds: %w", err)
		}
		signers[pda] = struct{}{}
	}

	for _, meta := range ix.Accounts() {
		writable, ok := c.accounts[meta.PublicKey]
		if !ok && !meta.PublicKey.Equals(ix.ProgramID()) {
			return fmt.Errorf("%w: %s", ErrUndeclaredAccount, meta.PublicKey)
		}
		if meta.IsWritable && !writable {
			return fmt.Errorf("%w: %s is not writable in caller", ErrPrivilegeEscalation, meta.PublicKey)
		}
	}

	return c.bank.invoke(c.ctx, c.state, ix, signers, c.emitted, c.depth+1)
}

func clone(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
