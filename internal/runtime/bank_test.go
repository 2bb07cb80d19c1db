package runtime

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-amm/internal/events"
	"github.com/rovshanmuradov/solana-amm/internal/storage"
)

const (
	opCreate byte = iota
	opIncrement
	opIncrementAndFail
	opRecurse
	opEscalate
)

var errBoom = errors.New("boom")

// counterProgram keeps a little-endian u64 in its first account.
type counterProgram struct {
	id solana.PublicKey
}

func (p *counterProgram) ID() solana.PublicKey { return p.id }

func (p *counterProgram) Process(ictx *InvokeContext, accounts []*solana.AccountMeta, data []byte) error {
	addr := accounts[0].PublicKey
	switch data[0] {
	case opCreate:
		return ictx.Create(addr, make([]byte, 8))
	case opIncrement, opIncrementAndFail:
		acc, err := ictx.Load(addr)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(acc.Data, binary.LittleEndian.Uint64(acc.Data)+1)
		if err := ictx.Write(addr, acc.Data); err != nil {
			return err
		}
		ictx.Emit(events.PoolCreatedEvent{BaseEvent: events.NewBase(events.PoolCreated), Pool: addr})
		if data[0] == opIncrementAndFail {
			return errBoom
		}
		return nil
	case opRecurse:
		return ictx.Invoke(solana.NewInstruction(p.id, accounts, []byte{opRecurse}))
	case opEscalate:
		return ictx.Invoke(solana.NewInstruction(p.id, []*solana.AccountMeta{
			solana.NewAccountMeta(addr, true, false),
		}, []byte{opIncrement}))
	}
	return errors.New("unknown op")
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	bank    *Bank
	store   *storage.MemoryStore
	program *counterProgram
	payer   *solana.Wallet
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	store := storage.NewMemoryStore()
	bank := NewBank(store, zaptest.NewLogger(t), opts...)
	program := &counterProgram{id: solana.NewWallet().PublicKey()}
	bank.Register(program)
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		bank:    bank,
		store:   store,
		program: program,
		payer:   solana.NewWallet(),
	}
}

func (f *fixture) ix(program solana.PublicKey, counter solana.PublicKey, writable bool, op byte) solana.Instruction {
	return solana.NewInstruction(program, []*solana.AccountMeta{
		solana.NewAccountMeta(counter, writable, false),
		solana.NewAccountMeta(f.payer.PublicKey(), false, true),
	}, []byte{op})
}

func (f *fixture) signed(ixs ...solana.Instruction) *Transaction {
	tx := NewTransaction(ixs...)
	require.NoError(f.t, tx.Sign(f.payer.PrivateKey))
	return tx
}

func (f *fixture) newCounter() solana.PublicKey {
	counter := solana.NewWallet().PublicKey()
	_, err := f.bank.Execute(f.ctx, f.signed(f.ix(f.program.id, counter, true, opCreate)))
	require.NoError(f.t, err)
	return counter
}

func (f *fixture) value(counter solana.PublicKey) uint64 {
	acc, err := f.bank.Account(f.ctx, counter)
	require.NoError(f.t, err)
	return binary.LittleEndian.Uint64(acc.Data)
}

func TestBank_ExecuteCommits(t *testing.T) {
	f := newFixture(t)
	counter := f.newCounter()

	receipt, err := f.bank.Execute(f.ctx, f.signed(
		f.ix(f.program.id, counter, true, opIncrement),
		f.ix(f.program.id, counter, true, opIncrement),
	))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.Len(t, receipt.Events, 2)
	assert.NotEqual(t, solana.Signature{}, receipt.Signature)
	assert.Equal(t, uint64(2), f.value(counter))

	acc, err := f.bank.Account(f.ctx, counter)
	require.NoError(t, err)
	assert.Equal(t, f.program.id, acc.Owner)
}

func TestBank_FailedInstructionRollsBackTransaction(t *testing.T) {
	f := newFixture(t)
	counter := f.newCounter()

	_, err := f.bank.Execute(f.ctx, f.signed(
		f.ix(f.program.id, counter, true, opIncrement),
		f.ix(f.program.id, counter, true, opIncrementAndFail),
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	var ixErr *InstructionError
	require.ErrorAs(t, err, &ixErr)
	assert.Equal(t, 1, ixErr.Index)
	assert.Equal(t, f.program.id, ixErr.Program)

	assert.Zero(t, f.value(counter))
}

func TestBank_SignatureChecks(t *testing.T) {
	f := newFixture(t)
	counter := f.newCounter()

	t.Run("tampered signature", func(t *testing.T) {
		tx := f.signed(f.ix(f.program.id, counter, true, opIncrement))
		tx.Signatures[0][0] ^= 0xff
		_, err := f.bank.Execute(f.ctx, tx)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("instruction changed after signing", func(t *testing.T) {
		tx := f.signed(f.ix(f.program.id, counter, true, opIncrement))
		tx.Instructions[0] = f.ix(f.program.id, counter, true, opIncrementAndFail)
		_, err := f.bank.Execute(f.ctx, tx)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("unsigned", func(t *testing.T) {
		tx := NewTransaction(f.ix(f.program.id, counter, true, opIncrement))
		_, err := f.bank.Execute(f.ctx, tx)
		assert.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("signed by someone else", func(t *testing.T) {
		tx := NewTransaction(f.ix(f.program.id, counter, true, opIncrement))
		assert.ErrorIs(t, tx.Sign(solana.NewWallet().PrivateKey), ErrMissingSignature)
	})

	assert.Zero(t, f.value(counter))
}

func TestBank_AccessRules(t *testing.T) {
	f := newFixture(t)
	counter := f.newCounter()

	other := &counterProgram{id: solana.NewWallet().PublicKey()}
	f.bank.Register(other)

	tests := []struct {
		name    string
		ix      solana.Instruction
		wantErr error
	}{
		{"read-only write", f.ix(f.program.id, counter, false, opIncrement), ErrReadonlyAccount},
		{"foreign owner", f.ix(other.id, counter, true, opIncrement), ErrIllegalOwner},
		{"create existing", f.ix(f.program.id, counter, true, opCreate), ErrAccountInUse},
		{"missing account", f.ix(f.program.id, solana.NewWallet().PublicKey(), true, opIncrement), storage.ErrAccountNotFound},
		{"unknown program", f.ix(solana.NewWallet().PublicKey(), counter, true, opIncrement), ErrUnknownProgram},
		{"privilege escalation", f.ix(f.program.id, counter, false, opEscalate), ErrPrivilegeEscalation},
		{"call depth", f.ix(f.program.id, counter, true, opRecurse), ErrCallDepth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bank.Execute(f.ctx, f.signed(tt.ix))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, f.value(counter))
}

func TestBank_EmptyTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.bank.Execute(f.ctx, NewTransaction())
	assert.ErrorIs(t, err, ErrEmptyTransaction)
}

func TestBank_ExecuteBatchSerializesSharedAccounts(t *testing.T) {
	f := newFixture(t)
	counter := f.newCounter()
	independent := f.newCounter()

	const n = 32
	txs := make([]*Transaction, 0, n+1)
	for i := 0; i < n; i++ {
		// distinct payers keep the signed messages distinct
		payer := solana.NewWallet()
		ix := solana.NewInstruction(f.program.id, []*solana.AccountMeta{
			solana.NewAccountMeta(counter, true, false),
			solana.NewAccountMeta(payer.PublicKey(), false, true),
		}, []byte{opIncrement})
		tx := NewTransaction(ix)
		require.NoError(t, tx.Sign(payer.PrivateKey))
		txs = append(txs, tx)
	}
	txs = append(txs, f.signed(f.ix(f.program.id, independent, true, opIncrement)))

	results := f.bank.ExecuteBatch(f.ctx, txs, 8)
	require.Len(t, results, n+1)
	for i, res := range results {
		require.NoError(t, res.Err, "tx %d", i)
	}
	assert.Equal(t, uint64(n), f.value(counter))
	assert.Equal(t, uint64(1), f.value(independent))
}

func TestBank_PublishesCommittedEventsOnly(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t), 8)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	}()

	var (
		mu       sync.Mutex
		received int
		got      = make(chan struct{}, 4)
	)
	bus.SubscribeFunc(events.PoolCreated, func(context.Context, events.Event) error {
		mu.Lock()
		received++
		mu.Unlock()
		got <- struct{}{}
		return nil
	})

	f := newFixture(t, WithEventBus(bus))
	counter := f.newCounter()

	_, err := f.bank.Execute(f.ctx, f.signed(f.ix(f.program.id, counter, true, opIncrementAndFail)))
	require.Error(t, err)
	_, err = f.bank.Execute(f.ctx, f.signed(f.ix(f.program.id, counter, true, opIncrement)))
	require.NoError(t, err)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	// give a wrongly published event from the failed tx a chance to show up
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, received)
	mu.Unlock()
}

func TestBank_CancelledContext(t *testing.T) {
	f := newFixture(t)
	counter := f.newCounter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.bank.Execute(ctx, f.signed(f.ix(f.program.id, counter, true, opIncrement)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.value(counter))
}
