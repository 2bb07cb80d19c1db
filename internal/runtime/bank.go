// internal/runtime/bank.go
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-amm/internal/events"
	"github.com/rovshanmuradov/solana-amm/internal/metrics"
	"github.com/rovshanmuradov/solana-amm/internal/storage"
)

// Bank hosts programs over an account store. Each transaction runs against a
// private overlay under exclusive locks on its writable accounts and is
// committed in one store write, or not at all.
type Bank struct {
	store  storage.Store
	locks  *lockTable
	logger *zap.Logger

	mu       sync.RWMutex
	programs map[solana.PublicKey]Program

	metrics *metrics.Collector
	bus     *events.Bus
}

// Receipt describes a committed transaction.
type Receipt struct {
	ID        string
	Signature solana.Signature
	Events    []events.Event
	Duration  time.Duration
}

// BatchResult is the outcome of one transaction of ExecuteBatch.
type BatchResult struct {
	Receipt *Receipt
	Err     error
}

// Option configures a Bank.
type Option func(*Bank)

// WithMetrics records transaction and pool metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(b *Bank) { b.metrics = c }
}

// WithEventBus publishes committed events to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(b *Bank) { b.bus = bus }
}

// NewBank creates a bank over store.
func NewBank(store storage.Store, logger *zap.Logger, opts ...Option) *Bank {
	b := &Bank{
		store:    store,
		locks:    newLockTable(),
		logger:   logger.Named("bank"),
		programs: make(map[solana.PublicKey]Program),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register makes programs callable by id.
func (b *Bank) Register(programs ...Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range programs {
		b.programs[p.ID()] = p
		b.logger.Info("Program registered", zap.Stringer("program_id", p.ID()))
	}
}

func (b *Bank) program(id solana.PublicKey) (Program, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.programs[id]
	return p, ok
}

// Account reads a committed account.
func (b *Bank) Account(ctx context.Context, address solana.PublicKey) (*storage.Account, error) {
	return b.store.Get(ctx, address)
}

// Execute verifies, runs and commits a transaction.
func (b *Bank) Execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	start := time.Now()
	id := uuid.New().String()
	log := b.logger.With(zap.String("tx_id", id))

	receipt, err := b.execute(ctx, tx)
	duration := time.Since(start)
	if b.metrics != nil {
		b.metrics.RecordTransaction(duration, err == nil)
	}
	if err != nil {
		log.Debug("Transaction rejected", zap.Error(err), zap.Duration("duration", duration))
		return nil, err
	}

	receipt.ID = id
	receipt.Duration = duration
	log.Debug("Transaction committed",
		zap.Int("instructions", len(tx.Instructions)),
		zap.Int("events", len(receipt.Events)),
		zap.Duration("duration", duration))

	if b.metrics != nil {
		for _, ev := range receipt.Events {
			b.metrics.ObserveEvent(ev)
		}
	}
	if b.bus != nil && len(receipt.Events) > 0 {
		if err := b.bus.PublishAll(receipt.Events); err != nil {
			log.Warn("Failed to publish events", zap.Error(err))
		}
	}
	return receipt, nil
}

func (b *Bank) execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	if len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}
	if err := tx.Verify(); err != nil {
		return nil, err
	}

	signers := make(map[solana.PublicKey]struct{}, len(tx.Signers))
	for _, s := range tx.Signers {
		signers[s] = struct{}{}
	}

	release := b.locks.acquire(tx.accessMap())
	defer release()

	state := newOverlay(ctx, b.store)
	var emitted []events.Event
	for i, ix := range tx.Instructions {
		if err := b.invoke(ctx, state, ix, signers, &emitted, 0); err != nil {
			return nil, &InstructionError{Index: i, Program: ix.ProgramID(), Err: err}
		}
	}

	if err := b.store.Commit(ctx, state.changes()); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &Receipt{Signature: tx.Signature(), Events: emitted}, nil
}

func (b *Bank) invoke(
	ctx context.Context,
	state *overlay,
	ix solana.Instruction,
	available map[solana.PublicKey]struct{},
	emitted *[]events.Event,
	depth int,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	program, ok := b.program(ix.ProgramID())
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID())
	}

	metas := ix.Accounts()
	accounts := make(map[solana.PublicKey]bool, len(metas))
	signers := make(map[solana.PublicKey]struct{})
	for _, meta := range metas {
		accounts[meta.PublicKey] = accounts[meta.PublicKey] || meta.IsWritable
		if !meta.IsSigner {
			continue
		}
		if _, ok := available[meta.PublicKey]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingSignature, meta.PublicKey)
		}
		signers[meta.PublicKey] = struct{}{}
	}

	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("failed to read instruction data: %w", err)
	}

	ictx := &InvokeContext{
		ctx:       ctx,
		bank:      b,
		programID: program.ID(),
		state:     state,
		signers:   signers,
		accounts:  accounts,
		logger:    b.logger.With(zap.Stringer("program_id", program.ID()), zap.Int("depth", depth)),
		emitted:   emitted,
		depth:     depth,
	}
	return program.Process(ictx, metas, data)
}

// ExecuteBatch runs independent transactions concurrently. Transactions that
// share writable accounts are still serialized by the account locks.
func (b *Bank) ExecuteBatch(ctx context.Context, txs []*Transaction, workers int) []BatchResult {
	results := make([]BatchResult, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, tx := range txs {
		g.Go(func() error {
			receipt, err := b.Execute(gctx, tx)
			results[i] = BatchResult{Receipt: receipt, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
