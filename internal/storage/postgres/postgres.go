// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	address    VARCHAR(44) PRIMARY KEY,
	owner      VARCHAR(44) NOT NULL,
	data       BYTEA       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Options configures the postgres store.
type Options struct {
	DSN            string
	ConnectRetries uint
	RetryDelay     time.Duration
}

// Store keeps accounts in a postgres table; Commit runs in one SQL transaction.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// New connects to postgres, retrying the initial ping, and creates the schema.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	if opts.ConnectRetries == 0 {
		opts.ConnectRetries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	logger = logger.Named("postgres")

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.RetryDelay
	policy.MaxInterval = opts.RetryDelay * 10

	connect := func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.New(ctx, opts.DSN)
		if err != nil {
			// a malformed DSN will not get better on retry
			return nil, backoff.Permanent(fmt.Errorf("failed to parse postgres dsn: %w", err))
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		return pool, nil
	}

	notify := func(err error, d time.Duration) {
		logger.Warn("Postgres not ready, retrying", zap.Error(err), zap.Duration("backoff", d))
	}

	pool, err := backoff.Retry(ctx, connect,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(opts.ConnectRetries),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create accounts table: %w", err)
	}

	logger.Info("Postgres account store ready")
	return &Store{pool: pool, logger: logger}, nil
}

// Get loads a single account.
func (s *Store) Get(ctx context.Context, address solana.PublicKey) (*storage.Account, error) {
	var (
		owner string
		data  []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT owner, data FROM accounts WHERE address = $1`,
		address.String(),
	).Scan(&owner, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", address, err)
	}

	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("corrupt owner for account %s: %w", address, err)
	}
	return &storage.Account{Owner: ownerKey, Data: data}, nil
}

// Commit upserts every account of the set inside one transaction.
func (s *Store) Commit(ctx context.Context, writes map[solana.PublicKey]*storage.Account) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for address, acc := range writes {
		batch.Queue(`
			INSERT INTO accounts (address, owner, data, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (address)
			DO UPDATE SET owner = EXCLUDED.owner, data = EXCLUDED.data, updated_at = now()
		`, address.String(), acc.Owner.String(), acc.Data)
	}

	br := tx.SendBatch(ctx, batch)
	for range writes {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to write account: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to flush account batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit accounts: %w", err)
	}

	s.logger.Debug("Committed accounts", zap.Int("count", len(writes)))
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
