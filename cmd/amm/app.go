package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/amm"
	"github.com/rovshanmuradov/solana-amm/internal/config"
	"github.com/rovshanmuradov/solana-amm/internal/events"
	"github.com/rovshanmuradov/solana-amm/internal/logger"
	"github.com/rovshanmuradov/solana-amm/internal/metrics"
	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/storage"
	"github.com/rovshanmuradov/solana-amm/internal/storage/postgres"
	"github.com/rovshanmuradov/solana-amm/internal/token"
)

// app holds the wired process components.
type app struct {
	log       *logger.Logger
	logger    *zap.Logger
	store     storage.Store
	closeDB   func() error
	bus       *events.Bus
	metrics   *metrics.Collector
	bank      *runtime.Bank
	programID solana.PublicKey
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.Log.File
	logCfg.Development = cfg.Log.Development
	logCfg.Pretty = cfg.Log.Pretty

	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	programID, err := cfg.Program()
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	a := &app{
		log:       log,
		logger:    log.WithComponent("amm"),
		programID: programID,
		closeDB:   func() error { return nil },
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, postgres.Options{
			DSN:            cfg.Storage.PostgresURL,
			ConnectRetries: cfg.Storage.ConnectRetries,
		}, a.logger)
		if err != nil {
			a.logger.Error("Storage unavailable", zap.Error(err))
			_ = a.log.Close()
			return nil, err
		}
		a.store = pg
		a.closeDB = pg.Close
	default:
		a.store = storage.NewMemoryStore()
	}

	a.bus = events.NewBus(a.logger, cfg.Events.BufferSize)

	opts := []runtime.Option{runtime.WithEventBus(a.bus)}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewCollector()
		opts = append(opts, runtime.WithMetrics(a.metrics))
	}

	program, err := amm.NewProgram(amm.Config{
		ProgramID:      programID,
		FeeBps:         cfg.FeeBps,
		ProtocolFeeBps: cfg.ProtocolFeeBps,
		LPDecimals:     cfg.LPDecimals,
	}, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.bank = runtime.NewBank(a.store, a.logger, opts...)
	a.bank.Register(token.NewProgram(a.logger), program)

	a.logger.Info("Ledger ready",
		zap.Stringer("program_id", programID),
		zap.String("storage", cfg.Storage.Driver),
		zap.Uint16("fee_bps", cfg.FeeBps),
		zap.Uint16("protocol_fee_bps", cfg.ProtocolFeeBps))

	return a, nil
}

// Close stops the event bus, releases storage and closes the logger.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.bus.Shutdown(ctx); err != nil {
		a.logger.Warn("Event bus shutdown", zap.Error(err))
	}
	if err := a.closeDB(); err != nil {
		a.logger.Warn("Storage close", zap.Error(err))
	}
	_ = a.log.Close()
}
