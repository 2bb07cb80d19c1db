// Package scenario replays scripted pool activity against an in-process bank.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Operation is the kind of a scenario step.
type Operation string

const (
	OpAddLiquidity    Operation = "add_liquidity"
	OpRemoveLiquidity Operation = "remove_liquidity"
	OpSwap            Operation = "swap"
	OpBatch           Operation = "batch"
)

// Scenario represents the structure of a scenario YAML file.
type Scenario struct {
	Name    string       `yaml:"name"`
	Mints   []MintSpec   `yaml:"mints"`
	Pools   []PoolSpec   `yaml:"pools"`
	Traders []TraderSpec `yaml:"traders"`
	Steps   []Step       `yaml:"steps"`
}

type MintSpec struct {
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

// PoolSpec names a pool over two mints; order does not matter.
type PoolSpec struct {
	Name  string    `yaml:"name"`
	Mints [2]string `yaml:"mints"`
}

// TraderSpec describes a wallet and its starting balances keyed by mint name.
type TraderSpec struct {
	Name     string            `yaml:"name"`
	Balances map[string]uint64 `yaml:"balances"`
}

// Step is one transaction. Amounts are keyed by mint name.
type Step struct {
	Op     Operation `yaml:"op"`
	Trader string    `yaml:"trader"`
	Pool   string    `yaml:"pool"`

	// add_liquidity
	Amounts map[string]uint64 `yaml:"amounts"`

	// remove_liquidity
	Shares     uint64            `yaml:"shares"`
	AllShares  bool              `yaml:"all_shares"`
	MinAmounts map[string]uint64 `yaml:"min_amounts"`

	// swap
	Input       string  `yaml:"input"`
	Amount      uint64  `yaml:"amount"`
	MinOut      uint64  `yaml:"min_out"`
	SlippageBps *uint16 `yaml:"slippage_bps"` // min_out from a quote taken when the step is built

	// batch: executed concurrently through Bank.ExecuteBatch
	Steps []Step `yaml:"steps"`

	// ExpectError makes the step pass only if it fails with this program error name.
	ExpectError string `yaml:"expect_error"`
}

// Manager loads and validates scenario files.
type Manager struct {
	logger *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger.Named("scenario")}
}

// Load reads a scenario from a YAML file.
func (m *Manager) Load(path string) (*Scenario, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for scenario file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.logger.Info("Loaded scenario",
		zap.String("name", sc.Name),
		zap.Int("mints", len(sc.Mints)),
		zap.Int("pools", len(sc.Pools)),
		zap.Int("steps", len(sc.Steps)))
	return sc, nil
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	mints := make(map[string]bool, len(sc.Mints))
	for _, m := range sc.Mints {
		if m.Name == "" {
			return errors.New("mint without a name")
		}
		if mints[m.Name] {
			return fmt.Errorf("duplicate mint %q", m.Name)
		}
		mints[m.Name] = true
	}

	pools := make(map[string]PoolSpec, len(sc.Pools))
	for _, p := range sc.Pools {
		if p.Name == "" {
			return errors.New("pool without a name")
		}
		if _, dup := pools[p.Name]; dup {
			return fmt.Errorf("duplicate pool %q", p.Name)
		}
		for _, name := range p.Mints {
			if !mints[name] {
				return fmt.Errorf("pool %q: unknown mint %q", p.Name, name)
			}
		}
		if p.Mints[0] == p.Mints[1] {
			return fmt.Errorf("pool %q: mints must differ", p.Name)
		}
		pools[p.Name] = p
	}

	traders := make(map[string]bool, len(sc.Traders))
	for _, t := range sc.Traders {
		if t.Name == "" {
			return errors.New("trader without a name")
		}
		if traders[t.Name] {
			return fmt.Errorf("duplicate trader %q", t.Name)
		}
		for name := range t.Balances {
			if !mints[name] {
				return fmt.Errorf("trader %q: unknown mint %q", t.Name, name)
			}
		}
		traders[t.Name] = true
	}

	if len(sc.Steps) == 0 {
		return errors.New("no steps found in scenario")
	}
	for i, s := range sc.Steps {
		if err := s.validate(pools, traders, true); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func (s *Step) validate(pools map[string]PoolSpec, traders map[string]bool, top bool) error {
	if s.Op == OpBatch {
		if !top {
			return errors.New("nested batch")
		}
		if len(s.Steps) == 0 {
			return errors.New("empty batch")
		}
		for i, inner := range s.Steps {
			if err := inner.validate(pools, traders, false); err != nil {
				return fmt.Errorf("batch step %d: %w", i, err)
			}
		}
		return nil
	}

	pool, ok := pools[s.Pool]
	if !ok {
		return fmt.Errorf("unknown pool %q", s.Pool)
	}
	if !traders[s.Trader] {
		return fmt.Errorf("unknown trader %q", s.Trader)
	}
	if len(s.Steps) > 0 {
		return fmt.Errorf("%s step cannot carry nested steps", s.Op)
	}

	inPool := func(name string) bool { return name == pool.Mints[0] || name == pool.Mints[1] }

	switch s.Op {
	case OpAddLiquidity:
		for name := range s.Amounts {
			if !inPool(name) {
				return fmt.Errorf("mint %q is not in pool %q", name, s.Pool)
			}
		}
	case OpRemoveLiquidity:
		if s.AllShares && s.Shares != 0 {
			return errors.New("shares and all_shares are mutually exclusive")
		}
		for name := range s.MinAmounts {
			if !inPool(name) {
				return fmt.Errorf("mint %q is not in pool %q", name, s.Pool)
			}
		}
	case OpSwap:
		if !inPool(s.Input) {
			return fmt.Errorf("input mint %q is not in pool %q", s.Input, s.Pool)
		}
		if s.SlippageBps != nil {
			if s.MinOut != 0 {
				return errors.New("min_out and slippage_bps are mutually exclusive")
			}
			if *s.SlippageBps > 10_000 {
				return errors.New("slippage_bps must be at most 10000")
			}
		}
	default:
		return fmt.Errorf("unsupported operation: %q", s.Op)
	}
	return nil
}
