// internal/amm/create_pool.go
package amm

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/events"
	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/token"
)

func expectAddress(name string, supplied, expected solana.PublicKey) error {
	if !supplied.Equals(expected) {
		return fmt.Errorf("%w: %s %s, expected %s", ErrInvalidAccount, name, supplied, expected)
	}
	return nil
}

func (p *Program) createPool(ictx *runtime.InvokeContext, a *CreatePoolAccounts) error {
	if err := requireSigner(ictx, a.Payer); err != nil {
		return err
	}
	// pair is never reordered here: (b, a) would derive a different pool
	if bytes.Compare(a.MintA[:], a.MintB[:]) >= 0 {
		return ErrInvalidMintOrdering
	}

	addrs, err := DerivePoolAddresses(p.id, a.MintA, a.MintB)
	if err != nil {
		return err
	}
	treasury, _, err := DeriveTreasury(p.id)
	if err != nil {
		return err
	}
	tvA, tvABump, err := DeriveTreasuryVault(p.id, a.MintA)
	if err != nil {
		return err
	}
	tvB, tvBBump, err := DeriveTreasuryVault(p.id, a.MintB)
	if err != nil {
		return err
	}
	for _, check := range []struct {
		name               string
		supplied, expected solana.PublicKey
	}{
		{"pool", a.Pool, addrs.Pool},
		{"lp mint", a.LPMint, addrs.LPMint},
		{"vault authority", a.VaultAuthority, addrs.VaultAuthority},
		{"vault a", a.VaultA, addrs.VaultA},
		{"vault b", a.VaultB, addrs.VaultB},
		{"treasury", a.Treasury, treasury},
		{"treasury vault a", a.TreasuryVaultA, tvA},
		{"treasury vault b", a.TreasuryVaultB, tvB},
	} {
		if err := expectAddress(check.name, check.supplied, check.expected); err != nil {
			return err
		}
	}

	exists, err := ictx.Exists(a.Pool)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrPoolAlreadyExists, a.Pool)
	}
	exists, err = ictx.Exists(a.Treasury)
	if err != nil {
		return err
	}
	if !exists {
		return ErrTreasuryNotInitialized
	}
	if _, err := p.loadTreasury(ictx, a.Treasury); err != nil {
		return err
	}

	pool := &Pool{
		MintA:          a.MintA,
		MintB:          a.MintB,
		VaultA:         addrs.VaultA,
		VaultB:         addrs.VaultB,
		LPMint:         addrs.LPMint,
		FeeBps:         p.feeBps,
		ProtocolFeeBps: p.protocolFeeBps,
		Bump:           addrs.PoolBump,
		AuthorityBump:  addrs.AuthorityBump,
	}
	data, err := pool.Marshal()
	if err != nil {
		return err
	}
	if err := ictx.Create(a.Pool, data); err != nil {
		return err
	}

	// LP mint and vaults sign their own creation with their PDA seeds
	if err := ictx.InvokeSigned(
		token.NewInitializeMintInstruction(addrs.LPMint, addrs.VaultAuthority, p.lpDecimals),
		withBump(lpMintSeeds(addrs.Pool), addrs.LPMintBump),
	); err != nil {
		return fmt.Errorf("create lp mint: %w", err)
	}
	if err := ictx.InvokeSigned(
		token.NewInitializeAccountInstruction(addrs.VaultA, a.MintA, addrs.VaultAuthority),
		withBump(vaultSeeds(a.MintA, a.MintB, SeedVaultA), addrs.VaultABump),
	); err != nil {
		return fmt.Errorf("create vault a: %w", err)
	}
	if err := ictx.InvokeSigned(
		token.NewInitializeAccountInstruction(addrs.VaultB, a.MintB, addrs.VaultAuthority),
		withBump(vaultSeeds(a.MintA, a.MintB, SeedVaultB), addrs.VaultBBump),
	); err != nil {
		return fmt.Errorf("create vault b: %w", err)
	}

	if err := p.ensureTreasuryVault(ictx, treasury, a.MintA, tvA, tvABump); err != nil {
		return err
	}
	if err := p.ensureTreasuryVault(ictx, treasury, a.MintB, tvB, tvBBump); err != nil {
		return err
	}

	ictx.Emit(events.PoolCreatedEvent{
		BaseEvent: events.NewBase(events.PoolCreated),
		Pool:      a.Pool,
		MintA:     a.MintA,
		MintB:     a.MintB,
		LPMint:    addrs.LPMint,
		FeeBps:    p.feeBps,
	})
	p.logger.Info("Pool created",
		zap.Stringer("pool", a.Pool),
		zap.Stringer("mint_a", a.MintA),
		zap.Stringer("mint_b", a.MintB),
		zap.Uint16("fee_bps", p.feeBps))
	return nil
}

// ensureTreasuryVault creates the fee vault of mint unless an earlier pool already did.
func (p *Program) ensureTreasuryVault(ictx *runtime.InvokeContext, treasury, mint, vault solana.PublicKey, bump uint8) error {
	exists, err := ictx.Exists(vault)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := ictx.InvokeSigned(
		token.NewInitializeAccountInstruction(vault, mint, treasury),
		withBump(treasuryVaultSeeds(mint), bump),
	); err != nil {
		return fmt.Errorf("create treasury vault for %s: %w", mint, err)
	}
	p.logger.Debug("Treasury vault created", zap.Stringer("mint", mint), zap.Stringer("vault", vault))
	return nil
}
