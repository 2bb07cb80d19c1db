// internal/amm/remove_liquidity.go
package amm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/events"
	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/token"
)

func (p *Program) removeLiquidity(ictx *runtime.InvokeContext, a *LiquidityAccounts, shares, minA, minB uint64) error {
	if shares == 0 {
		return ErrZeroAmount
	}
	if err := requireSigner(ictx, a.User); err != nil {
		return err
	}

	pool, err := p.loadPool(ictx, a.Pool)
	if err != nil {
		return err
	}
	authority, err := p.poolVaults(pool, a.Pool, a.VaultA, a.VaultB, a.VaultAuthority)
	if err != nil {
		return err
	}
	if !a.LPMint.Equals(pool.LPMint) {
		return fmt.Errorf("%w: lp mint %s", ErrInvalidVaultMismatch, a.LPMint)
	}
	if _, err := userTokenAccount(ictx, a.UserTokenA, pool.MintA); err != nil {
		return err
	}
	if _, err := userTokenAccount(ictx, a.UserTokenB, pool.MintB); err != nil {
		return err
	}
	if _, err := userTokenAccount(ictx, a.UserLP, pool.LPMint); err != nil {
		return err
	}

	quote, err := pool.QuoteRemoveLiquidity(shares)
	if err != nil {
		return err
	}
	if quote.AmountA < minA || quote.AmountB < minB {
		return fmt.Errorf("%w: got (%d, %d), want at least (%d, %d)",
			ErrSlippageExceeded, quote.AmountA, quote.AmountB, minA, minB)
	}

	if err := ictx.Invoke(token.NewBurnInstruction(a.UserLP, pool.LPMint, a.User, shares)); err != nil {
		return err
	}
	if quote.AmountA > 0 {
		if err := authority.transfer(ictx, a.VaultA, a.UserTokenA, quote.AmountA); err != nil {
			return err
		}
	}
	if quote.AmountB > 0 {
		if err := authority.transfer(ictx, a.VaultB, a.UserTokenB, quote.AmountB); err != nil {
			return err
		}
	}

	pool.ReserveA = quote.NewReserveA
	pool.ReserveB = quote.NewReserveB
	pool.LPSupply = quote.NewSupply
	if err := p.storePool(ictx, a.Pool, pool); err != nil {
		return err
	}

	ictx.Emit(events.LiquidityRemovedEvent{
		BaseEvent: events.NewBase(events.LiquidityRemoved),
		Pool:      a.Pool,
		User:      a.User,
		Burned:    shares,
		AmountA:   quote.AmountA,
		AmountB:   quote.AmountB,
		ReserveA:  pool.ReserveA,
		ReserveB:  pool.ReserveB,
		LPSupply:  pool.LPSupply,
	})
	p.logger.Debug("Liquidity removed",
		zap.Stringer("pool", a.Pool),
		zap.Uint64("burned", shares),
		zap.Uint64("amount_a", quote.AmountA),
		zap.Uint64("amount_b", quote.AmountB))
	return nil
}
