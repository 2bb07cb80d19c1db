// internal/amm/add_liquidity.go
package amm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/events"
	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/token"
)

func (p *Program) addLiquidity(ictx *runtime.InvokeContext, a *LiquidityAccounts, amountA, amountB uint64) error {
	if amountA == 0 || amountB == 0 {
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

	quote, err := pool.QuoteAddLiquidity(amountA, amountB)
	if err != nil {
		return err
	}

	if err := ictx.Invoke(token.NewTransferInstruction(a.UserTokenA, a.VaultA, a.User, amountA)); err != nil {
		return err
	}
	if err := ictx.Invoke(token.NewTransferInstruction(a.UserTokenB, a.VaultB, a.User, amountB)); err != nil {
		return err
	}
	if err := authority.mintTo(ictx, pool.LPMint, a.UserLP, quote.Minted); err != nil {
		return err
	}

	pool.ReserveA = quote.NewReserveA
	pool.ReserveB = quote.NewReserveB
	pool.LPSupply = quote.NewSupply
	if err := p.storePool(ictx, a.Pool, pool); err != nil {
		return err
	}

	ictx.Emit(events.LiquidityAddedEvent{
		BaseEvent: events.NewBase(events.LiquidityAdded),
		Pool:      a.Pool,
		User:      a.User,
		AmountA:   amountA,
		AmountB:   amountB,
		Minted:    quote.Minted,
		ReserveA:  pool.ReserveA,
		ReserveB:  pool.ReserveB,
		LPSupply:  pool.LPSupply,
	})
	p.logger.Debug("Liquidity added",
		zap.Stringer("pool", a.Pool),
		zap.Uint64("amount_a", amountA),
		zap.Uint64("amount_b", amountB),
		zap.Uint64("minted", quote.Minted))
	return nil
}
