// internal/amm/swap.go
package amm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/events"
	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/token"
)

func (p *Program) swap(ictx *runtime.InvokeContext, a *SwapAccounts, amountIn, minOut uint64) error {
	if amountIn == 0 {
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

	input, err := token.LoadAccount(ictx, a.UserInput)
	if err != nil {
		return err
	}
	output, err := token.LoadAccount(ictx, a.UserOutput)
	if err != nil {
		return err
	}
	side, err := pool.side(input.Mint)
	if err != nil {
		return err
	}
	if !output.Mint.Equals(side.outputMint) {
		return fmt.Errorf("%w: output account holds %s, expected %s",
			ErrInvalidVaultMismatch, output.Mint, side.outputMint)
	}

	treasury, err := p.loadTreasury(ictx, a.Treasury)
	if err != nil {
		return err
	}
	expectedVault, _, err := DeriveTreasuryVault(p.id, input.Mint)
	if err != nil {
		return err
	}
	if err := expectAddress("treasury vault", a.TreasuryVault, expectedVault); err != nil {
		return err
	}
	feeVault, err := token.LoadAccount(ictx, a.TreasuryVault)
	if err != nil {
		return err
	}
	if !feeVault.Owner.Equals(a.Treasury) || !feeVault.Mint.Equals(input.Mint) {
		return fmt.Errorf("%w: treasury vault %s", ErrInvalidAccount, a.TreasuryVault)
	}

	quote, err := ComputeSwap(side.reserveIn, side.reserveOut, amountIn, pool.FeeBps, pool.ProtocolFeeBps)
	if err != nil {
		return err
	}
	if quote.AmountOut < minOut {
		return fmt.Errorf("%w: out %d, min %d", ErrSlippageExceeded, quote.AmountOut, minOut)
	}

	vaultIn, vaultOut := a.VaultA, a.VaultB
	if !side.aToB {
		vaultIn, vaultOut = a.VaultB, a.VaultA
	}
	if err := ictx.Invoke(token.NewTransferInstruction(a.UserInput, vaultIn, a.User, amountIn-quote.ProtocolFee)); err != nil {
		return err
	}
	if quote.ProtocolFee > 0 {
		if err := ictx.Invoke(token.NewTransferInstruction(a.UserInput, a.TreasuryVault, a.User, quote.ProtocolFee)); err != nil {
			return err
		}
		if err := treasury.Credit(input.Mint, quote.ProtocolFee); err != nil {
			return err
		}
		if err := p.storeTreasury(ictx, a.Treasury, treasury); err != nil {
			return err
		}
	}
	if err := authority.transfer(ictx, vaultOut, a.UserOutput, quote.AmountOut); err != nil {
		return err
	}

	if side.aToB {
		pool.ReserveA, pool.ReserveB = quote.NewReserveIn, quote.NewReserveOut
	} else {
		pool.ReserveA, pool.ReserveB = quote.NewReserveOut, quote.NewReserveIn
	}
	if err := p.storePool(ictx, a.Pool, pool); err != nil {
		return err
	}

	ictx.Emit(events.SwapEvent{
		BaseEvent:   events.NewBase(events.Swapped),
		Pool:        a.Pool,
		User:        a.User,
		InputMint:   input.Mint,
		AmountIn:    amountIn,
		AmountOut:   quote.AmountOut,
		Fee:         quote.Fee,
		ProtocolFee: quote.ProtocolFee,
		ReserveA:    pool.ReserveA,
		ReserveB:    pool.ReserveB,
	})
	p.logger.Debug("Swap executed",
		zap.Stringer("pool", a.Pool),
		zap.Stringer("input_mint", input.Mint),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("amount_out", quote.AmountOut),
		zap.Uint64("protocol_fee", quote.ProtocolFee))
	return nil
}
