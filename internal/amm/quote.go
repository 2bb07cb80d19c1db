// internal/amm/quote.go
package amm

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

type swapSide struct {
	aToB       bool
	reserveIn  uint64
	reserveOut uint64
	outputMint solana.PublicKey
}

// side orients the pool for a trade paying inputMint.
func (p *Pool) side(inputMint solana.PublicKey) (swapSide, error) {
	switch {
	case inputMint.Equals(p.MintA):
		return swapSide{aToB: true, reserveIn: p.ReserveA, reserveOut: p.ReserveB, outputMint: p.MintB}, nil
	case inputMint.Equals(p.MintB):
		return swapSide{aToB: false, reserveIn: p.ReserveB, reserveOut: p.ReserveA, outputMint: p.MintA}, nil
	default:
		return swapSide{}, fmt.Errorf("%w: mint %s is not in pool", ErrInvalidVaultMismatch, inputMint)
	}
}

// QuoteSwap prices a swap of amountIn of inputMint without changing the pool.
// It returns the same errors ComputeSwap would, including ErrInvariantViolation
// for fee-free dust trades.
func (p *Pool) QuoteSwap(inputMint solana.PublicKey, amountIn uint64) (*SwapQuote, error) {
	s, err := p.side(inputMint)
	if err != nil {
		return nil, err
	}
	return ComputeSwap(s.reserveIn, s.reserveOut, amountIn, p.FeeBps, p.ProtocolFeeBps)
}

// QuoteAddLiquidity returns the shares a deposit would mint.
func (p *Pool) QuoteAddLiquidity(amountA, amountB uint64) (*DepositQuote, error) {
	return ComputeDeposit(p.ReserveA, p.ReserveB, p.LPSupply, amountA, amountB)
}

// QuoteRemoveLiquidity returns what burning shares would pay out.
func (p *Pool) QuoteRemoveLiquidity(shares uint64) (*WithdrawQuote, error) {
	return ComputeWithdraw(p.ReserveA, p.ReserveB, p.LPSupply, shares)
}

// SpotPrice is the marginal price of inputMint in units of the other mint,
// fees excluded.
func (p *Pool) SpotPrice(inputMint solana.PublicKey) (decimal.Decimal, error) {
	s, err := p.side(inputMint)
	if err != nil {
		return decimal.Zero, err
	}
	if s.reserveIn == 0 || s.reserveOut == 0 {
		return decimal.Zero, ErrPoolEmpty
	}
	return toDecimal(s.reserveOut).Div(toDecimal(s.reserveIn)), nil
}

// MinAmountOut applies a slippage tolerance in basis points to a quoted
// output. A tolerance of 10000 or more accepts any output.
func MinAmountOut(quoted uint64, slippageBps uint16) uint64 {
	if uint64(slippageBps) >= BasisPoints {
		return 0
	}
	// quoted*(1e4-bps)/1e4 <= quoted, cannot overflow
	v, _ := mulDiv(quoted, BasisPoints-uint64(slippageBps), BasisPoints)
	return v
}

func toDecimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
