// internal/amm/math.go
package amm

import (
	"github.com/holiman/uint256"
)

// BasisPoints is the fee denominator.
const BasisPoints = 10_000

// SwapQuote is the full outcome of a swap against given reserves.
type SwapQuote struct {
	AmountIn      uint64
	Fee           uint64 // total fee, protocol share included
	NetIn         uint64 // part of AmountIn that prices the trade
	AmountOut     uint64
	ProtocolFee   uint64 // part of Fee routed to the treasury
	NewReserveIn  uint64
	NewReserveOut uint64
}

// DepositQuote is the outcome of adding liquidity.
type DepositQuote struct {
	Minted      uint64
	NewReserveA uint64
	NewReserveB uint64
	NewSupply   uint64
}

// WithdrawQuote is the outcome of burning shares.
type WithdrawQuote struct {
	AmountA     uint64
	AmountB     uint64
	NewReserveA uint64
	NewReserveB uint64
	NewSupply   uint64
}

func u256(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func toU64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrOverflow
	}
	return v.Uint64(), nil
}

// mulDiv returns floor(a*b/d) computed on 256 bits.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrPoolEmpty
	}
	x := new(uint256.Int).Mul(u256(a), u256(b))
	return toU64(x.Div(x, u256(d)))
}

func addU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

func subU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// isqrt returns floor(sqrt(a*b)).
func isqrt(a, b uint64) uint64 {
	x := new(uint256.Int).Mul(u256(a), u256(b))
	// sqrt of a value below 2^128 always fits in 64 bits
	return x.Sqrt(x).Uint64()
}

// ComputeSwap prices amountIn against (reserveIn, reserveOut) with the
// constant-product rule. The fee is taken from the input; protocolFeeBps of it
// leaves the pool, the rest stays in reserveIn.
// The output rounds in the trader's favour, so a trade whose fee floors to
// zero (below 334 units at 30 bps) usually lowers k and then fails with
// ErrInvariantViolation.
func ComputeSwap(reserveIn, reserveOut, amountIn uint64, feeBps, protocolFeeBps uint16) (*SwapQuote, error) {
	if amountIn == 0 {
		return nil, ErrZeroAmount
	}
	if reserveIn == 0 || reserveOut == 0 {
		return nil, ErrPoolEmpty
	}

	fee, err := mulDiv(amountIn, uint64(feeBps), BasisPoints)
	if err != nil {
		return nil, err
	}
	netIn, err := subU64(amountIn, fee)
	if err != nil {
		return nil, err
	}

	k := new(uint256.Int).Mul(u256(reserveIn), u256(reserveOut))
	denominator := new(uint256.Int).Add(u256(reserveIn), u256(netIn))
	remaining := new(uint256.Int).Div(k, denominator)
	// remaining <= reserveOut because denominator >= reserveIn
	out := reserveOut - remaining.Uint64()
	if out == 0 {
		return nil, ErrInsufficientLiquidity
	}

	protocolFee, err := mulDiv(fee, uint64(protocolFeeBps), BasisPoints)
	if err != nil {
		return nil, err
	}
	newIn, err := addU64(reserveIn, amountIn-protocolFee)
	if err != nil {
		return nil, err
	}
	newOut := reserveOut - out

	newK := new(uint256.Int).Mul(u256(newIn), u256(newOut))
	if newK.Lt(k) {
		return nil, ErrInvariantViolation
	}

	return &SwapQuote{
		AmountIn:      amountIn,
		Fee:           fee,
		NetIn:         netIn,
		AmountOut:     out,
		ProtocolFee:   protocolFee,
		NewReserveIn:  newIn,
		NewReserveOut: newOut,
	}, nil
}

// ComputeDeposit returns the shares minted for (amountA, amountB). The first
// deposit mints the geometric mean; later ones mint in proportion to the
// limiting side and the excess of the other side stays in the pool.
func ComputeDeposit(reserveA, reserveB, supply, amountA, amountB uint64) (*DepositQuote, error) {
	if amountA == 0 || amountB == 0 {
		return nil, ErrZeroAmount
	}

	var minted uint64
	if supply == 0 {
		minted = isqrt(amountA, amountB)
	} else {
		if reserveA == 0 || reserveB == 0 {
			return nil, ErrPoolEmpty
		}
		byA, err := mulDiv(supply, amountA, reserveA)
		if err != nil {
			return nil, err
		}
		byB, err := mulDiv(supply, amountB, reserveB)
		if err != nil {
			return nil, err
		}
		minted = min(byA, byB)
	}
	if minted == 0 {
		return nil, ErrInsufficientLiquidity
	}

	newA, err := addU64(reserveA, amountA)
	if err != nil {
		return nil, err
	}
	newB, err := addU64(reserveB, amountB)
	if err != nil {
		return nil, err
	}
	newSupply, err := addU64(supply, minted)
	if err != nil {
		return nil, err
	}

	return &DepositQuote{Minted: minted, NewReserveA: newA, NewReserveB: newB, NewSupply: newSupply}, nil
}

// ComputeWithdraw returns the reserves released by burning shares.
func ComputeWithdraw(reserveA, reserveB, supply, shares uint64) (*WithdrawQuote, error) {
	if shares == 0 {
		return nil, ErrZeroAmount
	}
	if supply == 0 {
		return nil, ErrPoolEmpty
	}
	if shares > supply {
		return nil, ErrInsufficientLiquidity
	}

	outA, err := mulDiv(reserveA, shares, supply)
	if err != nil {
		return nil, err
	}
	outB, err := mulDiv(reserveB, shares, supply)
	if err != nil {
		return nil, err
	}
	if outA == 0 && outB == 0 {
		return nil, ErrInsufficientLiquidity
	}

	return &WithdrawQuote{
		AmountA:     outA,
		AmountB:     outB,
		NewReserveA: reserveA - outA,
		NewReserveB: reserveB - outB,
		NewSupply:   supply - shares,
	}, nil
}
