// internal/amm/errors.go
package amm

import "fmt"

// Error is a program error with a stable numeric code. Two errors match under
// errors.Is when their codes are equal.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

const errorCodeOffset = 6000

var (
	ErrAlreadyInitialized     = newError(0, "AlreadyInitialized", "treasury already initialized")
	ErrPoolAlreadyExists      = newError(1, "PoolAlreadyExists", "pool already exists for this mint pair")
	ErrInvalidMintOrdering    = newError(2, "InvalidMintOrdering", "mint a must sort strictly before mint b")
	ErrZeroAmount             = newError(3, "ZeroAmount", "amount must be greater than zero")
	ErrInsufficientLiquidity  = newError(4, "InsufficientLiquidity", "insufficient liquidity")
	ErrSlippageExceeded       = newError(5, "SlippageExceeded", "slippage exceeded")
	ErrInvalidVaultMismatch   = newError(6, "InvalidVaultMismatch", "vault does not belong to pool")
	ErrOverflow               = newError(7, "Overflow", "math overflow")
	ErrUnderflow              = newError(8, "Underflow", "math underflow")
	ErrInvariantViolation     = newError(9, "InvariantViolation", "invariant violation")
	ErrPoolEmpty              = newError(10, "PoolEmpty", "pool has no liquidity")
	ErrTreasuryNotInitialized = newError(11, "TreasuryNotInitialized", "treasury is not initialized")
	ErrInvalidAccount         = newError(12, "InvalidAccount", "account address or owner is invalid")
	ErrInvalidMint            = newError(13, "InvalidMint", "token account mint does not match pool")
	ErrInvalidInstruction     = newError(14, "InvalidInstruction", "invalid instruction data")
	ErrMissingSigner          = newError(15, "MissingSigner", "required signer is missing")
)

func newError(offset uint32, name, msg string) *Error {
	return &Error{Code: errorCodeOffset + offset, Name: name, Msg: msg}
}
