// internal/token/errors.go
package token

import "errors"

var (
	ErrInvalidInstruction  = errors.New("token: invalid instruction")
	ErrInvalidAccountData  = errors.New("token: invalid account data")
	ErrInvalidAccountOwner = errors.New("token: account not owned by token program")
	ErrInsufficientFunds   = errors.New("token: insufficient funds")
	ErrOwnerMismatch       = errors.New("token: owner does not match")
	ErrMintMismatch        = errors.New("token: account mint mismatch")
	ErrAuthorityMismatch   = errors.New("token: mint authority mismatch")
	ErrMissingSigner       = errors.New("token: authority did not sign")
	ErrOverflow            = errors.New("token: operation overflowed")
)
