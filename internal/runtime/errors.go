// internal/runtime/errors.go
package runtime

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrEmptyTransaction    = errors.New("transaction has no instructions")
	ErrUnknownProgram      = errors.New("unknown program")
	ErrMissingSignature    = errors.New("missing required signature")
	ErrInvalidSignature    = errors.New("signature verification failed")
	ErrUndeclaredAccount   = errors.New("account not passed to instruction")
	ErrReadonlyAccount     = errors.New("account is not writable")
	ErrIllegalOwner        = errors.New("account not owned by executing program")
	ErrAccountInUse        = errors.New("account already in use")
	ErrPrivilegeEscalation = errors.New("cross-program invocation escalates privileges")
	ErrCallDepth           = errors.New("cross-program invocation depth exceeded")
)

// InstructionError wraps the failure of one instruction of a transaction.
type InstructionError struct {
	Index   int
	Program solana.PublicKey
	Err     error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (program %s) failed: %v", e.Index, e.Program, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}
