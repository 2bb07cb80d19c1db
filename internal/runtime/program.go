// internal/runtime/program.go
package runtime

import (
	"github.com/gagliardetto/solana-go"
)

// Program is an on-chain program hosted by the bank. Process receives the
// instruction's account metas in order and the raw instruction data.
type Program interface {
	ID() solana.PublicKey
	Process(ictx *InvokeContext, accounts []*solana.AccountMeta, data []byte) error
}
