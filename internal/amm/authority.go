// internal/amm/authority.go
package amm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/token"
)

// vaultAuthority is the signing capability of one pool. It is built only from
// a decoded pool record and used only inside instruction handlers; the
// signature it produces exists for the duration of one cross-program call.
type vaultAuthority struct {
	pool    solana.PublicKey
	bump    uint8
	address solana.PublicKey
}

func newVaultAuthority(programID, pool solana.PublicKey, bump uint8) (*vaultAuthority, error) {
	address, err := solana.CreateProgramAddress(withBump(authoritySeeds(pool), bump), programID)
	if err != nil {
		return nil, fmt.Errorf("%w: vault authority: %v", ErrInvalidAccount, err)
	}
	return &vaultAuthority{pool: pool, bump: bump, address: address}, nil
}

func (a *vaultAuthority) signerSeeds() [][]byte {
	return withBump(authoritySeeds(a.pool), a.bump)
}

// verify checks the account passed as vault authority.
func (a *vaultAuthority) verify(supplied solana.PublicKey) error {
	if !supplied.Equals(a.address) {
		return fmt.Errorf("%w: vault authority %s, expected %s", ErrInvalidAccount, supplied, a.address)
	}
	return nil
}

// transfer debits a pool vault.
func (a *vaultAuthority) transfer(ictx *runtime.InvokeContext, vault, destination solana.PublicKey, amount uint64) error {
	ix := token.NewTransferInstruction(vault, destination, a.address, amount)
	return ictx.InvokeSigned(ix, a.signerSeeds())
}

// mintTo issues LP tokens.
func (a *vaultAuthority) mintTo(ictx *runtime.InvokeContext, lpMint, destination solana.PublicKey, amount uint64) error {
	ix := token.NewMintToInstruction(lpMint, destination, a.address, amount)
	return ictx.InvokeSigned(ix, a.signerSeeds())
}
