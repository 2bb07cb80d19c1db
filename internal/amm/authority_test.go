package amm

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/token"
)

// rogueProgram tries to sign as a pool's vault authority from another program id.
type rogueProgram struct {
	id        solana.PublicKey
	pool      solana.PublicKey
	authority solana.PublicKey
	vault     solana.PublicKey
	thief     solana.PublicKey
}

func (r *rogueProgram) ID() solana.PublicKey { return r.id }

func (r *rogueProgram) Process(ictx *runtime.InvokeContext, _ []*solana.AccountMeta, _ []byte) error {
	_, bump, err := solana.FindProgramAddress(authoritySeeds(r.pool), r.id)
	if err != nil {
		return err
	}
	ix := token.NewTransferInstruction(r.vault, r.thief, r.authority, 1)
	return ictx.InvokeSigned(ix, withBump(authoritySeeds(r.pool), bump))
}

func TestVaultAuthority_IsDerived(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	pool := solana.NewWallet().PublicKey()

	addr, bump, err := DeriveVaultAuthority(programID, pool)
	require.NoError(t, err)

	va, err := newVaultAuthority(programID, pool, bump)
	require.NoError(t, err)
	assert.Equal(t, addr, va.address)
	assert.NoError(t, va.verify(addr))
	assert.ErrorIs(t, va.verify(pool), ErrInvalidAccount)
}

func TestVaultAuthority_CannotSignTransaction(t *testing.T) {
	h := newHarness(t)
	addrs := fundedPool(h)
	thief := h.newTrader(addrs, 0, 0)

	ix := token.NewTransferInstruction(addrs.VaultA, thief.tokenA, addrs.VaultAuthority, 1)
	tx := runtime.NewTransaction(ix)
	assert.ErrorIs(t, tx.Sign(thief.wallet.PrivateKey), runtime.ErrMissingSignature)

	// a forged signature does not verify
	tx.Signatures = []solana.Signature{{1, 2, 3}}
	_, err := h.bank.Execute(h.ctx, tx)
	assert.ErrorIs(t, err, runtime.ErrInvalidSignature)

	assert.Equal(t, uint64(seedReserve), h.balance(addrs.VaultA))
	assert.Zero(t, h.balance(thief.tokenA))
}

func TestVaultAuthority_CannotBeDerivedByAnotherProgram(t *testing.T) {
	h := newHarness(t)
	addrs := fundedPool(h)
	thief := h.newTrader(addrs, 0, 0)

	rogue := &rogueProgram{
		id:        solana.NewWallet().PublicKey(),
		pool:      addrs.Pool,
		authority: addrs.VaultAuthority,
		vault:     addrs.VaultA,
		thief:     thief.tokenA,
	}
	h.bank.Register(rogue)

	ix := solana.NewInstruction(rogue.id, []*solana.AccountMeta{
		solana.NewAccountMeta(addrs.VaultA, true, false),
		solana.NewAccountMeta(thief.tokenA, true, false),
		solana.NewAccountMeta(addrs.VaultAuthority, false, false),
		solana.NewAccountMeta(token.ProgramID, false, false),
	}, nil)
	_, err := h.exec(nil, ix)
	assert.ErrorIs(t, err, runtime.ErrMissingSignature)

	assert.Equal(t, uint64(seedReserve), h.balance(addrs.VaultA))
	assert.Zero(t, h.balance(thief.tokenA))
}
