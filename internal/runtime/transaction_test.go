package runtime

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction_CollectsSignersInOrder(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	alice, bob := solana.NewWallet(), solana.NewWallet()
	account := solana.NewWallet().PublicKey()

	tx := NewTransaction(
		solana.NewInstruction(program, []*solana.AccountMeta{
			solana.NewAccountMeta(account, false, false),
			solana.NewAccountMeta(bob.PublicKey(), false, true),
		}, []byte{1}),
		solana.NewInstruction(program, []*solana.AccountMeta{
			solana.NewAccountMeta(account, true, false),
			solana.NewAccountMeta(alice.PublicKey(), true, true),
			solana.NewAccountMeta(bob.PublicKey(), false, true),
		}, []byte{2}),
	)
	assert.Equal(t, []solana.PublicKey{bob.PublicKey(), alice.PublicKey()}, tx.Signers)

	access := tx.accessMap()
	assert.True(t, access[account], "writable in any instruction means writable")
	assert.True(t, access[alice.PublicKey()])
	assert.False(t, access[bob.PublicKey()])
	assert.False(t, access[program])

	require.NoError(t, tx.Sign(alice.PrivateKey, bob.PrivateKey))
	require.Len(t, tx.Signatures, 2)
	assert.NoError(t, tx.Verify())
	assert.Equal(t, tx.Signatures[0], tx.Signature())
}

func TestTransaction_MessageIsDeterministic(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	ix := solana.NewInstruction(program, []*solana.AccountMeta{
		solana.NewAccountMeta(solana.NewWallet().PublicKey(), true, true),
	}, []byte{9, 9})

	first, err := NewTransaction(ix).Message()
	require.NoError(t, err)
	second, err := NewTransaction(ix).Message()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, solana.Signature{}, NewTransaction(ix).Signature())
}
