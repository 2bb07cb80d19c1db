package token

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/storage"
)

type ledger struct {
	t    *testing.T
	bank *runtime.Bank
}

func newLedger(t *testing.T) *ledger {
	logger := zaptest.NewLogger(t)
	bank := runtime.NewBank(storage.NewMemoryStore(), logger)
	bank.Register(NewProgram(logger))
	return &ledger{t: t, bank: bank}
}

func (l *ledger) exec(keys []solana.PrivateKey, ixs ...solana.Instruction) error {
	tx := runtime.NewTransaction(ixs...)
	require.NoError(l.t, tx.Sign(keys...))
	_, err := l.bank.Execute(context.Background(), tx)
	return err
}

func (l *ledger) account(addr solana.PublicKey) *Account {
	raw, err := l.bank.Account(context.Background(), addr)
	require.NoError(l.t, err)
	acc, err := DecodeAccount(raw)
	require.NoError(l.t, err)
	return acc
}

func (l *ledger) mint(addr solana.PublicKey) *Mint {
	raw, err := l.bank.Account(context.Background(), addr)
	require.NoError(l.t, err)
	m, err := DecodeMint(raw)
	require.NoError(l.t, err)
	return m
}

// setup creates a mint and two accounts for alice and bob, with 1000 minted to alice.
func (l *ledger) setup() (mint, alice, bob *solana.Wallet, aliceAcc, bobAcc *solana.Wallet) {
	mint, alice, bob = solana.NewWallet(), solana.NewWallet(), solana.NewWallet()
	aliceAcc, bobAcc = solana.NewWallet(), solana.NewWallet()

	err := l.exec(
		[]solana.PrivateKey{mint.PrivateKey, aliceAcc.PrivateKey, bobAcc.PrivateKey, alice.PrivateKey},
		NewInitializeMintInstruction(mint.PublicKey(), alice.PublicKey(), 6),
		NewInitializeAccountInstruction(aliceAcc.PublicKey(), mint.PublicKey(), alice.PublicKey()),
		NewInitializeAccountInstruction(bobAcc.PublicKey(), mint.PublicKey(), bob.PublicKey()),
		NewMintToInstruction(mint.PublicKey(), aliceAcc.PublicKey(), alice.PublicKey(), 1000),
	)
	require.NoError(l.t, err)
	return
}

func TestProgram_MintAndTransfer(t *testing.T) {
	l := newLedger(t)
	mint, alice, _, aliceAcc, bobAcc := l.setup()

	assert.Equal(t, uint64(1000), l.mint(mint.PublicKey()).Supply)
	assert.Equal(t, uint8(6), l.mint(mint.PublicKey()).Decimals)

	err := l.exec([]solana.PrivateKey{alice.PrivateKey},
		NewTransferInstruction(aliceAcc.PublicKey(), bobAcc.PublicKey(), alice.PublicKey(), 400))
	require.NoError(t, err)

	assert.Equal(t, uint64(600), l.account(aliceAcc.PublicKey()).Amount)
	assert.Equal(t, uint64(400), l.account(bobAcc.PublicKey()).Amount)
	assert.Equal(t, uint64(1000), l.mint(mint.PublicKey()).Supply)
}

func TestProgram_TransferFailures(t *testing.T) {
	l := newLedger(t)
	_, alice, bob, aliceAcc, bobAcc := l.setup()

	tests := []struct {
		name    string
		signer  *solana.Wallet
		ix      solana.Instruction
		wantErr error
	}{
		{
			name:    "insufficient funds",
			signer:  alice,
			ix:      NewTransferInstruction(aliceAcc.PublicKey(), bobAcc.PublicKey(), alice.PublicKey(), 1001),
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "wrong owner",
			signer:  bob,
			ix:      NewTransferInstruction(aliceAcc.PublicKey(), bobAcc.PublicKey(), bob.PublicKey(), 1),
			wantErr: ErrOwnerMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.exec([]solana.PrivateKey{tt.signer.PrivateKey}, tt.ix)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var ixErr *runtime.InstructionError
			require.ErrorAs(t, err, &ixErr)
			assert.Equal(t, ProgramID, ixErr.Program)
		})
	}

	assert.Equal(t, uint64(1000), l.account(aliceAcc.PublicKey()).Amount)
	assert.Equal(t, uint64(0), l.account(bobAcc.PublicKey()).Amount)
}

func TestProgram_MintMismatch(t *testing.T) {
	l := newLedger(t)
	_, alice, _, aliceAcc, _ := l.setup()

	other := solana.NewWallet()
	otherAcc := solana.NewWallet()
	require.NoError(t, l.exec(
		[]solana.PrivateKey{other.PrivateKey, otherAcc.PrivateKey},
		NewInitializeMintInstruction(other.PublicKey(), alice.PublicKey(), 9),
		NewInitializeAccountInstruction(otherAcc.PublicKey(), other.PublicKey(), alice.PublicKey()),
	))

	err := l.exec([]solana.PrivateKey{alice.PrivateKey},
		NewTransferInstruction(aliceAcc.PublicKey(), otherAcc.PublicKey(), alice.PublicKey(), 1))
	assert.ErrorIs(t, err, ErrMintMismatch)
}

func TestProgram_MintToRequiresAuthority(t *testing.T) {
	l := newLedger(t)
	mint, _, bob, _, bobAcc := l.setup()

	err := l.exec([]solana.PrivateKey{bob.PrivateKey},
		NewMintToInstruction(mint.PublicKey(), bobAcc.PublicKey(), bob.PublicKey(), 5))
	assert.ErrorIs(t, err, ErrAuthorityMismatch)
	assert.Equal(t, uint64(1000), l.mint(mint.PublicKey()).Supply)
}

func TestProgram_Burn(t *testing.T) {
	l := newLedger(t)
	mint, alice, _, aliceAcc, _ := l.setup()

	require.NoError(t, l.exec([]solana.PrivateKey{alice.PrivateKey},
		NewBurnInstruction(aliceAcc.PublicKey(), mint.PublicKey(), alice.PublicKey(), 250)))
	assert.Equal(t, uint64(750), l.account(aliceAcc.PublicKey()).Amount)
	assert.Equal(t, uint64(750), l.mint(mint.PublicKey()).Supply)

	err := l.exec([]solana.PrivateKey{alice.PrivateKey},
		NewBurnInstruction(aliceAcc.PublicKey(), mint.PublicKey(), alice.PublicKey(), 751))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestProgram_InitializeTwice(t *testing.T) {
	l := newLedger(t)
	mint, alice, _, _, _ := l.setup()

	err := l.exec([]solana.PrivateKey{mint.PrivateKey},
		NewInitializeMintInstruction(mint.PublicKey(), alice.PublicKey(), 6))
	assert.ErrorIs(t, err, runtime.ErrAccountInUse)
}

func TestProgram_InvalidInstruction(t *testing.T) {
	l := newLedger(t)
	payer := solana.NewWallet()

	ix := solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(payer.PublicKey(), true, true),
	}, []byte{42})
	err := l.exec([]solana.PrivateKey{payer.PrivateKey}, ix)
	assert.ErrorIs(t, err, ErrInvalidInstruction)
}

func TestDecode_RejectsForeignOwner(t *testing.T) {
	data, err := (&Account{Amount: 1}).Marshal()
	require.NoError(t, err)

	_, err = DecodeAccount(&storage.Account{Owner: solana.SystemProgramID, Data: data})
	assert.ErrorIs(t, err, ErrInvalidAccountOwner)

	_, err = DecodeMint(&storage.Account{Owner: ProgramID, Data: data})
	assert.ErrorIs(t, err, ErrInvalidAccountData)
}
