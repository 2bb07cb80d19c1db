package amm

import (
	"bytes"
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/storage"
	"github.com/rovshanmuradov/solana-amm/internal/token"
)

type harness struct {
	t         *testing.T
	ctx       context.Context
	bank      *runtime.Bank
	programID solana.PublicKey
	payer     *solana.Wallet
	issuer    *solana.Wallet // authority of every test mint
}

type trader struct {
	wallet *solana.Wallet
	tokenA solana.PublicKey
	tokenB solana.PublicKey
	lp     solana.PublicKey
}

func newHarness(t *testing.T, opts ...runtime.Option) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	programID := solana.NewWallet().PublicKey()

	program, err := NewProgram(Config{
		ProgramID:      programID,
		FeeBps:         DefaultFeeBps,
		ProtocolFeeBps: DefaultProtocolFeeBps,
		LPDecimals:     DefaultLPDecimals,
	}, logger)
	require.NoError(t, err)

	bank := runtime.NewBank(storage.NewMemoryStore(), logger, opts...)
	bank.Register(token.NewProgram(logger), program)

	return &harness{
		t:         t,
		ctx:       context.Background(),
		bank:      bank,
		programID: programID,
		payer:     solana.NewWallet(),
		issuer:    solana.NewWallet(),
	}
}

func (h *harness) tx(signers []*solana.Wallet, ixs ...solana.Instruction) *runtime.Transaction {
	h.t.Helper()
	keys := make([]solana.PrivateKey, len(signers))
	for i, s := range signers {
		keys[i] = s.PrivateKey
	}
	tx := runtime.NewTransaction(ixs...)
	require.NoError(h.t, tx.Sign(keys...))
	return tx
}

func (h *harness) exec(signers []*solana.Wallet, ixs ...solana.Instruction) (*runtime.Receipt, error) {
	h.t.Helper()
	return h.bank.Execute(h.ctx, h.tx(signers, ixs...))
}

func (h *harness) mustExec(signers []*solana.Wallet, ixs ...solana.Instruction) *runtime.Receipt {
	h.t.Helper()
	receipt, err := h.exec(signers, ixs...)
	require.NoError(h.t, err)
	return receipt
}

func (h *harness) initTreasury() solana.PublicKey {
	h.t.Helper()
	treasury, _, err := DeriveTreasury(h.programID)
	require.NoError(h.t, err)
	h.mustExec([]*solana.Wallet{h.payer}, NewInitTreasuryInstruction(h.programID, h.payer.PublicKey(), treasury))
	return treasury
}

func (h *harness) newMint() solana.PublicKey {
	h.t.Helper()
	mint := solana.NewWallet()
	h.mustExec([]*solana.Wallet{mint}, token.NewInitializeMintInstruction(mint.PublicKey(), h.issuer.PublicKey(), 9))
	return mint.PublicKey()
}

// newMintPair returns two mints in canonical order.
func (h *harness) newMintPair() (solana.PublicKey, solana.PublicKey) {
	a, b := h.newMint(), h.newMint()
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return a, b
}

func (h *harness) newTokenAccount(mint, owner solana.PublicKey) solana.PublicKey {
	h.t.Helper()
	account := solana.NewWallet()
	h.mustExec([]*solana.Wallet{account}, token.NewInitializeAccountInstruction(account.PublicKey(), mint, owner))
	return account.PublicKey()
}

func (h *harness) fund(mint, account solana.PublicKey, amount uint64) {
	h.t.Helper()
	h.mustExec([]*solana.Wallet{h.issuer}, token.NewMintToInstruction(mint, account, h.issuer.PublicKey(), amount))
}

func (h *harness) createPool(mintA, mintB solana.PublicKey) *PoolAddresses {
	h.t.Helper()
	accs, err := NewCreatePoolAccounts(h.programID, h.payer.PublicKey(), mintA, mintB)
	require.NoError(h.t, err)
	h.mustExec([]*solana.Wallet{h.payer}, NewCreatePoolInstruction(h.programID, accs))

	addrs, err := DerivePoolAddresses(h.programID, mintA, mintB)
	require.NoError(h.t, err)
	return addrs
}

// setupPool initializes the treasury and a pool over a fresh mint pair.
func (h *harness) setupPool() *PoolAddresses {
	h.initTreasury()
	return h.createPool(h.newMintPair())
}

func (h *harness) newTrader(addrs *PoolAddresses, amountA, amountB uint64) *trader {
	h.t.Helper()
	w := solana.NewWallet()
	tr := &trader{
		wallet: w,
		tokenA: h.newTokenAccount(addrs.MintA, w.PublicKey()),
		tokenB: h.newTokenAccount(addrs.MintB, w.PublicKey()),
		lp:     h.newTokenAccount(addrs.LPMint, w.PublicKey()),
	}
	if amountA > 0 {
		h.fund(addrs.MintA, tr.tokenA, amountA)
	}
	if amountB > 0 {
		h.fund(addrs.MintB, tr.tokenB, amountB)
	}
	return tr
}

func (h *harness) addLiquidity(addrs *PoolAddresses, tr *trader, amountA, amountB uint64) error {
	h.t.Helper()
	accs := addrs.LiquidityAccounts(tr.wallet.PublicKey(), tr.tokenA, tr.tokenB, tr.lp)
	_, err := h.exec([]*solana.Wallet{tr.wallet}, NewAddLiquidityInstruction(h.programID, accs, amountA, amountB))
	return err
}

func (h *harness) removeLiquidity(addrs *PoolAddresses, tr *trader, shares, minA, minB uint64) error {
	h.t.Helper()
	accs := addrs.LiquidityAccounts(tr.wallet.PublicKey(), tr.tokenA, tr.tokenB, tr.lp)
	_, err := h.exec([]*solana.Wallet{tr.wallet}, NewRemoveLiquidityInstruction(h.programID, accs, shares, minA, minB))
	return err
}

func (h *harness) swapTx(addrs *PoolAddresses, tr *trader, aToB bool, amountIn, minOut uint64) *runtime.Transaction {
	h.t.Helper()
	in, out, mint := tr.tokenA, tr.tokenB, addrs.MintA
	if !aToB {
		in, out, mint = tr.tokenB, tr.tokenA, addrs.MintB
	}
	accs, err := addrs.SwapAccounts(h.programID, tr.wallet.PublicKey(), in, out, mint)
	require.NoError(h.t, err)
	return h.tx([]*solana.Wallet{tr.wallet}, NewSwapInstruction(h.programID, accs, amountIn, minOut))
}

func (h *harness) swap(addrs *PoolAddresses, tr *trader, aToB bool, amountIn, minOut uint64) error {
	h.t.Helper()
	_, err := h.bank.Execute(h.ctx, h.swapTx(addrs, tr, aToB, amountIn, minOut))
	return err
}

func (h *harness) balance(account solana.PublicKey) uint64 {
	h.t.Helper()
	raw, err := h.bank.Account(h.ctx, account)
	require.NoError(h.t, err)
	acc, err := token.DecodeAccount(raw)
	require.NoError(h.t, err)
	return acc.Amount
}

func (h *harness) supply(mint solana.PublicKey) uint64 {
	h.t.Helper()
	raw, err := h.bank.Account(h.ctx, mint)
	require.NoError(h.t, err)
	m, err := token.DecodeMint(raw)
	require.NoError(h.t, err)
	return m.Supply
}

func (h *harness) pool(addrs *PoolAddresses) *Pool {
	h.t.Helper()
	raw, err := h.bank.Account(h.ctx, addrs.Pool)
	require.NoError(h.t, err)
	p, err := DecodePool(h.programID, raw)
	require.NoError(h.t, err)
	return p
}

func (h *harness) treasury() *Treasury {
	h.t.Helper()
	addr, _, err := DeriveTreasury(h.programID)
	require.NoError(h.t, err)
	raw, err := h.bank.Account(h.ctx, addr)
	require.NoError(h.t, err)
	tr, err := DecodeTreasury(h.programID, raw)
	require.NoError(h.t, err)
	return tr
}

func (h *harness) treasuryVault(mint solana.PublicKey) solana.PublicKey {
	h.t.Helper()
	addr, _, err := DeriveTreasuryVault(h.programID, mint)
	require.NoError(h.t, err)
	return addr
}

// snapshot captures the raw bytes of accounts for before/after comparison.
func (h *harness) snapshot(accounts ...solana.PublicKey) map[solana.PublicKey][]byte {
	h.t.Helper()
	out := make(map[solana.PublicKey][]byte, len(accounts))
	for _, addr := range accounts {
		raw, err := h.bank.Account(h.ctx, addr)
		require.NoError(h.t, err)
		out[addr] = raw.Data
	}
	return out
}

// requireVaultsMatchReserves checks that vault balances equal the recorded reserves.
func (h *harness) requireVaultsMatchReserves(addrs *PoolAddresses) {
	h.t.Helper()
	p := h.pool(addrs)
	require.Equal(h.t, p.ReserveA, h.balance(addrs.VaultA), "vault a")
	require.Equal(h.t, p.ReserveB, h.balance(addrs.VaultB), "vault b")
	require.Equal(h.t, p.LPSupply, h.supply(addrs.LPMint), "lp supply")
}

func signersOf(tr *trader) []*solana.Wallet {
	return []*solana.Wallet{tr.wallet}
}
