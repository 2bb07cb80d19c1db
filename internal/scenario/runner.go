package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/amm"
	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/storage"
	"github.com/rovshanmuradov/solana-amm/internal/token"
)

// Runner replays scenarios against a bank with the token and pool programs registered.
type Runner struct {
	bank      *runtime.Bank
	programID solana.PublicKey
	logger    *zap.Logger

	payer  *solana.Wallet
	issuer *solana.Wallet // mint authority for every scenario mint

	mints   map[string]solana.PublicKey
	names   map[solana.PublicKey]string
	pools   map[string]*amm.PoolAddresses
	traders map[string]*participant
}

type participant struct {
	wallet *solana.Wallet
	tokens map[solana.PublicKey]solana.PublicKey // mint -> token account
}

// StepResult describes one executed transaction.
type StepResult struct {
	Index    string
	Op       Operation
	Trader   string
	Pool     string
	Error    string // expected program error, if any
	Duration time.Duration
}

type PoolState struct {
	Name     string
	Address  solana.PublicKey
	MintA    string
	MintB    string
	ReserveA uint64
	ReserveB uint64
	LPSupply uint64
	Price    decimal.Decimal // units of B per unit of A, zero when empty
}

type Balance struct {
	Owner  string
	Mint   string
	Amount uint64
}

// Report is the outcome of a successful replay.
type Report struct {
	Name     string
	Steps    []StepResult
	Pools    []PoolState
	Treasury []Balance
	Traders  []Balance
}

func NewRunner(bank *runtime.Bank, programID solana.PublicKey, logger *zap.Logger) *Runner {
	return &Runner{
		bank:      bank,
		programID: programID,
		logger:    logger.Named("runner"),
		payer:     solana.NewWallet(),
		issuer:    solana.NewWallet(),
		mints:     make(map[string]solana.PublicKey),
		names:     make(map[solana.PublicKey]string),
		pools:     make(map[string]*amm.PoolAddresses),
		traders:   make(map[string]*participant),
	}
}

// Run sets up the scenario's mints, pools and traders, then executes its
// steps in order. A step that fails unexpectedly stops the replay.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	if err := r.setup(ctx, sc); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	report := &Report{Name: sc.Name}
	for i, step := range sc.Steps {
		var (
			results []StepResult
			err     error
		)
		if step.Op == OpBatch {
			results, err = r.runBatch(ctx, i, step.Steps)
		} else {
			var res StepResult
			res, err = r.runStep(ctx, fmt.Sprint(i), step)
			results = []StepResult{res}
		}
		report.Steps = append(report.Steps, results...)
		if err != nil {
			return report, err
		}
	}

	return report, r.collect(ctx, sc, report)
}

func (r *Runner) setup(ctx context.Context, sc *Scenario) error {
	if err := r.ensureTreasury(ctx); err != nil {
		return err
	}

	for _, m := range sc.Mints {
		mint := solana.NewWallet()
		ix := token.NewInitializeMintInstruction(mint.PublicKey(), r.issuer.PublicKey(), m.Decimals)
		if err := r.execute(ctx, []*solana.Wallet{mint}, ix); err != nil {
			return fmt.Errorf("mint %q: %w", m.Name, err)
		}
		r.mints[m.Name] = mint.PublicKey()
		r.names[mint.PublicKey()] = m.Name
	}

	for _, p := range sc.Pools {
		mintA, mintB := r.mints[p.Mints[0]], r.mints[p.Mints[1]]
		if bytes.Compare(mintA[:], mintB[:]) > 0 {
			mintA, mintB = mintB, mintA
		}
		accs, err := amm.NewCreatePoolAccounts(r.programID, r.payer.PublicKey(), mintA, mintB)
		if err != nil {
			return fmt.Errorf("pool %q: %w", p.Name, err)
		}
		if err := r.execute(ctx, []*solana.Wallet{r.payer}, amm.NewCreatePoolInstruction(r.programID, accs)); err != nil {
			return fmt.Errorf("pool %q: %w", p.Name, err)
		}
		addrs, err := amm.DerivePoolAddresses(r.programID, mintA, mintB)
		if err != nil {
			return fmt.Errorf("pool %q: %w", p.Name, err)
		}
		r.pools[p.Name] = addrs
		r.names[addrs.LPMint] = p.Name + "-lp"
		r.logger.Info("Pool created",
			zap.String("pool", p.Name),
			zap.Stringer("address", addrs.Pool))
	}

	for _, t := range sc.Traders {
		tr := &participant{wallet: solana.NewWallet(), tokens: make(map[solana.PublicKey]solana.PublicKey)}
		r.traders[t.Name] = tr
		for name, amount := range t.Balances {
			mint := r.mints[name]
			account, err := r.tokenAccount(ctx, tr, mint)
			if err != nil {
				return fmt.Errorf("trader %q: %w", t.Name, err)
			}
			if amount == 0 {
				continue
			}
			ix := token.NewMintToInstruction(mint, account, r.issuer.PublicKey(), amount)
			if err := r.execute(ctx, []*solana.Wallet{r.issuer}, ix); err != nil {
				return fmt.Errorf("trader %q: fund %s: %w", t.Name, name, err)
			}
		}
	}
	return nil
}

// ensureTreasury initializes the treasury unless the store already has it.
func (r *Runner) ensureTreasury(ctx context.Context) error {
	treasury, _, err := amm.DeriveTreasury(r.programID)
	if err != nil {
		return err
	}
	_, err = r.bank.Account(ctx, treasury)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrAccountNotFound):
		return err
	}
	return r.execute(ctx, []*solana.Wallet{r.payer},
		amm.NewInitTreasuryInstruction(r.programID, r.payer.PublicKey(), treasury))
}

// tokenAccount returns the participant's account for mint, creating it on first use.
func (r *Runner) tokenAccount(ctx context.Context, p *participant, mint solana.PublicKey) (solana.PublicKey, error) {
	if acc, ok := p.tokens[mint]; ok {
		return acc, nil
	}
	account := solana.NewWallet()
	ix := token.NewInitializeAccountInstruction(account.PublicKey(), mint, p.wallet.PublicKey())
	if err := r.execute(ctx, []*solana.Wallet{account}, ix); err != nil {
		return solana.PublicKey{}, err
	}
	p.tokens[mint] = account.PublicKey()
	return account.PublicKey(), nil
}

func (r *Runner) runStep(ctx context.Context, index string, s Step) (StepResult, error) {
	res := StepResult{Index: index, Op: s.Op, Trader: s.Trader, Pool: s.Pool}

	tx, err := r.transaction(ctx, s)
	if err != nil {
		return res, fmt.Errorf("step %s (%s): %w", index, s.Op, err)
	}

	start := time.Now()
	_, err = r.bank.Execute(ctx, tx)
	res.Duration = time.Since(start)

	return r.check(res, s, err)
}

func (r *Runner) runBatch(ctx context.Context, index int, steps []Step) ([]StepResult, error) {
	txs := make([]*runtime.Transaction, len(steps))
	results := make([]StepResult, len(steps))
	for i, s := range steps {
		results[i] = StepResult{Index: fmt.Sprintf("%d.%d", index, i), Op: s.Op, Trader: s.Trader, Pool: s.Pool}
		tx, err := r.transaction(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("step %s (%s): %w", results[i].Index, s.Op, err)
		}
		txs[i] = tx
	}

	start := time.Now()
	batch := r.bank.ExecuteBatch(ctx, txs, len(txs))
	elapsed := time.Since(start)

	r.logger.Debug("Batch executed",
		zap.Int("step", index),
		zap.Int("transactions", len(txs)),
		zap.Duration("duration", elapsed))

	var errs []error
	for i, br := range batch {
		results[i].Duration = elapsed
		res, err := r.check(results[i], steps[i], br.Err)
		results[i] = res
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// check compares the execution outcome with the step's expectation.
func (r *Runner) check(res StepResult, s Step, err error) (StepResult, error) {
	if s.ExpectError == "" {
		if err != nil {
			return res, fmt.Errorf("step %s (%s): %w", res.Index, s.Op, err)
		}
		r.logger.Debug("Step executed", zap.String("step", res.Index), zap.String("op", string(s.Op)))
		return res, nil
	}

	if err == nil {
		return res, fmt.Errorf("step %s (%s): expected %s, got success", res.Index, s.Op, s.ExpectError)
	}
	if !matchesError(err, s.ExpectError) {
		return res, fmt.Errorf("step %s (%s): expected %s: %w", res.Index, s.Op, s.ExpectError, err)
	}
	res.Error = s.ExpectError
	r.logger.Debug("Step failed as expected",
		zap.String("step", res.Index),
		zap.String("op", string(s.Op)),
		zap.Error(err))
	return res, nil
}

// matchesError accepts a pool program error name or any substring of the error text.
func matchesError(err error, want string) bool {
	var pe *amm.Error
	if errors.As(err, &pe) && pe.Name == want {
		return true
	}
	return strings.Contains(err.Error(), want)
}

func (r *Runner) transaction(ctx context.Context, s Step) (*runtime.Transaction, error) {
	addrs := r.pools[s.Pool]
	tr := r.traders[s.Trader]

	var ix solana.Instruction
	switch s.Op {
	case OpAddLiquidity, OpRemoveLiquidity:
		accs, err := r.liquidityAccounts(ctx, tr, addrs)
		if err != nil {
			return nil, err
		}
		if s.Op == OpAddLiquidity {
			ix = amm.NewAddLiquidityInstruction(r.programID, accs,
				s.Amounts[r.names[addrs.MintA]], s.Amounts[r.names[addrs.MintB]])
			break
		}
		shares := s.Shares
		if s.AllShares {
			if shares, err = r.balance(ctx, accs.UserLP); err != nil {
				return nil, err
			}
		}
		ix = amm.NewRemoveLiquidityInstruction(r.programID, accs, shares,
			s.MinAmounts[r.names[addrs.MintA]], s.MinAmounts[r.names[addrs.MintB]])

	case OpSwap:
		inputMint := r.mints[s.Input]
		outputMint := addrs.MintB
		if inputMint.Equals(addrs.MintB) {
			outputMint = addrs.MintA
		}
		in, err := r.tokenAccount(ctx, tr, inputMint)
		if err != nil {
			return nil, err
		}
		out, err := r.tokenAccount(ctx, tr, outputMint)
		if err != nil {
			return nil, err
		}
		accs, err := addrs.SwapAccounts(r.programID, tr.wallet.PublicKey(), in, out, inputMint)
		if err != nil {
			return nil, err
		}
		minOut := s.MinOut
		if s.SlippageBps != nil {
			if minOut, err = r.quoteMinOut(ctx, s.Pool, inputMint, s.Amount, *s.SlippageBps); err != nil {
				return nil, err
			}
		}
		ix = amm.NewSwapInstruction(r.programID, accs, s.Amount, minOut)

	default:
		return nil, fmt.Errorf("unsupported operation: %q", s.Op)
	}

	return r.sign([]*solana.Wallet{tr.wallet}, ix)
}

// quoteMinOut quotes the swap against current reserves. A pool that cannot
// quote yields no bound and the program reports the failure.
func (r *Runner) quoteMinOut(ctx context.Context, pool string, inputMint solana.PublicKey, amount uint64, slippageBps uint16) (uint64, error) {
	p, err := r.Pool(ctx, pool)
	if err != nil {
		return 0, err
	}
	quote, err := p.QuoteSwap(inputMint, amount)
	if err != nil {
		r.logger.Debug("Swap not quotable", zap.String("pool", pool), zap.Error(err))
		return 0, nil
	}
	return amm.MinAmountOut(quote.AmountOut, slippageBps), nil
}

func (r *Runner) liquidityAccounts(ctx context.Context, tr *participant, addrs *amm.PoolAddresses) (*amm.LiquidityAccounts, error) {
	a, err := r.tokenAccount(ctx, tr, addrs.MintA)
	if err != nil {
		return nil, err
	}
	b, err := r.tokenAccount(ctx, tr, addrs.MintB)
	if err != nil {
		return nil, err
	}
	lp, err := r.tokenAccount(ctx, tr, addrs.LPMint)
	if err != nil {
		return nil, err
	}
	return addrs.LiquidityAccounts(tr.wallet.PublicKey(), a, b, lp), nil
}

func (r *Runner) sign(signers []*solana.Wallet, ixs ...solana.Instruction) (*runtime.Transaction, error) {
	keys := make([]solana.PrivateKey, len(signers))
	for i, s := range signers {
		keys[i] = s.PrivateKey
	}
	tx := runtime.NewTransaction(ixs...)
	if err := tx.Sign(keys...); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *Runner) execute(ctx context.Context, signers []*solana.Wallet, ixs ...solana.Instruction) error {
	tx, err := r.sign(signers, ixs...)
	if err != nil {
		return err
	}
	_, err = r.bank.Execute(ctx, tx)
	return err
}

func (r *Runner) balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	raw, err := r.bank.Account(ctx, account)
	if err != nil {
		return 0, err
	}
	acc, err := token.DecodeAccount(raw)
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

// Pool loads the current state of a named scenario pool.
func (r *Runner) Pool(ctx context.Context, name string) (*amm.Pool, error) {
	addrs, ok := r.pools[name]
	if !ok {
		return nil, fmt.Errorf("unknown pool %q", name)
	}
	raw, err := r.bank.Account(ctx, addrs.Pool)
	if err != nil {
		return nil, err
	}
	return amm.DecodePool(r.programID, raw)
}

func (r *Runner) collect(ctx context.Context, sc *Scenario, report *Report) error {
	for _, p := range sc.Pools {
		pool, err := r.Pool(ctx, p.Name)
		if err != nil {
			return err
		}
		price, err := pool.SpotPrice(pool.MintA)
		if err != nil && !errors.Is(err, amm.ErrPoolEmpty) {
			return err
		}
		report.Pools = append(report.Pools, PoolState{
			Name:     p.Name,
			Address:  r.pools[p.Name].Pool,
			MintA:    r.names[pool.MintA],
			MintB:    r.names[pool.MintB],
			ReserveA: pool.ReserveA,
			ReserveB: pool.ReserveB,
			LPSupply: pool.LPSupply,
			Price:    price,
		})
	}

	treasuryAddr, _, err := amm.DeriveTreasury(r.programID)
	if err != nil {
		return err
	}
	raw, err := r.bank.Account(ctx, treasuryAddr)
	if err != nil {
		return err
	}
	treasury, err := amm.DecodeTreasury(r.programID, raw)
	if err != nil {
		return err
	}
	for _, m := range sc.Mints {
		report.Treasury = append(report.Treasury, Balance{
			Owner:  "treasury",
			Mint:   m.Name,
			Amount: treasury.Balance(r.mints[m.Name]),
		})
	}

	for _, t := range sc.Traders {
		tr := r.traders[t.Name]
		for _, m := range sc.Mints {
			account, ok := tr.tokens[r.mints[m.Name]]
			if !ok {
				continue
			}
			amount, err := r.balance(ctx, account)
			if err != nil {
				return err
			}
			report.Traders = append(report.Traders, Balance{Owner: t.Name, Mint: m.Name, Amount: amount})
		}
		for _, p := range sc.Pools {
			account, ok := tr.tokens[r.pools[p.Name].LPMint]
			if !ok {
				continue
			}
			amount, err := r.balance(ctx, account)
			if err != nil {
				return err
			}
			report.Traders = append(report.Traders, Balance{Owner: t.Name, Mint: p.Name + "-lp", Amount: amount})
		}
	}
	return nil
}

// Write renders the report as aligned text tables.
func (rep *Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "scenario\t%s\n\n", rep.Name)

	fmt.Fprintln(tw, "step\top\ttrader\tpool\texpected error\tduration")
	for _, s := range rep.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Index, s.Op, s.Trader, s.Pool, s.Error, s.Duration)
	}

	fmt.Fprintln(tw, "\npool\taddress\treserve a\treserve b\tlp supply\tprice b/a")
	for _, p := range rep.Pools {
		fmt.Fprintf(tw, "%s\t%s\t%d %s\t%d %s\t%d\t%s\n",
			p.Name, p.Address, p.ReserveA, p.MintA, p.ReserveB, p.MintB, p.LPSupply, p.Price.StringFixed(6))
	}

	fmt.Fprintln(tw, "\nowner\tmint\tamount")
	for _, b := range slices.Concat(rep.Treasury, rep.Traders) {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", b.Owner, b.Mint, b.Amount)
	}

	return tw.Flush()
}
