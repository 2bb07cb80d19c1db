// internal/amm/instructions.go
package amm

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-amm/internal/token"
)

var (
	instructionInitTreasury    = discriminator("global", "init_treasury")
	instructionCreatePool      = discriminator("global", "create_pool")
	instructionAddLiquidity    = discriminator("global", "add_liquidity")
	instructionRemoveLiquidity = discriminator("global", "remove_liquidity")
	instructionSwap            = discriminator("global", "swap")
)

type addLiquidityArgs struct {
	AmountA uint64
	AmountB uint64
}

type removeLiquidityArgs struct {
	Shares     uint64
	MinAmountA uint64
	MinAmountB uint64
}

type swapArgs struct {
	AmountIn uint64
	MinOut   uint64
}

func encodeInstruction(d Discriminator, args interface{}) []byte {
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if args != nil {
		// args are fixed-size structs of integers
		_ = bin.NewBorshEncoder(buf).Encode(args)
	}
	return buf.Bytes()
}

func readonly(key solana.PublicKey) *solana.AccountMeta { return solana.NewAccountMeta(key, false, false) }
func writable(key solana.PublicKey) *solana.AccountMeta { return solana.NewAccountMeta(key, true, false) }
func signer(key solana.PublicKey) *solana.AccountMeta   { return solana.NewAccountMeta(key, false, true) }

// NewInitTreasuryInstruction creates the treasury singleton paid by payer.
func NewInitTreasuryInstruction(programID, payer, treasury solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(programID, []*solana.AccountMeta{
		solana.NewAccountMeta(payer, true, true),
		writable(treasury),
	}, encodeInstruction(instructionInitTreasury, nil))
}

// CreatePoolAccounts lists the accounts of createPool in instruction order.
type CreatePoolAccounts struct {
	Payer          solana.PublicKey
	MintA          solana.PublicKey
	MintB          solana.PublicKey
	Pool           solana.PublicKey
	LPMint         solana.PublicKey
	VaultAuthority solana.PublicKey
	VaultA         solana.PublicKey
	VaultB         solana.PublicKey
	Treasury       solana.PublicKey
	TreasuryVaultA solana.PublicKey
	TreasuryVaultB solana.PublicKey
}

// NewCreatePoolAccounts derives every account of createPool for the pair.
func NewCreatePoolAccounts(programID, payer, mintA, mintB solana.PublicKey) (*CreatePoolAccounts, error) {
	addrs, err := DerivePoolAddresses(programID, mintA, mintB)
	if err != nil {
		return nil, err
	}
	treasury, _, err := DeriveTreasury(programID)
	if err != nil {
		return nil, err
	}
	tvA, _, err := DeriveTreasuryVault(programID, mintA)
	if err != nil {
		return nil, err
	}
	tvB, _, err := DeriveTreasuryVault(programID, mintB)
	if err != nil {
		return nil, err
	}
	return &CreatePoolAccounts{
		Payer:          payer,
		MintA:          mintA,
		MintB:          mintB,
		Pool:           addrs.Pool,
		LPMint:         addrs.LPMint,
		VaultAuthority: addrs.VaultAuthority,
		VaultA:         addrs.VaultA,
		VaultB:         addrs.VaultB,
		Treasury:       treasury,
		TreasuryVaultA: tvA,
		TreasuryVaultB: tvB,
	}, nil
}

// NewCreatePoolInstruction builds createPool from explicit accounts.
func NewCreatePoolInstruction(programID solana.PublicKey, a *CreatePoolAccounts) solana.Instruction {
	return solana.NewInstruction(programID, []*solana.AccountMeta{
		solana.NewAccountMeta(a.Payer, true, true),
		readonly(a.MintA),
		readonly(a.MintB),
		writable(a.Pool),
		writable(a.LPMint),
		readonly(a.VaultAuthority),
		writable(a.VaultA),
		writable(a.VaultB),
		readonly(a.Treasury),
		writable(a.TreasuryVaultA),
		writable(a.TreasuryVaultB),
		readonly(token.ProgramID),
	}, encodeInstruction(instructionCreatePool, nil))
}

// LiquidityAccounts lists the accounts of addLiquidity and removeLiquidity.
type LiquidityAccounts struct {
	User           solana.PublicKey
	Pool           solana.PublicKey
	UserTokenA     solana.PublicKey
	UserTokenB     solana.PublicKey
	VaultA         solana.PublicKey
	VaultB         solana.PublicKey
	LPMint         solana.PublicKey
	UserLP         solana.PublicKey
	VaultAuthority solana.PublicKey
}

// LiquidityAccounts fills the pool side of a liquidity instruction.
func (p *PoolAddresses) LiquidityAccounts(user, userTokenA, userTokenB, userLP solana.PublicKey) *LiquidityAccounts {
	return &LiquidityAccounts{
		User:           user,
		Pool:           p.Pool,
		UserTokenA:     userTokenA,
		UserTokenB:     userTokenB,
		VaultA:         p.VaultA,
		VaultB:         p.VaultB,
		LPMint:         p.LPMint,
		UserLP:         userLP,
		VaultAuthority: p.VaultAuthority,
	}
}

func (a *LiquidityAccounts) metas() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		signer(a.User),
		writable(a.Pool),
		writable(a.UserTokenA),
		writable(a.UserTokenB),
		writable(a.VaultA),
		writable(a.VaultB),
		writable(a.LPMint),
		writable(a.UserLP),
		readonly(a.VaultAuthority),
		readonly(token.ProgramID),
	}
}

// NewAddLiquidityInstruction deposits amountA and amountB for LP tokens.
func NewAddLiquidityInstruction(programID solana.PublicKey, a *LiquidityAccounts, amountA, amountB uint64) solana.Instruction {
	return solana.NewInstruction(programID, a.metas(),
		encodeInstruction(instructionAddLiquidity, addLiquidityArgs{AmountA: amountA, AmountB: amountB}))
}

// NewRemoveLiquidityInstruction burns shares for a proportional part of both reserves.
func NewRemoveLiquidityInstruction(programID solana.PublicKey, a *LiquidityAccounts, shares, minA, minB uint64) solana.Instruction {
	return solana.NewInstruction(programID, a.metas(),
		encodeInstruction(instructionRemoveLiquidity, removeLiquidityArgs{Shares: shares, MinAmountA: minA, MinAmountB: minB}))
}

// SwapAccounts lists the accounts of swap in instruction order.
type SwapAccounts struct {
	User           solana.PublicKey
	Pool           solana.PublicKey
	UserInput      solana.PublicKey
	UserOutput     solana.PublicKey
	VaultA         solana.PublicKey
	VaultB         solana.PublicKey
	VaultAuthority solana.PublicKey
	Treasury       solana.PublicKey
	TreasuryVault  solana.PublicKey // fee vault of the input mint
}

// SwapAccounts fills the pool side of a swap paying inputMint.
func (p *PoolAddresses) SwapAccounts(programID, user, userInput, userOutput, inputMint solana.PublicKey) (*SwapAccounts, error) {
	treasury, _, err := DeriveTreasury(programID)
	if err != nil {
		return nil, err
	}
	treasuryVault, _, err := DeriveTreasuryVault(programID, inputMint)
	if err != nil {
		return nil, err
	}
	return &SwapAccounts{
		User:           user,
		Pool:           p.Pool,
		UserInput:      userInput,
		UserOutput:     userOutput,
		VaultA:         p.VaultA,
		VaultB:         p.VaultB,
		VaultAuthority: p.VaultAuthority,
		Treasury:       treasury,
		TreasuryVault:  treasuryVault,
	}, nil
}

// NewSwapInstruction sells amountIn of the input account's mint for at least minOut.
func NewSwapInstruction(programID solana.PublicKey, a *SwapAccounts, amountIn, minOut uint64) solana.Instruction {
	return solana.NewInstruction(programID, []*solana.AccountMeta{
		signer(a.User),
		writable(a.Pool),
		writable(a.UserInput),
		writable(a.UserOutput),
		writable(a.VaultA),
		writable(a.VaultB),
		readonly(a.VaultAuthority),
		writable(a.Treasury),
		writable(a.TreasuryVault),
		readonly(token.ProgramID),
	}, encodeInstruction(instructionSwap, swapArgs{AmountIn: amountIn, MinOut: minOut}))
}
