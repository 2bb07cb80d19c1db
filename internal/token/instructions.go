// internal/token/instructions.go
package token

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction tags, first byte of the instruction data.
const (
	InstructionInitializeMint uint8 = iota
	InstructionInitializeAccount
	InstructionTransfer
	InstructionMintTo
	InstructionBurn
)

type initializeMintArgs struct {
	Decimals  uint8
	Authority solana.PublicKey
}

type amountArgs struct {
	Amount uint64
}

func instructionData(tag uint8, args interface{}) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(tag)
	if args != nil {
		// fixed-size structs of primitives cannot fail to encode
		_ = bin.NewBorshEncoder(buf).Encode(args)
	}
	return buf.Bytes()
}

// NewInitializeMintInstruction creates a mint at the mint address, which must sign.
func NewInitializeMintInstruction(mint, authority solana.PublicKey, decimals uint8) solana.Instruction {
	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(mint, true, true),
	}, instructionData(InstructionInitializeMint, initializeMintArgs{Decimals: decimals, Authority: authority}))
}

// NewInitializeAccountInstruction creates an empty token account, which must sign.
func NewInitializeAccountInstruction(account, mint, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(account, true, true),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(owner, false, false),
	}, instructionData(InstructionInitializeAccount, nil))
}

// NewTransferInstruction moves amount from source to destination; owner signs.
func NewTransferInstruction(source, destination, owner solana.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(owner, false, true),
	}, instructionData(InstructionTransfer, amountArgs{Amount: amount}))
}

// NewMintToInstruction mints amount into destination; the mint authority signs.
func NewMintToInstruction(mint, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(authority, false, true),
	}, instructionData(InstructionMintTo, amountArgs{Amount: amount}))
}

// NewBurnInstruction burns amount from account; the account owner signs.
func NewBurnInstruction(account, mint, owner solana.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(account, true, false),
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(owner, false, true),
	}, instructionData(InstructionBurn, amountArgs{Amount: amount}))
}
