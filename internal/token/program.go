// internal/token/program.go
package token

import (
	"fmt"
	"math/bits"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/runtime"
)

// Program is a minimal fungible-token ledger: mints, accounts, transfer,
// mint-to and burn. Every instruction either applies fully or returns an error
// before writing.
type Program struct {
	logger *zap.Logger
}

var _ runtime.Program = (*Program)(nil)

// NewProgram creates the token ledger program.
func NewProgram(logger *zap.Logger) *Program {
	return &Program{logger: logger.Named("token")}
}

// ID returns the token program id.
func (p *Program) ID() solana.PublicKey {
	return ProgramID
}

// Process dispatches on the instruction tag.
func (p *Program) Process(ictx *runtime.InvokeContext, accounts []*solana.AccountMeta, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstruction
	}
	args := data[1:]

	switch data[0] {
	case InstructionInitializeMint:
		var a initializeMintArgs
		if err := decodeArgs(args, &a); err != nil {
			return err
		}
		if len(accounts) < 1 {
			return ErrInvalidInstruction
		}
		return p.initializeMint(ictx, accounts[0].PublicKey, a)

	case InstructionInitializeAccount:
		if len(accounts) < 3 {
			return ErrInvalidInstruction
		}
		return p.initializeAccount(ictx, accounts[0].PublicKey, accounts[1].PublicKey, accounts[2].PublicKey)

	case InstructionTransfer:
		var a amountArgs
		if err := decodeArgs(args, &a); err != nil {
			return err
		}
		if len(accounts) < 3 {
			return ErrInvalidInstruction
		}
		return p.transfer(ictx, accounts[0].PublicKey, accounts[1].PublicKey, accounts[2].PublicKey, a.Amount)

	case InstructionMintTo:
		var a amountArgs
		if err := decodeArgs(args, &a); err != nil {
			return err
		}
		if len(accounts) < 3 {
			return ErrInvalidInstruction
		}
		return p.mintTo(ictx, accounts[0].PublicKey, accounts[1].PublicKey, accounts[2].PublicKey, a.Amount)

	case InstructionBurn:
		var a amountArgs
		if err := decodeArgs(args, &a); err != nil {
			return err
		}
		if len(accounts) < 3 {
			return ErrInvalidInstruction
		}
		return p.burn(ictx, accounts[0].PublicKey, accounts[1].PublicKey, accounts[2].PublicKey, a.Amount)

	default:
		return fmt.Errorf("%w: tag %d", ErrInvalidInstruction, data[0])
	}
}

func decodeArgs(data []byte, v interface{}) error {
	if err := bin.NewBorshDecoder(data).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}
	return nil
}

func (p *Program) initializeMint(ictx *runtime.InvokeContext, mint solana.PublicKey, a initializeMintArgs) error {
	if !ictx.IsSigner(mint) {
		return fmt.Errorf("%w: mint %s", ErrMissingSigner, mint)
	}
	data, err := (&Mint{Authority: a.Authority, Decimals: a.Decimals}).Marshal()
	if err != nil {
		return err
	}
	if err := ictx.Create(mint, data); err != nil {
		return err
	}
	p.logger.Debug("Mint initialized",
		zap.Stringer("mint", mint),
		zap.Stringer("authority", a.Authority),
		zap.Uint8("decimals", a.Decimals))
	return nil
}

func (p *Program) initializeAccount(ictx *runtime.InvokeContext, account, mint, owner solana.PublicKey) error {
	if !ictx.IsSigner(account) {
		return fmt.Errorf("%w: account %s", ErrMissingSigner, account)
	}
	if _, err := loadMint(ictx, mint); err != nil {
		return err
	}
	data, err := (&Account{Mint: mint, Owner: owner}).Marshal()
	if err != nil {
		return err
	}
	if err := ictx.Create(account, data); err != nil {
		return err
	}
	p.logger.Debug("Token account initialized",
		zap.Stringer("account", account),
		zap.Stringer("mint", mint),
		zap.Stringer("owner", owner))
	return nil
}

func (p *Program) transfer(ictx *runtime.InvokeContext, source, destination, owner solana.PublicKey, amount uint64) error {
	src, err := LoadAccount(ictx, source)
	if err != nil {
		return err
	}
	if !src.Owner.Equals(owner) {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, source)
	}
	if !ictx.IsSigner(owner) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, owner)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, source, src.Amount, amount)
	}
	if source.Equals(destination) {
		return nil
	}

	dst, err := LoadAccount(ictx, destination)
	if err != nil {
		return err
	}
	if !dst.Mint.Equals(src.Mint) {
		return fmt.Errorf("%w: %s -> %s", ErrMintMismatch, source, destination)
	}
	sum, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}

	src.Amount -= amount
	dst.Amount = sum
	if err := storeAccount(ictx, source, src); err != nil {
		return err
	}
	return storeAccount(ictx, destination, dst)
}

func (p *Program) mintTo(ictx *runtime.InvokeContext, mint, destination, authority solana.PublicKey, amount uint64) error {
	m, err := loadMint(ictx, mint)
	if err != nil {
		return err
	}
	if !m.Authority.Equals(authority) {
		return fmt.Errorf("%w: %s", ErrAuthorityMismatch, mint)
	}
	if !ictx.IsSigner(authority) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, authority)
	}
	dst, err := LoadAccount(ictx, destination)
	if err != nil {
		return err
	}
	if !dst.Mint.Equals(mint) {
		return fmt.Errorf("%w: %s", ErrMintMismatch, destination)
	}

	supply, carry := bits.Add64(m.Supply, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	balance, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}

	m.Supply = supply
	dst.Amount = balance
	if err := storeMint(ictx, mint, m); err != nil {
		return err
	}
	return storeAccount(ictx, destination, dst)
}

func (p *Program) burn(ictx *runtime.InvokeContext, account, mint, owner solana.PublicKey, amount uint64) error {
	acc, err := LoadAccount(ictx, account)
	if err != nil {
		return err
	}
	if !acc.Mint.Equals(mint) {
		return fmt.Errorf("%w: %s", ErrMintMismatch, account)
	}
	if !acc.Owner.Equals(owner) {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, account)
	}
	if !ictx.IsSigner(owner) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, owner)
	}
	if acc.Amount < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, account, acc.Amount, amount)
	}
	m, err := loadMint(ictx, mint)
	if err != nil {
		return err
	}

	acc.Amount -= amount
	m.Supply -= amount
	if err := storeMint(ictx, mint, m); err != nil {
		return err
	}
	return storeAccount(ictx, account, acc)
}

// LoadAccount reads and decodes a token account visible to ictx.
func LoadAccount(ictx *runtime.InvokeContext, address solana.PublicKey) (*Account, error) {
	raw, err := ictx.Load(address)
	if err != nil {
		return nil, err
	}
	acc, err := DecodeAccount(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", address, err)
	}
	return acc, nil
}

func loadMint(ictx *runtime.InvokeContext, address solana.PublicKey) (*Mint, error) {
	raw, err := ictx.Load(address)
	if err != nil {
		return nil, err
	}
	m, err := DecodeMint(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", address, err)
	}
	return m, nil
}

// LoadMint reads and decodes a mint visible to ictx.
func LoadMint(ictx *runtime.InvokeContext, address solana.PublicKey) (*Mint, error) {
	return loadMint(ictx, address)
}

func storeAccount(ictx *runtime.InvokeContext, address solana.PublicKey, acc *Account) error {
	data, err := acc.Marshal()
	if err != nil {
		return err
	}
	return ictx.Write(address, data)
}

func storeMint(ictx *runtime.InvokeContext, address solana.PublicKey, m *Mint) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return ictx.Write(address, data)
}
