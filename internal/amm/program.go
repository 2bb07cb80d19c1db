// internal/amm/program.go
package amm

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/runtime"
	"github.com/rovshanmuradov/solana-amm/internal/token"
)

const (
	DefaultFeeBps         uint16 = 30
	DefaultProtocolFeeBps uint16 = 2000
	DefaultLPDecimals     uint8  = 6
)

// Config holds the parameters stamped into every new pool.
type Config struct {
	ProgramID      solana.PublicKey
	FeeBps         uint16
	ProtocolFeeBps uint16
	LPDecimals     uint8
}

// Program is the constant-product pool program.
type Program struct {
	id             solana.PublicKey
	feeBps         uint16
	protocolFeeBps uint16
	lpDecimals     uint8
	logger         *zap.Logger
}

var _ runtime.Program = (*Program)(nil)

// NewProgram validates cfg and creates the program.
func NewProgram(cfg Config, logger *zap.Logger) (*Program, error) {
	if cfg.ProgramID.IsZero() {
		return nil, errors.New("program id is required")
	}
	if cfg.FeeBps > BasisPoints {
		return nil, fmt.Errorf("fee_bps %d exceeds %d", cfg.FeeBps, BasisPoints)
	}
	if cfg.ProtocolFeeBps > BasisPoints {
		return nil, fmt.Errorf("protocol_fee_bps %d exceeds %d", cfg.ProtocolFeeBps, BasisPoints)
	}
	return &Program{
		id:             cfg.ProgramID,
		feeBps:         cfg.FeeBps,
		protocolFeeBps: cfg.ProtocolFeeBps,
		lpDecimals:     cfg.LPDecimals,
		logger:         logger.Named("amm"),
	}, nil
}

// ID returns the program id.
func (p *Program) ID() solana.PublicKey {
	return p.id
}

// Process dispatches on the 8-byte instruction discriminator.
func (p *Program) Process(ictx *runtime.InvokeContext, accounts []*solana.AccountMeta, data []byte) error {
	if len(data) < len(Discriminator{}) {
		return ErrInvalidInstruction
	}
	var d Discriminator
	copy(d[:], data)
	args := data[len(d):]

	switch d {
	case instructionInitTreasury:
		keys, err := accountKeys(accounts, 2)
		if err != nil {
			return err
		}
		return p.initTreasury(ictx, keys[0], keys[1])

	case instructionCreatePool:
		keys, err := accountKeys(accounts, 11)
		if err != nil {
			return err
		}
		return p.createPool(ictx, &CreatePoolAccounts{
			Payer:          keys[0],
			MintA:          keys[1],
			MintB:          keys[2],
			Pool:           keys[3],
			LPMint:         keys[4],
			VaultAuthority: keys[5],
			VaultA:         keys[6],
			VaultB:         keys[7],
			Treasury:       keys[8],
			TreasuryVaultA: keys[9],
			TreasuryVaultB: keys[10],
		})

	case instructionAddLiquidity:
		var a addLiquidityArgs
		if err := decodeArgs(args, &a); err != nil {
			return err
		}
		accs, err := liquidityAccounts(accounts)
		if err != nil {
			return err
		}
		return p.addLiquidity(ictx, accs, a.AmountA, a.AmountB)

	case instructionRemoveLiquidity:
		var a removeLiquidityArgs
		if err := decodeArgs(args, &a); err != nil {
			return err
		}
		accs, err := liquidityAccounts(accounts)
		if err != nil {
			return err
		}
		return p.removeLiquidity(ictx, accs, a.Shares, a.MinAmountA, a.MinAmountB)

	case instructionSwap:
		var a swapArgs
		if err := decodeArgs(args, &a); err != nil {
			return err
		}
		keys, err := accountKeys(accounts, 9)
		if err != nil {
			return err
		}
		return p.swap(ictx, &SwapAccounts{
			User:           keys[0],
			Pool:           keys[1],
			UserInput:      keys[2],
			UserOutput:     keys[3],
			VaultA:         keys[4],
			VaultB:         keys[5],
			VaultAuthority: keys[6],
			Treasury:       keys[7],
			TreasuryVault:  keys[8],
		}, a.AmountIn, a.MinOut)

	default:
		return fmt.Errorf("%w: unknown discriminator %x", ErrInvalidInstruction, d[:])
	}
}

func accountKeys(metas []*solana.AccountMeta, n int) ([]solana.PublicKey, error) {
	if len(metas) < n {
		return nil, fmt.Errorf("%w: expected %d accounts, got %d", ErrInvalidInstruction, n, len(metas))
	}
	keys := make([]solana.PublicKey, n)
	for i := range keys {
		keys[i] = metas[i].PublicKey
	}
	return keys, nil
}

func liquidityAccounts(metas []*solana.AccountMeta) (*LiquidityAccounts, error) {
	keys, err := accountKeys(metas, 9)
	if err != nil {
		return nil, err
	}
	return &LiquidityAccounts{
		User:           keys[0],
		Pool:           keys[1],
		UserTokenA:     keys[2],
		UserTokenB:     keys[3],
		VaultA:         keys[4],
		VaultB:         keys[5],
		LPMint:         keys[6],
		UserLP:         keys[7],
		VaultAuthority: keys[8],
	}, nil
}

func decodeArgs(data []byte, v interface{}) error {
	if err := bin.NewBorshDecoder(data).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}
	return nil
}

func requireSigner(ictx *runtime.InvokeContext, key solana.PublicKey) error {
	if !ictx.IsSigner(key) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, key)
	}
	return nil
}

func (p *Program) loadPool(ictx *runtime.InvokeContext, address solana.PublicKey) (*Pool, error) {
	raw, err := ictx.Load(address)
	if err != nil {
		return nil, err
	}
	return DecodePool(p.id, raw)
}

func (p *Program) storePool(ictx *runtime.InvokeContext, address solana.PublicKey, pool *Pool) error {
	data, err := pool.Marshal()
	if err != nil {
		return err
	}
	return ictx.Write(address, data)
}

func (p *Program) loadTreasury(ictx *runtime.InvokeContext, address solana.PublicKey) (*Treasury, error) {
	raw, err := ictx.Load(address)
	if err != nil {
		return nil, err
	}
	return DecodeTreasury(p.id, raw)
}

func (p *Program) storeTreasury(ictx *runtime.InvokeContext, address solana.PublicKey, t *Treasury) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}
	return ictx.Write(address, data)
}

// poolVaults checks that the supplied vaults and LP mint are the ones recorded
// in the pool and returns its vault authority.
func (p *Program) poolVaults(pool *Pool, poolAddr, vaultA, vaultB, authority solana.PublicKey) (*vaultAuthority, error) {
	if !vaultA.Equals(pool.VaultA) || !vaultB.Equals(pool.VaultB) {
		return nil, fmt.Errorf("%w: pool %s", ErrInvalidVaultMismatch, poolAddr)
	}
	va, err := newVaultAuthority(p.id, poolAddr, pool.AuthorityBump)
	if err != nil {
		return nil, err
	}
	if err := va.verify(authority); err != nil {
		return nil, err
	}
	return va, nil
}

// userTokenAccount loads a caller token account and checks its mint.
func userTokenAccount(ictx *runtime.InvokeContext, address, mint solana.PublicKey) (*token.Account, error) {
	acc, err := token.LoadAccount(ictx, address)
	if err != nil {
		return nil, err
	}
	if !acc.Mint.Equals(mint) {
		return nil, fmt.Errorf("%w: %s holds %s, expected %s", ErrInvalidMint, address, acc.Mint, mint)
	}
	return acc, nil
}
