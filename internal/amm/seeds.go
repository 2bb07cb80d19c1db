// internal/amm/seeds.go
package amm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seed labels of every program-derived address.
const (
	SeedPool           = "pool"
	SeedVaultA         = "vault_a"
	SeedVaultB         = "vault_b"
	SeedLPMint         = "lp_mint"
	SeedVaultAuthority = "vault_authority"
	SeedTreasury       = "treasury"
	SeedTreasuryVault  = "treasury_vault"
)

// PoolAddresses are the derived accounts of one mint pair.
type PoolAddresses struct {
	MintA, MintB   solana.PublicKey
	Pool           solana.PublicKey
	VaultA         solana.PublicKey
	VaultB         solana.PublicKey
	LPMint         solana.PublicKey
	VaultAuthority solana.PublicKey

	PoolBump      uint8
	VaultABump    uint8
	VaultBBump    uint8
	LPMintBump    uint8
	AuthorityBump uint8
}

func poolSeeds(mintA, mintB solana.PublicKey) [][]byte {
	return [][]byte{[]byte(SeedPool), mintA[:], mintB[:]}
}

func vaultSeeds(mintA, mintB solana.PublicKey, label string) [][]byte {
	return append(poolSeeds(mintA, mintB), []byte(label))
}

func lpMintSeeds(pool solana.PublicKey) [][]byte {
	return [][]byte{[]byte(SeedLPMint), pool[:]}
}

func authoritySeeds(pool solana.PublicKey) [][]byte {
	return [][]byte{[]byte(SeedVaultAuthority), pool[:]}
}

func treasurySeeds() [][]byte {
	return [][]byte{[]byte(SeedTreasury)}
}

func treasuryVaultSeeds(mint solana.PublicKey) [][]byte {
	return [][]byte{[]byte(SeedTreasuryVault), mint[:]}
}

// withBump appends the bump byte, giving the seeds InvokeSigned expects.
func withBump(seeds [][]byte, bump uint8) [][]byte {
	out := make([][]byte, 0, len(seeds)+1)
	out = append(out, seeds...)
	return append(out, []byte{bump})
}

// DerivePool returns the pool address of (mintA, mintB). The order matters:
// callers pass the pair already sorted.
func DerivePool(programID, mintA, mintB solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(poolSeeds(mintA, mintB), programID)
}

// DeriveVaultAuthority returns the keyless signer controlling the pool vaults and LP mint.
func DeriveVaultAuthority(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(authoritySeeds(pool), programID)
}

// DeriveTreasury returns the treasury singleton address.
func DeriveTreasury(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(treasurySeeds(), programID)
}

// DeriveTreasuryVault returns the token account holding protocol fees in mint.
func DeriveTreasuryVault(programID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(treasuryVaultSeeds(mint), programID)
}

// DerivePoolAddresses derives every account of the pair.
func DerivePoolAddresses(programID, mintA, mintB solana.PublicKey) (*PoolAddresses, error) {
	var (
		a   = &PoolAddresses{MintA: mintA, MintB: mintB}
		err error
	)
	if a.Pool, a.PoolBump, err = DerivePool(programID, mintA, mintB); err != nil {
		return nil, fmt.Errorf("derive pool: %w", err)
	}
	if a.VaultA, a.VaultABump, err = solana.FindProgramAddress(vaultSeeds(mintA, mintB, SeedVaultA), programID); err != nil {
		return nil, fmt.Errorf("derive vault a: %w", err)
	}
	if a.VaultB, a.VaultBBump, err = solana.FindProgramAddress(vaultSeeds(mintA, mintB, SeedVaultB), programID); err != nil {
		return nil, fmt.Errorf("derive vault b: %w", err)
	}
	if a.LPMint, a.LPMintBump, err = solana.FindProgramAddress(lpMintSeeds(a.Pool), programID); err != nil {
		return nil, fmt.Errorf("derive lp mint: %w", err)
	}
	if a.VaultAuthority, a.AuthorityBump, err = DeriveVaultAuthority(programID, a.Pool); err != nil {
		return nil, fmt.Errorf("derive vault authority: %w", err)
	}
	return a, nil
}
