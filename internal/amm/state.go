// internal/amm/state.go
package amm

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-amm/internal/storage"
)

// Discriminator is the 8-byte prefix tagging account layouts and instructions.
type Discriminator [8]byte

func discriminator(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

var (
	poolDiscriminator     = discriminator("account", "Pool")
	treasuryDiscriminator = discriminator("account", "Treasury")
)

// Pool is the state of one mint pair.
type Pool struct {
	MintA          solana.PublicKey
	MintB          solana.PublicKey
	VaultA         solana.PublicKey
	VaultB         solana.PublicKey
	LPMint         solana.PublicKey
	ReserveA       uint64
	ReserveB       uint64
	LPSupply       uint64
	FeeBps         uint16
	ProtocolFeeBps uint16
	Bump           uint8
	AuthorityBump  uint8
}

// FeeBalance is the protocol fee accrued in one mint.
type FeeBalance struct {
	Mint   solana.PublicKey
	Amount uint64
}

// Treasury is the program-wide fee singleton. FeeBalances is kept sorted by mint.
type Treasury struct {
	Authority          solana.PublicKey
	Bump               uint8
	TotalFeesCollected uint64
	FeeBalances        []FeeBalance
}

// Balance returns the fees accrued in mint.
func (t *Treasury) Balance(mint solana.PublicKey) uint64 {
	i, ok := t.find(mint)
	if !ok {
		return 0
	}
	return t.FeeBalances[i].Amount
}

// Credit adds amount to the balance of mint and to the running total.
func (t *Treasury) Credit(mint solana.PublicKey, amount uint64) error {
	total, err := addU64(t.TotalFeesCollected, amount)
	if err != nil {
		return err
	}

	i, ok := t.find(mint)
	if ok {
		balance, err := addU64(t.FeeBalances[i].Amount, amount)
		if err != nil {
			return err
		}
		t.FeeBalances[i].Amount = balance
	} else {
		t.FeeBalances = append(t.FeeBalances, FeeBalance{})
		copy(t.FeeBalances[i+1:], t.FeeBalances[i:])
		t.FeeBalances[i] = FeeBalance{Mint: mint, Amount: amount}
	}
	t.TotalFeesCollected = total
	return nil
}

func (t *Treasury) find(mint solana.PublicKey) (int, bool) {
	i := sort.Search(len(t.FeeBalances), func(i int) bool {
		return bytes.Compare(t.FeeBalances[i].Mint[:], mint[:]) >= 0
	})
	return i, i < len(t.FeeBalances) && t.FeeBalances[i].Mint.Equals(mint)
}

func marshal(d Discriminator, v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode account: %w", err)
	}
	return buf.Bytes(), nil
}

func unmarshal(d Discriminator, data []byte, v interface{}) error {
	if len(data) < len(d) || !bytes.Equal(data[:len(d)], d[:]) {
		return fmt.Errorf("%w: discriminator mismatch", ErrInvalidAccount)
	}
	if err := bin.NewBorshDecoder(data[len(d):]).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	return nil
}

// Marshal serializes the pool with its discriminator.
func (p *Pool) Marshal() ([]byte, error) { return marshal(poolDiscriminator, p) }

// Marshal serializes the treasury with its discriminator.
func (t *Treasury) Marshal() ([]byte, error) { return marshal(treasuryDiscriminator, t) }

// DecodePool parses a pool account owned by programID.
func DecodePool(programID solana.PublicKey, acc *storage.Account) (*Pool, error) {
	if !acc.Owner.Equals(programID) {
		return nil, fmt.Errorf("%w: pool owned by %s", ErrInvalidAccount, acc.Owner)
	}
	var p Pool
	if err := unmarshal(poolDiscriminator, acc.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeTreasury parses the treasury account owned by programID.
func DecodeTreasury(programID solana.PublicKey, acc *storage.Account) (*Treasury, error) {
	if !acc.Owner.Equals(programID) {
		return nil, fmt.Errorf("%w: treasury owned by %s", ErrInvalidAccount, acc.Owner)
	}
	var t Treasury
	if err := unmarshal(treasuryDiscriminator, acc.Data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
