// internal/token/state.go
package token

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-amm/internal/storage"
)

// ProgramID is the address the ledger program is registered under.
var ProgramID = solana.TokenProgramID

type accountKind uint8

const (
	kindMint    accountKind = 1
	kindAccount accountKind = 2
)

// Mint is the state of a fungible token type.
type Mint struct {
	Authority solana.PublicKey // only this key may mint
	Supply    uint64
	Decimals  uint8
}

// Account is a balance of one mint held for one owner.
type Account struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

func encode(kind accountKind, v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(kind))
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(kind accountKind, data []byte, v interface{}) error {
	if len(data) == 0 || accountKind(data[0]) != kind {
		return ErrInvalidAccountData
	}
	if err := bin.NewBorshDecoder(data[1:]).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return nil
}

// Marshal serializes the mint.
func (m *Mint) Marshal() ([]byte, error) { return encode(kindMint, m) }

// Marshal serializes the token account.
func (a *Account) Marshal() ([]byte, error) { return encode(kindAccount, a) }

// DecodeMint parses a raw mint account owned by the token program.
func DecodeMint(acc *storage.Account) (*Mint, error) {
	if !acc.Owner.Equals(ProgramID) {
		return nil, ErrInvalidAccountOwner
	}
	var m Mint
	if err := decode(kindMint, acc.Data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeAccount parses a raw token account owned by the token program.
func DecodeAccount(acc *storage.Account) (*Account, error) {
	if !acc.Owner.Equals(ProgramID) {
		return nil, ErrInvalidAccountOwner
	}
	var a Account
	if err := decode(kindAccount, acc.Data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
