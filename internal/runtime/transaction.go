// internal/runtime/transaction.go
package runtime

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Transaction is an ordered list of instructions executed atomically, plus the
// ed25519 signatures of every account marked as signer.
type Transaction struct {
	Instructions []solana.Instruction
	Signers      []solana.PublicKey
	Signatures   []solana.Signature
}

type messageAccount struct {
	Key      solana.PublicKey
	Signer   bool
	Writable bool
}

type messageInstruction struct {
	Program  solana.PublicKey
	Accounts []messageAccount
	Data     []byte
}

type message struct {
	Signers      []solana.PublicKey
	Instructions []messageInstruction
}

// NewTransaction collects the required signers from the instructions' account
// metas in order of first appearance.
func NewTransaction(instructions ...solana.Instruction) *Transaction {
	tx := &Transaction{Instructions: instructions}
	seen := make(map[solana.PublicKey]struct{})
	for _, ix := range instructions {
		for _, meta := range ix.Accounts() {
			if !meta.IsSigner {
				continue
			}
			if _, ok := seen[meta.PublicKey]; ok {
				continue
			}
			seen[meta.PublicKey] = struct{}{}
			tx.Signers = append(tx.Signers, meta.PublicKey)
		}
	}
	return tx
}

// Message returns the borsh-encoded bytes covered by the signatures.
func (tx *Transaction) Message() ([]byte, error) {
	msg := message{Signers: tx.Signers}
	for _, ix := range tx.Instructions {
		data, err := ix.Data()
		if err != nil {
			return nil, fmt.Errorf("failed to read instruction data: %w", err)
		}
		mi := messageInstruction{Program: ix.ProgramID(), Data: data}
		for _, meta := range ix.Accounts() {
			mi.Accounts = append(mi.Accounts, messageAccount{
				Key:      meta.PublicKey,
				Signer:   meta.IsSigner,
				Writable: meta.IsWritable,
			})
		}
		msg.Instructions = append(msg.Instructions, mi)
	}

	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// Sign signs the message with the key of every required signer.
func (tx *Transaction) Sign(keys ...solana.PrivateKey) error {
	msg, err := tx.Message()
	if err != nil {
		return err
	}

	byPub := make(map[solana.PublicKey]solana.PrivateKey, len(keys))
	for _, key := range keys {
		byPub[key.PublicKey()] = key
	}

	sigs := make([]solana.Signature, len(tx.Signers))
	for i, signer := range tx.Signers {
		key, ok := byPub[signer]
		if !ok {
			return fmt.Errorf("%w: no key for %s", ErrMissingSignature, signer)
		}
		sig, err := key.Sign(msg)
		if err != nil {
			return fmt.Errorf("failed to sign for %s: %w", signer, err)
		}
		sigs[i] = sig
	}
	tx.Signatures = sigs
	return nil
}

// Verify checks one valid signature per required signer.
func (tx *Transaction) Verify() error {
	if len(tx.Signatures) != len(tx.Signers) {
		return fmt.Errorf("%w: have %d signatures for %d signers",
			ErrMissingSignature, len(tx.Signatures), len(tx.Signers))
	}
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	for i, signer := range tx.Signers {
		if !ed25519.Verify(ed25519.PublicKey(signer[:]), msg, tx.Signatures[i][:]) {
			return fmt.Errorf("%w: signer %s", ErrInvalidSignature, signer)
		}
	}
	return nil
}

// Signature returns the first signature, which identifies the transaction.
func (tx *Transaction) Signature() solana.Signature {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}
	}
	return tx.Signatures[0]
}

// accessMap returns every account the transaction touches; true marks writable.
func (tx *Transaction) accessMap() map[solana.PublicKey]bool {
	access := make(map[solana.PublicKey]bool)
	for _, ix := range tx.Instructions {
		if _, ok := access[ix.ProgramID()]; !ok {
			access[ix.ProgramID()] = false
		}
		for _, meta := range ix.Accounts() {
			access[meta.PublicKey] = access[meta.PublicKey] || meta.IsWritable
		}
	}
	return access
}
