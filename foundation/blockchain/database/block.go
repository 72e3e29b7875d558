package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/genesis"
	"github.com/ardanlabs/minichain/foundation/blockchain/merkle"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
)

// BlockVersion is the version written into every block header.
const BlockVersion uint8 = 1

// Set of errors returned when signing and verifying blocks.
var (
	ErrBlockAlreadySigned = errors.New("block is already signed")
	ErrNoSignature        = errors.New("no signature exists for block")
	ErrInvalidSignature   = errors.New("invalid block signature")
)

// =============================================================================

// Header represents common information required for each block.
type Header struct {
	Version   uint8          `json:"version"`
	Hash      signature.Hash `json:"hash"`       // Hash of the header fields and the block transactions.
	PrevHash  signature.Hash `json:"prev_hash"`  // Hash of the previous block in the chain.
	Height    uint64         `json:"height"`     // Block number in the chain, genesis is 0.
	Timestamp uint64         `json:"timestamp"`  // Unix seconds the block was produced.
	TxRoot    signature.Hash `json:"tx_root"`    // Merkle root of the transaction hashes.
	StateRoot signature.Hash `json:"state_root"` // Account state root after applying the block.
}

// headerData is the part of the header covered by the block hash.
type headerData struct {
	Version   uint8
	PrevHash  signature.Hash
	Height    uint64
	Timestamp uint64
	TxRoot    signature.Hash
	StateRoot signature.Hash
}

// HashableBytes returns the encoded header without the hash field.
func (h Header) HashableBytes() ([]byte, error) {
	return Encode(headerData{
		Version:   h.Version,
		PrevHash:  h.PrevHash,
		Height:    h.Height,
		Timestamp: h.Timestamp,
		TxRoot:    h.TxRoot,
		StateRoot: h.StateRoot,
	})
}

// Bytes returns the binary representation of the header.
func (h Header) Bytes() ([]byte, error) {
	return Encode(h)
}

// DecodeHeader converts the binary representation into a header.
func DecodeHeader(data []byte) (Header, error) {
	var h Header
	if err := Decode(data, &h); err != nil {
		return Header{}, err
	}

	return h, nil
}

// =============================================================================

// Block represents a group of transactions batched together and signed by
// the node that produced it.
type Block struct {
	Header       Header `json:"header"`
	Transactions []Tx   `json:"transactions"`
	Signer       []byte `json:"signer,omitempty"`
	Signature    []byte `json:"signature,omitempty"`
}

// NewBlock constructs an unsigned block that follows the specified parent
// header. The state root is the account state after applying the
// transactions.
func NewBlock(parent Header, txs []Tx, stateRoot signature.Hash) (Block, error) {
	txRoot, err := merkle.RootOf(txs)
	if err != nil {
		return Block{}, err
	}

	b := Block{
		Header: Header{
			Version:   BlockVersion,
			PrevHash:  parent.Hash,
			Height:    parent.Height + 1,
			Timestamp: uint64(time.Now().UTC().Unix()),
			TxRoot:    txRoot,
			StateRoot: stateRoot,
		},
		Transactions: txs,
	}

	hash, err := b.ComputeHash()
	if err != nil {
		return Block{}, err
	}
	b.Header.Hash = hash

	return b, nil
}

// GenesisBlock constructs the unsigned block at height 0 for the specified
// genesis configuration.
func GenesisBlock(gen genesis.Genesis) (Block, error) {
	prevHash := signature.ZeroHash
	if gen.ParentHash != "" {
		h, err := signature.ParseHash(gen.ParentHash)
		if err != nil {
			return Block{}, fmt.Errorf("genesis parent hash: %w", err)
		}
		prevHash = h
	}

	b := Block{
		Header: Header{
			Version:   BlockVersion,
			PrevHash:  prevHash,
			Height:    0,
			Timestamp: uint64(gen.Date.UTC().Unix()),
		},
	}

	hash, err := b.ComputeHash()
	if err != nil {
		return Block{}, err
	}
	b.Header.Hash = hash

	return b, nil
}

// DecodeBlock converts the binary representation into a block.
func DecodeBlock(data []byte) (Block, error) {
	var b Block
	if err := Decode(data, &b); err != nil {
		return Block{}, err
	}

	return b, nil
}

// Bytes returns the binary representation of the block.
func (b Block) Bytes() ([]byte, error) {
	return Encode(b)
}

// Hash returns the hash recorded in the block header.
func (b Block) Hash() signature.Hash {
	return b.Header.Hash
}

// ComputeHash calculates the block hash from the header bytes followed by
// the bytes of every transaction in order.
func (b Block) ComputeHash() (signature.Hash, error) {
	header, err := b.Header.HashableBytes()
	if err != nil {
		return signature.ZeroHash, err
	}

	data := [][]byte{header}
	for _, tx := range b.Transactions {
		txData, err := tx.Bytes()
		if err != nil {
			return signature.ZeroHash, err
		}
		data = append(data, txData)
	}

	return signature.Sum(data...), nil
}

// IsSigned reports whether the block carries a signature.
func (b Block) IsSigned() bool {
	return len(b.Signature) > 0
}

// Sign uses the specified private key to sign the block hash. A block can
// only be signed once.
func (b *Block) Sign(privateKey *ecdsa.PrivateKey) error {
	if b.IsSigned() {
		return ErrBlockAlreadySigned
	}

	sig, signer, err := signature.Sign(b.Header.Hash, privateKey)
	if err != nil {
		return err
	}

	b.Signature = sig
	b.Signer = signer

	return nil
}

// Verify checks the block signature against its embedded signer.
func (b Block) Verify() error {
	if !b.IsSigned() || len(b.Signer) == 0 {
		return ErrNoSignature
	}

	if err := signature.Verify(b.Header.Hash, b.Signer, b.Signature); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return nil
}

// SignerAddress returns the address of the node that signed the block.
func (b Block) SignerAddress() (Address, error) {
	if len(b.Signer) == 0 {
		return Address{}, ErrNoSignature
	}

	return ToAddress(b.Signer)
}
