package database

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
)

// Set of errors returned when signing and verifying transactions.
var (
	ErrTxAlreadySigned    = errors.New("transaction is already signed")
	ErrTxNoSignature      = errors.New("transaction has no signature")
	ErrTxInvalidSignature = errors.New("invalid transaction signature")
)

// TxType identifies what the data of a transaction represents.
type TxType uint8

// Set of transaction types.
const (
	TxTransfer    TxType = 1
	TxBlockReward TxType = 2
)

// ToTxType maps the wire value to a transaction type.
func ToTxType(v uint8) (TxType, error) {
	switch TxType(v) {
	case TxTransfer, TxBlockReward:
		return TxType(v), nil
	}

	return 0, NewCoreError(Parsing, fmt.Sprintf("unknown transaction type %d", v))
}

// String implements the fmt.Stringer interface.
func (t TxType) String() string {
	switch t {
	case TxTransfer:
		return "transfer"
	case TxBlockReward:
		return "block_reward"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// =============================================================================

// TransferData is the data of a transfer transaction.
type TransferData struct {
	From   Address `json:"from"`
	To     Address `json:"to"`
	Amount uint64  `json:"amount"`
}

// RewardData is the data of a block reward transaction.
type RewardData struct {
	To     Address `json:"to"`
	Amount uint64  `json:"amount"`
}

// =============================================================================

// Tx is the transactional information recorded in a block. The signer and
// signature are empty until the transaction is signed.
type Tx struct {
	Type      TxType `json:"type"`
	Nonce     uint64 `json:"nonce"`
	Data      []byte `json:"data"`
	Signer    []byte `json:"signer,omitempty"`
	Signature []byte `json:"signature,omitempty"`
}

// NewTransferTx constructs an unsigned transaction moving the amount from
// one account to another.
func NewTransferTx(nonce uint64, from Address, to Address, amount uint64) (Tx, error) {
	data, err := Encode(TransferData{From: from, To: to, Amount: amount})
	if err != nil {
		return Tx{}, err
	}

	tx := Tx{
		Type:  TxTransfer,
		Nonce: nonce,
		Data:  data,
	}

	return tx, nil
}

// NewRewardTx constructs an unsigned transaction crediting the amount to
// the specified account.
func NewRewardTx(nonce uint64, to Address, amount uint64) (Tx, error) {
	data, err := Encode(RewardData{To: to, Amount: amount})
	if err != nil {
		return Tx{}, err
	}

	tx := Tx{
		Type:  TxBlockReward,
		Nonce: nonce,
		Data:  data,
	}

	return tx, nil
}

// DecodeTx converts the binary representation into a transaction.
func DecodeTx(data []byte) (Tx, error) {
	var tx Tx
	if err := Decode(data, &tx); err != nil {
		return Tx{}, err
	}

	if _, err := ToTxType(uint8(tx.Type)); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// Bytes returns the binary representation of the transaction.
func (tx Tx) Bytes() ([]byte, error) {
	return Encode(tx)
}

// Hash returns the content address of the transaction, the hash of all
// its encoded bytes including the signature.
func (tx Tx) Hash() (signature.Hash, error) {
	data, err := tx.Bytes()
	if err != nil {
		return signature.ZeroHash, err
	}

	return signature.Sum(data), nil
}

// SigningHash returns the hash of the fields covered by the signature.
func (tx Tx) SigningHash() (signature.Hash, error) {
	unsigned := Tx{
		Type:  tx.Type,
		Nonce: tx.Nonce,
		Data:  tx.Data,
	}

	data, err := unsigned.Bytes()
	if err != nil {
		return signature.ZeroHash, err
	}

	return signature.Sum(data), nil
}

// IsSigned reports whether the transaction carries a signature.
func (tx Tx) IsSigned() bool {
	return len(tx.Signature) > 0
}

// Sign uses the specified private key to sign the transaction. A
// transaction can only be signed once.
func (tx *Tx) Sign(privateKey *ecdsa.PrivateKey) error {
	if tx.IsSigned() {
		return ErrTxAlreadySigned
	}

	hash, err := tx.SigningHash()
	if err != nil {
		return err
	}

	sig, signer, err := signature.Sign(hash, privateKey)
	if err != nil {
		return err
	}

	tx.Signature = sig
	tx.Signer = signer

	return nil
}

// Verify checks the transaction signature against its signer.
func (tx Tx) Verify() error {
	if !tx.IsSigned() {
		return ErrTxNoSignature
	}

	hash, err := tx.SigningHash()
	if err != nil {
		return err
	}

	if err := signature.Verify(hash, tx.Signer, tx.Signature); err != nil {
		return fmt.Errorf("%w: %w", ErrTxInvalidSignature, err)
	}

	return nil
}

// Equals reports whether the two transactions encode to the same bytes.
func (tx Tx) Equals(other Tx) bool {
	a, err := tx.Bytes()
	if err != nil {
		return false
	}

	b, err := other.Bytes()
	if err != nil {
		return false
	}

	return bytes.Equal(a, b)
}

// Transfer decodes the data of a transfer transaction.
func (tx Tx) Transfer() (TransferData, error) {
	if tx.Type != TxTransfer {
		return TransferData{}, NewCoreError(Parsing, fmt.Sprintf("transaction type %s is not a transfer", tx.Type))
	}

	var td TransferData
	if err := Decode(tx.Data, &td); err != nil {
		return TransferData{}, err
	}

	return td, nil
}

// Reward decodes the data of a block reward transaction.
func (tx Tx) Reward() (RewardData, error) {
	if tx.Type != TxBlockReward {
		return RewardData{}, NewCoreError(Parsing, fmt.Sprintf("transaction type %s is not a block reward", tx.Type))
	}

	var rd RewardData
	if err := Decode(tx.Data, &rd); err != nil {
		return RewardData{}, err
	}

	return rd, nil
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	hash, err := tx.Hash()
	if err != nil {
		return fmt.Sprintf("%s:%d", tx.Type, tx.Nonce)
	}

	return fmt.Sprintf("%s:%d:%s", tx.Type, tx.Nonce, hash.String()[:12])
}
