package database

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressLength is the number of bytes in an Address.
const AddressLength = 20

// Address represents the identifier of an account. It's derived from the
// compressed public key of the account owner.
type Address [AddressLength]byte

// ToAddress derives the address from a compressed public key. The address
// is the last 20 bytes of the key taken in reverse order.
func ToAddress(signer []byte) (Address, error) {
	if len(signer) < AddressLength {
		return Address{}, NewCoreError(Parsing, fmt.Sprintf("public key too short for address: %d bytes", len(signer)))
	}

	var addr Address
	for i := 0; i < AddressLength; i++ {
		addr[i] = signer[len(signer)-1-i]
	}

	return addr, nil
}

// PublicKeyToAddress converts the public key to an address value.
func PublicKeyToAddress(pk ecdsa.PublicKey) Address {
	addr, _ := ToAddress(signature.PublicKeyBytes(pk))
	return addr
}

// ParseAddress converts a 0x prefixed hex-encoded string into an address.
func ParseAddress(s string) (Address, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Address{}, NewCoreError(Parsing, fmt.Sprintf("invalid address %q: %s", s, err))
	}

	if len(b) != AddressLength {
		return Address{}, NewCoreError(Parsing, fmt.Sprintf("invalid address length %d", len(b)))
	}

	var addr Address
	copy(addr[:], b)
	return addr, nil
}

// String implements the fmt.Stringer interface.
func (a Address) String() string {
	return hexutil.Encode(a[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (a *Address) UnmarshalText(data []byte) error {
	addr, err := ParseAddress(string(data))
	if err != nil {
		return err
	}

	*a = addr
	return nil
}

// =============================================================================

// Account represents information stored for an individual account.
type Account struct {
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// Bytes returns the binary representation of the account.
func (a Account) Bytes() ([]byte, error) {
	return Encode(a)
}

// DecodeAccount converts the binary representation into an account.
func DecodeAccount(data []byte) (Account, error) {
	var a Account
	if err := Decode(data, &a); err != nil {
		return Account{}, err
	}

	return a, nil
}
