// Package signature provides helper functions for handling the blockchain
// signature and hashing needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// HashLength is the number of bytes in a Hash.
const HashLength = 32

// Hash represents a 32 byte sha256 digest.
type Hash [HashLength]byte

// ZeroHash represents a hash code of zeros. It's the parent hash used by
// the genesis block.
var ZeroHash Hash

// Sum returns the sha256 hash of the concatenation of the specified data.
func Sum(data ...[]byte) Hash {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}

	var hash Hash
	copy(hash[:], h.Sum(nil))
	return hash
}

// ParseHash converts a hex-encoded string into a Hash. The 0x prefix
// is optional.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, &CryptoError{Kind: Hashing, Err: err}
	}

	if len(b) != HashLength {
		return Hash{}, &CryptoError{Kind: Hashing, Err: fmt.Errorf("invalid hash length %d", len(b))}
	}

	var hash Hash
	copy(hash[:], b)
	return hash, nil
}

// String returns the lowercase hex form of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether this is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// MarshalText implements the encoding.TextMarshaler interface.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (h *Hash) UnmarshalText(data []byte) error {
	hash, err := ParseHash(string(data))
	if err != nil {
		return err
	}

	*h = hash
	return nil
}

// =============================================================================

// ErrInvalidSignature is returned when a signature doesn't verify against
// the signer's public key.
var ErrInvalidSignature = errors.New("invalid signature")

// GenerateKey produces a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, &CryptoError{Kind: KeyGeneration, Err: err}
	}

	return key, nil
}

// PublicKeyBytes returns the 33 byte compressed form of the public key.
func PublicKeyBytes(pk ecdsa.PublicKey) []byte {
	return crypto.CompressPubkey(&pk)
}

// Sign uses the specified private key to sign the digest. It returns the
// 65 byte [R|S|V] signature and the compressed public key of the signer.
func Sign(digest Hash, privateKey *ecdsa.PrivateKey) (sig []byte, signer []byte, err error) {
	sig, err = crypto.Sign(digest[:], privateKey)
	if err != nil {
		return nil, nil, &CryptoError{Kind: Signature, Err: err}
	}

	// Check the public key extracted from the digest and signature matches
	// the key that was used.
	publicKey, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return nil, nil, &CryptoError{Kind: Signature, Err: err}
	}

	signer = crypto.CompressPubkey(publicKey)
	if !crypto.VerifySignature(signer, digest[:], sig[:crypto.RecoveryIDOffset]) {
		return nil, nil, &CryptoError{Kind: Signature, Err: ErrInvalidSignature}
	}

	return sig, signer, nil
}

// Verify checks the signature was produced over the digest by the private key
// belonging to the signer's compressed public key.
func Verify(digest Hash, signer []byte, sig []byte) error {
	if len(sig) < crypto.RecoveryIDOffset {
		return &CryptoError{Kind: Signature, Err: fmt.Errorf("signature too short: %d bytes", len(sig))}
	}

	if _, err := crypto.DecompressPubkey(signer); err != nil {
		return &CryptoError{Kind: Signature, Err: fmt.Errorf("parse signer: %w", err)}
	}

	if !crypto.VerifySignature(signer, digest[:], sig[:crypto.RecoveryIDOffset]) {
		return &CryptoError{Kind: Signature, Err: ErrInvalidSignature}
	}

	return nil
}
