package signature

import "fmt"

// ErrorKind identifies the class of crypto failure.
type ErrorKind int

// Set of crypto failure kinds.
const (
	KeyGeneration ErrorKind = iota + 1
	Hashing
	Signature
)

var kindNames = map[ErrorKind]string{
	KeyGeneration: "key generation",
	Hashing:       "hashing",
	Signature:     "signature",
}

// String implements the fmt.Stringer interface.
func (k ErrorKind) String() string {
	if name, exists := kindNames[k]; exists {
		return name
	}
	return "unknown"
}

// CryptoError is returned for key generation, hashing and signature
// failures.
type CryptoError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (ce *CryptoError) Error() string {
	return fmt.Sprintf("crypto %s: %s", ce.Kind, ce.Err)
}

// Unwrap provides access to the underlying error.
func (ce *CryptoError) Unwrap() error {
	return ce.Err
}
