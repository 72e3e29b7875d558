package transport

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the class of a network failure.
type ErrorKind int

// Set of network failure kinds.
const (
	KindConnect ErrorKind = iota + 1
	KindNotFound
	KindMessage
	KindDecoding
	KindRPC
)

var kindNames = map[ErrorKind]string{
	KindConnect:  "connect",
	KindNotFound: "not found",
	KindMessage:  "message",
	KindDecoding: "decoding",
	KindRPC:      "rpc",
}

// String implements the fmt.Stringer interface.
func (k ErrorKind) String() string {
	if name, exists := kindNames[k]; exists {
		return name
	}
	return "unknown"
}

// Set of errors that can be matched with errors.Is. Matching is done on the
// kind of the error, not the message.
var (
	ErrConnect  = &NetworkError{Kind: KindConnect, Msg: "connect"}
	ErrNotFound = &NetworkError{Kind: KindNotFound, Msg: "not found"}
	ErrMessage  = &NetworkError{Kind: KindMessage, Msg: "message"}
	ErrDecoding = &NetworkError{Kind: KindDecoding, Msg: "decoding"}
	ErrRPC      = &NetworkError{Kind: KindRPC, Msg: "rpc"}
)

// NetworkError is returned for transport and dispatch failures.
type NetworkError struct {
	Kind ErrorKind
	Msg  string
}

// NewNetworkError constructs a network error of the specified kind.
func NewNetworkError(kind ErrorKind, format string, args ...any) *NetworkError {
	return &NetworkError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// RPCError converts any error that crosses the dispatch boundary into a
// network error of kind RPC. Network errors pass through unchanged.
func RPCError(err error) *NetworkError {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne
	}

	return &NetworkError{Kind: KindRPC, Msg: err.Error()}
}

// Error implements the error interface.
func (ne *NetworkError) Error() string {
	return ne.Msg
}

// Is reports whether the target is a network error of the same kind.
func (ne *NetworkError) Is(target error) bool {
	t, ok := target.(*NetworkError)
	if !ok {
		return false
	}
	return t.Kind == ne.Kind
}
