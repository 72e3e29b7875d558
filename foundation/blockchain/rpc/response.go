package rpc

import (
	"fmt"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
)

// Kind identifies what a response carries.
type Kind uint8

// Set of response kinds.
const (
	KindBlock Kind = iota + 1
	KindTransaction
	KindHeader
	KindGeneric
	KindError
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindTransaction:
		return "transaction"
	case KindHeader:
		return "header"
	case KindGeneric:
		return "generic"
	case KindError:
		return "error"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Response is the tagged outcome of dispatching an RPC. Only the field
// matching the kind is set.
type Response struct {
	Kind    Kind
	Block   database.Block
	Tx      database.Tx
	Header  database.Header
	Message string
}

// BlockResponse constructs a response carrying a block.
func BlockResponse(b database.Block) Response {
	return Response{Kind: KindBlock, Block: b}
}

// TxResponse constructs a response carrying a transaction.
func TxResponse(tx database.Tx) Response {
	return Response{Kind: KindTransaction, Tx: tx}
}

// HeaderResponse constructs a response carrying a header.
func HeaderResponse(h database.Header) Response {
	return Response{Kind: KindHeader, Header: h}
}

// GenericResponse constructs a response carrying a message. Requests that
// are valid but can't be satisfied are answered this way.
func GenericResponse(format string, args ...any) Response {
	return Response{Kind: KindGeneric, Message: fmt.Sprintf(format, args...)}
}

// ErrorResponse constructs a response reporting a failure to process the
// request at all.
func ErrorResponse(format string, args ...any) Response {
	return Response{Kind: KindError, Message: fmt.Sprintf(format, args...)}
}

// String implements the fmt.Stringer interface for logging.
func (r Response) String() string {
	switch r.Kind {
	case KindBlock:
		return fmt.Sprintf("block[%d]: %s", r.Block.Header.Height, r.Block.Hash())
	case KindTransaction:
		return fmt.Sprintf("transaction[%s]", r.Tx)
	case KindHeader:
		return fmt.Sprintf("header[%d]: %s", r.Header.Height, r.Header.Hash)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}
