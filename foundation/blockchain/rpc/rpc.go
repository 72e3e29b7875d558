// Package rpc defines the envelope used by peers and clients to call into
// the node and the dispatcher that answers those calls.
package rpc

import (
	"fmt"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/transport"
)

// Header selects the operation an RPC performs.
type Header uint16

// Set of RPC headers as they appear on the wire.
const (
	GetBlock       Header = 1
	GetBlockHeader Header = 2
	GetLastBlock   Header = 3
	GetChainHeight Header = 4
	GetTx          Header = 5
	NewTx          Header = 6
	NewBlock       Header = 7
	Generic        Header = 8
	GetAccount     Header = 9

	// Reserved for block proposal and voting.
	CommitBlock   Header = 10
	BlockProposal Header = 11
	BlockVote     Header = 12
)

var headerNames = map[Header]string{
	GetBlock:       "get_block",
	GetBlockHeader: "get_block_header",
	GetLastBlock:   "get_last_block",
	GetChainHeight: "get_chain_height",
	GetTx:          "get_tx",
	NewTx:          "new_tx",
	NewBlock:       "new_block",
	Generic:        "generic",
	GetAccount:     "get_account",
	CommitBlock:    "commit_block",
	BlockProposal:  "block_proposal",
	BlockVote:      "block_vote",
}

// ParseHeader maps the wire value to a header. Values that don't name a
// header are rejected.
func ParseHeader(v uint16) (Header, error) {
	h := Header(v)
	if _, exists := headerNames[h]; !exists {
		return 0, transport.NewNetworkError(transport.KindDecoding, "unknown RPC header requested")
	}

	return h, nil
}

// String implements the fmt.Stringer interface.
func (h Header) String() string {
	if name, exists := headerNames[h]; exists {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint16(h))
}

// =============================================================================

// RPC is the envelope for every call into the node. The schema of the
// payload depends on the header.
type RPC struct {
	Header  Header
	Payload []byte
}

// wireRPC is the encoded form of an RPC. The header stays a plain integer
// so unknown values are caught by ParseHeader.
type wireRPC struct {
	Header  uint16
	Payload []byte
}

// New constructs an RPC with the value encoded as its payload. A nil value
// produces an empty payload.
func New(header Header, v any) (RPC, error) {
	r := RPC{Header: header}

	if v != nil {
		payload, err := database.Encode(v)
		if err != nil {
			return RPC{}, err
		}
		r.Payload = payload
	}

	return r, nil
}

// Decode converts the binary representation into an RPC.
func Decode(data []byte) (RPC, error) {
	var w wireRPC
	if err := database.Decode(data, &w); err != nil {
		return RPC{}, transport.NewNetworkError(transport.KindDecoding, "decode rpc: %s", err)
	}

	header, err := ParseHeader(w.Header)
	if err != nil {
		return RPC{}, err
	}

	return RPC{Header: header, Payload: w.Payload}, nil
}

// Bytes returns the binary representation of the RPC.
func (r RPC) Bytes() ([]byte, error) {
	return database.Encode(wireRPC{Header: uint16(r.Header), Payload: r.Payload})
}

// =============================================================================

// GetBlockRequest is the payload of GetBlock and GetBlockHeader. Exactly one
// of the fields must be set.
type GetBlockRequest struct {
	Height *string
	Hash   *string
}

// ByHeight constructs a request for the block at the specified height.
func ByHeight(height uint64) GetBlockRequest {
	h := fmt.Sprintf("%d", height)
	return GetBlockRequest{Height: &h}
}

// ByHash constructs a request for the block with the specified hash.
func ByHash(hash string) GetBlockRequest {
	return GetBlockRequest{Hash: &hash}
}

// GetTxRequest is the payload of GetTx.
type GetTxRequest struct {
	Hash string
}

// GetAccountRequest is the payload of GetAccount.
type GetAccountRequest struct {
	Address string
}
