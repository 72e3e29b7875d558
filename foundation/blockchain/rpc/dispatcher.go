package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/ledger"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
	"github.com/ardanlabs/minichain/foundation/blockchain/transport"
)

// EventHandler defines a function that is called when events
// occur in the processing of RPCs.
type EventHandler func(v string, args ...any)

// Node represents the behavior the dispatcher needs from the node to answer
// requests.
type Node interface {
	Ledger() ledger.Ledger
	QueryTx(hash signature.Hash) (database.Tx, signature.Hash, error)
	QueryAccount(addr database.Address) (database.Account, error)
	SubmitTx(tx database.Tx) (database.Tx, error)
	CommitBlock(block database.Block) error
}

// Config represents the configuration required to construct the
// dispatcher.
type Config struct {
	Node      Node
	EvHandler EventHandler
}

// Dispatcher maps every RPC onto a single node operation and wraps the
// outcome in a tagged response. It holds no state of its own.
type Dispatcher struct {
	node      Node
	evHandler EventHandler
}

// NewDispatcher constructs a dispatcher for the node.
func NewDispatcher(cfg Config) *Dispatcher {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Dispatcher{
		node:      cfg.Node,
		evHandler: ev,
	}
}

// DispatchBytes decodes the envelope and dispatches it. An envelope that
// can't be decoded is answered with an error response.
func (d *Dispatcher) DispatchBytes(data []byte) Response {
	r, err := Decode(data)
	if err != nil {
		d.evHandler("rpc: DispatchBytes: ERROR: %s", err)
		return ErrorResponse("%s", err)
	}

	return d.Dispatch(r)
}

// Dispatch performs the operation selected by the RPC header. Failures are
// returned as generic responses. A panic while handling the request is
// recovered and returned as an error response.
func (d *Dispatcher) Dispatch(r RPC) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			d.evHandler("rpc: Dispatch: header[%s]: PANIC: %v: %s", r.Header, rec, debug.Stack())
			resp = ErrorResponse("panic while handling %s: %v", r.Header, rec)
		}
	}()

	d.evHandler("rpc: Dispatch: header[%s]: payload[%d]", r.Header, len(r.Payload))

	var err error
	switch r.Header {
	case GetBlock:
		resp, err = d.getBlock(r)
	case GetBlockHeader:
		resp, err = d.getBlockHeader(r)
	case GetLastBlock:
		resp, err = d.getLastBlock()
	case GetChainHeight:
		resp = GenericResponse("%d", d.node.Ledger().Height())
	case GetTx:
		resp, err = d.getTx(r)
	case NewTx:
		resp, err = d.newTx(r)
	case NewBlock:
		resp, err = d.newBlock(r)
	case GetAccount:
		resp, err = d.getAccount(r)
	case Generic:
		resp = GenericResponse("Generic response")
	case CommitBlock, BlockProposal, BlockVote:
		resp = GenericResponse("unsupported RPC header: %s", r.Header)
	default:
		resp = GenericResponse("unknown RPC header requested")
	}

	if err != nil {
		ne := transport.RPCError(err)
		d.evHandler("rpc: Dispatch: header[%s]: ERROR: %s", r.Header, ne)
		return GenericResponse("%s", ne.Msg)
	}

	return resp
}

// =============================================================================

func (d *Dispatcher) getBlock(r RPC) (Response, error) {
	var req GetBlockRequest
	if err := database.Decode(r.Payload, &req); err != nil {
		return Response{}, transport.NewNetworkError(transport.KindDecoding, "%s", err)
	}

	chain := d.node.Ledger()

	switch {
	case req.Height != nil && req.Hash == nil:
		height, err := strconv.ParseUint(*req.Height, 10, 64)
		if err != nil {
			return Response{}, transport.NewNetworkError(transport.KindDecoding, "%s", err)
		}

		block, err := chain.GetBlock(height)
		if err != nil {
			return Response{}, notFound(err, "Block with height: %s not found", *req.Height)
		}
		return BlockResponse(block), nil

	case req.Hash != nil && req.Height == nil:
		hash, err := signature.ParseHash(*req.Hash)
		if err != nil {
			return Response{}, transport.NewNetworkError(transport.KindDecoding, "%s", err)
		}

		block, err := chain.GetBlockByHash(hash)
		if err != nil {
			return Response{}, notFound(err, "Block with hash: %s not found", *req.Hash)
		}
		return BlockResponse(block), nil
	}

	return Response{}, transport.NewNetworkError(transport.KindRPC, "Incorrect request, must request with height or hash")
}

func (d *Dispatcher) getBlockHeader(r RPC) (Response, error) {
	resp, err := d.getBlock(r)
	if err != nil {
		return Response{}, err
	}

	return HeaderResponse(resp.Block.Header), nil
}

func (d *Dispatcher) getLastBlock() (Response, error) {
	block, err := d.node.Ledger().LastBlock()
	if err != nil {
		return Response{}, notFound(err, "Last block not found")
	}

	return BlockResponse(block), nil
}

func (d *Dispatcher) getTx(r RPC) (Response, error) {
	var req GetTxRequest
	if err := database.Decode(r.Payload, &req); err != nil {
		return Response{}, transport.NewNetworkError(transport.KindDecoding, "%s", err)
	}

	hash, err := signature.ParseHash(req.Hash)
	if err != nil {
		return Response{}, transport.NewNetworkError(transport.KindDecoding, "%s", err)
	}

	tx, _, err := d.node.QueryTx(hash)
	if err != nil {
		if errors.Is(err, ledger.ErrTxNotFound) {
			return Response{}, transport.NewNetworkError(transport.KindRPC, "Transaction with hash: %s not found", req.Hash)
		}
		return Response{}, err
	}

	return TxResponse(tx), nil
}

func (d *Dispatcher) newTx(r RPC) (Response, error) {
	tx, err := database.DecodeTx(r.Payload)
	if err != nil {
		return Response{}, transport.NewNetworkError(transport.KindRPC, "unable to handle NewTx: %s", err)
	}

	tx, err = d.node.SubmitTx(tx)
	if err != nil {
		return Response{}, transport.NewNetworkError(transport.KindRPC, "unable to handle NewTx: %s", err)
	}

	return TxResponse(tx), nil
}

func (d *Dispatcher) newBlock(r RPC) (Response, error) {
	block, err := database.DecodeBlock(r.Payload)
	if err != nil {
		return Response{}, transport.NewNetworkError(transport.KindRPC, "unable to handle NewBlock: %s", err)
	}

	if err := d.node.CommitBlock(block); err != nil {
		return Response{}, transport.NewNetworkError(transport.KindRPC, "unable to handle NewBlock: %s", err)
	}

	return HeaderResponse(block.Header), nil
}

func (d *Dispatcher) getAccount(r RPC) (Response, error) {
	var req GetAccountRequest
	if err := database.Decode(r.Payload, &req); err != nil {
		return Response{}, transport.NewNetworkError(transport.KindDecoding, "%s", err)
	}

	addr, err := database.ParseAddress(req.Address)
	if err != nil {
		return Response{}, err
	}

	account, err := d.node.QueryAccount(addr)
	if err != nil {
		return Response{}, err
	}

	data, err := json.Marshal(struct {
		Address database.Address `json:"address"`
		database.Account
	}{
		Address: addr,
		Account: account,
	})
	if err != nil {
		return Response{}, err
	}

	return GenericResponse("%s", data), nil
}

// notFound replaces a ledger miss with the client facing message. Any
// other error is kept.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return transport.NewNetworkError(transport.KindRPC, format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
