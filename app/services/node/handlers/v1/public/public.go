// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/minichain/business/web/errs"
	"github.com/ardanlabs/minichain/foundation/blockchain/genesis"
	"github.com/ardanlabs/minichain/foundation/blockchain/rpc"
	"github.com/ardanlabs/minichain/foundation/blockchain/transport"
	"github.com/ardanlabs/minichain/foundation/events"
	"github.com/ardanlabs/minichain/foundation/nameservice"
	"github.com/ardanlabs/minichain/foundation/web"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints. Every chain operation is
// performed by handing an RPC to the dispatcher.
type Handlers struct {
	Log        *zap.SugaredLogger
	Dispatcher *rpc.Dispatcher
	Transport  transport.Transport
	Gen        genesis.Genesis
	NS         *nameservice.NameService
	WS         websocket.Upgrader
	Evts       *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Gen, http.StatusOK)
}

// Peers returns the peers the node is connected to.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toPeers(h.Transport.Peers()), http.StatusOK)
}

// ChainHeight returns the height of the last block.
func (h Handlers) ChainHeight(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp, err := h.dispatch(ctx, rpc.GetChainHeight, nil)
	if err != nil {
		return err
	}

	n, err := strconv.ParseUint(resp.Message, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing chain height %q: %w", resp.Message, err)
	}

	return web.Respond(ctx, w, height{Height: n}, http.StatusOK)
}

// LastBlock returns the last block in the chain.
func (h Handlers) LastBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp, err := h.dispatch(ctx, rpc.GetLastBlock, nil)
	if err != nil {
		return err
	}

	if resp.Kind != rpc.KindBlock {
		return errs.NotFound(errors.New(resp.Message))
	}

	return web.Respond(ctx, w, h.toBlock(resp.Block), http.StatusOK)
}

// Block returns the block selected by the height or hash query parameter.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	req, err := blockRequest(r)
	if err != nil {
		return err
	}

	resp, err := h.dispatch(ctx, rpc.GetBlock, req)
	if err != nil {
		return err
	}

	if resp.Kind != rpc.KindBlock {
		return errs.NotFound(errors.New(resp.Message))
	}

	return web.Respond(ctx, w, h.toBlock(resp.Block), http.StatusOK)
}

// Header returns the block header selected by the height or hash query
// parameter.
func (h Handlers) Header(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	req, err := blockRequest(r)
	if err != nil {
		return err
	}

	resp, err := h.dispatch(ctx, rpc.GetBlockHeader, req)
	if err != nil {
		return err
	}

	if resp.Kind != rpc.KindHeader {
		return errs.NotFound(errors.New(resp.Message))
	}

	return web.Respond(ctx, w, resp.Header, http.StatusOK)
}

// Tx returns the transaction with the specified hash from the mempool or
// the chain.
func (h Handlers) Tx(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp, err := h.dispatch(ctx, rpc.GetTx, rpc.GetTxRequest{Hash: web.Param(r, "hash")})
	if err != nil {
		return err
	}

	if resp.Kind != rpc.KindTransaction {
		return errs.NotFound(errors.New(resp.Message))
	}

	return web.Respond(ctx, w, h.toTx(resp.Tx), http.StatusOK)
}

// SubmitTx adds a new transaction to the mempool. An unsigned transaction is
// signed by the node.
func (h Handlers) SubmitTx(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nt NewTx
	if err := web.Decode(r, &nt); err != nil {
		return err
	}

	payload, err := hexutil.Decode(nt.Tx)
	if err != nil {
		return errs.BadRequest(fmt.Errorf("decoding tx: %w", err))
	}

	resp := h.Dispatcher.Dispatch(rpc.RPC{Header: rpc.NewTx, Payload: payload})
	h.Log.Infow("submit tx", "traceid", web.GetTraceID(ctx), "response", resp.String())

	if resp.Kind != rpc.KindTransaction {
		return errs.BadRequest(errors.New(resp.Message))
	}

	return web.Respond(ctx, w, h.toTx(resp.Tx), http.StatusOK)
}

// Account returns the balance and nonce of the specified address.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp, err := h.dispatch(ctx, rpc.GetAccount, rpc.GetAccountRequest{Address: web.Param(r, "address")})
	if err != nil {
		return err
	}

	var act account
	if err := json.Unmarshal([]byte(resp.Message), &act); err != nil {
		return errs.NotFound(errors.New(resp.Message))
	}
	act.Name = h.NS.Lookup(act.Address)

	return web.Respond(ctx, w, act, http.StatusOK)
}

// =============================================================================

// dispatch hands the request to the dispatcher. A request the dispatcher
// couldn't process at all is a bad request.
func (h Handlers) dispatch(ctx context.Context, header rpc.Header, v any) (rpc.Response, error) {
	req, err := rpc.New(header, v)
	if err != nil {
		return rpc.Response{}, fmt.Errorf("encoding %s request: %w", header, err)
	}

	resp := h.Dispatcher.Dispatch(req)
	h.Log.Infow("dispatch", "traceid", web.GetTraceID(ctx), "header", header.String(), "response", resp.String())

	if resp.Kind == rpc.KindError {
		return rpc.Response{}, errs.BadRequest(errors.New(resp.Message))
	}

	return resp, nil
}

// blockRequest builds a block request from the query string. Exactly one
// of height and hash must be provided.
func blockRequest(r *http.Request) (rpc.GetBlockRequest, error) {
	heightStr := web.Query(r, "height")
	hashStr := web.Query(r, "hash")

	switch {
	case heightStr != "" && hashStr == "":
		n, err := strconv.ParseUint(heightStr, 10, 64)
		if err != nil {
			return rpc.GetBlockRequest{}, errs.BadRequest(fmt.Errorf("invalid height %q", heightStr))
		}
		return rpc.ByHeight(n), nil

	case hashStr != "" && heightStr == "":
		return rpc.ByHash(hashStr), nil
	}

	return rpc.GetBlockRequest{}, errs.BadRequest(errors.New("Incorrect request, must request with height or hash"))
}
