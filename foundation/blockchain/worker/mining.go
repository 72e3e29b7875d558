package worker

import (
	"errors"
	"runtime/debug"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/rpc"
	"github.com/ardanlabs/minichain/foundation/blockchain/state"
)

// miningOperations mines a new block every time the ticker fires.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation takes transactions from the mempool, writes a new block
// to the ledger and proposes it to the connected peers.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	defer func() {
		if rec := recover(); rec != nil {
			w.evHandler("worker: runMiningOperation: MINING: PANIC: %v: %s", rec, debug.Stack())
		}
	}()

	t := time.Now()
	block, err := w.state.MineNewBlock(w.ctx)
	duration := time.Since(t)

	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

	if err != nil {
		switch {
		case errors.Is(err, state.ErrNoTransactions):
			w.evHandler("worker: runMiningOperation: MINING: no transactions in mempool")
		case w.ctx.Err() != nil:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
		default:
			w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		}
		return
	}

	// We mined a block. Send it to the network, log the error but
	// that's it.
	if err := w.broadcastBlock(block); err != nil {
		w.evHandler("worker: runMiningOperation: MINING: broadcastBlock: WARNING: %s", err)
	}
}

// broadcastBlock sends a NewBlock RPC carrying the block to every peer.
func (w *Worker) broadcastBlock(block database.Block) error {
	payload, err := block.Bytes()
	if err != nil {
		return err
	}

	data, err := rpc.RPC{Header: rpc.NewBlock, Payload: payload}.Bytes()
	if err != nil {
		return err
	}

	w.evHandler("worker: broadcastBlock: block[%d]: peers[%d]", block.Header.Height, len(w.transport.Peers()))

	return w.transport.Broadcast(data)
}
