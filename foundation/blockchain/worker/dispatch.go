package worker

import (
	"runtime/debug"

	"github.com/ardanlabs/minichain/foundation/blockchain/rpc"
	"github.com/ardanlabs/minichain/foundation/blockchain/transport"
)

// dispatchOperations hands every RPC received from a peer to the
// dispatcher. Packets are processed one at a time in arrival order.
func (w *Worker) dispatchOperations() {
	w.evHandler("worker: dispatchOperations: G started")
	defer w.evHandler("worker: dispatchOperations: G completed")

	packets := w.transport.Consume()

	for {
		select {
		case pkt, ok := <-packets:
			if !ok {
				w.evHandler("worker: dispatchOperations: transport closed")
				return
			}
			if !w.isShutdown() {
				w.runDispatchOperation(pkt)
			}
		case <-w.shut:
			w.evHandler("worker: dispatchOperations: received shut signal")
			return
		}
	}
}

// runDispatchOperation answers a single peer RPC. Responses are logged and
// not sent back, peers only push blocks and transactions at each other.
func (w *Worker) runDispatchOperation(pkt transport.Packet) {
	defer func() {
		if rec := recover(); rec != nil {
			w.evHandler("worker: runDispatchOperation: from[%s]: PANIC: %v: %s", pkt.From, rec, debug.Stack())
		}
	}()

	resp := w.dispatcher.DispatchBytes(pkt.Payload)

	switch resp.Kind {
	case rpc.KindError, rpc.KindGeneric:
		w.evHandler("worker: runDispatchOperation: from[%s]: WARNING: %s", pkt.From, resp)
	default:
		w.evHandler("worker: runDispatchOperation: from[%s]: %s", pkt.From, resp)
	}
}
