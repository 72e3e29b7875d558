// Package worker implements block production and the processing of peer
// requests for the node.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/rpc"
	"github.com/ardanlabs/minichain/foundation/blockchain/state"
	"github.com/ardanlabs/minichain/foundation/blockchain/transport"
)

// DefaultBlockTime is the interval between mining operations when the
// configuration doesn't set one.
const DefaultBlockTime = 5 * time.Second

// Config represents the configuration required to start the worker.
type Config struct {
	State      *state.State
	Transport  transport.Transport
	Dispatcher *rpc.Dispatcher
	BlockTime  time.Duration
	EvHandler  state.EventHandler
}

// =============================================================================

// Worker manages the mining and dispatch workflows for the node.
type Worker struct {
	state      *state.State
	transport  transport.Transport
	dispatcher *rpc.Dispatcher
	wg         sync.WaitGroup
	ticker     *time.Ticker
	ctx        context.Context
	cancel     context.CancelFunc
	shutOnce   sync.Once
	shut       chan struct{}
	evHandler  state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(cfg Config) *Worker {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	blockTime := cfg.BlockTime
	if blockTime <= 0 {
		blockTime = DefaultBlockTime
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:      cfg.State,
		transport:  cfg.Transport,
		dispatcher: cfg.Dispatcher,
		ticker:     time.NewTicker(blockTime),
		ctx:        ctx,
		cancel:     cancel,
		shut:       make(chan struct{}),
		evHandler:  ev,
	}

	// Register this worker with the state package.
	cfg.State.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.miningOperations,
		w.dispatchOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work. A mining operation in
// progress is cancelled.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()

		w.evHandler("worker: shutdown: cancel mining")
		w.cancel()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
