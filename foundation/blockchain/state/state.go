// Package state is the core API for the blockchain and implements all the
// business rules and processing that span the ledger, the mempool and the
// account state.
package state

import (
	"crypto/ecdsa"
	"errors"
	"sync"

	"github.com/ardanlabs/minichain/foundation/blockchain/accounts"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/genesis"
	"github.com/ardanlabs/minichain/foundation/blockchain/ledger"
	"github.com/ardanlabs/minichain/foundation/blockchain/mempool"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and peer message processing.
type Worker interface {
	Shutdown()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerKey    *ecdsa.PrivateKey
	Genesis     genesis.Genesis
	Ledger      ledger.Ledger
	Mempool     mempool.Pool
	Accounts    accounts.Engine
	MempoolTake int
	EvHandler   EventHandler
}

// State manages the blockchain. Producing and committing blocks is
// serialized so the account state always matches the head of the ledger.
type State struct {
	minerKey     *ecdsa.PrivateKey
	minerAddress database.Address
	genesis      genesis.Genesis
	mempoolTake  int
	evHandler    EventHandler
	mu           sync.Mutex

	ledger   ledger.Ledger
	mempool  mempool.Pool
	accounts accounts.Engine

	Worker Worker
}

// New constructs the state for the blockchain node.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.MinerKey == nil {
		return nil, errors.New("miner key is required")
	}

	if cfg.Ledger == nil || cfg.Mempool == nil || cfg.Accounts == nil {
		return nil, errors.New("ledger, mempool and accounts are required")
	}

	take := cfg.MempoolTake
	if take <= 0 {
		take = int(cfg.Genesis.TxsPerBlock)
	}
	if take <= 0 {
		take = genesis.DefaultMempoolTake
	}

	state := State{
		minerKey:     cfg.MinerKey,
		minerAddress: database.PublicKeyToAddress(cfg.MinerKey.PublicKey),
		genesis:      cfg.Genesis,
		mempoolTake:  take,
		evHandler:    ev,

		ledger:   cfg.Ledger,
		mempool:  cfg.Mempool,
		accounts: cfg.Accounts,
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	var errs []error

	if c, ok := s.ledger.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}

	if c, ok := s.accounts.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}

// Ledger returns the ledger the state is built on.
func (s *State) Ledger() ledger.Ledger {
	return s.ledger
}

// Mempool returns the pool of pending transactions.
func (s *State) Mempool() mempool.Pool {
	return s.mempool
}

// Accounts returns the account state engine.
func (s *State) Accounts() accounts.Engine {
	return s.accounts
}

// MinerAddress returns the address block rewards are paid to.
func (s *State) MinerAddress() database.Address {
	return s.minerAddress
}

// Genesis returns the genesis configuration of the chain.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}
