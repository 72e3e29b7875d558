// Package storage defines the behavior required by the ledger and the state
// engine to persist blocks and accounts. Concrete implementations live in the
// memory and disk sub-packages.
package storage

import (
	"errors"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
)

// ErrNotFound is returned when the requested key does not exist.
var ErrNotFound = errors.New("not found")

// BlockStorage interface represents the behavior required to be implemented
// by any package providing support for storing and reading blocks. Blocks
// are keyed by hash with secondary indexes by height and by the hashes of
// the transactions they carry.
type BlockStorage interface {
	Put(block database.Block) error
	GetByHash(hash signature.Hash) (database.Block, error)
	GetByHeight(height uint64) (database.Block, error)
	TxBlock(txHash signature.Hash) (signature.Hash, error)
	Close() error
}

// AccountStorage interface represents the behavior required to be
// implemented by any package providing support for storing and reading
// accounts keyed by address.
type AccountStorage interface {
	Get(addr database.Address) (database.Account, error)
	Put(addr database.Address, account database.Account) error
	Delete(addr database.Address) error
	ForEach(fn func(addr database.Address, account database.Account) error) error
	Close() error
}
