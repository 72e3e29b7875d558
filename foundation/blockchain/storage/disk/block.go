package disk

import (
	"fmt"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
	"github.com/dgraph-io/badger"
)

// Key prefixes used by the block store.
const (
	blockPrefix  = "block"
	heightPrefix = "height"
	txPrefix     = "tx"
)

func blockKey(hash signature.Hash) []byte {
	return []byte(fmt.Sprintf("%s_%s", blockPrefix, hash))
}

func heightKey(height uint64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", heightPrefix, height))
}

func txKey(hash signature.Hash) []byte {
	return []byte(fmt.Sprintf("%s_%s", txPrefix, hash))
}

// =============================================================================

// Blocks represents the storage implementation for reading and storing
// blocks in badger. Blocks are keyed by hash with a height to hash index
// and a transaction hash to block hash index. This implements the
// storage.BlockStorage interface.
type Blocks struct {
	db *badger.DB
}

// NewBlocks opens or creates the block store at the specified path.
func NewBlocks(path string, ev EventHandler) (*Blocks, error) {
	db, err := open(path, ev)
	if err != nil {
		return nil, err
	}

	return &Blocks{db: db}, nil
}

// Close releases the underlying store.
func (b *Blocks) Close() error {
	return b.db.Close()
}

// Put stores the block and its indexes in a single transaction.
func (b *Blocks) Put(block database.Block) error {
	data, err := block.Bytes()
	if err != nil {
		return err
	}

	hash := block.Hash()

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	// [block_hash] => [block bytes]
	if err := txn.Set(blockKey(hash), data); err != nil {
		return err
	}

	// [height_n] => [block hash]
	if err := txn.Set(heightKey(block.Header.Height), hash[:]); err != nil {
		return err
	}

	// [tx_hash] => [block hash]
	for _, tx := range block.Transactions {
		txHash, err := tx.Hash()
		if err != nil {
			return err
		}
		if err := txn.Set(txKey(txHash), hash[:]); err != nil {
			return err
		}
	}

	return txn.Commit()
}

// GetByHash returns the block with the specified hash.
func (b *Blocks) GetByHash(hash signature.Hash) (database.Block, error) {
	data, err := get(b.db, blockKey(hash))
	if err != nil {
		return database.Block{}, err
	}

	return database.DecodeBlock(data)
}

// GetByHeight returns the block at the specified height.
func (b *Blocks) GetByHeight(height uint64) (database.Block, error) {
	data, err := get(b.db, heightKey(height))
	if err != nil {
		return database.Block{}, err
	}

	var hash signature.Hash
	copy(hash[:], data)

	return b.GetByHash(hash)
}

// TxBlock returns the hash of the block holding the specified transaction.
func (b *Blocks) TxBlock(txHash signature.Hash) (signature.Hash, error) {
	data, err := get(b.db, txKey(txHash))
	if err != nil {
		return signature.ZeroHash, err
	}

	var hash signature.Hash
	copy(hash[:], data)

	return hash, nil
}
