// Package ledger maintains the validated, hash linked sequence of blocks
// that makes up the blockchain.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage"
)

// Set of errors returned by the ledger. Blocks that fail validation return
// one of these and can be matched with errors.Is.
var (
	ErrBlockExists      = errors.New("blockchain already contains block")
	ErrNoSignature      = database.ErrNoSignature
	ErrInvalidSignature = database.ErrInvalidSignature
	ErrOutOfOrder       = errors.New("block height out of order")
	ErrPrevHashMismatch = errors.New("previous block hash mismatch")
	ErrHashMismatch     = errors.New("block hash mismatch")
	ErrNotFound         = errors.New("block not found")
	ErrTxNotFound       = errors.New("transaction not found")
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Ledger represents the behavior of the blockchain ledger.
type Ledger interface {
	Height() uint64
	AddBlock(block database.Block) error
	ValidateBlock(block database.Block) error
	HasBlock(height uint64) bool
	GetBlock(height uint64) (database.Block, error)
	GetBlockByHash(hash signature.Hash) (database.Block, error)
	LastBlock() (database.Block, error)
	GetHeader(height uint64) (database.Header, error)
	GetHeaderByHash(hash signature.Hash) (database.Header, error)
	LastHeader() database.Header
	GetTx(hash signature.Hash) (database.Tx, signature.Hash, error)
}

// =============================================================================

// Config represents the configuration required to construct the ledger.
type Config struct {
	Storage   storage.BlockStorage
	Genesis   database.Block
	EvHandler EventHandler
}

// Chain manages the header index in memory and the full blocks in the
// storage backend. It implements the Ledger interface.
type Chain struct {
	mu        sync.RWMutex
	headers   []database.Header
	heights   map[signature.Hash]uint64
	storage   storage.BlockStorage
	evHandler EventHandler
}

// New constructs the ledger. An empty storage is seeded with the genesis
// block without validation. Otherwise the header index is rebuilt from the
// blocks found in storage.
func New(cfg Config) (*Chain, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	c := Chain{
		heights:   make(map[signature.Hash]uint64),
		storage:   cfg.Storage,
		evHandler: ev,
	}

	stored, err := cfg.Storage.GetByHeight(0)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		ev("ledger: New: inserting genesis: hash[%s]", cfg.Genesis.Hash())

		if err := cfg.Storage.Put(cfg.Genesis); err != nil {
			return nil, fmt.Errorf("store genesis: %w", err)
		}
		c.append(cfg.Genesis.Header)

		return &c, nil

	case err != nil:
		return nil, fmt.Errorf("read genesis: %w", err)
	}

	if stored.Hash() != cfg.Genesis.Hash() {
		return nil, fmt.Errorf("stored genesis %s does not match configured genesis %s", stored.Hash(), cfg.Genesis.Hash())
	}

	if err := c.load(); err != nil {
		return nil, err
	}

	ev("ledger: New: loaded from storage: height[%d]", c.Height())

	return &c, nil
}

// Close releases the storage backend.
func (c *Chain) Close() error {
	return c.storage.Close()
}

// Height returns the height of the last block in the chain.
func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return uint64(len(c.headers) - 1)
}

// HasBlock reports whether a block exists at the specified height.
func (c *Chain) HasBlock(height uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return height < uint64(len(c.headers))
}

// AddBlock validates the block and appends it to the chain. The checks are
// performed in order: the height must not be occupied, the signature must
// verify against the embedded signer, the block must extend the head of
// the chain and its hash must match its content.
func (c *Chain) AddBlock(block database.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validate(block); err != nil {
		return err
	}

	if err := c.storage.Put(block); err != nil {
		return fmt.Errorf("store block: %w", err)
	}
	c.append(block.Header)

	c.evHandler("ledger: AddBlock: blk[%d]: hash[%s]: added", block.Header.Height, block.Hash())

	return nil
}

// ValidateBlock performs the same checks as AddBlock without changing the
// chain.
func (c *Chain) ValidateBlock(block database.Block) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.validate(block)
}

// GetBlock returns the block at the specified height.
func (c *Chain) GetBlock(height uint64) (database.Block, error) {
	if !c.HasBlock(height) {
		return database.Block{}, fmt.Errorf("%w: height %d", ErrNotFound, height)
	}

	block, err := c.storage.GetByHeight(height)
	if err != nil {
		return database.Block{}, c.mapError(err, fmt.Sprintf("height %d", height))
	}

	return block, nil
}

// GetBlockByHash returns the block with the specified hash.
func (c *Chain) GetBlockByHash(hash signature.Hash) (database.Block, error) {
	block, err := c.storage.GetByHash(hash)
	if err != nil {
		return database.Block{}, c.mapError(err, fmt.Sprintf("hash %s", hash))
	}

	return block, nil
}

// LastBlock returns the block at the head of the chain.
func (c *Chain) LastBlock() (database.Block, error) {
	return c.GetBlock(c.Height())
}

// GetHeader returns the header at the specified height.
func (c *Chain) GetHeader(height uint64) (database.Header, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if height >= uint64(len(c.headers)) {
		return database.Header{}, fmt.Errorf("%w: height %d", ErrNotFound, height)
	}

	return c.headers[height], nil
}

// GetHeaderByHash returns the header with the specified hash.
func (c *Chain) GetHeaderByHash(hash signature.Hash) (database.Header, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	height, exists := c.heights[hash]
	if !exists {
		return database.Header{}, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}

	return c.headers[height], nil
}

// LastHeader returns the header at the head of the chain.
func (c *Chain) LastHeader() database.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.headers[len(c.headers)-1]
}

// GetTx returns the committed transaction with the specified hash and the
// hash of the block that holds it.
func (c *Chain) GetTx(hash signature.Hash) (database.Tx, signature.Hash, error) {
	blockHash, err := c.storage.TxBlock(hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return database.Tx{}, signature.ZeroHash, fmt.Errorf("%w: hash %s", ErrTxNotFound, hash)
		}
		return database.Tx{}, signature.ZeroHash, err
	}

	block, err := c.GetBlockByHash(blockHash)
	if err != nil {
		return database.Tx{}, signature.ZeroHash, err
	}

	for _, tx := range block.Transactions {
		txHash, err := tx.Hash()
		if err != nil {
			return database.Tx{}, signature.ZeroHash, err
		}
		if txHash == hash {
			return tx, blockHash, nil
		}
	}

	return database.Tx{}, signature.ZeroHash, fmt.Errorf("%w: hash %s", ErrTxNotFound, hash)
}

// =============================================================================

// validate runs the ordered block checks against the head of the chain.
// The caller must hold the lock.
func (c *Chain) validate(block database.Block) error {
	height := block.Header.Height
	next := uint64(len(c.headers))

	c.evHandler("ledger: validate: blk[%d]: check: height is not occupied", height)

	if height < next {
		return ErrBlockExists
	}

	c.evHandler("ledger: validate: blk[%d]: check: signature", height)

	if err := block.Verify(); err != nil {
		return err
	}

	c.evHandler("ledger: validate: blk[%d]: check: block extends the chain", height)

	if height != next {
		return fmt.Errorf("%w: got %d, exp %d", ErrOutOfOrder, height, next)
	}

	head := c.headers[next-1]
	if block.Header.PrevHash != head.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrPrevHashMismatch, block.Header.PrevHash, head.Hash)
	}

	hash, err := block.ComputeHash()
	if err != nil {
		return err
	}

	if hash != block.Header.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrHashMismatch, block.Header.Hash, hash)
	}

	return nil
}

// load walks the height index from genesis until no block is found.
func (c *Chain) load() error {
	for height := uint64(0); ; height++ {
		block, err := c.storage.GetByHeight(height)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load block %d: %w", height, err)
		}

		if height > 0 && block.Header.PrevHash != c.headers[height-1].Hash {
			return fmt.Errorf("load block %d: %w", height, ErrPrevHashMismatch)
		}

		c.append(block.Header)
	}
}

// append adds the header to the index. The caller must hold the lock or
// own the chain exclusively.
func (c *Chain) append(h database.Header) {
	c.heights[h.Hash] = h.Height
	c.headers = append(c.headers, h)
}

// mapError converts a storage miss into ErrNotFound.
func (c *Chain) mapError(err error, key string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}
