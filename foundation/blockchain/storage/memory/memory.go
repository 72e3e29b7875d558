// Package memory implements the ability to read and write blocks and
// accounts to memory using maps. It's used by tests and development nodes.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage"
)

// Blocks represents the storage implementation for reading and storing
// blocks in memory. This implements the storage.BlockStorage interface.
type Blocks struct {
	mu       sync.RWMutex
	byHash   map[signature.Hash]database.Block
	byHeight map[uint64]signature.Hash
	txs      map[signature.Hash]signature.Hash
}

// NewBlocks constructs a Blocks value for use.
func NewBlocks() *Blocks {
	return &Blocks{
		byHash:   make(map[signature.Hash]database.Block),
		byHeight: make(map[uint64]signature.Hash),
		txs:      make(map[signature.Hash]signature.Hash),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (b *Blocks) Close() error {
	return nil
}

// Put stores the block and indexes it by height and transaction hash.
func (b *Blocks) Put(block database.Block) error {
	txHashes := make([]signature.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		hash, err := tx.Hash()
		if err != nil {
			return err
		}
		txHashes[i] = hash
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	hash := block.Hash()
	b.byHash[hash] = block
	b.byHeight[block.Header.Height] = hash
	for _, txHash := range txHashes {
		b.txs[txHash] = hash
	}

	return nil
}

// GetByHash returns the block with the specified hash.
func (b *Blocks) GetByHash(hash signature.Hash) (database.Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	block, exists := b.byHash[hash]
	if !exists {
		return database.Block{}, storage.ErrNotFound
	}

	return block, nil
}

// GetByHeight returns the block at the specified height.
func (b *Blocks) GetByHeight(height uint64) (database.Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hash, exists := b.byHeight[height]
	if !exists {
		return database.Block{}, storage.ErrNotFound
	}

	return b.byHash[hash], nil
}

// TxBlock returns the hash of the block holding the specified transaction.
func (b *Blocks) TxBlock(txHash signature.Hash) (signature.Hash, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hash, exists := b.txs[txHash]
	if !exists {
		return signature.ZeroHash, storage.ErrNotFound
	}

	return hash, nil
}

// =============================================================================

// Accounts represents the storage implementation for reading and storing
// accounts in memory. This implements the storage.AccountStorage interface.
type Accounts struct {
	mu       sync.RWMutex
	accounts map[database.Address]database.Account
}

// NewAccounts constructs an Accounts value for use.
func NewAccounts() *Accounts {
	return &Accounts{
		accounts: make(map[database.Address]database.Account),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (a *Accounts) Close() error {
	return nil
}

// Get returns the account for the specified address.
func (a *Accounts) Get(addr database.Address) (database.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	account, exists := a.accounts[addr]
	if !exists {
		return database.Account{}, storage.ErrNotFound
	}

	return account, nil
}

// Put stores the account for the specified address.
func (a *Accounts) Put(addr database.Address, account database.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.accounts[addr] = account
	return nil
}

// Delete removes the account for the specified address.
func (a *Accounts) Delete(addr database.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.accounts, addr)
	return nil
}

// ForEach calls the function for every account ordered by address.
func (a *Accounts) ForEach(fn func(addr database.Address, account database.Account) error) error {
	a.mu.RLock()
	addrs := make([]database.Address, 0, len(a.accounts))
	for addr := range a.accounts {
		addrs = append(addrs, addr)
	}
	accounts := make(map[database.Address]database.Account, len(a.accounts))
	for addr, account := range a.accounts {
		accounts[addr] = account
	}
	a.mu.RUnlock()

	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})

	for _, addr := range addrs {
		if err := fn(addr, accounts[addr]); err != nil {
			return err
		}
	}

	return nil
}
