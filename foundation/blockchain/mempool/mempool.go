// Package mempool maintains the pool of unconfirmed transactions waiting to
// be included in a block. Transactions leave the pool in arrival order.
package mempool

import (
	"sync"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
)

// Pool represents the behavior of the transaction pool.
type Pool interface {
	Add(tx database.Tx)
	Take(n int) []database.Tx
	Requeue(txs []database.Tx)
	Remove(txs []database.Tx) int
	Has(tx database.Tx) bool
	Get(hash signature.Hash) (database.Tx, bool)
	Len() int
	Flush()
}

// =============================================================================

// Mempool represents a FIFO queue of transactions. It implements the Pool
// interface.
type Mempool struct {
	mu   sync.RWMutex
	pool []database.Tx
}

// New constructs a new, empty mempool.
func New() *Mempool {
	return &Mempool{}
}

// Len returns the current number of transactions in the pool.
func (mp *Mempool) Len() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Add appends the transaction to the back of the pool. There is no
// de-duplication.
func (mp *Mempool) Add(tx database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = append(mp.pool, tx)
}

// Take removes and returns up to n transactions from the front of the pool.
// Fewer are returned when the pool holds fewer.
func (mp *Mempool) Take(n int) []database.Tx {
	if n <= 0 {
		return nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if n > len(mp.pool) {
		n = len(mp.pool)
	}

	txs := make([]database.Tx, n)
	copy(txs, mp.pool[:n])
	mp.pool = mp.pool[n:]

	return txs
}

// Requeue puts transactions that were taken but not committed back at the
// front of the pool, keeping their original order.
func (mp *Mempool) Requeue(txs []database.Tx) {
	if len(txs) == 0 {
		return
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	pool := make([]database.Tx, 0, len(txs)+len(mp.pool))
	pool = append(pool, txs...)
	mp.pool = append(pool, mp.pool...)
}

// Remove deletes every pooled transaction equal to one of the specified
// transactions. It's used when a block produced by a peer is committed.
// The number of removed transactions is returned.
func (mp *Mempool) Remove(txs []database.Tx) int {
	if len(txs) == 0 {
		return 0
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed int
	pool := mp.pool[:0]
	for _, ptx := range mp.pool {
		if contains(txs, ptx) {
			removed++
			continue
		}
		pool = append(pool, ptx)
	}
	mp.pool = pool

	return removed
}

// Has reports whether a transaction with the same bytes is in the pool.
func (mp *Mempool) Has(tx database.Tx) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return contains(mp.pool, tx)
}

// Get returns the pooled transaction with the specified hash.
func (mp *Mempool) Get(hash signature.Hash) (database.Tx, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	for _, tx := range mp.pool {
		txHash, err := tx.Hash()
		if err != nil {
			continue
		}
		if txHash == hash {
			return tx, true
		}
	}

	return database.Tx{}, false
}

// Flush clears all the transactions from the pool.
func (mp *Mempool) Flush() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = nil
}

// =============================================================================

// contains reports whether tx is byte equal to any transaction in txs.
func contains(txs []database.Tx, tx database.Tx) bool {
	for _, t := range txs {
		if t.Equals(tx) {
			return true
		}
	}
	return false
}
