package state

import (
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
)

// QueryTx returns the transaction with the specified hash. The mempool is
// searched first and a pending transaction is returned with the zero block
// hash. Otherwise the ledger is searched.
func (s *State) QueryTx(hash signature.Hash) (database.Tx, signature.Hash, error) {
	if tx, exists := s.mempool.Get(hash); exists {
		return tx, signature.ZeroHash, nil
	}

	return s.ledger.GetTx(hash)
}

// QueryAccount returns the current state of the account.
func (s *State) QueryAccount(addr database.Address) (database.Account, error) {
	return s.accounts.GetAccount(addr)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Len()
}
