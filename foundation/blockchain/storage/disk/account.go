package disk

import (
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/dgraph-io/badger"
)

// accountPrefix is followed by the 20 raw address bytes, so iterating the
// prefix walks the accounts in address order.
const accountPrefix = "acct_"

func accountKey(addr database.Address) []byte {
	return append([]byte(accountPrefix), addr[:]...)
}

// =============================================================================

// Accounts represents the storage implementation for reading and storing
// accounts in badger. This implements the storage.AccountStorage interface.
type Accounts struct {
	db *badger.DB
}

// NewAccounts opens or creates the account store at the specified path.
func NewAccounts(path string, ev EventHandler) (*Accounts, error) {
	db, err := open(path, ev)
	if err != nil {
		return nil, err
	}

	return &Accounts{db: db}, nil
}

// Close releases the underlying store.
func (a *Accounts) Close() error {
	return a.db.Close()
}

// Get returns the account for the specified address.
func (a *Accounts) Get(addr database.Address) (database.Account, error) {
	data, err := get(a.db, accountKey(addr))
	if err != nil {
		return database.Account{}, err
	}

	return database.DecodeAccount(data)
}

// Put stores the account for the specified address.
func (a *Accounts) Put(addr database.Address, account database.Account) error {
	data, err := account.Bytes()
	if err != nil {
		return err
	}

	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(accountKey(addr), data)
	})
}

// Delete removes the account for the specified address.
func (a *Accounts) Delete(addr database.Address) error {
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(accountKey(addr))
	})
}

// ForEach calls the function for every account ordered by address.
func (a *Accounts) ForEach(fn func(addr database.Address, account database.Account) error) error {
	return a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(accountPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var addr database.Address
			copy(addr[:], item.Key()[len(prefix):])

			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			account, err := database.DecodeAccount(data)
			if err != nil {
				return err
			}

			if err := fn(addr, account); err != nil {
				return err
			}
		}

		return nil
	})
}
