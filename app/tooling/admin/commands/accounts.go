package commands

import (
	"fmt"
	"io"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage"
)

// Accounts prints every account held in storage, or only the account named
// by the optional address argument.
func Accounts(w io.Writer, args []string, acts storage.AccountStorage) error {
	if len(args) == 3 {
		addr, err := database.ParseAddress(args[2])
		if err != nil {
			return err
		}

		account, err := acts.Get(addr)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "Address: %s  Balance: %d  Nonce: %d\n", addr, account.Balance, account.Nonce)
		return nil
	}

	return acts.ForEach(func(addr database.Address, account database.Account) error {
		_, err := fmt.Fprintf(w, "Address: %s  Balance: %d  Nonce: %d\n", addr, account.Balance, account.Nonce)
		return err
	})
}
