package memory_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/genesis"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Blocks(t *testing.T) {
	t.Log("Given the need to store blocks in memory.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen writing and reading blocks.", testID)
		{
			blocks := memory.NewBlocks()

			gen, _ := database.GenesisBlock(genesis.Default())
			tx, _ := database.NewRewardTx(0, database.Address{0x01}, 50)
			blk, _ := database.NewBlock(gen.Header, []database.Tx{tx}, signature.ZeroHash)

			for _, b := range []database.Block{gen, blk} {
				if err := blocks.Put(b); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to store block %d: %v", failed, testID, b.Header.Height, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to store the blocks.", success, testID)

			if got, err := blocks.GetByHeight(1); err != nil || got.Hash() != blk.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read the block by height: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to read the block by height.", success, testID)

			txHash, _ := tx.Hash()
			if h, err := blocks.TxBlock(txHash); err != nil || h != blk.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould be able to find the block of a transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to find the block of a transaction.", success, testID)

			if _, err := blocks.GetByHash(signature.Sum([]byte("missing"))); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get not found for a missing hash: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get not found for a missing hash.", success, testID)
		}
	}
}

func Test_Accounts(t *testing.T) {
	t.Log("Given the need to store accounts in memory.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen iterating accounts.", testID)
		{
			accounts := memory.NewAccounts()

			for _, addr := range []database.Address{{0x03}, {0x01}, {0x02}} {
				accounts.Put(addr, database.Account{Balance: uint64(addr[0])})
			}

			var order []byte
			accounts.ForEach(func(addr database.Address, account database.Account) error {
				order = append(order, addr[0])
				return nil
			})

			if string(order) != string([]byte{1, 2, 3}) {
				t.Fatalf("\t%s\tTest %d:\tShould iterate in address order: %v", failed, testID, order)
			}
			t.Logf("\t%s\tTest %d:\tShould iterate in address order.", success, testID)
		}
	}
}
