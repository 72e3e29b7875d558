package mempool_test

import (
	"sync"
	"testing"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/mempool"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newTx(t *testing.T, nonce uint64) database.Tx {
	t.Helper()

	tx, err := database.NewTransferTx(nonce, database.Address{0x01}, database.Address{0x02}, nonce*10)
	if err != nil {
		t.Fatalf("Should be able to construct a transaction: %s", err)
	}

	return tx
}

// =============================================================================

func Test_FIFO(t *testing.T) {
	t.Log("Given the need to pool transactions in arrival order.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen adding three transactions and taking two.", testID)
		{
			mp := mempool.New()
			a, b, c := newTx(t, 1), newTx(t, 2), newTx(t, 3)

			mp.Add(a)
			mp.Add(b)
			mp.Add(c)

			if got := mp.Take(0); len(got) != 0 || mp.Len() != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould not change the pool when taking zero.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not change the pool when taking zero.", success, testID)

			got := mp.Take(2)
			if len(got) != 2 || !got[0].Equals(a) || !got[1].Equals(b) {
				t.Fatalf("\t%s\tTest %d:\tShould take [a, b] in order.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould take [a, b] in order.", success, testID)

			if mp.Len() != 1 || !mp.Has(c) || mp.Has(a) {
				t.Fatalf("\t%s\tTest %d:\tShould leave only c in the pool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave only c in the pool.", success, testID)

			if got := mp.Take(10); len(got) != 1 || !got[0].Equals(c) {
				t.Fatalf("\t%s\tTest %d:\tShould take fewer when the pool holds fewer.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould take fewer when the pool holds fewer.", success, testID)

			if got := mp.Take(1); len(got) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould take nothing from an empty pool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould take nothing from an empty pool.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen requeueing and removing transactions.", testID)
		{
			mp := mempool.New()
			a, b, c := newTx(t, 1), newTx(t, 2), newTx(t, 3)

			mp.Add(a)
			mp.Add(b)
			mp.Add(c)

			taken := mp.Take(2)
			mp.Requeue(taken)

			got := mp.Take(3)
			if len(got) != 3 || !got[0].Equals(a) || !got[1].Equals(b) || !got[2].Equals(c) {
				t.Fatalf("\t%s\tTest %d:\tShould restore the original order after a requeue.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould restore the original order after a requeue.", success, testID)

			mp.Add(a)
			mp.Add(b)
			mp.Add(a)

			if removed := mp.Remove([]database.Tx{a}); removed != 2 || mp.Len() != 1 || !mp.Has(b) {
				t.Fatalf("\t%s\tTest %d:\tShould remove every copy of a committed transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove every copy of a committed transaction.", success, testID)

			hash, _ := b.Hash()
			if tx, found := mp.Get(hash); !found || !tx.Equals(b) {
				t.Fatalf("\t%s\tTest %d:\tShould find a pooled transaction by hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould find a pooled transaction by hash.", success, testID)

			mp.Flush()
			if mp.Len() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould be empty after a flush.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be empty after a flush.", success, testID)
		}
	}
}

func Test_Concurrent(t *testing.T) {
	t.Log("Given the need to share the pool between goroutines.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen adding and taking concurrently.", testID)
		{
			mp := mempool.New()
			tx := newTx(t, 1)

			const n = 100

			var wg sync.WaitGroup
			wg.Add(2)

			go func() {
				defer wg.Done()
				for i := 0; i < n; i++ {
					mp.Add(tx)
				}
			}()

			var taken int
			go func() {
				defer wg.Done()
				for i := 0; i < n; i++ {
					taken += len(mp.Take(1))
				}
			}()

			wg.Wait()

			if taken+mp.Len() != n {
				t.Fatalf("\t%s\tTest %d:\tShould account for every transaction, taken %d, left %d.", failed, testID, taken, mp.Len())
			}
			t.Logf("\t%s\tTest %d:\tShould account for every transaction.", success, testID)
		}
	}
}
