package ledger_test

import (
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/genesis"
	"github.com/ardanlabs/minichain/foundation/blockchain/ledger"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage/memory"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const minerKey = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"

func newChain(t *testing.T) (*ledger.Chain, database.Block, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := crypto.HexToECDSA(minerKey)
	if err != nil {
		t.Fatalf("Should be able to load the miner key: %s", err)
	}

	gen, err := database.GenesisBlock(genesis.Default())
	if err != nil {
		t.Fatalf("Should be able to construct genesis: %s", err)
	}

	chain, err := ledger.New(ledger.Config{
		Storage:   memory.NewBlocks(),
		Genesis:   gen,
		EvHandler: func(v string, args ...any) { t.Logf(v, args...) },
	})
	if err != nil {
		t.Fatalf("Should be able to construct the ledger: %s", err)
	}

	return chain, gen, key
}

func nextBlock(t *testing.T, parent database.Header, key *ecdsa.PrivateKey) database.Block {
	t.Helper()

	tx, err := database.NewRewardTx(parent.Height, database.Address{0x01}, 50)
	if err != nil {
		t.Fatalf("Should be able to construct a transaction: %s", err)
	}

	blk, err := database.NewBlock(parent, []database.Tx{tx}, signature.ZeroHash)
	if err != nil {
		t.Fatalf("Should be able to construct a block: %s", err)
	}

	if key != nil {
		if err := blk.Sign(key); err != nil {
			t.Fatalf("Should be able to sign a block: %s", err)
		}
	}

	return blk
}

// =============================================================================

func Test_AddBlock(t *testing.T) {
	t.Log("Given the need to append blocks to the ledger.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen adding a block after genesis.", testID)
		{
			chain, gen, key := newChain(t)

			if chain.Height() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould start at height 0, got %d.", failed, testID, chain.Height())
			}
			t.Logf("\t%s\tTest %d:\tShould start at height 0.", success, testID)

			blk := nextBlock(t, gen.Header, key)
			if blk.Header.PrevHash != gen.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould link to the genesis hash.", failed, testID)
			}

			if err := chain.AddBlock(blk); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to add the block.", success, testID)

			if chain.Height() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould be at height 1, got %d.", failed, testID, chain.Height())
			}
			t.Logf("\t%s\tTest %d:\tShould be at height 1.", success, testID)

			err := chain.AddBlock(blk)
			if !errors.Is(err, ledger.ErrBlockExists) {
				t.Fatalf("\t%s\tTest %d:\tShould not add the same block twice: %v", failed, testID, err)
			}
			if err.Error() != "blockchain already contains block" {
				t.Fatalf("\t%s\tTest %d:\tShould get a stable error message, got %q.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not add the same block twice.", success, testID)

			last, err := chain.LastBlock()
			if err != nil || last.Hash() != blk.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould get the block back as the last block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get the block back as the last block.", success, testID)

			h, err := chain.GetHeaderByHash(blk.Hash())
			if err != nil || h.Height != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould get the header back by hash: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get the header back by hash.", success, testID)

			txHash, _ := blk.Transactions[0].Hash()
			tx, blkHash, err := chain.GetTx(txHash)
			if err != nil || blkHash != blk.Hash() || !tx.Equals(blk.Transactions[0]) {
				t.Fatalf("\t%s\tTest %d:\tShould get the transaction back by hash: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get the transaction back by hash.", success, testID)
		}
	}
}

func Test_RejectBlock(t *testing.T) {
	type table struct {
		name  string
		block func(t *testing.T, gen database.Block, key *ecdsa.PrivateKey) database.Block
		err   error
	}

	other, _ := crypto.GenerateKey()

	tt := []table{
		{
			name: "unsigned",
			block: func(t *testing.T, gen database.Block, key *ecdsa.PrivateKey) database.Block {
				return nextBlock(t, gen.Header, nil)
			},
			err: ledger.ErrNoSignature,
		},
		{
			name: "badsigner",
			block: func(t *testing.T, gen database.Block, key *ecdsa.PrivateKey) database.Block {
				blk := nextBlock(t, gen.Header, key)
				blk.Signer = signature.PublicKeyBytes(other.PublicKey)
				return blk
			},
			err: ledger.ErrInvalidSignature,
		},
		{
			name: "gap",
			block: func(t *testing.T, gen database.Block, key *ecdsa.PrivateKey) database.Block {
				parent := gen.Header
				parent.Height = 5
				return nextBlock(t, parent, key)
			},
			err: ledger.ErrOutOfOrder,
		},
		{
			name: "parent",
			block: func(t *testing.T, gen database.Block, key *ecdsa.PrivateKey) database.Block {
				parent := gen.Header
				parent.Hash = signature.Sum([]byte("fork"))
				return nextBlock(t, parent, key)
			},
			err: ledger.ErrPrevHashMismatch,
		},
		{
			name: "tampered",
			block: func(t *testing.T, gen database.Block, key *ecdsa.PrivateKey) database.Block {
				blk := nextBlock(t, gen.Header, key)
				blk.Header.Timestamp++
				return blk
			},
			err: ledger.ErrHashMismatch,
		},
	}

	t.Log("Given the need to reject invalid blocks.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen adding a %s block.", testID, tst.name)
				{
					chain, gen, key := newChain(t)

					err := chain.AddBlock(tst.block(t, gen, key))
					if !errors.Is(err, tst.err) {
						t.Logf("\t\tTest %d:\tgot: %v", testID, err)
						t.Logf("\t\tTest %d:\texp: %v", testID, tst.err)
						t.Fatalf("\t%s\tTest %d:\tShould reject the block.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject the block.", success, testID)

					if chain.Height() != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould leave the chain at height 0.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould leave the chain at height 0.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Lookups(t *testing.T) {
	t.Log("Given the need to look up missing blocks.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen asking for blocks that don't exist.", testID)
		{
			chain, _, _ := newChain(t)

			if _, err := chain.GetBlock(7); !errors.Is(err, ledger.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get not found by height: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get not found by height.", success, testID)

			if _, err := chain.GetBlockByHash(signature.Sum([]byte("x"))); !errors.Is(err, ledger.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get not found by hash: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get not found by hash.", success, testID)

			if _, err := chain.GetHeader(1); !errors.Is(err, ledger.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get not found for a header: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get not found for a header.", success, testID)

			if _, _, err := chain.GetTx(signature.Sum([]byte("x"))); !errors.Is(err, ledger.ErrTxNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get not found for a transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get not found for a transaction.", success, testID)
		}
	}
}

func Test_Reload(t *testing.T) {
	path := t.TempDir()

	key, _ := crypto.HexToECDSA(minerKey)
	gen, _ := database.GenesisBlock(genesis.Default())

	t.Log("Given the need to restart the ledger from disk.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen reopening a ledger with two blocks.", testID)
		{
			blocks, err := disk.NewBlocks(path, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open storage: %v", failed, testID, err)
			}

			chain, err := ledger.New(ledger.Config{Storage: blocks, Genesis: gen})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the ledger: %v", failed, testID, err)
			}

			b1 := nextBlock(t, gen.Header, key)
			b2 := nextBlock(t, b1.Header, key)
			for _, b := range []database.Block{b1, b2} {
				if err := chain.AddBlock(b); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to add block %d: %v", failed, testID, b.Header.Height, err)
				}
			}
			chain.Close()

			blocks, err = disk.NewBlocks(path, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reopen storage: %v", failed, testID, err)
			}

			chain, err = ledger.New(ledger.Config{Storage: blocks, Genesis: gen})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reload the ledger: %v", failed, testID, err)
			}
			defer chain.Close()

			if chain.Height() != 2 || chain.LastHeader().Hash != b2.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould restore the chain at height 2, got %d.", failed, testID, chain.Height())
			}
			t.Logf("\t%s\tTest %d:\tShould restore the chain at height 2.", success, testID)
		}
	}
}
