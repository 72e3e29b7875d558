package state_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/ardanlabs/minichain/foundation/blockchain/accounts"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/genesis"
	"github.com/ardanlabs/minichain/foundation/blockchain/ledger"
	"github.com/ardanlabs/minichain/foundation/blockchain/mempool"
	"github.com/ardanlabs/minichain/foundation/blockchain/state"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage/memory"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	minerECDSA = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	userECDSA  = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
)

var (
	bob = database.Address{0xb0}
)

func loadKey(t *testing.T, hexKey string) *ecdsa.PrivateKey {
	t.Helper()

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("Should be able to load the key: %s", err)
	}

	return key
}

func testGenesis(user *ecdsa.PrivateKey) genesis.Genesis {
	gen := genesis.Default()
	gen.Balances[database.PublicKeyToAddress(user.PublicKey).String()] = 1000
	gen.Balances[bob.String()] = 0

	return gen
}

func newState(t *testing.T, gen genesis.Genesis, minerKey *ecdsa.PrivateKey) *state.State {
	t.Helper()

	ev := func(v string, args ...any) { t.Logf(v, args...) }

	genBlock, err := database.GenesisBlock(gen)
	if err != nil {
		t.Fatalf("Should be able to construct genesis: %s", err)
	}

	chain, err := ledger.New(ledger.Config{
		Storage:   memory.NewBlocks(),
		Genesis:   genBlock,
		EvHandler: ledger.EventHandler(ev),
	})
	if err != nil {
		t.Fatalf("Should be able to construct the ledger: %s", err)
	}

	act, err := accounts.New(accounts.Config{
		Storage:   memory.NewAccounts(),
		Genesis:   gen,
		EvHandler: accounts.EventHandler(ev),
	})
	if err != nil {
		t.Fatalf("Should be able to construct the accounts: %s", err)
	}

	st, err := state.New(state.Config{
		MinerKey:  minerKey,
		Genesis:   gen,
		Ledger:    chain,
		Mempool:   mempool.New(),
		Accounts:  act,
		EvHandler: ev,
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %s", err)
	}

	return st
}

func signedTransfer(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, to database.Address, amount uint64) database.Tx {
	t.Helper()

	from := database.PublicKeyToAddress(key.PublicKey)
	tx, err := database.NewTransferTx(nonce, from, to, amount)
	if err != nil {
		t.Fatalf("Should be able to construct the transfer: %s", err)
	}

	if err := tx.Sign(key); err != nil {
		t.Fatalf("Should be able to sign the transfer: %s", err)
	}

	return tx
}

func balance(t *testing.T, st *state.State, addr database.Address) uint64 {
	t.Helper()

	account, err := st.QueryAccount(addr)
	if err != nil {
		t.Fatalf("Should be able to query account %s: %s", addr, err)
	}

	return account.Balance
}

// =============================================================================

func Test_MineNewBlock(t *testing.T) {
	minerKey := loadKey(t, minerECDSA)
	userKey := loadKey(t, userECDSA)
	user := database.PublicKeyToAddress(userKey.PublicKey)
	miner := database.PublicKeyToAddress(minerKey.PublicKey)

	t.Log("Given the need to produce blocks from the mempool.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the mempool is empty.", testID)
		{
			st := newState(t, testGenesis(userKey), minerKey)

			if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrNoTransactions) {
				t.Fatalf("\t%s\tTest %d:\tShould skip block production: %v", failed, testID, err)
			}

			if st.Ledger().Height() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the chain at genesis.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould skip block production.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the mempool holds a valid and an invalid transfer.", testID)
		{
			st := newState(t, testGenesis(userKey), minerKey)

			good := signedTransfer(t, userKey, 0, bob, 300)
			bad := signedTransfer(t, userKey, 1, bob, 5000)

			for _, tx := range []database.Tx{good, bad} {
				if _, err := st.SubmitTx(tx); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to submit the transaction: %v", failed, testID, err)
				}
			}

			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine a block.", success, testID)

			if block.Header.Height != 1 || st.Ledger().Height() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould add the block at height 1.", failed, testID)
			}

			if err := block.Verify(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould sign the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould add a signed block at height 1.", success, testID)

			if len(block.Transactions) != 2 || !block.Transactions[1].Equals(good) {
				t.Fatalf("\t%s\tTest %d:\tShould include the reward and only the valid transfer, got %d txs.", failed, testID, len(block.Transactions))
			}
			t.Logf("\t%s\tTest %d:\tShould include the reward and only the valid transfer.", success, testID)

			if balance(t, st, user) != 700 || balance(t, st, bob) != 300 || balance(t, st, miner) != genesis.DefaultMiningReward {
				t.Fatalf("\t%s\tTest %d:\tShould apply the block to the accounts.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould apply the block to the accounts.", success, testID)

			root, _ := st.Accounts().GenStateRoot()
			if root != block.Header.StateRoot {
				t.Fatalf("\t%s\tTest %d:\tShould record the state root in the header.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould record the state root in the header.", success, testID)

			if st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould drain the mempool, got %d.", failed, testID, st.QueryMempoolLength())
			}
			t.Logf("\t%s\tTest %d:\tShould drain the mempool.", success, testID)

			hash, _ := good.Hash()
			_, blkHash, err := st.QueryTx(hash)
			if err != nil || blkHash != block.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould find the committed transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould find the committed transaction.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen mining is cancelled.", testID)
		{
			st := newState(t, testGenesis(userKey), minerKey)
			st.SubmitTx(signedTransfer(t, userKey, 0, bob, 300))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := st.MineNewBlock(ctx); !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest %d:\tShould stop mining: %v", failed, testID, err)
			}

			if st.QueryMempoolLength() != 1 || balance(t, st, user) != 1000 {
				t.Fatalf("\t%s\tTest %d:\tShould requeue the transaction and roll back the accounts.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould requeue the transaction and roll back the accounts.", success, testID)
		}
	}
}

func Test_CommitBlock(t *testing.T) {
	minerKey := loadKey(t, minerECDSA)
	userKey := loadKey(t, userECDSA)
	otherKey, _ := crypto.GenerateKey()

	t.Log("Given the need to commit blocks produced by a peer.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a peer mines a block with a transaction we also hold.", testID)
		{
			gen := testGenesis(userKey)
			producer := newState(t, gen, minerKey)
			follower := newState(t, gen, otherKey)

			tx := signedTransfer(t, userKey, 0, bob, 100)
			producer.SubmitTx(tx)
			follower.SubmitTx(tx)

			block, err := producer.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}

			if err := follower.CommitBlock(block); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to commit the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to commit the block.", success, testID)

			pRoot, _ := producer.Accounts().GenStateRoot()
			fRoot, _ := follower.Accounts().GenStateRoot()
			if pRoot != fRoot || follower.Ledger().Height() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould reach the same state as the producer.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reach the same state as the producer.", success, testID)

			if follower.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould remove the committed transaction from the mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove the committed transaction from the mempool.", success, testID)

			if err := follower.CommitBlock(block); !errors.Is(err, ledger.ErrBlockExists) {
				t.Fatalf("\t%s\tTest %d:\tShould not commit the same block twice: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not commit the same block twice.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a peer block claims the wrong state root.", testID)
		{
			gen := testGenesis(userKey)
			producer := newState(t, gen, minerKey)
			follower := newState(t, gen, otherKey)

			producer.SubmitTx(signedTransfer(t, userKey, 0, bob, 100))
			mined, err := producer.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}

			forged, err := database.NewBlock(database.Header{Hash: mined.Header.PrevHash}, mined.Transactions, mined.Header.TxRoot)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build a forged block: %v", failed, testID, err)
			}
			forged.Sign(minerKey)

			before, _ := follower.Accounts().GenStateRoot()

			if err := follower.CommitBlock(forged); !errors.Is(err, state.ErrStateRootMismatch) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the block.", success, testID)

			after, _ := follower.Accounts().GenStateRoot()
			if before != after || follower.Ledger().Height() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the follower unchanged.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the follower unchanged.", success, testID)
		}
	}
}
