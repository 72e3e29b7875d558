package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/minichain/foundation/blockchain/accounts"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/merkle"
)

// Set of errors returned when producing and committing blocks.
var (
	ErrNoTransactions    = errors.New("no transactions in mempool")
	ErrTxRootMismatch    = errors.New("block transaction root mismatch")
	ErrStateRootMismatch = errors.New("block state root mismatch")
	ErrInvalidReward     = errors.New("block reward is invalid")
)

// =============================================================================

// MineNewBlock takes transactions from the mempool, applies them to the
// account state along with the mining reward and adds the signed block to
// the ledger. A transaction that can't be applied is dropped. When the
// block can't be added the taken transactions are put back in the mempool.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: MineNewBlock: MINING: take transactions: max[%d]", s.mempoolTake)

	txs := s.mempool.Take(s.mempoolTake)
	if len(txs) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	block, err := s.mine(ctx, txs)
	if err != nil {
		if errors.Is(err, ErrNoTransactions) {
			s.evHandler("state: MineNewBlock: MINING: no valid transactions")
			return database.Block{}, err
		}

		s.evHandler("state: MineNewBlock: MINING: requeue transactions: ERROR: %s", err)
		s.mempool.Requeue(txs)
		return database.Block{}, err
	}

	s.blockEvent(block)

	return block, nil
}

// CommitBlock takes a block received from a peer, validates it against the
// ledger and the account state and if that passes adds it to the chain and
// removes its transactions from the mempool. Any failure leaves the account
// state unchanged.
func (s *State) CommitBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: CommitBlock: started: blk[%d]: hash[%s]: numTrans[%d]", block.Header.Height, block.Hash(), len(block.Transactions))
	defer s.evHandler("state: CommitBlock: completed: blk[%d]", block.Header.Height)

	if err := s.ledger.ValidateBlock(block); err != nil {
		return err
	}

	txRoot, err := merkle.RootOf(block.Transactions)
	if err != nil {
		return err
	}

	if txRoot != block.Header.TxRoot {
		return fmt.Errorf("%w: got %s, exp %s", ErrTxRootMismatch, block.Header.TxRoot, txRoot)
	}

	if err := s.validateReward(block); err != nil {
		return err
	}

	s.evHandler("state: CommitBlock: apply transactions")

	if err := s.accounts.ApplyBlock(block.Transactions); err != nil {
		return err
	}

	if err := s.commit(block); err != nil {
		return err
	}

	removed := s.mempool.Remove(block.Transactions)
	s.evHandler("state: CommitBlock: removed from mempool[%d]", removed)

	s.blockEvent(block)

	return nil
}

// =============================================================================

// mine builds the block for the transactions. The caller must hold the
// lock.
func (s *State) mine(ctx context.Context, txs []database.Tx) (database.Block, error) {
	head := s.ledger.LastHeader()

	reward, err := database.NewRewardTx(head.Height+1, s.minerAddress, s.genesis.MiningReward)
	if err != nil {
		return database.Block{}, err
	}

	if err := reward.Sign(s.minerKey); err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: apply transactions")

	var applied []database.Tx
	for {
		all := append([]database.Tx{reward}, txs...)

		err := s.accounts.ApplyBlock(all)
		if err == nil {
			applied = all
			break
		}

		// A failing user transaction is dropped and the rest are tried
		// again. Anything else aborts the block.
		var txErr *accounts.TxError
		if !errors.As(err, &txErr) || txErr.Index == 0 {
			return database.Block{}, err
		}

		s.evHandler("state: MineNewBlock: MINING: drop tx[%s]: %s", txs[txErr.Index-1], txErr.Err)

		txs = append(txs[:txErr.Index-1:txErr.Index-1], txs[txErr.Index:]...)
		if len(txs) == 0 {
			return database.Block{}, ErrNoTransactions
		}
	}

	stateRoot, err := s.accounts.GenStateRoot()
	if err != nil {
		s.rollback()
		return database.Block{}, err
	}

	block, err := database.NewBlock(head, applied, stateRoot)
	if err != nil {
		s.rollback()
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: sign block[%d]", block.Header.Height)

	if err := block.Sign(s.minerKey); err != nil {
		s.rollback()
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if err := ctx.Err(); err != nil {
		s.rollback()
		return database.Block{}, err
	}

	if err := s.commit(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// commit checks the state root and adds the block to the ledger. The
// account changes are rolled back on failure and made permanent on
// success.
func (s *State) commit(block database.Block) error {
	stateRoot, err := s.accounts.GenStateRoot()
	if err != nil {
		s.rollback()
		return err
	}

	if stateRoot != block.Header.StateRoot {
		s.rollback()
		return fmt.Errorf("%w: got %s, exp %s", ErrStateRootMismatch, block.Header.StateRoot, stateRoot)
	}

	s.evHandler("state: commit: add block[%d] to ledger", block.Header.Height)

	if err := s.ledger.AddBlock(block); err != nil {
		s.rollback()
		return err
	}

	s.accounts.ClearBackups()

	return nil
}

// validateReward checks the block carries exactly one reward, first in the
// block, paying the configured amount to the block signer.
func (s *State) validateReward(block database.Block) error {
	if len(block.Transactions) == 0 || block.Transactions[0].Type != database.TxBlockReward {
		return fmt.Errorf("%w: first transaction is not a reward", ErrInvalidReward)
	}

	for _, tx := range block.Transactions[1:] {
		if tx.Type == database.TxBlockReward {
			return fmt.Errorf("%w: more than one reward", ErrInvalidReward)
		}
	}

	rd, err := block.Transactions[0].Reward()
	if err != nil {
		return err
	}

	signer, err := block.SignerAddress()
	if err != nil {
		return err
	}

	if rd.To != signer || rd.Amount != s.genesis.MiningReward {
		return fmt.Errorf("%w: reward of %d to %s", ErrInvalidReward, rd.Amount, rd.To)
	}

	return nil
}

// rollback undoes the account changes of a failed block.
func (s *State) rollback() {
	if err := s.accounts.Rollback(); err != nil {
		s.evHandler("state: rollback: ERROR: %s", err)
	}
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockHeaderJSON, err := json.Marshal(block.Header)
	if err != nil {
		blockHeaderJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	blockTransJSON, err := json.Marshal(block.Transactions)
	if err != nil {
		blockTransJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"header":%s,"trans":%s}`, block.Hash(), string(blockHeaderJSON), string(blockTransJSON))
}
