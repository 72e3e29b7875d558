package state

import (
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
)

// SubmitTx accepts a transaction for inclusion in a future block. An
// unsigned transaction is signed with the node key. The accepted
// transaction is returned.
func (s *State) SubmitTx(tx database.Tx) (database.Tx, error) {
	if !tx.IsSigned() {
		s.evHandler("state: SubmitTx: signing with node key")

		if err := tx.Sign(s.minerKey); err != nil {
			return database.Tx{}, err
		}
	}

	if err := tx.Verify(); err != nil {
		return database.Tx{}, err
	}

	if _, err := database.ToTxType(uint8(tx.Type)); err != nil {
		return database.Tx{}, err
	}

	s.mempool.Add(tx)
	s.evHandler("state: SubmitTx: added tx[%s]: mempool[%d]", tx, s.mempool.Len())

	return tx, nil
}
