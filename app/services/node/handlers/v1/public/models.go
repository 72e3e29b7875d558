package public

import (
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/peer"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NewTx is the payload for submitting a transaction. The transaction is the
// hex form of its encoded bytes, signed or unsigned.
type NewTx struct {
	Tx string `json:"tx" validate:"required,hexadecimal"`
}

type tx struct {
	Hash      signature.Hash    `json:"hash"`
	Type      string            `json:"type"`
	Nonce     uint64            `json:"nonce"`
	From      *database.Address `json:"from,omitempty"`
	FromName  string            `json:"from_name,omitempty"`
	To        database.Address  `json:"to"`
	ToName    string            `json:"to_name"`
	Amount    uint64            `json:"amount"`
	Signer    string            `json:"signer,omitempty"`
	Signature string            `json:"signature,omitempty"`
	BlockHash *signature.Hash   `json:"block_hash,omitempty"`
}

type block struct {
	Header       database.Header `json:"header"`
	Transactions []tx            `json:"transactions"`
}

type account struct {
	Address database.Address `json:"address"`
	Name    string           `json:"name"`
	Balance uint64           `json:"balance"`
	Nonce   uint64           `json:"nonce"`
}

type height struct {
	Height uint64 `json:"height"`
}

type peerInfo struct {
	Addr          string `json:"addr"`
	Direction     string `json:"direction"`
	State         string `json:"state"`
	LastHeartbeat string `json:"last_heartbeat"`
}

// =============================================================================

func (h Handlers) toTx(dbTx database.Tx) tx {
	hash, _ := dbTx.Hash()

	t := tx{
		Hash:  hash,
		Type:  dbTx.Type.String(),
		Nonce: dbTx.Nonce,
	}

	if len(dbTx.Signer) > 0 {
		t.Signer = hexutil.Encode(dbTx.Signer)
		t.Signature = hexutil.Encode(dbTx.Signature)
	}

	switch dbTx.Type {
	case database.TxTransfer:
		if td, err := dbTx.Transfer(); err == nil {
			t.From = &td.From
			t.FromName = h.NS.Lookup(td.From)
			t.To = td.To
			t.ToName = h.NS.Lookup(td.To)
			t.Amount = td.Amount
		}

	case database.TxBlockReward:
		if rd, err := dbTx.Reward(); err == nil {
			t.To = rd.To
			t.ToName = h.NS.Lookup(rd.To)
			t.Amount = rd.Amount
		}
	}

	return t
}

func (h Handlers) toBlock(dbBlock database.Block) block {
	txs := make([]tx, len(dbBlock.Transactions))
	for i, dbTx := range dbBlock.Transactions {
		txs[i] = h.toTx(dbTx)
	}

	return block{
		Header:       dbBlock.Header,
		Transactions: txs,
	}
}

func toPeers(peers []peer.Peer) []peerInfo {
	infos := make([]peerInfo, len(peers))
	for i, p := range peers {
		infos[i] = peerInfo{
			Addr:          p.Addr,
			Direction:     p.Direction.String(),
			State:         p.State.String(),
			LastHeartbeat: p.LastHeartbeat.UTC().Format(time.RFC3339),
		}
	}
	return infos
}
