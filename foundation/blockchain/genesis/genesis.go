// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Default values used when no genesis file is provided.
const (
	DefaultMiningReward = 50
	DefaultMempoolTake  = 50
)

// Genesis represents the genesis file.
type Genesis struct {
	Date         time.Time         `json:"date"`
	ChainID      uint16            `json:"chain_id"`      // The chain id represents an unique id for this running instance.
	ParentHash   string            `json:"parent_hash"`   // Optional parent hash for the genesis block, zero hash when empty.
	TxsPerBlock  uint16            `json:"txs_per_block"` // The maximum number of user transactions that can be in a block.
	MiningReward uint64            `json:"mining_reward"` // Reward for producing a block.
	Balances     map[string]uint64 `json:"balances"`
}

// =============================================================================

// Default returns the genesis used by development nodes and tests.
func Default() Genesis {
	return Genesis{
		Date:         time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:      1,
		TxsPerBlock:  DefaultMempoolTake,
		MiningReward: DefaultMiningReward,
		Balances:     map[string]uint64{},
	}
}

// Load opens and consumes the genesis file. An empty path returns the
// default genesis.
func Load(path string) (Genesis, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	if genesis.TxsPerBlock == 0 {
		genesis.TxsPerBlock = DefaultMempoolTake
	}

	return genesis, nil
}
