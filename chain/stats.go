package chain

import (
	"context"

	"github.com/ghost-mesh/ghost-node/storage"
)

type Stats struct {
	TotalSupply        float64 `json:"total_supply"`
	CirculatingSupply  float64 `json:"circulating_supply"`
	RemainingSupply    float64 `json:"remaining_supply"`
	BlockReward        float64 `json:"block_reward"`
	SolvedBlocks       int64   `json:"solved_blocks"`
	LastBlockHash      string  `json:"last_block_hash"`
	BlocksUntilHalving int64   `json:"blocks_until_halving"`
}

// Stats summarizes supply and schedule. BlockReward is what the next block pays.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{TotalSupply: e.options.TotalSupply}

	err := e.db.View(ctx, func(txn *storage.Txn) error {
		minted, err := txn.MintedSupply()
		if err != nil {
			return err
		}

		tip, err := txn.Tip()
		if err != nil {
			return err
		}

		var height int64
		if tip != nil {
			height = tip.Index
			stats.LastBlockHash = tip.Hash
		}

		stats.CirculatingSupply = minted
		stats.RemainingSupply = e.options.TotalSupply - minted
		if stats.RemainingSupply < 0 {
			stats.RemainingSupply = 0
		}
		stats.BlockReward = CappedReward(e.options, height+1, minted)
		stats.SolvedBlocks = height
		stats.BlocksUntilHalving = BlocksUntilHalving(e.options, height)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}
