package chain

import (
	"math"

	"github.com/ghost-mesh/ghost-node/config"
)

// RewardForHeight is the uncapped schedule: the initial reward halved once
// every halving interval.
func RewardForHeight(o *config.ChainOptions, height int64) float64 {
	if height < 0 || o.HalvingInterval <= 0 {
		return 0
	}

	halvings := height / o.HalvingInterval
	if halvings > 1100 {
		// below the smallest float64
		return 0
	}

	return math.Ldexp(o.InitialReward, -int(halvings))
}

// CappedReward limits the schedule so minted supply never passes the total supply.
func CappedReward(o *config.ChainOptions, height int64, minted float64) float64 {
	reward := RewardForHeight(o, height)

	remaining := o.TotalSupply - minted
	if remaining <= 0 {
		return 0
	}
	if reward > remaining {
		return remaining
	}

	return reward
}

// BlocksUntilHalving counts the blocks left before the reward drops after height.
func BlocksUntilHalving(o *config.ChainOptions, height int64) int64 {
	if o.HalvingInterval <= 0 {
		return 0
	}

	return o.HalvingInterval - height%o.HalvingInterval
}
