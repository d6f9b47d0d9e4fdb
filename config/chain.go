package config

import "time"

type ChainOptions struct {
	BaseDifficulty  int     `json:"baseDifficulty"`
	InitialReward   float64 `json:"initialReward"`
	HalvingInterval int64   `json:"halvingInterval"`
	TotalSupply     float64 `json:"totalSupply"`

	MineCooldown int `json:"mineCooldown"` // unit seconds
	// MiningTimeout cuts off a proof of work search, unit seconds.
	MiningTimeout int `json:"miningTimeout"`

	GenesisTimestamp float64 `json:"genesisTimestamp"`
	GenesisProof     int64   `json:"genesisProof"`
	GenesisSeed      string  `json:"genesisSeed"`
}

func (c *ChainOptions) Cooldown() time.Duration {
	return time.Duration(c.MineCooldown) * time.Second
}

func (c *ChainOptions) MiningTimeoutDuration() time.Duration {
	return time.Duration(c.MiningTimeout) * time.Second
}
