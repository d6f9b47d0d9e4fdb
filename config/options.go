package config

import (
	"encoding/json"

	logging "github.com/ipfs/go-log/v2"
	"muzzammil.xyz/jsonc"
)

var log = logging.Logger("config")

type Options struct {
	LogLevel string `json:"logLevel"`

	API       *APIOptions       `json:"api"`
	Storage   *RedisOptions     `json:"storage"`
	Chain     *ChainOptions     `json:"chain"`
	Assets    *AssetOptions     `json:"assets"`
	Fees      *FeeOptions       `json:"fees"`
	Discovery *DiscoveryOptions `json:"discovery"`
	Sync      *SyncOptions      `json:"sync"`
}

// Load reads a jsonc file (json with comments) and fills every missing value with its default.
func Load(path string) (*Options, error) {
	_, rawJson, err := jsonc.ReadFromFile(path)
	if err != nil {
		return nil, err
	}

	var o Options
	if err := json.Unmarshal(rawJson, &o); err != nil {
		return nil, err
	}

	o.SetDefaults()
	return &o, nil
}

// Default returns the options a node runs with when no file is given.
func Default() *Options {
	o := &Options{}
	o.SetDefaults()
	return o
}

func (o *Options) SetDefaults() {
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}

	if o.API == nil {
		o.API = &APIOptions{}
	}
	if o.API.Port == 0 {
		o.API.Port = 5000
	}

	if o.Storage == nil {
		o.Storage = &RedisOptions{}
	}
	if o.Storage.Host == "" {
		o.Storage.Host = "127.0.0.1"
	}
	if o.Storage.Port == 0 {
		o.Storage.Port = 6379
	}
	if o.Storage.Namespace == "" {
		o.Storage.Namespace = "ghost"
	}
	if o.Storage.OpTimeout == 0 {
		o.Storage.OpTimeout = 5000
	}
	if o.Storage.MaxRetries == 0 {
		o.Storage.MaxRetries = 20
	}

	if o.Chain == nil {
		o.Chain = &ChainOptions{}
	}
	if o.Chain.BaseDifficulty == 0 {
		o.Chain.BaseDifficulty = 4
	}
	if o.Chain.InitialReward == 0 {
		o.Chain.InitialReward = 50
	}
	if o.Chain.HalvingInterval == 0 {
		o.Chain.HalvingInterval = 2000
	}
	if o.Chain.TotalSupply == 0 {
		o.Chain.TotalSupply = 100000000
	}
	if o.Chain.MineCooldown == 0 {
		o.Chain.MineCooldown = 86400
	}
	if o.Chain.MiningTimeout == 0 {
		o.Chain.MiningTimeout = 600
	}
	if o.Chain.GenesisTimestamp == 0 {
		o.Chain.GenesisTimestamp = 1700000000
	}
	if o.Chain.GenesisProof == 0 {
		o.Chain.GenesisProof = 100
	}
	if o.Chain.GenesisSeed == "" {
		o.Chain.GenesisSeed = "GhostGenesis"
	}

	if o.Assets == nil {
		o.Assets = &AssetOptions{}
	}
	if o.Assets.Expiry == 0 {
		o.Assets.Expiry = 15552000 // 6 months
	}
	if o.Assets.DomainSuffix == "" {
		o.Assets.DomainSuffix = ".ghost"
	}
	if o.Assets.MaxKeywords == 0 {
		o.Assets.MaxKeywords = 20
	}

	if o.Fees == nil {
		o.Fees = &FeeOptions{
			DomainRegistration: 1.0,
			StoragePerMB:       0.01,
			Message:            0.00001,
			Invite:             0.00001,
		}
	}

	if o.Discovery == nil {
		o.Discovery = &DiscoveryOptions{}
	}
	if o.Discovery.Magic == "" {
		o.Discovery.Magic = "GHOST_MESH_V1"
	}
	if o.Discovery.Port == 0 {
		o.Discovery.Port = 5001
	}
	if o.Discovery.BroadcastAddress == "" {
		o.Discovery.BroadcastAddress = "255.255.255.255"
	}
	if o.Discovery.BeaconInterval == 0 {
		o.Discovery.BeaconInterval = 5
	}
	if o.Discovery.CleanupInterval == 0 {
		o.Discovery.CleanupInterval = 600
	}
	if o.Discovery.PeerTTL == 0 {
		o.Discovery.PeerTTL = 3600
	}
	if o.Discovery.ActiveWindow == 0 {
		o.Discovery.ActiveWindow = 300
	}
	if o.Discovery.MDNSService == "" {
		o.Discovery.MDNSService = "_ghost-mesh._tcp"
	}

	if o.Sync == nil {
		o.Sync = &SyncOptions{}
	}
	if o.Sync.Interval == 0 {
		o.Sync.Interval = 60
	}
	if o.Sync.InitialDelay == 0 {
		o.Sync.InitialDelay = 10
	}
	if o.Sync.RequestTimeout == 0 {
		o.Sync.RequestTimeout = 3000
	}
	if o.Sync.BroadcastTimeout == 0 {
		o.Sync.BroadcastTimeout = 2000
	}
	if o.Sync.BroadcastWorkers == 0 {
		o.Sync.BroadcastWorkers = 4
	}
	if o.Sync.QueueSize == 0 {
		o.Sync.QueueSize = 256
	}
}
