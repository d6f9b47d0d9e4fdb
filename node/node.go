package node

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/ghost-mesh/ghost-node/api"
	"github.com/ghost-mesh/ghost-node/assets"
	"github.com/ghost-mesh/ghost-node/chain"
	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/fees"
	"github.com/ghost-mesh/ghost-node/mesh"
	"github.com/ghost-mesh/ghost-node/p2p"
	"github.com/ghost-mesh/ghost-node/storage"
	"github.com/ghost-mesh/ghost-node/transactions"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("node")

const shutdownTimeout = 5 * time.Second

// Node is built once at startup and owns every component. Nothing else in
// the process holds ledger state.
type Node struct {
	Options *config.Options

	DB          *storage.DB
	Discovery   *p2p.Discovery
	Broadcaster *mesh.Broadcaster
	Chain       *chain.Engine
	Miner       *chain.Miner
	Pool        *transactions.Pool
	Fees        *fees.Governance
	Assets      *assets.Registry
	Syncer      *mesh.Syncer
	API         *api.Server

	cancel context.CancelFunc
}

// New connects the store and wires the components. A store that cannot be
// reached is the one error a node cannot start without.
func New(options *config.Options) (*Node, error) {
	db, err := storage.NewStorage(options.Storage)
	if err != nil {
		return nil, err
	}

	discovery := p2p.NewDiscovery(db, options.Discovery, options.API.Port, options.Sync.BootstrapPeers)
	broadcaster := mesh.NewBroadcaster(discovery, options.Sync)

	engine := chain.NewEngine(db, options.Chain, discovery, broadcaster)
	miner := chain.NewMiner(engine, options.Chain.MiningTimeoutDuration())
	pool := transactions.NewPool(db, broadcaster)
	governance := fees.NewGovernance(db, options.Fees)
	registry := assets.NewRegistry(db, governance, options.Assets, broadcaster)
	syncer := mesh.NewSyncer(discovery, engine, registry, governance, options.Sync, announceAddress(options))

	n := &Node{
		Options: options,

		DB:          db,
		Discovery:   discovery,
		Broadcaster: broadcaster,
		Chain:       engine,
		Miner:       miner,
		Pool:        pool,
		Fees:        governance,
		Assets:      registry,
		Syncer:      syncer,
	}

	n.API = api.NewAPIServer(options.API, &api.Backend{
		Chain:     engine,
		Miner:     miner,
		Pool:      pool,
		Assets:    registry,
		Fees:      governance,
		Discovery: discovery,
	})

	return n, nil
}

// announceAddress is the api address peers are asked to register, empty
// when no advertise address is configured.
func announceAddress(options *config.Options) string {
	addr := options.Discovery.AdvertiseAddress
	if addr == "" {
		return ""
	}

	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(options.API.Port))
}

// Init seeds the fee table and the genesis block. Both are no-ops on a
// populated store.
func (n *Node) Init(ctx context.Context) error {
	if err := n.Fees.Seed(ctx); err != nil {
		return err
	}

	return n.Chain.Init(ctx)
}

// Start initializes the ledger and runs every worker until Stop.
func (n *Node) Start(ctx context.Context) error {
	if err := n.Init(ctx); err != nil {
		return err
	}

	ctx, n.cancel = context.WithCancel(ctx)

	n.Broadcaster.Start(ctx)
	n.Miner.Start(ctx)

	if err := n.Discovery.Start(ctx); err != nil {
		// the mesh still works through bootstrap peers and peer updates
		log.Warnf("beacon discovery unavailable: %s", err)
	}

	n.Syncer.Start(ctx)
	n.API.Serve()

	log.Infof("node started, api on %s", n.Options.API.Addr())
	return nil
}

func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := n.API.Shutdown(ctx); err != nil {
		log.Warnf("api shutdown: %s", err)
	}
	n.Broadcaster.Wait()

	if err := n.DB.Close(); err != nil {
		log.Warnf("closing store: %s", err)
	}

	log.Info("node stopped")
}
