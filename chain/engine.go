package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghost-mesh/ghost-node/algorithm"
	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/storage"
	"github.com/ghost-mesh/ghost-node/types"
	"github.com/ghost-mesh/ghost-node/utils"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("chain")

const (
	rewardIDPrefix = "reward-"
	maxTipRetries  = 3
)

var errTipMoved = errors.New("chain tip moved while mining")

type PeerCounter interface {
	ActivePeers(ctx context.Context) (int, error)
}

type BlockBroadcaster interface {
	BroadcastBlock(block *types.Block)
}

// Engine owns the block log: genesis, local mining, adoption of peer blocks
// and the reward schedule.
type Engine struct {
	db          *storage.DB
	options     *config.ChainOptions
	peers       PeerCounter
	broadcaster BlockBroadcaster
	clock       utils.Clock
}

// NewEngine accepts nil peers (difficulty stays at base) and a nil broadcaster.
func NewEngine(db *storage.DB, options *config.ChainOptions, peers PeerCounter, broadcaster BlockBroadcaster) *Engine {
	return &Engine{
		db:          db,
		options:     options,
		peers:       peers,
		broadcaster: broadcaster,
	}
}

func (e *Engine) Genesis() *types.Block {
	return &types.Block{
		Index:        1,
		Timestamp:    e.options.GenesisTimestamp,
		PreviousHash: "0",
		Hash:         algorithm.GenesisHash(e.options.GenesisSeed),
		Proof:        e.options.GenesisProof,
		Miner:        types.SystemAddress,
	}
}

// Init stores the genesis block unless the chain already has one.
func (e *Engine) Init(ctx context.Context) error {
	genesis := e.Genesis()

	return e.db.Update(ctx, func(txn *storage.Txn) error {
		exists, err := txn.HasBlock(genesis.Index)
		if err != nil || exists {
			return err
		}

		log.Infof("writing genesis block %s", genesis.Hash)
		return txn.InsertBlock(genesis)
	})
}

// Difficulty scales with the number of recently seen peers.
func (e *Engine) Difficulty(ctx context.Context) int {
	if e.peers == nil {
		return e.options.BaseDifficulty
	}

	active, err := e.peers.ActivePeers(ctx)
	if err != nil {
		log.Warnf("counting active peers failed, mining at base difficulty: %s", err)
		active = 0
	}

	return algorithm.Difficulty(e.options.BaseDifficulty, active)
}

func (e *Engine) checkCooldown(acc *types.Account, now time.Time) error {
	if acc.LastMined == 0 {
		return nil
	}

	wait := utils.FromUnix(acc.LastMined).Add(e.options.Cooldown()).Sub(now)
	if wait > 0 {
		return fmt.Errorf("%w: %s may mine again in %s", types.ErrRateLimited, acc.Address, wait.Round(time.Second))
	}

	return nil
}

// MineBlock searches a proof on top of the current tip and commits the new
// block with its reward. It blocks for the whole search and gives up with the
// context error once ctx is done.
func (e *Engine) MineBlock(ctx context.Context, miner string) (*types.Block, error) {
	if miner == "" || miner == types.SystemAddress {
		return nil, fmt.Errorf("%w: invalid miner address %q", types.ErrValidation, miner)
	}

	for attempt := 0; attempt < maxTipRetries; attempt++ {
		block, err := e.mineOnce(ctx, miner)
		if errors.Is(err, errTipMoved) {
			log.Infof("tip moved under %s, mining again", miner)
			continue
		}

		return block, err
	}

	return nil, fmt.Errorf("%w: chain tip kept moving", types.ErrStorageBusy)
}

func (e *Engine) mineOnce(ctx context.Context, miner string) (*types.Block, error) {
	var tip *types.Block
	err := e.db.View(ctx, func(txn *storage.Txn) error {
		acc, err := txn.Account(miner)
		if err != nil {
			return err
		}
		if err := e.checkCooldown(acc, e.clock.Now()); err != nil {
			return err
		}

		tip, err = txn.Tip()
		if err != nil {
			return err
		}
		if tip == nil {
			return fmt.Errorf("%w: chain has no genesis block", types.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	difficulty := e.Difficulty(ctx)
	started := time.Now()
	proof, err := algorithm.Solve(ctx, tip.Proof, difficulty)
	if err != nil {
		return nil, err
	}
	log.Infof("proof %d found at difficulty %d in %s", proof, difficulty, time.Since(started))

	block := &types.Block{
		Index:        tip.Index + 1,
		Timestamp:    utils.Unix(e.clock.Now()),
		PreviousHash: tip.Hash,
		Proof:        proof,
		Miner:        miner,
	}
	block.Hash = algorithm.BlockHash(block.Index, block.Timestamp, block.PreviousHash, block.Proof, block.Miner)

	err = e.db.Update(ctx, func(txn *storage.Txn) error {
		acc, err := txn.Account(miner)
		if err != nil {
			return err
		}
		if err := e.checkCooldown(acc, e.clock.Now()); err != nil {
			return err
		}

		current, err := txn.Tip()
		if err != nil {
			return err
		}
		if current == nil || current.Hash != tip.Hash {
			return errTipMoved
		}

		if err := txn.InsertBlock(block); err != nil {
			return err
		}
		txn.SetLastMined(miner, block.Timestamp)

		return e.settle(txn, block)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("mined block %d %s for %s", block.Index, block.Hash, miner)
	if e.broadcaster != nil {
		e.broadcaster.BroadcastBlock(block)
	}

	return block, nil
}

// AcceptRemoteBlock stores a block received from a peer. The proof of work is
// not checked. Applying the same block again changes nothing and reports false.
func (e *Engine) AcceptRemoteBlock(ctx context.Context, block *types.Block) (bool, error) {
	if block == nil || block.Index < 1 || block.Hash == "" {
		return false, fmt.Errorf("%w: malformed block", types.ErrValidation)
	}

	var accepted bool
	err := e.db.Update(ctx, func(txn *storage.Txn) error {
		accepted = false

		exists, err := txn.HasBlock(block.Index)
		if err != nil || exists {
			return err
		}
		exists, err = txn.HasBlockHash(block.Hash)
		if err != nil || exists {
			return err
		}

		if err := txn.InsertBlock(block); err != nil {
			return err
		}
		if err := e.settle(txn, block); err != nil {
			return err
		}

		accepted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if accepted {
		log.Infof("accepted block %d %s from the mesh", block.Index, block.Hash)
	}
	return accepted, nil
}

// settle pays the block reward and promotes every pending transaction into the block.
func (e *Engine) settle(txn *storage.Txn, block *types.Block) error {
	minted, err := txn.MintedSupply()
	if err != nil {
		return err
	}

	pending, err := txn.PendingTransactions()
	if err != nil {
		return err
	}

	rewardID := rewardIDPrefix + block.Hash
	paid, err := txn.HasTransaction(rewardID)
	if err != nil {
		return err
	}

	reward := CappedReward(e.options, block.Index, minted)
	if reward > 0 && !paid {
		err := txn.InsertTransaction(&types.Transaction{
			ID:         rewardID,
			Sender:     types.SystemAddress,
			Recipient:  block.Miner,
			Amount:     reward,
			Timestamp:  block.Timestamp,
			BlockIndex: block.Index,
		})
		if err != nil {
			return err
		}
	}

	for _, tx := range pending {
		if err := txn.ConfirmTransaction(tx, block.Index); err != nil {
			return err
		}
	}

	if len(pending) > 0 {
		log.Debugf("block %d confirmed %d pending transactions", block.Index, len(pending))
	}
	return nil
}

func (e *Engine) Tip(ctx context.Context) (tip *types.Block, err error) {
	err = e.db.View(ctx, func(txn *storage.Txn) error {
		tip, err = txn.Tip()
		return err
	})
	return
}

func (e *Engine) Headers(ctx context.Context) (headers []types.BlockHeader, err error) {
	err = e.db.View(ctx, func(txn *storage.Txn) error {
		headers, err = txn.Headers()
		return err
	})
	return
}

func (e *Engine) BlockCount(ctx context.Context) (count int64, err error) {
	err = e.db.View(ctx, func(txn *storage.Txn) error {
		count, err = txn.BlockCount()
		return err
	})
	return
}

func (e *Engine) HasBlockHash(ctx context.Context, hash string) (ok bool, err error) {
	err = e.db.View(ctx, func(txn *storage.Txn) error {
		ok, err = txn.HasBlockHash(hash)
		return err
	})
	return
}

func (e *Engine) BlockByHash(ctx context.Context, hash string) (block *types.Block, err error) {
	err = e.db.View(ctx, func(txn *storage.Txn) error {
		block, err = txn.BlockByHash(hash)
		return err
	})
	return
}
