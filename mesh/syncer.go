package mesh

import (
	"context"
	"errors"
	"time"

	"github.com/ghost-mesh/ghost-node/assets"
	"github.com/ghost-mesh/ghost-node/chain"
	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/fees"
	"github.com/ghost-mesh/ghost-node/types"
)

// Syncer periodically reconciles blocks, assets and the fee table with every
// candidate peer. A failing peer is logged and skipped.
type Syncer struct {
	client     *Client
	peers      PeerSource
	chain      *chain.Engine
	assets     *assets.Registry
	governance *fees.Governance
	options    *config.SyncOptions

	// announce is sent to peers via peer_update when set
	announce string
}

func NewSyncer(peers PeerSource, engine *chain.Engine, registry *assets.Registry, governance *fees.Governance, options *config.SyncOptions, announce string) *Syncer {
	return &Syncer{
		client:     NewClient(options.RequestTimeoutDuration(), options.TLS),
		peers:      peers,
		chain:      engine,
		assets:     registry,
		governance: governance,
		options:    options,
		announce:   announce,
	}
}

// Start runs the loop until ctx is done: one round after the initial delay,
// then one every interval.
func (s *Syncer) Start(ctx context.Context) {
	if s.options.Disabled {
		log.Info("mesh sync disabled")
		return
	}

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(s.options.InitialDelay) * time.Second):
		}

		ticker := time.NewTicker(time.Duration(s.options.Interval) * time.Second)
		defer ticker.Stop()

		for {
			s.SyncOnce(ctx)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// SyncOnce reconciles with every candidate peer in turn.
func (s *Syncer) SyncOnce(ctx context.Context) {
	peers, err := s.peers.Candidates(ctx)
	if err != nil {
		log.Warnf("cannot list sync candidates: %s", err)
		return
	}

	for _, p := range peers {
		if ctx.Err() != nil {
			return
		}

		if err := s.SyncPeer(ctx, p.Address); err != nil {
			var code types.ErrorCode
			if errors.As(err, &code) && code.Transient() {
				log.Warnf("skipping peer %s this round: %s", p.Address, err)
			} else {
				log.Errorf("sync with %s failed: %s", p.Address, err)
			}
		}
	}
}

func (s *Syncer) SyncPeer(ctx context.Context, peer string) error {
	if s.announce != "" {
		if err := s.client.Announce(ctx, peer, s.announce); err != nil {
			log.Debugf("announce to %s failed: %s", peer, err)
		}
	}

	if err := s.syncBlocks(ctx, peer); err != nil {
		return err
	}
	if err := s.syncAssets(ctx, peer); err != nil {
		return err
	}

	return s.syncFees(ctx, peer)
}

// syncBlocks adopts the peer's missing blocks, but only when the peer reports
// more blocks than we hold. Cumulative work is not compared.
func (s *Syncer) syncBlocks(ctx context.Context, peer string) error {
	remote, err := s.client.ChainMeta(ctx, peer)
	if err != nil {
		return err
	}

	local, err := s.chain.Headers(ctx)
	if err != nil {
		return err
	}
	if len(remote) <= len(local) {
		return nil
	}

	// blocks are never replaced, so an index we hold is settled whatever its hash
	knownHashes := make(map[string]struct{}, len(local))
	knownIndexes := make(map[int64]struct{}, len(local))
	for _, h := range local {
		knownHashes[h.Hash] = struct{}{}
		knownIndexes[h.Index] = struct{}{}
	}

	adopted := 0
	for _, h := range remote {
		if _, ok := knownIndexes[h.Index]; ok {
			continue
		}
		if _, ok := knownHashes[h.Hash]; ok {
			continue
		}

		block, err := s.client.Block(ctx, peer, h.Hash)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				log.Warnf("peer %s listed block %s but does not serve it", peer, h.Hash)
				continue
			}
			return err
		}

		ok, err := s.chain.AcceptRemoteBlock(ctx, block)
		if err != nil {
			if errors.Is(err, types.ErrValidation) {
				log.Warnf("peer %s sent a malformed block %s: %s", peer, h.Hash, err)
				continue
			}
			return err
		}
		if ok {
			adopted++
		}
	}

	if adopted > 0 {
		log.Infof("adopted %d blocks from %s", adopted, peer)
	}
	return nil
}

func (s *Syncer) syncAssets(ctx context.Context, peer string) error {
	remote, err := s.client.AssetsMeta(ctx, peer)
	if err != nil {
		return err
	}

	local, err := s.assets.Metas(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(local))
	for _, m := range local {
		known[m.ID] = struct{}{}
	}

	fetched := 0
	for _, m := range remote {
		if _, ok := known[m.ID]; ok {
			continue
		}

		a, err := s.client.AssetData(ctx, peer, m.ID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			return err
		}

		ok, err := s.assets.SyncAsset(ctx, a)
		if err != nil {
			if errors.Is(err, types.ErrValidation) {
				log.Warnf("peer %s sent a malformed asset %s: %s", peer, m.ID, err)
				continue
			}
			return err
		}
		if ok {
			fetched++
		}
	}

	if fetched > 0 {
		log.Infof("fetched %d assets from %s", fetched, peer)
	}
	return nil
}

// syncFees overwrites the local schedule with the peer's, last writer wins.
func (s *Syncer) syncFees(ctx context.Context, peer string) error {
	remote, err := s.client.Fees(ctx, peer)
	if err != nil {
		return err
	}
	if len(remote) == 0 {
		return nil
	}

	if err := s.governance.Replace(ctx, remote); err != nil {
		if errors.Is(err, types.ErrValidation) {
			log.Warnf("ignoring fee table from %s: %s", peer, err)
			return nil
		}
		return err
	}

	return nil
}
