package storage

import (
	"context"
	"strconv"

	"github.com/ghost-mesh/ghost-node/types"
	"github.com/go-redis/redis/v8"
)

// Peers live outside the ledger version: a beacon never conflicts with a
// ledger commit.
//
// peers        zset address scored by last_seen
// peers:method hash address -> discovery method

func score(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

func (db *DB) UpsertPeer(ctx context.Context, peer *types.Peer) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	_, err := db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, db.key("peers"), &redis.Z{Score: peer.LastSeen, Member: peer.Address})
		pipe.HSet(ctx, db.key("peers", "method"), peer.Address, string(peer.Method))
		return nil
	})

	return db.wrap(err)
}

// PeersSince returns the peers seen at or after ts.
func (db *DB) PeersSince(ctx context.Context, ts float64) ([]*types.Peer, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	zs, err := db.ZRangeByScoreWithScores(ctx, db.key("peers"), &redis.ZRangeBy{
		Min: score(ts),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, db.wrap(err)
	}
	if len(zs) == 0 {
		return nil, nil
	}

	addrs := make([]string, 0, len(zs))
	for _, z := range zs {
		addr, _ := z.Member.(string)
		addrs = append(addrs, addr)
	}

	methods, err := db.HMGet(ctx, db.key("peers", "method"), addrs...).Result()
	if err != nil {
		return nil, db.wrap(err)
	}

	peers := make([]*types.Peer, 0, len(zs))
	for i, z := range zs {
		method, _ := methods[i].(string)
		peers = append(peers, &types.Peer{
			Address:  addrs[i],
			LastSeen: z.Score,
			Method:   types.DiscoveryMethod(method),
		})
	}

	return peers, nil
}

// CountPeersSince counts the peers seen at or after ts.
func (db *DB) CountPeersSince(ctx context.Context, ts float64) (int64, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	n, err := db.ZCount(ctx, db.key("peers"), score(ts), "+inf").Result()
	return n, db.wrap(err)
}

// RemovePeersBefore deletes peers last seen strictly before ts and returns how many went.
func (db *DB) RemovePeersBefore(ctx context.Context, ts float64) (int64, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	stale, err := db.ZRangeByScore(ctx, db.key("peers"), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + score(ts),
	}).Result()
	if err != nil {
		return 0, db.wrap(err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(stale))
	for i := range stale {
		members[i] = stale[i]
	}

	_, err = db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, db.key("peers"), members...)
		pipe.HDel(ctx, db.key("peers", "method"), stale...)
		return nil
	})
	if err != nil {
		return 0, db.wrap(err)
	}

	return int64(len(stale)), nil
}
