package storage

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ghost-mesh/ghost-node/types"
	"github.com/go-redis/redis/v8"
)

// blocks      hash  index -> block json
// blocks:index zset hash scored by index
func (t *Txn) Block(index int64) (*types.Block, error) {
	raw, err := t.r.HGet(t.ctx, t.db.key("blocks"), strconv.FormatInt(index, 10)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: block %d", types.ErrNotFound, index)
	}
	if err != nil {
		return nil, err
	}

	var b types.Block
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, err
	}

	return &b, nil
}

func (t *Txn) BlockByHash(hash string) (*types.Block, error) {
	index, err := t.r.ZScore(t.ctx, t.db.key("blocks", "index"), hash).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: block %s", types.ErrNotFound, hash)
	}
	if err != nil {
		return nil, err
	}

	return t.Block(int64(index))
}

func (t *Txn) HasBlock(index int64) (bool, error) {
	return t.r.HExists(t.ctx, t.db.key("blocks"), strconv.FormatInt(index, 10)).Result()
}

func (t *Txn) HasBlockHash(hash string) (bool, error) {
	_, err := t.r.ZScore(t.ctx, t.db.key("blocks", "index"), hash).Result()
	if err == redis.Nil {
		return false, nil
	}

	return err == nil, err
}

// Tip is the block with the highest index, nil on an empty chain.
func (t *Txn) Tip() (*types.Block, error) {
	zs, err := t.r.ZRevRangeWithScores(t.ctx, t.db.key("blocks", "index"), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(zs) == 0 {
		return nil, nil
	}

	return t.Block(int64(zs[0].Score))
}

func (t *Txn) BlockCount() (int64, error) {
	return t.r.ZCard(t.ctx, t.db.key("blocks", "index")).Result()
}

// Headers lists every stored block ascending by index.
func (t *Txn) Headers() ([]types.BlockHeader, error) {
	zs, err := t.r.ZRangeWithScores(t.ctx, t.db.key("blocks", "index"), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	headers := make([]types.BlockHeader, 0, len(zs))
	for _, z := range zs {
		hash, _ := z.Member.(string)
		headers = append(headers, types.BlockHeader{Index: int64(z.Score), Hash: hash})
	}

	return headers, nil
}

// InsertBlock queues the block. Callers check HasBlock first, blocks are
// keyed by index and never overwritten.
func (t *Txn) InsertBlock(b *types.Block) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}

	blocks := t.db.key("blocks")
	index := t.db.key("blocks", "index")
	t.queue(func(pipe redis.Pipeliner) {
		pipe.HSetNX(t.ctx, blocks, strconv.FormatInt(b.Index, 10), raw)
		pipe.ZAdd(t.ctx, index, &redis.Z{Score: float64(b.Index), Member: b.Hash})
	})

	return nil
}
