package storage

import (
	"encoding/json"
	"fmt"

	"github.com/ghost-mesh/ghost-node/types"
	"github.com/go-redis/redis/v8"
)

func decodeAsset(raw string) (*types.Asset, error) {
	var a types.Asset
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, err
	}

	return &a, nil
}

func (t *Txn) Asset(id string) (*types.Asset, error) {
	raw, err := t.r.HGet(t.ctx, t.db.key("assets"), id).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: asset %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return decodeAsset(raw)
}

func (t *Txn) HasAsset(id string) (bool, error) {
	return t.r.HExists(t.ctx, t.db.key("assets"), id).Result()
}

func (t *Txn) loadAssets(ids []string) ([]*types.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := t.r.HMGet(t.ctx, t.db.key("assets"), ids...).Result()
	if err != nil {
		return nil, err
	}

	assets := make([]*types.Asset, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}

		a, err := decodeAsset(raw)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	return assets, nil
}

// AssetsNamed returns every asset registered under name, expired ones included.
func (t *Txn) AssetsNamed(name string) ([]*types.Asset, error) {
	ids, err := t.r.SMembers(t.ctx, t.db.key("assets", "name", name)).Result()
	if err != nil {
		return nil, err
	}

	return t.loadAssets(ids)
}

func (t *Txn) AssetsOwnedBy(owner string) ([]*types.Asset, error) {
	ids, err := t.r.SMembers(t.ctx, t.db.key("assets", "owner", owner)).Result()
	if err != nil {
		return nil, err
	}

	return t.loadAssets(ids)
}

// Assets scans the whole registry.
func (t *Txn) Assets() ([]*types.Asset, error) {
	vals, err := t.r.HVals(t.ctx, t.db.key("assets")).Result()
	if err != nil {
		return nil, err
	}

	assets := make([]*types.Asset, 0, len(vals))
	for _, raw := range vals {
		a, err := decodeAsset(raw)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	return assets, nil
}

// PutAsset queues an insert or a full overwrite of the asset row.
func (t *Txn) PutAsset(a *types.Asset) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}

	assets := t.db.key("assets")
	byOwner := t.db.key("assets", "owner", a.Owner)
	byName := t.db.key("assets", "name", a.Name)
	t.queue(func(pipe redis.Pipeliner) {
		pipe.HSet(t.ctx, assets, a.ID, raw)
		pipe.SAdd(t.ctx, byOwner, a.ID)
		pipe.SAdd(t.ctx, byName, a.ID)
	})

	return nil
}

func (t *Txn) DeleteAsset(a *types.Asset) {
	assets := t.db.key("assets")
	byOwner := t.db.key("assets", "owner", a.Owner)
	byName := t.db.key("assets", "name", a.Name)
	t.queue(func(pipe redis.Pipeliner) {
		pipe.HDel(t.ctx, assets, a.ID)
		pipe.SRem(t.ctx, byOwner, a.ID)
		pipe.SRem(t.ctx, byName, a.ID)
	})
}
