package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/ghost-mesh/ghost-node/types"
	"github.com/go-redis/redis/v8"
)

func (t *Txn) Transaction(id string) (*types.Transaction, error) {
	raw, err := t.r.HGet(t.ctx, t.db.key("txs"), id).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: transaction %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var tx types.Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		return nil, err
	}

	return &tx, nil
}

func (t *Txn) HasTransaction(id string) (bool, error) {
	return t.r.HExists(t.ctx, t.db.key("txs"), id).Result()
}

func (t *Txn) loadTransactions(ids []string) ([]*types.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := t.r.HMGet(t.ctx, t.db.key("txs"), ids...).Result()
	if err != nil {
		return nil, err
	}

	txs := make([]*types.Transaction, 0, len(vals))
	for i := range vals {
		raw, ok := vals[i].(string)
		if !ok {
			continue
		}

		var tx types.Transaction
		if err := json.Unmarshal([]byte(raw), &tx); err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}

	// oldest first, ties by id so replays agree
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Timestamp == txs[j].Timestamp {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].Timestamp < txs[j].Timestamp
	})

	return txs, nil
}

func (t *Txn) PendingTransactions() ([]*types.Transaction, error) {
	ids, err := t.r.SMembers(t.ctx, t.db.key("txs", "pending")).Result()
	if err != nil {
		return nil, err
	}

	return t.loadTransactions(ids)
}

// AddressTransactions lists every transaction the address sent or received, oldest first.
func (t *Txn) AddressTransactions(address string) ([]*types.Transaction, error) {
	ids, err := t.r.SMembers(t.ctx, t.db.key("account", address, "txs")).Result()
	if err != nil {
		return nil, err
	}

	return t.loadTransactions(ids)
}

// MintedSupply is the sum of every system sent transaction.
func (t *Txn) MintedSupply() (float64, error) {
	minted, err := t.r.Get(t.ctx, t.db.key("supply", "minted")).Float64()
	if err == redis.Nil {
		return 0, nil
	}

	return minted, err
}

// InsertTransaction queues a new transaction and its balance effects: the
// sender is debited right away, the recipient only once the transaction is
// confirmed. Callers check HasTransaction first.
func (t *Txn) InsertTransaction(tx *types.Transaction) error {
	raw, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	txs := t.db.key("txs")
	pending := t.db.key("txs", "pending")
	senderTxs := t.db.key("account", tx.Sender, "txs")
	recipientTxs := t.db.key("account", tx.Recipient, "txs")
	minted := t.db.key("supply", "minted")
	t.queue(func(pipe redis.Pipeliner) {
		pipe.HSetNX(t.ctx, txs, tx.ID, raw)
		if tx.Pending() {
			pipe.SAdd(t.ctx, pending, tx.ID)
		}
		pipe.SAdd(t.ctx, senderTxs, tx.ID)
		pipe.SAdd(t.ctx, recipientTxs, tx.ID)
		if tx.Sender == types.SystemAddress {
			pipe.IncrByFloat(t.ctx, minted, tx.Amount)
		}
	})

	t.adjustBalance(tx.Sender, -tx.Amount)
	if !tx.Pending() {
		t.adjustBalance(tx.Recipient, tx.Amount)
		t.indexInBlock(tx)
	}

	return nil
}

// ConfirmTransaction promotes a pending transaction into the block at index
// and credits its recipient.
func (t *Txn) ConfirmTransaction(tx *types.Transaction, index int64) error {
	if !tx.Pending() {
		return nil
	}

	confirmed := *tx
	confirmed.BlockIndex = index
	raw, err := json.Marshal(&confirmed)
	if err != nil {
		return err
	}

	txs := t.db.key("txs")
	pending := t.db.key("txs", "pending")
	t.queue(func(pipe redis.Pipeliner) {
		pipe.HSet(t.ctx, txs, confirmed.ID, raw)
		pipe.SRem(t.ctx, pending, confirmed.ID)
	})

	t.adjustBalance(confirmed.Recipient, confirmed.Amount)
	t.indexInBlock(&confirmed)
	return nil
}

func (t *Txn) indexInBlock(tx *types.Transaction) {
	key := t.db.key("block", strconv.FormatInt(tx.BlockIndex, 10), "txs")
	t.queue(func(pipe redis.Pipeliner) {
		pipe.SAdd(t.ctx, key, tx.ID)
	})
}

// BlockTransactions lists the transactions confirmed by the block at index.
func (t *Txn) BlockTransactions(index int64) ([]*types.Transaction, error) {
	ids, err := t.r.SMembers(t.ctx, t.db.key("block", strconv.FormatInt(index, 10), "txs")).Result()
	if err != nil {
		return nil, err
	}

	return t.loadTransactions(ids)
}
