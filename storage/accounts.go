package storage

import (
	"strconv"

	"github.com/ghost-mesh/ghost-node/types"
	"github.com/go-redis/redis/v8"
)

const (
	fieldBalance   = "balance"
	fieldLastMined = "last_mined"
)

func (t *Txn) accountKey(address string) string {
	return t.db.key("account", address)
}

// Account returns the cached account row. Unknown addresses materialize as a
// zero account.
func (t *Txn) Account(address string) (*types.Account, error) {
	m, err := t.r.HGetAll(t.ctx, t.accountKey(address)).Result()
	if err != nil {
		return nil, err
	}

	acc := &types.Account{Address: address}
	if s, ok := m[fieldBalance]; ok {
		if acc.Balance, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, err
		}
	}
	if s, ok := m[fieldLastMined]; ok {
		if acc.LastMined, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, err
		}
	}

	return acc, nil
}

func (t *Txn) SetLastMined(address string, ts float64) {
	key := t.accountKey(address)
	t.queue(func(pipe redis.Pipeliner) {
		pipe.HSet(t.ctx, key, fieldLastMined, ts)
	})
}

// adjustBalance is only called by the transaction writers, which keeps the
// cached balance in step with the log.
func (t *Txn) adjustBalance(address string, delta float64) {
	key := t.accountKey(address)
	t.queue(func(pipe redis.Pipeliner) {
		pipe.HIncrByFloat(t.ctx, key, fieldBalance, delta)
	})
}

// DerivedBalance recomputes the balance from the transaction log: confirmed
// inflows minus every outflow, pending or confirmed.
func (t *Txn) DerivedBalance(address string) (float64, error) {
	txs, err := t.AddressTransactions(address)
	if err != nil {
		return 0, err
	}

	var balance float64
	for _, tx := range txs {
		if tx.Recipient == address && !tx.Pending() {
			balance += tx.Amount
		}
		if tx.Sender == address {
			balance -= tx.Amount
		}
	}

	return balance, nil
}
