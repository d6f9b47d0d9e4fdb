package transactions

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ghost-mesh/ghost-node/storage"
	"github.com/ghost-mesh/ghost-node/types"
	"github.com/ghost-mesh/ghost-node/utils"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("transactions")

type Broadcaster interface {
	BroadcastTransaction(tx *types.Transaction)
}

// Pool validates transfers and keeps the pending set. Balances are always
// derived from the transaction log.
type Pool struct {
	db          *storage.DB
	broadcaster Broadcaster
	clock       utils.Clock
}

func NewPool(db *storage.DB, broadcaster Broadcaster) *Pool {
	return &Pool{
		db:          db,
		broadcaster: broadcaster,
	}
}

func validAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}

// Transfer debits sender right away and records a pending transaction, which
// is then broadcast to the mesh without waiting for any peer.
func (p *Pool) Transfer(ctx context.Context, sender, recipient string, amount float64) (string, error) {
	switch {
	case !validAmount(amount):
		return "", fmt.Errorf("%w: amount must be positive, got %v", types.ErrValidation, amount)
	case sender == "" || recipient == "":
		return "", fmt.Errorf("%w: sender and recipient are required", types.ErrValidation)
	case sender == recipient:
		return "", fmt.Errorf("%w: cannot transfer to yourself", types.ErrValidation)
	case sender == types.SystemAddress:
		return "", fmt.Errorf("%w: %s cannot transfer", types.ErrValidation, types.SystemAddress)
	}

	tx := &types.Transaction{
		ID:        utils.NewID(),
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Timestamp: utils.Unix(p.clock.Now()),
	}

	err := p.db.Update(ctx, func(txn *storage.Txn) error {
		balance, err := txn.DerivedBalance(sender)
		if err != nil {
			return err
		}
		if balance < amount {
			return fmt.Errorf("%w: %s has %v, needs %v", types.ErrInsufficientFunds, sender, balance, amount)
		}

		return txn.InsertTransaction(tx)
	})
	if err != nil {
		return "", err
	}

	log.Infof("transfer %s: %v from %s to %s", tx.ID, amount, sender, recipient)
	if p.broadcaster != nil {
		p.broadcaster.BroadcastTransaction(tx)
	}

	return tx.ID, nil
}

// ReceiveTransaction puts a peer's transaction into the pending pool. The
// recipient is credited only once a block confirms it. A known id is a no-op
// and reports false.
func (p *Pool) ReceiveTransaction(ctx context.Context, tx *types.Transaction) (bool, error) {
	switch {
	case tx == nil || tx.ID == "":
		return false, fmt.Errorf("%w: transaction id is required", types.ErrValidation)
	case tx.Sender == "" || tx.Recipient == "":
		return false, fmt.Errorf("%w: sender and recipient are required", types.ErrValidation)
	case tx.Sender == tx.Recipient:
		return false, fmt.Errorf("%w: %s cannot transfer to itself", types.ErrValidation, tx.Sender)
	case !validAmount(tx.Amount):
		return false, fmt.Errorf("%w: amount must be positive, got %v", types.ErrValidation, tx.Amount)
	case tx.Sender == types.SystemAddress:
		// rewards are derived locally from blocks
		return false, fmt.Errorf("%w: system transactions are not relayed", types.ErrValidation)
	}

	incoming := *tx
	incoming.BlockIndex = 0
	if incoming.Timestamp == 0 {
		incoming.Timestamp = utils.Unix(p.clock.Now())
	}

	var inserted bool
	err := p.db.Update(ctx, func(txn *storage.Txn) error {
		inserted = false

		exists, err := txn.HasTransaction(incoming.ID)
		if err != nil || exists {
			return err
		}

		inserted = true
		return txn.InsertTransaction(&incoming)
	})
	if err != nil {
		return false, err
	}

	if inserted {
		log.Debugf("received transaction %s from the mesh", incoming.ID)
	}
	return inserted, nil
}

// Balance recomputes the balance of address from its transactions.
func (p *Pool) Balance(ctx context.Context, address string) (balance float64, err error) {
	err = p.db.View(ctx, func(txn *storage.Txn) error {
		balance, err = txn.DerivedBalance(address)
		return err
	})
	return
}

// Account returns the cached account row next to the derived balance.
func (p *Pool) Account(ctx context.Context, address string) (acc *types.Account, derived float64, err error) {
	err = p.db.View(ctx, func(txn *storage.Txn) error {
		acc, err = txn.Account(address)
		if err != nil {
			return err
		}
		derived, err = txn.DerivedBalance(address)
		return err
	})
	return
}

// History returns the latest transactions of address, newest first. A limit
// of zero or less returns all of them.
func (p *Pool) History(ctx context.Context, address string, limit int) ([]*types.Transaction, error) {
	var txs []*types.Transaction
	err := p.db.View(ctx, func(txn *storage.Txn) (err error) {
		txs, err = txn.AddressTransactions(address)
		return
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp > txs[j].Timestamp
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}

	return txs, nil
}

func (p *Pool) Pending(ctx context.Context) ([]*types.Transaction, error) {
	var txs []*types.Transaction
	err := p.db.View(ctx, func(txn *storage.Txn) (err error) {
		txs, err = txn.PendingTransactions()
		return
	})

	return txs, err
}
