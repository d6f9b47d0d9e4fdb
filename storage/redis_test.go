package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/storage"
	"github.com/ghost-mesh/ghost-node/storage/storagetest"
	"github.com/ghost-mesh/ghost-node/types"
)

var ctx = context.Background()

func TestNewStorageUnreachable(t *testing.T) {
	_, err := storage.NewStorage(&config.RedisOptions{Host: "127.0.0.1", Port: 1, OpTimeout: 200, MaxRetries: 1})
	if err == nil {
		t.Fatal("expected a connection error")
	}
}

func TestUpdateCommitsAtomically(t *testing.T) {
	db := storagetest.NewDB(t)

	boom := errors.New("boom")
	err := db.Update(ctx, func(txn *storage.Txn) error {
		_ = txn.InsertTransaction(&types.Transaction{ID: "t1", Sender: "a", Recipient: "b", Amount: 1})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	_ = db.View(ctx, func(txn *storage.Txn) error {
		ok, err := txn.HasTransaction("t1")
		if err != nil || ok {
			t.Errorf("aborted update left a transaction behind")
		}
		return nil
	})
}

func TestViewRejectsWrites(t *testing.T) {
	db := storagetest.NewDB(t)

	err := db.View(ctx, func(txn *storage.Txn) error {
		txn.SetLastMined("a", 1)
		return nil
	})
	if err == nil {
		t.Fatal("expected a read only error")
	}
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	db := storagetest.NewDB(t)

	// every writer reads the minted supply and writes a reward on top of it,
	// lost updates would leave fewer transactions than writers
	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := db.Update(ctx, func(txn *storage.Txn) error {
				minted, err := txn.MintedSupply()
				if err != nil {
					return err
				}
				return txn.InsertTransaction(&types.Transaction{
					ID:         "reward-" + string(rune('a'+i)),
					Sender:     types.SystemAddress,
					Recipient:  "miner",
					Amount:     1,
					Timestamp:  minted,
					BlockIndex: 1,
				})
			})
			if err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	_ = db.View(ctx, func(txn *storage.Txn) error {
		minted, _ := txn.MintedSupply()
		if minted != writers {
			t.Errorf("minted %v, want %d", minted, writers)
		}

		acc, _ := txn.Account("miner")
		derived, _ := txn.DerivedBalance("miner")
		if acc.Balance != writers || derived != writers {
			t.Errorf("cached %v derived %v, want %d", acc.Balance, derived, writers)
		}
		return nil
	})
}
