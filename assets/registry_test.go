package assets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/fees"
	"github.com/ghost-mesh/ghost-node/storage"
	"github.com/ghost-mesh/ghost-node/storage/storagetest"
	"github.com/ghost-mesh/ghost-node/types"
)

var ctx = context.Background()

type recordingBroadcaster struct {
	mu  sync.Mutex
	txs []*types.Transaction
}

func (r *recordingBroadcaster) BroadcastTransaction(tx *types.Transaction) {
	r.mu.Lock()
	r.txs = append(r.txs, tx)
	r.mu.Unlock()
}

type testRegistry struct {
	*Registry
	db  *storage.DB
	mr  *miniredis.Miniredis
	rb  *recordingBroadcaster
	now time.Time
}

func (tr *testRegistry) advance(d time.Duration) {
	tr.now = tr.now.Add(d)
}

func newTestRegistry(t *testing.T) *testRegistry {
	db, mr := storagetest.New(t)
	o := config.Default()

	governance := fees.NewGovernance(db, o.Fees)
	if err := governance.Seed(ctx); err != nil {
		t.Fatal(err)
	}

	tr := &testRegistry{db: db, mr: mr, rb: &recordingBroadcaster{}, now: time.Unix(1700100000, 0)}
	tr.Registry = NewRegistry(db, governance, o.Assets, tr.rb)
	tr.Registry.clock = func() time.Time { return tr.now }

	return tr
}

func (tr *testRegistry) fund(t *testing.T, address string, amount float64) {
	err := tr.db.Update(ctx, func(txn *storage.Txn) error {
		return txn.InsertTransaction(&types.Transaction{
			ID: "reward-" + address, Sender: types.SystemAddress, Recipient: address,
			Amount: amount, Timestamp: 1, BlockIndex: 2,
		})
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (tr *testRegistry) balance(t *testing.T, address string) float64 {
	var b float64
	err := tr.db.View(ctx, func(txn *storage.Txn) (err error) {
		b, err = txn.DerivedBalance(address)
		return
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRegisterDomain(t *testing.T) {
	tr := newTestRegistry(t)
	tr.fund(t, "alice", 5)

	id, err := tr.Register(ctx, "alice", types.AssetDomain, "site", nil)
	if err != nil {
		t.Fatal(err)
	}

	a, err := tr.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "site.ghost" || string(a.Content) != defaultDomainPage {
		t.Errorf("unexpected asset %+v", a)
	}
	if a.ExpiryTime-a.CreationTime != 15552000 {
		t.Errorf("expiry window %v", a.ExpiryTime-a.CreationTime)
	}
	if len(a.Keywords) != 2 || a.Keywords[0] != "new" {
		t.Errorf("keywords %v", a.Keywords)
	}

	if b := tr.balance(t, "alice"); b != 4 {
		t.Errorf("alice paid wrong fee, balance %v", b)
	}
	if len(tr.rb.txs) != 1 || tr.rb.txs[0].Recipient != types.FeeCollectorAddress {
		t.Errorf("fee transaction not broadcast: %v", tr.rb.txs)
	}
}

func TestRegisterInsufficientFundsLeavesNoTrace(t *testing.T) {
	tr := newTestRegistry(t)
	tr.fund(t, "alice", 0.5)

	before := tr.mr.Dump()
	_, err := tr.Register(ctx, "alice", types.AssetDomain, "site", []byte("<p>hi</p>"))
	if !errors.Is(err, types.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if tr.mr.Dump() != before {
		t.Fatal("failed registration wrote to the store")
	}
	if len(tr.rb.txs) != 0 {
		t.Fatal("failed registration broadcast a fee")
	}
}

func TestDomainNameTakenUntilExpiry(t *testing.T) {
	tr := newTestRegistry(t)
	tr.fund(t, "alice", 5)
	tr.fund(t, "bob", 5)

	if _, err := tr.Register(ctx, "alice", types.AssetDomain, "site.ghost", nil); err != nil {
		t.Fatal(err)
	}

	_, err := tr.Register(ctx, "bob", types.AssetDomain, "site", nil)
	if !errors.Is(err, types.ErrNameTaken) {
		t.Fatalf("expected name taken, got %v", err)
	}
	if b := tr.balance(t, "bob"); b != 5 {
		t.Errorf("bob charged for a failed registration: %v", b)
	}

	// images share names freely
	if _, err := tr.Register(ctx, "bob", types.AssetImage, "site.ghost", []byte{1, 2, 3}); err != nil {
		t.Errorf("non domain asset blocked by a domain name: %v", err)
	}

	tr.advance(15552000*time.Second + time.Second)
	if _, err := tr.Register(ctx, "bob", types.AssetDomain, "site", nil); err != nil {
		t.Fatalf("re-registration after expiry failed: %v", err)
	}
}

func TestStorageFeeScalesWithSize(t *testing.T) {
	tr := newTestRegistry(t)
	tr.fund(t, "alice", 1)

	content := make([]byte, 1024*1024)
	if _, err := tr.Register(ctx, "alice", types.AssetFile, "blob.bin", content); err != nil {
		t.Fatal(err)
	}

	if b := tr.balance(t, "alice"); b != 0.99 {
		t.Errorf("balance %v, want 0.99", b)
	}
}

func TestUpdateAndDeleteAreOwnerOnly(t *testing.T) {
	tr := newTestRegistry(t)
	tr.fund(t, "alice", 5)

	id, err := tr.Register(ctx, "alice", types.AssetDomain, "site", []byte("<p>old words</p>"))
	if err != nil {
		t.Fatal(err)
	}

	if err := tr.Update(ctx, id, "mallory", []byte("pwned")); !errors.Is(err, types.ErrUnauthorized) {
		t.Errorf("expected unauthorized update, got %v", err)
	}
	if err := tr.Delete(ctx, id, "mallory"); !errors.Is(err, types.ErrUnauthorized) {
		t.Errorf("expected unauthorized delete, got %v", err)
	}

	if err := tr.Update(ctx, id, "alice", []byte("<p>fresh content</p>")); err != nil {
		t.Fatal(err)
	}
	a, _ := tr.Get(ctx, id)
	if string(a.Content) != "<p>fresh content</p>" || a.Size != 20 || a.Keywords[0] != "fresh" {
		t.Errorf("update not applied: %+v", a)
	}
	if b := tr.balance(t, "alice"); b != 4 {
		t.Errorf("update charged again, balance %v", b)
	}

	if err := tr.Delete(ctx, id, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Get(ctx, id); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("deleted asset still served: %v", err)
	}
	if err := tr.Delete(ctx, id, "alice"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	tr := newTestRegistry(t)
	tr.fund(t, "alice", 10)

	ghost, _ := tr.Register(ctx, "alice", types.AssetDomain, "ghostblog", []byte("<p>Recipes and cooking</p>"))
	tr.advance(time.Second)
	cook, _ := tr.Register(ctx, "alice", types.AssetDomain, "kitchen", []byte("<p>Cooking tips</p>"))
	tr.advance(time.Second)
	_, _ = tr.Register(ctx, "alice", types.AssetImage, "Cat.png", []byte{0x89, 0x50})

	results, err := tr.Search(ctx, "cook")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != cook || results[1].ID != ghost {
		t.Errorf("search cook: %v", results)
	}

	results, _ = tr.Search(ctx, "cat")
	if len(results) != 1 || results[0].Name != "Cat.png" {
		t.Errorf("search is not case insensitive on names: %v", results)
	}

	results, _ = tr.Search(ctx, "nothing")
	if len(results) != 0 {
		t.Errorf("unexpected results %v", results)
	}

	// expired assets still match, serving them is what expiry blocks
	tr.advance(15552000 * time.Second)
	results, _ = tr.Search(ctx, "cook")
	if len(results) != 2 {
		t.Errorf("expired assets missing from search: %v", results)
	}
	if _, err := tr.Get(ctx, cook); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expired asset served: %v", err)
	}
}

func TestViewAndExpiry(t *testing.T) {
	tr := newTestRegistry(t)
	tr.fund(t, "alice", 10)

	site, _ := tr.Register(ctx, "alice", types.AssetDomain, "site", []byte("<p>x</p>"))
	img, _ := tr.Register(ctx, "alice", types.AssetImage, "a.png", []byte{1})

	if _, mime, err := tr.View(ctx, site); err != nil || mime != MimeHTML {
		t.Errorf("domain view: %s %v", mime, err)
	}
	if _, mime, err := tr.View(ctx, img); err != nil || mime != MimeBinary {
		t.Errorf("image view: %s %v", mime, err)
	}

	tr.advance(15552000*time.Second + time.Second)
	if _, _, err := tr.View(ctx, site); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expired asset served: %v", err)
	}

	// peers still replicate it
	if _, err := tr.Raw(ctx, site); err != nil {
		t.Errorf("raw read of expired asset: %v", err)
	}
}

func TestClone(t *testing.T) {
	tr := newTestRegistry(t)
	tr.fund(t, "alice", 5)
	tr.fund(t, "bob", 5)

	id, _ := tr.Register(ctx, "alice", types.AssetDomain, "site", []byte("<p>shared page</p>"))

	if _, err := tr.Clone(ctx, id, "bob", ""); !errors.Is(err, types.ErrNameTaken) {
		t.Errorf("clone under a live domain name: %v", err)
	}

	cloneID, err := tr.Clone(ctx, id, "bob", "mirror")
	if err != nil {
		t.Fatal(err)
	}

	c, _ := tr.Get(ctx, cloneID)
	if c.Owner != "bob" || c.Name != "mirror.ghost" || string(c.Content) != "<p>shared page</p>" {
		t.Errorf("clone %+v", c)
	}
	if b := tr.balance(t, "bob"); b != 4 {
		t.Errorf("clone fee not charged, bob has %v", b)
	}
}

func TestSyncAssetIsIdempotent(t *testing.T) {
	tr := newTestRegistry(t)

	a := &types.Asset{ID: "remote", Owner: "carol", Type: types.AssetCSS, Name: "style.css",
		Content: []byte("body{}"), CreationTime: 1, ExpiryTime: 1e12, Keywords: types.Keywords{"body"}}

	ok, err := tr.SyncAsset(ctx, a)
	if err != nil || !ok {
		t.Fatalf("first sync %v %v", ok, err)
	}

	once := tr.mr.Dump()
	ok, err = tr.SyncAsset(ctx, a)
	if err != nil || ok {
		t.Fatalf("second sync %v %v", ok, err)
	}
	if tr.mr.Dump() != once {
		t.Fatal("second sync changed the store")
	}

	metas, _ := tr.Metas(ctx)
	if len(metas) != 1 || metas[0].ID != "remote" || metas[0].Owner != "carol" {
		t.Errorf("metas %v", metas)
	}

	if _, err := tr.SyncAsset(ctx, &types.Asset{ID: "x"}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("malformed asset synced: %v", err)
	}
}
