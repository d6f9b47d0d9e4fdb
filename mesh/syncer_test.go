package mesh_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ghost-mesh/ghost-node/mesh"
	"github.com/ghost-mesh/ghost-node/node/nodetest"
	"github.com/ghost-mesh/ghost-node/types"
)

var ctx = context.Background()

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSyncPullsBlocksAssetsAndFees(t *testing.T) {
	a := nodetest.New(t, nodetest.Options(t))
	mined, err := a.Miner.Mine(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}

	assetID, err := a.Assets.Register(ctx, "alice", types.AssetDomain, "site", []byte("<p>hello ghost mesh</p>"))
	if err != nil {
		t.Fatal(err)
	}

	err = a.Fees.Replace(ctx, types.FeeSchedule{
		types.FeeDomainRegistration: 2,
		types.FeeStoragePerMB:       0.01,
		types.FeeMessage:            0.00001,
		types.FeeInvite:             0.00001,
	})
	if err != nil {
		t.Fatal(err)
	}

	addrA := nodetest.Serve(t, a)
	b := nodetest.New(t, nodetest.Options(t))

	if err := b.Syncer.SyncPeer(ctx, addrA); err != nil {
		t.Fatal(err)
	}

	tip, err := b.Chain.Tip(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tip.Hash != mined.Hash {
		t.Errorf("tip %s, want %s", tip.Hash, mined.Hash)
	}

	// the reward is replayed locally, the fee transaction was never relayed
	balance, err := b.Pool.Balance(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 50 {
		t.Errorf("alice has %v on the second node, want 50", balance)
	}

	ok, err := b.Assets.Has(ctx, assetID)
	if err != nil || !ok {
		t.Errorf("asset %s not synced: %v", assetID, err)
	}

	fee, err := b.Fees.Get(ctx, types.FeeDomainRegistration)
	if err != nil {
		t.Fatal(err)
	}
	if fee != 2 {
		t.Errorf("domain fee %v, want 2", fee)
	}

	if err := b.Syncer.SyncPeer(ctx, addrA); err != nil {
		t.Fatal(err)
	}
	count, err := b.Chain.BlockCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("block count %d after a second round, want 2", count)
	}
}

func TestSyncIgnoresChainThatIsNotLonger(t *testing.T) {
	a := nodetest.New(t, nodetest.Options(t))
	if _, err := a.Miner.Mine(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	addrA := nodetest.Serve(t, a)

	b := nodetest.New(t, nodetest.Options(t))
	own, err := b.Miner.Mine(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Syncer.SyncPeer(ctx, addrA); err != nil {
		t.Fatal(err)
	}

	tip, err := b.Chain.Tip(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tip.Hash != own.Hash {
		t.Errorf("equal length chain replaced the local tip")
	}

	balance, _ := b.Pool.Balance(ctx, "alice")
	if balance != 0 {
		t.Errorf("alice credited %v from a chain that was not adopted", balance)
	}
}

func TestSyncOnceSkipsUnreachablePeer(t *testing.T) {
	a := nodetest.New(t, nodetest.Options(t))
	if _, err := a.Miner.Mine(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	addrA := nodetest.Serve(t, a)

	o := nodetest.Options(t)
	o.Sync.BootstrapPeers = []string{"127.0.0.1:1", addrA}
	o.Sync.RequestTimeout = 500
	b := nodetest.New(t, o)

	b.Syncer.SyncOnce(ctx)

	count, err := b.Chain.BlockCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("block count %d, want 2", count)
	}
}

func TestTransferReachesPeer(t *testing.T) {
	b := nodetest.New(t, nodetest.Options(t))
	addrB := nodetest.Serve(t, b)

	o := nodetest.Options(t)
	o.Sync.BootstrapPeers = []string{addrB}
	a := nodetest.New(t, o)

	if _, err := a.Miner.Mine(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Pool.Transfer(ctx, "alice", "bob", 1.0); err != nil {
		t.Fatal(err)
	}

	want, err := a.Pool.Balance(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if want != 49 {
		t.Fatalf("alice has %v on the mining node, want 49", want)
	}

	waitFor(t, "the second node to replay alice's balance", func() bool {
		got, err := b.Pool.Balance(ctx, "alice")
		return err == nil && got == want
	})
}

// forkedPeer serves a chain sharing our genesis, diverging at index 2 and
// one block longer, and records which blocks are fetched.
type forkedPeer struct {
	mu      sync.Mutex
	blocks  map[string]*types.Block
	headers []types.BlockHeader
	fetched []string
}

func (p *forkedPeer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var v interface{}
	switch {
	case r.URL.Path == mesh.PathChainMeta:
		v = p.headers
	case strings.HasPrefix(r.URL.Path, mesh.PathBlock):
		hash := strings.TrimPrefix(r.URL.Path, mesh.PathBlock)
		p.mu.Lock()
		p.fetched = append(p.fetched, hash)
		p.mu.Unlock()

		b, ok := p.blocks[hash]
		if !ok {
			http.NotFound(w, r)
			return
		}
		v = b
	case r.URL.Path == mesh.PathAssetsMeta:
		v = []types.AssetMeta{}
	case r.URL.Path == mesh.PathGetFees:
		v = types.FeeSchedule{}
	default:
		http.NotFound(w, r)
		return
	}

	_ = json.NewEncoder(w).Encode(v)
}

func TestSyncSkipsIndexesAlreadyHeld(t *testing.T) {
	b := nodetest.New(t, nodetest.Options(t))
	own, err := b.Miner.Mine(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}

	genesis, err := b.Chain.BlockByHash(ctx, b.Chain.Genesis().Hash)
	if err != nil {
		t.Fatal(err)
	}

	third := &types.Block{Index: 3, Timestamp: own.Timestamp + 1, PreviousHash: "fork-2", Hash: "fork-3", Proof: 7, Miner: "carol"}
	peer := &forkedPeer{
		blocks: map[string]*types.Block{
			"fork-2": {Index: 2, Timestamp: own.Timestamp, PreviousHash: genesis.Hash, Hash: "fork-2", Proof: 5, Miner: "carol"},
			"fork-3": third,
		},
		headers: []types.BlockHeader{genesis.Header(), {Index: 2, Hash: "fork-2"}, third.Header()},
	}
	srv := httptest.NewServer(peer)
	defer srv.Close()

	if err := b.Syncer.SyncPeer(ctx, strings.TrimPrefix(srv.URL, "http://")); err != nil {
		t.Fatal(err)
	}

	peer.mu.Lock()
	fetched := append([]string(nil), peer.fetched...)
	peer.mu.Unlock()
	if len(fetched) != 1 || fetched[0] != "fork-3" {
		t.Errorf("fetched %v, want only fork-3", fetched)
	}

	count, err := b.Chain.BlockCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("block count %d, want 3", count)
	}
}
