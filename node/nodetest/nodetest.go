// Package nodetest builds fully wired nodes on in-process redis for tests
// that need several components, or several nodes, at once.
package nodetest

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/node"
	"github.com/ghost-mesh/ghost-node/storage/storagetest"
)

// Options are fast defaults: difficulty 1, no beacons, no sync loop.
func Options(t testing.TB) *config.Options {
	_, storage := storagetest.Run(t)

	o := config.Default()
	o.Storage = storage
	o.Chain.BaseDifficulty = 1
	o.Discovery.Disabled = true
	o.Sync.Disabled = true
	o.Sync.BroadcastWorkers = 1
	return o
}

// New initializes a node and runs its miner and broadcaster until the test
// ends. The api is not bound, see Serve.
func New(t testing.TB, options *config.Options) *node.Node {
	n, err := node.New(options)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := n.Init(ctx); err != nil {
		cancel()
		t.Fatal(err)
	}

	n.Broadcaster.Start(ctx)
	n.Miner.Start(ctx)

	t.Cleanup(func() {
		cancel()
		n.Broadcaster.Wait()
		_ = n.DB.Close()
	})

	return n
}

// Serve exposes the node's api on a loopback port and returns its host:port.
func Serve(t testing.TB, n *node.Node) string {
	srv := httptest.NewServer(n.API)
	t.Cleanup(srv.Close)

	return strings.TrimPrefix(srv.URL, "http://")
}
