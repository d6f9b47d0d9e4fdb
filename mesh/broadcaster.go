package mesh

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/types"
)

type PeerSource interface {
	Candidates(ctx context.Context) ([]*types.Peer, error)
}

type task struct {
	kind string
	path string
	body []byte
}

// Broadcaster fans new transactions, blocks and messages out to every
// candidate peer. Producers never wait: tasks go to a bounded queue drained
// by a fixed number of workers and are dropped when the queue is full.
type Broadcaster struct {
	client  *Client
	peers   PeerSource
	queue   chan *task
	workers int

	wg sync.WaitGroup
}

func NewBroadcaster(peers PeerSource, options *config.SyncOptions) *Broadcaster {
	workers := options.BroadcastWorkers
	if workers <= 0 {
		workers = 1
	}

	return &Broadcaster{
		client:  NewClient(options.BroadcastTimeoutDuration(), options.TLS),
		peers:   peers,
		queue:   make(chan *task, options.QueueSize),
		workers: workers,
	}
}

// Start runs the workers until ctx is done. Wait blocks until they exit.
func (b *Broadcaster) Start(ctx context.Context) {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.work(ctx)
	}
}

func (b *Broadcaster) Wait() {
	b.wg.Wait()
}

func (b *Broadcaster) work(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-b.queue:
			b.deliver(ctx, t)
		}
	}
}

func (b *Broadcaster) deliver(ctx context.Context, t *task) {
	peers, err := b.peers.Candidates(ctx)
	if err != nil {
		log.Warnf("no peers for %s broadcast: %s", t.kind, err)
		return
	}

	delivered := 0
	for _, p := range peers {
		if ctx.Err() != nil {
			return
		}

		if err := b.client.post(ctx, p.Address, t.path, t.body); err != nil {
			log.Debugf("%s broadcast to %s failed: %s", t.kind, p.Address, err)
			continue
		}
		delivered++
	}

	log.Debugf("%s broadcast reached %d of %d peers", t.kind, delivered, len(peers))
}

func (b *Broadcaster) enqueue(kind, path string, v interface{}) bool {
	body, err := json.Marshal(v)
	if err != nil {
		log.Errorf("cannot encode %s for broadcast: %s", kind, err)
		return false
	}

	select {
	case b.queue <- &task{kind: kind, path: path, body: body}:
		return true
	default:
		log.Warnf("broadcast queue full, dropping %s", kind)
		return false
	}
}

func (b *Broadcaster) BroadcastTransaction(tx *types.Transaction) {
	b.enqueue("transaction", PathSendTransaction, tx)
}

func (b *Broadcaster) BroadcastBlock(block *types.Block) {
	b.enqueue("block", PathReceiveBlock, block)
}

// BroadcastMessage relays an opaque messenger payload.
func (b *Broadcaster) BroadcastMessage(msg interface{}) {
	b.enqueue("message", PathReceiveMessage, msg)
}
