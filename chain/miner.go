package chain

import (
	"context"
	"time"

	"github.com/ghost-mesh/ghost-node/types"
)

type mineResult struct {
	block *types.Block
	err   error
}

type mineJob struct {
	ctx     context.Context
	address string
	result  chan mineResult
}

// Miner runs proof of work searches one at a time on its own goroutine, away
// from the request handlers.
type Miner struct {
	engine  *Engine
	timeout time.Duration
	jobs    chan *mineJob
}

func NewMiner(engine *Engine, timeout time.Duration) *Miner {
	return &Miner{
		engine:  engine,
		timeout: timeout,
		jobs:    make(chan *mineJob),
	}
}

// Start runs the worker until ctx is done. A search in flight is cancelled with it.
func (m *Miner) Start(ctx context.Context) {
	go m.loop(ctx)
}

func (m *Miner) loop(ctx context.Context) {
	log.Info("miner worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info("miner worker stopped")
			return
		case job := <-m.jobs:
			block, err := m.run(ctx, job)
			job.result <- mineResult{block: block, err: err}
		}
	}
}

func (m *Miner) run(workerCtx context.Context, job *mineJob) (*types.Block, error) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(job.ctx, m.timeout)
	} else {
		ctx, cancel = context.WithCancel(job.ctx)
	}
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-workerCtx.Done():
			cancel()
		case <-done:
		}
	}()

	return m.engine.MineBlock(ctx, job.address)
}

// Mine queues a search for address and waits for its outcome. Jobs run one
// after another, a caller whose ctx ends while waiting gets ctx.Err().
func (m *Miner) Mine(ctx context.Context, address string) (*types.Block, error) {
	job := &mineJob{
		ctx:     ctx,
		address: address,
		result:  make(chan mineResult, 1),
	}

	select {
	case m.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-job.result:
		return r.block, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
