package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/types"
	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("storage")

// every ledger commit bumps this key, watching it serializes all ledger writers
const versionKey = "ledger:version"

var errReadOnly = errors.New("write queued inside a read only view")

// DB is the ledger store. All ledger mutations go through Update, which runs
// optimistically against the version key and retries on conflict.
type DB struct {
	*redis.Client

	prefix     string
	opTimeout  time.Duration
	maxRetries int
}

func NewStorage(options *config.RedisOptions) (*DB, error) {
	client := redis.NewClient(options.ToRedisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), options.OpTimeoutDuration())
	defer cancel()

	result, err := client.Ping(ctx).Result()
	if err != nil || strings.ToLower(result) != "pong" {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to the redis server %s: %v", options.Addr(), err)
	}

	opTimeout := options.OpTimeoutDuration()
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	maxRetries := options.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	log.Infof("ledger store connected to %s with namespace %s", options.Addr(), options.Namespace)

	return &DB{
		Client:     client,
		prefix:     options.Namespace,
		opTimeout:  opTimeout,
		maxRetries: maxRetries,
	}, nil
}

func (db *DB) key(parts ...string) string {
	return db.prefix + ":" + strings.Join(parts, ":")
}

// reader is the read side shared by *redis.Client and *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HExists(ctx context.Context, key, field string) *redis.BoolCmd
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	HVals(ctx context.Context, key string) *redis.StringSliceCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
}

// Txn is one logical ledger operation. Reads hit redis immediately, writes
// are queued and committed together when the callback returns nil, so a
// callback never observes its own writes.
type Txn struct {
	db       *DB
	ctx      context.Context
	r        reader
	writes   []func(pipe redis.Pipeliner)
	readOnly bool
}

func (t *Txn) queue(w func(pipe redis.Pipeliner)) {
	t.writes = append(t.writes, w)
}

// Update runs fn and commits its writes atomically. fn may run more than once
// when another writer commits first, so it must not have side effects outside
// the Txn. Conflicting attempts back off exponentially. After MaxRetries
// conflicts, or once the operation timeout passes, the error is
// types.ErrStorageBusy.
func (db *DB) Update(ctx context.Context, fn func(txn *Txn) error) error {
	ctx, cancel := context.WithTimeout(ctx, db.opTimeout)
	defer cancel()

	var (
		result   error
		attempts int
	)
	policy := backoff.WithContext(backoff.WithMaxRetries(conflictBackoff(), uint64(db.maxRetries-1)), ctx)
	err := backoff.Retry(func() error {
		attempts++
		result = db.commit(ctx, fn)
		if errors.Is(result, redis.TxFailedErr) {
			log.Debugf("ledger commit conflicted, attempt %d", attempts)
			return result
		}
		return nil
	}, policy)
	if err != nil {
		log.Warnf("ledger update gave up after %d conflicting attempts", attempts)
		return fmt.Errorf("%w: %d conflicting commits", types.ErrStorageBusy, attempts)
	}

	return db.wrap(result)
}

func conflictBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	// the operation timeout bounds the total
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// commit is one optimistic attempt: fn reads under WATCH of the version key,
// its queued writes and a version bump go out in one MULTI/EXEC.
func (db *DB) commit(ctx context.Context, fn func(txn *Txn) error) error {
	vk := db.key(versionKey)

	return db.Watch(ctx, func(tx *redis.Tx) error {
		txn := &Txn{db: db, ctx: ctx, r: tx}
		if err := fn(txn); err != nil {
			return err
		}

		if len(txn.writes) == 0 {
			return nil
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range txn.writes {
				w(pipe)
			}
			pipe.Incr(ctx, vk)
			return nil
		})
		return err
	}, vk)
}

// View runs fn against the live data without committing anything.
func (db *DB) View(ctx context.Context, fn func(txn *Txn) error) error {
	ctx, cancel := context.WithTimeout(ctx, db.opTimeout)
	defer cancel()

	txn := &Txn{db: db, ctx: ctx, r: db.Client, readOnly: true}
	if err := fn(txn); err != nil {
		return db.wrap(err)
	}
	if len(txn.writes) > 0 {
		return errReadOnly
	}

	return nil
}

// wrap turns timeouts and connection failures into ErrStorageBusy. Ledger
// errors from callbacks pass through untouched.
func (db *DB) wrap(err error) error {
	if err == nil {
		return nil
	}

	var code types.ErrorCode
	if errors.As(err, &code) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		log.Warnf("ledger store unavailable: %s", err)
		return fmt.Errorf("%w: %v", types.ErrStorageBusy, err)
	}

	return err
}

// opCtx bounds a single non-ledger call.
func (db *DB) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.opTimeout)
}
