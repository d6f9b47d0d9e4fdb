package storage

import (
	"context"
	"strconv"

	"github.com/ghost-mesh/ghost-node/types"
	"github.com/go-redis/redis/v8"
)

// SeedFees writes the defaults for fee types that have no value yet.
func (db *DB) SeedFees(ctx context.Context, defaults types.FeeSchedule) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	_, err := db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for feeType, amount := range defaults {
			pipe.HSetNX(ctx, db.key("fees"), feeType, amount)
		}
		return nil
	})

	return db.wrap(err)
}

func (db *DB) Fees(ctx context.Context) (types.FeeSchedule, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	m, err := db.HGetAll(ctx, db.key("fees")).Result()
	if err != nil {
		return nil, db.wrap(err)
	}

	fees := make(types.FeeSchedule, len(m))
	for feeType, s := range m {
		amount, err := strconv.ParseFloat(s, 64)
		if err != nil {
			log.Warnf("dropping unreadable fee %s=%q", feeType, s)
			continue
		}
		fees[feeType] = amount
	}

	return fees, nil
}

// Fee returns the amount for feeType and whether it is set.
func (db *DB) Fee(ctx context.Context, feeType string) (float64, bool, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	amount, err := db.HGet(ctx, db.key("fees"), feeType).Float64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, db.wrap(err)
	}

	return amount, true, nil
}

// ReplaceFees overwrites the whole schedule in one step.
func (db *DB) ReplaceFees(ctx context.Context, fees types.FeeSchedule) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	_, err := db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, db.key("fees"))
		for feeType, amount := range fees {
			pipe.HSet(ctx, db.key("fees"), feeType, amount)
		}
		return nil
	})

	return db.wrap(err)
}
