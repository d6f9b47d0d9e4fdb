package fees

import (
	"context"
	"errors"
	"testing"

	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/storage/storagetest"
	"github.com/ghost-mesh/ghost-node/types"
)

var ctx = context.Background()

func newTestGovernance(t *testing.T) *Governance {
	g := NewGovernance(storagetest.NewDB(t), config.Default().Fees)
	if err := g.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestSeedDefaults(t *testing.T) {
	g := newTestGovernance(t)

	all, err := g.All(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := types.FeeSchedule{"domain_reg": 1, "storage_mb": 0.01, "msg_fee": 0.00001, "invite_fee": 0.00001}
	for k, v := range want {
		if all[k] != v {
			t.Errorf("%s = %v, want %v", k, all[k], v)
		}
	}
}

func TestUnknownFeeFallsBack(t *testing.T) {
	g := newTestGovernance(t)

	fee, err := g.Get(ctx, "nonsense")
	if err != nil || fee != FallbackFee {
		t.Errorf("got %v %v", fee, err)
	}
}

func TestReplaceIsWholesale(t *testing.T) {
	g := newTestGovernance(t)

	if err := g.Replace(ctx, types.FeeSchedule{"domain_reg": 3}); err != nil {
		t.Fatal(err)
	}

	all, _ := g.All(ctx)
	if len(all) != 1 || all["domain_reg"] != 3 {
		t.Errorf("schedule %v", all)
	}

	// a reseed at restart only fills the gaps
	_ = g.Seed(ctx)
	if fee, _ := g.DomainFee(ctx); fee != 3 {
		t.Errorf("seed overwrote a synced fee: %v", fee)
	}

	if err := g.Replace(ctx, types.FeeSchedule{"domain_reg": -1}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("negative fee accepted: %v", err)
	}
	if err := g.Replace(ctx, nil); !errors.Is(err, types.ErrValidation) {
		t.Errorf("empty table accepted: %v", err)
	}
}

func TestStorageFee(t *testing.T) {
	g := newTestGovernance(t)

	fee, err := g.StorageFee(ctx, 2*1024*1024)
	if err != nil || fee != 0.02 {
		t.Errorf("got %v %v", fee, err)
	}
}
