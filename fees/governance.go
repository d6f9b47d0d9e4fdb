package fees

import (
	"context"
	"fmt"
	"math"

	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/storage"
	"github.com/ghost-mesh/ghost-node/types"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("fees")

// FallbackFee is charged for a fee type the schedule does not know.
const FallbackFee = 0.00001

// Governance holds the fee schedule. Whatever a peer last reported replaces
// the local table, there is no voting or versioning.
type Governance struct {
	db       *storage.DB
	defaults types.FeeSchedule
}

func Defaults(o *config.FeeOptions) types.FeeSchedule {
	return types.FeeSchedule{
		types.FeeDomainRegistration: o.DomainRegistration,
		types.FeeStoragePerMB:       o.StoragePerMB,
		types.FeeMessage:            o.Message,
		types.FeeInvite:             o.Invite,
	}
}

func NewGovernance(db *storage.DB, options *config.FeeOptions) *Governance {
	return &Governance{
		db:       db,
		defaults: Defaults(options),
	}
}

// Seed writes the configured defaults for every fee type without a value.
func (g *Governance) Seed(ctx context.Context) error {
	return g.db.SeedFees(ctx, g.defaults)
}

func (g *Governance) Get(ctx context.Context, feeType string) (float64, error) {
	amount, ok, err := g.db.Fee(ctx, feeType)
	if err != nil {
		return 0, err
	}
	if !ok {
		return FallbackFee, nil
	}

	return amount, nil
}

func (g *Governance) All(ctx context.Context) (types.FeeSchedule, error) {
	return g.db.Fees(ctx)
}

// Replace overwrites the schedule wholesale with a peer's table.
func (g *Governance) Replace(ctx context.Context, fees types.FeeSchedule) error {
	if len(fees) == 0 {
		return fmt.Errorf("%w: empty fee table", types.ErrValidation)
	}
	for feeType, amount := range fees {
		if feeType == "" || amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
			return fmt.Errorf("%w: bad fee %q=%v", types.ErrValidation, feeType, amount)
		}
	}

	if err := g.db.ReplaceFees(ctx, fees); err != nil {
		return err
	}

	log.Debugf("fee schedule replaced with %d entries", len(fees))
	return nil
}

// DomainFee is the flat price of a domain registration.
func (g *Governance) DomainFee(ctx context.Context) (float64, error) {
	return g.Get(ctx, types.FeeDomainRegistration)
}

// StorageFee prices size bytes of content.
func (g *Governance) StorageFee(ctx context.Context, size int64) (float64, error) {
	perMB, err := g.Get(ctx, types.FeeStoragePerMB)
	if err != nil {
		return 0, err
	}

	return float64(size) / (1024 * 1024) * perMB, nil
}
