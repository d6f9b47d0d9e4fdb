package assets

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/fees"
	"github.com/ghost-mesh/ghost-node/storage"
	"github.com/ghost-mesh/ghost-node/transactions"
	"github.com/ghost-mesh/ghost-node/types"
	"github.com/ghost-mesh/ghost-node/utils"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("assets")

const (
	defaultDomainPage = "<h1>New Site</h1>"

	MimeHTML   = "text/html; charset=utf-8"
	MimeBinary = "application/octet-stream"
)

// Registry charges for, stores and serves named content. Expired assets stay
// in the store but are never served.
type Registry struct {
	db          *storage.DB
	fees        *fees.Governance
	options     *config.AssetOptions
	broadcaster transactions.Broadcaster
	clock       utils.Clock
}

func NewRegistry(db *storage.DB, governance *fees.Governance, options *config.AssetOptions, broadcaster transactions.Broadcaster) *Registry {
	return &Registry{
		db:          db,
		fees:        governance,
		options:     options,
		broadcaster: broadcaster,
	}
}

func (r *Registry) now() float64 {
	return utils.Unix(r.clock.Now())
}

func (r *Registry) keywords(typ types.AssetType, content []byte) types.Keywords {
	if !typ.Textual() {
		return nil
	}

	return ExtractKeywords(content, r.options.MaxKeywords)
}

func (r *Registry) price(ctx context.Context, typ types.AssetType, size int64) (float64, error) {
	if typ == types.AssetDomain {
		return r.fees.DomainFee(ctx)
	}

	return r.fees.StorageFee(ctx, size)
}

// Register charges owner the live fee and stores the asset. Domains get the
// configured suffix and must not collide with an unexpired registration.
func (r *Registry) Register(ctx context.Context, owner string, typ types.AssetType, name string, content []byte) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case owner == "":
		return "", fmt.Errorf("%w: owner is required", types.ErrValidation)
	case !typ.Valid():
		return "", fmt.Errorf("%w: unknown asset type %q", types.ErrValidation, typ)
	case name == "":
		return "", fmt.Errorf("%w: name is required", types.ErrValidation)
	}

	if typ == types.AssetDomain {
		if !strings.HasSuffix(name, r.options.DomainSuffix) {
			name += r.options.DomainSuffix
		}
		if len(content) == 0 {
			content = []byte(defaultDomainPage)
		}
	}

	size := int64(len(content))
	fee, err := r.price(ctx, typ, size)
	if err != nil {
		return "", err
	}

	now := r.now()
	asset := &types.Asset{
		ID:           utils.NewID(),
		Owner:        owner,
		Type:         typ,
		Name:         name,
		Content:      content,
		Size:         size,
		CreationTime: now,
		ExpiryTime:   now + r.options.ExpiryDuration().Seconds(),
		Keywords:     r.keywords(typ, content),
	}

	var feeTx *types.Transaction
	if fee > 0 {
		feeTx = &types.Transaction{
			ID:        utils.NewID(),
			Sender:    owner,
			Recipient: types.FeeCollectorAddress,
			Amount:    fee,
			Timestamp: now,
		}
	}

	err = r.db.Update(ctx, func(txn *storage.Txn) error {
		balance, err := txn.DerivedBalance(owner)
		if err != nil {
			return err
		}
		if balance < fee {
			return fmt.Errorf("%w: %s costs %v, %s has %v", types.ErrInsufficientFunds, name, fee, owner, balance)
		}

		if typ == types.AssetDomain {
			taken, err := r.nameTaken(txn, name, now)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: %s", types.ErrNameTaken, name)
			}
		}

		if err := txn.PutAsset(asset); err != nil {
			return err
		}
		if feeTx != nil {
			return txn.InsertTransaction(feeTx)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Infof("registered %s %s (%s) for %s, fee %v", typ, name, asset.ID, owner, fee)
	if feeTx != nil && r.broadcaster != nil {
		r.broadcaster.BroadcastTransaction(feeTx)
	}

	return asset.ID, nil
}

func (r *Registry) nameTaken(txn *storage.Txn, name string, now float64) (bool, error) {
	named, err := txn.AssetsNamed(name)
	if err != nil {
		return false, err
	}

	for _, a := range named {
		if a.Type == types.AssetDomain && !a.Expired(now) {
			return true, nil
		}
	}

	return false, nil
}

// owned loads the asset and checks the caller owns it.
func owned(txn *storage.Txn, id, owner string) (*types.Asset, error) {
	a, err := txn.Asset(id)
	if err != nil {
		return nil, err
	}
	if a.Owner != owner {
		return nil, fmt.Errorf("%w: %s does not own %s", types.ErrUnauthorized, owner, id)
	}

	return a, nil
}

// Update replaces the content of an owned asset. It is not charged again.
func (r *Registry) Update(ctx context.Context, id, owner string, content []byte) error {
	err := r.db.Update(ctx, func(txn *storage.Txn) error {
		a, err := owned(txn, id, owner)
		if err != nil {
			return err
		}

		a.Content = content
		a.Size = int64(len(content))
		a.Keywords = r.keywords(a.Type, content)
		return txn.PutAsset(a)
	})
	if err != nil {
		return err
	}

	log.Infof("updated asset %s", id)
	return nil
}

// Clone registers a copy of the asset for newOwner, paying the full fee
// again. An empty newName keeps the source name, which a live domain
// registration still holds.
func (r *Registry) Clone(ctx context.Context, id, newOwner, newName string) (string, error) {
	src, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}

	if newName == "" {
		newName = src.Name
	}

	content := make([]byte, len(src.Content))
	copy(content, src.Content)
	return r.Register(ctx, newOwner, src.Type, newName, content)
}

// Delete removes an owned asset for good.
func (r *Registry) Delete(ctx context.Context, id, owner string) error {
	err := r.db.Update(ctx, func(txn *storage.Txn) error {
		a, err := owned(txn, id, owner)
		if err != nil {
			return err
		}

		txn.DeleteAsset(a)
		return nil
	})
	if err != nil {
		return err
	}

	log.Infof("deleted asset %s", id)
	return nil
}

// Get returns a servable asset, expired ones are reported as not found.
func (r *Registry) Get(ctx context.Context, id string) (*types.Asset, error) {
	var a *types.Asset
	err := r.db.View(ctx, func(txn *storage.Txn) (err error) {
		a, err = txn.Asset(id)
		return
	})
	if err != nil {
		return nil, err
	}

	if a.Expired(r.now()) {
		return nil, fmt.Errorf("%w: asset %s expired", types.ErrNotFound, id)
	}

	return a, nil
}

// Raw returns the stored asset regardless of expiry, as peers replicate it.
func (r *Registry) Raw(ctx context.Context, id string) (a *types.Asset, err error) {
	err = r.db.View(ctx, func(txn *storage.Txn) error {
		a, err = txn.Asset(id)
		return err
	})
	return
}

// View returns the content of a servable asset with its mime type.
func (r *Registry) View(ctx context.Context, id string) ([]byte, string, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if a.Type == types.AssetDomain {
		return a.Content, MimeHTML, nil
	}

	return a.Content, MimeBinary, nil
}

func matches(a *types.Asset, query string) bool {
	if strings.Contains(strings.ToLower(a.Name), query) {
		return true
	}

	for _, k := range a.Keywords {
		if strings.Contains(k, query) {
			return true
		}
	}

	return false
}

// Search matches query, case insensitively, against names and single
// keywords of every stored asset, expired ones included. Expiry is enforced
// when an asset is served. Results are newest first and not paginated.
func (r *Registry) Search(ctx context.Context, query string) ([]*types.Asset, error) {
	var all []*types.Asset
	err := r.db.View(ctx, func(txn *storage.Txn) (err error) {
		all, err = txn.Assets()
		return
	})
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))

	results := make([]*types.Asset, 0)
	for _, a := range all {
		if matches(a, query) {
			results = append(results, a)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreationTime > results[j].CreationTime
	})
	return results, nil
}

// Owned lists the assets of owner, expired ones included, newest first.
func (r *Registry) Owned(ctx context.Context, owner string) ([]*types.Asset, error) {
	var list []*types.Asset
	err := r.db.View(ctx, func(txn *storage.Txn) (err error) {
		list, err = txn.AssetsOwnedBy(owner)
		return
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreationTime > list[j].CreationTime
	})
	return list, nil
}

// Metas lists the metadata peers reconcile against.
func (r *Registry) Metas(ctx context.Context) ([]types.AssetMeta, error) {
	var all []*types.Asset
	err := r.db.View(ctx, func(txn *storage.Txn) (err error) {
		all, err = txn.Assets()
		return
	})
	if err != nil {
		return nil, err
	}

	metas := make([]types.AssetMeta, 0, len(all))
	for _, a := range all {
		metas = append(metas, a.Meta())
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreationTime < metas[j].CreationTime
	})
	return metas, nil
}

func (r *Registry) Has(ctx context.Context, id string) (ok bool, err error) {
	err = r.db.View(ctx, func(txn *storage.Txn) error {
		ok, err = txn.HasAsset(id)
		return err
	})
	return
}

// SyncAsset stores an asset replicated from a peer unless its id is known.
// No fee is charged, the owner paid on the origin node.
func (r *Registry) SyncAsset(ctx context.Context, a *types.Asset) (bool, error) {
	if a == nil || a.ID == "" || a.Owner == "" || a.Name == "" || !a.Type.Valid() {
		return false, fmt.Errorf("%w: malformed asset", types.ErrValidation)
	}

	synced := *a
	synced.Size = int64(len(synced.Content))

	var inserted bool
	err := r.db.Update(ctx, func(txn *storage.Txn) error {
		inserted = false

		exists, err := txn.HasAsset(synced.ID)
		if err != nil || exists {
			return err
		}

		inserted = true
		return txn.PutAsset(&synced)
	})
	if err != nil {
		return false, err
	}

	if inserted {
		log.Debugf("synced asset %s %s", synced.ID, synced.Name)
	}
	return inserted, nil
}
