package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tabletrack/api/internal/collection"
	"github.com/tabletrack/api/internal/enum"
	"github.com/tabletrack/api/internal/model"
	"github.com/tabletrack/api/internal/transport"
)

var ErrBranchNotFound = errors.New("branch not found")

// defaultTaxRate applies until a branch configures its own settings.
var defaultTaxRate = decimal.NewFromFloat(0.1)

// Branch bundles the synced collections of one branch. All order
// operations go through these mirrors; nothing else is shared state.
type Branch struct {
	ID        string
	Active    *collection.Synced[[]model.ActiveOrder]
	Completed *collection.Synced[[]model.CompletedOrder]
	Cancelled *collection.Synced[[]model.CancelledOrder]
	Tables    *collection.Synced[[]model.Table]
	Settings  *collection.Synced[model.BranchSettings]
}

// OpenBranch opens the branch-scoped collections, initializing missing
// ones with empty defaults. The tables mirror carries the dedupe repair
// rule: table IDs can be duplicated by imports, and a snapshot containing
// duplicates is cleaned and re-persisted.
func OpenBranch(ctx context.Context, tr transport.Transport, branchID string, log *logrus.Entry) (*Branch, error) {
	active, err := collection.Open(ctx, tr, transport.BranchPath(branchID, enum.CollectionActiveOrders), []model.ActiveOrder{}, log)
	if err != nil {
		return nil, err
	}
	completed, err := collection.Open(ctx, tr, transport.BranchPath(branchID, enum.CollectionCompletedOrders), []model.CompletedOrder{}, log)
	if err != nil {
		return nil, err
	}
	cancelled, err := collection.Open(ctx, tr, transport.BranchPath(branchID, enum.CollectionCancelledOrders), []model.CancelledOrder{}, log)
	if err != nil {
		return nil, err
	}
	tables, err := collection.Open(ctx, tr, transport.BranchPath(branchID, enum.CollectionTables), []model.Table{}, log,
		collection.WithRepair(dedupeTables))
	if err != nil {
		return nil, err
	}
	settings, err := collection.Open(ctx, tr, transport.BranchPath(branchID, enum.CollectionSettings),
		model.BranchSettings{TaxRate: defaultTaxRate}, log)
	if err != nil {
		return nil, err
	}

	return &Branch{
		ID:        branchID,
		Active:    active,
		Completed: completed,
		Cancelled: cancelled,
		Tables:    tables,
		Settings:  settings,
	}, nil
}

// dedupeTables keeps the first occurrence of each table ID.
func dedupeTables(tables []model.Table) ([]model.Table, bool) {
	seen := make(map[string]struct{}, len(tables))
	out := tables[:0:0]
	dirty := false
	for _, t := range tables {
		if _, dup := seen[t.ID]; dup {
			dirty = true
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	if !dirty {
		return tables, false
	}
	return out, true
}

// reseedIfEmpty treats an empty snapshot of a normally non-empty
// collection as corruption and restores the default.
func reseedIfEmpty[T any](def []T) collection.RepairFunc[[]T] {
	return func(v []T) ([]T, bool) {
		if len(v) == 0 && len(def) > 0 {
			return def, true
		}
		return v, false
	}
}

// Registry opens branches lazily and owns the global collections. The
// global users and branches collections are never legitimately empty, so
// they carry the reseed repair rule.
type Registry struct {
	Branches *collection.Synced[[]model.Branch]
	Users    *collection.Synced[[]model.User]

	ctx context.Context
	tr  transport.Transport
	log *logrus.Entry

	mu     sync.Mutex
	opened map[string]*Branch
}

// NewRegistry opens the global collections. The defaults double as the
// reseed values for the corruption repair rule.
func NewRegistry(ctx context.Context, tr transport.Transport, log *logrus.Entry,
	defaultBranches []model.Branch, defaultUsers []model.User) (*Registry, error) {

	branches, err := collection.Open(ctx, tr, transport.GlobalPath(enum.CollectionBranches), defaultBranches, log,
		collection.WithRepair(reseedIfEmpty(defaultBranches)))
	if err != nil {
		return nil, err
	}
	users, err := collection.Open(ctx, tr, transport.GlobalPath(enum.CollectionUsers), defaultUsers, log,
		collection.WithRepair(reseedIfEmpty(defaultUsers)))
	if err != nil {
		return nil, err
	}

	return &Registry{
		Branches: branches,
		Users:    users,
		ctx:      ctx,
		tr:       tr,
		log:      log,
		opened:   make(map[string]*Branch),
	}, nil
}

// Branch returns the synced collections for branchID, opening them on
// first use. Unknown branch IDs are rejected against the global branches
// collection.
func (r *Registry) Branch(branchID string) (*Branch, error) {
	found := false
	for _, b := range r.Branches.Get() {
		if b.ID == branchID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, branchID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.opened[branchID]; ok {
		return b, nil
	}
	b, err := OpenBranch(r.ctx, r.tr, branchID, r.log)
	if err != nil {
		return nil, fmt.Errorf("open branch %s: %w", branchID, err)
	}
	r.opened[branchID] = b
	return b, nil
}
