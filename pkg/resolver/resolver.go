// Package resolver decides whether a sender may submit a transaction type.
//
// Resolution is a pure read over the permission cache and the account
// index. The order is fixed:
//
//  1. Bypass: the master key, the genesis account, and any transaction at
//     chain height 1 are always allowed.
//  2. The sender's own overrides (the permissions attribute).
//  3. The sender's groups, highest priority first.
//  4. Default groups, highest priority first.
//  5. The static transactionsAllowedByDefault flag.
//
// Within a rule set the first entry naming the transaction type decides.
// Groups of equal priority are ordered by name.
package resolver

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/backkem/txpermissions/pkg/account"
	"github.com/backkem/txpermissions/pkg/cache"
	"github.com/backkem/txpermissions/pkg/config"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
)

// Resolver errors.
var (
	ErrSettingsRequired = errors.New("resolver: settings are required")
	ErrChainRequired    = errors.New("resolver: chain is required")
	ErrCacheRequired    = errors.New("resolver: group cache is required")
	ErrAccountsRequired = errors.New("resolver: account index is required")
)

// Config holds the resolver's read-only collaborators. All fields except
// LoggerFactory are required.
type Config struct {
	Settings *config.Snapshot
	Chain    ledger.Chain
	Groups   cache.Groups
	Accounts account.Index

	LoggerFactory logging.LoggerFactory
}

// Resolver evaluates permission rules for transactions.
//
// Thread Safety: Resolve is safe for concurrent use.
type Resolver struct {
	settings *config.Snapshot
	chain    ledger.Chain
	groups   cache.Groups
	accounts account.Index
	log      logging.LeveledLogger

	// The genesis key never changes; it is looked up until one lookup
	// succeeds. genesisMu serializes lookups only.
	genesisMu sync.Mutex
	genesis   atomic.Pointer[ledger.PublicKey]
}

// New creates a resolver.
func New(cfg Config) (*Resolver, error) {
	switch {
	case cfg.Settings == nil:
		return nil, ErrSettingsRequired
	case cfg.Chain == nil:
		return nil, ErrChainRequired
	case cfg.Groups == nil:
		return nil, ErrCacheRequired
	case cfg.Accounts == nil:
		return nil, ErrAccountsRequired
	}

	r := &Resolver{
		settings: cfg.Settings,
		chain:    cfg.Chain,
		groups:   cfg.Groups,
		accounts: cfg.Accounts,
	}
	if cfg.LoggerFactory != nil {
		r.log = cfg.LoggerFactory.NewLogger("resolver")
	}
	return r, nil
}

// Allowed returns Resolve(tx).Allowed.
func (r *Resolver) Allowed(tx *ledger.Transaction) bool {
	return r.Resolve(tx).Allowed
}

// Resolve decides whether tx's sender may submit tx's type.
func (r *Resolver) Resolve(tx *ledger.Transaction) Result {
	res := r.resolve(tx)
	if r.log != nil {
		r.log.Tracef("%s %s from %s: %s", tx.ID, tx.Type, tx.SenderPublicKey, res)
	}
	return res
}

func (r *Resolver) resolve(tx *ledger.Transaction) Result {
	sender := tx.SenderPublicKey

	if master, ok := r.settings.MasterPublicKey(); ok && master == sender {
		return Result{Allowed: true, Reason: ReasonMaster}
	}
	if genesis, ok := r.genesisKey(); ok && genesis == sender {
		return Result{Allowed: true, Reason: ReasonGenesis}
	}
	if r.chain.Height() == 1 {
		return Result{Allowed: true, Reason: ReasonHeight}
	}

	var up *permission.UserPermissions
	if acc, ok := r.accounts.Get(sender); ok {
		up, _ = permission.OfAccount(acc)
	}

	if up != nil {
		if p, ok := up.Permissions.Find(tx.Type); ok {
			return Result{Allowed: p.Kind.Allowed(), Reason: ReasonAccount}
		}
		if res, ok := firstMatch(r.memberGroups(up), tx.Type, ReasonGroup); ok {
			return res
		}
	}

	if up == nil || r.settings.DefaultRuleBehaviour() == config.DefaultRulesAll {
		if res, ok := firstMatch(r.defaultGroups(), tx.Type, ReasonDefaultGroup); ok {
			return res
		}
	}

	return Result{Allowed: r.settings.TransactionsAllowedByDefault(), Reason: ReasonFallback}
}

// genesisKey returns the memoized genesis key, looking it up if no lookup
// has succeeded yet.
func (r *Resolver) genesisKey() (ledger.PublicKey, bool) {
	if pk := r.genesis.Load(); pk != nil {
		return *pk, true
	}

	r.genesisMu.Lock()
	defer r.genesisMu.Unlock()

	if pk := r.genesis.Load(); pk != nil {
		return *pk, true
	}
	pk, err := r.chain.GenesisPublicKey()
	if err != nil {
		if r.log != nil {
			r.log.Warnf("genesis key lookup failed: %v", err)
		}
		return ledger.PublicKey{}, false
	}
	r.genesis.Store(&pk)
	return pk, true
}

// memberGroups returns the active groups the account names, in
// evaluation order. Names without a cached group are skipped.
func (r *Resolver) memberGroups(up *permission.UserPermissions) []*permission.Group {
	out := make([]*permission.Group, 0, len(up.Groups))
	for _, name := range up.Groups {
		g, ok := r.groups.Get(name)
		if !ok || !g.Active {
			continue
		}
		out = append(out, g)
	}
	sortGroups(out)
	return out
}

// defaultGroups returns the active default groups in evaluation order.
func (r *Resolver) defaultGroups() []*permission.Group {
	var out []*permission.Group
	for _, g := range r.groups.All() {
		if g.Active && g.Default {
			out = append(out, g)
		}
	}
	sortGroups(out)
	return out
}

// sortGroups orders by priority descending, then name ascending.
func sortGroups(groups []*permission.Group) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Priority != groups[j].Priority {
			return groups[i].Priority > groups[j].Priority
		}
		return groups[i].Name < groups[j].Name
	})
}

func firstMatch(groups []*permission.Group, typ ledger.TypeKey, reason Reason) (Result, bool) {
	for _, g := range groups {
		if p, ok := g.Permissions.Find(typ); ok {
			return Result{Allowed: p.Kind.Allowed(), Reason: reason, Group: g.Name}, true
		}
	}
	return Result{}, false
}
