// Package permissions wires the permission components into one engine a
// ledger host embeds.
//
// The host calls Start once to rebuild state from confirmed history, then
// AdmitToPool and AdmitToBlock for every incoming transaction, and Apply or
// Revert as blocks are applied or rolled back. Applying is single-writer:
// the host must not call Apply or Revert concurrently. Admission and the
// query handler may run concurrently with each other.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/pion/logging"

	"github.com/backkem/txpermissions/pkg/account"
	"github.com/backkem/txpermissions/pkg/admission"
	"github.com/backkem/txpermissions/pkg/cache"
	"github.com/backkem/txpermissions/pkg/config"
	"github.com/backkem/txpermissions/pkg/handler"
	"github.com/backkem/txpermissions/pkg/history"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
	"github.com/backkem/txpermissions/pkg/query"
	"github.com/backkem/txpermissions/pkg/resolver"
	"github.com/backkem/txpermissions/pkg/statehash"
)

// Package-level errors.
var (
	ErrSettingsRequired = errors.New("permissions: settings are required")
	ErrHistoryRequired  = errors.New("permissions: history is required")
	ErrChainRequired    = errors.New("permissions: chain is required")
	ErrAlreadyStarted   = errors.New("permissions: engine already started")
	ErrNotStarted       = errors.New("permissions: engine not started")
	ErrAlreadyStopped   = errors.New("permissions: engine already stopped")
)

// Config configures an Engine.
type Config struct {
	// Settings is the frozen configuration. Required.
	Settings *config.Snapshot

	// History is the confirmed transaction history. Required. If it is a
	// history.Store, Apply and Revert keep it in step with the state.
	History ledger.History

	// Chain supplies height and genesis facts. Required.
	Chain ledger.Chain

	// Groups defaults to an in-memory cache.
	Groups cache.Groups

	// Accounts defaults to an in-memory index keyed on the permissions
	// attribute. A supplied index must maintain that secondary index.
	Accounts account.Index

	// Catalog defaults to Settings.Catalog().
	Catalog ledger.Catalog

	// Activation defaults to Settings.ActivationHeight().
	Activation handler.Activation

	// Events receives state changes. Optional.
	Events handler.EventPublisher

	// LoggerFactory defaults to logging.NewDefaultLoggerFactory().
	LoggerFactory logging.LoggerFactory
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c.Settings == nil {
		return ErrSettingsRequired
	}
	if c.History == nil {
		return ErrHistoryRequired
	}
	if c.Chain == nil {
		return ErrChainRequired
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Groups == nil {
		c.Groups = cache.NewMemory()
	}
	if c.Accounts == nil {
		c.Accounts = account.NewMemory(account.MemoryConfig{
			NetworkVersion: c.Settings.NetworkVersion(),
			Indexers:       []account.Indexer{account.AttributeIndexer(permission.AttributeKey)},
		})
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
}

// Engine owns the permission state and the components that read and
// write it.
type Engine struct {
	config Config
	log    logging.LeveledLogger

	store    history.Store
	groups   *handler.GroupHandler
	users    *handler.UserHandler
	resolver *resolver.Resolver
	hook     *admission.Hook

	mu    sync.RWMutex
	state State
}

// New builds an engine. It does not read history; call Start.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	e := &Engine{
		config: cfg,
		log:    cfg.LoggerFactory.NewLogger("permissions"),
		state:  StateInitialized,
	}
	if s, ok := cfg.History.(history.Store); ok {
		e.store = s
	}

	hc := handler.Config{
		Settings:      cfg.Settings,
		History:       cfg.History,
		Chain:         cfg.Chain,
		Groups:        cfg.Groups,
		Accounts:      cfg.Accounts,
		Catalog:       cfg.Catalog,
		Activation:    cfg.Activation,
		Events:        cfg.Events,
		LoggerFactory: cfg.LoggerFactory,
	}
	var err error
	if e.groups, err = handler.NewGroupHandler(hc); err != nil {
		return nil, err
	}
	if e.users, err = handler.NewUserHandler(hc); err != nil {
		return nil, err
	}

	e.resolver, err = resolver.New(resolver.Config{
		Settings:      cfg.Settings,
		Chain:         cfg.Chain,
		Groups:        cfg.Groups,
		Accounts:      cfg.Accounts,
		LoggerFactory: cfg.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	e.hook, err = admission.New(admission.Config{
		Resolver:      e.resolver,
		Handlers:      []handler.Handler{e.groups, e.users},
		LoggerFactory: cfg.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Start replays confirmed history: groups first so user bootstrap sees
// the final group set. Admission is refused until Start returns nil. A
// failed Start leaves the engine Initialized with partial state; build a
// new engine over fresh stores to retry.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateInitialized:
	case StateStopped:
		return ErrAlreadyStopped
	default:
		return ErrAlreadyStarted
	}
	e.state = StateStarting

	if err := e.groups.Bootstrap(ctx); err != nil {
		e.state = StateInitialized
		return fmt.Errorf("permissions: bootstrap: %w", err)
	}
	if err := e.users.Bootstrap(ctx); err != nil {
		e.state = StateInitialized
		return fmt.Errorf("permissions: bootstrap: %w", err)
	}

	e.state = StateRunning
	e.log.Infof("engine started: %d groups, %d accounts with permissions",
		e.config.Groups.Len(), len(e.config.Accounts.Indexed(permission.AttributeKey)))
	return nil
}

// Stop closes admission. State is kept for queries.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateRunning:
	case StateStopped:
		return ErrAlreadyStopped
	default:
		return ErrNotStarted
	}
	e.state = StateStopped
	e.log.Info("engine stopped")
	return nil
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) running() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateRunning {
		return ErrNotStarted
	}
	return nil
}

// AdmitToPool authorizes tx for the unconfirmed pool.
func (e *Engine) AdmitToPool(tx *ledger.Transaction, pool ledger.Pool) error {
	if err := e.running(); err != nil {
		return err
	}
	return e.hook.AdmitToPool(tx, pool)
}

// AdmitToBlock authorizes tx for inclusion in a block.
func (e *Engine) AdmitToBlock(tx *ledger.Transaction) error {
	if err := e.running(); err != nil {
		return err
	}
	return e.hook.AdmitToBlock(tx)
}

// Resolve reports the authorization decision for tx without running any
// handler checks.
func (e *Engine) Resolve(tx *ledger.Transaction) resolver.Result {
	return e.resolver.Resolve(tx)
}

// Apply writes the state of a confirmed permission transaction. Other
// transaction types are ignored. With a writable history the transaction
// is recorded first and dropped again if the handler fails.
func (e *Engine) Apply(ctx context.Context, tx *ledger.Transaction) error {
	if err := e.running(); err != nil {
		return err
	}
	hd, ok := e.hook.Handler(tx.Type)
	if !ok {
		return nil
	}

	if e.store != nil {
		if err := e.store.Append(ctx, tx); err != nil {
			return fmt.Errorf("permissions: record %s: %w", tx.ID, err)
		}
	}
	if err := hd.Apply(tx); err != nil {
		if e.store != nil {
			if rmErr := e.store.Remove(ctx, tx.ID); rmErr != nil {
				e.log.Warnf("dropping %s from history after failed apply: %v", tx.ID, rmErr)
			}
		}
		return err
	}
	return nil
}

// Revert undoes Apply for a confirmed permission transaction. With a
// writable history the transaction is dropped first and recorded again if
// the handler fails.
func (e *Engine) Revert(ctx context.Context, tx *ledger.Transaction) error {
	if err := e.running(); err != nil {
		return err
	}
	hd, ok := e.hook.Handler(tx.Type)
	if !ok {
		return nil
	}

	if e.store != nil {
		if err := e.store.Remove(ctx, tx.ID); err != nil {
			return fmt.Errorf("permissions: forget %s: %w", tx.ID, err)
		}
	}
	if err := hd.Revert(ctx, tx); err != nil {
		if e.store != nil {
			if addErr := e.store.Append(ctx, tx); addErr != nil {
				e.log.Warnf("restoring %s to history after failed revert: %v", tx.ID, addErr)
			}
		}
		return err
	}
	return nil
}

// FeeType returns the fee model of a permission transaction type.
func (e *Engine) FeeType(typ ledger.TypeKey) (config.FeeType, bool) {
	hd, ok := e.hook.Handler(typ)
	if !ok {
		return "", false
	}
	return hd.FeeType(), true
}

// StateDigest returns the digest of the current permission state.
func (e *Engine) StateDigest() (statehash.Digest, error) {
	return statehash.Compute(e.config.Groups, e.config.Accounts)
}

// QueryHandler returns the read-only HTTP routes over the engine state.
func (e *Engine) QueryHandler() http.Handler {
	return query.NewHandler(query.Config{
		Settings:      e.config.Settings,
		Groups:        e.config.Groups,
		Accounts:      e.config.Accounts,
		LoggerFactory: e.config.LoggerFactory,
	})
}

// Groups returns the permission cache.
func (e *Engine) Groups() cache.Groups {
	return e.config.Groups
}

// Accounts returns the account index.
func (e *Engine) Accounts() account.Index {
	return e.config.Accounts
}

// Settings returns the configuration snapshot.
func (e *Engine) Settings() *config.Snapshot {
	return e.config.Settings
}
