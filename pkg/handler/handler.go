// Package handler implements the two permission transaction handlers.
//
// GroupHandler owns SetGroupPermissions and writes group definitions into
// the permission cache. UserHandler owns SetUserPermissions and writes the
// permissions attribute onto target accounts. Both follow the same
// lifecycle, driven by the host:
//
//	Bootstrap    replay confirmed history at startup
//	Verify       schema and reference checks at admission
//	CanEnterPool one pending transaction per subject
//	Apply        write state when a block is applied
//	Revert       restore the previous state when a block is rolled back
//
// Handlers assume a single writer. Apply, Revert and Bootstrap must not run
// concurrently with each other; Verify and CanEnterPool only read.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/logging"

	"github.com/backkem/txpermissions/pkg/account"
	"github.com/backkem/txpermissions/pkg/cache"
	"github.com/backkem/txpermissions/pkg/config"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
)

// Handler errors.
var (
	ErrNotActivated       = errors.New("handler: permission transactions are not activated yet")
	ErrWrongType          = errors.New("handler: transaction type not handled")
	ErrWrongAsset         = errors.New("handler: unexpected asset")
	ErrUnsupportedVersion = errors.New("handler: unsupported transaction version")
	ErrUnconfirmed        = errors.New("handler: transaction has no chain position")

	ErrSettingsRequired = errors.New("handler: settings are required")
	ErrHistoryRequired  = errors.New("handler: history is required")
	ErrChainRequired    = errors.New("handler: chain is required")
	ErrCacheRequired    = errors.New("handler: group cache is required")
	ErrAccountsRequired = errors.New("handler: account index is required")
)

// PendingConflictError is returned by CanEnterPool when another unconfirmed
// transaction already writes the same subject.
type PendingConflictError struct {
	Type      ledger.TypeKey
	Subject   string
	PendingID string
}

func (e *PendingConflictError) Error() string {
	return fmt.Sprintf("handler: %s for %q already pending in transaction %s", e.Type, e.Subject, e.PendingID)
}

// Handler is the lifecycle contract of a permission transaction handler.
type Handler interface {
	// Type returns the transaction type the handler owns.
	Type() ledger.TypeKey

	// Bootstrap rebuilds state from confirmed history.
	Bootstrap(ctx context.Context) error

	// Verify checks a transaction before admission.
	Verify(tx *ledger.Transaction) error

	// CanEnterPool rejects a transaction whose subject already has a
	// pending transaction.
	CanEnterPool(tx *ledger.Transaction, pool ledger.Pool) error

	// Apply writes the transaction's state.
	Apply(tx *ledger.Transaction) error

	// Revert undoes Apply for a confirmed transaction.
	Revert(ctx context.Context, tx *ledger.Transaction) error

	// FeeType is the fee model the host applies to the transaction.
	FeeType() config.FeeType
}

// Activation reports whether permission transactions are accepted at a
// given height.
type Activation interface {
	Activated(height uint64) bool
}

// HeightActivation activates at a fixed height.
type HeightActivation uint64

// Activated returns true from the activation height on.
func (h HeightActivation) Activated(height uint64) bool {
	return height >= uint64(h)
}

// Config holds the collaborators of the handlers. Each constructor checks
// the fields it needs.
type Config struct {
	// Settings is the frozen engine configuration. Required.
	Settings *config.Snapshot

	// History is the confirmed transaction history. Required.
	History ledger.History

	// Chain supplies the current height for activation. Required.
	Chain ledger.Chain

	// Groups is the permission cache. Required.
	Groups cache.Groups

	// Accounts is the indexed account repository. Required by UserHandler.
	Accounts account.Index

	// Catalog lists the registered transaction types. Used by UserHandler.
	// Default: Settings.Catalog().
	Catalog ledger.Catalog

	// Activation gates Verify. Default: HeightActivation at
	// Settings.ActivationHeight().
	Activation Activation

	// Events receives state change notifications. Optional.
	Events EventPublisher

	// LoggerFactory is optional.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) validate() error {
	if c.Settings == nil {
		return ErrSettingsRequired
	}
	if c.History == nil {
		return ErrHistoryRequired
	}
	if c.Chain == nil {
		return ErrChainRequired
	}
	if c.Groups == nil {
		return ErrCacheRequired
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Activation == nil {
		c.Activation = HeightActivation(c.Settings.ActivationHeight())
	}
	if c.Catalog == nil {
		c.Catalog = c.Settings.Catalog()
	}
}

// base carries what both handlers share.
type base struct {
	typ        ledger.TypeKey
	settings   *config.Snapshot
	history    ledger.History
	chain      ledger.Chain
	activation Activation
	events     EventPublisher
	log        logging.LeveledLogger
}

func newBase(typ ledger.TypeKey, cfg Config, name string) base {
	b := base{
		typ:        typ,
		settings:   cfg.Settings,
		history:    cfg.History,
		chain:      cfg.Chain,
		activation: cfg.Activation,
		events:     cfg.Events,
	}
	if cfg.LoggerFactory != nil {
		b.log = cfg.LoggerFactory.NewLogger(name)
	}
	return b
}

// Type returns the owned transaction type.
func (b *base) Type() ledger.TypeKey {
	return b.typ
}

// FeeType returns the configured fee model.
func (b *base) FeeType() config.FeeType {
	return b.settings.FeeType()
}

// checkType rejects transactions of another type.
func (b *base) checkType(tx *ledger.Transaction) error {
	if tx.Type != b.typ {
		return fmt.Errorf("%w: %s", ErrWrongType, tx.Type)
	}
	return nil
}

// checkAdmission runs the checks common to every Verify.
func (b *base) checkAdmission(tx *ledger.Transaction) error {
	if err := b.checkType(tx); err != nil {
		return err
	}
	if tx.Version != permission.Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, tx.Version)
	}

	// An unconfirmed transaction targets the next block.
	height := tx.Position.Height
	if height == 0 {
		height = b.chain.Height() + 1
	}
	if !b.activation.Activated(height) {
		return ErrNotActivated
	}
	return nil
}

// checkPool returns a *PendingConflictError if another pending transaction
// of the same type writes tx's subject.
func (b *base) checkPool(tx *ledger.Transaction, pool ledger.Pool) error {
	if err := b.checkType(tx); err != nil {
		return err
	}
	subject := tx.Subject()
	for _, pending := range pool.Pending(b.typ) {
		if pending.ID == tx.ID {
			continue
		}
		if pending.Subject() == subject {
			return &PendingConflictError{Type: b.typ, Subject: subject, PendingID: pending.ID}
		}
	}
	return nil
}

// previous returns the transaction tx superseded, or nil.
func (b *base) previous(ctx context.Context, tx *ledger.Transaction) (*ledger.Transaction, error) {
	if tx.Position.IsZero() {
		return nil, ErrUnconfirmed
	}
	prev, err := b.history.LatestBefore(ctx, b.typ, tx.Subject(), tx.Position)
	if err != nil {
		return nil, fmt.Errorf("handler: looking up previous %s for %q: %w", b.typ, tx.Subject(), err)
	}
	return prev, nil
}
