// Package admission is the single point where the host asks whether a
// transaction may enter the pool or a block.
//
// Every transaction is first authorized by the resolver. Permission
// transactions are then checked by their owning handler.
package admission

import (
	"errors"
	"fmt"

	"github.com/pion/logging"

	"github.com/backkem/txpermissions/pkg/handler"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/resolver"
)

// Admission errors.
var (
	ErrForbidden        = errors.New("admission: forbidden")
	ErrResolverRequired = errors.New("admission: resolver is required")
	ErrDuplicateHandler = errors.New("admission: duplicate handler for transaction type")
)

// ForbiddenError is a policy rejection: the sender may not submit the
// transaction type. It is never worth retrying.
type ForbiddenError struct {
	TransactionID string
	Type          ledger.TypeKey
	Sender        ledger.PublicKey
	Result        resolver.Result
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("admission: %s may not submit %s (transaction %s): %s",
		e.Sender, e.Type, e.TransactionID, e.Result)
}

// Unwrap returns ErrForbidden.
func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

// Authorizer decides whether a sender may submit a transaction.
// *resolver.Resolver implements it.
type Authorizer interface {
	Resolve(tx *ledger.Transaction) resolver.Result
}

// Config configures a Hook.
type Config struct {
	// Resolver authorizes every transaction. Required.
	Resolver Authorizer

	// Handlers own the permission transaction types.
	Handlers []handler.Handler

	// LoggerFactory is optional.
	LoggerFactory logging.LoggerFactory
}

// Hook runs the admission checks.
//
// Thread Safety: Hook is safe for concurrent use as long as its
// collaborators are.
type Hook struct {
	resolver Authorizer
	handlers map[ledger.TypeKey]handler.Handler
	log      logging.LeveledLogger
}

// New creates a Hook.
func New(cfg Config) (*Hook, error) {
	if cfg.Resolver == nil {
		return nil, ErrResolverRequired
	}

	h := &Hook{
		resolver: cfg.Resolver,
		handlers: make(map[ledger.TypeKey]handler.Handler, len(cfg.Handlers)),
	}
	for _, hd := range cfg.Handlers {
		if _, ok := h.handlers[hd.Type()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, hd.Type())
		}
		h.handlers[hd.Type()] = hd
	}
	if cfg.LoggerFactory != nil {
		h.log = cfg.LoggerFactory.NewLogger("admission")
	}
	return h, nil
}

// Handler returns the handler owning typ.
func (h *Hook) Handler(typ ledger.TypeKey) (handler.Handler, bool) {
	hd, ok := h.handlers[typ]
	return hd, ok
}

// AdmitToPool authorizes tx and, for permission transactions, runs the
// handler's Verify and CanEnterPool against the pending set.
func (h *Hook) AdmitToPool(tx *ledger.Transaction, pool ledger.Pool) error {
	hd, err := h.admit(tx)
	if err != nil {
		return err
	}
	if hd == nil {
		return nil
	}
	if err := hd.CanEnterPool(tx, pool); err != nil {
		h.reject(tx, err)
		return err
	}
	return nil
}

// AdmitToBlock authorizes tx and, for permission transactions, runs the
// handler's Verify.
func (h *Hook) AdmitToBlock(tx *ledger.Transaction) error {
	_, err := h.admit(tx)
	return err
}

// admit runs the checks shared by pool and block admission. It returns the
// owning handler, or nil for other transaction types.
func (h *Hook) admit(tx *ledger.Transaction) (handler.Handler, error) {
	res := h.resolver.Resolve(tx)
	if !res.Allowed {
		err := &ForbiddenError{
			TransactionID: tx.ID,
			Type:          tx.Type,
			Sender:        tx.SenderPublicKey,
			Result:        res,
		}
		h.reject(tx, err)
		return nil, err
	}

	hd, ok := h.handlers[tx.Type]
	if !ok {
		return nil, nil
	}
	if err := hd.Verify(tx); err != nil {
		h.reject(tx, err)
		return nil, err
	}
	return hd, nil
}

func (h *Hook) reject(tx *ledger.Transaction, err error) {
	if h.log != nil {
		h.log.Debugf("rejected %s: %v", tx.ID, err)
	}
}
