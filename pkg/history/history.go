// Package history stores confirmed permission transactions and serves the
// two reads the handlers need: a chain-ordered scan for bootstrap, and the
// latest earlier transaction for a subject when reverting.
//
// Two implementations are provided: Memory for tests and embedding, and
// SQLite for a persistent node.
package history

import (
	"context"
	"errors"

	"github.com/backkem/txpermissions/pkg/ledger"
)

// History errors.
var (
	ErrUnconfirmed = errors.New("history: transaction has no chain position")
	ErrDuplicateID = errors.New("history: duplicate transaction ID")
	ErrNotFound    = errors.New("history: transaction not found")
	ErrNoAsset     = errors.New("history: transaction has no asset")
	ErrEmptyID     = errors.New("history: transaction ID is empty")
)

// Store is a History that can also be written by the host.
type Store interface {
	ledger.History

	// Append records a confirmed transaction.
	Append(ctx context.Context, tx *ledger.Transaction) error

	// Remove deletes a transaction by ID when its block is rolled back.
	Remove(ctx context.Context, id string) error
}

var _ Store = (*Memory)(nil)

func validateAppend(tx *ledger.Transaction) error {
	if tx.ID == "" {
		return ErrEmptyID
	}
	if tx.Position.IsZero() {
		return ErrUnconfirmed
	}
	if tx.Asset == nil {
		return ErrNoAsset
	}
	return nil
}
