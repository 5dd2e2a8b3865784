package ledger

import (
	"context"
	"errors"
)

// ErrGenesisUnknown is returned while the genesis block is not available.
var ErrGenesisUnknown = errors.New("ledger: genesis block unknown")

// Chain exposes the chain facts the resolver needs.
type Chain interface {
	// Height returns the height of the last applied block.
	Height() uint64

	// GenesisPublicKey returns the generator key of the genesis block.
	GenesisPublicKey() (PublicKey, error)
}

// Pool exposes the unconfirmed transactions of the host's pool.
type Pool interface {
	// Pending returns unconfirmed transactions of the given type.
	Pending(typ TypeKey) []*Transaction
}

// History gives read access to confirmed transactions.
//
// Implementations must return transactions in chain order
// (Position ascending) and with a decoded Asset.
type History interface {
	// Scan calls fn for every confirmed transaction of the given type in
	// chain order. Scanning stops at the first error returned by fn.
	Scan(ctx context.Context, typ TypeKey, fn func(*Transaction) error) error

	// LatestBefore returns the most recent transaction of the given type
	// and subject positioned strictly before pos.
	// Returns (nil, nil) if there is none.
	LatestBefore(ctx context.Context, typ TypeKey, subject string, pos Position) (*Transaction, error)
}

// Catalog reports which transaction types are registered with the ledger.
type Catalog interface {
	Exists(typ TypeKey) bool
}

// StaticCatalog is a fixed set of registered transaction types.
type StaticCatalog map[TypeKey]struct{}

// NewStaticCatalog creates a catalog containing the given types.
func NewStaticCatalog(types ...TypeKey) StaticCatalog {
	c := make(StaticCatalog, len(types))
	for _, t := range types {
		c[t] = struct{}{}
	}
	return c
}

// Exists returns true if typ is registered.
func (c StaticCatalog) Exists(typ TypeKey) bool {
	_, ok := c[typ]
	return ok
}

// Register adds types to the catalog.
func (c StaticCatalog) Register(types ...TypeKey) {
	for _, t := range types {
		c[t] = struct{}{}
	}
}

// StaticChain is a Chain with a settable height, used by tests and the CLI.
type StaticChain struct {
	CurrentHeight uint64
	Genesis       PublicKey
}

// Height returns CurrentHeight.
func (c *StaticChain) Height() uint64 {
	return c.CurrentHeight
}

// GenesisPublicKey returns Genesis, or ErrGenesisUnknown while it is unset.
func (c *StaticChain) GenesisPublicKey() (PublicKey, error) {
	if c.Genesis.IsZero() {
		return PublicKey{}, ErrGenesisUnknown
	}
	return c.Genesis, nil
}

// PendingSet is a Pool backed by a slice of unconfirmed transactions.
type PendingSet []*Transaction

// Pending returns the transactions of the given type.
func (s PendingSet) Pending(typ TypeKey) []*Transaction {
	var out []*Transaction
	for _, tx := range s {
		if tx.Type == typ {
			out = append(out, tx)
		}
	}
	return out
}
