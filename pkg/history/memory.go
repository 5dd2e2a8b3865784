package history

import (
	"context"
	"sort"
	"sync"

	"github.com/backkem/txpermissions/pkg/ledger"
)

// Memory is an in-memory confirmed-transaction history.
//
// Thread Safety: All methods are safe for concurrent use.
type Memory struct {
	mu  sync.RWMutex
	txs []*ledger.Transaction // sorted by Position
	ids map[string]struct{}
}

// NewMemory creates an empty history.
func NewMemory() *Memory {
	return &Memory{
		ids: make(map[string]struct{}),
	}
}

// Append records a confirmed transaction.
func (m *Memory) Append(_ context.Context, tx *ledger.Transaction) error {
	if err := validateAppend(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ids[tx.ID]; ok {
		return ErrDuplicateID
	}

	i := sort.Search(len(m.txs), func(i int) bool {
		return tx.Position.Before(m.txs[i].Position)
	})
	m.txs = append(m.txs, nil)
	copy(m.txs[i+1:], m.txs[i:])
	m.txs[i] = tx
	m.ids[tx.ID] = struct{}{}
	return nil
}

// Remove deletes a transaction, as the host does when rolling back a
// block. Returns ErrNotFound if the ID is unknown.
func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ids[id]; !ok {
		return ErrNotFound
	}
	for i, tx := range m.txs {
		if tx.ID == id {
			m.txs = append(m.txs[:i], m.txs[i+1:]...)
			break
		}
	}
	delete(m.ids, id)
	return nil
}

// Len returns the number of recorded transactions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.txs)
}

// Scan calls fn for each transaction of typ in chain order.
func (m *Memory) Scan(ctx context.Context, typ ledger.TypeKey, fn func(*ledger.Transaction) error) error {
	m.mu.RLock()
	matching := make([]*ledger.Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		if tx.Type == typ {
			matching = append(matching, tx)
		}
	}
	m.mu.RUnlock()

	for _, tx := range matching {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
	return nil
}

// LatestBefore returns the last transaction of typ and subject strictly
// before pos, or nil.
func (m *Memory) LatestBefore(_ context.Context, typ ledger.TypeKey, subject string, pos ledger.Position) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.txs) - 1; i >= 0; i-- {
		tx := m.txs[i]
		if !tx.Position.Before(pos) {
			continue
		}
		if tx.Type == typ && tx.Subject() == subject {
			return tx, nil
		}
	}
	return nil, nil
}

var _ ledger.History = (*Memory)(nil)
