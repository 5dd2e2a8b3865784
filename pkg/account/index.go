package account

import (
	"bytes"
	"sort"
	"sync"

	"github.com/backkem/txpermissions/pkg/ledger"
)

// Index is the indexed account repository contract.
type Index interface {
	// FindByPublicKey returns the account for pk, creating an empty one
	// if it does not exist yet.
	FindByPublicKey(pk ledger.PublicKey) *Account

	// Get returns the account for pk without creating it.
	Get(pk ledger.PublicKey) (*Account, bool)

	// Reindex re-evaluates the secondary indexes for the account.
	// Writers call it after changing attributes.
	Reindex(acc *Account)

	// Indexed returns the accounts in the named secondary index,
	// sorted by public key.
	Indexed(name string) []*Account

	// IsIndexed returns true if pk is in the named secondary index.
	IsIndexed(name string, pk ledger.PublicKey) bool
}

// Indexer defines a secondary index: an account is a member while
// Include returns true.
type Indexer struct {
	Name    string
	Include func(acc *Account) bool
}

// AttributeIndexer indexes the accounts that carry the attribute key.
func AttributeIndexer(key string) Indexer {
	return Indexer{
		Name: key,
		Include: func(acc *Account) bool {
			return acc.HasAttribute(key)
		},
	}
}

// MemoryConfig configures a Memory index.
type MemoryConfig struct {
	// NetworkVersion is the address version byte for new accounts.
	// Default: DefaultNetworkVersion.
	NetworkVersion byte

	// Indexers are the secondary indexes to maintain.
	Indexers []Indexer
}

// Memory is an in-memory Index.
//
// Thread Safety: All methods are safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	version  byte
	accounts map[ledger.PublicKey]*Account
	indexers []Indexer
	indexes  map[string]map[ledger.PublicKey]*Account
}

// NewMemory creates an empty in-memory account index.
func NewMemory(config MemoryConfig) *Memory {
	if config.NetworkVersion == 0 {
		config.NetworkVersion = DefaultNetworkVersion
	}

	m := &Memory{
		version:  config.NetworkVersion,
		accounts: make(map[ledger.PublicKey]*Account),
		indexers: config.Indexers,
		indexes:  make(map[string]map[ledger.PublicKey]*Account),
	}
	for _, ix := range config.Indexers {
		m.indexes[ix.Name] = make(map[ledger.PublicKey]*Account)
	}
	return m
}

// FindByPublicKey returns the account, creating it if needed.
func (m *Memory) FindByPublicKey(pk ledger.PublicKey) *Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[pk]
	if !ok {
		acc = New(pk, m.version)
		m.accounts[pk] = acc
	}
	return acc
}

// Get returns the account without creating it.
func (m *Memory) Get(pk ledger.PublicKey) (*Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[pk]
	return acc, ok
}

// Reindex updates every secondary index for the account.
func (m *Memory) Reindex(acc *Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pk := acc.PublicKey()
	for _, ix := range m.indexers {
		if ix.Include(acc) {
			m.indexes[ix.Name][pk] = acc
		} else {
			delete(m.indexes[ix.Name], pk)
		}
	}
}

// Indexed returns the members of the named index sorted by public key.
// Unknown index names return nil.
func (m *Memory) Indexed(name string) []*Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ix, ok := m.indexes[name]
	if !ok {
		return nil
	}
	out := make([]*Account, 0, len(ix))
	for _, acc := range ix {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].PublicKey(), out[j].PublicKey()
		return bytes.Compare(a[:], b[:]) < 0
	})
	return out
}

// IsIndexed returns true if pk is a member of the named index.
func (m *Memory) IsIndexed(name string, pk ledger.PublicKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.indexes[name][pk]
	return ok
}

// Len returns the number of known accounts.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.accounts)
}

var _ Index = (*Memory)(nil)
