// Package account models the ledger accounts the permissions engine
// attaches overrides to, and the indexed account repository contract.
//
// Accounts are identified by public key and carry arbitrary named
// attributes. The repository keeps secondary indexes over accounts
// (e.g. "has a permissions attribute") that are re-evaluated whenever a
// writer calls Reindex.
package account

import (
	"encoding/hex"
	"sort"
	"sync"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // ledger addresses are defined over RIPEMD-160

	"github.com/backkem/txpermissions/pkg/ledger"
)

// DefaultNetworkVersion is the address version byte used when none is set.
const DefaultNetworkVersion byte = 0x1e

// AddressSize is the length of a binary address: version byte + hash160.
const AddressSize = 1 + ripemd160.Size

// Address is a binary ledger address.
type Address [AddressSize]byte

// String returns the hex encoding.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// AddressFromPublicKey derives the address of a public key:
// the network version byte followed by RIPEMD-160 of the key.
func AddressFromPublicKey(pk ledger.PublicKey, version byte) Address {
	h := ripemd160.New()
	h.Write(pk[:])

	var addr Address
	addr[0] = version
	copy(addr[1:], h.Sum(nil))
	return addr
}

// Account is a ledger account with named attributes.
type Account struct {
	publicKey ledger.PublicKey
	address   Address

	mu    sync.RWMutex
	attrs map[string]any
}

// New creates an account with no attributes.
func New(pk ledger.PublicKey, version byte) *Account {
	return &Account{
		publicKey: pk,
		address:   AddressFromPublicKey(pk, version),
		attrs:     make(map[string]any),
	}
}

// PublicKey returns the account's public key.
func (a *Account) PublicKey() ledger.PublicKey {
	return a.publicKey
}

// Address returns the account's address.
func (a *Account) Address() Address {
	return a.address
}

// Attribute returns the named attribute.
func (a *Account) Attribute(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	v, ok := a.attrs[key]
	return v, ok
}

// HasAttribute returns true if the named attribute is set.
func (a *Account) HasAttribute(key string) bool {
	_, ok := a.Attribute(key)
	return ok
}

// SetAttribute sets the named attribute.
func (a *Account) SetAttribute(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.attrs[key] = value
}

// ForgetAttribute removes the named attribute. Returns false if it was
// not set.
func (a *Account) ForgetAttribute(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.attrs[key]; !ok {
		return false
	}
	delete(a.attrs, key)
	return true
}

// AttributeKeys returns the set attribute names, sorted.
func (a *Account) AttributeKeys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	keys := make([]string, 0, len(a.attrs))
	for k := range a.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
