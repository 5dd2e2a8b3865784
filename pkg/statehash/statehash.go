// Package statehash computes a digest of the permission state: every
// cached group and every account carrying a permissions attribute.
//
// The state is encoded with CBOR Core Deterministic Encoding and hashed
// with keyed BLAKE3. Two nodes that applied the same transactions produce
// the same digest, and applying then reverting a transaction leaves the
// digest unchanged.
package statehash

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/backkem/txpermissions/pkg/account"
	"github.com/backkem/txpermissions/pkg/cache"
	"github.com/backkem/txpermissions/pkg/permission"
)

// Digest is a 32-byte BLAKE3 digest.
type Digest [32]byte

// String returns the hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// domainKey is "txpermissions.state" zero-padded to 32 bytes.
var domainKey = [32]byte{
	't', 'x', 'p', 'e', 'r', 'm', 'i', 's', 's', 'i', 'o', 'n', 's', '.',
	's', 't', 'a', 't', 'e',
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("statehash: CBOR encoder initialization failed: " + err.Error())
	}
}

// State is the canonical form of the permission state.
type State struct {
	Groups []Group `cbor:"1,keyasint,omitempty"`
	Users  []User  `cbor:"2,keyasint,omitempty"`
}

// Group is the canonical form of a group definition.
type Group struct {
	Name        string       `cbor:"1,keyasint"`
	Priority    uint32       `cbor:"2,keyasint"`
	Active      bool         `cbor:"3,keyasint"`
	Default     bool         `cbor:"4,keyasint"`
	Permissions []Permission `cbor:"5,keyasint,omitempty"`
}

// User is the canonical form of an account's permissions attribute.
type User struct {
	PublicKey   []byte       `cbor:"1,keyasint"`
	Groups      []string     `cbor:"2,keyasint,omitempty"`
	Permissions []Permission `cbor:"3,keyasint,omitempty"`
}

// Permission is the canonical form of one permission entry.
type Permission struct {
	Type  uint32 `cbor:"1,keyasint"`
	Group uint32 `cbor:"2,keyasint"`
	Kind  uint8  `cbor:"3,keyasint"`
}

// Capture reads the current state. Groups are ordered by name and users by
// public key; list order inside each entry is kept since it decides
// resolution.
func Capture(groups cache.Groups, accounts account.Index) *State {
	s := &State{}
	for _, g := range groups.All() {
		s.Groups = append(s.Groups, Group{
			Name:        g.Name,
			Priority:    g.Priority,
			Active:      g.Active,
			Default:     g.Default,
			Permissions: capturePermissions(g.Permissions),
		})
	}
	for _, acc := range accounts.Indexed(permission.AttributeKey) {
		up, ok := permission.OfAccount(acc)
		if !ok {
			continue
		}
		pk := acc.PublicKey()
		u := User{
			PublicKey:   pk[:],
			Permissions: capturePermissions(up.Permissions),
		}
		if len(up.Groups) > 0 {
			u.Groups = append([]string(nil), up.Groups...)
		}
		s.Users = append(s.Users, u)
	}
	return s
}

func capturePermissions(l permission.List) []Permission {
	if len(l) == 0 {
		return nil
	}
	out := make([]Permission, len(l))
	for i, p := range l {
		out[i] = Permission{Type: p.Type, Group: p.Group, Kind: uint8(p.Kind)}
	}
	return out
}

// Encode returns the deterministic CBOR encoding.
func (s *State) Encode() ([]byte, error) {
	data, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("statehash: %w", err)
	}
	return data, nil
}

// Digest returns the keyed BLAKE3 digest of Encode().
func (s *State) Digest() (Digest, error) {
	data, err := s.Encode()
	if err != nil {
		return Digest{}, err
	}
	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		panic("statehash: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)

	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d, nil
}

// Compute captures the state and returns its digest.
func Compute(groups cache.Groups, accounts account.Index) (Digest, error) {
	return Capture(groups, accounts).Digest()
}
