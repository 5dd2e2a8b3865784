package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PublicKeySize is the length of a compressed secp256k1 public key.
const PublicKeySize = 33

// Parse errors.
var (
	ErrInvalidPublicKey = errors.New("ledger: invalid public key")
	ErrInvalidTypeKey   = errors.New("ledger: invalid type key")
)

// PublicKey is a compressed account public key.
type PublicKey [PublicKeySize]byte

// ParsePublicKey parses a hex-encoded compressed public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != PublicKeySize {
		return pk, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidPublicKey, len(raw), PublicKeySize)
	}
	copy(pk[:], raw)
	if !pk.IsCompressed() {
		return pk, fmt.Errorf("%w: prefix 0x%02x", ErrInvalidPublicKey, raw[0])
	}
	return pk, nil
}

// MustParsePublicKey is like ParsePublicKey but panics on error.
// Intended for tests and constants.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the lowercase hex encoding.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

// IsZero returns true if the key is all zeros.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// IsCompressed returns true if the key carries a compressed point prefix.
func (pk PublicKey) IsCompressed() bool {
	return pk[0] == 0x02 || pk[0] == 0x03
}

// TypeKey identifies a transaction type within its type group.
type TypeKey struct {
	Type  uint32
	Group uint32
}

// String returns "group/type".
func (k TypeKey) String() string {
	return fmt.Sprintf("%d/%d", k.Group, k.Type)
}

// ParseTypeKey parses the "group/type" form produced by String.
func ParseTypeKey(s string) (TypeKey, error) {
	groupText, typeText, ok := strings.Cut(s, "/")
	if !ok {
		return TypeKey{}, fmt.Errorf("%w: %q", ErrInvalidTypeKey, s)
	}
	group, err := strconv.ParseUint(groupText, 10, 32)
	if err != nil {
		return TypeKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidTypeKey, s, err)
	}
	typ, err := strconv.ParseUint(typeText, 10, 32)
	if err != nil {
		return TypeKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidTypeKey, s, err)
	}
	return TypeKey{Type: uint32(typ), Group: uint32(group)}, nil
}

// Less orders keys by group, then type.
func (k TypeKey) Less(other TypeKey) bool {
	if k.Group != other.Group {
		return k.Group < other.Group
	}
	return k.Type < other.Type
}

// Position is the chain location of a confirmed transaction.
// The zero Position means "unconfirmed".
type Position struct {
	Height   uint64
	Sequence uint32
}

// IsZero returns true for unconfirmed transactions.
func (p Position) IsZero() bool {
	return p.Height == 0
}

// Before returns true if p comes strictly earlier in chain order.
func (p Position) Before(other Position) bool {
	if p.Height != other.Height {
		return p.Height < other.Height
	}
	return p.Sequence < other.Sequence
}

// Asset is the decoded, type-specific payload of a transaction.
type Asset interface {
	// Subject returns the key the payload writes to (a group name or a
	// target public key). At most one pending transaction per subject is
	// admitted to the pool, and history lookups are keyed by it.
	Subject() string
}

// Transaction is the engine's view of a ledger transaction.
type Transaction struct {
	ID              string
	Type            TypeKey
	Version         uint8
	SenderPublicKey PublicKey
	Position        Position
	Asset           Asset
}

// Subject returns the asset's subject, or "" when there is no asset.
func (tx *Transaction) Subject() string {
	if tx.Asset == nil {
		return ""
	}
	return tx.Asset.Subject()
}
