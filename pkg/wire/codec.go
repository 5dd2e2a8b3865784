package wire

import (
	"fmt"

	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
)

// Marshal encodes the payload to its wire form.
//
// Layout: u8 name length, name, u32 priority, u8 active, u8 default,
// allow list, deny list. Lists are a u8 count followed by
// (u32 type, u32 group) pairs. Integers are little-endian.
func (a *SetGroupPermissions) Marshal() ([]byte, error) {
	w := NewWriter(1 + len(a.Name) + 6 + 2 + 8*(len(a.Allow)+len(a.Deny)))
	if err := w.PutString(a.Name); err != nil {
		return nil, fmt.Errorf("group name: %w", err)
	}
	w.PutUint32(a.Priority)
	w.PutBool(a.Active)
	w.PutBool(a.Default)
	if err := w.PutTypeKeys(a.Allow); err != nil {
		return nil, fmt.Errorf("allow list: %w", err)
	}
	if err := w.PutTypeKeys(a.Deny); err != nil {
		return nil, fmt.Errorf("deny list: %w", err)
	}
	return w.Bytes(), nil
}

// DecodeGroupPermissions decodes a SetGroupPermissions payload.
func DecodeGroupPermissions(data []byte) (*SetGroupPermissions, error) {
	r := NewReader(data)
	a := &SetGroupPermissions{}
	var err error

	if a.Name, err = r.String(); err != nil {
		return nil, fmt.Errorf("group name: %w", err)
	}
	if a.Priority, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("priority: %w", err)
	}
	if a.Active, err = r.Bool(); err != nil {
		return nil, fmt.Errorf("active: %w", err)
	}
	if a.Default, err = r.Bool(); err != nil {
		return nil, fmt.Errorf("default: %w", err)
	}
	if a.Allow, err = r.TypeKeys(); err != nil {
		return nil, fmt.Errorf("allow list: %w", err)
	}
	if a.Deny, err = r.TypeKeys(); err != nil {
		return nil, fmt.Errorf("deny list: %w", err)
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return a, nil
}

// Marshal encodes the payload to its wire form.
//
// Layout: 33-byte public key, u8 group count with each name u8-length
// prefixed, allow list, deny list.
func (a *SetUserPermissions) Marshal() ([]byte, error) {
	size := ledger.PublicKeySize + 1 + 2 + 8*(len(a.Allow)+len(a.Deny))
	for _, name := range a.GroupNames {
		size += 1 + len(name)
	}
	w := NewWriter(size)
	w.PutFixed(a.PublicKey[:])
	if err := w.PutStrings(a.GroupNames); err != nil {
		return nil, fmt.Errorf("group names: %w", err)
	}
	if err := w.PutTypeKeys(a.Allow); err != nil {
		return nil, fmt.Errorf("allow list: %w", err)
	}
	if err := w.PutTypeKeys(a.Deny); err != nil {
		return nil, fmt.Errorf("deny list: %w", err)
	}
	return w.Bytes(), nil
}

// DecodeUserPermissions decodes a SetUserPermissions payload.
func DecodeUserPermissions(data []byte) (*SetUserPermissions, error) {
	r := NewReader(data)
	a := &SetUserPermissions{}
	var err error

	if err = r.Fixed(a.PublicKey[:]); err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if !a.PublicKey.IsCompressed() {
		return nil, fmt.Errorf("public key: %w", ledger.ErrInvalidPublicKey)
	}
	if a.GroupNames, err = r.Strings(); err != nil {
		return nil, fmt.Errorf("group names: %w", err)
	}
	if a.Allow, err = r.TypeKeys(); err != nil {
		return nil, fmt.Errorf("allow list: %w", err)
	}
	if a.Deny, err = r.TypeKeys(); err != nil {
		return nil, fmt.Errorf("deny list: %w", err)
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return a, nil
}

// Encode encodes a permission asset.
func Encode(asset ledger.Asset) ([]byte, error) {
	switch a := asset.(type) {
	case *SetGroupPermissions:
		return a.Marshal()
	case *SetUserPermissions:
		return a.Marshal()
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, asset)
	}
}

// Decode decodes the payload of a permission transaction of type typ.
func Decode(typ ledger.TypeKey, data []byte) (ledger.Asset, error) {
	switch typ {
	case permission.SetGroupPermissionsType:
		return DecodeGroupPermissions(data)
	case permission.SetUserPermissionsType:
		return DecodeUserPermissions(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
}

// TypeOf returns the transaction type of a permission asset.
func TypeOf(asset ledger.Asset) (ledger.TypeKey, error) {
	switch asset.(type) {
	case *SetGroupPermissions:
		return permission.SetGroupPermissionsType, nil
	case *SetUserPermissions:
		return permission.SetUserPermissionsType, nil
	default:
		return ledger.TypeKey{}, fmt.Errorf("%w: %T", ErrUnknownType, asset)
	}
}
