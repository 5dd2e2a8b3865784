package permission

import "github.com/backkem/txpermissions/pkg/account"

// OfAccount returns the UserPermissions attribute of an account.
// The returned value is shared and must not be modified.
func OfAccount(acc *account.Account) (*UserPermissions, bool) {
	v, ok := acc.Attribute(AttributeKey)
	if !ok {
		return nil, false
	}
	up, ok := v.(*UserPermissions)
	return up, ok
}
