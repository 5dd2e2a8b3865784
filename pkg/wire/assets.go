package wire

import (
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
)

// SetGroupPermissions is the payload of a SetGroupPermissions transaction.
//
// Allow and Deny are nil when absent. The wire form cannot tell an absent
// list from an empty one; both encode as a zero count and decode as nil.
type SetGroupPermissions struct {
	Name     string
	Priority uint32
	Active   bool
	Default  bool
	Allow    []ledger.TypeKey
	Deny     []ledger.TypeKey
}

// Subject returns the group name.
func (a *SetGroupPermissions) Subject() string {
	return a.Name
}

// Permissions returns the combined allow+deny list.
func (a *SetGroupPermissions) Permissions() permission.List {
	return permission.Merge(a.Allow, a.Deny)
}

// Group returns the group definition this payload writes.
func (a *SetGroupPermissions) Group() *permission.Group {
	return &permission.Group{
		Name:        a.Name,
		Priority:    a.Priority,
		Active:      a.Active,
		Default:     a.Default,
		Permissions: a.Permissions(),
	}
}

// SetUserPermissions is the payload of a SetUserPermissions transaction.
//
// PublicKey names the target account, which may differ from the sender.
// GroupNames, Allow and Deny are nil when absent.
type SetUserPermissions struct {
	PublicKey  ledger.PublicKey
	GroupNames []string
	Allow      []ledger.TypeKey
	Deny       []ledger.TypeKey
}

// Subject returns the hex-encoded target public key.
func (a *SetUserPermissions) Subject() string {
	return a.PublicKey.String()
}

// Permissions returns the combined allow+deny list.
func (a *SetUserPermissions) Permissions() permission.List {
	return permission.Merge(a.Allow, a.Deny)
}

// UserPermissions returns the account attribute this payload writes.
// Absent group names become an empty membership list.
func (a *SetUserPermissions) UserPermissions() *permission.UserPermissions {
	groups := make([]string, len(a.GroupNames))
	copy(groups, a.GroupNames)
	return &permission.UserPermissions{
		Groups:      groups,
		Permissions: a.Permissions(),
	}
}

var (
	_ ledger.Asset = (*SetGroupPermissions)(nil)
	_ ledger.Asset = (*SetUserPermissions)(nil)
)
