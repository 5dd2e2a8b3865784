package permission

import "github.com/backkem/txpermissions/pkg/ledger"

// Type group and transaction types of the permission transactions.
const (
	// TypeGroup is the type group both permission transactions belong to.
	TypeGroup uint32 = 9002

	// Version is the transaction version the permission transactions use.
	Version uint8 = 2

	// TypeSetGroupPermissions creates or overwrites a group.
	TypeSetGroupPermissions uint32 = 0

	// TypeSetUserPermissions creates or overwrites an account's overrides.
	TypeSetUserPermissions uint32 = 1
)

// Transaction type keys of the permission transactions.
var (
	SetGroupPermissionsType = ledger.TypeKey{Type: TypeSetGroupPermissions, Group: TypeGroup}
	SetUserPermissionsType  = ledger.TypeKey{Type: TypeSetUserPermissions, Group: TypeGroup}
)

// Group limits.
const (
	GroupNameMinLength = 1
	GroupNameMaxLength = 40

	GroupPriorityMin uint32 = 0
	GroupPriorityMax uint32 = 1000

	// DefaultMaxDefinedGroupsPerUser bounds the number of groups an
	// account may be a member of.
	DefaultMaxDefinedGroupsPerUser = 20
)

// AttributeKey is the account attribute holding UserPermissions.
// It doubles as the name of the account secondary index.
const AttributeKey = "permissions"

// Permission tags a transaction type with Allow or Deny.
type Permission struct {
	ledger.TypeKey
	Kind Kind
}

// NewAllow creates an Allow permission.
func NewAllow(txType, typeGroup uint32) Permission {
	return Permission{TypeKey: ledger.TypeKey{Type: txType, Group: typeGroup}, Kind: Allow}
}

// NewDeny creates a Deny permission.
func NewDeny(txType, typeGroup uint32) Permission {
	return Permission{TypeKey: ledger.TypeKey{Type: txType, Group: typeGroup}, Kind: Deny}
}

// Matches returns true if the permission applies to the transaction type.
func (p Permission) Matches(typ ledger.TypeKey) bool {
	return p.TypeKey == typ
}

// List is a combined, kind-tagged permission list.
type List []Permission

// Merge builds a combined list from separate allow and deny key lists.
// Allow entries come first. Returns nil if both inputs are empty.
func Merge(allow, deny []ledger.TypeKey) List {
	if len(allow) == 0 && len(deny) == 0 {
		return nil
	}
	out := make(List, 0, len(allow)+len(deny))
	for _, k := range allow {
		out = append(out, Permission{TypeKey: k, Kind: Allow})
	}
	for _, k := range deny {
		out = append(out, Permission{TypeKey: k, Kind: Deny})
	}
	return out
}

// Allow returns the keys tagged Allow, in list order.
func (l List) Allow() []ledger.TypeKey {
	return l.keys(Allow)
}

// Deny returns the keys tagged Deny, in list order.
func (l List) Deny() []ledger.TypeKey {
	return l.keys(Deny)
}

func (l List) keys(kind Kind) []ledger.TypeKey {
	out := []ledger.TypeKey{}
	for _, p := range l {
		if p.Kind == kind {
			out = append(out, p.TypeKey)
		}
	}
	return out
}

// Find returns the first permission matching typ.
func (l List) Find(typ ledger.TypeKey) (Permission, bool) {
	for _, p := range l {
		if p.Matches(typ) {
			return p, true
		}
	}
	return Permission{}, false
}

// Clone returns a copy of the list. A nil list stays nil.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Group is a named, prioritized permission bundle.
type Group struct {
	Name        string
	Priority    uint32
	Active      bool
	Default     bool
	Permissions List
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	c := *g
	c.Permissions = g.Permissions.Clone()
	return &c
}

// UserPermissions is the override attribute attached to an account.
type UserPermissions struct {
	// Groups names the groups the account is a member of. Never nil once
	// applied; an account with no memberships has an empty slice.
	Groups []string

	Permissions List
}

// Clone returns a deep copy.
func (u *UserPermissions) Clone() *UserPermissions {
	c := &UserPermissions{
		Groups:      make([]string, len(u.Groups)),
		Permissions: u.Permissions.Clone(),
	}
	copy(c.Groups, u.Groups)
	return c
}

// InGroup returns true if name is one of the account's groups.
func (u *UserPermissions) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g == name {
			return true
		}
	}
	return false
}
