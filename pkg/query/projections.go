package query

import (
	"github.com/backkem/txpermissions/pkg/account"
	"github.com/backkem/txpermissions/pkg/cache"
	"github.com/backkem/txpermissions/pkg/config"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
)

// TypeKeyView is the JSON form of a transaction type.
type TypeKeyView struct {
	Type      uint32 `json:"type"`
	TypeGroup uint32 `json:"typeGroup"`
}

// GroupView is the JSON form of a group.
type GroupView struct {
	Name     string        `json:"name"`
	Priority uint32        `json:"priority"`
	Active   bool          `json:"active"`
	Default  bool          `json:"default"`
	Allow    []TypeKeyView `json:"allow"`
	Deny     []TypeKeyView `json:"deny"`
}

// UserView is the JSON form of an account's permissions.
type UserView struct {
	PublicKey string        `json:"publicKey"`
	Address   string        `json:"address"`
	Groups    []string      `json:"groups"`
	Allow     []TypeKeyView `json:"allow"`
	Deny      []TypeKeyView `json:"deny"`
}

// Projections builds read-only views over the permission state.
type Projections struct {
	settings *config.Snapshot
	groups   cache.Groups
	accounts account.Index
}

// NewProjections creates projections over the given state.
func NewProjections(settings *config.Snapshot, groups cache.Groups, accounts account.Index) *Projections {
	return &Projections{
		settings: settings,
		groups:   groups,
		accounts: accounts,
	}
}

func typeKeyViews(keys []ledger.TypeKey) []TypeKeyView {
	out := make([]TypeKeyView, len(keys))
	for i, k := range keys {
		out[i] = TypeKeyView{Type: k.Type, TypeGroup: k.Group}
	}
	return out
}

func groupView(g *permission.Group) GroupView {
	return GroupView{
		Name:     g.Name,
		Priority: g.Priority,
		Active:   g.Active,
		Default:  g.Default,
		Allow:    typeKeyViews(g.Permissions.Allow()),
		Deny:     typeKeyViews(g.Permissions.Deny()),
	}
}

func userView(acc *account.Account, up *permission.UserPermissions) UserView {
	groups := make([]string, len(up.Groups))
	copy(groups, up.Groups)
	return UserView{
		PublicKey: acc.PublicKey().String(),
		Address:   acc.Address().String(),
		Groups:    groups,
		Allow:     typeKeyViews(up.Permissions.Allow()),
		Deny:      typeKeyViews(up.Permissions.Deny()),
	}
}

// Groups returns every group sorted by name.
func (p *Projections) Groups() []GroupView {
	all := p.groups.All()
	out := make([]GroupView, len(all))
	for i, g := range all {
		out[i] = groupView(g)
	}
	return out
}

// Group returns the named group.
func (p *Projections) Group(name string) (GroupView, bool) {
	g, ok := p.groups.Get(name)
	if !ok {
		return GroupView{}, false
	}
	return groupView(g), true
}

// GroupUsers returns the accounts that name the group, sorted by public
// key. Returns false if the group does not exist.
func (p *Projections) GroupUsers(name string) ([]UserView, bool) {
	if _, ok := p.groups.Get(name); !ok {
		return nil, false
	}
	out := []UserView{}
	for _, acc := range p.accounts.Indexed(permission.AttributeKey) {
		up, ok := permission.OfAccount(acc)
		if !ok || !up.InGroup(name) {
			continue
		}
		out = append(out, userView(acc, up))
	}
	return out, true
}

// Users returns every account with permissions, sorted by public key.
func (p *Projections) Users() []UserView {
	out := []UserView{}
	for _, acc := range p.accounts.Indexed(permission.AttributeKey) {
		if up, ok := permission.OfAccount(acc); ok {
			out = append(out, userView(acc, up))
		}
	}
	return out
}

// User returns the permissions of one account.
func (p *Projections) User(pk ledger.PublicKey) (UserView, bool) {
	acc, up, ok := p.user(pk)
	if !ok {
		return UserView{}, false
	}
	return userView(acc, up), true
}

// UserGroups returns the existing groups an account names, in the
// account's order. Dangling names are skipped.
func (p *Projections) UserGroups(pk ledger.PublicKey) ([]GroupView, bool) {
	_, up, ok := p.user(pk)
	if !ok {
		return nil, false
	}
	out := []GroupView{}
	for _, name := range up.Groups {
		if g, ok := p.groups.Get(name); ok {
			out = append(out, groupView(g))
		}
	}
	return out, true
}

// Configurations returns the public configuration.
func (p *Projections) Configurations() config.Configurations {
	return p.settings.Configurations()
}

func (p *Projections) user(pk ledger.PublicKey) (*account.Account, *permission.UserPermissions, bool) {
	acc, ok := p.accounts.Get(pk)
	if !ok {
		return nil, nil, false
	}
	up, ok := permission.OfAccount(acc)
	if !ok {
		return nil, nil, false
	}
	return acc, up, true
}
