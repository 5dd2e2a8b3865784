package config

import (
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
)

// Snapshot is a validated, read-only view of a Config.
type Snapshot struct {
	maxDefinedGroupsPerUser      int
	transactionsAllowedByDefault bool
	masterPublicKey              ledger.PublicKey
	hasMaster                    bool
	defaultRuleBehaviour         DefaultRuleBehaviour
	feeType                      FeeType
	activationHeight             uint64
	networkVersion               uint8
	registeredTypes              []ledger.TypeKey
}

// DefaultSnapshot returns the snapshot of Default().
func DefaultSnapshot() *Snapshot {
	s, err := Default().Snapshot()
	if err != nil {
		panic(err)
	}
	return s
}

// MaxDefinedGroupsPerUser bounds the groups an account may join.
func (s *Snapshot) MaxDefinedGroupsPerUser() int {
	return s.maxDefinedGroupsPerUser
}

// TransactionsAllowedByDefault is the decision when no rule matches.
func (s *Snapshot) TransactionsAllowedByDefault() bool {
	return s.transactionsAllowedByDefault
}

// DefaultRuleBehaviour selects the senders default groups apply to.
func (s *Snapshot) DefaultRuleBehaviour() DefaultRuleBehaviour {
	return s.defaultRuleBehaviour
}

// FeeType is the fee model of the permission transactions.
func (s *Snapshot) FeeType() FeeType {
	return s.feeType
}

// ActivationHeight is the first height permission transactions are
// accepted at.
func (s *Snapshot) ActivationHeight() uint64 {
	return s.activationHeight
}

// NetworkVersion is the address version byte.
func (s *Snapshot) NetworkVersion() uint8 {
	return s.networkVersion
}

// MasterPublicKey returns the master key and whether one is configured.
func (s *Snapshot) MasterPublicKey() (ledger.PublicKey, bool) {
	return s.masterPublicKey, s.hasMaster
}

// Catalog returns the registered transaction types, including the two
// permission types.
func (s *Snapshot) Catalog() ledger.StaticCatalog {
	c := ledger.NewStaticCatalog(permission.SetGroupPermissionsType, permission.SetUserPermissionsType)
	c.Register(s.registeredTypes...)
	return c
}

// Configurations is the public projection served by the query API.
type Configurations struct {
	TypeGroup                    uint32 `json:"typeGroup"`
	Version                      uint8  `json:"version"`
	GroupName                    Limits `json:"groupName"`
	GroupPriority                Range  `json:"groupPriority"`
	MaxDefinedGroupsPerUser      int    `json:"maxDefinedGroupsPerUser"`
	TransactionsAllowedByDefault bool   `json:"transactionsAllowedByDefault"`
	MasterPublicKey              string `json:"masterPublicKey"`
	DefaultRuleBehaviour         string `json:"defaultRuleBehaviour"`
	FeeType                      string `json:"feeType"`
}

// Limits is a length bound.
type Limits struct {
	MinLength int `json:"minLength"`
	MaxLength int `json:"maxLength"`
}

// Range is a numeric bound.
type Range struct {
	Min uint32 `json:"min"`
	Max uint32 `json:"max"`
}

// Configurations returns the projection of the snapshot together with the
// compiled constants.
func (s *Snapshot) Configurations() Configurations {
	master := ""
	if s.hasMaster {
		master = s.masterPublicKey.String()
	}
	return Configurations{
		TypeGroup: permission.TypeGroup,
		Version:   permission.Version,
		GroupName: Limits{
			MinLength: permission.GroupNameMinLength,
			MaxLength: permission.GroupNameMaxLength,
		},
		GroupPriority: Range{
			Min: permission.GroupPriorityMin,
			Max: permission.GroupPriorityMax,
		},
		MaxDefinedGroupsPerUser:      s.maxDefinedGroupsPerUser,
		TransactionsAllowedByDefault: s.transactionsAllowedByDefault,
		MasterPublicKey:              master,
		DefaultRuleBehaviour:         string(s.defaultRuleBehaviour),
		FeeType:                      string(s.feeType),
	}
}
