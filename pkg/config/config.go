// Package config holds the host-injected settings of the permissions engine.
//
// A Config is loaded from YAML over Default() and then frozen into a
// Snapshot, which is what the handlers, resolver and query API receive. The
// Snapshot never changes after construction.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/backkem/txpermissions/pkg/account"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
)

// DefaultRuleBehaviour selects which senders default groups apply to.
type DefaultRuleBehaviour string

const (
	// DefaultRulesAll consults default groups for every sender whose own
	// overrides and groups did not decide.
	DefaultRulesAll DefaultRuleBehaviour = "all"

	// DefaultRulesUnconfigured consults default groups only for senders
	// without a permissions attribute.
	DefaultRulesUnconfigured DefaultRuleBehaviour = "unconfigured"
)

// FeeType is the fee model the host applies to permission transactions.
type FeeType string

const (
	FeeStatic  FeeType = "static"
	FeeDynamic FeeType = "dynamic"
)

// Config is the editable form of the engine settings.
type Config struct {
	// MaxDefinedGroupsPerUser bounds the groups an account may join.
	MaxDefinedGroupsPerUser int `yaml:"maxDefinedGroupsPerUser"`

	// TransactionsAllowedByDefault is the decision when no rule matches.
	TransactionsAllowedByDefault bool `yaml:"transactionsAllowedByDefault"`

	// MasterPublicKey bypasses every rule. Empty disables the bypass.
	MasterPublicKey string `yaml:"masterPublicKey"`

	DefaultRuleBehaviour DefaultRuleBehaviour `yaml:"defaultRuleBehaviour"`

	FeeType FeeType `yaml:"feeType"`

	// ActivationHeight is the first height at which permission
	// transactions are accepted. Zero means always.
	ActivationHeight uint64 `yaml:"activationHeight"`

	// NetworkVersion is the address version byte of the ledger.
	NetworkVersion uint8 `yaml:"networkVersion"`

	// RegisteredTypes lists the "group/type" keys of the transaction
	// types the ledger knows, beyond the two permission types.
	RegisteredTypes []string `yaml:"registeredTypes"`
}

// Default returns the compiled defaults.
func Default() *Config {
	return &Config{
		MaxDefinedGroupsPerUser:      permission.DefaultMaxDefinedGroupsPerUser,
		TransactionsAllowedByDefault: true,
		DefaultRuleBehaviour:         DefaultRulesAll,
		FeeType:                      FeeStatic,
		NetworkVersion:               account.DefaultNetworkVersion,
	}
}

// Load parses YAML over the defaults. Keys missing from data keep their
// default values.
func Load(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads and parses a YAML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Load(data)
}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	if c.MaxDefinedGroupsPerUser < 1 {
		errs = append(errs, fmt.Errorf("maxDefinedGroupsPerUser must be positive, got %d", c.MaxDefinedGroupsPerUser))
	}
	if c.MasterPublicKey != "" {
		if _, err := ledger.ParsePublicKey(c.MasterPublicKey); err != nil {
			errs = append(errs, fmt.Errorf("masterPublicKey: %w", err))
		}
	}
	switch c.DefaultRuleBehaviour {
	case DefaultRulesAll, DefaultRulesUnconfigured:
	default:
		errs = append(errs, fmt.Errorf("defaultRuleBehaviour must be one of: %v", []DefaultRuleBehaviour{DefaultRulesAll, DefaultRulesUnconfigured}))
	}
	switch c.FeeType {
	case FeeStatic, FeeDynamic:
	default:
		errs = append(errs, fmt.Errorf("feeType must be one of: %v", []FeeType{FeeStatic, FeeDynamic}))
	}
	for _, s := range c.RegisteredTypes {
		if _, err := ledger.ParseTypeKey(s); err != nil {
			errs = append(errs, fmt.Errorf("registeredTypes: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Snapshot validates the configuration and freezes it.
func (c *Config) Snapshot() (*Snapshot, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s := &Snapshot{
		maxDefinedGroupsPerUser:      c.MaxDefinedGroupsPerUser,
		transactionsAllowedByDefault: c.TransactionsAllowedByDefault,
		defaultRuleBehaviour:         c.DefaultRuleBehaviour,
		feeType:                      c.FeeType,
		activationHeight:             c.ActivationHeight,
		networkVersion:               c.NetworkVersion,
	}
	if c.MasterPublicKey != "" {
		s.masterPublicKey, _ = ledger.ParsePublicKey(c.MasterPublicKey)
		s.hasMaster = true
	}
	for _, text := range c.RegisteredTypes {
		typ, _ := ledger.ParseTypeKey(text)
		s.registeredTypes = append(s.registeredTypes, typ)
	}
	return s, nil
}
