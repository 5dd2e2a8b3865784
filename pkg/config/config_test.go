package config

import (
	"strings"
	"testing"

	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
)

const master = "03287bfebba4c7881a0509717e71b34b63f31e40021c321f89ae04f84be6d6ac37"

func TestDefault(t *testing.T) {
	s := DefaultSnapshot()

	if s.MaxDefinedGroupsPerUser() != 20 {
		t.Errorf("MaxDefinedGroupsPerUser() = %d, want 20", s.MaxDefinedGroupsPerUser())
	}
	if !s.TransactionsAllowedByDefault() {
		t.Error("TransactionsAllowedByDefault() = false, want true")
	}
	if _, ok := s.MasterPublicKey(); ok {
		t.Error("default snapshot should have no master key")
	}
	if s.DefaultRuleBehaviour() != DefaultRulesAll {
		t.Errorf("DefaultRuleBehaviour() = %q, want %q", s.DefaultRuleBehaviour(), DefaultRulesAll)
	}
	if s.FeeType() != FeeStatic {
		t.Errorf("FeeType() = %q, want %q", s.FeeType(), FeeStatic)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	data := []byte(`
maxDefinedGroupsPerUser: 5
transactionsAllowedByDefault: false
masterPublicKey: ` + master + `
defaultRuleBehaviour: unconfigured
activationHeight: 100
registeredTypes:
  - "1/0"
  - "1/6"
`)
	cfg, err := Load(data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s, err := cfg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if s.MaxDefinedGroupsPerUser() != 5 {
		t.Errorf("MaxDefinedGroupsPerUser() = %d, want 5", s.MaxDefinedGroupsPerUser())
	}
	if s.TransactionsAllowedByDefault() {
		t.Error("TransactionsAllowedByDefault() = true, want false")
	}
	pk, ok := s.MasterPublicKey()
	if !ok || pk.String() != master {
		t.Errorf("MasterPublicKey() = %v, %v", pk, ok)
	}
	if s.DefaultRuleBehaviour() != DefaultRulesUnconfigured {
		t.Errorf("DefaultRuleBehaviour() = %q", s.DefaultRuleBehaviour())
	}
	if s.ActivationHeight() != 100 {
		t.Errorf("ActivationHeight() = %d, want 100", s.ActivationHeight())
	}
	// Untouched keys keep their defaults.
	if s.FeeType() != FeeStatic {
		t.Errorf("FeeType() = %q, want %q", s.FeeType(), FeeStatic)
	}

	catalog := s.Catalog()
	for _, typ := range []ledger.TypeKey{
		{Group: 1, Type: 0},
		{Group: 1, Type: 6},
		permission.SetGroupPermissionsType,
		permission.SetUserPermissionsType,
	} {
		if !catalog.Exists(typ) {
			t.Errorf("Catalog().Exists(%s) = false, want true", typ)
		}
	}
	if catalog.Exists(ledger.TypeKey{Group: 1, Type: 7}) {
		t.Error("Catalog() should not contain unregistered types")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"max groups", func(c *Config) { c.MaxDefinedGroupsPerUser = 0 }, "maxDefinedGroupsPerUser"},
		{"master key", func(c *Config) { c.MasterPublicKey = "zz" }, "masterPublicKey"},
		{"behaviour", func(c *Config) { c.DefaultRuleBehaviour = "some" }, "defaultRuleBehaviour"},
		{"fee type", func(c *Config) { c.FeeType = "free" }, "feeType"},
		{"registered types", func(c *Config) { c.RegisteredTypes = []string{"1-0"} }, "registeredTypes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
			if _, err := cfg.Snapshot(); err == nil {
				t.Error("Snapshot() should fail on invalid config")
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load([]byte("maxDefinedGroupsPerUser: [")); err == nil {
		t.Error("Load() with malformed YAML should fail")
	}
}

func TestConfigurations(t *testing.T) {
	c := DefaultSnapshot().Configurations()

	if c.TypeGroup != 9002 || c.Version != 2 {
		t.Errorf("TypeGroup, Version = %d, %d; want 9002, 2", c.TypeGroup, c.Version)
	}
	if c.GroupName.MinLength != 1 || c.GroupName.MaxLength != 40 {
		t.Errorf("GroupName = %+v", c.GroupName)
	}
	if c.GroupPriority.Min != 0 || c.GroupPriority.Max != 1000 {
		t.Errorf("GroupPriority = %+v", c.GroupPriority)
	}
	if c.MasterPublicKey != "" {
		t.Errorf("MasterPublicKey = %q, want empty", c.MasterPublicKey)
	}
}
