package resolver

import (
	"errors"
	"sync"
	"testing"

	"github.com/pion/logging"

	"github.com/backkem/txpermissions/pkg/account"
	"github.com/backkem/txpermissions/pkg/cache"
	"github.com/backkem/txpermissions/pkg/config"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
)

var (
	sender  = ledger.MustParsePublicKey("03287bfebba4c7881a0509717e71b34b63f31e40021c321f89ae04f84be6d6ac37")
	master  = ledger.MustParsePublicKey("02b8e6f1a4e3c0d9a2f5e8b1c4d7a0e3f6b9c2d5e8a1b4c7d0e3f6a9b2c5d8e1f4")
	genesis = ledger.MustParsePublicKey("03a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90")

	// T is the transaction type under test: type 1 of group 9002.
	T = ledger.TypeKey{Type: 1, Group: 9002}
)

// countingChain counts genesis lookups and fails the first failures of them.
type countingChain struct {
	mu       sync.Mutex
	height   uint64
	lookups  int
	failures int
}

func (c *countingChain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *countingChain) GenesisPublicKey() (ledger.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.lookups <= c.failures {
		return ledger.PublicKey{}, ledger.ErrGenesisUnknown
	}
	return genesis, nil
}

type fixture struct {
	chain    *countingChain
	groups   *cache.Memory
	accounts *account.Memory
	resolver *Resolver
}

func newFixture(t *testing.T, modify func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Default()
	if modify != nil {
		modify(cfg)
	}
	settings, err := cfg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	f := &fixture{
		chain:    &countingChain{height: 50},
		groups:   cache.NewMemory(),
		accounts: account.NewMemory(account.MemoryConfig{}),
	}
	f.resolver, err = New(Config{
		Settings:      settings,
		Chain:         f.chain,
		Groups:        f.groups,
		Accounts:      f.accounts,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func (f *fixture) setUser(pk ledger.PublicKey, up *permission.UserPermissions) {
	acc := f.accounts.FindByPublicKey(pk)
	acc.SetAttribute(permission.AttributeKey, up)
	f.accounts.Reindex(acc)
}

func txFrom(pk ledger.PublicKey, typ ledger.TypeKey) *ledger.Transaction {
	return &ledger.Transaction{ID: "tx", Type: typ, SenderPublicKey: pk}
}

func TestNew_RequiredConfig(t *testing.T) {
	full := Config{
		Settings: config.DefaultSnapshot(),
		Chain:    &ledger.StaticChain{},
		Groups:   cache.NewMemory(),
		Accounts: account.NewMemory(account.MemoryConfig{}),
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"settings", func(c *Config) { c.Settings = nil }, ErrSettingsRequired},
		{"chain", func(c *Config) { c.Chain = nil }, ErrChainRequired},
		{"groups", func(c *Config) { c.Groups = nil }, ErrCacheRequired},
		{"accounts", func(c *Config) { c.Accounts = nil }, ErrAccountsRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := full
			tt.modify(&cfg)
			if _, err := New(cfg); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolve_Bypass(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.MasterPublicKey = master.String()
		c.TransactionsAllowedByDefault = false
	})

	if got := f.resolver.Resolve(txFrom(master, T)); !got.Allowed || got.Reason != ReasonMaster {
		t.Errorf("Resolve(master) = %v, want allow (master)", got)
	}
	if got := f.resolver.Resolve(txFrom(genesis, T)); !got.Allowed || got.Reason != ReasonGenesis {
		t.Errorf("Resolve(genesis) = %v, want allow (genesis)", got)
	}
	if f.resolver.Allowed(txFrom(sender, T)) {
		t.Error("Allowed(sender) = true, want false from static flag")
	}

	// A sender explicitly denied is still allowed at height 1.
	f.setUser(sender, &permission.UserPermissions{
		Groups:      []string{},
		Permissions: permission.List{{TypeKey: T, Kind: permission.Deny}},
	})
	f.chain.height = 1
	if got := f.resolver.Resolve(txFrom(sender, T)); !got.Allowed || got.Reason != ReasonHeight {
		t.Errorf("Resolve() at height 1 = %v, want allow (height)", got)
	}
}

func TestResolve_GenesisMemoized(t *testing.T) {
	f := newFixture(t, nil)
	f.chain.failures = 2

	// Failed lookups are not memoized and do not block resolution.
	for i := 0; i < 2; i++ {
		if got := f.resolver.Resolve(txFrom(genesis, T)); got.Reason != ReasonFallback {
			t.Errorf("Resolve() with unknown genesis = %v, want fallback", got)
		}
	}
	for i := 0; i < 3; i++ {
		if got := f.resolver.Resolve(txFrom(genesis, T)); got.Reason != ReasonGenesis {
			t.Errorf("Resolve() = %v, want genesis", got)
		}
	}
	if f.chain.lookups != 3 {
		t.Errorf("genesis looked up %d times, want 3", f.chain.lookups)
	}
}

func TestResolve_AccountBeatsGroup(t *testing.T) {
	f := newFixture(t, nil)
	f.groups.Set(&permission.Group{
		Name: "g1", Priority: 1000, Active: true,
		Permissions: permission.Merge([]ledger.TypeKey{T}, nil),
	})
	f.setUser(sender, &permission.UserPermissions{
		Groups:      []string{"g1"},
		Permissions: permission.Merge(nil, []ledger.TypeKey{T}),
	})

	got := f.resolver.Resolve(txFrom(sender, T))
	if got.Allowed || got.Reason != ReasonAccount {
		t.Errorf("Resolve() = %v, want deny (account)", got)
	}
}

func TestResolve_WorkedExample(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.TransactionsAllowedByDefault = false })
	g1 := &permission.Group{
		Name: "g1", Priority: 1, Active: true, Default: false,
		Permissions: permission.Merge([]ledger.TypeKey{{Type: 1, Group: 9002}}, nil),
	}
	f.groups.Set(g1)
	f.setUser(sender, &permission.UserPermissions{Groups: []string{"g1"}})

	got := f.resolver.Resolve(txFrom(sender, T))
	if !got.Allowed || got.Reason != ReasonGroup || got.Group != "g1" {
		t.Errorf("Resolve() = %v, want allow (group g1)", got)
	}

	g1.Active = false
	f.groups.Set(g1)
	got = f.resolver.Resolve(txFrom(sender, T))
	if got.Allowed || got.Reason != ReasonFallback {
		t.Errorf("Resolve() with inactive g1 = %v, want deny (fallback)", got)
	}
}

func TestResolve_DefaultPriorityIndependentOfInsertion(t *testing.T) {
	low := &permission.Group{
		Name: "low", Priority: 1, Active: true, Default: true,
		Permissions: permission.Merge([]ledger.TypeKey{T}, nil),
	}
	high := &permission.Group{
		Name: "high", Priority: 5, Active: true, Default: true,
		Permissions: permission.Merge(nil, []ledger.TypeKey{T}),
	}

	for _, order := range [][]*permission.Group{{low, high}, {high, low}} {
		f := newFixture(t, nil)
		for _, g := range order {
			f.groups.Set(g)
		}
		got := f.resolver.Resolve(txFrom(sender, T))
		if got.Allowed || got.Reason != ReasonDefaultGroup || got.Group != "high" {
			t.Errorf("Resolve() inserting %s first = %v, want deny (default-group high)", order[0].Name, got)
		}
	}
}

func TestResolve_TieBreakByName(t *testing.T) {
	f := newFixture(t, nil)
	f.groups.Set(&permission.Group{
		Name: "b", Priority: 3, Active: true,
		Permissions: permission.Merge([]ledger.TypeKey{T}, nil),
	})
	f.groups.Set(&permission.Group{
		Name: "a", Priority: 3, Active: true,
		Permissions: permission.Merge(nil, []ledger.TypeKey{T}),
	})
	f.setUser(sender, &permission.UserPermissions{Groups: []string{"b", "a"}})

	got := f.resolver.Resolve(txFrom(sender, T))
	if got.Allowed || got.Group != "a" {
		t.Errorf("Resolve() = %v, want deny (group a)", got)
	}
}

func TestResolve_DanglingAndNonMatchingGroups(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.TransactionsAllowedByDefault = false })
	other := ledger.TypeKey{Type: 2, Group: 9002}
	f.groups.Set(&permission.Group{
		Name: "g2", Priority: 9, Active: true,
		Permissions: permission.Merge([]ledger.TypeKey{other}, nil),
	})
	f.groups.Set(&permission.Group{
		Name: "g3", Priority: 1, Active: true,
		Permissions: permission.Merge([]ledger.TypeKey{T}, nil),
	})
	f.setUser(sender, &permission.UserPermissions{Groups: []string{"gone", "g2", "g3"}})

	got := f.resolver.Resolve(txFrom(sender, T))
	if !got.Allowed || got.Group != "g3" {
		t.Errorf("Resolve() = %v, want allow (group g3)", got)
	}
}

func TestResolve_DefaultRuleBehaviour(t *testing.T) {
	deny := &permission.Group{
		Name: "defaults", Priority: 1, Active: true, Default: true,
		Permissions: permission.Merge(nil, []ledger.TypeKey{T}),
	}

	tests := []struct {
		behaviour  config.DefaultRuleBehaviour
		configured bool
		want       Reason
	}{
		{config.DefaultRulesAll, false, ReasonDefaultGroup},
		{config.DefaultRulesAll, true, ReasonDefaultGroup},
		{config.DefaultRulesUnconfigured, false, ReasonDefaultGroup},
		{config.DefaultRulesUnconfigured, true, ReasonFallback},
	}
	for _, tt := range tests {
		f := newFixture(t, func(c *config.Config) { c.DefaultRuleBehaviour = tt.behaviour })
		f.groups.Set(deny)
		if tt.configured {
			f.setUser(sender, &permission.UserPermissions{Groups: []string{}})
		}
		if got := f.resolver.Resolve(txFrom(sender, T)); got.Reason != tt.want {
			t.Errorf("%s, configured=%t: Resolve() = %v, want reason %s", tt.behaviour, tt.configured, got, tt.want)
		}
	}
}

func TestResolve_InactiveDefaultIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.groups.Set(&permission.Group{
		Name: "off", Priority: 1, Active: false, Default: true,
		Permissions: permission.Merge(nil, []ledger.TypeKey{T}),
	})

	if got := f.resolver.Resolve(txFrom(sender, T)); !got.Allowed || got.Reason != ReasonFallback {
		t.Errorf("Resolve() = %v, want allow (fallback)", got)
	}
}

func TestResolve_DoesNotCreateAccounts(t *testing.T) {
	f := newFixture(t, nil)
	f.resolver.Resolve(txFrom(sender, T))
	if f.accounts.Len() != 0 {
		t.Errorf("accounts.Len() = %d, want 0", f.accounts.Len())
	}
}

func TestResolve_Concurrent(t *testing.T) {
	f := newFixture(t, nil)
	f.groups.Set(&permission.Group{
		Name: "g1", Priority: 1, Active: true, Default: true,
		Permissions: permission.Merge(nil, []ledger.TypeKey{T}),
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if f.resolver.Allowed(txFrom(sender, T)) {
					t.Error("Allowed() = true, want false")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestResolve_GenesisConcurrentLookupOnce(t *testing.T) {
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if got := f.resolver.Resolve(txFrom(genesis, T)); got.Reason != ReasonGenesis {
					t.Errorf("Resolve() = %v, want genesis", got)
					return
				}
			}
		}()
	}
	wg.Wait()

	if f.chain.lookups != 1 {
		t.Errorf("genesis looked up %d times, want 1", f.chain.lookups)
	}
}

func TestResult_String(t *testing.T) {
	tests := []struct {
		res  Result
		want string
	}{
		{Result{Allowed: true, Reason: ReasonMaster}, "allow (master)"},
		{Result{Allowed: false, Reason: ReasonGroup, Group: "g1"}, "deny (group g1)"},
		{Result{Reason: Reason(42)}, "deny (Reason(42))"},
	}
	for _, tt := range tests {
		if got := tt.res.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
