package permissions

import (
	"context"
	"errors"
	"testing"

	"github.com/pion/logging"

	"github.com/backkem/txpermissions/pkg/admission"
	"github.com/backkem/txpermissions/pkg/config"
	"github.com/backkem/txpermissions/pkg/handler"
	"github.com/backkem/txpermissions/pkg/history"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
	"github.com/backkem/txpermissions/pkg/resolver"
	"github.com/backkem/txpermissions/pkg/statehash"
	"github.com/backkem/txpermissions/pkg/wire"
)

var (
	master  = ledger.MustParsePublicKey("03287bfebba4c7881a0509717e71b34b63f31e40021c321f89ae04f84be6d6ac37")
	genesis = ledger.MustParsePublicKey("02d0f5a1b3c5e7f9a2b4c6d8e0f1a3b5c7d9e1f2a4b6c8d0e2f3a5b7c9d1e3f5a7")
	member  = ledger.MustParsePublicKey("02b8e6f1a4e3c0d9a2f5e8b1c4d7a0e3f6b9c2d5e8a1b4c7d0e3f6a9b2c5d8e1f4")

	transfer = ledger.TypeKey{Group: 1, Type: 0}
	vote     = ledger.TypeKey{Group: 1, Type: 3}
)

type fixture struct {
	history *history.Memory
	chain   *ledger.StaticChain
	engine  *Engine
}

func newFixture(t *testing.T, hist *history.Memory) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.TransactionsAllowedByDefault = false
	cfg.MasterPublicKey = master.String()
	cfg.RegisteredTypes = []string{transfer.String(), vote.String()}
	settings, err := cfg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if hist == nil {
		hist = history.NewMemory()
	}
	f := &fixture{
		history: hist,
		chain:   &ledger.StaticChain{CurrentHeight: 10, Genesis: genesis},
	}
	f.engine, err = New(Config{
		Settings:      settings,
		History:       f.history,
		Chain:         f.chain,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

// confirm admits tx to the next block and applies it.
func (f *fixture) confirm(t *testing.T, tx *ledger.Transaction) {
	t.Helper()

	f.chain.CurrentHeight++
	tx.Position = ledger.Position{Height: f.chain.CurrentHeight}
	if err := f.engine.AdmitToBlock(tx); err != nil {
		t.Fatalf("AdmitToBlock(%s) error = %v", tx.ID, err)
	}
	if err := f.engine.Apply(context.Background(), tx); err != nil {
		t.Fatalf("Apply(%s) error = %v", tx.ID, err)
	}
}

func (f *fixture) digest(t *testing.T) statehash.Digest {
	t.Helper()
	d, err := f.engine.StateDigest()
	if err != nil {
		t.Fatalf("StateDigest() error = %v", err)
	}
	return d
}

func groupTx(id string, from ledger.PublicKey, a *wire.SetGroupPermissions) *ledger.Transaction {
	return &ledger.Transaction{
		ID:              id,
		Type:            permission.SetGroupPermissionsType,
		Version:         permission.Version,
		SenderPublicKey: from,
		Asset:           a,
	}
}

func userTx(id string, from ledger.PublicKey, a *wire.SetUserPermissions) *ledger.Transaction {
	return &ledger.Transaction{
		ID:              id,
		Type:            permission.SetUserPermissionsType,
		Version:         permission.Version,
		SenderPublicKey: from,
		Asset:           a,
	}
}

func plainTx(id string, from ledger.PublicKey, typ ledger.TypeKey) *ledger.Transaction {
	return &ledger.Transaction{ID: id, Type: typ, SenderPublicKey: from}
}

func TestNew_RequiredConfig(t *testing.T) {
	settings := config.DefaultSnapshot()
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"settings", Config{History: history.NewMemory(), Chain: &ledger.StaticChain{}}, ErrSettingsRequired},
		{"history", Config{Settings: settings, Chain: &ledger.StaticChain{}}, ErrHistoryRequired},
		{"chain", Config{Settings: settings, History: history.NewMemory()}, ErrChainRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEngine_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)
	tx := plainTx("t1", master, transfer)

	if got := f.engine.State(); got != StateInitialized {
		t.Errorf("State() = %s, want %s", got, StateInitialized)
	}
	if err := f.engine.AdmitToBlock(tx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("AdmitToBlock() before Start error = %v, want %v", err, ErrNotStarted)
	}
	if err := f.engine.AdmitToPool(tx, ledger.PendingSet{}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("AdmitToPool() before Start error = %v, want %v", err, ErrNotStarted)
	}
	if err := f.engine.Apply(context.Background(), tx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Apply() before Start error = %v, want %v", err, ErrNotStarted)
	}
	if err := f.engine.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop() before Start error = %v, want %v", err, ErrNotStarted)
	}

	f.start(t)
	if got := f.engine.State(); got != StateRunning {
		t.Errorf("State() = %s, want %s", got, StateRunning)
	}
	if err := f.engine.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyStarted)
	}
	if err := f.engine.AdmitToBlock(tx); err != nil {
		t.Errorf("AdmitToBlock() error = %v", err)
	}

	if err := f.engine.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := f.engine.Stop(); !errors.Is(err, ErrAlreadyStopped) {
		t.Errorf("second Stop() error = %v, want %v", err, ErrAlreadyStopped)
	}
	if err := f.engine.Start(context.Background()); !errors.Is(err, ErrAlreadyStopped) {
		t.Errorf("Start() after Stop error = %v, want %v", err, ErrAlreadyStopped)
	}
	if err := f.engine.AdmitToBlock(tx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("AdmitToBlock() after Stop error = %v, want %v", err, ErrNotStarted)
	}
}

func TestEngine_AdmissionFlow(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	// Nobody but the master and the genesis generator may act yet.
	if err := f.engine.AdmitToBlock(plainTx("t0", member, transfer)); !errors.Is(err, admission.ErrForbidden) {
		t.Fatalf("AdmitToBlock(member) error = %v, want %v", err, admission.ErrForbidden)
	}
	if err := f.engine.AdmitToBlock(plainTx("t0g", genesis, vote)); err != nil {
		t.Errorf("AdmitToBlock(genesis) error = %v", err)
	}

	f.confirm(t, groupTx("g1", master, &wire.SetGroupPermissions{
		Name: "traders", Priority: 10, Active: true,
		Allow: []ledger.TypeKey{transfer},
	}))
	f.confirm(t, userTx("u1", master, &wire.SetUserPermissions{
		PublicKey:  member,
		GroupNames: []string{"traders"},
	}))

	if err := f.engine.AdmitToBlock(plainTx("t1", member, transfer)); err != nil {
		t.Errorf("AdmitToBlock(member transfer) error = %v", err)
	}

	err := f.engine.AdmitToBlock(plainTx("t2", member, vote))
	var forbidden *admission.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("AdmitToBlock(member vote) error = %v, want *ForbiddenError", err)
	}
	if forbidden.Result.Reason != resolver.ReasonFallback {
		t.Errorf("Reason = %s, want %s", forbidden.Result.Reason, resolver.ReasonFallback)
	}

	if got := f.engine.Resolve(plainTx("t3", member, transfer)); !got.Allowed || got.Group != "traders" {
		t.Errorf("Resolve() = %s", got)
	}
	if f.history.Len() != 2 {
		t.Errorf("history.Len() = %d, want 2", f.history.Len())
	}
}

func TestEngine_PoolDedup(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	pending := groupTx("p1", master, &wire.SetGroupPermissions{Name: "ops", Active: true})
	next := groupTx("p2", master, &wire.SetGroupPermissions{Name: "ops", Priority: 2})

	if err := f.engine.AdmitToPool(pending, ledger.PendingSet{}); err != nil {
		t.Fatalf("AdmitToPool(p1) error = %v", err)
	}
	err := f.engine.AdmitToPool(next, ledger.PendingSet{pending})
	var conflict *handler.PendingConflictError
	if !errors.As(err, &conflict) || conflict.PendingID != "p1" {
		t.Errorf("AdmitToPool(p2) error = %v, want PendingConflictError for p1", err)
	}
}

func TestEngine_ApplyRevertRestoresDigest(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	f.confirm(t, groupTx("g1", master, &wire.SetGroupPermissions{
		Name: "ops", Priority: 1, Active: true, Allow: []ledger.TypeKey{transfer},
	}))
	before := f.digest(t)

	txs := []*ledger.Transaction{
		groupTx("g2", master, &wire.SetGroupPermissions{Name: "ops", Priority: 5, Deny: []ledger.TypeKey{vote}}),
		userTx("u1", master, &wire.SetUserPermissions{PublicKey: member, GroupNames: []string{"ops"}}),
	}
	for _, tx := range txs {
		f.confirm(t, tx)
	}
	if f.digest(t) == before {
		t.Fatal("applying should change the digest")
	}

	for i := len(txs) - 1; i >= 0; i-- {
		if err := f.engine.Revert(context.Background(), txs[i]); err != nil {
			t.Fatalf("Revert(%s) error = %v", txs[i].ID, err)
		}
	}
	if f.digest(t) != before {
		t.Error("reverting should restore the digest")
	}
	if f.history.Len() != 1 {
		t.Errorf("history.Len() = %d, want 1", f.history.Len())
	}
}

func TestEngine_ApplyFailureDropsHistory(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	bad := groupTx("bad", master, nil)
	bad.Asset = &wire.SetUserPermissions{PublicKey: member}
	bad.Position = ledger.Position{Height: 11}
	if err := f.engine.Apply(context.Background(), bad); !errors.Is(err, handler.ErrWrongAsset) {
		t.Fatalf("Apply() error = %v, want %v", err, handler.ErrWrongAsset)
	}
	if f.history.Len() != 0 {
		t.Errorf("history.Len() = %d, want 0", f.history.Len())
	}
}

func TestEngine_RevertKeepsHistoryAndStateInStep(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	g1 := groupTx("g1", master, &wire.SetGroupPermissions{Name: "ops", Active: true})
	f.confirm(t, g1)
	before := f.digest(t)

	// Unknown to history: nothing is reverted.
	ghost := *g1
	ghost.ID = "ghost"
	if err := f.engine.Revert(context.Background(), &ghost); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("Revert(ghost) error = %v, want %v", err, history.ErrNotFound)
	}
	if f.digest(t) != before {
		t.Error("a failed history removal should leave the state alone")
	}

	// Handler failure: the transaction goes back into history.
	broken := *g1
	broken.Asset = &wire.SetUserPermissions{PublicKey: member}
	if err := f.engine.Revert(context.Background(), &broken); !errors.Is(err, handler.ErrWrongAsset) {
		t.Fatalf("Revert(broken) error = %v, want %v", err, handler.ErrWrongAsset)
	}
	if f.history.Len() != 1 {
		t.Errorf("history.Len() = %d, want 1", f.history.Len())
	}
	if f.digest(t) != before {
		t.Error("a failed revert should leave the state alone")
	}
}

func TestEngine_ApplyIgnoresOtherTypes(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	tx := plainTx("t1", master, transfer)
	tx.Position = ledger.Position{Height: 11}
	if err := f.engine.Apply(context.Background(), tx); err != nil {
		t.Errorf("Apply() error = %v", err)
	}
	if err := f.engine.Revert(context.Background(), tx); err != nil {
		t.Errorf("Revert() error = %v", err)
	}
	if f.history.Len() != 0 {
		t.Errorf("history.Len() = %d, want 0", f.history.Len())
	}
}

func TestEngine_BootstrapMatchesLiveState(t *testing.T) {
	live := newFixture(t, nil)
	live.start(t)
	live.confirm(t, groupTx("g1", master, &wire.SetGroupPermissions{Name: "ops", Active: true}))
	live.confirm(t, userTx("u1", master, &wire.SetUserPermissions{PublicKey: member, GroupNames: []string{"ops"}}))
	live.confirm(t, groupTx("g2", master, &wire.SetGroupPermissions{Name: "ops", Priority: 3, Default: true}))

	// A second node replays the same history.
	replay := newFixture(t, live.history)
	replay.start(t)

	if live.digest(t) != replay.digest(t) {
		t.Error("bootstrapped state should match the live state")
	}
	g, ok := replay.engine.Groups().Get("ops")
	if !ok || g.Priority != 3 || !g.Default {
		t.Errorf("Groups().Get(ops) = %+v, %v", g, ok)
	}
}

func TestEngine_BootstrapFailure(t *testing.T) {
	hist := history.NewMemory()
	bad := groupTx("bad", master, &wire.SetGroupPermissions{Name: ""})
	bad.Position = ledger.Position{Height: 3}
	if err := hist.Append(context.Background(), bad); err != nil {
		t.Fatal(err)
	}

	f := newFixture(t, hist)
	err := f.engine.Start(context.Background())
	if !errors.Is(err, permission.ErrInvalidGroupName) {
		t.Fatalf("Start() error = %v, want %v", err, permission.ErrInvalidGroupName)
	}
	if f.engine.State() != StateInitialized {
		t.Errorf("State() = %s, want %s", f.engine.State(), StateInitialized)
	}
}

func TestEngine_FeeType(t *testing.T) {
	f := newFixture(t, nil)

	for _, typ := range []ledger.TypeKey{permission.SetGroupPermissionsType, permission.SetUserPermissionsType} {
		if got, ok := f.engine.FeeType(typ); !ok || got != config.FeeStatic {
			t.Errorf("FeeType(%s) = %q, %v", typ, got, ok)
		}
	}
	if _, ok := f.engine.FeeType(transfer); ok {
		t.Errorf("FeeType(%s) ok = true", transfer)
	}
}
