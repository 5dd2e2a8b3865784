// Package integration provides end-to-end tests across the engine, the
// SQLite history, the query API and discovery.
package integration

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pion/logging"

	"github.com/backkem/txpermissions/pkg/config"
	"github.com/backkem/txpermissions/pkg/history"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permissions"
)

// Node is one engine over a shared history with its query API served
// on a loopback listener.
type Node struct {
	Engine *permissions.Engine
	Chain  *ledger.StaticChain
	Server *httptest.Server
}

// TestPair holds a writer node that applies blocks and a replica that
// bootstraps from the same SQLite database.
//
// Example usage:
//
//	pair := NewTestPair(t, DefaultTestPairConfig())
//	defer pair.Close()
//	pair.Confirm(tx)
//	replica := pair.StartReplica()
type TestPair struct {
	Writer *Node
	Store  *history.SQLite

	t             *testing.T
	ctx           context.Context
	cancel        context.CancelFunc
	settings      *config.Snapshot
	genesis       ledger.PublicKey
	loggerFactory logging.LoggerFactory
	nodes         []*Node
}

// TestPairConfig configures the pair.
type TestPairConfig struct {
	// Config is the engine configuration. Default: config.Default().
	Config *config.Config

	// Genesis is the genesis generator key.
	Genesis ledger.PublicKey

	// LoggerFactory defaults to logging.NewDefaultLoggerFactory().
	LoggerFactory logging.LoggerFactory
}

// DefaultTestPairConfig returns a closed-by-default configuration.
func DefaultTestPairConfig() TestPairConfig {
	cfg := config.Default()
	cfg.TransactionsAllowedByDefault = false
	return TestPairConfig{Config: cfg}
}

// NewTestPair opens a fresh database and starts the writer.
func NewTestPair(t *testing.T, cfg TestPairConfig) *TestPair {
	t.Helper()

	if cfg.Config == nil {
		cfg.Config = config.Default()
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	settings, err := cfg.Config.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	store, err := history.OpenSQLite(ctx, history.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "history.sqlite"),
		PoolSize:      4,
		LoggerFactory: cfg.LoggerFactory,
	})
	if err != nil {
		cancel()
		t.Fatalf("OpenSQLite() error = %v", err)
	}

	p := &TestPair{
		Store:         store,
		t:             t,
		ctx:           ctx,
		cancel:        cancel,
		settings:      settings,
		genesis:       cfg.Genesis,
		loggerFactory: cfg.LoggerFactory,
	}
	p.Writer = p.startNode(0)
	return p
}

func (p *TestPair) startNode(height uint64) *Node {
	p.t.Helper()

	chain := &ledger.StaticChain{CurrentHeight: height, Genesis: p.genesis}
	engine, err := permissions.New(permissions.Config{
		Settings:      p.settings,
		History:       p.Store,
		Chain:         chain,
		LoggerFactory: p.loggerFactory,
	})
	if err != nil {
		p.t.Fatalf("permissions.New() error = %v", err)
	}
	if err := engine.Start(p.ctx); err != nil {
		p.t.Fatalf("Start() error = %v", err)
	}

	n := &Node{
		Engine: engine,
		Chain:  chain,
		Server: httptest.NewServer(engine.QueryHandler()),
	}
	p.nodes = append(p.nodes, n)
	return n
}

// StartReplica starts a node that replays the writer's history.
func (p *TestPair) StartReplica() *Node {
	p.t.Helper()
	return p.startNode(p.Writer.Chain.CurrentHeight)
}

// Confirm admits tx into the writer's next block and applies it.
func (p *TestPair) Confirm(tx *ledger.Transaction) {
	p.t.Helper()

	w := p.Writer
	tx.Position = ledger.Position{Height: w.Chain.CurrentHeight + 1}
	if err := w.Engine.AdmitToBlock(tx); err != nil {
		p.t.Fatalf("AdmitToBlock(%s) error = %v", tx.ID, err)
	}
	if err := w.Engine.Apply(p.ctx, tx); err != nil {
		p.t.Fatalf("Apply(%s) error = %v", tx.ID, err)
	}
	w.Chain.CurrentHeight = tx.Position.Height
}

// Rollback reverts the writer's tip block holding tx.
func (p *TestPair) Rollback(tx *ledger.Transaction) {
	p.t.Helper()

	w := p.Writer
	if err := w.Engine.Revert(p.ctx, tx); err != nil {
		p.t.Fatalf("Revert(%s) error = %v", tx.ID, err)
	}
	w.Chain.CurrentHeight = tx.Position.Height - 1
}

// Close stops every node and closes the database.
func (p *TestPair) Close() {
	for _, n := range p.nodes {
		n.Server.Close()
		_ = n.Engine.Stop()
	}
	p.cancel()
	if err := p.Store.Close(); err != nil {
		p.t.Errorf("Store.Close() error = %v", err)
	}
}
