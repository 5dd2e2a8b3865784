// permissions-node runs the transaction permissions engine over a SQLite
// transaction history and serves the read-only query API.
//
// Usage:
//
//	permissions-node --db history.sqlite [options]
//
// Options:
//
//	--config, -c   YAML configuration (default: built-in defaults)
//	--db           SQLite transaction history (required)
//	--import       JSONC fixture of transactions applied at startup
//	--listen       query API address (default: :4003, empty disables)
//	--advertise    advertise the query API over DNS-SD
//	--instance     DNS-SD instance name (default: random)
//	--genesis      genesis generator public key (hex)
//	--verbose, -v  debug logging
//
// The node replays the history, applies the fixture, prints the state
// digest, and serves until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"
	"github.com/spf13/pflag"

	"github.com/backkem/txpermissions/pkg/config"
	"github.com/backkem/txpermissions/pkg/discovery"
	"github.com/backkem/txpermissions/pkg/history"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
	"github.com/backkem/txpermissions/pkg/permissions"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loggerFactory := logging.NewDefaultLoggerFactory()
	if opts.Verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	}
	log := loggerFactory.NewLogger("node")

	settings, err := loadSettings(opts.ConfigPath)
	if err != nil {
		return err
	}

	var fixture *Fixture
	if opts.ImportPath != "" {
		if fixture, err = ReadFixture(opts.ImportPath); err != nil {
			return err
		}
	}

	store, err := history.OpenSQLite(ctx, history.SQLiteConfig{
		Path:          opts.DBPath,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	chain := &ledger.StaticChain{}
	if chain.Genesis, err = genesisKey(opts.Genesis, fixture); err != nil {
		return err
	}
	if chain.CurrentHeight, err = tipHeight(ctx, store); err != nil {
		return err
	}

	engine, err := permissions.New(permissions.Config{
		Settings:      settings,
		History:       store,
		Chain:         chain,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	if fixture != nil {
		res, err := importFixture(ctx, engine, chain, fixture, log)
		if err != nil {
			return fmt.Errorf("import %s: %w", opts.ImportPath, err)
		}
		log.Infof("imported %s: %d applied, %d already present", opts.ImportPath, res.Applied, res.Skipped)
	}

	digest, err := engine.StateDigest()
	if err != nil {
		return err
	}
	fmt.Printf("height %d state %s\n", chain.CurrentHeight, digest)

	if opts.Listen == "" {
		return nil
	}
	return serve(ctx, engine, opts, loggerFactory)
}

func loadSettings(path string) (*config.Snapshot, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return cfg.Snapshot()
}

// genesisKey prefers the flag over the fixture. A missing key leaves the
// genesis bypass disabled.
func genesisKey(flag string, fixture *Fixture) (ledger.PublicKey, error) {
	s := flag
	if s == "" && fixture != nil {
		s = fixture.GenesisPublicKey
	}
	if s == "" {
		return ledger.PublicKey{}, nil
	}
	pk, err := ledger.ParsePublicKey(s)
	if err != nil {
		return ledger.PublicKey{}, fmt.Errorf("genesis: %w", err)
	}
	return pk, nil
}

// tipHeight returns the highest block holding a permission transaction.
func tipHeight(ctx context.Context, h ledger.History) (uint64, error) {
	var tip uint64
	for _, typ := range []ledger.TypeKey{permission.SetGroupPermissionsType, permission.SetUserPermissionsType} {
		err := h.Scan(ctx, typ, func(tx *ledger.Transaction) error {
			if tx.Position.Height > tip {
				tip = tx.Position.Height
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return tip, nil
}

func serve(ctx context.Context, engine *permissions.Engine, opts *Options, loggerFactory logging.LoggerFactory) error {
	log := loggerFactory.NewLogger("node")

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           engine.QueryHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if opts.Advertise {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{
			Port:          ln.Addr().(*net.TCPAddr).Port,
			LoggerFactory: loggerFactory,
		})
		if err := adv.Start(opts.Instance, discovery.NewServiceTXT("/")); err != nil {
			ln.Close()
			return err
		}
		defer adv.Close()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Infof("query API listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
