package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// DefaultListen is the default query API address.
const DefaultListen = ":4003"

// Options holds the command-line flags.
type Options struct {
	// ConfigPath is the YAML configuration. Empty uses the defaults.
	ConfigPath string

	// DBPath is the SQLite history database. Required.
	DBPath string

	// ImportPath is a JSONC fixture of transactions applied at startup.
	ImportPath string

	// Listen is the query API address. Empty disables the API.
	Listen string

	// Advertise publishes the query API over DNS-SD.
	Advertise bool

	// Instance is the DNS-SD instance name. Empty picks a random one.
	Instance string

	// Genesis is the hex generator key of the genesis block.
	Genesis string

	Verbose bool
}

var errDBRequired = errors.New("--db is required")

// parseFlags parses args (without the program name). It returns
// pflag.ErrHelp when help was requested.
func parseFlags(args []string, output io.Writer) (*Options, error) {
	o := &Options{}

	fs := pflag.NewFlagSet("permissions-node", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVarP(&o.ConfigPath, "config", "c", "", "YAML configuration file (default: built-in defaults)")
	fs.StringVar(&o.DBPath, "db", "", "SQLite transaction history database")
	fs.StringVar(&o.ImportPath, "import", "", "JSONC fixture of transactions to apply at startup")
	fs.StringVar(&o.Listen, "listen", DefaultListen, "query API listen address (empty disables the API)")
	fs.BoolVar(&o.Advertise, "advertise", false, "advertise the query API over DNS-SD")
	fs.StringVar(&o.Instance, "instance", "", "DNS-SD instance name (default: random)")
	fs.StringVar(&o.Genesis, "genesis", "", "genesis generator public key (hex)")
	fs.BoolVarP(&o.Verbose, "verbose", "v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: permissions-node --db history.sqlite [options]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.DBPath == "" {
		return nil, errDBRequired
	}
	if o.Advertise && o.Listen == "" {
		return nil, errors.New("--advertise needs --listen")
	}
	return o, nil
}
