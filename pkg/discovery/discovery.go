// Package discovery advertises and finds permission query endpoints over
// DNS-SD (mDNS).
//
// A node serving the query routes registers one instance of
// _txpermissions._tcp. The TXT record carries the permission type group,
// the asset version and the HTTP path prefix, so a browser can tell which
// rule set a node speaks before connecting.
package discovery

import "errors"

// DNS-SD names.
const (
	// Service is the DNS-SD service type of the query API.
	Service = "_txpermissions._tcp"

	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."

	// DefaultPort is the default query API port.
	DefaultPort = 4003
)

// Sentinel errors.
var (
	ErrClosed           = errors.New("discovery: closed")
	ErrAlreadyStarted   = errors.New("discovery: already started")
	ErrNotStarted       = errors.New("discovery: not started")
	ErrServiceNotFound  = errors.New("discovery: service not found")
	ErrTimeout          = errors.New("discovery: operation timed out")
	ErrInvalidTXTRecord = errors.New("discovery: invalid TXT record format")

	// ErrInvalidInstanceName is returned for empty or over-long instance
	// names. DNS labels hold at most 63 bytes.
	ErrInvalidInstanceName = errors.New("discovery: invalid instance name")
)

// MaxInstanceNameLength is the DNS label limit.
const MaxInstanceNameLength = 63
