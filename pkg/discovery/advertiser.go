package discovery

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// MDNSServer is a running mDNS registration.
type MDNSServer interface {
	Shutdown()
}

// MDNSServerFactory creates mDNS registrations. Tests substitute a fake.
type MDNSServerFactory interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

type zeroconfServerFactory struct{}

func (zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Port is the query API port. Default: DefaultPort.
	Port int

	// Interfaces to advertise on. Nil means all.
	Interfaces []net.Interface

	// ServerFactory creates registrations. Default: grandcat/zeroconf.
	ServerFactory MDNSServerFactory

	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes the query endpoint of this node.
//
// Thread Safety: All methods are safe for concurrent use.
type Advertiser struct {
	config  AdvertiserConfig
	factory MDNSServerFactory
	log     logging.LeveledLogger

	mu       sync.Mutex
	server   MDNSServer
	instance string
	closed   bool
}

// NewAdvertiser creates an Advertiser. Nothing is published until Start.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.Port <= 0 || config.Port > 65535 {
		config.Port = DefaultPort
	}
	factory := config.ServerFactory
	if factory == nil {
		factory = zeroconfServerFactory{}
	}

	a := &Advertiser{
		config:  config,
		factory: factory,
	}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("discovery")
	}
	return a
}

// Start registers the service. An empty instance name is replaced by a
// random 16-hex-digit name.
func (a *Advertiser) Start(instance string, txt ServiceTXT) error {
	if len(instance) > MaxInstanceNameLength {
		return ErrInvalidInstanceName
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		return ErrAlreadyStarted
	}

	if instance == "" {
		var err error
		if instance, err = randomInstanceName(); err != nil {
			return fmt.Errorf("advertiser: instance name: %w", err)
		}
	}

	records := txt.Encode()
	if a.log != nil {
		a.log.Debugf("Registering mDNS service: instance=%s service=%s port=%d", instance, Service, a.config.Port)
		a.log.Tracef("TXT records: %v", records)
	}

	server, err := a.factory.Register(instance, Service, DefaultDomain, a.config.Port, records, a.config.Interfaces)
	if err != nil {
		return fmt.Errorf("advertiser: mDNS registration failed: %w", err)
	}
	a.server = server
	a.instance = instance

	if a.log != nil {
		a.log.Infof("Advertising %s as %q on port %d", Service, instance, a.config.Port)
	}
	return nil
}

// Stop withdraws the registration.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server == nil {
		return ErrNotStarted
	}
	a.stopLocked()
	return nil
}

func (a *Advertiser) stopLocked() {
	a.server.Shutdown()
	a.server = nil
	a.instance = ""
}

// Close withdraws any registration and rejects further use.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		a.stopLocked()
	}
	a.closed = true
	return nil
}

// IsAdvertising reports whether a registration is active.
func (a *Advertiser) IsAdvertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// InstanceName returns the active instance name, or "".
func (a *Advertiser) InstanceName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instance
}

// Run starts advertising and closes the advertiser when ctx is done.
func (a *Advertiser) Run(ctx context.Context, instance string, txt ServiceTXT) error {
	if err := a.Start(instance, txt); err != nil {
		return err
	}
	<-ctx.Done()
	_ = a.Close()
	return nil
}

func randomInstanceName() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016X", binary.BigEndian.Uint64(buf[:])), nil
}
