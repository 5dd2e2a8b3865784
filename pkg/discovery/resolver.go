package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// Default timeouts.
const (
	DefaultBrowseTimeout = 10 * time.Second
	DefaultLookupTimeout = 5 * time.Second
)

// Endpoint is a discovered query endpoint.
type Endpoint struct {
	InstanceName string
	HostName     string
	Port         int

	// IPs are sorted by SortIPsByPreference.
	IPs []net.IP

	TXT ServiceTXT
}

// URL returns the base URL of the endpoint using its preferred address.
// Returns "" if no address was resolved.
func (e *Endpoint) URL() string {
	if len(e.IPs) == 0 {
		return ""
	}
	host := net.JoinHostPort(e.IPs[0].String(), fmt.Sprint(e.Port))
	path := e.TXT.Path
	if path == "/" {
		path = ""
	}
	return "http://" + host + path
}

// MDNSResolver browses mDNS. Implementations block until done and never
// close entries. Tests substitute MockMDNSResolver.
type MDNSResolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver adapts grandcat/zeroconf, which returns immediately and
// owns the channel it is given, to the blocking MDNSResolver contract.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	in := make(chan *zeroconf.ServiceEntry)
	if err := z.resolver.Browse(ctx, service, domain, in); err != nil {
		return err
	}
	return forward(ctx, in, entries)
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	in := make(chan *zeroconf.ServiceEntry)
	if err := z.resolver.Lookup(ctx, instance, service, domain, in); err != nil {
		return err
	}
	return forward(ctx, in, entries)
}

func forward(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- *zeroconf.ServiceEntry) error {
	for {
		select {
		case e, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// MDNSResolver defaults to grandcat/zeroconf.
	MDNSResolver MDNSResolver

	BrowseTimeout time.Duration
	LookupTimeout time.Duration

	LoggerFactory logging.LoggerFactory
}

// Resolver finds query endpoints on the local network.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewResolver creates a Resolver.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, fmt.Errorf("resolver: %w", err)
		}
		resolver = &zeroconfResolver{resolver: zr}
	}
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	r := &Resolver{
		config:   config,
		resolver: resolver,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("discovery")
	}
	return r, nil
}

// Browse streams endpoints until ctx is done or the browse timeout
// expires. Entries with a malformed TXT record are skipped; incompatible
// endpoints are still reported, callers check TXT.Compatible.
func (r *Resolver) Browse(ctx context.Context) <-chan Endpoint {
	ctx, cancel := r.withTimeout(ctx, r.config.BrowseTimeout)

	results := make(chan Endpoint)
	entries := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(entries)
		if err := r.resolver.Browse(ctx, Service, DefaultDomain, entries); err != nil && r.log != nil {
			r.log.Debugf("browse: %v", err)
		}
	}()

	go func() {
		defer cancel()
		defer close(results)
		for entry := range entries {
			ep, ok := r.endpoint(entry)
			if !ok {
				continue
			}
			select {
			case results <- ep:
			case <-ctx.Done():
				// Drain so the browse goroutine can exit.
				for range entries {
				}
				return
			}
		}
	}()

	return results
}

// Lookup resolves one instance by name.
func (r *Resolver) Lookup(ctx context.Context, instance string) (*Endpoint, error) {
	ctx, cancel := r.withTimeout(ctx, r.config.LookupTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.resolver.Lookup(ctx, instance, Service, DefaultDomain, entries)
	}()

	for {
		select {
		case entry := <-entries:
			if ep, ok := r.endpoint(entry); ok {
				cancel()
				<-done
				return &ep, nil
			}
		case <-done:
			select {
			case entry := <-entries:
				if ep, ok := r.endpoint(entry); ok {
					return &ep, nil
				}
			default:
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, ErrServiceNotFound
		}
	}
}

func (r *Resolver) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (r *Resolver) endpoint(entry *zeroconf.ServiceEntry) (Endpoint, bool) {
	if entry == nil {
		return Endpoint{}, false
	}
	txt, err := ParseServiceTXT(entry.Text)
	if err != nil {
		if r.log != nil {
			r.log.Debugf("skipping %q: %v", entry.Instance, err)
		}
		return Endpoint{}, false
	}

	ips := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)

	return Endpoint{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          SortIPsByPreference(ips),
		TXT:          txt,
	}, true
}
