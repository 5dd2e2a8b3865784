package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
)

func newTestResolver(t *testing.T, entries ...*zeroconfEntry) (*Resolver, *MockMDNSResolver) {
	t.Helper()
	mock := NewMockMDNSResolver()
	for _, e := range entries {
		mock.Add(MockService(e.instance, e.port, e.ip, e.txt))
	}
	r, err := NewResolver(ResolverConfig{
		MDNSResolver:  mock,
		BrowseTimeout: time.Second,
		LookupTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r, mock
}

type zeroconfEntry struct {
	instance string
	port     int
	ip       net.IP
	txt      ServiceTXT
}

func TestResolver_Browse(t *testing.T) {
	defer test.CheckRoutines(t)()

	r, mock := newTestResolver(t,
		&zeroconfEntry{"a", 4003, net.ParseIP("192.168.1.10"), NewServiceTXT("")},
		&zeroconfEntry{"b", 4004, net.ParseIP("fd00::1"), ServiceTXT{TypeGroup: 1, Version: 1}},
	)
	bad := MockService("c", 1, net.ParseIP("10.0.0.1"), ServiceTXT{})
	bad.Text = []string{"path=/"}
	mock.Add(bad)

	var got []Endpoint
	for ep := range r.Browse(context.Background()) {
		got = append(got, ep)
	}

	if len(got) != 2 {
		t.Fatalf("Browse() returned %d endpoints, want 2", len(got))
	}
	if got[0].InstanceName != "a" || !got[0].TXT.Compatible() {
		t.Errorf("endpoint a = %+v", got[0])
	}
	if got[0].URL() != "http://192.168.1.10:4003" {
		t.Errorf("URL() = %q", got[0].URL())
	}
	if got[1].TXT.Compatible() {
		t.Errorf("endpoint b should not be compatible: %+v", got[1].TXT)
	}
	if got[1].URL() != "http://[fd00::1]:4004" {
		t.Errorf("URL() = %q", got[1].URL())
	}
}

func TestResolver_BrowseCancel(t *testing.T) {
	defer test.CheckRoutines(t)()

	r, _ := newTestResolver(t,
		&zeroconfEntry{"a", 1, net.ParseIP("10.0.0.1"), NewServiceTXT("")},
		&zeroconfEntry{"b", 2, net.ParseIP("10.0.0.2"), NewServiceTXT("")},
	)

	ctx, cancel := context.WithCancel(context.Background())
	results := r.Browse(ctx)
	<-results
	cancel()
	for range results {
	}
}

func TestResolver_Lookup(t *testing.T) {
	defer test.CheckRoutines(t)()

	r, _ := newTestResolver(t,
		&zeroconfEntry{"a", 4003, net.ParseIP("10.0.0.1"), NewServiceTXT("/perm")},
	)

	ep, err := r.Lookup(context.Background(), "a")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if ep.URL() != "http://10.0.0.1:4003/perm" {
		t.Errorf("URL() = %q", ep.URL())
	}

	if _, err := r.Lookup(context.Background(), "missing"); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("Lookup(missing) error = %v, want %v", err, ErrServiceNotFound)
	}
}

func TestSortIPsByPreference(t *testing.T) {
	ips := []net.IP{
		net.ParseIP("fe80::1"),
		net.ParseIP("::1"),
		net.ParseIP("fd00::1"),
		net.ParseIP("2001:db8::1"),
		net.ParseIP("192.168.0.1"),
	}
	want := []string{"192.168.0.1", "2001:db8::1", "fd00::1", "fe80::1", "::1"}

	got := SortIPsByPreference(ips)
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("SortIPsByPreference()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if ips[0].String() != "fe80::1" {
		t.Error("input should not be modified")
	}
}
