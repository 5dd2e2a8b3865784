package discovery

import (
	"net"
	"sort"
)

// SortIPsByPreference returns a copy of ips ordered for dialing: IPv4
// private and public first since the query API is plain HTTP, then global
// IPv6, ULA, link-local, loopback.
func SortIPsByPreference(ips []net.IP) []net.IP {
	if len(ips) <= 1 {
		return ips
	}

	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})
	return sorted
}

// ipPriority ranks an address; lower is better.
func ipPriority(ip net.IP) int {
	ip = ip.To16()
	if ip == nil {
		return 99
	}

	switch {
	case ip.IsLoopback():
		return 80
	case ip.IsMulticast():
		return 90
	case ip.To4() != nil:
		return 0
	case ip.IsGlobalUnicast() && !isUniqueLocal(ip):
		return 10
	case isUniqueLocal(ip):
		return 11
	case ip.IsLinkLocalUnicast():
		// Needs a zone to dial.
		return 12
	}
	return 20
}

// isUniqueLocal reports fc00::/7.
func isUniqueLocal(ip net.IP) bool {
	ip = ip.To16()
	if ip == nil || ip.To4() != nil {
		return false
	}
	return ip[0]&0xfe == 0xfc
}
