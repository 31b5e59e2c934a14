package netx

import (
	"net"
	"strings"

	"github.com/crossfin/crossfin/internal/apperr"
)

// Hostnames that are never allowed outbound, regardless of resolution.
var blockedHosts = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
	"0.0.0.0":                  true,
	"169.254.169.254":          true,
}

// privateIPv4Blocks covers every range an egress fetch must never reach:
// loopback, RFC1918, CGNAT, link-local, benchmarking, documentation, and
// everything from multicast up.
var privateIPv4Blocks = mustCIDRs(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
)

var privateIPv6Blocks = mustCIDRs(
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
	"2001:db8::/32",
)

func mustCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// IsPrivateIP reports whether ip falls in any range the SSRF guard blocks.
// IPv4-mapped IPv6 addresses are checked against the IPv4 ranges.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		for _, block := range privateIPv4Blocks {
			if block.Contains(v4) {
				return true
			}
		}
		return false
	}
	for _, block := range privateIPv6Blocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// CheckHost performs the name-level SSRF check: blocked hostnames, the
// .localhost suffix, and literal IPs in private ranges. DNS resolution is a
// separate step so cached verdicts can be reused.
func CheckHost(host string) error {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if h == "" {
		return apperr.New(apperr.BadInput, "empty host")
	}
	if blockedHosts[h] || strings.HasSuffix(h, ".localhost") {
		return apperr.New(apperr.Forbidden, "private-host")
	}
	if ip := net.ParseIP(strings.Trim(h, "[]")); ip != nil {
		if IsPrivateIP(ip) {
			return apperr.New(apperr.Forbidden, "private-host")
		}
	}
	return nil
}
