package middleware

import (
	"fmt"
	"net"
	"strings"
)

// TrustedProxies is a set of proxy addresses allowed to set X-Forwarded-For
type TrustedProxies struct {
	networks []*net.IPNet
}

// ParseTrustedProxies accepts plain IPs and CIDR ranges
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	proxies := &TrustedProxies{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 8 * net.IPv4len
			if ip.To4() == nil {
				bits = 8 * net.IPv6len
			}
			entry = fmt.Sprintf("%s/%d", entry, bits)
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		proxies.networks = append(proxies.networks, network)
	}
	return proxies, nil
}

// Contains reports whether addr is a trusted proxy. A nil set trusts nothing.
func (p *TrustedProxies) Contains(addr string) bool {
	if p == nil {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, network := range p.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
