package notify

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURL is returned when the target cannot be parsed.
	ErrInvalidURL = errors.New("invalid webhook URL")
	// ErrInvalidScheme is returned for schemes other than http(s), or plain http in strict mode.
	ErrInvalidScheme = errors.New("webhook URL must use https")
	// ErrEmptyHost is returned when the target has no host.
	ErrEmptyHost = errors.New("webhook URL must have a host")
	// ErrLocalhostBlocked is returned for loopback hosts in strict mode.
	ErrLocalhostBlocked = errors.New("localhost webhook targets not allowed")
	// ErrPrivateIP is returned when the target resolves to an internal address in strict mode.
	ErrPrivateIP = errors.New("private IP webhook targets not allowed")
)

var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// ValidateTarget checks the manager webhook URL. Strict mode (production)
// requires https and refuses loopback and private addresses.
func ValidateTarget(ctx context.Context, target string, strict bool) error {
	parsed, err := url.Parse(target)
	if err != nil {
		return ErrInvalidURL
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if strict {
			return ErrInvalidScheme
		}
	default:
		return ErrInvalidScheme
	}

	host := parsed.Hostname()
	if host == "" {
		return ErrEmptyHost
	}
	if !strict {
		return nil
	}

	if isLocalhost(host) {
		return ErrLocalhostBlocked
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		// Unresolvable hosts fail at delivery time instead.
		return nil
	}
	for _, ip := range ips {
		if isBlockedIP(ip.IP) {
			return ErrPrivateIP
		}
	}
	return nil
}

func isLocalhost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local")
}

func isBlockedIP(ip net.IP) bool {
	for _, n := range blockedNetworks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// TargetHost returns the host of a target for logging. Paths may embed tokens.
func TargetHost(target string) string {
	parsed, err := url.Parse(target)
	if err != nil {
		return "(invalid)"
	}
	return parsed.Host
}
