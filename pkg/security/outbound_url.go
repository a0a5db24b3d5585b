// Package security holds the checks applied to URLs the server calls out to:
// the model provider base URL and the image upload endpoint.
package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInvalidURL       = errors.New("invalid outbound URL")
	ErrSchemeNotAllowed = errors.New("URL scheme not allowed")
	ErrLocalTarget      = errors.New("local network target not allowed")
	ErrHostNotAllowed   = errors.New("host not allowed")
)

// OutboundPolicy decides which endpoints may be contacted.
type OutboundPolicy struct {
	// AllowHTTP permits plain HTTP. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback, private and link-local targets.
	AllowLocalNetworks bool
	// AllowedHosts restricts targets to these hosts and their subdomains when
	// non-empty.
	AllowedHosts []string
}

// DevelopmentPolicy allows plain HTTP to local services, e.g. a model server on
// localhost or an httptest server.
func DevelopmentPolicy() OutboundPolicy {
	return OutboundPolicy{AllowHTTP: true, AllowLocalNetworks: true}
}

// Validate checks rawURL against the policy without performing DNS lookups.
func (p OutboundPolicy) Validate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(ErrInvalidURL, "%s", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !p.AllowHTTP {
			return errors.Wrapf(ErrSchemeNotAllowed, "%q", parsed.Scheme)
		}
	default:
		return errors.Wrapf(ErrSchemeNotAllowed, "%q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.Wrap(ErrInvalidURL, "host is required")
	}
	if !p.hostAllowed(host) {
		return errors.Wrapf(ErrHostNotAllowed, "%q", host)
	}

	if !p.AllowLocalNetworks && isLocalHostname(host) {
		return errors.Wrapf(ErrLocalTarget, "hostname %q", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Zone() != "" && !p.AllowLocalNetworks {
			return errors.Wrapf(ErrLocalTarget, "zoned address %q", host)
		}
		addr = addr.Unmap()
		if addr.IsUnspecified() || addr.IsMulticast() {
			return errors.Wrapf(ErrInvalidURL, "disallowed address %q", host)
		}
		if !p.AllowLocalNetworks && isLocalAddr(addr) {
			return errors.Wrapf(ErrLocalTarget, "address %q", host)
		}
	}
	return nil
}

func (p OutboundPolicy) hostAllowed(host string) bool {
	if len(p.AllowedHosts) == 0 {
		return true
	}
	for _, allowed := range p.AllowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func isLocalHostname(host string) bool {
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")
}

func isLocalAddr(addr netip.Addr) bool {
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()
}
