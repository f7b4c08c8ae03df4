// Package horosafe holds the small safety checks proseai applies at its
// edges: endpoint URL validation, identifier validation, API key redaction
// for logs, and bounded body reads.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

// MaxResponseBody is the default cap for provider and backend response reads (1 MiB).
const MaxResponseBody int64 = 1 << 20

var (
	// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
	ErrUnsafeScheme = errors.New("horosafe: only http and https schemes are allowed")

	// ErrPrivateHost is returned when a URL targets a private or link-local
	// address and the caller did not allow it.
	ErrPrivateHost = errors.New("horosafe: URL targets a private address")

	// ErrTooLarge is returned by LimitedReadAll when the reader exceeds the cap.
	ErrTooLarge = errors.New("horosafe: body exceeds limit")
)

// EndpointPolicy controls which hosts ValidateEndpoint accepts.
type EndpointPolicy struct {
	// AllowLoopback accepts localhost and 127.0.0.0/8, ::1. The default
	// rewrite API endpoint is http://localhost:3000, so settings use this.
	AllowLoopback bool
	// AllowPrivate accepts RFC 1918 / RFC 4193 and link-local ranges.
	AllowPrivate bool
}

// ValidateEndpoint checks that rawURL is an absolute http(s) URL with a host
// and that literal IPs fall inside what policy allows. Hostnames other than
// "localhost" are not resolved.
func ValidateEndpoint(rawURL string, policy EndpointPolicy) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("horosafe: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("horosafe: URL has no host")
	}

	if strings.EqualFold(host, "localhost") {
		if !policy.AllowLoopback {
			return nil, ErrPrivateHost
		}
		return u, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return u, nil
	}
	if ip.IsLoopback() {
		if !policy.AllowLoopback {
			return nil, ErrPrivateHost
		}
		return u, nil
	}
	if isPrivateIP(ip) && !policy.AllowPrivate {
		return nil, ErrPrivateHost
	}
	return u, nil
}

// ValidateIdentifier rejects identifiers unsuitable for settings keys,
// profile IDs, or route service names. Allows alphanumeric, underscore,
// hyphen, and dot.
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("horosafe: identifier must not be empty")
	}
	if len(s) > 128 {
		return fmt.Errorf("horosafe: identifier too long (max 128)")
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("horosafe: invalid character %q in identifier", r)
		}
	}
	return nil
}

// RedactKey keeps the last four characters of an API key so log lines can
// tell keys apart without disclosing them.
func RedactKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// LimitedReadAll reads at most maxBytes from r.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

var privateNets = mustCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"fc00::/7",
	"fe80::/10",
)

func mustCIDRs(ss ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(ss))
	for _, s := range ss {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
