package scraper

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/feral-file/ff-link-preview/internal/domain"
)

// blockedRanges are address blocks a preview fetch must never reach
var blockedRanges []*net.IPNet

func init() {
	for _, cidr := range []string{
		"0.0.0.0/8",       // "this" network
		"10.0.0.0/8",      // private
		"100.64.0.0/10",   // carrier-grade NAT
		"127.0.0.0/8",     // loopback
		"169.254.0.0/16",  // link-local, cloud metadata
		"172.16.0.0/12",   // private
		"192.0.0.0/24",    // IETF protocol assignments
		"192.168.0.0/16",  // private
		"198.18.0.0/15",   // benchmarking
		"240.0.0.0/4",     // reserved
		"::1/128",         // loopback
		"::/128",          // unspecified
		"fc00::/7",        // unique local
		"fe80::/10",       // link-local
		"64:ff9b:1::/48",  // local-use NAT64
	} {
		_, block, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		blockedRanges = append(blockedRanges, block)
	}
}

// blockedHostSuffixes are DNS names that only resolve inside private networks
var blockedHostSuffixes = []string{
	".localhost",
	".local",
	".internal",
	".lan",
	".home.arpa",
}

// CheckIP rejects loopback, private, link-local and other non-public addresses
func CheckIP(ip net.IP) error {
	if ip == nil {
		return fmt.Errorf("invalid IP address")
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}

	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("address %s is not publicly routable", ip)
	}

	for _, block := range blockedRanges {
		if block.Contains(ip) {
			return fmt.Errorf("address %s is not publicly routable", ip)
		}
	}
	return nil
}

// ValidateURL checks that a URL may be fetched: http(s) scheme, a host, and
// no private, loopback or link-local destination. Failures are INVALID_URL.
func ValidateURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, domain.NewInvalidURLError("URL is empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.NewInvalidURLError("URL is malformed")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, domain.NewInvalidURLError(fmt.Sprintf("unsupported protocol %q", u.Scheme))
	}

	if u.User != nil {
		return nil, domain.NewInvalidURLError("URL must not carry credentials")
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return nil, domain.NewInvalidURLError("URL has no host")
	}

	if host == "localhost" || host == "metadata" {
		return nil, domain.NewInvalidURLError("private hosts are not allowed")
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return nil, domain.NewInvalidURLError("private hosts are not allowed")
		}
	}

	// A zone such as %eth0 only scopes link-local literals to an interface
	addr, _, zoned := strings.Cut(host, "%")
	if ip := net.ParseIP(addr); ip != nil {
		if zoned || CheckIP(ip) != nil {
			return nil, domain.NewInvalidURLError("private network addresses are not allowed")
		}
	} else if zoned {
		return nil, domain.NewInvalidURLError("URL host is malformed")
	}

	return u, nil
}

// IsValidURL reports whether ValidateURL accepts the URL
func IsValidURL(rawURL string) bool {
	_, err := ValidateURL(rawURL)
	return err == nil
}
