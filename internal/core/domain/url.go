package domain

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// urlParts is the parsed view of a raw URL shared by feature extraction and
// lexical scoring. Every field is derived from the raw string only; no
// network lookups happen here.
type urlParts struct {
	raw        string
	lower      string
	length     int // rune count of raw
	scheme     string
	host       string // lower-case ASCII host without port
	port       int    // 0 when absent
	path       string
	userinfo   bool
	registered string // eTLD+1, empty for IP literals and unknown suffixes
	tld        string // last host label
}

// parseURL splits raw into its components. Feeds routinely publish URLs
// without a scheme ("docs.google.com/form"), so those are parsed as if
// "http://" had been prepended while scheme stays empty.
func parseURL(raw string) (urlParts, error) {
	p := urlParts{
		raw:    raw,
		lower:  strings.ToLower(raw),
		length: utf8.RuneCountInString(raw),
	}
	if strings.TrimSpace(raw) == "" {
		return p, nil
	}

	target := raw
	hasScheme := strings.Contains(raw, "://")
	if !hasScheme {
		target = "http://" + strings.TrimLeft(raw, "/")
	}

	u, err := url.Parse(target)
	if err != nil {
		return p, err
	}

	if hasScheme {
		p.scheme = strings.ToLower(u.Scheme)
	}
	p.path = u.EscapedPath()
	p.userinfo = u.User != nil

	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return p, err
		}
		p.port = port
	}

	p.host = normalizeHost(u.Hostname())
	if p.host != "" {
		labels := strings.Split(p.host, ".")
		p.tld = labels[len(labels)-1]
		if net.ParseIP(p.host) == nil {
			if registered, err := publicsuffix.EffectiveTLDPlusOne(p.host); err == nil {
				p.registered = registered
			}
		}
	}

	return p, nil
}

// normalizeHost lower-cases the host, strips a trailing root dot and
// converts internationalized names to their punycode form when possible.
func normalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		return ascii
	}
	return host
}

// isIPv4 reports whether the host is a dotted IPv4 literal.
func (p *urlParts) isIPv4() bool {
	if p.host == "" || strings.Contains(p.host, ":") {
		return false
	}
	ip := net.ParseIP(p.host)
	return ip != nil && ip.To4() != nil
}

// subdomainCount counts host labels beyond the registered domain. Hosts the
// public suffix list cannot resolve fall back to "labels beyond the last two".
func (p *urlParts) subdomainCount() int {
	if p.host == "" || net.ParseIP(p.host) != nil {
		return 0
	}
	hostLabels := strings.Count(p.host, ".") + 1
	if p.registered != "" {
		return hostLabels - (strings.Count(p.registered, ".") + 1)
	}
	if hostLabels > 2 {
		return hostLabels - 2
	}
	return 0
}

// registeredLabel returns the registrable label without its public suffix,
// e.g. "paypal-secure" for "login.paypal-secure.co.uk".
func (p *urlParts) registeredLabel() string {
	if p.registered == "" {
		return ""
	}
	suffix, _ := publicsuffix.PublicSuffix(p.registered)
	return strings.TrimSuffix(p.registered, "."+suffix)
}

// hostMatches reports whether host equals domain or is a subdomain of it.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
