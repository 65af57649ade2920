package domain

import (
	"net"
	"net/url"
	"strings"
)

// ExtractIOCComponents expands a URL indicator into the URL itself plus the
// host it points to. For example, "http://198.0.2.12/login.php" produces:
// - the URL IOC
// - an IP address IOC for 198.0.2.12
// while "http://paypal-verify.tk/x" produces a domain IOC instead.
func ExtractIOCComponents(value string, sourceIOC IOC) []IOC {
	components := []IOC{sourceIOC}

	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return components
	}

	u, err := url.Parse(value)
	if err != nil {
		return components
	}

	host := u.Hostname()
	if host == "" || host == value {
		return components
	}

	hostType := Domain
	if net.ParseIP(host) != nil {
		hostType = IPAddress
	}

	return append(components, IOC{
		Value:        NormalizeIOCValue(host, hostType),
		Type:         hostType,
		Source:       sourceIOC.Source,
		ThreatType:   sourceIOC.ThreatType,
		Tags:         append([]string{"extracted-from-url"}, sourceIOC.Tags...),
		FirstSeen:    sourceIOC.FirstSeen,
		DateIngested: sourceIOC.DateIngested,
	})
}

// NormalizeIOCValue normalizes IOC values for matching across feeds.
func NormalizeIOCValue(value string, iocType IOCType) string {
	switch iocType {
	case URL:
		value = strings.ToLower(strings.TrimSpace(value))
		return strings.TrimSuffix(value, "/")

	case Domain:
		return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(value)), ".")

	case IPAddress:
		return strings.TrimSpace(value)

	default:
		return value
	}
}
