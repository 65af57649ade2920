package domain

// Fixed word lists of the extractor. They are part of the feature schema:
// changing any of them changes feature values and needs a new schema version.

// SuspiciousKeywords get one has_<keyword> flag each.
var SuspiciousKeywords = []string{
	"login",
	"verify",
	"secure",
	"account",
	"update",
	"confirm",
	"bank",
}

// Brand is an impersonation target together with the registered domains it
// legitimately owns.
type Brand struct {
	Name    string
	Domains []string
}

// Brands are the impersonation targets checked by the brand features.
var Brands = []Brand{
	{Name: "paypal", Domains: []string{"paypal.com", "paypal.me", "paypalobjects.com"}},
	{Name: "amazon", Domains: []string{"amazon.com", "amazon.co.uk", "amazon.de", "amazonaws.com"}},
	{Name: "microsoft", Domains: []string{"microsoft.com", "microsoftonline.com", "live.com", "office.com"}},
	{Name: "apple", Domains: []string{"apple.com", "icloud.com"}},
	{Name: "google", Domains: []string{"google.com", "googleapis.com", "gstatic.com", "gmail.com"}},
	{Name: "facebook", Domains: []string{"facebook.com", "fb.com"}},
}

// owns reports whether the registered domain belongs to the brand.
func (b Brand) owns(registered string) bool {
	for _, d := range b.Domains {
		if registered == d {
			return true
		}
	}
	return false
}

// PhishKeywords feed the keyword_count feature.
var PhishKeywords = []string{
	"login", "verify", "secure", "account", "update", "confirm",
	"suspend", "limited", "click", "urgent", "expire", "bank",
	"paypal", "amazon", "microsoft", "apple", "google", "facebook",
	"cgi-bin", "webscr", "dispatch", "americanexpress", "boleto",
	"signin", "banking", "suspended", "locked", "validation",
}

// SuspiciousTLDs are free or abuse-heavy top-level domains.
var SuspiciousTLDs = []string{"tk", "ml", "ga", "cf", "gq", "cc"}

// The threat score's lexical rule keeps its own lists. Widening them changes
// scores, not features.
var (
	scorerTLDs   = []string{"tk", "ml", "ga", "cf", "gq"}
	scorerBrands = []string{"paypal", "google", "microsoft", "apple"}
)

// URLShorteners hide the final destination of a link.
var URLShorteners = []string{
	"bit.ly",
	"tinyurl.com",
	"t.co",
	"goo.gl",
	"ow.ly",
	"is.gd",
	"buff.ly",
}

// StandardPorts do not raise suspicious_port.
var StandardPorts = []int{80, 443, 8080}

// SuspiciousPathSegments are directories phishing kits commonly drop into.
var SuspiciousPathSegments = []string{"includes", "tmp", "temp", "cache"}

const (
	basicSpecialChars    = "@%#&"
	extendedSpecialChars = "@%#&?="
	suspiciousChars      = "~`!$^*()+={}[]|\\:;\"<>,"
	scorerSymbols        = "@%?="

	longPathThreshold = 50
	maxDots           = 4
	hexBlobMinLength  = 32
)

func isSuspiciousTLD(tld string) bool {
	for _, t := range SuspiciousTLDs {
		if tld == t {
			return true
		}
	}
	return false
}
