package domain

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrExtractionFailed marks a record built from input that could not be parsed.
var ErrExtractionFailed = errors.New("feature extraction failed")

// SchemaVersion identifies a fixed, ordered feature set.
type SchemaVersion string

const (
	SchemaBasic     SchemaVersion = "v1-basic"
	SchemaRealistic SchemaVersion = "v2-realistic"
	SchemaFull      SchemaVersion = "v3-full"

	DefaultSchema = SchemaFull
)

// Schemas lists every supported schema version, oldest first.
func Schemas() []SchemaVersion {
	return []SchemaVersion{SchemaBasic, SchemaRealistic, SchemaFull}
}

// ParseSchemaVersion accepts the full version name or its short "v1".."v3" form.
// An empty string selects DefaultSchema.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultSchema, nil
	}
	for _, v := range Schemas() {
		if s == string(v) || strings.HasPrefix(string(v), s+"-") {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown feature schema %q", s)
}

type featureDef struct {
	name string
	fn   func(p *urlParts) float64
}

var hexBlobPattern = regexp.MustCompile(fmt.Sprintf("[0-9a-f]{%d,}", hexBlobMinLength))

var schemaDefs = map[SchemaVersion][]featureDef{
	SchemaBasic: {
		{"url_length", urlLength},
		{"has_login", keywordFlag("login")},
		{"has_verify", keywordFlag("verify")},
		{"is_https", isHTTPS},
		{"special_chars", countChars(basicSpecialChars)},
		{"digit_ratio", digitRatio},
	},
	SchemaRealistic: {
		{"url_length", urlLength},
		{"domain_length", domainLength},
		{"path_length", pathLength},
		{"is_https", isHTTPS},
		{"special_chars", countChars(basicSpecialChars)},
		{"digit_ratio", digitRatio},
		{"subdomain_count", subdomainCount},
		{"has_ip", hasIP},
		{"suspicious_tld", suspiciousTLD},
		{"url_shortener", urlShortener},
		{"has_login", keywordFlag("login")},
		{"has_verify", keywordFlag("verify")},
		{"has_secure", keywordFlag("secure")},
		{"has_account", keywordFlag("account")},
		{"has_update", keywordFlag("update")},
	},
	SchemaFull: fullSchema(),
}

func fullSchema() []featureDef {
	defs := []featureDef{
		{"url_length", urlLength},
		{"scheme_length", func(p *urlParts) float64 { return float64(len(p.scheme)) }},
		{"domain_length", domainLength},
		{"path_length", pathLength},
		{"is_https", isHTTPS},
	}
	for _, kw := range SuspiciousKeywords {
		defs = append(defs, featureDef{"has_" + kw, keywordFlag(kw)})
	}
	for _, b := range Brands {
		defs = append(defs, featureDef{"has_" + b.Name, keywordFlag(b.Name)})
	}
	return append(defs,
		featureDef{"keyword_count", keywordCount},
		featureDef{"special_chars", countChars(extendedSpecialChars)},
		featureDef{"suspicious_chars", countChars(suspiciousChars)},
		featureDef{"digit_ratio", digitRatio},
		featureDef{"url_entropy", urlEntropy},
		featureDef{"char_diversity", charDiversity},
		featureDef{"subdomain_count", subdomainCount},
		featureDef{"has_hyphen", flag(func(p *urlParts) bool { return strings.Contains(p.host, "-") })},
		featureDef{"suspicious_tld", suspiciousTLD},
		featureDef{"has_ip", hasIP},
		featureDef{"url_shortener", urlShortener},
		featureDef{"suspicious_port", suspiciousPort},
		featureDef{"long_path", flag(func(p *urlParts) bool { return pathLength(p) > longPathThreshold })},
		featureDef{"hex_blob", flag(func(p *urlParts) bool { return hexBlobPattern.MatchString(p.lower) })},
		featureDef{"multiple_dots", flag(func(p *urlParts) bool { return strings.Count(p.raw, ".") > maxDots })},
		featureDef{"brand_spoofing", flag(brandSpoofing)},
		featureDef{"brand_typosquat", flag(brandTyposquat)},
		featureDef{"has_punycode", flag(func(p *urlParts) bool { return strings.Contains(p.host, "xn--") })},
		featureDef{"has_userinfo", flag(func(p *urlParts) bool { return p.userinfo })},
		featureDef{"suspicious_path", flag(suspiciousPath)},
		featureDef{"has_cgi_bin", keywordFlag("cgi-bin")},
		featureDef{"has_webscr", keywordFlag("webscr")},
		featureDef{"has_dispatch", keywordFlag("dispatch")},
	)
}

// FeatureNames returns the ordered feature names of a schema, or nil when the
// schema is unknown.
func FeatureNames(v SchemaVersion) []string {
	defs, ok := schemaDefs[v]
	if !ok {
		return nil
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.name
	}
	return names
}

// FeatureRecord is an immutable, ordered feature-name to value mapping. Flags
// are 0 or 1; every value is numeric so the record can be fed to a model as is.
type FeatureRecord struct {
	schema SchemaVersion
	names  []string
	values []float64
	failed bool
}

func (r FeatureRecord) Schema() SchemaVersion { return r.schema }

// Failed reports whether the record holds defaults for unparseable input.
func (r FeatureRecord) Failed() bool { return r.failed }

func (r FeatureRecord) Len() int { return len(r.values) }

func (r FeatureRecord) Names() []string {
	return append([]string(nil), r.names...)
}

func (r FeatureRecord) Values() []float64 {
	return append([]float64(nil), r.values...)
}

func (r FeatureRecord) Get(name string) (float64, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return 0, false
}

func (r FeatureRecord) Map() map[string]float64 {
	m := make(map[string]float64, len(r.names))
	for i, n := range r.names {
		m[n] = r.values[i]
	}
	return m
}

// MarshalJSON writes the features in schema order so that identical records
// always serialize to identical bytes.
func (r FeatureRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(n))
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(r.values[i], 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Extractor computes the feature record of one schema version. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	schema SchemaVersion
	defs   []featureDef
	names  []string
}

func NewExtractor(v SchemaVersion) (*Extractor, error) {
	defs, ok := schemaDefs[v]
	if !ok {
		return nil, fmt.Errorf("unknown feature schema %q", v)
	}
	return &Extractor{schema: v, defs: defs, names: FeatureNames(v)}, nil
}

var defaultExtractor, _ = NewExtractor(DefaultSchema)

// Extract runs the default schema extractor.
func Extract(raw string) (FeatureRecord, error) {
	return defaultExtractor.Extract(raw)
}

func (e *Extractor) Schema() SchemaVersion { return e.schema }

func (e *Extractor) FeatureNames() []string {
	return append([]string(nil), e.names...)
}

// Extract never panics. Unparseable input yields the all-zero record with
// Failed set and an error wrapping ErrExtractionFailed.
func (e *Extractor) Extract(raw string) (rec FeatureRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = e.defaultRecord(true)
			err = fmt.Errorf("%w: %v", ErrExtractionFailed, r)
		}
	}()

	p, perr := parseURL(raw)
	if perr != nil {
		return e.defaultRecord(true), fmt.Errorf("%w: %v", ErrExtractionFailed, perr)
	}

	values := make([]float64, len(e.defs))
	for i, d := range e.defs {
		values[i] = d.fn(&p)
	}
	return FeatureRecord{schema: e.schema, names: e.names, values: values}, nil
}

// FailedRecord is the all-zero record reported for input that never reached
// the extractor.
func (e *Extractor) FailedRecord() FeatureRecord { return e.defaultRecord(true) }

func (e *Extractor) defaultRecord(failed bool) FeatureRecord {
	return FeatureRecord{
		schema: e.schema,
		names:  e.names,
		values: make([]float64, len(e.names)),
		failed: failed,
	}
}

// NewFeatureRecord builds a record from explicit values, mainly for model
// training data and tests. values must match the schema's feature count.
func NewFeatureRecord(v SchemaVersion, values []float64) (FeatureRecord, error) {
	names := FeatureNames(v)
	if names == nil {
		return FeatureRecord{}, fmt.Errorf("unknown feature schema %q", v)
	}
	if len(values) != len(names) {
		return FeatureRecord{}, fmt.Errorf("schema %s expects %d values, got %d", v, len(names), len(values))
	}
	return FeatureRecord{schema: v, names: names, values: append([]float64(nil), values...)}, nil
}

// feature functions

func flag(pred func(p *urlParts) bool) func(p *urlParts) float64 {
	return func(p *urlParts) float64 {
		if pred(p) {
			return 1
		}
		return 0
	}
}

func keywordFlag(kw string) func(p *urlParts) float64 {
	return flag(func(p *urlParts) bool { return strings.Contains(p.lower, kw) })
}

func countChars(set string) func(p *urlParts) float64 {
	return func(p *urlParts) float64 {
		n := 0
		for _, r := range p.raw {
			if strings.ContainsRune(set, r) {
				n++
			}
		}
		return float64(n)
	}
}

func urlLength(p *urlParts) float64    { return float64(p.length) }
func domainLength(p *urlParts) float64 { return float64(len(p.host)) }
func pathLength(p *urlParts) float64   { return float64(len([]rune(p.path))) }

var isHTTPS = flag(func(p *urlParts) bool { return p.scheme == "https" })

func digitRatio(p *urlParts) float64 {
	digits := 0
	for _, r := range p.raw {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return float64(digits) / float64(max(p.length, 1))
}

// urlEntropy is the Shannon entropy of the lower-cased URL in bits per rune.
func urlEntropy(p *urlParts) float64 {
	if p.length == 0 {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range p.lower {
		counts[r]++
		total++
	}
	var h float64
	for _, c := range counts {
		f := float64(c) / float64(total)
		h -= f * math.Log2(f)
	}
	return h
}

func charDiversity(p *urlParts) float64 {
	seen := make(map[rune]struct{})
	for _, r := range p.lower {
		seen[r] = struct{}{}
	}
	return float64(len(seen)) / float64(max(p.length, 1))
}

func keywordCount(p *urlParts) float64 {
	n := 0
	for _, kw := range PhishKeywords {
		if strings.Contains(p.lower, kw) {
			n++
		}
	}
	return float64(n)
}

func subdomainCount(p *urlParts) float64 { return float64(p.subdomainCount()) }

var (
	hasIP         = flag(func(p *urlParts) bool { return p.isIPv4() })
	suspiciousTLD = flag(func(p *urlParts) bool { return isSuspiciousTLD(p.tld) })
)

var urlShortener = flag(func(p *urlParts) bool {
	for _, s := range URLShorteners {
		if hostMatches(p.host, s) {
			return true
		}
	}
	return false
})

var suspiciousPort = flag(func(p *urlParts) bool {
	if p.port == 0 {
		return false
	}
	for _, std := range StandardPorts {
		if p.port == std {
			return false
		}
	}
	return true
})

// brandSpoofing: a brand name appears in the host but the registered domain
// is not one the brand owns.
func brandSpoofing(p *urlParts) bool {
	for _, b := range Brands {
		if !strings.Contains(p.host, b.Name) {
			continue
		}
		owner := p.registered
		if owner == "" {
			owner = p.host
		}
		if !b.owns(owner) {
			return true
		}
	}
	return false
}

// brandTyposquat: a token of the registered label is one or two edits away
// from a brand name without being the brand itself ("g00gle", "paypa1").
func brandTyposquat(p *urlParts) bool {
	label := p.registeredLabel()
	if label == "" {
		return false
	}
	for _, b := range Brands {
		if b.owns(p.registered) {
			return false
		}
	}
	for _, token := range strings.FieldsFunc(label, func(r rune) bool { return r == '-' || r == '.' }) {
		for _, b := range Brands {
			if token == b.Name || strings.Contains(token, b.Name) || len(token) < len(b.Name)-1 {
				continue
			}
			if d := fuzzy.LevenshteinDistance(token, b.Name); d >= 1 && d <= 2 {
				return true
			}
		}
	}
	return false
}

func suspiciousPath(p *urlParts) bool {
	path := strings.ToLower(p.path)
	for _, seg := range SuspiciousPathSegments {
		if strings.Contains(path, seg) {
			return true
		}
	}
	return false
}
