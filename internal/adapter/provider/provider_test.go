package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

func serve(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func urlValues(iocs []domain.IOC) []string {
	var out []string
	for _, ioc := range iocs {
		if ioc.Type == domain.URL {
			out = append(out, ioc.Value)
		}
	}
	return out
}

func TestURLHausProvider(t *testing.T) {
	body := `################################################################
# abuse.ch URLhaus Database Dump (CSV - recent URLs)            #
################################################################
# id,dateadded,url,url_status,last_online,threat,tags,urlhaus_link,reporter
"3050001","2024-05-01 10:00:00","http://198.51.100.7/bins/mozi.m","online","2024-05-01 10:00:00","malware_download","elf,Mozi","https://urlhaus.abuse.ch/url/3050001/","lrz_urlhaus"
"3050002","2024-05-01 11:00:00","http://paypal-secure.tk/login","offline","","phishing","","https://urlhaus.abuse.ch/url/3050002/","anonymous"
`
	server := serve(t, http.StatusOK, body, nil)
	p := NewURLHausProvider(server.Client(), server.URL)

	iocs, err := p.FetchIOCS(context.Background())
	if err != nil {
		t.Fatalf("FetchIOCS failed: %v", err)
	}

	urls := urlValues(iocs)
	if len(urls) != 2 || urls[1] != "http://paypal-secure.tk/login" {
		t.Fatalf("Unexpected URLs %v", urls)
	}
	// each URL also yields its host component
	if len(iocs) != 4 {
		t.Errorf("Expected 4 IOCs including host components, got %d", len(iocs))
	}
	first := iocs[0]
	if first.Source != "abusech-urlhaus" || first.ThreatType != "malware_download" {
		t.Errorf("Unexpected first IOC %+v", first)
	}
	if len(first.Tags) != 3 || first.Tags[2] != "online" {
		t.Errorf("Expected tags [elf Mozi online], got %v", first.Tags)
	}
	if first.FirstSeen.IsZero() {
		t.Error("Expected parsed first-seen date")
	}
}

func TestURLListProvider(t *testing.T) {
	body := `# OpenPhish community feed
https://secure-paypal.example.net/signin?session=1#step2
login-microsoft.example.org # host only

not a url at all
`
	server := serve(t, http.StatusOK, body, nil)
	p := NewOpenPhishProvider(server.Client(), server.URL)

	if p.Name() != "openphish" {
		t.Errorf("Expected provider name openphish, got %s", p.Name())
	}

	iocs, err := p.FetchIOCS(context.Background())
	if err != nil {
		t.Fatalf("FetchIOCS failed: %v", err)
	}

	urls := urlValues(iocs)
	want := []string{
		"https://secure-paypal.example.net/signin?session=1#step2",
		"http://login-microsoft.example.org",
	}
	if len(urls) != len(want) {
		t.Fatalf("Expected %v, got %v", want, urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("URL %d: expected %q, got %q", i, want[i], urls[i])
		}
	}
}

func TestPhishTankProvider(t *testing.T) {
	body := `phish_id,url,phish_detail_url,submission_time,verified,verification_time,online,target
8500001,http://amaz0n-account.example.com/update,http://www.phishtank.com/phish_detail.php?phish_id=8500001,2024-05-01T09:00:00+00:00,yes,2024-05-01T09:30:00+00:00,yes,Amazon.com
8500002,http://unverified.example.com/,http://www.phishtank.com/phish_detail.php?phish_id=8500002,2024-05-01T09:00:00+00:00,no,,yes,Other
`
	var userAgent string
	server := serve(t, http.StatusOK, body, func(r *http.Request) { userAgent = r.UserAgent() })
	p := NewPhishTankProvider(server.Client(), server.URL, "abc123")

	iocs, err := p.FetchIOCS(context.Background())
	if err != nil {
		t.Fatalf("FetchIOCS failed: %v", err)
	}

	urls := urlValues(iocs)
	if len(urls) != 1 || urls[0] != "http://amaz0n-account.example.com/update" {
		t.Fatalf("Expected only the verified URL, got %v", urls)
	}
	if iocs[0].Tags[0] != "amazon.com" {
		t.Errorf("Expected target tag, got %v", iocs[0].Tags)
	}
	if userAgent != "phishtank/abc123" {
		t.Errorf("Expected PhishTank user agent, got %q", userAgent)
	}
}

func TestPhishTankProvider_MissingURLColumn(t *testing.T) {
	server := serve(t, http.StatusOK, "phish_id,target\n1,Other\n", nil)
	p := NewPhishTankProvider(server.Client(), server.URL, "")

	if _, err := p.FetchIOCS(context.Background()); err == nil {
		t.Error("Expected error for CSV without url column")
	}
}

func TestOTXProvider(t *testing.T) {
	body := `{"results":[{"name":"PayPal credential phishing","tags":["phishing"],"indicators":[
		{"indicator":"http://paypal-verify.example.com/login","type":"URL","created":"2024-05-01T10:00:00.123000"},
		{"indicator":"paypal-verify.example.com","type":"hostname","created":"2024-05-01T10:00:00"},
		{"indicator":"203.0.113.5","type":"IPv4","created":"2024-05-01T10:00:00"},
		{"indicator":"44d88612fea8a8f36de82e1278abb02f","type":"FileHash-MD5","created":"2024-05-01T10:00:00"}
	]}]}`

	var apiKey string
	server := serve(t, http.StatusOK, body, func(r *http.Request) { apiKey = r.Header.Get("X-OTX-API-KEY") })
	p := NewOTXProvider(server.Client(), "otx-key", server.URL)

	iocs, err := p.FetchIOCS(context.Background())
	if err != nil {
		t.Fatalf("FetchIOCS failed: %v", err)
	}
	if apiKey != "otx-key" {
		t.Errorf("Expected API key header, got %q", apiKey)
	}
	if len(iocs) != 2 {
		t.Fatalf("Expected 2 scoreable indicators, got %d", len(iocs))
	}
	if iocs[1].Value != "http://paypal-verify.example.com" {
		t.Errorf("Hostname indicator should become a URL, got %q", iocs[1].Value)
	}
	if iocs[0].FirstSeen.Hour() != 10 {
		t.Errorf("Expected first-seen hour 10, got %v", iocs[0].FirstSeen)
	}
}

func TestOTXProvider_MissingKey(t *testing.T) {
	p := NewOTXProvider(nil, "", "http://127.0.0.1:1")
	if _, err := p.FetchIOCS(context.Background()); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestProviders_HTTPError(t *testing.T) {
	server := serve(t, http.StatusServiceUnavailable, "down", nil)

	providers := []interface {
		FetchIOCS(ctx context.Context) ([]domain.IOC, error)
		Name() string
	}{
		NewURLHausProvider(server.Client(), server.URL),
		NewOpenPhishProvider(server.Client(), server.URL),
		NewPhishTankProvider(server.Client(), server.URL, ""),
		NewOTXProvider(server.Client(), "key", server.URL),
	}

	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			if _, err := p.FetchIOCS(context.Background()); err == nil {
				t.Error("Expected error for 503 response")
			}
		})
	}
}
