package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/hive-corporation/phishwatch/internal/core/service"
)

func newTestAssessor(t *testing.T) *service.Assessor {
	t.Helper()
	a, err := service.NewAssessor(service.Options{})
	if err != nil {
		t.Fatalf("NewAssessor failed: %v", err)
	}
	return a
}

func newTestRouter(t *testing.T, opts RestOptions) *mux.Router {
	t.Helper()
	router := mux.NewRouter()
	NewRestHandler(newTestAssessor(t), opts, zerolog.Nop()).Register(router)
	return router
}

func do(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("Invalid JSON response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestRestHandler_Health(t *testing.T) {
	rec, out := do(t, newTestRouter(t, RestOptions{}), "GET", "/api/v1/health", "")
	if rec.Code != http.StatusOK || out["status"] != "healthy" {
		t.Errorf("Unexpected health response %d %v", rec.Code, out)
	}
	if out["schema_version"] != "v3-full" {
		t.Errorf("Expected schema version in health, got %v", out["schema_version"])
	}
}

func TestRestHandler_ScoreURL(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantScore float64
		wantLevel string
	}{
		{
			name:      "critical phishing url",
			body:      `{"url": "http://paypal-secure.tk/login", "source_count": 3, "external_signals": {"malicious_count": 5}}`,
			wantScore: 95,
			wantLevel: "CRITICAL",
		},
		{
			name:      "benign url with zero sources",
			body:      `{"url": "https://example.com/home", "source_count": 0}`,
			wantScore: 0,
			wantLevel: "INFORMATIONAL",
		},
		{
			name:      "source count defaults to one",
			body:      `{"url": "https://example.com/home"}`,
			wantScore: 10,
			wantLevel: "INFORMATIONAL",
		},
		{
			name:      "source count as string",
			body:      `{"url": "https://example.com/home", "source_count": "3"}`,
			wantScore: 30,
			wantLevel: "LOW",
		},
		{
			name:      "unreadable source count falls back to one",
			body:      `{"url": "https://example.com/home", "source_count": "many"}`,
			wantScore: 10,
			wantLevel: "INFORMATIONAL",
		},
		{
			name:      "stringly typed signals",
			body:      `{"url": "http://google-support12345.ga/security", "source_count": 1, "external_signals": {"lookup_failed": "true"}}`,
			wantScore: 60,
			wantLevel: "HIGH",
		},
	}

	router := newTestRouter(t, RestOptions{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := do(t, router, "POST", "/api/v1/threats/score", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if out["score"] != tt.wantScore || out["level"] != tt.wantLevel {
				t.Errorf("Expected %v/%s, got %v/%v", tt.wantScore, tt.wantLevel, out["score"], out["level"])
			}
		})
	}
}

func TestRestHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"score without url", "POST", "/api/v1/threats/score", `{}`, http.StatusBadRequest},
		{"score empty body", "POST", "/api/v1/threats/score", ``, http.StatusBadRequest},
		{"validate broken json", "POST", "/api/v1/threats/validate", `{"url":`, http.StatusBadRequest},
		{"features without url", "GET", "/api/v1/features", ``, http.StatusBadRequest},
		{"features unknown schema", "GET", "/api/v1/features?url=https://example.com&schema=v9", ``, http.StatusBadRequest},
		{"batch without urls", "POST", "/api/v1/assess/batch", `{"urls": []}`, http.StatusBadRequest},
		{"feed with unknown format", "POST", "/api/v1/iocs/feed?format=xml", `{"urls": [{"url": "https://example.com"}]}`, http.StatusBadRequest},
		{"wrong method", "GET", "/api/v1/assess", ``, http.StatusMethodNotAllowed},
	}

	router := newTestRouter(t, RestOptions{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, router, tt.method, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRestHandler_ValidateURL(t *testing.T) {
	router := newTestRouter(t, RestOptions{})

	_, out := do(t, router, "POST", "/api/v1/threats/validate", `{"url": "http://google-support12345.ga/security", "external_signals": {"lookup_failed": true}}`)
	if out["malicious"] != true {
		t.Errorf("Score 60 must be malicious, got %v", out)
	}
	if !strings.Contains(out["details"].(string), "Score: 60/100, Level: HIGH") {
		t.Errorf("Unexpected details %q", out["details"])
	}

	_, out = do(t, router, "POST", "/api/v1/threats/validate", `{"url": "https://example.com/home", "source_count": 0}`)
	if out["malicious"] != false {
		t.Errorf("Benign URL must not be malicious, got %v", out)
	}
}

func TestRestHandler_Assess(t *testing.T) {
	rec, out := do(t, newTestRouter(t, RestOptions{}), "POST", "/api/v1/assess", `{"url": "http://[::1", "source_count": 0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Malformed URLs degrade, they are not rejected; got %d", rec.Code)
	}
	if out["extraction_failed"] != true || out["threat_level"] != "INFORMATIONAL" {
		t.Errorf("Unexpected assessment %v", out)
	}
}

func TestRestHandler_AssessBatch(t *testing.T) {
	body := `{"urls": [
		{"url": "http://paypal-secure.tk/login", "source_count": 3, "external_signals": {"malicious_count": 5}},
		{"url": "https://example.com/home", "source_count": 0}
	]}`
	rec, out := do(t, newTestRouter(t, RestOptions{Workers: 2}), "POST", "/api/v1/assess/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	results := out["results"].([]interface{})
	if out["count"] != float64(2) || len(results) != 2 {
		t.Fatalf("Expected 2 results, got %v", out)
	}
	first := results[0].(map[string]interface{})
	if first["url"] != "http://paypal-secure.tk/login" || first["threat_level"] != "CRITICAL" {
		t.Errorf("Results must keep input order, got %v", first)
	}
}

func TestRestHandler_AssessBatch_BadEntry(t *testing.T) {
	body := `{"urls": [
		{"url": "http://paypal-secure.tk/login", "source_count": "3"},
		{"url": 42},
		{"source_count": 1},
		"http://google-support12345.ga/security"
	]}`
	rec, out := do(t, newTestRouter(t, RestOptions{Workers: 2}), "POST", "/api/v1/assess/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("One bad entry must not reject the batch, got %d: %s", rec.Code, rec.Body.String())
	}
	results := out["results"].([]interface{})
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}

	tests := []struct {
		index     int
		url       string
		score     float64
		wantError string
	}{
		{0, "http://paypal-secure.tk/login", 55, ""},
		{1, `{"url": 42}`, 0, "invalid input: urls[1]"},
		{2, "", 10, ""},
		{3, "http://google-support12345.ga/security", 35, ""},
	}
	for _, tt := range tests {
		got := results[tt.index].(map[string]interface{})
		if got["url"] != tt.url || got["threat_score"] != tt.score {
			t.Errorf("Entry %d: expected %q/%v, got %v/%v", tt.index, tt.url, tt.score, got["url"], got["threat_score"])
		}
		errText, _ := got["error"].(string)
		if tt.wantError != "" && !strings.HasPrefix(errText, tt.wantError) {
			t.Errorf("Entry %d: expected error %q, got %q", tt.index, tt.wantError, errText)
		}
	}
}

func TestRestHandler_BatchLimit(t *testing.T) {
	body := `{"urls": [{"url": "https://a.example"}, {"url": "https://b.example"}, {"url": "https://c.example"}]}`
	rec, _ := do(t, newTestRouter(t, RestOptions{MaxBatchSize: 2}), "POST", "/api/v1/assess/batch", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rec.Code)
	}
}

func TestRestHandler_Features(t *testing.T) {
	router := newTestRouter(t, RestOptions{})

	_, out := do(t, router, "GET", "/api/v1/features?url=http://paypal-secure.tk/login&schema=v1", "")
	features := out["features"].(map[string]interface{})
	if len(features) != 6 {
		t.Errorf("Expected 6 basic features, got %d", len(features))
	}
	if features["has_login"] != float64(1) || features["is_https"] != float64(0) {
		t.Errorf("Unexpected features %v", features)
	}
	if out["schema_version"] != "v1-basic" {
		t.Errorf("Expected v1-basic, got %v", out["schema_version"])
	}
}

func TestRestHandler_IOCFeed(t *testing.T) {
	body := `{"urls": [
		{"url": "http://paypal-secure.tk/login", "source_count": 3, "external_signals": {"malicious_count": 5}},
		{"url": "https://example.com/home", "source_count": 0}
	]}`
	router := newTestRouter(t, RestOptions{})

	rec, _ := do(t, router, "POST", "/api/v1/iocs/feed?format=cef&min_level=high", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected text/plain for CEF, got %s", ct)
	}

	var lines []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "CEF:0|") {
		t.Errorf("Expected one CEF line above HIGH, got %q", lines)
	}

	rec, out := do(t, router, "POST", "/api/v1/iocs/feed?format=stix", body)
	if rec.Code != http.StatusOK || out["type"] != "bundle" {
		t.Errorf("Expected STIX bundle, got %d %v", rec.Code, out)
	}
}

// failingResponseWriter fails every body write, like a client that hung up.
type failingResponseWriter struct {
	http.ResponseWriter
	writes int
}

func (f *failingResponseWriter) Write(b []byte) (int, error) {
	f.writes++
	return 0, errors.New("write failed")
}

func TestWriteJSON_Failures(t *testing.T) {
	rec := httptest.NewRecorder()
	fw := &failingResponseWriter{ResponseWriter: rec}

	writeJSON(fw, http.StatusOK, map[string]string{"status": "ok"})
	if rec.Code != http.StatusOK || fw.writes == 0 {
		t.Errorf("Expected a status and an attempted write, got %d/%d", rec.Code, fw.writes)
	}

	rec = httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, make(chan int))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("Unencodable data must not panic or write a body, got %d %q", rec.Code, rec.Body.String())
	}
}
