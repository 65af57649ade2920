package reputation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

const virusTotalAPI = "https://www.virustotal.com/api/v3"

// ErrNoAPIKey is returned when the checker is used without credentials.
var ErrNoAPIKey = errors.New("virustotal: API key is missing")

// Doer is satisfied by *http.Client and *httpx.ResilientClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// VirusTotal looks up the last analysis of a URL through the v3 API.
type VirusTotal struct {
	client  Doer
	apiKey  string
	baseURL string
}

// NewVirusTotal builds a checker. An empty baseURL selects the public API.
func NewVirusTotal(client Doer, apiKey, baseURL string) *VirusTotal {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = virusTotalAPI
	}
	return &VirusTotal{
		client:  client,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (v *VirusTotal) Name() string { return "virustotal" }

type vtURLReport struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Harmless   int `json:"harmless"`
				Undetected int `json:"undetected"`
			} `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// URLID is the VirusTotal identifier of a URL: unpadded URL-safe base64.
func URLID(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

// Check returns the number of engines that flagged the URL. Any failure,
// including a URL VirusTotal has never seen, yields LookupFailed together
// with the error so callers can log it.
func (v *VirusTotal) Check(ctx context.Context, rawURL string) (domain.ExternalSignals, error) {
	failed := domain.ExternalSignals{LookupFailed: true}
	if v.apiKey == "" {
		return failed, ErrNoAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/urls/"+URLID(rawURL), nil)
	if err != nil {
		return failed, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-apikey", v.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return failed, fmt.Errorf("virustotal lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failed, fmt.Errorf("virustotal lookup failed: status %d", resp.StatusCode)
	}

	var report vtURLReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return failed, fmt.Errorf("failed to decode virustotal report: %w", err)
	}

	return domain.ExternalSignals{
		MaliciousCount: report.Data.Attributes.LastAnalysisStats.Malicious,
	}.Normalize(), nil
}
