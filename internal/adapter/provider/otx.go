package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

const otxURL = "https://otx.alienvault.com/api/v1/pulses/subscribed?limit=10&modified_since=7d"

// ErrMissingAPIKey is returned by providers that cannot run without a key.
var ErrMissingAPIKey = errors.New("API key is missing")

type OTXProvider struct {
	client  Doer
	apiKey  string
	feedURL string
}

func NewOTXProvider(client Doer, apiKey, feedURL string) *OTXProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &OTXProvider{
		client:  client,
		apiKey:  apiKey,
		feedURL: orDefault(feedURL, otxURL),
	}
}

func (p *OTXProvider) Name() string {
	return "alienvault-otx"
}

type otxResponse struct {
	Results []otxPulse `json:"results"`
	Next    string     `json:"next"`
}

type otxPulse struct {
	Name       string         `json:"name"`
	AuthorName string         `json:"author_name"`
	Created    string         `json:"created"`
	Indicators []otxIndicator `json:"indicators"`
	Tags       []string       `json:"tags"`
}

type otxIndicator struct {
	Indicator string `json:"indicator"`
	Type      string `json:"type"` // URL, domain, hostname, IPv4, FileHash-SHA256...
	Created   string `json:"created"`
}

// FetchIOCS keeps URL indicators and turns domain/hostname indicators into
// http:// URLs. Other indicator types cannot be scored and are dropped.
func (p *OTXProvider) FetchIOCS(ctx context.Context) ([]domain.IOC, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("otx: %w", ErrMissingAPIKey)
	}

	header := http.Header{}
	header.Set("X-OTX-API-KEY", p.apiKey)

	body, err := fetch(ctx, p.client, p.feedURL, header)
	if err != nil {
		return nil, fmt.Errorf("OTX API error: %w", err)
	}
	defer body.Close()

	var data otxResponse
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode OTX json: %w", err)
	}

	var iocs []domain.IOC
	now := time.Now().UTC()

	for _, pulse := range data.Results {
		for _, ind := range pulse.Indicators {
			value, ok := otxURLValue(ind)
			if !ok {
				continue
			}

			// OTX omits the zone: "2024-05-01T10:00:00.123000"
			firstSeen, err := time.Parse("2006-01-02T15:04:05", trimFraction(ind.Created))
			if err != nil {
				firstSeen = now
			}

			iocs = append(iocs, domain.IOC{
				Value:        value,
				Type:         domain.URL,
				Source:       p.Name(),
				ThreatType:   pulse.Name,
				Tags:         append([]string{"otx-" + ind.Type}, pulse.Tags...),
				FirstSeen:    firstSeen,
				DateIngested: now,
			})
		}
	}

	return iocs, nil
}

func otxURLValue(ind otxIndicator) (string, bool) {
	if ind.Indicator == "" {
		return "", false
	}
	switch ind.Type {
	case "URL", "url":
		return ind.Indicator, true
	case "domain", "hostname":
		return "http://" + ind.Indicator, true
	default:
		return "", false
	}
}

func trimFraction(ts string) string {
	for i := 0; i < len(ts); i++ {
		if ts[i] == '.' || ts[i] == 'Z' || ts[i] == '+' {
			return ts[:i]
		}
	}
	return ts
}
