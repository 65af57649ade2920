package provider

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

const openPhishFeed = "https://openphish.com/feed.txt"

// URLListProvider reads plain-text feeds with one URL per line, such as the
// OpenPhish community feed. Host-only lines are turned into http:// URLs so
// they can be scored like every other sighting.
type URLListProvider struct {
	client       Doer
	url          string
	providerName string
	threatType   string
}

func NewURLListProvider(client Doer, providerName string, feedURL string, threatType string) *URLListProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &URLListProvider{
		client:       client,
		providerName: providerName,
		url:          feedURL,
		threatType:   threatType,
	}
}

// NewOpenPhishProvider is the URL list provider preset for OpenPhish.
func NewOpenPhishProvider(client Doer, feedURL string) *URLListProvider {
	return NewURLListProvider(client, "openphish", orDefault(feedURL, openPhishFeed), "phishing")
}

func (p *URLListProvider) Name() string {
	return p.providerName
}

func (p *URLListProvider) FetchIOCS(ctx context.Context) ([]domain.IOC, error) {
	body, err := fetch(ctx, p.client, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch IOCs from %s: %w", p.url, err)
	}
	defer body.Close()

	var iocs []domain.IOC
	now := time.Now().UTC()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		value, ok := normalizeFeedLine(line)
		if !ok {
			continue
		}

		baseIOC := domain.IOC{
			Value:        value,
			Type:         domain.URL,
			Source:       p.providerName,
			ThreatType:   p.threatType,
			Tags:         []string{"threat-feed"},
			FirstSeen:    now,
			DateIngested: now,
		}
		iocs = append(iocs, domain.ExtractIOCComponents(value, baseIOC)...)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}

	return iocs, nil
}

// normalizeFeedLine returns the URL form of a feed line. Lines that are
// neither URLs nor hosts are rejected.
func normalizeFeedLine(line string) (string, bool) {
	if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
		return line, true
	}

	// "#" only starts a comment on host-only lines; in URLs it is a fragment
	if idx := strings.Index(line, "#"); idx != -1 {
		line = strings.TrimSpace(line[:idx])
	}
	if line == "" || strings.ContainsAny(line, " \t") {
		return "", false
	}

	fullURL := "http://" + line
	if parsed, err := url.Parse(fullURL); err != nil || parsed.Host == "" {
		return "", false
	}
	return fullURL, true
}
