package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

const phishTankCSV = "http://data.phishtank.com/data/online-valid.csv"

// PhishTankProvider reads the verified-online CSV dump. The file carries a
// header row; columns are located by name.
type PhishTankProvider struct {
	client  Doer
	feedURL string
	appKey  string
}

// NewPhishTankProvider builds the provider. appKey is optional and is sent
// as the PhishTank user agent key when present.
func NewPhishTankProvider(client Doer, feedURL, appKey string) *PhishTankProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &PhishTankProvider{
		client:  client,
		feedURL: orDefault(feedURL, phishTankCSV),
		appKey:  appKey,
	}
}

func (p *PhishTankProvider) Name() string {
	return "phishtank"
}

func (p *PhishTankProvider) FetchIOCS(ctx context.Context) ([]domain.IOC, error) {
	header := http.Header{}
	header.Set("User-Agent", "phishtank/"+orDefault(p.appKey, "phishwatch"))

	body, err := fetch(ctx, p.client, p.feedURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch phishtank: %w", err)
	}
	defer body.Close()

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	head, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading phishtank header: %w", err)
	}
	cols := make(map[string]int, len(head))
	for i, name := range head {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	urlCol, ok := cols["url"]
	if !ok {
		return nil, errors.New("phishtank csv has no url column")
	}

	field := func(record []string, name string) string {
		if i, ok := cols[name]; ok && i < len(record) {
			return record[i]
		}
		return ""
	}

	var iocs []domain.IOC
	now := time.Now().UTC()

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading csv line: %w", err)
		}
		if urlCol >= len(record) || record[urlCol] == "" {
			continue
		}
		if v := field(record, "verified"); v != "" && v != "yes" {
			continue
		}

		firstSeen, _ := time.Parse(time.RFC3339, field(record, "submission_time"))

		var tags []string
		if target := field(record, "target"); target != "" && target != "Other" {
			tags = append(tags, strings.ToLower(target))
		}

		baseIOC := domain.IOC{
			Value:        record[urlCol],
			Type:         domain.URL,
			Source:       p.Name(),
			ThreatType:   "phishing",
			Tags:         tags,
			FirstSeen:    firstSeen,
			DateIngested: now,
		}
		iocs = append(iocs, domain.ExtractIOCComponents(record[urlCol], baseIOC)...)
	}

	return iocs, nil
}
