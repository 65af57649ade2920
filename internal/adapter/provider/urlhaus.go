package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

const urlHausCSV = "https://urlhaus.abuse.ch/downloads/csv_recent/"

type URLHausProvider struct {
	client  Doer
	feedURL string
}

// NewURLHausProvider reads the recent-URLs CSV dump. An empty feedURL selects
// the public endpoint.
func NewURLHausProvider(client Doer, feedURL string) *URLHausProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &URLHausProvider{
		client:  client,
		feedURL: orDefault(feedURL, urlHausCSV),
	}
}

func (p *URLHausProvider) Name() string {
	return "abusech-urlhaus"
}

func (p *URLHausProvider) FetchIOCS(ctx context.Context) ([]domain.IOC, error) {
	body, err := fetch(ctx, p.client, p.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch urlhaus: %w", err)
	}
	defer body.Close()

	reader := csv.NewReader(body)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

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
		// 0: id, 1: dateadded, 2: url, 3: url_status, 4: last_online,
		// 5: threat, 6: tags, 7: urlhaus_link, 8: reporter
		if len(record) < 7 || record[2] == "" {
			continue
		}

		firstSeen, _ := time.Parse("2006-01-02 15:04:05", record[1])

		var tags []string
		for _, tag := range strings.Split(record[6], ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		if record[3] == "online" {
			tags = append(tags, "online")
		}

		baseIOC := domain.IOC{
			Value:        record[2],
			Type:         domain.URL,
			Source:       p.Name(),
			ThreatType:   record[5],
			Tags:         tags,
			FirstSeen:    firstSeen,
			DateIngested: now,
		}

		iocs = append(iocs, domain.ExtractIOCComponents(record[2], baseIOC)...)
	}

	return iocs, nil
}
