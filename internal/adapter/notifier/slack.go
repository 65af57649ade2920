package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

const slackPostMessage = "https://slack.com/api/chat.postMessage"

// Doer is satisfied by *http.Client and *httpx.ResilientClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackNotifier struct {
	botToken    string
	channel     string
	mentionTeam string
	apiURL      string
	httpClient  Doer
}

type Option func(*SlackNotifier)

// WithClient replaces the default 10s-timeout HTTP client.
func WithClient(c Doer) Option {
	return func(s *SlackNotifier) { s.httpClient = c }
}

// WithAPIURL points the notifier at another chat.postMessage endpoint.
func WithAPIURL(u string) Option {
	return func(s *SlackNotifier) { s.apiURL = u }
}

func NewSlackNotifier(botToken, channel, mentionTeam string, opts ...Option) *SlackNotifier {
	s := &SlackNotifier{
		botToken:    botToken,
		channel:     channel,
		mentionTeam: mentionTeam,
		apiURL:      slackPostMessage,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyCriticalURL sends one alert for a high-severity assessment.
func (s *SlackNotifier) NotifyCriticalURL(a domain.Assessment) error {
	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  s.buildURLBlocks(a),
		Text:    fmt.Sprintf("🚨 %s phishing URL (score %d): %s", a.Level, a.Score, a.URL),
	}
	return s.sendMessage(payload)
}

var levelEmoji = map[domain.ThreatLevel]string{
	domain.Critical:      "🔴",
	domain.High:          "🟠",
	domain.Medium:        "🟡",
	domain.Low:           "🟢",
	domain.Informational: "🔵",
}

// signalFeatures are the flags worth surfacing to an analyst.
var signalFeatures = []struct {
	name  string
	label string
}{
	{"brand_spoofing", "brand impersonation"},
	{"brand_typosquat", "brand typosquat"},
	{"suspicious_tld", "suspicious TLD"},
	{"has_ip", "IP address host"},
	{"url_shortener", "URL shortener"},
	{"has_punycode", "punycode host"},
	{"has_userinfo", "credentials in URL"},
	{"suspicious_port", "non-standard port"},
}

func (s *SlackNotifier) buildURLBlocks(a domain.Assessment) []SlackBlock {
	emoji := levelEmoji[a.Level]
	if emoji == "" {
		emoji = "⚠️"
	}

	sources := strings.Join(a.Sources, ", ")
	if sources == "" {
		sources = "n/a"
	}

	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: fmt.Sprintf("%s %s Phishing URL Detected", emoji, a.Level),
			},
		},
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*URL*\n`%s`", a.URL)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Threat Score*\n%d/100", a.Score)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Sources (%d)*\n%s", a.SourceCount, sources)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Reputation*\n%s", reputationText(a.Signals))},
			},
		},
	}

	var signals []string
	for _, f := range signalFeatures {
		if v, ok := a.Features.Get(f.name); ok && v > 0 {
			signals = append(signals, f.label)
		}
	}
	if len(signals) > 0 {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: "*🔍 Signals*\n• " + strings.Join(signals, "\n• "),
			},
		})
	}

	footer := fmt.Sprintf("Breakdown: sources *%d* | reputation *%d* | lexical *%d*",
		a.Breakdown.SourceWeight, a.Breakdown.ReputationWeight, a.Breakdown.LexicalWeight)
	if a.Prediction != nil {
		footer += fmt.Sprintf(" | model *%s* (%.0f%%)", a.Prediction.Label, a.Prediction.Probability*100)
	}
	blocks = append(blocks,
		SlackBlock{Type: "divider"},
		SlackBlock{
			Type:     "context",
			Elements: []SlackText{{Type: "mrkdwn", Text: footer}},
		},
	)

	if s.mentionTeam != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("🔔 %s", s.mentionTeam),
			},
		})
	}

	return blocks
}

func reputationText(s domain.ExternalSignals) string {
	switch {
	case s.MaliciousCount > 0:
		return fmt.Sprintf("%d engines flagged it", s.MaliciousCount)
	case s.LookupFailed:
		return "lookup failed"
	default:
		return "no detections"
	}
}

func (s *SlackNotifier) sendMessage(msg SlackMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	// Slack reports most failures with a 200 and ok=false
	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK && result.Error != "" {
		return fmt.Errorf("slack API error: %s", result.Error)
	}

	return nil
}

// Slack API structures

type SlackMessage struct {
	Channel string       `json:"channel"`
	Blocks  []SlackBlock `json:"blocks"`
	Text    string       `json:"text"` // Fallback text
}

type SlackBlock struct {
	Type     string      `json:"type"`
	Text     *SlackText  `json:"text,omitempty"`
	Fields   []SlackText `json:"fields,omitempty"`
	Elements []SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
