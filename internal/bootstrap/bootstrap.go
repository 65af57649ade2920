// Package bootstrap turns a loaded config into the collaborators the binaries
// share: the assessor, the resilient HTTP clients and the feed providers.
package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hive-corporation/phishwatch/internal/adapter/httpx"
	"github.com/hive-corporation/phishwatch/internal/adapter/model"
	"github.com/hive-corporation/phishwatch/internal/adapter/notifier"
	"github.com/hive-corporation/phishwatch/internal/adapter/provider"
	"github.com/hive-corporation/phishwatch/internal/adapter/reputation"
	"github.com/hive-corporation/phishwatch/internal/config"
	"github.com/hive-corporation/phishwatch/internal/core/ports"
	"github.com/hive-corporation/phishwatch/internal/core/service"
)

// Classifier loads the configured model. No path means no classifier. A model
// that cannot be loaded becomes model.Unavailable so every assessment reports
// the load error instead of the process refusing to start.
func Classifier(cfg *config.Config, log zerolog.Logger) ports.Classifier {
	path := cfg.Scoring.ModelPath
	if path == "" {
		log.Info().Msg("⚠️  No model configured, rule-based scoring only")
		return nil
	}

	m, err := model.Load(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("❌ Failed to load model")
		return model.Unavailable{Err: err}
	}

	log.Info().
		Str("path", path).
		Str("version", m.Version()).
		Str("schema", string(m.Schema())).
		Msg("✅ Model loaded")
	return m
}

// Assessor builds the assessor from the scoring section.
func Assessor(cfg *config.Config, rec ports.AssessmentRecorder, log zerolog.Logger) (*service.Assessor, error) {
	threshold := cfg.Threshold()
	a, err := service.NewAssessor(service.Options{
		Schema:     cfg.SchemaVersion(),
		Threshold:  &threshold,
		Classifier: Classifier(cfg, log),
		Recorder:   rec,
	})
	if err != nil {
		return nil, fmt.Errorf("build assessor: %w", err)
	}
	return a, nil
}

// HTTPClient returns a resilient client labelled name.
func HTTPClient(cfg *config.Config, name string, rec httpx.ErrorRecorder, log zerolog.Logger) *httpx.ResilientClient {
	opts := []httpx.Option{httpx.WithLogger(log)}
	if rec != nil {
		opts = append(opts, httpx.WithRecorder(rec))
	}
	return httpx.New(name, cfg.ResilientClient(), opts...)
}

// Providers returns the enabled feeds. Feeds that need a key are skipped with
// a warning when the key is missing.
func Providers(cfg *config.Config, client provider.Doer, log zerolog.Logger) []ports.ThreatProvider {
	var feeds []ports.ThreatProvider
	for _, name := range cfg.Feeds.Enabled {
		url := cfg.Feeds.URLs[name]
		switch name {
		case "urlhaus":
			feeds = append(feeds, provider.NewURLHausProvider(client, url))
		case "openphish":
			feeds = append(feeds, provider.NewOpenPhishProvider(client, url))
		case "phishtank":
			feeds = append(feeds, provider.NewPhishTankProvider(client, url, cfg.Feeds.PhishTankKey))
		case "otx":
			if cfg.Feeds.OTXAPIKey == "" {
				log.Warn().Msg("⚠️ OTX_API_KEY not found. AlienVault feed will be ignored.")
				continue
			}
			feeds = append(feeds, provider.NewOTXProvider(client, cfg.Feeds.OTXAPIKey, url))
		}
	}
	return feeds
}

// ReputationChecker returns VirusTotal when a key is configured, else nil.
func ReputationChecker(cfg *config.Config, client reputation.Doer, log zerolog.Logger) ports.ReputationChecker {
	if cfg.Reputation.VirusTotalAPIKey == "" {
		log.Warn().Msg("⚠️  VirusTotal lookups disabled (no VIRUSTOTAL_API_KEY)")
		return nil
	}
	log.Info().Int("max_lookups", cfg.Reputation.MaxLookups).Msg("✅ VirusTotal lookups enabled")
	return reputation.NewVirusTotal(client, cfg.Reputation.VirusTotalAPIKey, cfg.Reputation.VirusTotalURL)
}

// SlackNotifier returns a notifier when a bot token is configured, else nil.
func SlackNotifier(cfg *config.Config, client notifier.Doer, log zerolog.Logger) ports.Notifier {
	if cfg.Slack.BotToken == "" {
		log.Warn().Msg("⚠️  Slack notifier disabled (no SLACK_BOT_TOKEN)")
		return nil
	}
	log.Info().Str("channel", cfg.Slack.Channel).Msg("✅ Slack notifier enabled")
	return notifier.NewSlackNotifier(cfg.Slack.BotToken, cfg.Slack.Channel, cfg.Slack.MentionTeam, notifier.WithClient(client))
}
