package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/hive-corporation/phishwatch/internal/adapter/exporter"
	"github.com/hive-corporation/phishwatch/internal/adapter/metrics"
	"github.com/hive-corporation/phishwatch/internal/bootstrap"
	"github.com/hive-corporation/phishwatch/internal/config"
	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/service"
	"github.com/hive-corporation/phishwatch/internal/logging"
)

func main() {
	// .env is optional (not all providers need API keys), config.Load reads it
	cfg, err := config.Load("")
	if err != nil {
		os.Stderr.WriteString("❌ Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.New(cfg.Logging, "ingester")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Feeds.Timeout)
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	assessor, err := bootstrap.Assessor(cfg, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to build assessor")
	}

	feedClient := bootstrap.HTTPClient(cfg, "feeds", m, log)
	feeds := bootstrap.Providers(cfg, feedClient, log)
	if len(feeds) == 0 {
		log.Fatal().Msg("❌ No feeds enabled")
	}

	pipeline := service.NewPipeline(assessor, feeds, service.PipelineConfig{
		Workers:    cfg.Scoring.Workers,
		MaxLookups: cfg.Reputation.MaxLookups,
		AlertLevel: cfg.AlertLevel(),
	}, log,
		service.WithReputationChecker(bootstrap.ReputationChecker(cfg, bootstrap.HTTPClient(cfg, "virustotal", m, log), log)),
		service.WithNotifier(bootstrap.SlackNotifier(cfg, bootstrap.HTTPClient(cfg, "slack", m, log), log)),
		service.WithFeedRecorder(m),
		service.WithLookupRecorder(m),
	)

	log.Info().Int("feeds", len(feeds)).Msg("🚀 Threat intel ingestion started...")
	results, err := pipeline.Run(ctx)
	if err != nil {
		log.Error().Err(err).Int("assessed", len(results)).Msg("❌ Ingestion interrupted, exporting partial results")
	}

	exp, err := exporter.ByName(cfg.Feeds.ExportFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Unknown export format")
	}

	var out io.Writer = os.Stdout
	if cfg.Feeds.ExportPath != "" {
		f, err := os.Create(cfg.Feeds.ExportPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Feeds.ExportPath).Msg("❌ Failed to create export file")
		}
		defer f.Close()
		out = f
	}

	exported := exporter.FilterByLevel(completed(results), cfg.MinLevel())
	if err := exp.Export(out, exported); err != nil {
		log.Error().Err(err).Msg("❌ Export failed")
	}

	byLevel := countLevels(exported)
	log.Info().
		Int("assessed", len(results)).
		Int("exported", len(exported)).
		Str("format", exp.Format()).
		Interface("levels", byLevel).
		Msg("🏁 Threat intel ingestion finished!")

	if cfg.Feeds.PushgatewayURL != "" {
		if err := push.New(cfg.Feeds.PushgatewayURL, "phishwatch_ingester").Gatherer(reg).Push(); err != nil {
			log.Warn().Err(err).Msg("⚠️ Failed to push metrics")
		} else {
			log.Info().Str("url", cfg.Feeds.PushgatewayURL).Msg("📦 Metrics pushed")
		}
	}
}

// completed drops the zero slots an interrupted run leaves behind.
func completed(results []domain.Assessment) []domain.Assessment {
	out := results[:0:0]
	for _, a := range results {
		if a.URL != "" {
			out = append(out, a)
		}
	}
	return out
}

func countLevels(results []domain.Assessment) map[domain.ThreatLevel]int {
	counts := make(map[domain.ThreatLevel]int)
	for _, a := range results {
		counts[a.Level]++
	}
	return counts
}
