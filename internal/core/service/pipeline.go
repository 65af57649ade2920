package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/ports"
)

// PipelineConfig tunes one ingestion run.
type PipelineConfig struct {
	// Workers bounds concurrent lookups and assessments.
	Workers int
	// MaxLookups caps reputation lookups per run; the first MaxLookups
	// sightings are enriched, the rest are scored without external signals.
	MaxLookups int
	// AlertLevel is the minimum level handed to the notifier.
	AlertLevel domain.ThreatLevel
}

// Pipeline fetches every feed, merges the sightings and assesses each URL once.
type Pipeline struct {
	assessor  *Assessor
	providers []ports.ThreatProvider
	checker   ports.ReputationChecker
	notifier  ports.Notifier
	feeds     ports.FeedRecorder
	lookups   ports.LookupRecorder
	cfg       PipelineConfig
	log       zerolog.Logger
}

type PipelineOption func(*Pipeline)

func WithReputationChecker(c ports.ReputationChecker) PipelineOption {
	return func(p *Pipeline) { p.checker = c }
}

func WithNotifier(n ports.Notifier) PipelineOption {
	return func(p *Pipeline) { p.notifier = n }
}

func WithFeedRecorder(r ports.FeedRecorder) PipelineOption {
	return func(p *Pipeline) { p.feeds = r }
}

func WithLookupRecorder(r ports.LookupRecorder) PipelineOption {
	return func(p *Pipeline) { p.lookups = r }
}

func NewPipeline(assessor *Assessor, providers []ports.ThreatProvider, cfg PipelineConfig, log zerolog.Logger, opts ...PipelineOption) *Pipeline {
	if cfg.AlertLevel == "" {
		cfg.AlertLevel = domain.Critical
	}
	p := &Pipeline{
		assessor:  assessor,
		providers: providers,
		cfg:       cfg,
		log:       log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Collect downloads all feeds concurrently. A failing feed is logged and
// skipped so one outage never stops the run.
func (p *Pipeline) Collect(ctx context.Context) []domain.IOC {
	iocChannel := make(chan domain.IOC, 2000)
	var wg sync.WaitGroup

	for _, feed := range p.providers {
		wg.Add(1)
		go func(f ports.ThreatProvider) {
			defer wg.Done()
			p.log.Info().Str("feed", f.Name()).Msg("📥 downloading feed")

			iocs, err := f.FetchIOCS(ctx)
			if p.feeds != nil {
				p.feeds.RecordFeedFetch(f.Name(), len(iocs), err)
			}
			if err != nil {
				p.log.Error().Err(err).Str("feed", f.Name()).Msg("❌ failed to download feed")
				return
			}
			p.log.Info().Str("feed", f.Name()).Int("iocs", len(iocs)).Msg("✅ feed downloaded")

			for _, ioc := range iocs {
				select {
				case iocChannel <- ioc:
				case <-ctx.Done():
					return
				}
			}
		}(feed)
	}

	go func() {
		wg.Wait()
		close(iocChannel)
	}()

	var all []domain.IOC
	for ioc := range iocChannel {
		all = append(all, ioc)
	}
	return all
}

// Run collects, aggregates and assesses. Assessments come back in order of
// first sighting. The returned error is only set when ctx ends the run early.
func (p *Pipeline) Run(ctx context.Context) ([]domain.Assessment, error) {
	sightings := domain.AggregateSightings(p.Collect(ctx))
	p.log.Info().Int("sightings", len(sightings)).Msg("🔎 assessing unique URLs")

	results := make([]domain.Assessment, len(sightings))
	err := forEach(ctx, len(sightings), p.cfg.Workers, func(ctx context.Context, i int) {
		s := sightings[i]
		req := Request{URL: s.URL, SourceCount: s.SourceCount()}
		if p.checker != nil && i < p.cfg.MaxLookups {
			req.Signals = p.lookup(ctx, s.URL)
		}

		a := p.assessor.Assess(req)
		a.Sources = s.Sources
		results[i] = a

		if p.notifier != nil && a.Level.AtLeast(p.cfg.AlertLevel) {
			if err := p.notifier.NotifyCriticalURL(a); err != nil {
				p.log.Warn().Err(err).Str("url", a.URL).Msg("⚠️ alert not delivered")
			}
		}
	})
	if err != nil {
		return results, err
	}

	p.log.Info().Int("assessed", len(results)).Msg("🏁 ingestion finished")
	return results, nil
}

func (p *Pipeline) lookup(ctx context.Context, rawURL string) domain.ExternalSignals {
	signals, err := p.checker.Check(ctx, rawURL)
	result := "clean"
	switch {
	case err != nil:
		p.log.Debug().Err(err).Str("url", rawURL).Str("checker", p.checker.Name()).Msg("reputation lookup failed")
		signals = domain.ExternalSignals{LookupFailed: true}
		result = "failed"
	case signals.LookupFailed:
		result = "failed"
	case signals.MaliciousCount > 0:
		result = "malicious"
	}
	if p.lookups != nil {
		p.lookups.RecordLookup(p.checker.Name(), result)
	}
	return signals
}
