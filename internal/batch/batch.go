// Package batch runs many assessments at once: line-oriented input for the
// CLI and tabular CSV scoring.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/service"
)

const maxLineSize = 1024 * 1024

// ReadRequests parses one request per line. A line is either a JSON object
// ({"url": ..., "source_count": ..., "external_signals": {...}}) or a bare
// URL. Blank lines and lines starting with # are skipped. A line that is not
// valid JSON keeps its slot as a request with Invalid set, so the rest of the
// batch is still assessed; only read errors fail the call.
func ReadRequests(r io.Reader) ([]service.Request, error) {
	var reqs []service.Request

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "{") {
			var req service.Request
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				req = service.Request{URL: line, Invalid: fmt.Errorf("line %d: %w", lineNo, err)}
			}
			reqs = append(reqs, req)
			continue
		}

		reqs = append(reqs, service.Request{URL: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return reqs, nil
}

// Runner assesses request lists over a bounded worker pool.
type Runner struct {
	assessor *service.Assessor
	workers  int
	log      zerolog.Logger
}

func NewRunner(assessor *service.Assessor, workers int, log zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = service.DefaultWorkers()
	}
	return &Runner{assessor: assessor, workers: workers, log: log}
}

// Run returns one assessment per request, in input order.
func (r *Runner) Run(ctx context.Context, reqs []service.Request) ([]domain.Assessment, error) {
	start := time.Now()

	results, err := service.AssessAll(ctx, r.assessor, reqs, r.workers)
	if err != nil {
		return nil, err
	}

	failed, malicious := 0, 0
	for _, a := range results {
		if a.ExtractionFailed {
			failed++
		}
		if a.Malicious {
			malicious++
		}
	}
	r.log.Info().
		Int("urls", len(results)).
		Int("malicious", malicious).
		Int("extraction_failed", failed).
		Int("workers", r.workers).
		Dur("elapsed", time.Since(start)).
		Msg("batch assessed")

	return results, nil
}
