package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/hive-corporation/phishwatch/internal/adapter/exporter"
	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/service"
)

const maxBodyBytes = 4 << 20

type RestOptions struct {
	RequestTimeout time.Duration
	MaxBatchSize   int
	Workers        int
}

type RestHandler struct {
	assessor *service.Assessor
	opts     RestOptions
	log      zerolog.Logger
}

func NewRestHandler(assessor *service.Assessor, opts RestOptions, log zerolog.Logger) *RestHandler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 1000
	}
	return &RestHandler{assessor: assessor, opts: opts, log: log}
}

// Register mounts every endpoint on r.
func (h *RestHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/health", h.Health).Methods("GET")

	r.HandleFunc("/api/v1/threats/score", h.ScoreURL).Methods("POST")
	r.HandleFunc("/api/v1/threats/validate", h.ValidateURL).Methods("POST")

	r.HandleFunc("/api/v1/assess", h.Assess).Methods("POST")
	r.HandleFunc("/api/v1/assess/batch", h.AssessBatch).Methods("POST")
	r.HandleFunc("/api/v1/features", h.Features).Methods("GET")

	r.HandleFunc("/api/v1/iocs/feed", h.IOCFeed).Methods("POST")
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"service":        "phishwatch-api",
		"schema_version": h.assessor.Schema(),
		"threshold":      h.assessor.Threshold(),
	}
	writeJSON(w, http.StatusOK, response)
}

type urlRequest struct {
	URL         string                 `json:"url"`
	SourceCount any                    `json:"source_count"`
	Signals     domain.ExternalSignals `json:"external_signals"`
}

// toRequest defaults an absent or unreadable source_count to one feed, as
// the scoring endpoints always did. Numeric strings are accepted.
func (u urlRequest) toRequest() service.Request {
	req := service.Request{URL: u.URL, SourceCount: 1, Signals: u.Signals}
	if n, ok := domain.CoerceCount(u.SourceCount); ok {
		req.SourceCount = n
	}
	return req
}

// ScoreURL returns the bare score and level.
func (h *RestHandler) ScoreURL(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeURL(w, r)
	if !ok {
		return
	}
	req := in.toRequest()

	breakdown := domain.ScoreDetailed(req.URL, req.SourceCount, req.Signals)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":       req.URL,
		"score":     breakdown.Total,
		"level":     domain.Classify(breakdown.Total),
		"breakdown": breakdown,
	})
}

// ValidateURL answers "is this malicious" with a readable summary.
func (h *RestHandler) ValidateURL(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeURL(w, r)
	if !ok {
		return
	}
	req := in.toRequest()

	score := domain.Score(req.URL, req.SourceCount, req.Signals)
	level := domain.Classify(score)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":          req.URL,
		"threat_score": score,
		"threat_level": level,
		"valid":        true,
		"malicious":    score >= domain.MaliciousScore,
		"details":      fmt.Sprintf("Threat assessment completed. Score: %d/100, Level: %s", score, level),
	})
}

// Assess returns the full assessment for one URL.
func (h *RestHandler) Assess(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeURL(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.assessor.Assess(in.toRequest()))
}

type batchRequest struct {
	URLs []json.RawMessage `json:"urls"`
}

// batchEntry decodes one element of "urls": an object or a bare URL string.
// An element that is neither comes back with Invalid set.
func batchEntry(i int, raw json.RawMessage) service.Request {
	var rawURL string
	if err := json.Unmarshal(raw, &rawURL); err == nil {
		return urlRequest{URL: rawURL}.toRequest()
	}
	var u urlRequest
	if err := json.Unmarshal(raw, &u); err != nil {
		return service.Request{URL: string(raw), Invalid: fmt.Errorf("urls[%d]: %w", i, err)}
	}
	return u.toRequest()
}

func (h *RestHandler) AssessBatch(w http.ResponseWriter, r *http.Request) {
	results, ok := h.assessBatch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}

// IOCFeed assesses a batch and renders it for SIEM ingestion.
func (h *RestHandler) IOCFeed(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	exp, err := exporter.ByName(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported format (use 'cef', 'stix', or 'jsonl')")
		return
	}

	minLevel := domain.Informational
	if v := r.URL.Query().Get("min_level"); v != "" {
		if minLevel, err = domain.ParseThreatLevel(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	results, ok := h.assessBatch(w, r)
	if !ok {
		return
	}

	contentType := "application/json; charset=utf-8"
	switch exp.Format() {
	case "cef":
		contentType = "text/plain; charset=utf-8"
	case "jsonl":
		contentType = "application/x-ndjson"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if err := exp.Export(w, exporter.FilterByLevel(results, minLevel)); err != nil {
		h.log.Error().Err(err).Str("format", exp.Format()).Msg("Error writing IOC feed response")
	}
}

// Features returns the feature record of ?url= under ?schema= (or the
// handler's schema).
func (h *RestHandler) Features(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "missing 'url' parameter")
		return
	}

	schema := h.assessor.Schema()
	if v := r.URL.Query().Get("schema"); v != "" {
		parsed, err := domain.ParseSchemaVersion(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		schema = parsed
	}

	extractor, err := domain.NewExtractor(schema)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build extractor")
		return
	}

	rec, err := extractor.Extract(rawURL)
	response := map[string]interface{}{
		"url":            rawURL,
		"schema_version": schema,
		"features":       rec,
	}
	if err != nil {
		response["extraction_failed"] = true
		response["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *RestHandler) assessBatch(w http.ResponseWriter, r *http.Request) ([]domain.Assessment, bool) {
	var in batchRequest
	if err := decodeBody(r, &in); err != nil {
		h.log.Warn().Err(err).Msg("Failed to decode batch request")
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return nil, false
	}
	if len(in.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "missing 'urls' parameter")
		return nil, false
	}
	if len(in.URLs) > h.opts.MaxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch of %d exceeds the limit of %d urls", len(in.URLs), h.opts.MaxBatchSize))
		return nil, false
	}

	reqs := make([]service.Request, len(in.URLs))
	for i, raw := range in.URLs {
		reqs[i] = batchEntry(i, raw)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	results, err := service.AssessAll(ctx, h.assessor, reqs, h.opts.Workers)
	if err != nil {
		h.log.Warn().Err(err).Int("urls", len(reqs)).Msg("Batch assessment interrupted")
		writeError(w, http.StatusServiceUnavailable, "batch assessment timed out")
		return nil, false
	}
	return results, true
}

func (h *RestHandler) decodeURL(w http.ResponseWriter, r *http.Request) (urlRequest, bool) {
	var in urlRequest
	if err := decodeBody(r, &in); err != nil {
		h.log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request")
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return in, false
	}
	if in.URL == "" {
		writeError(w, http.StatusBadRequest, `missing "url" parameter`)
		return in, false
	}
	return in, true
}

func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return errors.New("empty body")
	}
	return err
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// the client has gone away, nothing left to report to
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
