package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hive-corporation/phishwatch/internal/adapter/httpx"
	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

// Config is the full runtime configuration shared by every binary. Values
// come from an optional YAML file, then environment variables, then defaults.
type Config struct {
	Scoring    ScoringConfig    `yaml:"scoring"`
	Server     ServerConfig     `yaml:"server"`
	HTTPClient HTTPClientConfig `yaml:"http_client"`
	Reputation ReputationConfig `yaml:"reputation"`
	Feeds      FeedsConfig      `yaml:"feeds"`
	Slack      SlackConfig      `yaml:"slack"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ScoringConfig struct {
	// Threshold is the phishing probability cut-off, coerced into [0,1].
	// Nil means unset; an explicit 0 is kept.
	Threshold *float64 `yaml:"threshold"`
	Schema    string   `yaml:"schema"`
	ModelPath string   `yaml:"model_path"`
	Workers   int      `yaml:"workers"`
}

type ServerConfig struct {
	RESTPort        string        `yaml:"rest_port"`
	AuthToken       string        `yaml:"auth_token"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBatchSize    int           `yaml:"max_batch_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type HTTPClientConfig struct {
	Timeout              time.Duration `yaml:"timeout"`
	CircuitBreaker       *bool         `yaml:"circuit_breaker"`
	MaxFailures          uint32        `yaml:"max_failures"`
	CircuitTimeout       time.Duration `yaml:"circuit_timeout"`
	MaxRetries           *int          `yaml:"max_retries"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval"`
}

type ReputationConfig struct {
	VirusTotalAPIKey string `yaml:"virustotal_api_key"`
	VirusTotalURL    string `yaml:"virustotal_url"`
	MaxLookups       int    `yaml:"max_lookups"`
}

type FeedsConfig struct {
	Enabled        []string          `yaml:"enabled"`
	URLs           map[string]string `yaml:"urls"`
	OTXAPIKey      string            `yaml:"otx_api_key"`
	PhishTankKey   string            `yaml:"phishtank_app_key"`
	Timeout        time.Duration     `yaml:"timeout"`
	ExportFormat   string            `yaml:"export_format"`
	ExportPath     string            `yaml:"export_path"`
	MinLevel       string            `yaml:"min_level"`
	PushgatewayURL string            `yaml:"pushgateway_url"`
}

type SlackConfig struct {
	BotToken    string `yaml:"bot_token"`
	Channel     string `yaml:"channel"`
	MentionTeam string `yaml:"mention_team"`
	AlertLevel  string `yaml:"alert_level"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// KnownFeeds are the provider names accepted in feeds.enabled.
var KnownFeeds = []string{"urlhaus", "openphish", "phishtank", "otx"}

// Load reads .env (when present) and the YAML file at path, then applies
// environment overrides and defaults. An empty path falls back to
// $PHISHWATCH_CONFIG; no file at all is valid.
func Load(path string) (*Config, error) {
	// .env is optional, real environment variables win
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("PHISHWATCH_CONFIG")
	}

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	coerce(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromBytes parses YAML without reading the environment.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	coerce(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Scoring.Threshold == nil {
		t := domain.DefaultThreshold
		cfg.Scoring.Threshold = &t
	}
	if cfg.Scoring.Schema == "" {
		cfg.Scoring.Schema = string(domain.DefaultSchema)
	}

	if cfg.Server.RESTPort == "" {
		cfg.Server.RESTPort = "8080"
	}
	if cfg.Server.GRPCAddr == "" {
		cfg.Server.GRPCAddr = "localhost:50051"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 5 * time.Second
	}
	if cfg.Server.MaxBatchSize == 0 {
		cfg.Server.MaxBatchSize = 1000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	def := httpx.DefaultConfig()
	if cfg.HTTPClient.Timeout == 0 {
		cfg.HTTPClient.Timeout = def.Timeout
	}
	if cfg.HTTPClient.CircuitBreaker == nil {
		cfg.HTTPClient.CircuitBreaker = &def.EnableCircuitBreaker
	}
	if cfg.HTTPClient.MaxFailures == 0 {
		cfg.HTTPClient.MaxFailures = def.MaxFailures
	}
	if cfg.HTTPClient.CircuitTimeout == 0 {
		cfg.HTTPClient.CircuitTimeout = def.CircuitTimeout
	}
	if cfg.HTTPClient.MaxRetries == nil {
		cfg.HTTPClient.MaxRetries = &def.MaxRetries
	}
	if cfg.HTTPClient.RetryInitialInterval == 0 {
		cfg.HTTPClient.RetryInitialInterval = def.InitialInterval
	}
	if cfg.HTTPClient.RetryMaxInterval == 0 {
		cfg.HTTPClient.RetryMaxInterval = def.MaxInterval
	}

	if cfg.Feeds.Enabled == nil {
		cfg.Feeds.Enabled = []string{"urlhaus", "openphish", "phishtank", "otx"}
	}
	if cfg.Feeds.Timeout == 0 {
		cfg.Feeds.Timeout = 10 * time.Minute
	}
	if cfg.Feeds.ExportFormat == "" {
		cfg.Feeds.ExportFormat = "jsonl"
	}
	if cfg.Feeds.MinLevel == "" {
		cfg.Feeds.MinLevel = string(domain.Informational)
	}

	if cfg.Slack.Channel == "" {
		cfg.Slack.Channel = "#security-alerts"
	}
	if cfg.Slack.MentionTeam == "" {
		cfg.Slack.MentionTeam = "@security-team"
	}
	if cfg.Slack.AlertLevel == "" {
		cfg.Slack.AlertLevel = string(domain.Critical)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := getEnvFloat("PHISH_THRESHOLD"); ok {
		cfg.Scoring.Threshold = &v
	}
	cfg.Scoring.Schema = getEnv("PHISH_SCHEMA", cfg.Scoring.Schema)
	cfg.Scoring.ModelPath = getEnv("PHISH_MODEL_PATH", cfg.Scoring.ModelPath)
	cfg.Scoring.Workers = getEnvInt("PHISH_WORKERS", cfg.Scoring.Workers)

	cfg.Server.RESTPort = getEnv("REST_API_PORT", cfg.Server.RESTPort)
	cfg.Server.GRPCAddr = getEnv("GRPC_LISTEN_ADDR", cfg.Server.GRPCAddr)
	cfg.Server.AuthToken = getEnv("REST_API_AUTH_TOKEN", cfg.Server.AuthToken)

	if v := getEnvInt("HTTP_TIMEOUT_SECONDS", 0); v > 0 {
		cfg.HTTPClient.Timeout = time.Duration(v) * time.Second
	}
	if v, ok := os.LookupEnv("HTTP_CIRCUIT_BREAKER_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.HTTPClient.CircuitBreaker = &b
		}
	}
	if v := getEnvInt("HTTP_CIRCUIT_BREAKER_MAX_FAILURES", 0); v > 0 {
		cfg.HTTPClient.MaxFailures = uint32(v)
	}
	if v := getEnvInt("HTTP_CIRCUIT_BREAKER_TIMEOUT_SECONDS", 0); v > 0 {
		cfg.HTTPClient.CircuitTimeout = time.Duration(v) * time.Second
	}
	if v, ok := os.LookupEnv("HTTP_RETRY_MAX_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTPClient.MaxRetries = &n
		}
	}
	if v := getEnvInt("HTTP_RETRY_INITIAL_INTERVAL_MS", 0); v > 0 {
		cfg.HTTPClient.RetryInitialInterval = time.Duration(v) * time.Millisecond
	}
	if v := getEnvInt("HTTP_RETRY_MAX_INTERVAL_MS", 0); v > 0 {
		cfg.HTTPClient.RetryMaxInterval = time.Duration(v) * time.Millisecond
	}

	cfg.Reputation.VirusTotalAPIKey = getEnv("VIRUSTOTAL_API_KEY", cfg.Reputation.VirusTotalAPIKey)
	cfg.Reputation.MaxLookups = getEnvInt("VT_MAX_LOOKUPS", cfg.Reputation.MaxLookups)

	if v := os.Getenv("PHISH_FEEDS"); v != "" {
		cfg.Feeds.Enabled = splitList(v)
	}
	cfg.Feeds.OTXAPIKey = getEnv("OTX_API_KEY", cfg.Feeds.OTXAPIKey)
	cfg.Feeds.PhishTankKey = getEnv("PHISHTANK_APP_KEY", cfg.Feeds.PhishTankKey)
	cfg.Feeds.ExportFormat = getEnv("PHISH_EXPORT_FORMAT", cfg.Feeds.ExportFormat)
	cfg.Feeds.ExportPath = getEnv("PHISH_EXPORT_PATH", cfg.Feeds.ExportPath)
	cfg.Feeds.PushgatewayURL = getEnv("PUSHGATEWAY_URL", cfg.Feeds.PushgatewayURL)

	cfg.Slack.BotToken = getEnv("SLACK_BOT_TOKEN", cfg.Slack.BotToken)
	cfg.Slack.Channel = getEnv("SLACK_CHANNEL_SECURITY", cfg.Slack.Channel)
	cfg.Slack.MentionTeam = getEnv("SLACK_MENTION_TEAM", cfg.Slack.MentionTeam)
	cfg.Slack.AlertLevel = getEnv("SLACK_ALERT_LEVEL", cfg.Slack.AlertLevel)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
}

// coerce pulls out-of-range numbers back into range instead of failing.
func coerce(cfg *Config) {
	if cfg.Scoring.Threshold != nil {
		t := domain.NormalizeThreshold(*cfg.Scoring.Threshold)
		cfg.Scoring.Threshold = &t
	}
	if cfg.Scoring.Workers < 0 {
		cfg.Scoring.Workers = 0
	}
	if cfg.Reputation.MaxLookups < 0 {
		cfg.Reputation.MaxLookups = 0
	}
	if cfg.Server.MaxBatchSize < 0 {
		cfg.Server.MaxBatchSize = 1000
	}
	if cfg.HTTPClient.MaxRetries != nil && *cfg.HTTPClient.MaxRetries < 0 {
		zero := 0
		cfg.HTTPClient.MaxRetries = &zero
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
}

func validateConfig(cfg *Config) error {
	if _, err := domain.ParseSchemaVersion(cfg.Scoring.Schema); err != nil {
		return fmt.Errorf("invalid scoring.schema: %w", err)
	}
	if _, err := domain.ParseThreatLevel(cfg.Slack.AlertLevel); err != nil {
		return fmt.Errorf("invalid slack.alert_level: %w", err)
	}
	if _, err := domain.ParseThreatLevel(cfg.Feeds.MinLevel); err != nil {
		return fmt.Errorf("invalid feeds.min_level: %w", err)
	}
	switch cfg.Feeds.ExportFormat {
	case "jsonl", "json", "stix", "cef":
	default:
		return fmt.Errorf("invalid feeds.export_format %q", cfg.Feeds.ExportFormat)
	}
	for _, feed := range cfg.Feeds.Enabled {
		if !isKnownFeed(feed) {
			return fmt.Errorf("unknown feed %q (known: %s)", feed, strings.Join(KnownFeeds, ", "))
		}
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging.format %q", cfg.Logging.Format)
	}
	return nil
}

// SchemaVersion returns the validated schema.
// Threshold returns the coerced threshold, the default when none was set.
func (c *Config) Threshold() float64 {
	if c.Scoring.Threshold == nil {
		return domain.DefaultThreshold
	}
	return *c.Scoring.Threshold
}

func (c *Config) SchemaVersion() domain.SchemaVersion {
	v, _ := domain.ParseSchemaVersion(c.Scoring.Schema)
	return v
}

// AlertLevel returns the validated Slack alert level.
func (c *Config) AlertLevel() domain.ThreatLevel {
	l, _ := domain.ParseThreatLevel(c.Slack.AlertLevel)
	return l
}

// MinLevel returns the validated export filter level.
func (c *Config) MinLevel() domain.ThreatLevel {
	l, _ := domain.ParseThreatLevel(c.Feeds.MinLevel)
	return l
}

// ResilientClient converts the http_client section for httpx.New.
func (c *Config) ResilientClient() httpx.Config {
	return httpx.Config{
		Timeout:              c.HTTPClient.Timeout,
		EnableCircuitBreaker: *c.HTTPClient.CircuitBreaker,
		MaxFailures:          c.HTTPClient.MaxFailures,
		CircuitTimeout:       c.HTTPClient.CircuitTimeout,
		MaxRetries:           *c.HTTPClient.MaxRetries,
		InitialInterval:      c.HTTPClient.RetryInitialInterval,
		MaxInterval:          c.HTTPClient.RetryMaxInterval,
	}
}

func isKnownFeed(name string) bool {
	for _, f := range KnownFeeds {
		if f == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string) (float64, bool) {
	val := os.Getenv(key)
	if val == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	return f, err == nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
