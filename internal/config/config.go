package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pauljones0/wa-catalog-uploader/internal/models"
	"github.com/pauljones0/wa-catalog-uploader/internal/validator"
)

const (
	defaultGraphBaseURL    = "https://graph.facebook.com"
	defaultGraphAPIVersion = "v20.0"
)

type Config struct {
	AccessToken string
	CatalogID   string
	WebsiteURL  string

	GraphBaseURL    string
	GraphAPIVersion string
	Port            string
	ProjectID       string

	RetryAttempts          int
	InitialBackoff         time.Duration
	BatchDelay             time.Duration
	RequestTimeout         time.Duration
	GraphRequestsPerSecond float64
	MaxStoredRuns          int

	LogLevel  slog.Level
	LogFormat string
}

// fileConfig mirrors the optional YAML file named by CONFIG_FILE.
// Values support ${VAR} expansion.
type fileConfig struct {
	AccessToken            string  `yaml:"access_token"`
	CatalogID              string  `yaml:"catalog_id"`
	WebsiteURL             string  `yaml:"website_url"`
	GraphBaseURL           string  `yaml:"graph_base_url"`
	GraphAPIVersion        string  `yaml:"graph_api_version"`
	Port                   string  `yaml:"port"`
	ProjectID              string  `yaml:"project_id"`
	RetryAttempts          *int    `yaml:"retry_attempts"`
	InitialBackoff         string  `yaml:"initial_backoff"`
	BatchDelay             string  `yaml:"batch_delay"`
	RequestTimeout         string  `yaml:"request_timeout"`
	GraphRequestsPerSecond float64 `yaml:"graph_requests_per_second"`
	MaxStoredRuns          int     `yaml:"max_stored_runs"`
	LogLevel               string  `yaml:"log_level"`
	LogFormat              string  `yaml:"log_format"`
}

// LoadDotEnv loads variables from a .env file without overriding the
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	slog.Info("Loaded environment from file", "path", path)
	return nil
}

// Load builds the configuration from CONFIG_FILE (if set) overlaid by
// environment variables.
func Load() (*Config, error) {
	var file fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		parsed, err := readFile(path)
		if err != nil {
			return nil, err
		}
		file = *parsed
		slog.Info("Loaded config file", "path", path)
	}

	lookup := func(key, fromFile, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		if fromFile != "" {
			return fromFile
		}
		return def
	}

	port := lookup("PORT", file.Port, "")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	retryAttempts := 3
	if file.RetryAttempts != nil {
		retryAttempts = *file.RetryAttempts
	}
	if v := os.Getenv("RETRY_ATTEMPTS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_ATTEMPTS %q: %w", v, err)
		}
		retryAttempts = parsed
	}
	if retryAttempts < 0 {
		return nil, fmt.Errorf("invalid RETRY_ATTEMPTS %d: must not be negative", retryAttempts)
	}

	initialBackoff, err := parseDuration("INITIAL_BACKOFF", lookup("INITIAL_BACKOFF", file.InitialBackoff, "1s"))
	if err != nil {
		return nil, err
	}
	if initialBackoff <= 0 {
		return nil, fmt.Errorf("invalid INITIAL_BACKOFF %s: must be positive", initialBackoff)
	}
	batchDelay, err := parseDuration("BATCH_DELAY", lookup("BATCH_DELAY", file.BatchDelay, "500ms"))
	if err != nil {
		return nil, err
	}
	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", lookup("REQUEST_TIMEOUT", file.RequestTimeout, "30s"))
	if err != nil {
		return nil, err
	}

	rps := file.GraphRequestsPerSecond
	if v := os.Getenv("GRAPH_REQUESTS_PER_SECOND"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid GRAPH_REQUESTS_PER_SECOND %q: %w", v, err)
		}
		rps = parsed
	}

	maxStoredRuns := 50
	if file.MaxStoredRuns > 0 {
		maxStoredRuns = file.MaxStoredRuns
	}
	if v := os.Getenv("MAX_STORED_RUNS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_STORED_RUNS %q: %w", v, err)
		}
		maxStoredRuns = parsed
	}

	logLevel, err := parseLevel(lookup("LOG_LEVEL", file.LogLevel, "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AccessToken:            lookup("ACCESS_TOKEN", file.AccessToken, ""),
		CatalogID:              lookup("CATALOG_ID", file.CatalogID, ""),
		WebsiteURL:             lookup("WEBSITE_URL", file.WebsiteURL, ""),
		GraphBaseURL:           strings.TrimRight(lookup("GRAPH_BASE_URL", file.GraphBaseURL, defaultGraphBaseURL), "/"),
		GraphAPIVersion:        lookup("GRAPH_API_VERSION", file.GraphAPIVersion, defaultGraphAPIVersion),
		Port:                   port,
		ProjectID:              lookup("GOOGLE_CLOUD_PROJECT", file.ProjectID, ""),
		RetryAttempts:          retryAttempts,
		InitialBackoff:         initialBackoff,
		BatchDelay:             batchDelay,
		RequestTimeout:         requestTimeout,
		GraphRequestsPerSecond: rps,
		MaxStoredRuns:          maxStoredRuns,
		LogLevel:               logLevel,
		LogFormat:              lookup("LOG_FORMAT", file.LogFormat, "text"),
	}

	if err := validator.New().ValidateVar(cfg.WebsiteURL, "omitempty,url"); err != nil {
		return nil, fmt.Errorf("invalid WEBSITE_URL %q: %w", cfg.WebsiteURL, err)
	}
	if cfg.ProjectID == "" {
		slog.Warn("GOOGLE_CLOUD_PROJECT not set, profiles and run reports will not be persisted")
	}
	return cfg, nil
}

// Connection returns the connection snapshot described by the config.
func (c *Config) Connection() models.Connection {
	return models.Connection{
		AccessToken: c.AccessToken,
		Catalog:     models.ParseCatalogRef(c.CatalogID),
		WebsiteURL:  c.WebsiteURL,
	}
}

// GraphURL is the versioned API base, e.g. https://graph.facebook.com/v20.0.
func (c *Config) GraphURL() string {
	return c.GraphBaseURL + "/" + c.GraphAPIVersion
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func readFile(path string) (*fileConfig, error) {
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(rawBytes))), &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", value, err)
	}
	return level, nil
}
