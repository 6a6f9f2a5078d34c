package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config captures configuration values for the aggregator service.
type Config struct {
	// HTTPPort is the listening port of the query API.
	HTTPPort int
	// SQLiteDSN locates the event store database.
	SQLiteDSN string
	// FeedsPath is the plain-text feed source list, one URL per line.
	FeedsPath string
	// RefreshSchedule is a cron-style expression driving the refresh loop,
	// e.g. "@hourly" or "*/30 * * * *".
	RefreshSchedule string
	// FetchTimeout bounds each individual feed retrieval.
	FetchTimeout time.Duration
	// IngestOffset is the fixed skew the upstream applies to calendar
	// date-times regardless of daylight saving. It is subtracted from
	// textual date bounds supplied in queries.
	IngestOffset time.Duration
	// MaxPatternLength caps regex filter pattern input length.
	MaxPatternLength int
}

func defaults() Config {
	return Config{
		HTTPPort:         3000,
		SQLiteDSN:        "file:aggregator.db",
		FeedsPath:        "links.txt",
		RefreshSchedule:  "@hourly",
		FetchTimeout:     15 * time.Second,
		IngestOffset:     time.Hour,
		MaxPatternLength: 512,
	}
}

// Load builds the effective configuration: defaults, overlaid by an optional
// YAML file named in AGGREGATOR_CONFIG, overlaid by individual environment
// variables. Invalid values are accumulated and reported together.
func Load() (Config, error) {
	cfg := defaults()

	invalid := make([]string, 0, 2)

	if path := strings.TrimSpace(os.Getenv("AGGREGATOR_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if portValue := strings.TrimSpace(os.Getenv("AGGREGATOR_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "AGGREGATOR_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("AGGREGATOR_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if feeds := strings.TrimSpace(os.Getenv("AGGREGATOR_FEEDS")); feeds != "" {
		cfg.FeedsPath = feeds
	}

	if schedule := strings.TrimSpace(os.Getenv("AGGREGATOR_REFRESH")); schedule != "" {
		cfg.RefreshSchedule = schedule
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("AGGREGATOR_FETCH_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "AGGREGATOR_FETCH_TIMEOUT")
		} else {
			cfg.FetchTimeout = timeout
		}
	}

	if offsetValue := strings.TrimSpace(os.Getenv("AGGREGATOR_INGEST_OFFSET")); offsetValue != "" {
		offset, err := time.ParseDuration(offsetValue)
		if err != nil || offset < 0 {
			invalid = append(invalid, "AGGREGATOR_INGEST_OFFSET")
		} else {
			cfg.IngestOffset = offset
		}
	}

	if lengthValue := strings.TrimSpace(os.Getenv("AGGREGATOR_MAX_PATTERN_LENGTH")); lengthValue != "" {
		length, err := strconv.Atoi(lengthValue)
		if err != nil || length <= 0 {
			invalid = append(invalid, "AGGREGATOR_MAX_PATTERN_LENGTH")
		} else {
			cfg.MaxPatternLength = length
		}
	}

	if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
		invalid = append(invalid, "AGGREGATOR_REFRESH")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// fileConfig mirrors Config for the YAML file, with durations as strings so
// "15s" style values work.
type fileConfig struct {
	HTTPPort         int    `yaml:"http_port"`
	SQLiteDSN        string `yaml:"sqlite_dsn"`
	FeedsPath        string `yaml:"feeds_path"`
	RefreshSchedule  string `yaml:"refresh_schedule"`
	FetchTimeout     string `yaml:"fetch_timeout"`
	IngestOffset     string `yaml:"ingest_offset"`
	MaxPatternLength int    `yaml:"max_pattern_length"`
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if file.HTTPPort > 0 {
		cfg.HTTPPort = file.HTTPPort
	}
	if file.SQLiteDSN != "" {
		cfg.SQLiteDSN = file.SQLiteDSN
	}
	if file.FeedsPath != "" {
		cfg.FeedsPath = file.FeedsPath
	}
	if file.RefreshSchedule != "" {
		cfg.RefreshSchedule = file.RefreshSchedule
	}
	if file.FetchTimeout != "" {
		timeout, err := time.ParseDuration(file.FetchTimeout)
		if err != nil || timeout <= 0 {
			return fmt.Errorf("invalid fetch_timeout in config file %s: %q", path, file.FetchTimeout)
		}
		cfg.FetchTimeout = timeout
	}
	if file.IngestOffset != "" {
		offset, err := time.ParseDuration(file.IngestOffset)
		if err != nil || offset < 0 {
			return fmt.Errorf("invalid ingest_offset in config file %s: %q", path, file.IngestOffset)
		}
		cfg.IngestOffset = offset
	}
	if file.MaxPatternLength > 0 {
		cfg.MaxPatternLength = file.MaxPatternLength
	}

	return nil
}
