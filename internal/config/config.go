package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/malbeclabs/aquabot/internal/chart"
	"github.com/malbeclabs/aquabot/internal/store"
	"github.com/malbeclabs/aquabot/internal/table"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "AQUABOT_"

	SinkLocal = "local"
	SinkS3    = "s3"

	DefaultListenAddr  = ":5000"
	DefaultMetricsAddr = ":9090"
)

// Config is the complete service configuration.
type Config struct {
	Data   DataConfig   `yaml:"data"`
	Server ServerConfig `yaml:"server"`
	Chart  ChartConfig  `yaml:"chart"`
}

type DataConfig struct {
	DistrictsPath    string `yaml:"districts_path"`
	BlocksPath       string `yaml:"blocks_path"`
	RechargePath     string `yaml:"recharge_path"`
	AvailabilityPath string `yaml:"availability_path"`
	// Loader is csv or duckdb.
	Loader    string `yaml:"loader"`
	Delimiter string `yaml:"delimiter"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ChartConfig struct {
	// Sink is local or s3.
	Sink         string        `yaml:"sink"`
	Dir          string        `yaml:"dir"`
	URLPrefix    string        `yaml:"url_prefix"`
	WidthInches  float64       `yaml:"width_inches"`
	HeightInches float64       `yaml:"height_inches"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	S3           S3Config      `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	EndpointURL     string `yaml:"endpoint_url"`
	PublicURL       string `yaml:"public_url"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			DistrictsPath:    store.DefaultDistrictsPath,
			BlocksPath:       store.DefaultBlocksPath,
			RechargePath:     store.DefaultRechargePath,
			AvailabilityPath: store.DefaultAvailabilityPath,
			Loader:           table.LoaderCSV,
			Delimiter:        ",",
		},
		Server: ServerConfig{
			ListenAddr:      DefaultListenAddr,
			MetricsAddr:     DefaultMetricsAddr,
			CORSOrigins:     []string{"*"},
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Chart: ChartConfig{
			Sink:         SinkLocal,
			Dir:          chart.DefaultDir,
			URLPrefix:    chart.DefaultURLPrefix,
			WidthInches:  10,
			HeightInches: 6,
		},
	}
}

// Load reads configuration from an optional YAML file and then applies
// environment overrides.
// Priority: CLI flags > Environment variables > Config file > Defaults
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"DATA_DISTRICTS_PATH":        &c.Data.DistrictsPath,
		"DATA_BLOCKS_PATH":           &c.Data.BlocksPath,
		"DATA_RECHARGE_PATH":         &c.Data.RechargePath,
		"DATA_AVAILABILITY_PATH":     &c.Data.AvailabilityPath,
		"DATA_LOADER":                &c.Data.Loader,
		"DATA_DELIMITER":             &c.Data.Delimiter,
		"SERVER_LISTEN_ADDR":         &c.Server.ListenAddr,
		"SERVER_METRICS_ADDR":        &c.Server.MetricsAddr,
		"CHART_SINK":                 &c.Chart.Sink,
		"CHART_DIR":                  &c.Chart.Dir,
		"CHART_URL_PREFIX":           &c.Chart.URLPrefix,
		"CHART_S3_BUCKET":            &c.Chart.S3.Bucket,
		"CHART_S3_REGION":            &c.Chart.S3.Region,
		"CHART_S3_PREFIX":            &c.Chart.S3.Prefix,
		"CHART_S3_ENDPOINT_URL":      &c.Chart.S3.EndpointURL,
		"CHART_S3_PUBLIC_URL":        &c.Chart.S3.PublicURL,
		"CHART_S3_ACCESS_KEY_ID":     &c.Chart.S3.AccessKeyID,
		"CHART_S3_SECRET_ACCESS_KEY": &c.Chart.S3.SecretAccessKey,
	}
	for name, dst := range strs {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := getenv(EnvPrefix + "SERVER_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	durations := map[string]*time.Duration{
		"SERVER_READ_TIMEOUT":     &c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":    &c.Server.WriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT": &c.Server.ShutdownTimeout,
		"CHART_CACHE_TTL":         &c.Chart.CacheTTL,
	}
	for name, dst := range durations {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	floats := map[string]*float64{
		"CHART_WIDTH_INCHES":  &c.Chart.WidthInches,
		"CHART_HEIGHT_INCHES": &c.Chart.HeightInches,
	}
	for name, dst := range floats {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = f
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := table.NewLoader(c.Data.Loader, 0); err != nil {
		return fmt.Errorf("invalid data loader: %w", err)
	}
	if utf8.RuneCountInString(c.Data.Delimiter) > 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Data.Delimiter)
	}
	for name, path := range map[string]string{
		"districts":    c.Data.DistrictsPath,
		"blocks":       c.Data.BlocksPath,
		"recharge":     c.Data.RechargePath,
		"availability": c.Data.AvailabilityPath,
	} {
		if path == "" {
			return fmt.Errorf("%s path cannot be empty", name)
		}
	}

	if c.Server.ListenAddr == "" {
		return errors.New("listen address cannot be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return errors.New("server timeouts cannot be negative")
	}

	switch c.Chart.Sink {
	case SinkLocal:
		if c.Chart.Dir == "" {
			return errors.New("chart dir cannot be empty for the local sink")
		}
	case SinkS3:
		if c.Chart.S3.Bucket == "" {
			return errors.New("chart s3 bucket cannot be empty")
		}
		if c.Chart.S3.Region == "" && c.Chart.S3.EndpointURL == "" {
			return errors.New("chart s3 region or endpoint url is required")
		}
	default:
		return fmt.Errorf("invalid chart sink: %q. Must be 'local' or 's3'", c.Chart.Sink)
	}
	if c.Chart.WidthInches <= 0 || c.Chart.HeightInches <= 0 {
		return errors.New("chart width and height must be > 0")
	}
	return nil
}

// Comma returns the configured field delimiter, or zero for the loader
// default.
func (c *Config) Comma() rune {
	r, _ := utf8.DecodeRuneInString(c.Data.Delimiter)
	if r == utf8.RuneError {
		return 0
	}
	return r
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
