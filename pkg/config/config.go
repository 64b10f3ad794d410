package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-corrnet/pkg/algorithms"
	"github.com/dd0wney/cluso-corrnet/pkg/correlation"
	"github.com/dd0wney/cluso-corrnet/pkg/logging"
	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/network"
	"github.com/dd0wney/cluso-corrnet/pkg/pipeline"
	"github.com/dd0wney/cluso-corrnet/pkg/validation"
)

// DateLayout is the format of start_date and end_date
const DateLayout = "2006-01-02"

// Environment overrides applied after the file is read
const (
	EnvThreshold = "CORRNET_THRESHOLD"
	EnvLogLevel  = "CORRNET_LOG_LEVEL"
	EnvWorkers   = "CORRNET_WORKERS"

	EnvS3AccessKeyID     = "CORRNET_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "CORRNET_S3_SECRET_ACCESS_KEY"
)

// Export formats
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatParquet  = "parquet"
	FormatSnapshot = "snapshot"
)

// Config is the on-disk configuration of a run
type Config struct {
	Run         RunConfig         `yaml:"run"`
	Data        DataConfig        `yaml:"data"`
	Returns     ReturnsConfig     `yaml:"returns"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Network     NetworkConfig     `yaml:"network"`
	Community   CommunityConfig   `yaml:"community"`
	Logging     LoggingConfig     `yaml:"logging"`
	Export      ExportConfig      `yaml:"export"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type RunConfig struct {
	Name      string `yaml:"name" validate:"required"`
	OutputDir string `yaml:"output_dir" validate:"required"`
}

// DataConfig locates the price history. Exactly one of PricesFile
// (wide CSV) and PricesDir (one CSV per ticker) must be set.
type DataConfig struct {
	PricesFile  string   `yaml:"prices_file"`
	PricesDir   string   `yaml:"prices_dir"`
	TickersFile string   `yaml:"tickers_file"`
	Tickers     []string `yaml:"tickers" validate:"dive,ticker"`
	StartDate   string   `yaml:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string   `yaml:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// The stage sections below are checked by the stages' own Validate methods

type ReturnsConfig struct {
	Kind string `yaml:"kind"`
}

type CorrelationConfig struct {
	MinOverlap int `yaml:"min_overlap"`
	Workers    int `yaml:"workers"`
	Window     int `yaml:"window"`
}

type NetworkConfig struct {
	Threshold  float64 `yaml:"threshold"`
	WeightMode string  `yaml:"weight_mode"`
	TopK       *int    `yaml:"top_k"`
	TopKScope  string  `yaml:"top_k_scope"`
}

type CommunityConfig struct {
	MaxPasses int `yaml:"max_passes"`
	MaxSweeps int `yaml:"max_sweeps"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

type ExportConfig struct {
	Formats  []string `yaml:"formats" validate:"dive,oneof=csv json parquet snapshot"`
	S3Bucket string   `yaml:"s3_bucket"`
	S3Prefix string   `yaml:"s3_prefix"`
	S3Region string   `yaml:"s3_region"`
	// S3Endpoint points at an S3-compatible service such as MinIO
	S3Endpoint  string `yaml:"s3_endpoint" validate:"omitempty,url"`
	S3PathStyle bool   `yaml:"s3_path_style"`

	// Credentials only come from the environment
	S3AccessKeyID     string `yaml:"-"`
	S3SecretAccessKey string `yaml:"-"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Name:      "corrnet",
			OutputDir: "./data/processed",
		},
		Data: DataConfig{
			PricesDir: "./data/raw",
			StartDate: "2020-01-01",
			EndDate:   "2024-01-01",
		},
		Returns: ReturnsConfig{Kind: string(market.SimpleReturn)},
		Correlation: CorrelationConfig{
			MinOverlap: 2,
			Workers:    1,
		},
		Network: NetworkConfig{
			Threshold:  0.5,
			WeightMode: string(network.WeightAbsolute),
			TopKScope:  string(network.TopKGlobal),
		},
		Community: CommunityConfig{
			MaxPasses: 20,
			MaxSweeps: 100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
		Export: ExportConfig{
			Formats: []string{FormatCSV, FormatJSON},
		},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result. An empty path uses the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates without looking at the environment
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return validation.NewConfigurationError("config", "yaml", "%v", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	cv := validation.NewConfigValidator("env")

	if v, ok := lookup(EnvThreshold); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		cv.Custom(EnvThreshold, func() error { return err })
		if err == nil {
			c.Network.Threshold = f
		}
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		cv.Custom(EnvWorkers, func() error { return err })
		if err == nil {
			c.Correlation.Workers = n
		}
	}
	if v, ok := lookup(EnvS3AccessKeyID); ok {
		c.Export.S3AccessKeyID = v
	}
	if v, ok := lookup(EnvS3SecretAccessKey); ok {
		c.Export.S3SecretAccessKey = v
	}

	return cv.Validate()
}

// Validate checks struct tags, then the rules that span fields, then the
// options of every pipeline stage
func (c *Config) Validate() error {
	cv := validation.NewConfigValidator("config").
		Merge(validation.NewStructValidator().Struct("config", c))

	cv.Custom("logging.level", func() error {
		var l logging.Level
		return l.UnmarshalText([]byte(c.Logging.Level))
	})
	cv.Custom("data", func() error {
		if (c.Data.PricesFile == "") == (c.Data.PricesDir == "") {
			return errors.New("exactly one of prices_file and prices_dir must be set")
		}
		return nil
	})
	start, startErr := parseDate(c.Data.StartDate)
	end, endErr := parseDate(c.Data.EndDate)
	cv.When(startErr == nil && endErr == nil && !start.IsZero() && !end.IsZero(), func(cv *validation.ConfigValidator) {
		cv.Custom("data.end_date", func() error {
			if !end.After(start) {
				return fmt.Errorf("%s is not after start_date %s", c.Data.EndDate, c.Data.StartDate)
			}
			return nil
		})
	})
	cv.When(c.Export.S3Bucket != "", func(cv *validation.ConfigValidator) {
		cv.Required("export.s3_region", c.Export.S3Region)
	})

	cv.Merge(c.PipelineConfig().Validate())
	return cv.Validate()
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}

// Start returns the inclusive start date, zero when open
func (c *Config) Start() time.Time {
	t, _ := parseDate(c.Data.StartDate)
	return t
}

// End returns the exclusive end date, zero when open
func (c *Config) End() time.Time {
	t, _ := parseDate(c.Data.EndDate)
	return t
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}

// HasFormat reports whether an export format is enabled
func (c *Config) HasFormat(format string) bool {
	for _, f := range c.Export.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// PipelineConfig converts the file settings into stage options
func (c *Config) PipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Returns = market.ReturnsOptions{Kind: market.ReturnKind(c.Returns.Kind)}
	cfg.Correlation = correlation.EngineOptions{
		MinOverlap: c.Correlation.MinOverlap,
		Workers:    c.Correlation.Workers,
	}
	cfg.Window = c.Correlation.Window
	cfg.Network = network.Policy{
		Threshold:  c.Network.Threshold,
		WeightMode: network.WeightMode(c.Network.WeightMode),
		TopK:       c.Network.TopK,
		TopKScope:  network.TopKScope(c.Network.TopKScope),
	}
	cfg.Community = algorithms.LouvainOptions{
		MaxPasses: c.Community.MaxPasses,
		MaxSweeps: c.Community.MaxSweeps,
		MinGain:   algorithms.DefaultLouvainOptions().MinGain,
	}
	return cfg
}

// FileOptions returns the rotating log file settings
func (c *Config) FileOptions() logging.FileOptions {
	return logging.FileOptions{
		Path:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxAgeDays: c.Logging.MaxAgeDays,
		MaxBackups: c.Logging.MaxBackups,
		Compress:   c.Logging.Compress,
	}
}
