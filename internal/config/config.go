package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"stockview/internal/dashboard"
	"stockview/internal/dataset"
	"stockview/internal/domain"
	"stockview/internal/indicator"
)

// DefaultPath is used when STOCKVIEW_CONFIG is not set.
const DefaultPath = "config/stockview.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stockview.
type Config struct {
	Storage    Storage    `yaml:"storage"`
	Dataset    Dataset    `yaml:"dataset"`
	Server     Server     `yaml:"server"`
	Alpaca     Alpaca     `yaml:"alpaca"`
	Logging    Logging    `yaml:"logging"`
	Controls   Controls   `yaml:"controls"`
	Oscillator Oscillator `yaml:"oscillator"`
	Fetch      Fetch      `yaml:"fetch"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Dataset selects where the dashboard loads its bars from.
type Dataset struct {
	Source  string `yaml:"source"` // csv, parquet or sqlite
	CSVPath string `yaml:"csv_path"`
	Market  string `yaml:"market"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Controls bounds the two window controls.
type Controls struct {
	SMA dashboard.Bounds `yaml:"sma"`
	RSI dashboard.Bounds `yaml:"rsi"`
}

// Oscillator tunes the RSI computation.
type Oscillator struct {
	FlatPolicy string `yaml:"flat_policy"`
}

// Fetch controls the Alpaca daily bar download job.
type Fetch struct {
	Symbols         []string `yaml:"symbols"`
	StartDate       string   `yaml:"start_date"`
	EndDate         string   `yaml:"end_date"`
	BatchSize       int      `yaml:"batch_size"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	MaxRetries      int      `yaml:"max_retries"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the config file location: STOCKVIEW_CONFIG when set,
// DefaultPath otherwise.
func Path() string {
	if v := os.Getenv("STOCKVIEW_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path, applies
// environment variable overrides, fills in defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("CSV_PATH"); v != "" {
		cfg.Dataset.CSVPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STOCKVIEW_ADDR"); v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("STOCKVIEW_ADDR: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("STOCKVIEW_ADDR port: %w", err)
		}
		cfg.Server.Host, cfg.Server.Port = host, p
	}

	// Standard Alpaca env vars, the names the SDK itself reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/stockview.db"
	}
	if cfg.Dataset.Source == "" {
		cfg.Dataset.Source = "csv"
	}
	if cfg.Dataset.CSVPath == "" {
		cfg.Dataset.CSVPath = "data/all_stocks_5yr.csv"
	}
	if cfg.Dataset.Market == "" {
		cfg.Dataset.Market = "us"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Alpaca.BaseURL == "" {
		cfg.Alpaca.BaseURL = "https://api.alpaca.markets"
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "sip"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Controls.SMA == (dashboard.Bounds{}) {
		cfg.Controls.SMA = dashboard.DefaultSMABounds
	}
	if cfg.Controls.RSI == (dashboard.Bounds{}) {
		cfg.Controls.RSI = dashboard.DefaultRSIBounds
	}
	if cfg.Oscillator.FlatPolicy == "" {
		cfg.Oscillator.FlatPolicy = string(indicator.FlatUndefined)
	}
	if cfg.Fetch.StartDate == "" {
		cfg.Fetch.StartDate = "2013-01-01"
	}
	if cfg.Fetch.BatchSize == 0 {
		cfg.Fetch.BatchSize = 100
	}
	if cfg.Fetch.RateLimitPerMin == 0 {
		cfg.Fetch.RateLimitPerMin = 200
	}
	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 3
	}
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Dataset.Source {
	case "csv", "parquet", "sqlite":
	default:
		return fmt.Errorf("dataset.source %q: want csv, parquet or sqlite", c.Dataset.Source)
	}
	if err := c.Controls.SMA.Check(); err != nil {
		return fmt.Errorf("controls.sma: %w", err)
	}
	if err := c.Controls.RSI.Check(); err != nil {
		return fmt.Errorf("controls.rsi: %w", err)
	}
	if _, err := indicator.ParseFlatPolicy(c.Oscillator.FlatPolicy); err != nil {
		return fmt.Errorf("oscillator.flat_policy: %w", err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// FlatPolicy returns the parsed oscillator flat-run policy.
func (c *Config) FlatPolicy() indicator.FlatPolicy {
	p, _ := indicator.ParseFlatPolicy(c.Oscillator.FlatPolicy)
	return p
}

// DatasetSource returns where the dashboard dataset is loaded from.
func (c *Config) DatasetSource() dataset.Source {
	return dataset.Source{
		Kind:       c.Dataset.Source,
		CSVPath:    c.Dataset.CSVPath,
		DataDir:    c.Storage.DataDir,
		SQLitePath: c.Storage.SQLitePath,
		Market:     domain.Market(c.Dataset.Market),
	}
}
