// Package config handles configuration loading for cryptoverlay.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

// EnvPrefix prefixes every environment override, e.g. CRYPTOVERLAY_REFRESH_INTERVAL.
const EnvPrefix = "CRYPTOVERLAY"

// Config represents the complete application configuration.
type Config struct {
	Symbols         []string        `mapstructure:"symbols"          yaml:"symbols" json:"symbols"`
	RefreshInterval int             `mapstructure:"refresh_interval" yaml:"refresh_interval" json:"refresh_interval"` // seconds
	Display         DisplayConfig   `mapstructure:"display"          yaml:"display" json:"display"`
	Sources         SourcesConfig   `mapstructure:"sources"          yaml:"sources" json:"sources"`
	Reference       ReferenceConfig `mapstructure:"reference"        yaml:"reference" json:"reference"`
	HTTP            HTTPConfig      `mapstructure:"http"             yaml:"http" json:"http"`
	Engine          EngineConfig    `mapstructure:"engine"           yaml:"engine" json:"engine"`
	Alerts          AlertsConfig    `mapstructure:"alerts"           yaml:"alerts" json:"alerts"`
	API             APIConfig       `mapstructure:"api"              yaml:"api" json:"api"`
	Redis           RedisConfig     `mapstructure:"redis"            yaml:"redis" json:"redis"`
	Postgres        PostgresConfig  `mapstructure:"postgres"         yaml:"postgres" json:"postgres"`
	Logging         LoggingConfig   `mapstructure:"logging"          yaml:"logging" json:"logging"`
}

// DisplayConfig holds terminal rendering settings.
type DisplayConfig struct {
	Mode   string `mapstructure:"mode"   yaml:"mode" json:"mode"` // "compact", "standard", "detailed", "cards"
	Colors bool   `mapstructure:"colors" yaml:"colors" json:"colors"`
}

// SourcesConfig holds the market data endpoints.
type SourcesConfig struct {
	FX        FXConfig        `mapstructure:"fx"        yaml:"fx" json:"fx"`
	Primary   PrimaryConfig   `mapstructure:"primary"   yaml:"primary" json:"primary"`
	Secondary SecondaryConfig `mapstructure:"secondary" yaml:"secondary" json:"secondary"`
}

// FXConfig holds the exchange-rate source settings.
type FXConfig struct {
	URL              string `mapstructure:"url"               yaml:"url" json:"url"`
	Currency         string `mapstructure:"currency"          yaml:"currency" json:"currency"`
	FallbackURL      string `mapstructure:"fallback_url"      yaml:"fallback_url" json:"fallback_url"`
	FallbackSelector string `mapstructure:"fallback_selector" yaml:"fallback_selector" json:"fallback_selector"`
}

// PrimaryConfig holds the primary-market (Binance) settings.
type PrimaryConfig struct {
	BaseURL   string `mapstructure:"base_url"   yaml:"base_url" json:"base_url"`
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"` // requests per second
}

// SecondaryConfig holds the secondary-market (Upbit) settings and symbol mapping.
type SecondaryConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Quote   string `mapstructure:"quote"    yaml:"quote" json:"quote"`  // secondary quote currency, e.g. "KRW"
	Suffix  string `mapstructure:"suffix"   yaml:"suffix" json:"suffix"` // primary quote suffix, e.g. "USDT"
}

// ReferenceConfig controls the daily reference price.
type ReferenceConfig struct {
	Hour     int    `mapstructure:"hour"      yaml:"hour" json:"hour"`
	Timezone string `mapstructure:"timezone"  yaml:"timezone" json:"timezone"`
	CacheTTL int    `mapstructure:"cache_ttl" yaml:"cache_ttl" json:"cache_ttl"` // seconds
}

// HTTPConfig holds outbound HTTP client settings.
type HTTPConfig struct {
	Timeout int `mapstructure:"timeout" yaml:"timeout" json:"timeout"` // seconds
}

// EngineConfig holds aggregation engine settings.
type EngineConfig struct {
	ConcurrentFetches int `mapstructure:"concurrent_fetches" yaml:"concurrent_fetches" json:"concurrent_fetches"`
}

// AlertsConfig holds price alert rules keyed by symbol.
type AlertsConfig struct {
	Enabled bool                 `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Rules   map[string]AlertRule `mapstructure:"rules"   yaml:"rules" json:"rules"`
}

// AlertRule holds the thresholds for one symbol. Zero disables a side.
type AlertRule struct {
	Above float64 `mapstructure:"above" yaml:"above,omitempty" json:"above"`
	Below float64 `mapstructure:"below" yaml:"below,omitempty" json:"below"`
}

// APIConfig holds the local HTTP/WebSocket API settings.
type APIConfig struct {
	Enabled     bool     `mapstructure:"enabled"      yaml:"enabled" json:"enabled"`
	Host        string   `mapstructure:"host"         yaml:"host" json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// RedisConfig holds the latest-snapshot sink settings.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"    yaml:"enabled" json:"enabled"`
	Addr      string `mapstructure:"addr"       yaml:"addr" json:"addr"`
	Password  string `mapstructure:"password"   yaml:"password" json:"password"`
	DB        int    `mapstructure:"db"         yaml:"db" json:"db"`
	TTL       int    `mapstructure:"ttl"        yaml:"ttl" json:"ttl"` // seconds
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix" json:"key_prefix"`
}

// PostgresConfig holds the price history sink settings.
type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	DSN     string `mapstructure:"dsn"     yaml:"dsn" json:"dsn"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level" json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
	File   string `mapstructure:"file"   yaml:"file" json:"file"`   // empty disables file output
}

// RefreshEvery returns the refresh interval as a duration.
func (c *Config) RefreshEvery() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

// Location returns the timezone the reference hour is evaluated in.
func (c *Config) Location() (*time.Location, error) {
	return utils.LoadLocation(c.Reference.Timezone)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(utils.NormalizeSymbols(c.Symbols)) == 0 {
		errs = append(errs, errors.New("symbols: at least one symbol is required"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("refresh_interval: must be positive, got %d", c.RefreshInterval))
	}
	if c.Reference.Hour < 0 || c.Reference.Hour > 23 {
		errs = append(errs, fmt.Errorf("reference.hour: must be 0-23, got %d", c.Reference.Hour))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("reference.timezone: %w", err))
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		errs = append(errs, fmt.Errorf("api.port: invalid port %d", c.API.Port))
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn: required when postgres is enabled"))
	}
	return errors.Join(errs...)
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.cryptoverlay/config.yaml (home directory)
//  3. /etc/cryptoverlay/config.yaml (system)
//
// Environment variables override config file values.
// Format: CRYPTOVERLAY_<SECTION>_<KEY>, e.g., CRYPTOVERLAY_REDIS_ADDR
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".cryptoverlay"))
	v.AddConfigPath("/etc/cryptoverlay")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

// Default returns the configuration used when no file or env override exists.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// Defaults always decode; a failure here is a programming error.
		panic(err)
	}
	return cfg
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// DefaultPath returns the per-user config file path.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".cryptoverlay", "config.yaml")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override sensitive values from environment
	overrideFromEnv(&cfg)

	cfg.Symbols = utils.NormalizeSymbols(cfg.Symbols)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("symbols", []string{"ETHUSDT", "BTCUSDT"})
	v.SetDefault("refresh_interval", 2)

	// Display defaults
	v.SetDefault("display.mode", "standard")
	v.SetDefault("display.colors", true)

	// Source defaults
	v.SetDefault("sources.fx.url", "https://api.exchangerate-api.com/v4/latest/USD")
	v.SetDefault("sources.fx.currency", "KRW")
	v.SetDefault("sources.fx.fallback_url", "")
	v.SetDefault("sources.fx.fallback_selector", "")
	v.SetDefault("sources.primary.base_url", "https://api.binance.com")
	v.SetDefault("sources.primary.rate_limit", 10)
	v.SetDefault("sources.secondary.base_url", "https://api.upbit.com")
	v.SetDefault("sources.secondary.quote", utils.DefaultSecondaryQuote)
	v.SetDefault("sources.secondary.suffix", utils.DefaultPrimarySuffix)

	// Reference price defaults
	v.SetDefault("reference.hour", utils.DefaultReferenceHour)
	v.SetDefault("reference.timezone", "Local")
	v.SetDefault("reference.cache_ttl", 3600) // 1 hour

	v.SetDefault("http.timeout", 10)
	v.SetDefault("engine.concurrent_fetches", 1)

	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.rules", map[string]any{})

	// API defaults (local only)
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8787)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Sink defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 60)
	v.SetDefault("redis.key_prefix", "cryptoverlay")
	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.dsn", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "~/.cryptoverlay/logs/cryptoverlay.log")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if pw := os.Getenv(EnvPrefix + "_REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if dsn := os.Getenv(EnvPrefix + "_POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(homeDir(), rest)
	}
	return path
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
