// Package config provides configuration management for the swing trader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"swing-trader/internal/errors"
	"swing-trader/internal/models"
	"swing-trader/internal/security"
	"swing-trader/pkg/utils"
)

// Data source names.
const (
	SourceYahoo  = "yahoo"
	SourceKite   = "kite"
	SourceReplay = "replay"
)

// Config holds all application configuration.
type Config struct {
	Universe      UniverseConfig     `mapstructure:"universe"`
	Data          DataConfig         `mapstructure:"data"`
	Detector      DetectorConfig     `mapstructure:"detector"`
	Finalize      FinalizeConfig     `mapstructure:"finalize"`
	Output        OutputConfig       `mapstructure:"output"`
	Schedule      ScheduleConfig     `mapstructure:"schedule"`
	Calendar      CalendarConfig     `mapstructure:"calendar"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Credentials   Credentials        `mapstructure:"-"` // Loaded separately

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// UniverseConfig lists the symbols scanned by pool creation.
type UniverseConfig struct {
	Symbols      []string `mapstructure:"symbols"`
	LookbackDays int      `mapstructure:"lookback_days"`
}

// DataConfig selects and paces the market data source.
type DataConfig struct {
	Source            string        `mapstructure:"source"` // yahoo, kite, replay
	ReplayFile        string        `mapstructure:"replay_file"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Concurrency       int           `mapstructure:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Cache             bool          `mapstructure:"cache"`

	// BreakerThreshold consecutive failed fetches stop requests to the
	// source for BreakerCooldown. Zero disables the breaker.
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// DetectorConfig holds trend detection options.
type DetectorConfig struct {
	RequireAllRed bool `mapstructure:"require_all_red"`
	CheckReversal bool `mapstructure:"check_reversal"`
}

// FinalizeConfig holds finalization options.
type FinalizeConfig struct {
	Mode string `mapstructure:"mode"` // heiken_ashi, price
}

// OutputConfig holds output file locations.
type OutputConfig struct {
	PoolFile    string `mapstructure:"pool_file"`
	SignalsFile string `mapstructure:"signals_file"`
	Database    string `mapstructure:"database"`
}

// ScheduleConfig holds the daemon's cron expressions.
type ScheduleConfig struct {
	FinalizeCron string `mapstructure:"finalize_cron"`
	PoolCron     string `mapstructure:"pool_cron"`
	Timezone     string `mapstructure:"timezone"`
}

// CalendarConfig lists exchange holidays as YYYY-MM-DD.
type CalendarConfig struct {
	Holidays []string `mapstructure:"holidays"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite KiteCredentials `mapstructure:"kite"`
}

// KiteCredentials holds Zerodha Kite Connect credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	AccessToken string `mapstructure:"access_token"`
}

// DefaultSymbols is the default scan universe.
var DefaultSymbols = []string{
	"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "INFY.NS", "HINDUNILVR.NS",
	"ICICIBANK.NS", "BHARTIARTL.NS", "SBIN.NS", "BAJFINANCE.NS", "LICI.NS",
	"ITC.NS", "HCLTECH.NS", "AXISBANK.NS", "KOTAKBANK.NS", "LT.NS",
	"ASIANPAINT.NS", "MARUTI.NS", "TITAN.NS", "ULTRACEMCO.NS", "SUNPHARMA.NS",
	"NESTLEIND.NS", "ONGC.NS", "NTPC.NS", "POWERGRID.NS", "M&M.NS",
	"TATAMOTORS.NS", "WIPRO.NS", "ADANIENT.NS", "JSWSTEEL.NS", "COALINDIA.NS",
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "swing-trader")
	}
	return filepath.Join(home, ".config", "swing-trader")
}

// ConfigPath returns the path of config.toml in configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("universe.symbols", DefaultSymbols)
	v.SetDefault("universe.lookback_days", 30)

	v.SetDefault("data.source", SourceYahoo)
	v.SetDefault("data.replay_file", "")
	v.SetDefault("data.timeout", "20s")
	v.SetDefault("data.concurrency", 4)
	v.SetDefault("data.requests_per_second", 2.0)
	v.SetDefault("data.burst", 2)
	v.SetDefault("data.max_retries", 3)
	v.SetDefault("data.cache", true)
	v.SetDefault("data.breaker_threshold", 5)
	v.SetDefault("data.breaker_cooldown", "2m")

	v.SetDefault("detector.require_all_red", true)
	v.SetDefault("detector.check_reversal", true)

	v.SetDefault("finalize.mode", string(models.FinalizeHeikenAshi))

	v.SetDefault("output.pool_file", filepath.Join("data", "pool.csv"))
	v.SetDefault("output.signals_file", filepath.Join("data", "final_stocks.csv"))
	v.SetDefault("output.database", "")

	v.SetDefault("schedule.finalize_cron", "15 15 * * 1-5")
	v.SetDefault("schedule.pool_cron", "30 16 * * 1-5")
	v.SetDefault("schedule.timezone", "Asia/Kolkata")

	v.SetDefault("calendar.holidays", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 20)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.webhook.enabled", false)
	v.SetDefault("notifications.webhook.url", "")
	v.SetDefault("notifications.telegram.enabled", false)
	v.SetDefault("notifications.telegram.bot_token", "")
	v.SetDefault("notifications.telegram.chat_id", "")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are created from templates and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env files never override variables already set in the environment.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	_ = godotenv.Load()

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	// SWING_DATA_SOURCE overrides data.source, and so on.
	v.SetEnvPrefix("SWING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplate(configDir, "config.toml", configTemplate, 0644); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_API_SECRET"); v != "" {
		cfg.Credentials.Kite.APISecret = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.URL = v
	}
}

// resolvePaths expands ~ and fills path defaults that depend on Dir.
func (c *Config) resolvePaths() {
	c.Output.PoolFile = expandHome(c.Output.PoolFile)
	c.Output.SignalsFile = expandHome(c.Output.SignalsFile)
	c.Output.Database = expandHome(c.Output.Database)
	c.Data.ReplayFile = expandHome(c.Data.ReplayFile)
	c.Logging.File = expandHome(c.Logging.File)

	if c.Output.Database == "" {
		c.Output.Database = filepath.Join(c.Dir, "swing.db")
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.Dir, "logs", "swing-trader.log")
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate validates the configuration. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field string, value interface{}, msg string) {
		errs = append(errs, errors.NewValidationError(field, value, msg))
	}

	if len(c.Universe.Symbols) == 0 {
		bad("universe.symbols", c.Universe.Symbols, "at least one symbol is required")
	}
	for _, symbol := range c.Universe.Symbols {
		if err := security.ValidateSymbol(strings.ToUpper(strings.TrimSpace(symbol))); err != nil {
			bad("universe.symbols", symbol, "not a valid NSE ticker")
		}
	}
	if c.Universe.LookbackDays < 3 {
		bad("universe.lookback_days", c.Universe.LookbackDays, "must be at least 3")
	}

	switch c.Data.Source {
	case SourceYahoo, SourceKite:
	case SourceReplay:
		if c.Data.ReplayFile == "" {
			bad("data.replay_file", c.Data.ReplayFile, "required for the replay source")
		}
	default:
		bad("data.source", c.Data.Source, "must be 'yahoo', 'kite' or 'replay'")
	}
	if c.Data.Timeout <= 0 {
		bad("data.timeout", c.Data.Timeout, "must be positive")
	}
	if c.Data.Concurrency < 1 || c.Data.Concurrency > 64 {
		bad("data.concurrency", c.Data.Concurrency, "must be between 1 and 64")
	}
	if c.Data.RequestsPerSecond < 0 {
		bad("data.requests_per_second", c.Data.RequestsPerSecond, "must be non-negative")
	}
	if c.Data.Burst < 1 {
		bad("data.burst", c.Data.Burst, "must be at least 1")
	}
	if c.Data.MaxRetries < 0 {
		bad("data.max_retries", c.Data.MaxRetries, "must be non-negative")
	}
	if c.Data.BreakerThreshold < 0 {
		bad("data.breaker_threshold", c.Data.BreakerThreshold, "must be non-negative")
	}
	if c.Data.BreakerThreshold > 0 && c.Data.BreakerCooldown <= 0 {
		bad("data.breaker_cooldown", c.Data.BreakerCooldown, "must be positive when the breaker is enabled")
	}

	if !models.FinalizeMode(c.Finalize.Mode).Valid() {
		bad("finalize.mode", c.Finalize.Mode, "must be 'heiken_ashi' or 'price'")
	}

	if c.Output.PoolFile == "" {
		bad("output.pool_file", c.Output.PoolFile, "required")
	}
	if c.Output.SignalsFile == "" {
		bad("output.signals_file", c.Output.SignalsFile, "required")
	}

	if _, err := cron.ParseStandard(c.Schedule.FinalizeCron); err != nil {
		bad("schedule.finalize_cron", c.Schedule.FinalizeCron, err.Error())
	}
	if _, err := cron.ParseStandard(c.Schedule.PoolCron); err != nil {
		bad("schedule.pool_cron", c.Schedule.PoolCron, err.Error())
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		bad("schedule.timezone", c.Schedule.Timezone, "unknown time zone")
	}

	if _, err := utils.NewCalendar(c.Calendar.Holidays); err != nil {
		bad("calendar.holidays", c.Calendar.Holidays, err.Error())
	}

	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		bad("logging.level", c.Logging.Level, "must be debug, info, warn or error")
	}

	tg := c.Notifications.Telegram
	if c.Notifications.Enabled && tg.Enabled && (tg.BotToken == "" || tg.ChatID == "") {
		bad("notifications.telegram", "", "bot_token and chat_id are required")
	}
	wh := c.Notifications.Webhook
	if c.Notifications.Enabled && wh.Enabled && wh.URL == "" {
		bad("notifications.webhook.url", wh.URL, "required when the webhook is enabled")
	}

	return errors.Join(errs...)
}

// TradingCalendar returns the trading calendar built from the configured holidays.
func (c *Config) TradingCalendar() (*utils.Calendar, error) {
	return utils.NewCalendar(c.Calendar.Holidays)
}

// FinalizeMode returns the configured finalization mode.
func (c *Config) FinalizeMode() models.FinalizeMode {
	return models.FinalizeMode(c.Finalize.Mode)
}

// Location returns the scheduler time zone, falling back to IST.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return utils.IndiaLocation
	}
	return loc
}

// MaxAttempts is the number of tries per data request.
func (c *Config) MaxAttempts() int {
	return c.Data.MaxRetries + 1
}
