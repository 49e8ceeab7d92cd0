package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"swing-trader/internal/errors"
	"swing-trader/internal/models"
)

func TestLoad_CreatesTemplatesWithDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, name := range []string{"config.toml", "credentials.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	if err == nil && info.Mode().Perm() != 0600 {
		t.Errorf("credentials.toml mode = %v, want 0600", info.Mode().Perm())
	}

	if len(cfg.Universe.Symbols) != len(DefaultSymbols) || cfg.Universe.LookbackDays != 30 {
		t.Errorf("universe = %+v", cfg.Universe)
	}
	if cfg.Data.Source != SourceYahoo || cfg.Data.Timeout != 20*time.Second || cfg.Data.Concurrency != 4 {
		t.Errorf("data = %+v", cfg.Data)
	}
	if !cfg.Detector.RequireAllRed || !cfg.Detector.CheckReversal {
		t.Errorf("detector = %+v", cfg.Detector)
	}
	if cfg.FinalizeMode() != models.FinalizeHeikenAshi {
		t.Errorf("finalize mode = %s", cfg.FinalizeMode())
	}
	if cfg.Output.Database != filepath.Join(dir, "swing.db") {
		t.Errorf("database = %s", cfg.Output.Database)
	}
	if cfg.Schedule.FinalizeCron != "15 15 * * 1-5" || cfg.Schedule.PoolCron != "30 16 * * 1-5" {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
	if cfg.MaxAttempts() != 4 {
		t.Errorf("MaxAttempts() = %d", cfg.MaxAttempts())
	}

	// The generated template must load to the same values.
	again, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if strings.Join(again.Universe.Symbols, ",") != strings.Join(cfg.Universe.Symbols, ",") || again.Data != cfg.Data {
		t.Errorf("template differs from defaults: %+v vs %+v", again.Data, cfg.Data)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[universe]
symbols = ["TCS.NS", "INFY.NS"]
lookback_days = 45

[finalize]
mode = "price"

[calendar]
holidays = ["2024-03-08"]
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "credentials.toml"), []byte("[kite]\napi_key = \"file-key\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SWING_DATA_CONCURRENCY", "8")
	t.Setenv("KITE_ACCESS_TOKEN", "env-token")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Universe.Symbols) != 2 || cfg.Universe.LookbackDays != 45 {
		t.Errorf("universe = %+v", cfg.Universe)
	}
	if cfg.FinalizeMode() != models.FinalizePrice {
		t.Errorf("mode = %s", cfg.FinalizeMode())
	}
	if cfg.Data.Concurrency != 8 {
		t.Errorf("concurrency = %d, want env override 8", cfg.Data.Concurrency)
	}
	if cfg.Credentials.Kite.APIKey != "file-key" || cfg.Credentials.Kite.AccessToken != "env-token" {
		t.Errorf("credentials = %+v", cfg.Credentials.Kite)
	}

	cal, err := cfg.TradingCalendar()
	if err != nil {
		t.Fatal(err)
	}
	if cal.IsTradingDay(time.Date(2024, 3, 8, 10, 0, 0, 0, cfg.Location())) {
		t.Error("configured holiday treated as a trading day")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TELEGRAM_CHAT_ID=12345\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TELEGRAM_CHAT_ID") })

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Notifications.Telegram.ChatID != "12345" {
		t.Errorf("chat id = %q", cfg.Notifications.Telegram.ChatID)
	}
}

func validConfig() *Config {
	return &Config{
		Universe: UniverseConfig{Symbols: []string{"TCS.NS"}, LookbackDays: 30},
		Data: DataConfig{
			Source:      SourceYahoo,
			Timeout:     time.Second,
			Concurrency: 4,
			Burst:       1,
		},
		Finalize: FinalizeConfig{Mode: "heiken_ashi"},
		Output:   OutputConfig{PoolFile: "pool.csv", SignalsFile: "final.csv"},
		Schedule: ScheduleConfig{FinalizeCron: "15 15 * * 1-5", PoolCron: "30 16 * * 1-5", Timezone: "Asia/Kolkata"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"no symbols", func(c *Config) { c.Universe.Symbols = nil }, "universe.symbols"},
		{"malformed symbol", func(c *Config) { c.Universe.Symbols = []string{"TCS.NS", "TCS; DROP"} }, "universe.symbols"},
		{"short lookback", func(c *Config) { c.Universe.LookbackDays = 2 }, "universe.lookback_days"},
		{"unknown source", func(c *Config) { c.Data.Source = "nse" }, "data.source"},
		{"replay without file", func(c *Config) { c.Data.Source = SourceReplay }, "data.replay_file"},
		{"zero timeout", func(c *Config) { c.Data.Timeout = 0 }, "data.timeout"},
		{"too many workers", func(c *Config) { c.Data.Concurrency = 100 }, "data.concurrency"},
		{"breaker without cooldown", func(c *Config) { c.Data.BreakerThreshold = 3 }, "data.breaker_cooldown"},
		{"bad mode", func(c *Config) { c.Finalize.Mode = "close" }, "finalize.mode"},
		{"bad cron", func(c *Config) { c.Schedule.PoolCron = "every day" }, "schedule.pool_cron"},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, "schedule.timezone"},
		{"bad holiday", func(c *Config) { c.Calendar.Holidays = []string{"08/03/2024"} }, "calendar.holidays"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"telegram without token", func(c *Config) {
			c.Notifications.Enabled = true
			c.Notifications.Telegram.Enabled = true
		}, "notifications.telegram"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, errors.ErrConfigInvalid) {
				t.Fatalf("Validate() error = %v, want ErrConfigInvalid", err)
			}
			var ve *errors.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("Validate() field = %v, want %s", err, tt.field)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/data/pool.csv"); got != filepath.Join(home, "data", "pool.csv") {
		t.Errorf("expandHome() = %s", got)
	}
	if got := expandHome("data/pool.csv"); got != "data/pool.csv" {
		t.Errorf("expandHome() = %s", got)
	}
}
