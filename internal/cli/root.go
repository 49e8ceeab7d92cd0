// Package cli provides the swing-trader command-line interface.
package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"swing-trader/internal/config"
	"swing-trader/internal/errors"
	"swing-trader/internal/security"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2024-03-11"
)

// skipSetup marks commands that run without loading the configuration.
const skipSetup = "skip-setup"

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "swing-trader",
		Short: "Heiken Ashi swing trading pipeline for NSE equities",
		Long: `swing-trader scans NSE stocks for three contracting red Heiken Ashi
candles (pool creation, after market close) and checks the pooled stocks for
a breakout above the oldest candle's high (finalization, before close).

Run 'swing-trader daemon' to schedule both jobs, or run them once with
'swing-trader pool create' and 'swing-trader finalize'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] != "" {
				return nil
			}
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/swing-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("force", false, "run jobs even on non-trading days")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addJobCommands(rootCmd, app)
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newDaemonCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("swing-trader v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func configDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("config"); dir != "" {
		return dir
	}
	return config.DefaultConfigDir()
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := redacted(app.Config)
			if output.IsJSON() {
				return output.JSON(cfg)
			}
			showConfig(output, cfg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.ConfigPath(configDir(cmd))
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration files",
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			_, err := config.Load(configDir(cmd))
			if output.IsJSON() {
				result := map[string]interface{}{"valid": err == nil}
				if err != nil {
					result["errors"] = validationMessages(err)
				}
				if jerr := output.JSON(result); jerr != nil {
					return jerr
				}
				return err
			}
			if err != nil {
				output.Error("✗ Configuration is invalid")
				for _, msg := range validationMessages(err) {
					output.Printf("  - %s\n", msg)
				}
				return err
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

// validationMessages flattens a joined validation error into one line per
// problem.
func validationMessages(err error) []string {
	var msgs []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "validating config:"))
		if line != "" {
			msgs = append(msgs, line)
		}
	}
	if len(msgs) == 0 || !errors.Is(err, errors.ErrConfigInvalid) {
		return []string{err.Error()}
	}
	return msgs
}

// redacted returns a copy of cfg with secrets masked.
func redacted(cfg *config.Config) *config.Config {
	c := *cfg
	c.Credentials.Kite.APISecret = security.MaskCredential(c.Credentials.Kite.APISecret)
	c.Credentials.Kite.AccessToken = security.MaskCredential(c.Credentials.Kite.AccessToken)
	c.Notifications.Telegram.BotToken = security.MaskCredential(c.Notifications.Telegram.BotToken)
	return &c
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Universe")
	output.Printf("  Symbols:         %d (%s)\n", len(cfg.Universe.Symbols), TruncateString(strings.Join(cfg.Universe.Symbols, ", "), 60))
	output.Printf("  Lookback:        %d sessions\n", cfg.Universe.LookbackDays)
	output.Println()

	output.Bold("Data")
	output.Printf("  Source:          %s\n", cfg.Data.Source)
	if cfg.Data.Source == config.SourceReplay {
		output.Printf("  Replay file:     %s\n", cfg.Data.ReplayFile)
	}
	output.Printf("  Timeout:         %s\n", cfg.Data.Timeout)
	output.Printf("  Concurrency:     %d\n", cfg.Data.Concurrency)
	output.Printf("  Rate limit:      %.1f req/s (burst %d)\n", cfg.Data.RequestsPerSecond, cfg.Data.Burst)
	output.Printf("  Max retries:     %d\n", cfg.Data.MaxRetries)
	output.Printf("  Bar cache:       %v\n", cfg.Data.Cache)
	if cfg.Data.BreakerThreshold > 0 {
		output.Printf("  Breaker:         after %d failures, pause %s\n", cfg.Data.BreakerThreshold, cfg.Data.BreakerCooldown)
	} else {
		output.Printf("  Breaker:         off\n")
	}
	output.Println()

	output.Bold("Strategy")
	output.Printf("  All red candles: %v\n", cfg.Detector.RequireAllRed)
	output.Printf("  Reversal check:  %v\n", cfg.Detector.CheckReversal)
	output.Printf("  Finalize mode:   %s\n", cfg.Finalize.Mode)
	output.Println()

	output.Bold("Files")
	output.Printf("  Pool:            %s\n", cfg.Output.PoolFile)
	output.Printf("  Signals:         %s\n", cfg.Output.SignalsFile)
	output.Printf("  Database:        %s\n", cfg.Output.Database)
	output.Printf("  Log:             %s\n", cfg.Logging.File)
	output.Println()

	output.Bold("Schedule (%s)", cfg.Schedule.Timezone)
	output.Printf("  Finalization:    %s\n", cfg.Schedule.FinalizeCron)
	output.Printf("  Pool creation:   %s\n", cfg.Schedule.PoolCron)
	output.Printf("  Holidays:        %d configured\n", len(cfg.Calendar.Holidays))
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %v\n", cfg.Notifications.Enabled)
	output.Printf("  Webhook:         %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:        %v\n", cfg.Notifications.Telegram.Enabled)
	output.Printf("  Kite API key:    %v\n", cfg.Credentials.Kite.APIKey != "")
}
