package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"swing-trader/internal/broker"
	"swing-trader/internal/models"
	"swing-trader/internal/store"
	"swing-trader/internal/trading"
	"swing-trader/pkg/utils"
)

func addJobCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPoolCmd(app))
	rootCmd.AddCommand(newFinalizeCmd(app))
	rootCmd.AddCommand(newSignalsCmd(app))
}

func newPoolCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Pool creation and inspection",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Scan the universe for contracting Heiken Ashi trends",
		Long: `Scans every configured symbol for three consecutive red Heiken Ashi
candles with falling highs and lows, and rewrites the pool file with the
matches. Runs only on trading days unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			force, _ := cmd.Flags().GetBool("force")
			if !app.tradingDayGate(cmd.Context(), models.JobPoolCreation, force) {
				return reportSkip(out, models.JobPoolCreation, app)
			}
			_, err := app.RunPoolCreation(cmd.Context(), out)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			entries, err := store.NewPoolTable(app.Config.Output.PoolFile).ReadAll()
			if err != nil {
				return err
			}
			if out.IsJSON() {
				return out.JSON(entriesJSON(entries))
			}
			if len(entries) == 0 {
				out.Dim("Pool is empty (%s)", app.Config.Output.PoolFile)
				return nil
			}
			printPool(out, entries)
			return nil
		},
	})

	return cmd
}

func newFinalizeCmd(app *App) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Check pooled symbols for a breakout and write signals",
		Long: `Re-checks every pooled symbol. In heiken_ashi mode a signal needs
today's Heiken Ashi candle to open below and close above the level while
yesterday's closed below it. In price mode the latest price above the level
is enough. Runs only on trading days unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			m := app.Config.FinalizeMode()
			if mode != "" {
				m = models.FinalizeMode(mode)
				if !m.Valid() {
					return fmt.Errorf("invalid mode %q: use heiken_ashi or price", mode)
				}
			}

			force, _ := cmd.Flags().GetBool("force")
			if !app.tradingDayGate(cmd.Context(), models.JobFinalization, force) {
				return reportSkip(out, models.JobFinalization, app)
			}
			_, err := app.RunFinalization(cmd.Context(), out, m)
			return err
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "finalization mode: heiken_ashi or price (default from config)")
	return cmd
}

func newSignalsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Signal inspection",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the latest signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			signals, err := store.NewSignalTable(app.Config.Output.SignalsFile).ReadAll()
			if err != nil {
				return err
			}
			if out.IsJSON() {
				return out.JSON(signalsJSON(signals))
			}
			if len(signals) == 0 {
				out.Dim("No signals (%s)", app.Config.Output.SignalsFile)
				return nil
			}
			printSignals(out, signals)
			return nil
		},
	})

	return cmd
}

func reportSkip(out *Output, job models.JobName, app *App) error {
	now := app.now()
	next := app.Calendar.NextTradingDay(now)
	if out.IsJSON() {
		return out.JSON(map[string]string{
			"job":              string(job),
			"status":           string(models.RunSkipped),
			"reason":           "not a trading day",
			"next_trading_day": utils.DateKey(next),
		})
	}
	out.Warning("%s: not a trading day (%s), nothing to do. Next trading day is %s. Use --force to run anyway.", job, FormatDate(now), FormatDate(next))
	return nil
}

// universe returns the configured symbols normalised to Yahoo tickers, each
// once, in configured order.
func (a *App) universe() []string {
	symbols := make([]string, 0, len(a.Config.Universe.Symbols))
	seen := make(map[string]bool, len(a.Config.Universe.Symbols))
	for _, s := range a.Config.Universe.Symbols {
		symbol := broker.NormalizeSymbol(s)
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	return symbols
}

// RunPoolCreation runs one pool creation and prints its progress and summary.
func (a *App) RunPoolCreation(ctx context.Context, out *Output) (*trading.PoolReport, error) {
	deps, err := a.Deps(newProgress(out))
	if err != nil {
		return nil, err
	}

	if !out.IsJSON() {
		out.Info("Pool creation started at %s", FormatDateTime(a.now()))
	}

	creator := trading.NewPoolCreator(deps, trading.PoolConfig{
		Symbols:       a.universe(),
		LookbackDays:  a.Config.Universe.LookbackDays,
		CheckReversal: a.Config.Detector.CheckReversal,
		Concurrency:   a.Config.Data.Concurrency,
	}, store.NewPoolTable(a.Config.Output.PoolFile))

	report, err := creator.Run(ctx)
	if err != nil {
		a.notifyError(ctx, err, models.JobPoolCreation)
		if !out.IsJSON() {
			out.Error("Pool creation failed: %v", err)
		}
		return report, err
	}

	a.notifySummary(ctx, models.JobPoolCreation, report.RunID, report.StartedAt, report.FinishedAt, report.Counts)

	if out.IsJSON() {
		return report, out.JSON(poolJSON(report))
	}
	out.Println()
	if len(report.Entries) > 0 {
		printPool(out, report.Entries)
		out.Println()
	}
	out.Success("Pool creation completed at %s: %d scanned, %d pooled, %d skipped, %d failed (%s)",
		FormatDateTime(report.FinishedAt), report.Counts.Scanned, report.Counts.Matched,
		report.Counts.Skipped, report.Counts.Failed, FormatDuration(report.FinishedAt.Sub(report.StartedAt)))
	out.Dim("Pool written to %s", report.Path)
	return report, nil
}

// RunFinalization runs one finalization and prints its progress and signals.
func (a *App) RunFinalization(ctx context.Context, out *Output, mode models.FinalizeMode) (*trading.FinalizeReport, error) {
	deps, err := a.Deps(newProgress(out))
	if err != nil {
		return nil, err
	}

	if !out.IsJSON() {
		out.Info("Finalization (%s) started at %s", mode, FormatDateTime(a.now()))
	}

	finalizer := trading.NewFinalizer(deps, trading.FinalizeConfig{
		Mode:         mode,
		LookbackDays: a.Config.Universe.LookbackDays,
		Concurrency:  a.Config.Data.Concurrency,
	}, store.NewPoolTable(a.Config.Output.PoolFile), store.NewSignalTable(a.Config.Output.SignalsFile))

	report, err := finalizer.Run(ctx)
	if err != nil {
		a.notifyError(ctx, err, models.JobFinalization)
		if !out.IsJSON() {
			out.Error("Finalization failed: %v", err)
		}
		return report, err
	}

	if err := a.Notifier.SendSignals(ctx, report.Signals); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to send signal notification")
	}
	a.notifySummary(ctx, models.JobFinalization, report.RunID, report.StartedAt, report.FinishedAt, report.Counts)

	if out.IsJSON() {
		return report, out.JSON(finalizeJSON(report))
	}
	out.Println()
	switch {
	case report.PoolEmpty:
		out.Dim("Pool is empty, no symbols to check")
	case len(report.Signals) == 0:
		out.Dim("No breakouts today")
	default:
		printSignals(out, report.Signals)
	}
	out.Println()
	out.Success("Finalization completed at %s: %d checked, %d signals, %d skipped, %d failed (%s)",
		FormatDateTime(report.FinishedAt), report.Counts.Scanned, report.Counts.Matched,
		report.Counts.Skipped, report.Counts.Failed, FormatDuration(report.FinishedAt.Sub(report.StartedAt)))
	out.Dim("Signals written to %s", report.Path)
	return report, nil
}
