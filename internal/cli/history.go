package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"swing-trader/internal/broker"
	"swing-trader/internal/models"
	"swing-trader/internal/store"
)

func newHistoryCmd(app *App) *cobra.Command {
	var (
		job   string
		days  int
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past job runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			history, err := app.History()
			if err != nil {
				return err
			}

			filter := store.RunFilter{Job: models.JobName(job), Limit: limit}
			if days > 0 {
				filter.Since = app.now().AddDate(0, 0, -days)
			}
			runs, err := history.GetRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(runsJSON(runs))
			}
			if len(runs) == 0 {
				out.Dim("No runs recorded")
				return nil
			}

			table := NewTable(out, "STARTED", "JOB", "STATUS", "SCANNED", "MATCHED", "SKIPPED", "FAILED", "DURATION")
			for _, r := range runs {
				table.AddRow(
					FormatDateTime(r.StartedAt),
					string(r.Job),
					runStatus(out, r.Status),
					fmt.Sprint(r.Scanned),
					fmt.Sprint(r.Matched),
					fmt.Sprint(r.Skipped),
					fmt.Sprint(r.Failed),
					FormatDuration(r.FinishedAt.Sub(r.StartedAt)),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "filter by job: pool_creation or finalization")
	cmd.Flags().IntVar(&days, "days", 0, "only runs from the last N days")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	cmd.AddCommand(newSignalHistoryCmd(app))
	return cmd
}

func newSignalHistoryCmd(app *App) *cobra.Command {
	var (
		symbol string
		days   int
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Show signals emitted by past finalizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			history, err := app.History()
			if err != nil {
				return err
			}

			filter := store.SignalFilter{Limit: limit}
			if symbol != "" {
				filter.Symbol = broker.NormalizeSymbol(symbol)
			}
			if days > 0 {
				filter.Since = app.now().AddDate(0, 0, -days)
			}
			signals, err := history.GetSignals(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(signalsJSON(signals))
			}
			if len(signals) == 0 {
				out.Dim("No signals recorded")
				return nil
			}
			printSignals(out, signals)
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "filter by symbol")
	cmd.Flags().IntVar(&days, "days", 30, "only signals from the last N days")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of signals")
	return cmd
}

func runStatus(out *Output, s models.RunStatus) string {
	switch s {
	case models.RunSucceeded:
		return out.Green(string(s))
	case models.RunFailed:
		return out.Red(string(s))
	default:
		return out.Yellow(string(s))
	}
}

type runJSON struct {
	ID         string `json:"id"`
	Job        string `json:"job"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Scanned    int    `json:"scanned"`
	Matched    int    `json:"matched"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

func runsJSON(runs []models.RunRecord) []runJSON {
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, runJSON{
			ID:         r.ID,
			Job:        string(r.Job),
			Status:     string(r.Status),
			StartedAt:  r.StartedAt.Format(time.RFC3339),
			FinishedAt: r.FinishedAt.Format(time.RFC3339),
			Scanned:    r.Scanned,
			Matched:    r.Matched,
			Skipped:    r.Skipped,
			Failed:     r.Failed,
			Error:      r.Error,
		})
	}
	return out
}
