package cli

import (
	"context"
	"fmt"
	"time"

	"swing-trader/internal/models"
	"swing-trader/internal/trading"
	"swing-trader/pkg/utils"
)

func printPool(out *Output, entries []models.PoolEntry) {
	table := NewTable(out, "SYMBOL", "CANDLE 3", "CANDLE 2", "CANDLE 1", "LEVEL", "DETECTED")
	for _, e := range entries {
		table.AddRow(
			e.Symbol,
			FormatDate(e.Candle3Date),
			FormatDate(e.Candle2Date),
			FormatDate(e.Candle1Date),
			fmt.Sprintf("%.2f", e.Candle3High),
			FormatDateTime(e.DetectionDate),
		)
	}
	table.Render()
}

func printSignals(out *Output, signals []models.Signal) {
	table := NewTable(out, "SYMBOL", "LEVEL", "HA OPEN", "HA CLOSE", "PREV HA CLOSE", "PRICE", "ABOVE", "MODE")
	for _, s := range signals {
		haOpen, haClose, prev := "-", "-", "-"
		if s.Mode == models.FinalizeHeikenAshi {
			haOpen = fmt.Sprintf("%.2f", s.HAOpen)
			haClose = fmt.Sprintf("%.2f", s.HAClose)
		}
		if s.PreviousHAClose != nil {
			prev = fmt.Sprintf("%.2f", *s.PreviousHAClose)
		}
		table.AddRow(
			out.Green(s.Symbol),
			fmt.Sprintf("%.2f", s.Candle3High),
			haOpen,
			haClose,
			prev,
			FormatIndianCurrency(s.CurrentPrice),
			FormatDistance(s.CurrentPrice, s.Candle3High),
			string(s.Mode),
		)
	}
	table.Render()
}

type entryJSON struct {
	Symbol        string  `json:"symbol"`
	Candle1Date   string  `json:"candle1_date"`
	Candle2Date   string  `json:"candle2_date"`
	Candle3Date   string  `json:"candle3_date"`
	Candle3High   float64 `json:"candle3_high"`
	DetectionDate string  `json:"detection_date"`
}

func toEntryJSON(e models.PoolEntry) entryJSON {
	return entryJSON{
		Symbol:        e.Symbol,
		Candle1Date:   utils.DateKey(e.Candle1Date),
		Candle2Date:   utils.DateKey(e.Candle2Date),
		Candle3Date:   utils.DateKey(e.Candle3Date),
		Candle3High:   e.Candle3High,
		DetectionDate: e.DetectionDate.Format(time.RFC3339),
	}
}

func entriesJSON(entries []models.PoolEntry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryJSON(e))
	}
	return out
}

type signalJSON struct {
	Symbol          string   `json:"symbol"`
	Candle3High     float64  `json:"candle3_high"`
	HAOpen          float64  `json:"ha_open,omitempty"`
	HAClose         float64  `json:"ha_close,omitempty"`
	PreviousHAClose *float64 `json:"previous_ha_close,omitempty"`
	CurrentPrice    float64  `json:"current_price"`
	SignalDate      string   `json:"signal_date"`
	Mode            string   `json:"mode"`
}

func signalsJSON(signals []models.Signal) []signalJSON {
	out := make([]signalJSON, 0, len(signals))
	for _, s := range signals {
		out = append(out, signalJSON{
			Symbol:          s.Symbol,
			Candle3High:     s.Candle3High,
			HAOpen:          s.HAOpen,
			HAClose:         s.HAClose,
			PreviousHAClose: s.PreviousHAClose,
			CurrentPrice:    s.CurrentPrice,
			SignalDate:      s.SignalDate.Format(time.RFC3339),
			Mode:            string(s.Mode),
		})
	}
	return out
}

type resultJSON struct {
	Symbol  string `json:"symbol"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func resultsJSON(results []trading.SymbolResult) []resultJSON {
	out := make([]resultJSON, 0, len(results))
	for _, r := range results {
		rj := resultJSON{Symbol: r.Symbol, Outcome: string(r.Outcome)}
		if r.Err != nil {
			rj.Error = r.Err.Error()
		}
		out = append(out, rj)
	}
	return out
}

type countsJSON struct {
	Scanned int `json:"scanned"`
	Matched int `json:"matched"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func poolJSON(r *trading.PoolReport) map[string]interface{} {
	return map[string]interface{}{
		"run_id":      r.RunID,
		"started_at":  r.StartedAt.Format(time.RFC3339),
		"finished_at": r.FinishedAt.Format(time.RFC3339),
		"path":        r.Path,
		"counts":      countsJSON(r.Counts),
		"entries":     entriesJSON(r.Entries),
		"results":     resultsJSON(r.Results),
	}
}

func finalizeJSON(r *trading.FinalizeReport) map[string]interface{} {
	return map[string]interface{}{
		"run_id":      r.RunID,
		"mode":        string(r.Mode),
		"started_at":  r.StartedAt.Format(time.RFC3339),
		"finished_at": r.FinishedAt.Format(time.RFC3339),
		"pool_empty":  r.PoolEmpty,
		"path":        r.Path,
		"counts":      countsJSON(r.Counts),
		"signals":     signalsJSON(r.Signals),
		"results":     resultsJSON(r.Results),
	}
}

// notifySummary sends a run summary. Notification failures are only logged.
func (a *App) notifySummary(ctx context.Context, job models.JobName, runID string, started, finished time.Time, c trading.Counts) {
	run := models.RunRecord{
		ID:         runID,
		Job:        job,
		StartedAt:  started,
		FinishedAt: finished,
		Scanned:    c.Scanned,
		Matched:    c.Matched,
		Skipped:    c.Skipped,
		Failed:     c.Failed,
		Status:     models.RunSucceeded,
	}
	if err := a.Notifier.SendRunSummary(ctx, run); err != nil {
		a.Logger.Warn().Err(err).Str("job", string(job)).Msg("Failed to send run summary")
	}
}

func (a *App) notifyError(ctx context.Context, runErr error, job models.JobName) {
	if err := a.Notifier.SendError(context.WithoutCancel(ctx), runErr, job); err != nil {
		a.Logger.Warn().Err(err).Str("job", string(job)).Msg("Failed to send error notification")
	}
}
