package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"swing-trader/internal/broker"
	"swing-trader/internal/models"
	"swing-trader/internal/security"
	"swing-trader/internal/trading"
	"swing-trader/pkg/utils"
)

func newScanCmd(app *App) *cobra.Command {
	var candles int
	cmd := &cobra.Command{
		Use:   "scan <symbol>",
		Short: "Show Heiken Ashi candles, trend and breakout state for one symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			symbol := broker.NormalizeSymbol(args[0])
			if err := security.ValidateSymbol(symbol); err != nil {
				return err
			}

			deps, err := app.Deps(nil)
			if err != nil {
				return err
			}
			in, err := trading.NewScanner(deps, app.Config.Universe.LookbackDays).Inspect(cmd.Context(), symbol)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(inspectionJSON(in, app.Config.Detector.CheckReversal))
			}
			printInspection(out, in, candles, app.Config.Detector.CheckReversal)
			return nil
		},
	}
	cmd.Flags().IntVarP(&candles, "candles", "n", 8, "number of recent Heiken Ashi candles to show")
	return cmd
}

func printInspection(out *Output, in *trading.Inspection, candles int, checkReversal bool) {
	out.Bold("%s: %d sessions", in.Symbol, len(in.Bars))
	out.Println()

	ha := in.HA
	if candles > 0 && len(ha) > candles {
		ha = ha[len(ha)-candles:]
	}
	table := NewTable(out, "DATE", "HA OPEN", "HA HIGH", "HA LOW", "HA CLOSE", "")
	for _, c := range ha {
		colour := out.DimText("doji")
		if c.IsBearish() {
			colour = out.Red("red")
		} else if c.IsBullish() {
			colour = out.Green("green")
		}
		table.AddRow(
			FormatDate(c.Date),
			fmt.Sprintf("%.2f", c.Open),
			fmt.Sprintf("%.2f", c.High),
			fmt.Sprintf("%.2f", c.Low),
			fmt.Sprintf("%.2f", c.Close),
			colour,
		)
	}
	table.Render()
	out.Println()

	if in.Pattern == nil {
		out.Dim("No contracting trend")
		return
	}

	p := in.Pattern
	out.Info("Trend: %s → %s → %s, level %.2f", FormatDate(p.Candle3.Date), FormatDate(p.Candle2.Date), FormatDate(p.Candle1.Date), p.BreakoutLevel())
	if in.Crossed {
		out.Warning("Level already crossed after %s", FormatDate(p.Candle1.Date))
	}
	if in.WouldPool(checkReversal) {
		out.Success("Would be pooled")
	} else {
		out.Dim("Would not be pooled")
	}

	if b := in.Breakout; b != nil {
		line := fmt.Sprintf("Latest session %s: %s", FormatDate(b.Date), b.Status.Describe())
		if b.Fires() {
			out.Success("%s", line)
		} else {
			out.Printf("%s\n", line)
		}
	}
}

func inspectionJSON(in *trading.Inspection, checkReversal bool) map[string]interface{} {
	result := map[string]interface{}{
		"symbol":      in.Symbol,
		"sessions":    len(in.Bars),
		"would_pool":  in.WouldPool(checkReversal),
		"crossed":     in.Crossed,
		"heiken_ashi": haJSON(in.HA),
	}
	if p := in.Pattern; p != nil {
		result["pattern"] = toEntryJSON(p.PoolEntry())
	}
	if b := in.Breakout; b != nil {
		breakout := map[string]interface{}{
			"status":   string(b.Status),
			"level":    b.Level,
			"ha_open":  b.HAOpen,
			"ha_close": b.HAClose,
			"date":     utils.DateKey(b.Date),
		}
		if b.PreviousKnown {
			breakout["previous_ha_close"] = b.PreviousClose
		}
		result["breakout"] = breakout
	}
	return result
}

func haJSON(bars []models.HeikenAshiBar) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(bars))
	for _, b := range bars {
		out = append(out, map[string]interface{}{
			"date":  utils.DateKey(b.Date),
			"open":  b.Open,
			"high":  b.High,
			"low":   b.Low,
			"close": b.Close,
		})
	}
	return out
}
