package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"swing-trader/internal/models"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decoding %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"trace": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewLoggerWithConfig_WritesConsoleAndFile(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "swing-trader.log")
	logger := NewLoggerWithConfig(LogConfig{
		Level:    "warn",
		Console:  true,
		Out:      &console,
		File:     true,
		FilePath: path,
		MaxSize:  1,
	})

	logger.Info().Msg("hidden")
	logger.Warn().Str("symbol", "TCS.NS").Msg("Bar cache unavailable")

	if strings.Contains(console.String(), "hidden") {
		t.Errorf("info line written at warn level: %s", console.String())
	}
	if !strings.Contains(console.String(), "Bar cache unavailable") || !strings.Contains(console.String(), "WRN") {
		t.Errorf("console = %q", console.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"symbol":"TCS.NS"`) {
		t.Errorf("log file = %s", data)
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := WithRunID(WithJob(zerolog.New(&buf), models.JobFinalization), "run-7")
	ctx := WithLogger(context.Background(), logger)

	l := FromContext(ctx)
	l.Info().Msg("started")
	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["job"] != "finalization" || lines[0]["run_id"] != "run-7" {
		t.Errorf("lines = %v", lines)
	}

	// Without a logger in the context the global logger is returned.
	_ = FromContext(context.Background())
}

func TestDomainEvents(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	logger := WithSymbol(zerolog.New(&buf), "INFY.NS")
	day := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

	LogPoolEntry(logger, models.PoolEntry{Symbol: "INFY.NS", Candle1Date: day, Candle3Date: day.AddDate(0, 0, -2), Candle3High: 99.3125})
	LogSignal(logger, models.Signal{Symbol: "INFY.NS", Candle3High: 99.3125, CurrentPrice: 128, Mode: models.FinalizeHeikenAshi})
	LogAPICall(logger, "yahoo", "INFY.NS", 120*time.Millisecond, errors.New("status 429"))

	lines := decodeLines(t, &buf)
	// LogAPICall logs at debug, which the global level filters.
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %v", len(lines), lines)
	}
	if lines[0]["event"] != "pooled" || lines[0]["candle3_high"] != 99.3125 {
		t.Errorf("pool entry line = %v", lines[0])
	}
	if lines[1]["event"] != "signal" || lines[1]["mode"] != "heiken_ashi" || lines[1]["current_price"] != 128.0 {
		t.Errorf("signal line = %v", lines[1])
	}
}
