package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"swing-trader/internal/errors"
	"swing-trader/internal/models"
	"swing-trader/pkg/utils"
)

const (
	poolHeader   = "symbol,candle1_date,candle2_date,candle3_date,candle3_high,detection_date"
	signalHeader = "symbol,candle3_high,ha_open,ha_close,previous_ha_close,current_price,signal_date,mode"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, utils.IndiaLocation)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestPoolTable_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "pool.csv")
	table := NewPoolTable(path)

	entries := []models.PoolEntry{
		{
			Symbol:        "RELIANCE.NS",
			Candle1Date:   ist(2024, 3, 6, 0, 0),
			Candle2Date:   ist(2024, 3, 5, 0, 0),
			Candle3Date:   ist(2024, 3, 4, 0, 0),
			Candle3High:   2987.45,
			DetectionDate: ist(2024, 3, 6, 16, 30),
		},
		{
			Symbol:        "M&M.NS",
			Candle1Date:   ist(2024, 3, 6, 0, 0),
			Candle2Date:   ist(2024, 3, 5, 0, 0),
			Candle3Date:   ist(2024, 3, 1, 0, 0),
			Candle3High:   1712.1,
			DetectionDate: ist(2024, 3, 6, 16, 31),
		},
	}

	if err := table.WriteAll(entries); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}

	lines := readLines(t, path)
	if lines[0] != poolHeader {
		t.Errorf("header = %q, want %q", lines[0], poolHeader)
	}
	if !strings.HasPrefix(lines[1], "RELIANCE.NS,2024-03-06,2024-03-05,2024-03-04,2987.45,") {
		t.Errorf("row = %q", lines[1])
	}

	got, err := table.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("ReadAll() len = %d, want %d", len(got), len(entries))
	}
	for i := range entries {
		want := entries[i]
		if got[i].Symbol != want.Symbol || got[i].Candle3High != want.Candle3High ||
			!got[i].Candle1Date.Equal(want.Candle1Date) || !got[i].Candle3Date.Equal(want.Candle3Date) ||
			!got[i].DetectionDate.Equal(want.DetectionDate) {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want)
		}
	}
}

func TestPoolTable_EmptyWritesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.csv")
	if err := NewPoolTable(path).WriteAll(nil); err != nil {
		t.Fatalf("WriteAll(nil) error = %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 1 || lines[0] != poolHeader {
		t.Errorf("file = %q, want header only", lines)
	}

	got, err := NewPoolTable(path).ReadAll()
	if err != nil || len(got) != 0 {
		t.Errorf("ReadAll() = %v, %v", got, err)
	}
}

func TestPoolTable_MissingAndBlankFiles(t *testing.T) {
	dir := t.TempDir()

	got, err := NewPoolTable(filepath.Join(dir, "absent.csv")).ReadAll()
	if err != nil || len(got) != 0 {
		t.Errorf("missing file: %v, %v", got, err)
	}

	blank := filepath.Join(dir, "blank.csv")
	if err := os.WriteFile(blank, []byte("\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = NewPoolTable(blank).ReadAll()
	if err != nil || len(got) != 0 {
		t.Errorf("blank file: %v, %v", got, err)
	}
}

func TestPoolTable_ReadsPandasDates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.csv")
	content := poolHeader + "\n" +
		"TCS.NS,2024-03-06 00:00:00+05:30,2024-03-05 00:00:00+05:30,2024-03-04 00:00:00+05:30,4123.5,2024-03-06 16:30:12.345678\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NewPoolTable(path).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != 1 || !utils.SameDay(got[0].Candle1Date, ist(2024, 3, 6, 0, 0)) || got[0].Candle3High != 4123.5 {
		t.Errorf("ReadAll() = %+v", got)
	}
}

func TestPoolTable_BadRowIsPersistenceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.csv")
	content := poolHeader + "\nTCS.NS,not-a-date,2024-03-05,2024-03-04,1,\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewPoolTable(path).ReadAll()
	if !errors.Is(err, errors.ErrPersistence) {
		t.Errorf("ReadAll() error = %v, want persistence error", err)
	}
}

func TestWriteCSV_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.csv")
	table := NewPoolTable(path)

	for i := 0; i < 3; i++ {
		if err := table.WriteAll([]models.PoolEntry{{Symbol: "ITC.NS", Candle1Date: ist(2024, 3, 6, 0, 0), Candle2Date: ist(2024, 3, 5, 0, 0), Candle3Date: ist(2024, 3, 4, 0, 0), Candle3High: float64(400 + i)}}); err != nil {
			t.Fatal(err)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name() != "pool.csv" {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = f.Name()
		}
		t.Errorf("directory contents = %v, want only pool.csv", names)
	}

	got, _ := table.ReadAll()
	if len(got) != 1 || got[0].Candle3High != 402 {
		t.Errorf("last write not visible: %+v", got)
	}
}

func TestSignalTable_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final_stocks.csv")
	table := NewSignalTable(path)
	prev := 99.25

	signals := []models.Signal{
		{Symbol: "INFY.NS", Candle3High: 100, HAOpen: 98.5, HAClose: 101.25, PreviousHAClose: &prev, CurrentPrice: 102, SignalDate: ist(2024, 3, 6, 15, 15), Mode: models.FinalizeHeikenAshi},
		{Symbol: "SBIN.NS", Candle3High: 750, HAOpen: 749, HAClose: 751, CurrentPrice: 752, SignalDate: ist(2024, 3, 6, 15, 15), Mode: models.FinalizeHeikenAshi},
		{Symbol: "ITC.NS", Candle3High: 400, CurrentPrice: 401.5, SignalDate: ist(2024, 3, 6, 15, 16), Mode: models.FinalizePrice},
	}
	if err := table.WriteAll(signals); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}

	lines := readLines(t, path)
	if lines[0] != signalHeader {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[3], "ITC.NS,400,,,,401.5,") {
		t.Errorf("price-mode row = %q, want empty HA columns", lines[3])
	}

	got, err := table.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadAll() len = %d", len(got))
	}
	if got[0].PreviousHAClose == nil || *got[0].PreviousHAClose != prev || got[0].HAClose != 101.25 {
		t.Errorf("signal 0 = %+v", got[0])
	}
	if got[1].PreviousHAClose != nil {
		t.Errorf("signal 1 previous = %v, want nil", *got[1].PreviousHAClose)
	}
	if got[2].Mode != models.FinalizePrice || got[2].HAOpen != 0 || !got[2].SignalDate.Equal(signals[2].SignalDate) {
		t.Errorf("signal 2 = %+v", got[2])
	}
}

func TestSignalTable_ReadsLegacyColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final_stocks.csv")
	content := "symbol,candle3_high,current_price,signal_date\nLT.NS,3500.5,3510,2024-03-06 15:15:02.123\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NewSignalTable(path).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != 1 || got[0].Mode != models.FinalizePrice || got[0].CurrentPrice != 3510 {
		t.Errorf("ReadAll() = %+v", got)
	}
}

func TestSignalTable_EmptyWritesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final_stocks.csv")
	if err := NewSignalTable(path).WriteAll([]models.Signal{}); err != nil {
		t.Fatal(err)
	}
	lines := readLines(t, path)
	if len(lines) != 1 || lines[0] != signalHeader {
		t.Errorf("file = %q", lines)
	}
}
