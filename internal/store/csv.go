package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"swing-trader/internal/errors"
	"swing-trader/internal/models"
	"swing-trader/pkg/utils"
)

// timestampLayout is used for wall-clock columns (detection_date, signal_date).
const timestampLayout = time.RFC3339

// parseLayouts are tried in order when reading date columns. The extra
// layouts accept files written by earlier pandas-based tooling.
var parseLayouts = []string{
	time.RFC3339Nano,
	time.DateOnly,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateTime,
}

type poolRow struct {
	Symbol        string  `csv:"symbol"`
	Candle1Date   string  `csv:"candle1_date"`
	Candle2Date   string  `csv:"candle2_date"`
	Candle3Date   string  `csv:"candle3_date"`
	Candle3High   float64 `csv:"candle3_high"`
	DetectionDate string  `csv:"detection_date"`
}

type signalRow struct {
	Symbol          string  `csv:"symbol"`
	Candle3High     float64 `csv:"candle3_high"`
	HAOpen          string  `csv:"ha_open"`
	HAClose         string  `csv:"ha_close"`
	PreviousHAClose string  `csv:"previous_ha_close"`
	CurrentPrice    float64 `csv:"current_price"`
	SignalDate      string  `csv:"signal_date"`
	Mode            string  `csv:"mode"`
}

// PoolTable is the CSV-backed pool.
type PoolTable struct {
	path string
}

// NewPoolTable creates a pool table at path.
func NewPoolTable(path string) *PoolTable {
	return &PoolTable{path: path}
}

func (t *PoolTable) Path() string { return t.path }

// ReadAll returns every entry. A missing or empty file is an empty pool.
func (t *PoolTable) ReadAll() ([]models.PoolEntry, error) {
	var rows []*poolRow
	if err := readCSV(t.path, &rows); err != nil {
		return nil, err
	}

	entries := make([]models.PoolEntry, 0, len(rows))
	for i, r := range rows {
		e, err := r.toEntry()
		if err != nil {
			return nil, errors.NewPersistenceError(t.path, "read", fmt.Errorf("row %d: %w", i+1, err))
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteAll replaces the file contents. An empty slice writes a header-only file.
func (t *PoolTable) WriteAll(entries []models.PoolEntry) error {
	rows := make([]*poolRow, len(entries))
	for i, e := range entries {
		rows[i] = &poolRow{
			Symbol:        e.Symbol,
			Candle1Date:   utils.DateKey(e.Candle1Date),
			Candle2Date:   utils.DateKey(e.Candle2Date),
			Candle3Date:   utils.DateKey(e.Candle3Date),
			Candle3High:   e.Candle3High,
			DetectionDate: formatTimestamp(e.DetectionDate),
		}
	}
	return writeCSV(t.path, &rows)
}

func (r *poolRow) toEntry() (models.PoolEntry, error) {
	e := models.PoolEntry{
		Symbol:      strings.TrimSpace(r.Symbol),
		Candle3High: r.Candle3High,
	}
	if e.Symbol == "" {
		return e, fmt.Errorf("missing symbol")
	}
	var err error
	if e.Candle1Date, err = parseTime(r.Candle1Date); err != nil {
		return e, fmt.Errorf("candle1_date: %w", err)
	}
	if e.Candle2Date, err = parseTime(r.Candle2Date); err != nil {
		return e, fmt.Errorf("candle2_date: %w", err)
	}
	if e.Candle3Date, err = parseTime(r.Candle3Date); err != nil {
		return e, fmt.Errorf("candle3_date: %w", err)
	}
	if r.DetectionDate != "" {
		if e.DetectionDate, err = parseTime(r.DetectionDate); err != nil {
			return e, fmt.Errorf("detection_date: %w", err)
		}
	}
	return e, nil
}

// SignalTable is the CSV-backed signal list.
type SignalTable struct {
	path string
}

// NewSignalTable creates a signal table at path.
func NewSignalTable(path string) *SignalTable {
	return &SignalTable{path: path}
}

func (t *SignalTable) Path() string { return t.path }

// ReadAll returns every signal. A missing or empty file has no signals.
// Files without a mode column are treated as price mode.
func (t *SignalTable) ReadAll() ([]models.Signal, error) {
	var rows []*signalRow
	if err := readCSV(t.path, &rows); err != nil {
		return nil, err
	}

	signals := make([]models.Signal, 0, len(rows))
	for i, r := range rows {
		s, err := r.toSignal()
		if err != nil {
			return nil, errors.NewPersistenceError(t.path, "read", fmt.Errorf("row %d: %w", i+1, err))
		}
		signals = append(signals, s)
	}
	return signals, nil
}

// WriteAll replaces the file contents. An empty slice writes a header-only file.
func (t *SignalTable) WriteAll(signals []models.Signal) error {
	rows := make([]*signalRow, len(signals))
	for i, s := range signals {
		r := &signalRow{
			Symbol:       s.Symbol,
			Candle3High:  s.Candle3High,
			CurrentPrice: s.CurrentPrice,
			SignalDate:   formatTimestamp(s.SignalDate),
			Mode:         string(s.Mode),
		}
		if s.Mode == models.FinalizeHeikenAshi {
			r.HAOpen = formatFloat(s.HAOpen)
			r.HAClose = formatFloat(s.HAClose)
			if s.PreviousHAClose != nil {
				r.PreviousHAClose = formatFloat(*s.PreviousHAClose)
			}
		}
		rows[i] = r
	}
	return writeCSV(t.path, &rows)
}

func (r *signalRow) toSignal() (models.Signal, error) {
	s := models.Signal{
		Symbol:       strings.TrimSpace(r.Symbol),
		Candle3High:  r.Candle3High,
		CurrentPrice: r.CurrentPrice,
		Mode:         models.FinalizeMode(r.Mode),
	}
	if s.Symbol == "" {
		return s, fmt.Errorf("missing symbol")
	}
	if s.Mode == "" {
		s.Mode = models.FinalizePrice
	}

	var err error
	if r.SignalDate != "" {
		if s.SignalDate, err = parseTime(r.SignalDate); err != nil {
			return s, fmt.Errorf("signal_date: %w", err)
		}
	}
	if s.HAOpen, err = parseOptionalFloat(r.HAOpen); err != nil {
		return s, fmt.Errorf("ha_open: %w", err)
	}
	if s.HAClose, err = parseOptionalFloat(r.HAClose); err != nil {
		return s, fmt.Errorf("ha_close: %w", err)
	}
	if v := strings.TrimSpace(r.PreviousHAClose); v != "" {
		prev, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return s, fmt.Errorf("previous_ha_close: %w", err)
		}
		s.PreviousHAClose = &prev
	}
	return s, nil
}

// readCSV decodes path into out. A missing or blank file leaves out empty.
func readCSV(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewPersistenceError(path, "read", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := gocsv.Unmarshal(bytes.NewReader(data), out); err != nil {
		return errors.NewPersistenceError(path, "decode", err)
	}
	return nil
}

// writeCSV encodes in to a temp file next to path and renames it into place,
// so readers never observe a partially written table.
func writeCSV(path string, in interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewPersistenceError(path, "mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.NewPersistenceError(path, "create", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := gocsv.Marshal(in, tmp); err != nil {
		cleanup()
		return errors.NewPersistenceError(path, "encode", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.NewPersistenceError(path, "sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewPersistenceError(path, "close", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return errors.NewPersistenceError(path, "chmod", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.NewPersistenceError(path, "rename", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(utils.IndiaLocation).Format(timestampLayout)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseTime accepts the layouts in parseLayouts. Values without a zone are
// interpreted in IST.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, utils.IndiaLocation); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
