// Package prices reads price history from CSV files into a market.PriceMatrix.
//
// Two layouts are understood: a wide table with one column per ticker, and a
// directory holding one file per ticker as written by the yfinance downloader
// (three header rows, then Date,Close,High,Low,Open,Volume data rows). Missing
// cells stay absent; nothing is interpolated or forward-filled.
package prices

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/cluso-corrnet/pkg/logging"
	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/validation"
)

// DateLayout is the calendar date format used in every price file
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Errors returned by the loaders
var (
	ErrNoDateColumn  = errors.New("missing Date column")
	ErrNoCloseColumn = errors.New("missing Close column")
	ErrNoTickers     = errors.New("no tickers found")
	ErrBadDate       = errors.New("unparseable date")
	ErrBadPrice      = errors.New("unparseable price")
)

// Options configures a Loader
type Options struct {
	// Start and End bound the rows kept, Start inclusive and End exclusive.
	// A zero value leaves that side open.
	Start time.Time
	End   time.Time
}

// Loader reads price files
type Loader struct {
	opts   Options
	logger logging.Logger
}

// NewLoader creates a loader. A nil logger discards output.
func NewLoader(opts Options, logger logging.Logger) (*Loader, error) {
	if !opts.Start.IsZero() && !opts.End.IsZero() && !opts.End.After(opts.Start) {
		return nil, validation.NewConfigurationError("prices", "End",
			"must be after start (%s >= %s)", opts.Start.Format(DateLayout), opts.End.Format(DateLayout))
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Loader{opts: opts, logger: logger.With(logging.Component("prices"))}, nil
}

// LoadWideFile reads a wide CSV (Date,T1,T2,...) from disk
func (l *Loader) LoadWideFile(path string) (*market.PriceMatrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price file: %w", err)
	}
	defer file.Close()

	pm, err := l.LoadWide(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Info("loaded price file",
		logging.Path(path),
		logging.Int("tickers", pm.NumAssets()),
		logging.Int("rows", pm.Rows()))
	return pm, nil
}

// LoadWide reads a wide CSV whose first column is the date and whose
// remaining header cells are tickers. An empty cell is an absent price.
func (l *Loader) LoadWide(r io.Reader) (*market.PriceMatrix, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoTickers
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = append([]string(nil), header...)

	if !strings.EqualFold(strings.TrimSpace(header[0]), "Date") {
		return nil, fmt.Errorf("%w: first header cell is %q", ErrNoDateColumn, header[0])
	}
	tickers := make([]string, len(header)-1)
	seen := make(map[string]bool, len(tickers))
	for i, cell := range header[1:] {
		ticker := strings.TrimSpace(cell)
		if err := validation.ValidateTicker(ticker); err != nil {
			return nil, fmt.Errorf("header column %d: %w", i+2, err)
		}
		if seen[ticker] {
			return nil, fmt.Errorf("%w: %s", market.ErrDuplicateTicker, ticker)
		}
		seen[ticker] = true
		tickers[i] = ticker
	}
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}

	b := market.NewPriceMatrixBuilder()
	for _, ticker := range tickers {
		b.AddTicker(ticker)
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		ts, err := parseDate(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for i, ticker := range tickers {
			if i+1 >= len(record) {
				break
			}
			price, ok, err := parsePrice(record[i+1])
			if err != nil {
				return nil, fmt.Errorf("line %d, %s: %w", line, ticker, err)
			}
			if !ok {
				continue
			}
			if err := b.Set(ts, ticker, price); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
	}

	return l.build(b)
}

// LoadDir reads <dir>/<TICKER>.csv for every ticker. With no tickers given,
// every *.csv file in dir is loaded. A listed ticker without a file is kept
// as an all-absent column so that it is reported as excluded downstream.
func (l *Loader) LoadDir(dir string, tickers []string) (*market.PriceMatrix, error) {
	if len(tickers) == 0 {
		found, err := discover(dir)
		if err != nil {
			return nil, err
		}
		tickers = found
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTickers, dir)
	}

	b := market.NewPriceMatrixBuilder()
	missing := 0
	for _, ticker := range tickers {
		if err := validation.ValidateTicker(ticker); err != nil {
			return nil, err
		}
		b.AddTicker(ticker)

		path := filepath.Join(dir, ticker+".csv")
		file, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("price file not found", logging.Ticker(ticker), logging.Path(path))
			missing++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open price file: %w", err)
		}

		rows, err := l.readTicker(file, ticker, b)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		l.logger.Debug("loaded ticker", logging.Ticker(ticker), logging.Count(rows))
	}

	pm, err := l.build(b)
	if err != nil {
		return nil, err
	}
	l.logger.Info("loaded price directory",
		logging.Path(dir),
		logging.Int("tickers", len(tickers)),
		logging.Int("missing", missing),
		logging.Int("rows", pm.Rows()))
	return pm, nil
}

// ReadTicker reads one per-ticker file into b and returns the number of
// prices recorded.
func (l *Loader) ReadTicker(r io.Reader, ticker string, b *market.PriceMatrixBuilder) (int, error) {
	return l.readTicker(r, ticker, b)
}

func (l *Loader) readTicker(r io.Reader, ticker string, b *market.PriceMatrixBuilder) (int, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}

	// Newer yfinance writes "Price,Close,..." then Ticker and Date rows,
	// older versions a single "Date,Open,High,Low,Close,..." row.
	closeCol := -1
	for i, col := range header {
		if strings.TrimSpace(col) == "Close" {
			closeCol = i
			break
		}
	}
	if closeCol < 0 {
		return 0, fmt.Errorf("%w in header %v", ErrNoCloseColumn, header)
	}

	count := 0
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		first := strings.TrimSpace(record[0])
		if count == 0 && (first == "Ticker" || first == "Date") {
			if first == "Ticker" && closeCol < len(record) {
				if got := strings.TrimSpace(record[closeCol]); got != "" && got != ticker {
					l.logger.Warn("ticker row does not match file name",
						logging.Ticker(ticker), logging.String("file_ticker", got))
				}
			}
			continue
		}

		ts, err := parseDate(first)
		if err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		if closeCol >= len(record) {
			continue
		}
		price, ok, err := parsePrice(record[closeCol])
		if err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			continue
		}
		if err := b.Set(ts, ticker, price); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}
	return count, nil
}

func (l *Loader) build(b *market.PriceMatrixBuilder) (*market.PriceMatrix, error) {
	pm, err := b.Build()
	if err != nil {
		return nil, err
	}
	if l.opts.Start.IsZero() && l.opts.End.IsZero() {
		return pm, nil
	}
	return pm.Between(l.opts.Start, l.opts.End), nil
}

// LoadTickers reads a ticker list from a CSV file with a Ticker column.
// Blank and repeated entries are skipped; order is preserved.
func LoadTickers(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tickers file: %w", err)
	}
	defer file.Close()

	tickers, err := ReadTickers(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tickers, nil
}

// ReadTickers is LoadTickers over a reader
func ReadTickers(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoTickers
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "Ticker") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("missing Ticker column in header %v", header)
	}

	var tickers []string
	seen := make(map[string]bool)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if col >= len(record) {
			continue
		}
		ticker := strings.TrimSpace(record[col])
		if ticker == "" || seen[ticker] {
			continue
		}
		if err := validation.ValidateTicker(ticker); err != nil {
			return nil, err
		}
		seen[ticker] = true
		tickers = append(tickers, ticker)
	}
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}
	return tickers, nil
}

func discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read price directory: %w", err)
	}
	var tickers []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		tickers = append(tickers, strings.TrimSuffix(name, filepath.Ext(name)))
	}
	sort.Strings(tickers)
	return tickers, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}

// parsePrice returns ok == false for an empty or NaN cell
func parsePrice(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrBadPrice, s)
	}
	return v, true, nil
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
