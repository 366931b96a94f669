package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"breachstudy/internal/errors"
)

// Store reads and writes per-ticker daily quote CSVs under a base directory
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a quote store rooted at dir
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// quotePath returns the CSV path for a ticker
func (s *Store) quotePath(ticker string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_daily.csv", strings.ToUpper(ticker)))
}

// HasQuotes reports whether a quote file exists for the ticker
func (s *Store) HasQuotes(ticker string) bool {
	_, err := os.Stat(s.quotePath(ticker))
	return err == nil
}

// LoadQuotes reads the daily quote history for a ticker
func (s *Store) LoadQuotes(ticker string) ([]DailyQuote, error) {
	path := s.quotePath(ticker)
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("failed to open quotes for %s", ticker), err)
	}
	defer file.Close()

	quotes, err := readQuotes(file, strings.ToUpper(ticker))
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("quotes for %s", ticker), err)
	}

	s.logger.Debug("loaded quotes",
		slog.String("ticker", ticker),
		slog.Int("days", len(quotes)))

	return quotes, nil
}

// SaveQuotes writes the daily quote history for a ticker, replacing any
// existing file.
func (s *Store) SaveQuotes(ticker string, quotes []DailyQuote) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.NewStorageError("failed to create quotes directory", err)
	}

	file, err := os.Create(s.quotePath(ticker))
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to create quotes file for %s", ticker), err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Date", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return errors.NewStorageError("failed to write quotes header", err)
	}

	for i, q := range quotes {
		record := []string{
			q.Date.Format("2006-01-02"),
			formatFloat(q.Open),
			formatFloat(q.High),
			formatFloat(q.Low),
			formatFloat(q.Close),
			formatFloat(q.Volume),
		}
		if err := writer.Write(record); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to write quote record %d", i), err)
		}
	}

	return writer.Error()
}

// LoadIndex reads the market index series used by the market model
func LoadIndex(path string, logger *slog.Logger) (*ReturnSeries, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to open market index CSV", err)
	}
	defer file.Close()

	quotes, err := readQuotes(file, "MARKET")
	if err != nil {
		return nil, errors.NewParsingError("market index", err)
	}

	series := ComputeReturns("MARKET", quotes)
	logger.Info("loaded market index",
		slog.String("path", path),
		slog.Int("return_days", series.Len()))

	return series, nil
}

// readQuotes parses a quote CSV with a header-mapped column layout
func readQuotes(r io.Reader, ticker string) ([]DailyQuote, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx, openIdx, highIdx, lowIdx, closeIdx, volumeIdx := -1, -1, -1, -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF"))) {
		case "date":
			dateIdx = i
		case "open", "openprice":
			openIdx = i
		case "high", "highprice":
			highIdx = i
		case "low", "lowprice":
			lowIdx = i
		case "close", "closeprice", "adjclose", "adj close", "value", "level":
			closeIdx = i
		case "volume":
			volumeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("quote CSV missing Date or Close column")
	}

	var quotes []DailyQuote
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++

		date, err := time.Parse("2006-01-02", record[dateIdx])
		if err != nil {
			// Skip malformed dates rather than failing the whole file
			continue
		}

		q := DailyQuote{Ticker: ticker, Date: date}
		q.Close, _ = strconv.ParseFloat(record[closeIdx], 64)
		if openIdx >= 0 && openIdx < len(record) {
			q.Open, _ = strconv.ParseFloat(record[openIdx], 64)
		}
		if highIdx >= 0 && highIdx < len(record) {
			q.High, _ = strconv.ParseFloat(record[highIdx], 64)
		}
		if lowIdx >= 0 && lowIdx < len(record) {
			q.Low, _ = strconv.ParseFloat(record[lowIdx], 64)
		}
		if volumeIdx >= 0 && volumeIdx < len(record) {
			q.Volume, _ = strconv.ParseFloat(record[volumeIdx], 64)
		}

		if q.IsValid() {
			quotes = append(quotes, q)
		}
	}

	return quotes, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
