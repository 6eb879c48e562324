package engine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Columns names the CSV header fields the loader reads.
type Columns struct {
	Year    string `yaml:"year"`
	Country string `yaml:"country"`
	Value   string `yaml:"value"`
	Name    string `yaml:"name"` // optional
}

// DefaultColumns matches the OWID CO2 dataset.
var DefaultColumns = Columns{
	Year:    "year",
	Country: "iso_code",
	Value:   "co2_per_capita",
	Name:    "country",
}

type LoadOptions struct {
	Columns Columns
	Year    int // 0 loads every year
	Logger  *slog.Logger
}

// --- 1. FIELD PARSERS ---

// parseValue parses a measurement; empty fields are zero.
func parseValue(field string) (float64, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return 0, nil
	}
	return strconv.ParseFloat(field, 64)
}

func parseYear(field string) (int32, error) {
	y, err := strconv.ParseInt(strings.TrimSpace(field), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(y), nil
}

type columnIndex struct {
	year, country, value, name int
}

func indexHeader(header []string, cols Columns) (columnIndex, error) {
	idx := columnIndex{year: -1, country: -1, value: -1, name: -1}
	for i, h := range header {
		// Strip a UTF-8 BOM on the first header cell.
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch h {
		case cols.Year:
			idx.year = i
		case cols.Country:
			idx.country = i
		case cols.Value:
			idx.value = i
		}
		if cols.Name != "" && h == cols.Name {
			idx.name = i
		}
	}
	switch {
	case idx.year < 0:
		return idx, fmt.Errorf("%w: %q", ErrMissingColumn, cols.Year)
	case idx.country < 0:
		return idx, fmt.Errorf("%w: %q", ErrMissingColumn, cols.Country)
	case idx.value < 0:
		return idx, fmt.Errorf("%w: %q", ErrMissingColumn, cols.Value)
	}
	return idx, nil
}

// --- 2. MAIN LOADER ---

// LoadColumnar reads a measurement CSV from disk.
func LoadColumnar(path string, opts LoadOptions) (*ColumnStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open measurements: %w", err)
	}
	defer f.Close()
	return ReadColumnar(f, opts)
}

// ReadColumnar reads a measurement CSV with a header row. Rows with an empty
// country code are skipped; empty measurements load as zero.
func ReadColumnar(r io.Reader, opts LoadOptions) (*ColumnStore, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cols := opts.Columns
	if cols == (Columns{}) {
		cols = DefaultColumns
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	// A. Header
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read header: empty input")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx, err := indexHeader(header, cols)
	if err != nil {
		return nil, err
	}

	store := &ColumnStore{NameDict: make(map[string]string)}
	cMap := make(map[string]int32)
	skipped := 0

	// B. Rows
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read measurements: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if idx.year >= len(rec) || idx.country >= len(rec) {
			skipped++
			continue
		}

		iso := strings.TrimSpace(rec[idx.country])
		if iso == "" {
			skipped++
			continue
		}

		year, err := parseYear(rec[idx.year])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid year %q: %w", line, rec[idx.year], err)
		}
		if opts.Year != 0 && int(year) != opts.Year {
			continue
		}

		var value float64
		if idx.value < len(rec) {
			if value, err = parseValue(rec[idx.value]); err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q: %w", line, cols.Value, rec[idx.value], err)
			}
		}

		id, ok := cMap[iso]
		if !ok {
			id = int32(len(store.CountryDict))
			store.CountryDict = append(store.CountryDict, iso)
			cMap[iso] = id
		}
		if idx.name >= 0 && idx.name < len(rec) {
			if name := strings.TrimSpace(rec[idx.name]); name != "" {
				store.NameDict[iso] = name
			}
		}

		store.Years = append(store.Years, year)
		store.CountryIDs = append(store.CountryIDs, id)
		store.Values = append(store.Values, value)
	}

	log.Info("engine: loaded measurements",
		"rows", store.Len(),
		"countries", len(store.CountryDict),
		"skipped", skipped,
		"duration", time.Since(start))
	return store, nil
}
