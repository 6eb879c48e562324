package engine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `country,year,iso_code,population,co2_per_capita
Germany,2019,DEU,83000000,8.5
Germany,2020,DEU,83100000,7.7
France,2020,FRA,67000000,
World,2020,,7800000000,4.5
France,2021,FRA,67100000,4.6
`

func TestLoadColumnar(t *testing.T) {
	// 1. Write CSV
	path := filepath.Join(t.TempDir(), "co2.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	// 2. Run Loader
	store, err := LoadColumnar(path, LoadOptions{})
	if err != nil {
		t.Fatalf("LoadColumnar: %v", err)
	}

	// 3. Assertions

	// The World aggregate has no ISO code and is skipped.
	if store.Len() != 4 {
		t.Fatalf("Expected 4 rows, got %d", store.Len())
	}
	if len(store.CountryDict) != 2 {
		t.Errorf("Expected 2 unique countries, got %d", len(store.CountryDict))
	}
	if store.Years[0] != 2019 || store.Values[0] != 8.5 {
		t.Errorf("Row 0: got year %d value %f", store.Years[0], store.Values[0])
	}
	if store.NameDict["FRA"] != "France" {
		t.Errorf("Expected FRA name France, got %q", store.NameDict["FRA"])
	}
}

func TestLoadColumnar_EmptyValueIsZero(t *testing.T) {
	store, err := ReadColumnar(strings.NewReader(sampleCSV), LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got, ok := store.ForYear(2020)["FRA"]
	if !ok {
		t.Fatal("FRA missing for 2020")
	}
	if got != 0 {
		t.Errorf("Expected empty value to load as 0, got %f", got)
	}
}

func TestLoadColumnar_YearFilter(t *testing.T) {
	store, err := ReadColumnar(strings.NewReader(sampleCSV), LoadOptions{Year: 2020})
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Fatalf("Expected 2 rows for 2020, got %d", store.Len())
	}
	for _, y := range store.Years {
		if y != 2020 {
			t.Errorf("Unexpected year %d", y)
		}
	}
}

func TestLoadColumnar_CustomColumns(t *testing.T) {
	csv := "Year,Code,Value\n2001,ABC,1.5\n"
	store, err := ReadColumnar(strings.NewReader(csv), LoadOptions{
		Columns: Columns{Year: "Year", Country: "Code", Value: "Value"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if v := store.ForYear(2001)["ABC"]; v != 1.5 {
		t.Errorf("Expected 1.5, got %f", v)
	}
}

func TestLoadColumnar_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadColumnar(filepath.Join(t.TempDir(), "nope.csv"), LoadOptions{})
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Expected fs.ErrNotExist, got %v", err)
		}
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := ReadColumnar(strings.NewReader("year,iso_code\n2020,DEU\n"), LoadOptions{})
		if !errors.Is(err, ErrMissingColumn) {
			t.Errorf("Expected ErrMissingColumn, got %v", err)
		}
		if err != nil && !strings.Contains(err.Error(), "co2_per_capita") {
			t.Errorf("Expected error to name the column, got %v", err)
		}
	})

	t.Run("malformed value", func(t *testing.T) {
		_, err := ReadColumnar(strings.NewReader("year,iso_code,co2_per_capita\n2020,DEU,abc\n"), LoadOptions{})
		if err == nil || !strings.Contains(err.Error(), "line 2") {
			t.Errorf("Expected line 2 error, got %v", err)
		}
	})

	t.Run("malformed year", func(t *testing.T) {
		_, err := ReadColumnar(strings.NewReader("year,iso_code,co2_per_capita\nsoon,DEU,1\n"), LoadOptions{})
		if err == nil || !strings.Contains(err.Error(), "invalid year") {
			t.Errorf("Expected invalid year error, got %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := ReadColumnar(strings.NewReader(""), LoadOptions{}); err == nil {
			t.Error("Expected error for empty input")
		}
	})
}

func TestFieldParsers(t *testing.T) {
	f, err := parseValue(" 123.45 ")
	if err != nil || f != 123.45 {
		t.Errorf("parseValue failed: %v %v", f, err)
	}

	f, err = parseValue("")
	if err != nil || f != 0 {
		t.Errorf("parseValue empty failed: %v %v", f, err)
	}

	y, err := parseYear("1995")
	if err != nil || y != 1995 {
		t.Errorf("parseYear failed: %v %v", y, err)
	}
}
