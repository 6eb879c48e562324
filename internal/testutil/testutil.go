// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
)

func NewLogger() *slog.Logger {
	debugLevel := os.Getenv("DEBUG")
	var level slog.Level
	switch debugLevel {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	default:
		// Suppress logs by default (only show errors and above)
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Country is one toy shapefile record. Rings follow the shapefile
// convention: clockwise exteriors, counter-clockwise holes.
type Country struct {
	ID, Name, Description string
	Rings                 [][]shp.Point
}

// Square returns a clockwise closed ring with its lower-left corner at x, y.
func Square(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
}

// Hole returns a counter-clockwise closed ring with its lower-left corner at x, y.
func Hole(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x + size, Y: y},
		{X: x + size, Y: y + size},
		{X: x, Y: y + size},
		{X: x, Y: y},
	}
}

// WriteShapefile writes countries to a polygon shapefile in a temp dir and
// returns the .shp path.
func WriteShapefile(t testing.TB, countries ...Country) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "countries.shp")

	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		t.Fatalf("create shapefile: %v", err)
	}
	if err := w.SetFields([]shp.Field{
		shp.StringField("ADM0_A3", 3),
		shp.StringField("NAME", 40),
		shp.StringField("FORMAL_EN", 80),
	}); err != nil {
		t.Fatalf("set fields: %v", err)
	}

	for _, c := range countries {
		poly := shp.Polygon(*shp.NewPolyLine(c.Rings))
		n := int(w.Write(&poly))
		for i, v := range []string{c.ID, c.Name, c.Description} {
			if err := w.WriteAttribute(n, i, v); err != nil {
				t.Fatalf("write attribute: %v", err)
			}
		}
	}
	w.Close()

	// go-shp v0.1.1 names the attribute file "<base>dbf"; the reader opens
	// "<base>.dbf".
	base := strings.TrimSuffix(path, ".shp")
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		t.Fatalf("rename dbf: %v", err)
	}
	return path
}

// WriteFile writes content under a temp dir and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
