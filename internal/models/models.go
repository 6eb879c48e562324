package models

import (
	"image/color"

	"github.com/paulmach/orb"
)

// Feature is one country boundary read from the geometry source.
type Feature struct {
	ID          string
	Name        string
	Description string
	Geometry    orb.Geometry // orb.Polygon or orb.MultiPolygon, lon/lat
}

// Style is shared by every record of one country.
// Colors hold unpremultiplied channels, the way KML stores aabbggrr.
type Style struct {
	ID    string
	Line  color.RGBA
	Fill  color.RGBA
	Width float64
}

// TimeSpan is a validity interval at year-month resolution.
type TimeSpan struct {
	BeginYear, BeginMonth int
	EndYear, EndMonth     int
}

// VisualRecord is one placemark of the output document.
type VisualRecord struct {
	ID          string
	Name        string
	Description string
	Country     string
	Geometry    orb.Geometry
	Height      float64

	// Exactly one of StyleID (reference to a document style) or Style (embedded) is set.
	StyleID string
	Style   *Style

	Span *TimeSpan
}

type Folder struct {
	Name    string
	Records []VisualRecord
}

// Document is the renderer output consumed by the writer.
type Document struct {
	Name        string
	Description string
	Styles      []Style
	Folders     []Folder
	Records     []VisualRecord
}

// RecordCount returns the number of records across the document and its folders.
func (d *Document) RecordCount() int {
	n := len(d.Records)
	for _, f := range d.Folders {
		n += len(f.Records)
	}
	return n
}

// --- API payloads ---

type CountryValue struct {
	ISOCode string  `json:"iso_code"`
	Name    string  `json:"name,omitempty"`
	Value   float64 `json:"co2_per_capita"`
}

type YearValue struct {
	Year       int     `json:"year"`
	Value      float64 `json:"co2_per_capita"`
	Cumulative float64 `json:"cumulative"`
}

type CountrySeries struct {
	ISOCode string      `json:"iso_code"`
	Name    string      `json:"name,omitempty"`
	Years   []YearValue `json:"years"`
}

type DatasetSummary struct {
	Rows      int `json:"rows"`
	Countries int `json:"countries"`
	Features  int `json:"features"`
	FirstYear int `json:"first_year"`
	LastYear  int `json:"last_year"`
}
