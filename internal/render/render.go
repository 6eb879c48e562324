// Package render merges measurements into country features and produces the
// styled, optionally time-stamped records of a KML document.
package render

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"kmlviz/internal/models"
)

const (
	DefaultStaticScale   = 100_000
	DefaultAnimatedScale = 5_000

	lineAlpha = 0x33
	fillAlpha = 0x88
	lineWidth = 2
)

// Options configures a Renderer. Zero scales and a nil palette or logger take
// the package defaults.
type Options struct {
	Palette       Palette
	StaticScale   float64
	AnimatedScale float64
	Logger        *slog.Logger
}

type Renderer struct {
	palette       Palette
	staticScale   float64
	animatedScale float64
	log           *slog.Logger
	printer       *message.Printer
}

func New(opts Options) *Renderer {
	r := &Renderer{
		palette:       opts.Palette,
		staticScale:   opts.StaticScale,
		animatedScale: opts.AnimatedScale,
		log:           opts.Logger,
		printer:       message.NewPrinter(language.English),
	}
	if r.palette == nil {
		r.palette = randomPalette{}
	}
	if r.staticScale == 0 {
		r.staticScale = DefaultStaticScale
	}
	if r.animatedScale == 0 {
		r.animatedScale = DefaultAnimatedScale
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// styleCache hands out one Style per country for the lifetime of a document.
type styleCache struct {
	palette Palette
	styles  map[string]models.Style
	order   []models.Style
}

func newStyleCache(p Palette) *styleCache {
	return &styleCache{palette: p, styles: make(map[string]models.Style)}
}

func (c *styleCache) get(country string) models.Style {
	if s, ok := c.styles[country]; ok {
		return s
	}
	base := c.palette.Color(country)
	line, fill := base, base
	line.A, fill.A = lineAlpha, fillAlpha
	s := models.Style{ID: StyleID(country), Line: line, Fill: fill, Width: lineWidth}
	c.styles[country] = s
	c.order = append(c.order, s)
	return s
}

// Static emits one record per feature for a single year. Height is the
// measurement times the static scale; features without a measurement sit at 0.
func (r *Renderer) Static(features []models.Feature, values map[string]float64, year int) models.Document {
	doc := models.Document{
		Name:        fmt.Sprintf("CO2 per capita %d", year),
		Description: fmt.Sprintf("Extrusion height: tonnes CO2 per person x %s m", r.printer.Sprint(r.staticScale)),
		Records:     make([]models.VisualRecord, 0, len(features)),
	}
	styles := newStyleCache(r.palette)
	missing := 0

	for _, f := range features {
		v, ok := values[f.ID]
		if !ok {
			missing++
		}
		style := styles.get(f.ID)
		doc.Records = append(doc.Records, models.VisualRecord{
			ID:          f.ID,
			Name:        f.Name,
			Description: r.describe(f, year, v),
			Country:     f.ID,
			Geometry:    f.Geometry,
			Height:      v * r.staticScale,
			Style:       &style,
		})
	}

	r.log.Debug("render: static document", "year", year, "records", len(doc.Records), "without_measurement", missing)
	return doc
}

// Animated emits, per feature, one record per year in [from, to]. Heights
// accumulate over the years; a year without a measurement adds nothing.
// Each country gets one folder and one document-level style.
func (r *Renderer) Animated(features []models.Feature, byYear map[int]map[string]float64, from, to int) models.Document {
	doc := models.Document{
		Name:        fmt.Sprintf("Cumulative CO2 per capita %d-%d", from, to),
		Description: fmt.Sprintf("Extrusion height: accumulated tonnes CO2 per person x %s m", r.printer.Sprint(r.animatedScale)),
		Folders:     make([]models.Folder, 0, len(features)),
	}
	styles := newStyleCache(r.palette)

	for _, f := range features {
		style := styles.get(f.ID)
		folder := models.Folder{Name: f.Name}
		if to >= from {
			folder.Records = make([]models.VisualRecord, 0, to-from+1)
		}

		var sum float64
		for y := from; y <= to; y++ {
			v := byYear[y][f.ID]
			sum += v
			folder.Records = append(folder.Records, models.VisualRecord{
				ID:          fmt.Sprintf("%s-%d", f.ID, y),
				Name:        fmt.Sprintf("%s %d", f.Name, y),
				Description: r.describeCumulative(f, y, v, sum),
				Country:     f.ID,
				Geometry:    f.Geometry,
				Height:      sum * r.animatedScale,
				StyleID:     style.ID,
				Span:        &models.TimeSpan{BeginYear: y, BeginMonth: 1, EndYear: y, EndMonth: 12},
			})
		}
		doc.Folders = append(doc.Folders, folder)
	}
	doc.Styles = styles.order

	r.log.Debug("render: animated document", "from", from, "to", to, "folders", len(doc.Folders), "styles", len(doc.Styles))
	return doc
}

func (r *Renderer) describe(f models.Feature, year int, v float64) string {
	return fmt.Sprintf("%s\nCO2 per capita (%d): %s t", heading(f), year, r.tonnes(v))
}

func (r *Renderer) describeCumulative(f models.Feature, year int, v, sum float64) string {
	return fmt.Sprintf("%s\nCO2 per capita (%d): %s t\nAccumulated since start: %s t", heading(f), year, r.tonnes(v), r.tonnes(sum))
}

// tonnes formats with English digit grouping. Years go through fmt, the
// printer would group them too.
func (r *Renderer) tonnes(v float64) string {
	return r.printer.Sprintf("%.2f", v)
}

func heading(f models.Feature) string {
	if f.Description != "" {
		return f.Description
	}
	return f.Name
}

// StyleID returns the KML id of a country's style. Characters outside the
// XML NCName set become underscores.
func StyleID(country string) string {
	var b strings.Builder
	b.WriteString("style-")
	for _, c := range country {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
