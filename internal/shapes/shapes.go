// Package shapes reads country boundaries from an ESRI shapefile.
package shapes

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"kmlviz/internal/models"
)

// ErrMissingField is returned when the attribute table lacks a required field.
var ErrMissingField = errors.New("missing attribute field")

// Fields names the attribute columns that become a Feature.
type Fields struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"` // optional
}

// DefaultFields matches Natural Earth admin-0 country files.
var DefaultFields = Fields{
	ID:          "ADM0_A3",
	Name:        "NAME",
	Description: "FORMAL_EN",
}

// Load reads every polygon feature of the shapefile at path (the .shp of the
// .shp/.shx/.dbf triplet). Null and non-polygon shapes are skipped.
func Load(path string, fields Fields, log *slog.Logger) ([]models.Feature, error) {
	start := time.Now()
	if log == nil {
		log = slog.Default()
	}
	if fields == (Fields{}) {
		fields = DefaultFields
	}

	// go-shp reports a missing file as a bare open error; check first so
	// callers can match fs.ErrNotExist.
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer r.Close()

	idIdx, nameIdx, descIdx := -1, -1, -1
	for i, f := range r.Fields() {
		switch strings.TrimSpace(f.String()) {
		case fields.ID:
			idIdx = i
		case fields.Name:
			nameIdx = i
		case fields.Description:
			descIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, fields.ID)
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, fields.Name)
	}

	var features []models.Feature
	skipped := 0
	for r.Next() {
		n, shape := r.Shape()
		geom := toGeometry(shape)
		if geom == nil {
			skipped++
			continue
		}
		f := models.Feature{
			ID:       attr(r, n, idIdx),
			Name:     attr(r, n, nameIdx),
			Geometry: geom,
		}
		if descIdx >= 0 {
			f.Description = attr(r, n, descIdx)
		}
		features = append(features, f)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile: %w", err)
	}
	if skipped > 0 {
		log.Warn("shapes: skipped shapes without polygon geometry", "count", skipped)
	}

	log.Info("shapes: loaded features", "count", len(features), "duration", time.Since(start))
	return features, nil
}

func attr(r *shp.Reader, row, field int) string {
	return strings.Trim(r.ReadAttribute(row, field), " \x00")
}

// toGeometry converts a shapefile polygon into orb geometry. Clockwise rings
// are exteriors, counter-clockwise rings are holes of the exterior that
// contains them. A hole inside no exterior, or a shape without any clockwise
// ring, is read as an exterior of its own.
func toGeometry(shape shp.Shape) orb.Geometry {
	var parts []int32
	var points []shp.Point
	switch s := shape.(type) {
	case *shp.Polygon:
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		parts, points = s.Parts, s.Points
	default:
		return nil
	}

	rings := splitRings(parts, points)
	var polys []orb.Polygon
	var holes []orb.Ring
	for _, ring := range rings {
		if len(ring) < 4 {
			continue
		}
		if ring.Orientation() == orb.CCW {
			holes = append(holes, ring)
			continue
		}
		polys = append(polys, orb.Polygon{ring})
	}

	exteriors := len(polys)
	for _, h := range holes {
		owner := -1
		for i, p := range polys[:exteriors] {
			if planar.RingContains(p[0], h[0]) {
				owner = i
				break
			}
		}
		if owner < 0 {
			polys = append(polys, orb.Polygon{h})
			continue
		}
		polys[owner] = append(polys[owner], h)
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	default:
		return orb.MultiPolygon(polys)
	}
}

func splitRings(parts []int32, points []shp.Point) []orb.Ring {
	rings := make([]orb.Ring, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		rings = append(rings, ring)
	}
	return rings
}
