// Package kmldoc turns a rendered document into KML and persists it.
package kmldoc

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-kml/v3"

	"kmlviz/internal/models"
)

const ContentType = "application/vnd.google-earth.kml+xml"

// DefaultPrecision is the number of decimals kept per coordinate.
const DefaultPrecision = 3

type EncodeOptions struct {
	Precision int    // decimals per coordinate; negative keeps full precision
	Indent    string // empty writes compact XML
}

// Encode writes doc as a KML file to w.
func Encode(w io.Writer, doc models.Document, opts EncodeOptions) error {
	k := Build(doc, opts.Precision)
	var err error
	if opts.Indent != "" {
		err = k.WriteIndent(w, "", opts.Indent)
	} else {
		err = k.Write(w)
	}
	if err != nil {
		return fmt.Errorf("failed to encode kml: %w", err)
	}
	return nil
}

// Build maps doc onto the KML element tree. Document styles come first so
// that records can reference them by url.
func Build(doc models.Document, precision int) *kml.KMLElement {
	d := kml.Document(kml.Name(doc.Name))
	if doc.Description != "" {
		d.Append(kml.Description(doc.Description))
	}
	for _, s := range doc.Styles {
		d.Append(style(s))
	}
	for _, rec := range doc.Records {
		d.Append(placemark(rec, precision))
	}
	for _, f := range doc.Folders {
		folder := kml.Folder(kml.Name(f.Name))
		for _, rec := range f.Records {
			folder.Append(placemark(rec, precision))
		}
		d.Append(folder)
	}
	return kml.KML(d)
}

func style(s models.Style) *kml.StyleElement {
	return kml.SharedStyle(s.ID,
		kml.LineStyle(
			kml.Color(s.Line),
			kml.Width(s.Width),
		),
		kml.PolyStyle(
			kml.Color(s.Fill),
			kml.Fill(true),
			kml.Outline(true),
		),
	)
}

// placemarkElement is a Placemark carrying an id attribute.
type placemarkElement struct {
	ID       string
	Children []kml.Element
}

func (e *placemarkElement) MarshalXML(encoder *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "Placemark"}}
	if e.ID != "" {
		start.Attr = []xml.Attr{{Name: xml.Name{Local: "id"}, Value: e.ID}}
	}
	if err := encoder.EncodeToken(start); err != nil {
		return err
	}
	for _, child := range e.Children {
		if err := child.MarshalXML(encoder, xml.StartElement{}); err != nil {
			return err
		}
	}
	return encoder.EncodeToken(start.End())
}

func placemark(rec models.VisualRecord, precision int) *placemarkElement {
	pm := &placemarkElement{ID: rec.ID, Children: []kml.Element{kml.Name(rec.Name)}}
	if rec.Description != "" {
		pm.Children = append(pm.Children, kml.Description(rec.Description))
	}
	if rec.Span != nil {
		pm.Children = append(pm.Children, kml.TimeSpan(
			yearMonthElement{Local: "begin", Year: rec.Span.BeginYear, Month: rec.Span.BeginMonth},
			yearMonthElement{Local: "end", Year: rec.Span.EndYear, Month: rec.Span.EndMonth},
		))
	}
	switch {
	case rec.Style != nil:
		pm.Children = append(pm.Children, style(*rec.Style))
	case rec.StyleID != "":
		pm.Children = append(pm.Children, kml.StyleURL("#"+rec.StyleID))
	}
	if g := geometry(rec.Geometry, rec.Height, precision); g != nil {
		pm.Children = append(pm.Children, g)
	}
	return pm
}

// yearMonthElement writes a gYearMonth value; kml.Begin/End only take full
// timestamps.
type yearMonthElement struct {
	Local       string
	Year, Month int
}

func (e yearMonthElement) MarshalXML(encoder *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Local}}
	return encoder.EncodeElement(fmt.Sprintf("%04d-%02d", e.Year, e.Month), start)
}

func geometry(g orb.Geometry, height float64, precision int) kml.Element {
	switch g := g.(type) {
	case orb.Polygon:
		return polygon(g, height, precision)
	case orb.MultiPolygon:
		mg := kml.MultiGeometry()
		for _, p := range g {
			mg.Append(polygon(p, height, precision))
		}
		return mg
	default:
		return nil
	}
}

// polygon lifts p to height and extrudes it down to the ground.
func polygon(p orb.Polygon, height float64, precision int) *kml.PolygonElement {
	el := kml.Polygon(
		kml.Extrude(true),
		kml.AltitudeMode(kml.AltitudeModeRelativeToGround),
	)
	for i, ring := range p {
		lr := kml.LinearRing(kml.Coordinates(coordinates(ring, height, precision)...))
		if i == 0 {
			el.Append(kml.OuterBoundaryIs(lr))
		} else {
			el.Append(kml.InnerBoundaryIs(lr))
		}
	}
	return el
}

func coordinates(ring orb.Ring, alt float64, precision int) []kml.Coordinate {
	out := make([]kml.Coordinate, len(ring))
	for i, pt := range ring {
		out[i] = kml.Coordinate{
			Lon: round(pt.Lon(), precision),
			Lat: round(pt.Lat(), precision),
			Alt: round(alt, precision),
		}
	}
	return out
}

func round(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}
