// Package pipeline runs a full load, render and write pass.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"kmlviz/internal/config"
	"kmlviz/internal/engine"
	"kmlviz/internal/kmldoc"
	"kmlviz/internal/metrics"
	"kmlviz/internal/models"
	"kmlviz/internal/render"
	"kmlviz/internal/shapes"
)

// Dataset is the loaded input of a run: measurements and country features.
type Dataset struct {
	Store    *engine.ColumnStore
	Features []models.Feature
}

func (d *Dataset) Summary() models.DatasetSummary {
	first, last := d.Store.YearRange()
	return models.DatasetSummary{
		Rows:      d.Store.Len(),
		Countries: len(d.Store.CountryDict),
		Features:  len(d.Features),
		FirstYear: first,
		LastYear:  last,
	}
}

// LoadDataset reads the CSV and the shapefile concurrently.
func LoadDataset(ctx context.Context, cfg config.Config, log *slog.Logger) (*Dataset, error) {
	var ds Dataset
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		store, err := engine.LoadColumnar(cfg.CSVPath, engine.LoadOptions{Columns: cfg.Columns, Logger: log})
		observeLoad("csv", start, err)
		if err != nil {
			return fmt.Errorf("failed to load measurements: %w", err)
		}
		ds.Store = store
		return nil
	})

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		features, err := shapes.Load(cfg.ShapefilePath, cfg.Fields, log)
		observeLoad("shapefile", start, err)
		if err != nil {
			return fmt.Errorf("failed to load features: %w", err)
		}
		ds.Features = features
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ds, nil
}

func observeLoad(input string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.InputLoadsTotal.WithLabelValues(input, status).Inc()
	metrics.InputLoadDuration.WithLabelValues(input).Observe(time.Since(start).Seconds())
}

// NewRenderer builds the renderer described by cfg.
func NewRenderer(cfg config.Config, log *slog.Logger) (*render.Renderer, error) {
	palette, err := render.NewPalette(cfg.Color.Mode, cfg.Color.Seed)
	if err != nil {
		return nil, err
	}
	return render.New(render.Options{
		Palette:       palette,
		StaticScale:   cfg.StaticScale,
		AnimatedScale: cfg.AnimatedScale,
		Logger:        log,
	}), nil
}

// Render produces the document for cfg.Mode.
func Render(ds *Dataset, cfg config.Config, r *render.Renderer) models.Document {
	var doc models.Document
	if cfg.Mode == config.ModeAnimated {
		doc = r.Animated(ds.Features, ds.Store.ByYear(), cfg.FromYear, cfg.ToYear)
	} else {
		doc = r.Static(ds.Features, ds.Store.ForYear(cfg.Year), cfg.Year)
	}
	metrics.RecordsRenderedTotal.WithLabelValues(cfg.Mode).Add(float64(doc.RecordCount()))
	return doc
}

// EncodeOptions maps cfg onto writer options.
func EncodeOptions(cfg config.Config) kmldoc.EncodeOptions {
	opts := kmldoc.EncodeOptions{Precision: cfg.Precision}
	if cfg.Indent {
		opts.Indent = "  "
	}
	return opts
}

type Result struct {
	Mode     string
	Features int
	Records  int
	Location string
	Arrow    string
}

// SinkFor picks the destination of cfg's output: S3 when a bucket is set,
// stdout for "-", the local filesystem otherwise.
func SinkFor(ctx context.Context, cfg config.Config) (kmldoc.Sink, error) {
	switch {
	case cfg.S3.Bucket != "":
		return kmldoc.NewS3Sink(ctx, cfg.S3)
	case cfg.Output == "-":
		return kmldoc.WriterSink{W: os.Stdout}, nil
	default:
		return kmldoc.FileSink{}, nil
	}
}

// Run validates cfg and executes one pass into the sink SinkFor selects.
func Run(ctx context.Context, cfg config.Config, log *slog.Logger) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	sink, err := SinkFor(ctx, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create sink: %w", err)
	}
	return Execute(ctx, cfg, log, sink)
}

// Execute loads, renders and writes one document into sink.
func Execute(ctx context.Context, cfg config.Config, log *slog.Logger, sink kmldoc.Sink) (Result, error) {
	start := time.Now()
	res := Result{Mode: cfg.Mode}

	// 1. Load
	ds, err := LoadDataset(ctx, cfg, log)
	if err != nil {
		return res, err
	}
	res.Features = len(ds.Features)

	// 2. Merge + render
	r, err := NewRenderer(cfg, log)
	if err != nil {
		return res, err
	}
	doc := Render(ds, cfg, r)
	res.Records = doc.RecordCount()

	// 3. Encode + persist
	var buf bytes.Buffer
	if err := kmldoc.Encode(&buf, doc, EncodeOptions(cfg)); err != nil {
		metrics.DocumentsWrittenTotal.WithLabelValues(cfg.Mode, "error").Inc()
		return res, err
	}
	metrics.DocumentBytes.WithLabelValues(cfg.Mode).Observe(float64(buf.Len()))

	loc, err := sink.Put(ctx, cfg.Output, buf.Bytes())
	if err != nil {
		metrics.DocumentsWrittenTotal.WithLabelValues(cfg.Mode, "error").Inc()
		return res, err
	}
	metrics.DocumentsWrittenTotal.WithLabelValues(cfg.Mode, "success").Inc()
	res.Location = loc

	// 4. Optional columnar export
	if cfg.ArrowPath != "" {
		var ab bytes.Buffer
		if err := ds.Store.WriteArrow(&ab); err != nil {
			return res, err
		}
		if res.Arrow, err = (kmldoc.FileSink{}).Put(ctx, cfg.ArrowPath, ab.Bytes()); err != nil {
			return res, err
		}
	}

	log.Info("pipeline: document written",
		"mode", res.Mode,
		"features", res.Features,
		"records", res.Records,
		"bytes", buf.Len(),
		"location", res.Location,
		"arrow", res.Arrow,
		"duration", time.Since(start))
	return res, nil
}
