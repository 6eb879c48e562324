package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"kmlviz/internal/config"
	"kmlviz/internal/logger"
	"kmlviz/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	def := config.Default()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	configFlag := flag.String("config", "", "YAML config file (or set KMLVIZ_CONFIG env var)")

	// Inputs
	csvFlag := flag.String("csv", "", "measurement CSV path")
	shapefileFlag := flag.String("shapefile", "", "country boundaries shapefile (.shp) path")

	// Output
	outFlag := flag.String("out", def.Output, `KML output path, "-" for stdout, or object key with --s3-bucket`)
	arrowOutFlag := flag.String("arrow-out", "", "also write the measurements as an Arrow IPC file")
	precisionFlag := flag.Int("precision", def.Precision, "decimals kept per coordinate")
	indentFlag := flag.Bool("indent", def.Indent, "indent the KML output")
	s3BucketFlag := flag.String("s3-bucket", "", "upload the KML to this S3 bucket instead of the local filesystem")
	s3KeyFlag := flag.String("s3-key", "", "S3 object key (default: generated)")

	// Rendering
	modeFlag := flag.String("mode", def.Mode, "static or animated")
	yearFlag := flag.Int("year", def.Year, "year of the static map")
	fromFlag := flag.Int("from", def.FromYear, "first year of the animation")
	toFlag := flag.Int("to", def.ToYear, "last year of the animation")
	colorModeFlag := flag.String("color-mode", def.Color.Mode, "country colors: random, seeded or stable")
	seedFlag := flag.Uint64("seed", 0, "seed for --color-mode=seeded")

	flag.Parse()

	log := logger.New(*verboseFlag)

	if envConfig := os.Getenv("KMLVIZ_CONFIG"); envConfig != "" && *configFlag == "" {
		*configFlag = envConfig
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}

	// Flags set on the command line win over file and environment
	changed := flag.CommandLine.Changed
	if changed("csv") {
		cfg.CSVPath = *csvFlag
	}
	if changed("shapefile") {
		cfg.ShapefilePath = *shapefileFlag
	}
	if changed("out") {
		cfg.Output = *outFlag
	}
	if changed("arrow-out") {
		cfg.ArrowPath = *arrowOutFlag
	}
	if changed("precision") {
		cfg.Precision = *precisionFlag
	}
	if changed("indent") {
		cfg.Indent = *indentFlag
	}
	if changed("s3-bucket") {
		cfg.S3.Bucket = *s3BucketFlag
	}
	if changed("s3-key") {
		cfg.Output = *s3KeyFlag
	} else if cfg.S3.Bucket != "" && !changed("out") && cfg.Output == def.Output {
		cfg.Output = ""
	}
	if changed("mode") {
		cfg.Mode = *modeFlag
	}
	if changed("year") {
		cfg.Year = *yearFlag
	}
	if changed("from") {
		cfg.FromYear = *fromFlag
	}
	if changed("to") {
		cfg.ToYear = *toFlag
	}
	if changed("color-mode") {
		cfg.Color.Mode = *colorModeFlag
	}
	if changed("seed") {
		cfg.Color.Seed = *seedFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, cfg, log)
	if err != nil {
		return err
	}

	log.Debug("kmlgen: done", "mode", res.Mode, "records", res.Records)
	if res.Location != "-" {
		fmt.Fprintln(os.Stderr, res.Location)
	}
	return nil
}
