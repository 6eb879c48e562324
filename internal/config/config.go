package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"kmlviz/internal/engine"
	"kmlviz/internal/kmldoc"
	"kmlviz/internal/render"
	"kmlviz/internal/shapes"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

const (
	ModeStatic   = "static"
	ModeAnimated = "animated"
)

type ColorConfig struct {
	Mode string `yaml:"mode"` // random, seeded or stable
	Seed uint64 `yaml:"seed"`
}

// Config holds everything a run needs. Precedence, lowest first: Default,
// YAML file, environment (.env included), command line flags.
type Config struct {
	CSVPath       string `yaml:"csv"`
	ShapefilePath string `yaml:"shapefile"`
	Output        string `yaml:"output"` // file path, "-" for stdout, or object key with S3
	ArrowPath     string `yaml:"arrow_output"`

	Mode     string `yaml:"mode"`
	Year     int    `yaml:"year"`
	FromYear int    `yaml:"from_year"`
	ToYear   int    `yaml:"to_year"`

	StaticScale   float64 `yaml:"static_scale"`
	AnimatedScale float64 `yaml:"animated_scale"`
	Precision     int     `yaml:"precision"`
	Indent        bool    `yaml:"indent"`

	Color   ColorConfig     `yaml:"color"`
	Columns engine.Columns  `yaml:"columns"`
	Fields  shapes.Fields   `yaml:"fields"`
	S3      kmldoc.S3Config `yaml:"s3"`

	Listen string `yaml:"listen"`
}

func Default() Config {
	return Config{
		Output:        "co2_per_capita.kml",
		Mode:          ModeStatic,
		Year:          2020,
		FromYear:      1995,
		ToYear:        2022,
		StaticScale:   render.DefaultStaticScale,
		AnimatedScale: render.DefaultAnimatedScale,
		Precision:     kmldoc.DefaultPrecision,
		Indent:        true,
		Color:         ColorConfig{Mode: render.PaletteRandom},
		Columns:       engine.DefaultColumns,
		Fields:        shapes.DefaultFields,
		Listen:        ":8080",
	}
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment. A .env file in the working directory is read if present.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from KMLVIZ_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("KMLVIZ_CSV", &c.CSVPath)
	str("KMLVIZ_SHAPEFILE", &c.ShapefilePath)
	str("KMLVIZ_OUT", &c.Output)
	str("KMLVIZ_ARROW_OUT", &c.ArrowPath)
	str("KMLVIZ_MODE", &c.Mode)
	str("KMLVIZ_COLOR_MODE", &c.Color.Mode)
	str("KMLVIZ_S3_BUCKET", &c.S3.Bucket)
	str("KMLVIZ_S3_REGION", &c.S3.Region)
	str("KMLVIZ_S3_ENDPOINT", &c.S3.Endpoint)
	str("KMLVIZ_S3_PREFIX", &c.S3.Prefix)
	str("KMLVIZ_LISTEN", &c.Listen)
	if strings.EqualFold(getenv("KMLVIZ_S3_PATH_STYLE"), "true") {
		c.S3.PathStyle = true
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"KMLVIZ_YEAR", &c.Year},
		{"KMLVIZ_FROM_YEAR", &c.FromYear},
		{"KMLVIZ_TO_YEAR", &c.ToYear},
		{"KMLVIZ_PRECISION", &c.Precision},
	}
	for _, e := range ints {
		v := getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, e.key, v)
		}
		*e.dst = n
	}
	if v := getenv("KMLVIZ_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: KMLVIZ_SEED=%q is not an unsigned integer", ErrInvalidConfig, v)
		}
		c.Color.Seed = n
	}
	return nil
}

// Validate checks the fields a KML run needs. The server only needs the inputs.
func (c *Config) Validate() error {
	if c.CSVPath == "" {
		return fmt.Errorf("%w: csv path is required", ErrInvalidConfig)
	}
	if c.ShapefilePath == "" {
		return fmt.Errorf("%w: shapefile path is required", ErrInvalidConfig)
	}
	switch c.Mode {
	case ModeStatic, ModeAnimated:
	default:
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalidConfig, ModeStatic, ModeAnimated, c.Mode)
	}
	if c.Mode == ModeAnimated {
		if err := CheckYearRange(c.FromYear, c.ToYear); err != nil {
			return err
		}
	}
	if c.Precision > 15 {
		return fmt.Errorf("%w: precision must be at most 15, got %d", ErrInvalidConfig, c.Precision)
	}
	if c.StaticScale <= 0 || c.AnimatedScale <= 0 {
		return fmt.Errorf("%w: scales must be positive", ErrInvalidConfig)
	}
	if _, err := render.NewPalette(c.Color.Mode, c.Color.Seed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Output == "" && c.S3.Bucket == "" {
		return fmt.Errorf("%w: output path is required", ErrInvalidConfig)
	}
	return nil
}

// MaxAnimatedYears bounds the span of an animated document.
const MaxAnimatedYears = 1000

// CheckYearRange rejects inverted ranges and spans longer than MaxAnimatedYears.
func CheckYearRange(from, to int) error {
	if from > to {
		return fmt.Errorf("%w: from year %d is after to year %d", ErrInvalidConfig, from, to)
	}
	if uint64(to-from) >= MaxAnimatedYears {
		return fmt.Errorf("%w: year range %d-%d is longer than %d years", ErrInvalidConfig, from, to, MaxAnimatedYears)
	}
	return nil
}
