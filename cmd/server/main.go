package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	flag "github.com/spf13/pflag"

	"kmlviz/internal/api"
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
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	configFlag := flag.String("config", os.Getenv("KMLVIZ_CONFIG"), "YAML config file (or set KMLVIZ_CONFIG env var)")
	listenFlag := flag.String("listen", "", "listen address (default from config, :8080)")
	flag.Parse()

	log := logger.New(*verboseFlag)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if *listenFlag != "" {
		cfg.Listen = *listenFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Echo (Starts Instantly)
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.JSONSerializer{}
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("http: request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	// 2. Initialize Handler with NIL data
	// The API is live but answers 503 (loading) until the inputs are in
	h := api.NewHandler(nil, cfg, log)
	h.RegisterRoutes(e)

	// 3. Load inputs in the background
	loadErr := make(chan error, 1)
	go func() {
		log.Info("server: loading inputs", "csv", cfg.CSVPath, "shapefile", cfg.ShapefilePath)
		t0 := time.Now()

		ds, err := pipeline.LoadDataset(ctx, cfg, log)
		if err != nil {
			loadErr <- err
			return
		}
		h.SetData(ds)

		log.Info("server: inputs loaded, API is fully ready", "duration", time.Since(t0))
	}()

	// 4. Start server
	errCh := make(chan error, 1)
	go func() {
		log.Info("server: listening (data loading in background)", "addr", cfg.Listen)
		if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case err = <-loadErr:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return err
}
