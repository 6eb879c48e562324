package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kmlviz/internal/config"
	"kmlviz/internal/kmldoc"
	"kmlviz/internal/models"
	"kmlviz/internal/pipeline"
)

const arrowContentType = "application/vnd.apache.arrow.file"

type Handler struct {
	mu   sync.RWMutex
	data *pipeline.Dataset
	cfg  config.Config
	log  *slog.Logger
}

// NewHandler serves data once it is set. A nil dataset answers 503 until
// SetData is called.
func NewHandler(data *pipeline.Dataset, cfg config.Config, log *slog.Logger) *Handler {
	return &Handler{data: data, cfg: cfg, log: log}
}

func (h *Handler) SetData(data *pipeline.Dataset) {
	h.mu.Lock()
	h.data = data
	h.mu.Unlock()
}

func (h *Handler) dataset() *pipeline.Dataset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.data
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/health", h.GetHealth)
	api.GET("/emissions", h.GetRanking, h.requireData)
	api.GET("/emissions/:iso", h.GetSeries, h.requireData)
	api.GET("/kml/static", h.GetStaticKML, h.requireData)
	api.GET("/kml/animated", h.GetAnimatedKML, h.requireData)
	api.GET("/measurements.arrow", h.GetArrow, h.requireData)
}

// requireData short-circuits with 503 while the background load runs.
func (h *Handler) requireData(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.dataset() == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		}
		return next(c)
	}
}

// --- HELPERS ---
func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// getYearParam returns def when name is absent and a 400 when it is not a year.
func getYearParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s: %q", name, raw))
	}
	return y, nil
}

// --- HANDLERS ---
func (h *Handler) GetHealth(c echo.Context) error {
	ds := h.dataset()
	if ds == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "loading"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"dataset": ds.Summary(),
	})
}

// ranking of one year, highest emitters first
func (h *Handler) GetRanking(c echo.Context) error {
	year, err := getYearParam(c, "year", h.cfg.Year)
	if err != nil {
		return err
	}
	ranking := h.dataset().Store.Ranking(year)
	total := len(ranking)
	limit, offset := getPaginationParams(c, total)
	if limit > total {
		limit = total
	}

	page := []models.CountryValue{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = ranking[offset:end]
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"year":   year,
		"data":   page,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetSeries(c echo.Context) error {
	iso := strings.ToUpper(c.Param("iso"))
	series, ok := h.dataset().Store.Series(iso)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown country: %s", iso))
	}
	return c.JSON(http.StatusOK, series)
}

func (h *Handler) GetStaticKML(c echo.Context) error {
	cfg := h.cfg
	cfg.Mode = config.ModeStatic
	year, err := getYearParam(c, "year", cfg.Year)
	if err != nil {
		return err
	}
	cfg.Year = year
	return h.writeKML(c, cfg, fmt.Sprintf("co2_per_capita_%d.kml", year))
}

func (h *Handler) GetAnimatedKML(c echo.Context) error {
	cfg := h.cfg
	cfg.Mode = config.ModeAnimated
	from, err := getYearParam(c, "from", cfg.FromYear)
	if err != nil {
		return err
	}
	to, err := getYearParam(c, "to", cfg.ToYear)
	if err != nil {
		return err
	}
	if err := config.CheckYearRange(from, to); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg.FromYear, cfg.ToYear = from, to
	return h.writeKML(c, cfg, fmt.Sprintf("co2_per_capita_%d_%d.kml", from, to))
}

func (h *Handler) writeKML(c echo.Context, cfg config.Config, filename string) error {
	r, err := pipeline.NewRenderer(cfg, h.log)
	if err != nil {
		return err
	}
	doc := pipeline.Render(h.dataset(), cfg, r)

	var buf bytes.Buffer
	if err := kmldoc.Encode(&buf, doc, pipeline.EncodeOptions(cfg)); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, kmldoc.ContentType, buf.Bytes())
}

func (h *Handler) GetArrow(c echo.Context) error {
	var buf bytes.Buffer
	if err := h.dataset().Store.WriteArrow(&buf); err != nil {
		return err
	}
	return c.Blob(http.StatusOK, arrowContentType, buf.Bytes())
}
