package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"kmlviz/internal/config"
	"kmlviz/internal/engine"
	"kmlviz/internal/kmldoc"
	"kmlviz/internal/models"
	"kmlviz/internal/pipeline"
	"kmlviz/internal/testutil"
)

const sampleCSV = `country,year,iso_code,co2_per_capita
Alpha,2019,AAA,1.0
Alpha,2020,AAA,2.0
Beta,2020,BBB,5.5
Gamma,2020,CCC,0.5
`

func square(x, y float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x, y + 1}, {x + 1, y + 1}, {x + 1, y}, {x, y}}}
}

func mockDataset(t *testing.T) *pipeline.Dataset {
	t.Helper()
	store, err := engine.ReadColumnar(strings.NewReader(sampleCSV), engine.LoadOptions{
		Columns: engine.DefaultColumns,
		Logger:  testutil.NewLogger(),
	})
	require.NoError(t, err)
	return &pipeline.Dataset{
		Store: store,
		Features: []models.Feature{
			{ID: "AAA", Name: "Alpha", Geometry: square(0, 0)},
			{ID: "BBB", Name: "Beta", Geometry: square(3, 3)},
		},
	}
}

func newServer(t *testing.T, ds *pipeline.Dataset) (*echo.Echo, *Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.Color.Mode = "stable"
	e := echo.New()
	e.JSONSerializer = JSONSerializer{}
	h := NewHandler(ds, cfg, testutil.NewLogger())
	h.RegisterRoutes(e)
	return e, h
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Loading(t *testing.T) {
	t.Parallel()

	e, h := newServer(t, nil)
	for _, target := range []string{"/api/health", "/api/emissions", "/api/kml/static", "/api/measurements.arrow"} {
		rec := get(e, target)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		require.Contains(t, rec.Body.String(), `"loading"`, target)
	}

	h.SetData(mockDataset(t))
	rec := get(e, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string                `json:"status"`
		Dataset models.DatasetSummary `json:"dataset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, 4, body.Dataset.Rows)
	require.Equal(t, 2, body.Dataset.Features)
}

func TestHandler_Ranking(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t, mockDataset(t))

	var page struct {
		Year   int                   `json:"year"`
		Data   []models.CountryValue `json:"data"`
		Total  int                   `json:"total"`
		Limit  int                   `json:"limit"`
		Offset int                   `json:"offset"`
	}
	rec := get(e, "/api/emissions?year=2020&limit=2&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 2020, page.Year)
	require.Equal(t, 3, page.Total)
	require.Len(t, page.Data, 2)
	require.Equal(t, "AAA", page.Data[0].ISOCode)
	require.Equal(t, "CCC", page.Data[1].ISOCode)

	rec = get(e, "/api/emissions?year=2020&offset=10")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Empty(t, page.Data)

	rec = get(e, "/api/emissions?year=2020&limit=9223372036854775807&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 2)
	require.Equal(t, 3, page.Limit)

	rec = get(e, "/api/emissions?year=last")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Series(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t, mockDataset(t))

	rec := get(e, "/api/emissions/aaa")
	require.Equal(t, http.StatusOK, rec.Code)
	var series models.CountrySeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	require.Equal(t, "Alpha", series.Name)
	require.Len(t, series.Years, 2)
	require.Equal(t, 3.0, series.Years[1].Cumulative)

	rec = get(e, "/api/emissions/ZZZ")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_KML(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t, mockDataset(t))

	rec := get(e, "/api/kml/static?year=2020")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, kmldoc.ContentType, rec.Header().Get(echo.HeaderContentType))
	require.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "co2_per_capita_2020.kml")
	require.Equal(t, 2, strings.Count(rec.Body.String(), "<Placemark"))
	require.Contains(t, rec.Body.String(), "<extrude>")

	rec = get(e, "/api/kml/animated?from=2019&to=2020")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 4, strings.Count(rec.Body.String(), "<Placemark"))
	require.Contains(t, rec.Body.String(), "<TimeSpan>")

	require.Equal(t, http.StatusBadRequest, get(e, "/api/kml/animated?from=2020&to=2019").Code)
	require.Equal(t, http.StatusBadRequest, get(e, "/api/kml/animated?from=0&to=2000000000").Code)
	require.Equal(t, http.StatusBadRequest, get(e, "/api/kml/static?year=x").Code)
}

func TestHandler_Arrow(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t, mockDataset(t))

	rec := get(e, "/api/measurements.arrow")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, arrowContentType, rec.Header().Get(echo.HeaderContentType))

	r, err := ipc.NewFileReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer r.Close()
	rec0, err := r.Record(0)
	require.NoError(t, err)
	require.Equal(t, int64(4), rec0.NumRows())
}

func TestHandler_Metrics(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t, mockDataset(t))
	require.Equal(t, http.StatusOK, get(e, "/api/kml/static").Code)

	rec := get(e, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "kmlviz_records_rendered_total")
}
