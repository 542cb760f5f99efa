package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StockFrame/internal/domain/models"
	"StockFrame/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, e *echo.Echo, target string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func newEcho(t *testing.T) (*echo.Echo, *repository.Snapshot) {
	t.Helper()
	snap := repository.NewSnapshot()
	e := echo.New()
	NewFeaturesEchoHandler(nil, snap).RegisterRoutes(e)
	return e, snap
}

func seed(t *testing.T, snap *repository.Snapshot) {
	t.Helper()
	ts := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	var rows []models.Row
	for _, sym := range []string{"AAPL", "TSLA"} {
		for i := 0; i < 5; i++ {
			r := models.EmptyRow(sym, ts.Add(time.Duration(i)*time.Minute))
			r.Close = sql.NullFloat64{Float64: float64(i), Valid: true}
			rows = append(rows, r)
		}
	}
	require.NoError(t, snap.Save(context.Background(), models.NewFeatureTable(rows)))
	require.NoError(t, snap.SaveReport(context.Background(), &models.RunReport{Rows: len(rows)}))
}

func TestHealthz(t *testing.T) {
	e, snap := newEcho(t)
	code, env := serve(t, e, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","ready":false}`, string(env.Data))

	seed(t, snap)
	_, env = serve(t, e, "/healthz")
	assert.JSONEq(t, `{"status":"ok","ready":true}`, string(env.Data))
}

func TestFeaturesListing(t *testing.T) {
	e, snap := newEcho(t)
	seed(t, snap)

	code, env := serve(t, e, "/api/v1/features?symbol=TSLA&limit=2&offset=1")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Rows  []map[string]any `json:"rows"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(5), list.Total)
	require.Len(t, list.Rows, 2)
	assert.Equal(t, "TSLA", list.Rows[0]["symbol"])
	assert.Equal(t, "2024-03-01T14:01:00Z", list.Rows[0]["timestamp"])
	assert.Equal(t, 1.0, list.Rows[0]["close"])
	assert.Contains(t, list.Rows[0], "sma")

	_, env = serve(t, e, "/api/v1/features")
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(10), list.Total)
	assert.Len(t, list.Rows, 10)
}

func TestFeaturesValidation(t *testing.T) {
	e, _ := newEcho(t)
	for _, target := range []string{
		"/api/v1/features?limit=20000",
		"/api/v1/features?offset=-1",
		"/api/v1/features?limit=abc",
	} {
		_, env := serve(t, e, target)
		assert.Equal(t, http.StatusBadRequest, env.Status, target)
	}
}

func TestReport(t *testing.T) {
	e, snap := newEcho(t)
	_, env := serve(t, e, "/api/v1/report")
	assert.Equal(t, http.StatusNotFound, env.Status)

	seed(t, snap)
	_, env = serve(t, e, "/api/v1/report")
	assert.Equal(t, http.StatusOK, env.Status)
	var rep models.RunReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 10, rep.Rows)
}
