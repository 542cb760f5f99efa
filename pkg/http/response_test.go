package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respond(t *testing.T, h echo.HandlerFunc) Envelope {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, h(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestAppErrorResponse(t *testing.T) {
	env := respond(t, func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundError("no run").WithParam("hint", "wait"))
	})
	assert.Equal(t, http.StatusNotFound, env.Status)
	assert.Equal(t, "Not Found", env.Message)
	errs := env.Data.([]interface{})
	require.Len(t, errs, 1)
	first := errs[0].(map[string]interface{})
	assert.Equal(t, "ERR_NOT_FOUND", first["code"])
	assert.Equal(t, map[string]interface{}{"hint": "wait"}, first["params"])
}

func TestAppErrorResponseHidesPlainErrors(t *testing.T) {
	env := respond(t, func(c echo.Context) error {
		return AppErrorResponse(c, errors.New("dsn contains password"))
	})
	assert.Equal(t, http.StatusInternalServerError, env.Status)
	assert.Equal(t, "Something went wrong", env.Data)
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := InternalError("features unavailable").WithError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "features unavailable: boom", err.Error())
}

func TestPageResponse(t *testing.T) {
	env := respond(t, func(c echo.Context) error {
		return PageResponse(c, []int{1, 2}, 10, 2, 4)
	})
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, map[string]interface{}{
		"rows":   []interface{}{1.0, 2.0},
		"total":  10.0,
		"limit":  2.0,
		"offset": 4.0,
	}, env.Data)
}
