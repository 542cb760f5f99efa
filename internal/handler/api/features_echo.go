package api

import (
	"net/http"

	models "StockFrame/internal/domain/models"
	domrepo "StockFrame/internal/domain/repository"
	xhttp "StockFrame/pkg/http"
	xlogger "StockFrame/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FeaturesEchoHandler serves the latest finished FeatureTable and run report.
type FeaturesEchoHandler struct {
	logger *xlogger.Logger
	reader domrepo.FeatureReader
}

var _ xhttp.Handler = (*FeaturesEchoHandler)(nil)

func NewFeaturesEchoHandler(logger *xlogger.Logger, reader domrepo.FeatureReader) *FeaturesEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &FeaturesEchoHandler{logger: logger, reader: reader}
}

func (h *FeaturesEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api/v1")
	g.GET("/features", h.Features)
	g.GET("/report", h.Report)
}

// Health reports liveness and whether a run has finished yet.
func (h *FeaturesEchoHandler) Health(c echo.Context) error {
	_, ready := h.reader.LastReport(c.Request().Context())
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status": "ok",
		"ready":  ready,
	})
}

func (h *FeaturesEchoHandler) Features(c echo.Context) error {
	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, total, err := h.reader.Features(c.Request().Context(), domrepo.FeatureQuery{
		Symbol: req.Symbol,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		h.logger.Error("features query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("features unavailable").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.PageResponse(c, rows, int64(total), req.Limit, req.Offset)
}

func (h *FeaturesEchoHandler) Report(c echo.Context) error {
	report, ok := h.reader.LastReport(c.Request().Context())
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no run has finished yet"))
	}
	return xhttp.DataResponse(c, http.StatusOK, report)
}
