// handlers_chart.go - Chart specification handler
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fps-visualizer/backend/internal/render"
	"github.com/fps-visualizer/backend/internal/session"
)

// ChartHandlerImpl implements the ChartHandler interface
type ChartHandlerImpl struct {
	sessionMgr        *session.Manager
	defaultResolution time.Duration
	panelWidth        int
	panelHeight       int
}

// NewChartHandler creates a new chart handler instance
func NewChartHandler(sessionMgr *session.Manager, defaultResolution time.Duration, panelWidth, panelHeight int) ChartHandler {
	return &ChartHandlerImpl{
		sessionMgr:        sessionMgr,
		defaultResolution: defaultResolution,
		panelWidth:        panelWidth,
		panelHeight:       panelHeight,
	}
}

// HandleGetChart returns a Vega-Lite chart specification for a session.
// The viewer embeds the spec directly; resolution, width and height are
// query-tunable.
func (h *ChartHandlerImpl) HandleGetChart(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	resolution, err := resolutionParam(c, h.defaultResolution)
	if err != nil {
		return NewBadRequestError("invalid resolution", err)
	}

	opts := render.Options{
		Width:  dimensionParam(c, "width", h.panelWidth),
		Height: dimensionParam(c, "height", h.panelHeight),
		Title:  c.QueryParam("title"),
	}

	ctx := c.Request().Context()
	result, ok, err := h.sessionMgr.QueryBuckets(ctx, id, resolution)
	if !ok {
		return NewNotFoundError("session", id)
	}
	if err != nil {
		return NewInternalError("bucket query failed", err)
	}

	specJSON, err := render.SpecJSON(result.Panels(), opts)
	if err != nil {
		return NewInternalError("failed to build chart spec", err)
	}

	return c.JSONBlob(http.StatusOK, specJSON)
}

func dimensionParam(c echo.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
