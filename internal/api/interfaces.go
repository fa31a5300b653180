// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health checks
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// UploadHandler handles log file management
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// ParseHandler handles parsing session operations
type ParseHandler interface {
	HandleStartParse(c echo.Context) error
	HandleParseStatus(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleParseProgressStream(c echo.Context) error
	HandleGetParseErrors(c echo.Context) error
	HandleGetCameras(c echo.Context) error
	HandleGetBuckets(c echo.Context) error
	HandleGetSamples(c echo.Context) error
	HandleGetSamplesMsgpack(c echo.Context) error
}

// ChartHandler serves the rendered chart spec for a session
type ChartHandler interface {
	HandleGetChart(c echo.Context) error
}
