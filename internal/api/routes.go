// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fps-visualizer/backend/internal/parser"
	"github.com/fps-visualizer/backend/internal/render"
	"github.com/fps-visualizer/backend/internal/session"
	"github.com/fps-visualizer/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	SessionMgr *session.Manager
	Version    string

	// Chart defaults from server config; zero values fall back to the
	// package defaults (2Min, 1200x60).
	DefaultResolution time.Duration
	PanelWidth        int
	PanelHeight       int
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	Parse     ParseHandler
	Chart     ChartHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	resolution := deps.DefaultResolution
	if resolution <= 0 {
		resolution = parser.DefaultResolution
	}
	width := deps.PanelWidth
	if width <= 0 {
		width = render.DefaultWidth
	}
	height := deps.PanelHeight
	if height <= 0 {
		height = render.DefaultHeight
	}
	return &Handlers{
		Health:    NewHealthHandler(deps.Version),
		Upload:    NewUploadHandler(deps.Store),
		Parse:     NewParseHandler(deps.Store, deps.SessionMgr, resolution),
		Chart:     NewChartHandler(deps.SessionMgr, resolution, width, height),
		WebSocket: NewWebSocketHandler(deps.SessionMgr),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// File upload routes
	uploadGroup := e.Group("/api/files")
	uploadGroup.POST("/upload", handlers.Upload.HandleUploadFile)
	uploadGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	uploadGroup.GET("/:id", handlers.Upload.HandleGetFile)
	uploadGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	uploadGroup.PUT("/:id", handlers.Upload.HandleRenameFile)

	// Parse session routes
	parseGroup := e.Group("/api/parse")
	parseGroup.POST("", handlers.Parse.HandleStartParse)
	parseGroup.GET("/:sessionId/status", handlers.Parse.HandleParseStatus)
	parseGroup.POST("/:sessionId/keepalive", handlers.Parse.HandleSessionKeepAlive)
	parseGroup.GET("/:sessionId/progress", handlers.Parse.HandleParseProgressStream)
	parseGroup.GET("/:sessionId/errors", handlers.Parse.HandleGetParseErrors)
	parseGroup.GET("/:sessionId/cameras", handlers.Parse.HandleGetCameras)
	parseGroup.GET("/:sessionId/buckets", handlers.Parse.HandleGetBuckets)
	parseGroup.GET("/:sessionId/samples", handlers.Parse.HandleGetSamples)
	parseGroup.GET("/:sessionId/samples/msgpack", handlers.Parse.HandleGetSamplesMsgpack)
	parseGroup.GET("/:sessionId/chart", handlers.Chart.HandleGetChart)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/parse/:sessionId", handlers.WebSocket.HandleParseProgress)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
}
