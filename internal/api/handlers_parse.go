// handlers_parse.go - Parse session operation handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fps-visualizer/backend/internal/models"
	"github.com/fps-visualizer/backend/internal/parser"
	"github.com/fps-visualizer/backend/internal/session"
	"github.com/fps-visualizer/backend/internal/storage"
)

// ParseHandlerImpl implements the ParseHandler interface
type ParseHandlerImpl struct {
	store             storage.Store
	sessionMgr        *session.Manager
	defaultResolution time.Duration
}

// NewParseHandler creates a new parse handler instance
func NewParseHandler(store storage.Store, sessionMgr *session.Manager, defaultResolution time.Duration) ParseHandler {
	return &ParseHandlerImpl{
		store:             store,
		sessionMgr:        sessionMgr,
		defaultResolution: defaultResolution,
	}
}

// HandleStartParse starts a parsing session for one or more uploaded files.
// Multi-file sessions concatenate the files in request order.
func (h *ParseHandlerImpl) HandleStartParse(c echo.Context) error {
	var req startParseRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	fileIDs := req.normalizeFileIDs()
	if len(fileIDs) == 0 {
		return NewValidationError("fileId or fileIds")
	}

	filePaths, validFileIDs, err := h.resolveFilePaths(fileIDs)
	if err != nil {
		return err
	}

	sess, err := h.sessionMgr.StartSession(validFileIDs, filePaths)
	if err != nil {
		return NewInternalError("failed to start session", err)
	}

	for _, fid := range validFileIDs {
		h.store.SetStatus(fid, "parsing")
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandleParseStatus returns the current status of a parsing session
func (h *ParseHandlerImpl) HandleParseStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *ParseHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleParseProgressStream streams parsing progress via SSE
func (h *ParseHandlerImpl) HandleParseProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		h.sendSSEError(c, "session not found")
		return nil
	}
	h.sendSSEData(c, sess)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				h.sendSSEError(c, "session not found")
				return nil
			}

			h.sendSSEData(c, sess)

			if sess.Status == models.SessionStatusComplete ||
				sess.Status == models.SessionStatusError {
				return nil
			}

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

// HandleGetParseErrors returns the envelope diagnostics for a session, one
// entry per log line that failed the envelope grammar.
func (h *ParseHandlerImpl) HandleGetParseErrors(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	errs, ok := h.sessionMgr.GetParseErrors(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	if errs == nil {
		errs = []models.ParseError{}
	}

	return c.JSON(http.StatusOK, errs)
}

// HandleGetCameras returns the camera serials observed in a session
func (h *ParseHandlerImpl) HandleGetCameras(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	cameras, ok := h.sessionMgr.GetCameras(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, cameras)
}

// HandleGetBuckets returns mean-FPS buckets per camera at the requested
// resolution (default 2Min).
func (h *ParseHandlerImpl) HandleGetBuckets(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	resolution, err := resolutionParam(c, h.defaultResolution)
	if err != nil {
		return NewBadRequestError("invalid resolution", err)
	}

	ctx := c.Request().Context()
	result, ok, err := h.sessionMgr.QueryBuckets(ctx, id, resolution)
	if !ok {
		return NewNotFoundError("session", id)
	}
	if err != nil {
		return NewInternalError("bucket query failed", err)
	}

	return c.JSON(http.StatusOK, bucketsResponse{
		Resolution: resolution.String(),
		Cameras:    result.Cameras,
		Buckets:    result.Buckets,
	})
}

// HandleGetSamples returns a filtered, paginated page of raw FPS samples
func (h *ParseHandlerImpl) HandleGetSamples(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	page, pageSize := paginationParams(c)
	camera := c.QueryParam("camera")
	start, err := timeParam(c.QueryParam("start"))
	if err != nil {
		return NewBadRequestError("invalid start time", err)
	}
	end, err := timeParam(c.QueryParam("end"))
	if err != nil {
		return NewBadRequestError("invalid end time", err)
	}

	ctx := c.Request().Context()
	samples, total, ok, err := h.sessionMgr.QuerySamples(ctx, id, camera, start, end, page, pageSize)
	if !ok {
		return NewNotFoundError("session", id)
	}
	if err != nil {
		return NewInternalError("sample query failed", err)
	}

	return c.JSON(http.StatusOK, samplesResponse{
		Samples:  samples,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// HandleGetSamplesMsgpack returns the same page in MessagePack format,
// for clients pulling large sample sets.
func (h *ParseHandlerImpl) HandleGetSamplesMsgpack(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	page, pageSize := paginationParams(c)
	camera := c.QueryParam("camera")
	start, err := timeParam(c.QueryParam("start"))
	if err != nil {
		return NewBadRequestError("invalid start time", err)
	}
	end, err := timeParam(c.QueryParam("end"))
	if err != nil {
		return NewBadRequestError("invalid end time", err)
	}

	ctx := c.Request().Context()
	samples, total, ok, err := h.sessionMgr.QuerySamples(ctx, id, camera, start, end, page, pageSize)
	if !ok {
		return NewNotFoundError("session", id)
	}
	if err != nil {
		return NewInternalError("sample query failed", err)
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"samples":  samples,
		"page":     page,
		"pageSize": pageSize,
		"total":    total,
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// Request/Response types

type startParseRequest struct {
	FileID  string   `json:"fileId"`
	FileIDs []string `json:"fileIds"`
}

func (r *startParseRequest) normalizeFileIDs() []string {
	if len(r.FileIDs) > 0 {
		return r.FileIDs
	}
	if r.FileID != "" {
		return []string{r.FileID}
	}
	return nil
}

type bucketsResponse struct {
	Resolution string                     `json:"resolution"`
	Cameras    []string                   `json:"cameras"`
	Buckets    map[string][]models.Bucket `json:"buckets"`
}

type samplesResponse struct {
	Samples  []models.FpsSample `json:"samples"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
	Total    int                `json:"total"`
}

// Helper methods

func (h *ParseHandlerImpl) resolveFilePaths(fileIDs []string) ([]string, []string, error) {
	var filePaths []string
	var validFileIDs []string

	for _, fid := range fileIDs {
		info, err := h.store.Get(fid)
		if err != nil {
			return nil, nil, NewNotFoundError("file", fid)
		}

		path, err := h.store.GetFilePath(fid)
		if err != nil {
			return nil, nil, NewInternalError("failed to get file path", err)
		}

		validFileIDs = append(validFileIDs, info.ID)
		filePaths = append(filePaths, path)
	}

	return filePaths, validFileIDs, nil
}

func (h *ParseHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func (h *ParseHandlerImpl) sendSSEError(c echo.Context, message string) {
	h.sendSSEData(c, map[string]string{"error": message})
}

// resolutionParam parses the resolution query parameter, falling back to the
// configured default.
func resolutionParam(c echo.Context, fallback time.Duration) (time.Duration, error) {
	raw := c.QueryParam("resolution")
	if raw == "" {
		if fallback > 0 {
			return fallback, nil
		}
		return parser.DefaultResolution, nil
	}
	return parser.ParseResolution(raw)
}

func paginationParams(c echo.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 || pageSize > 10000 {
		pageSize = 1000
	}
	return page, pageSize
}

// timeParam parses a Unix-microsecond query parameter; empty means open.
func timeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(us).UTC(), nil
}
