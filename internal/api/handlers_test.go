package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fps-visualizer/backend/internal/models"
	"github.com/fps-visualizer/backend/internal/session"
	"github.com/fps-visualizer/backend/internal/storage"
)

const testLog = `2024-01-15 10:00:05.000000 [123456789012] FPS: 29.97 (30 / 1.001)
2024-01-15 10:00:35.000000 [123456789012] FPS: 30.00 (30 / 1.000)
2024-01-15 10:00:40.000000 [123456789012] exposure adjusted
garbage line without envelope
2024-01-15 10:02:10.000000 [210987654321] FPS: 15.00 (15 / 1.000)
`

func setupTestServer(t *testing.T) (*echo.Echo, *session.Manager) {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	sessionMgr := session.NewManagerWithTempDir(t.TempDir())
	t.Cleanup(sessionMgr.Close)

	e := echo.New()
	SetupMiddleware(e)
	handlers := NewHandlers(&Dependencies{
		Store:      store,
		SessionMgr: sessionMgr,
		Version:    "test",
	})
	RegisterRoutes(e, handlers)
	RegisterWebSocketRoutes(e, handlers)
	return e, sessionMgr
}

func uploadTestFile(t *testing.T, e *echo.Echo, name, content string) string {
	t.Helper()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", name)
	part.Write([]byte(content))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.NotEmpty(t, info.ID)
	return info.ID
}

func startParse(t *testing.T, e *echo.Echo, payload string) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/parse", bytes.NewBufferString(payload))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var sess models.ParseSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.ID)
	return sess.ID
}

func waitForComplete(t *testing.T, e *echo.Echo, sessionID string) models.ParseSession {
	t.Helper()

	var sess models.ParseSession
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/parse/"+sessionID+"/status", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
			return false
		}
		return sess.Status == models.SessionStatusComplete ||
			sess.Status == models.SessionStatusError
	}, 10*time.Second, 20*time.Millisecond)
	return sess
}

func TestHealthEndpoint(t *testing.T) {
	e, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestUploadAndFileLifecycle(t *testing.T) {
	e, _ := setupTestServer(t)

	fileID := uploadTestFile(t, e, "camera.log", testLog)

	// Recent list includes the file
	req := httptest.NewRequest(http.MethodGet, "/api/files/recent", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), fileID)

	// Rename
	req = httptest.NewRequest(http.MethodPut, "/api/files/"+fileID,
		bytes.NewBufferString(`{"name":"renamed.log"}`))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Delete
	req = httptest.NewRequest(http.MethodDelete, "/api/files/"+fileID, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Gone
	req = httptest.NewRequest(http.MethodGet, "/api/files/"+fileID, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParsePipeline(t *testing.T) {
	e, _ := setupTestServer(t)

	fileID := uploadTestFile(t, e, "camera.log", testLog)
	sessionID := startParse(t, e, `{"fileId":"`+fileID+`"}`)

	sess := waitForComplete(t, e, sessionID)
	require.Equal(t, models.SessionStatusComplete, sess.Status)
	assert.Equal(t, 3, sess.SampleCount)
	assert.Equal(t, 2, sess.CameraCount)
	assert.Equal(t, 1, sess.SkippedLines)

	// Cameras in first-seen order
	req := httptest.NewRequest(http.MethodGet, "/api/parse/"+sessionID+"/cameras", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var cameras []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cameras))
	assert.Equal(t, []string{"123456789012", "210987654321"}, cameras)

	// Parse errors cover the garbage line
	req = httptest.NewRequest(http.MethodGet, "/api/parse/"+sessionID+"/errors", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var parseErrs []models.ParseError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parseErrs))
	require.Len(t, parseErrs, 1)
	assert.Equal(t, 4, parseErrs[0].Line)
	assert.Contains(t, parseErrs[0].Content, "garbage line")
}

func TestBucketsEndpoint(t *testing.T) {
	e, _ := setupTestServer(t)

	fileID := uploadTestFile(t, e, "camera.log", testLog)
	sessionID := startParse(t, e, `{"fileId":"`+fileID+`"}`)
	sess := waitForComplete(t, e, sessionID)
	require.Equal(t, models.SessionStatusComplete, sess.Status)

	req := httptest.NewRequest(http.MethodGet,
		"/api/parse/"+sessionID+"/buckets?resolution=2Min", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Cameras []string                   `json:"cameras"`
		Buckets map[string][]models.Bucket `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Cameras, 2)

	// Both 10:00 samples land in the same 2-minute bucket
	first := resp.Buckets["123456789012"]
	require.Len(t, first, 1)
	assert.InDelta(t, 29.985, first[0].MeanFPS, 0.0001)

	// Unknown resolutions are rejected
	req = httptest.NewRequest(http.MethodGet,
		"/api/parse/"+sessionID+"/buckets?resolution=5X", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSamplesEndpoint(t *testing.T) {
	e, _ := setupTestServer(t)

	fileID := uploadTestFile(t, e, "camera.log", testLog)
	sessionID := startParse(t, e, `{"fileId":"`+fileID+`"}`)
	sess := waitForComplete(t, e, sessionID)
	require.Equal(t, models.SessionStatusComplete, sess.Status)

	req := httptest.NewRequest(http.MethodGet,
		"/api/parse/"+sessionID+"/samples?camera=123456789012", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp samplesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Samples, 2)
	assert.InDelta(t, 29.97, resp.Samples[0].FPS, 0.0001)

	// Msgpack variant returns a binary body
	req = httptest.NewRequest(http.MethodGet,
		"/api/parse/"+sessionID+"/samples/msgpack", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestChartEndpoint(t *testing.T) {
	e, _ := setupTestServer(t)

	fileID := uploadTestFile(t, e, "camera.log", testLog)
	sessionID := startParse(t, e, `{"fileId":"`+fileID+`"}`)
	sess := waitForComplete(t, e, sessionID)
	require.Equal(t, models.SessionStatusComplete, sess.Status)

	req := httptest.NewRequest(http.MethodGet,
		"/api/parse/"+sessionID+"/chart?resolution=1Min&width=800", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var spec map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	assert.Contains(t, spec["$schema"], "vega-lite")
	assert.Contains(t, rec.Body.String(), `"serial"`)
	assert.Contains(t, rec.Body.String(), `"width":800`)
}

func TestStartParseValidation(t *testing.T) {
	e, _ := setupTestServer(t)

	// No file ids
	req := httptest.NewRequest(http.MethodPost, "/api/parse",
		bytes.NewBufferString(`{}`))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown file id
	req = httptest.NewRequest(http.MethodPost, "/api/parse",
		bytes.NewBufferString(`{"fileId":"no-such-file"}`))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMultiFileParseOrder(t *testing.T) {
	e, _ := setupTestServer(t)

	first := uploadTestFile(t, e, "a.log",
		"2024-01-15 10:00:00.000000 [111111111111] FPS: 24.00 (24 / 1.000)\n")
	second := uploadTestFile(t, e, "b.log",
		"2024-01-15 10:00:01.000000 [222222222222] FPS: 25.00 (25 / 1.000)\n")

	sessionID := startParse(t, e, `{"fileIds":["`+first+`","`+second+`"]}`)
	sess := waitForComplete(t, e, sessionID)
	require.Equal(t, models.SessionStatusComplete, sess.Status)
	assert.Equal(t, 2, sess.SampleCount)
	assert.Equal(t, []string{first, second}, sess.FileIDs)
}

func TestSessionNotFound(t *testing.T) {
	e, _ := setupTestServer(t)

	for _, path := range []string{
		"/api/parse/nope/status",
		"/api/parse/nope/cameras",
		"/api/parse/nope/errors",
		"/api/parse/nope/buckets",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestConfiguredChartDefaults(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	sessionMgr := session.NewManagerWithTempDir(t.TempDir())
	t.Cleanup(sessionMgr.Close)

	e := echo.New()
	SetupMiddleware(e)
	handlers := NewHandlers(&Dependencies{
		Store:             store,
		SessionMgr:        sessionMgr,
		Version:           "test",
		DefaultResolution: time.Minute,
		PanelWidth:        640,
		PanelHeight:       40,
	})
	RegisterRoutes(e, handlers)

	fileID := uploadTestFile(t, e, "cameras.log", testLog)
	sessionID := startParse(t, e, `{"fileId":"`+fileID+`"}`)
	sess := waitForComplete(t, e, sessionID)
	require.Equal(t, models.SessionStatusComplete, sess.Status)

	// Buckets without a resolution query use the configured default.
	req := httptest.NewRequest(http.MethodGet, "/api/parse/"+sessionID+"/buckets", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var buckets struct {
		Resolution string `json:"resolution"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &buckets))
	assert.Equal(t, "1m0s", buckets.Resolution)

	// Chart without width/height queries uses the configured panel size.
	req = httptest.NewRequest(http.MethodGet, "/api/parse/"+sessionID+"/chart", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"width":640`)
	assert.Contains(t, rec.Body.String(), `"height":40`)

	// An explicit query still wins over the configured default.
	req = httptest.NewRequest(http.MethodGet, "/api/parse/"+sessionID+"/buckets?resolution=30S", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &buckets))
	assert.Equal(t, "30s", buckets.Resolution)
}
