// Package session manages log parsing sessions for the server.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fps-visualizer/backend/internal/aggregate"
	"github.com/fps-visualizer/backend/internal/models"
	"github.com/fps-visualizer/backend/internal/parser"
	"github.com/fps-visualizer/backend/internal/reader"
	"github.com/fps-visualizer/backend/internal/samplestore"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion.
const MaxSessions = 10

// SessionMaxAge is how long to keep completed sessions before cleanup.
const SessionMaxAge = 30 * time.Minute

// shortID safely truncates an ID for logging.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Manager handles active log parsing sessions.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	tempDir     string
	maxSessions int
	tuning      samplestore.Tuning
}

// SessionState holds session metadata, the DuckDB-backed sample store, and
// the envelope diagnostics collected while parsing.
type SessionState struct {
	Session      *models.ParseSession
	Store        *samplestore.DuckStore
	ParseErrors  []models.ParseError
	LastAccessed time.Time
}

// NewManager creates a session manager. Uses DUCKDB_TEMP_DIR for the temp
// directory, defaulting to ./data/temp.
func NewManager() *Manager {
	tempDir := os.Getenv("DUCKDB_TEMP_DIR")
	if tempDir == "" {
		tempDir = "./data/temp"
	}
	os.MkdirAll(tempDir, 0755)
	return NewManagerWithTempDir(tempDir)
}

// NewManagerWithTempDir creates a session manager with a specific temp directory.
func NewManagerWithTempDir(tempDir string) *Manager {
	return &Manager{
		sessions:    make(map[string]*SessionState),
		tempDir:     tempDir,
		maxSessions: MaxSessions,
	}
}

// SetMaxSessions overrides the concurrent-session cap. Non-positive
// values keep the default.
func (m *Manager) SetMaxSessions(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.maxSessions = n
	m.mu.Unlock()
}

// SetStoreTuning applies DuckDB resource limits to the per-session
// sample stores created from now on.
func (m *Manager) SetStoreTuning(t samplestore.Tuning) {
	m.mu.Lock()
	m.tuning = t
	m.mu.Unlock()
}

// StartSession begins parsing one or more log files, concatenated in the
// order given.
func (m *Manager) StartSession(fileIDs, filePaths []string) (*models.ParseSession, error) {
	if len(filePaths) == 0 {
		return nil, fmt.Errorf("no files to parse")
	}

	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()
	session := models.NewParseSession(sessionID, fileIDs[0])
	if len(fileIDs) > 1 {
		session.FileIDs = fileIDs
	}
	session.Status = models.SessionStatusParsing

	state := &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	go m.runParse(sessionID, filePaths)

	return session, nil
}

func (m *Manager) runParse(sessionID string, filePaths []string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Parse %s] PANIC recovered: %v\n", shortID(sessionID), r)
			m.updateSessionError(sessionID, fmt.Sprintf("parse panicked: %v", r))
		}
	}()

	start := time.Now()
	fmt.Printf("[Parse %s] Starting parse of %d file(s)\n", shortID(sessionID), len(filePaths))

	var totalBytes int64
	for _, p := range filePaths {
		if info, err := os.Stat(p); err == nil {
			totalBytes += info.Size()
		}
	}

	m.mu.RLock()
	tuning := m.tuning
	m.mu.RUnlock()

	store, err := samplestore.New(m.tempDir, sessionID, tuning)
	if err != nil {
		fmt.Printf("[Parse %s] ERROR: failed to create sample store: %v\n", shortID(sessionID), err)
		m.updateSessionError(sessionID, fmt.Sprintf("failed to create sample store: %v", err))
		return
	}

	lines, err := reader.NewScanner(filePaths...)
	if err != nil {
		store.Close()
		m.updateSessionError(sessionID, err.Error())
		return
	}
	defer lines.Close()

	samples := parser.NewSampleScanner(lines, io.Discard)

	var bytesRead int64
	for samples.Scan() {
		store.AddSample(samples.Sample())

		bytesRead += int64(len(lines.Text())) + 1
		if samples.LinesRead()%100000 == 0 {
			m.updateProgress(sessionID, bytesRead, totalBytes)
		}
	}

	if err := samples.Err(); err != nil {
		fmt.Printf("[Parse %s] ERROR: parse failed: %v\n", shortID(sessionID), err)
		store.Close()
		m.updateSessionError(sessionID, fmt.Sprintf("parse failed: %v", err))
		return
	}
	if err := store.LastError(); err != nil {
		store.Close()
		m.updateSessionError(sessionID, fmt.Sprintf("sample store write failed: %v", err))
		return
	}
	if err := store.Finalize(); err != nil {
		store.Close()
		m.updateSessionError(sessionID, fmt.Sprintf("failed to finalize sample store: %v", err))
		return
	}

	elapsed := time.Since(start).Milliseconds()
	fmt.Printf("[Parse %s] Parse complete: %d samples, %d cameras, %d skipped lines in %dms\n",
		shortID(sessionID), store.Len(), len(store.Cameras()), len(samples.Errors()), elapsed)

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		// Session was cleaned up mid-parse.
		store.Close()
		return
	}

	state.Store = store
	state.ParseErrors = samples.Errors()
	state.Session.Status = models.SessionStatusComplete
	state.Session.Progress = 100
	state.Session.SampleCount = store.Len()
	state.Session.CameraCount = len(store.Cameras())
	state.Session.SkippedLines = len(samples.Errors())
	state.Session.ProcessingTimeMs = elapsed

	if tr := store.TimeRange(); tr != nil {
		state.Session.StartTime = tr.Start.UnixMicro()
		state.Session.EndTime = tr.End.UnixMicro()
	}
}

func (m *Manager) updateProgress(sessionID string, bytesRead, totalBytes int64) {
	progress := 10.0
	if totalBytes > 0 {
		progress = 10.0 + float64(bytesRead)*80.0/float64(totalBytes)
	}
	// Clamp during parsing; 90-100% is finalization.
	if progress > 89.9 {
		progress = 89.9
	}

	m.mu.Lock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Progress = progress
	}
	m.mu.Unlock()
}

func (m *Manager) updateSessionError(sessionID, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Status = models.SessionStatusError
		state.Session.Error = msg
	}
}

// GetSession returns a snapshot of session metadata.
func (m *Manager) GetSession(id string) (*models.ParseSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Session
	return &snapshot, true
}

// TouchSession extends a session's lifetime while it is actively viewed.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// GetParseErrors returns the envelope diagnostics for a completed session.
func (m *Manager) GetParseErrors(id string) ([]models.ParseError, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.ParseErrors, true
}

// GetCameras returns the cameras observed in a completed session.
func (m *Manager) GetCameras(id string) ([]string, bool) {
	store, ok := m.completedStore(id)
	if !ok {
		return nil, false
	}
	return store.Cameras(), true
}

// QueryBuckets re-buckets a completed session's samples at the given
// resolution.
func (m *Manager) QueryBuckets(ctx context.Context, id string, resolution time.Duration) (*aggregate.Result, bool, error) {
	store, ok := m.completedStore(id)
	if !ok {
		return nil, false, nil
	}
	res, err := store.QueryBuckets(ctx, resolution)
	return res, true, err
}

// QuerySamples returns a filtered page of a completed session's samples.
func (m *Manager) QuerySamples(ctx context.Context, id, camera string, start, end time.Time, page, pageSize int) ([]models.FpsSample, int, bool, error) {
	store, ok := m.completedStore(id)
	if !ok {
		return nil, 0, false, nil
	}
	samples, total, err := store.QuerySamples(ctx, camera, start, end, page, pageSize)
	return samples, total, true, err
}

func (m *Manager) completedStore(id string) (*samplestore.DuckStore, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Store == nil {
		return nil, false
	}
	state.LastAccessed = time.Now()
	return state.Store, true
}

// CleanupOldSessions removes sessions idle longer than maxAge, closing
// their stores and deleting their temp files.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, state := range m.sessions {
		if state.LastAccessed.Before(cutoff) && state.Session.Status != models.SessionStatusParsing {
			if state.Store != nil {
				state.Store.Close()
			}
			delete(m.sessions, id)
			fmt.Printf("[Session %s] Cleaned up (idle since %v)\n", shortID(id), state.LastAccessed.Format(time.RFC3339))
		}
	}
}

// cleanupOldSessionsIfNeeded evicts the least recently accessed
// completed/errored sessions when at capacity, so a new session can
// always start. Parsing sessions are never evicted.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.maxSessions {
		return
	}

	var evictable []string
	for id, state := range m.sessions {
		if state.Session.Status == models.SessionStatusComplete ||
			state.Session.Status == models.SessionStatusError {
			evictable = append(evictable, id)
		}
	}
	sort.Slice(evictable, func(i, j int) bool {
		return m.sessions[evictable[i]].LastAccessed.Before(m.sessions[evictable[j]].LastAccessed)
	})

	toFree := len(m.sessions) - m.maxSessions + 1
	for _, id := range evictable {
		if toFree <= 0 {
			break
		}
		state := m.sessions[id]
		if state.Store != nil {
			state.Store.Close()
		}
		delete(m.sessions, id)
		toFree--
		fmt.Printf("[Session %s] Evicted to free capacity\n", shortID(id))
	}
}

// Close shuts down all sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, state := range m.sessions {
		if state.Store != nil {
			state.Store.Close()
		}
		delete(m.sessions, id)
	}
}
