// Package samplestore keeps extracted FPS samples in a temporary DuckDB
// file so multi-day tester logs can be re-bucketed at arbitrary
// resolutions without holding every sample in Go memory.
package samplestore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/fps-visualizer/backend/internal/aggregate"
	"github.com/fps-visualizer/backend/internal/models"
)

// DuckStore stores FPS samples in a session-scoped DuckDB file. The file is
// removed on Close; nothing outlives the session.
type DuckStore struct {
	db          *sql.DB
	dbPath      string
	sampleCount int
	batchSize   int
	batch       []models.FpsSample
	cameras     map[string]struct{}
	cameraOrder []string
	minTs       int64
	maxTs       int64
	lastError   error

	// Limits concurrent bucket/sample queries; re-bucketing a long run at
	// a fine resolution is memory-hungry inside DuckDB.
	querySem chan struct{}
}

// Tuning bounds DuckDB's resource use per session store. Zero values
// fall back to the defaults.
type Tuning struct {
	Threads     int
	MemoryLimit string
}

func (t Tuning) withDefaults() Tuning {
	if t.Threads <= 0 {
		t.Threads = 4
	}
	if t.MemoryLimit == "" {
		t.MemoryLimit = "512MB"
	}
	return t
}

// New creates a session-scoped store in tempDir.
func New(tempDir, sessionID string, tuning Tuning) (*DuckStore, error) {
	return NewAtPath(filepath.Join(tempDir, fmt.Sprintf("session_%s.duckdb", sessionID)), tuning)
}

// NewAtPath creates a store backed by a DuckDB file at the given path.
func NewAtPath(dbPath string, tuning Tuning) (*DuckStore, error) {
	tuning = tuning.withDefaults()
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", tuning.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", tuning.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE samples (
			ts         BIGINT NOT NULL,
			camera     VARCHAR NOT NULL,
			fps        DOUBLE NOT NULL,
			images     INTEGER NOT NULL,
			interval_s DOUBLE NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("creating samples table: %w", err)
	}

	return &DuckStore{
		db:        db,
		dbPath:    dbPath,
		batchSize: 50000,
		batch:     make([]models.FpsSample, 0, 50000),
		cameras:   make(map[string]struct{}, 16),
		querySem:  make(chan struct{}, 3),
	}, nil
}

// AddSample buffers a sample; batches are flushed through the DuckDB
// Appender. Call Finalize when the stream ends.
func (ds *DuckStore) AddSample(s models.FpsSample) {
	ds.batch = append(ds.batch, s)

	if _, seen := ds.cameras[s.CameraID]; !seen {
		ds.cameras[s.CameraID] = struct{}{}
		ds.cameraOrder = append(ds.cameraOrder, s.CameraID)
	}

	tsUs := s.Timestamp.UnixMicro()
	if ds.sampleCount == 0 || tsUs < ds.minTs {
		ds.minTs = tsUs
	}
	if ds.sampleCount == 0 || tsUs > ds.maxTs {
		ds.maxTs = tsUs
	}
	ds.sampleCount++

	if len(ds.batch) >= ds.batchSize {
		if err := ds.flushBatch(); err != nil {
			ds.lastError = err
			fmt.Printf("[SampleStore] flush error: %v\n", err)
		}
	}
}

// LastError returns the last error that occurred during batch flush.
func (ds *DuckStore) LastError() error { return ds.lastError }

func (ds *DuckStore) flushBatch() error {
	if len(ds.batch) == 0 {
		return nil
	}

	conn, err := ds.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("getting connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type %T", driverConn)
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "samples")
		if err != nil {
			return fmt.Errorf("creating appender: %w", err)
		}
		defer appender.Close()

		for i, s := range ds.batch {
			err := appender.AppendRow(
				s.Timestamp.UnixMicro(),
				s.CameraID,
				s.FPS,
				int32(s.ImageCount),
				s.IntervalSeconds,
			)
			if err != nil {
				return fmt.Errorf("appending row %d: %w", i, err)
			}
		}

		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	ds.batch = ds.batch[:0]
	return nil
}

// Finalize flushes remaining samples and creates the query index.
func (ds *DuckStore) Finalize() error {
	if err := ds.flushBatch(); err != nil {
		return err
	}

	if _, err := ds.db.Exec("CREATE INDEX idx_camera_ts ON samples(camera, ts)"); err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	return nil
}

// Len returns the number of samples added.
func (ds *DuckStore) Len() int { return ds.sampleCount }

// Cameras returns camera serials in first-seen order.
func (ds *DuckStore) Cameras() []string {
	out := make([]string, len(ds.cameraOrder))
	copy(out, ds.cameraOrder)
	return out
}

// TimeRange returns the observed sample range, or nil if empty.
func (ds *DuckStore) TimeRange() *models.TimeRange {
	if ds.sampleCount == 0 {
		return nil
	}
	return &models.TimeRange{
		Start: time.UnixMicro(ds.minTs).UTC(),
		End:   time.UnixMicro(ds.maxTs).UTC(),
	}
}

// QueryBuckets computes mean FPS per epoch-aligned bucket, per camera.
// DuckDB produces the non-empty buckets; FillGaps normalizes each camera's
// series onto the contiguous grid so results match the in-memory
// aggregator exactly.
func (ds *DuckStore) QueryBuckets(ctx context.Context, resolution time.Duration) (*aggregate.Result, error) {
	select {
	case ds.querySem <- struct{}{}:
		defer func() { <-ds.querySem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	resUs := resolution.Microseconds()
	if resUs <= 0 {
		return nil, fmt.Errorf("non-positive resolution %v", resolution)
	}

	rows, err := ds.db.QueryContext(ctx, `
		SELECT camera, ts - (ts % ?) AS bucket_start, AVG(fps)
		FROM samples
		GROUP BY camera, bucket_start
		ORDER BY camera, bucket_start
	`, resUs)
	if err != nil {
		return nil, fmt.Errorf("bucket query: %w", err)
	}
	defer rows.Close()

	sparse := make(map[string][]models.Bucket)
	for rows.Next() {
		var camera string
		var startUs int64
		var mean float64
		if err := rows.Scan(&camera, &startUs, &mean); err != nil {
			return nil, fmt.Errorf("scanning bucket row: %w", err)
		}
		sparse[camera] = append(sparse[camera], models.Bucket{
			CameraID:    camera,
			BucketStart: time.UnixMicro(startUs).UTC(),
			MeanFPS:     mean,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bucket rows: %w", err)
	}

	result := &aggregate.Result{
		Cameras: ds.Cameras(),
		Buckets: make(map[string][]models.Bucket, len(sparse)),
	}
	for _, cam := range result.Cameras {
		result.Buckets[cam] = aggregate.FillGaps(cam, sparse[cam], resolution)
	}
	return result, nil
}

// QuerySamples returns samples filtered by camera and time range, paginated
// in timestamp order. camera may be empty for all cameras; zero times mean
// an open bound.
func (ds *DuckStore) QuerySamples(ctx context.Context, camera string, start, end time.Time, page, pageSize int) ([]models.FpsSample, int, error) {
	select {
	case ds.querySem <- struct{}{}:
		defer func() { <-ds.querySem }()
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	if camera != "" {
		where += " AND camera = ?"
		args = append(args, camera)
	}
	if !start.IsZero() {
		where += " AND ts >= ?"
		args = append(args, start.UnixMicro())
	}
	if !end.IsZero() {
		where += " AND ts < ?"
		args = append(args, end.UnixMicro())
	}

	var total int
	if err := ds.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM samples "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count query: %w", err)
	}

	query := "SELECT ts, camera, fps, images, interval_s FROM samples " + where +
		" ORDER BY ts LIMIT ? OFFSET ?"
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := ds.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sample query: %w", err)
	}
	defer rows.Close()

	samples := make([]models.FpsSample, 0, pageSize)
	for rows.Next() {
		var tsUs int64
		var s models.FpsSample
		var images int32
		if err := rows.Scan(&tsUs, &s.CameraID, &s.FPS, &images, &s.IntervalSeconds); err != nil {
			return nil, 0, fmt.Errorf("scanning sample row: %w", err)
		}
		s.Timestamp = time.UnixMicro(tsUs).UTC()
		s.ImageCount = int(images)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sample rows: %w", err)
	}

	return samples, total, nil
}

// Close closes the database and removes its file.
func (ds *DuckStore) Close() error {
	var err error
	if ds.db != nil {
		err = ds.db.Close()
		ds.db = nil
	}
	if ds.dbPath != "" {
		os.Remove(ds.dbPath)
	}
	return err
}
