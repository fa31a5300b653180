// duckstore_test.go - Tests for DuckDB-backed FPS sample storage
package samplestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fps-visualizer/backend/internal/aggregate"
	"github.com/fps-visualizer/backend/internal/models"
)

func createTestStore(t *testing.T) *DuckStore {
	t.Helper()
	store, err := New(t.TempDir(), "test_"+time.Now().Format("20060102_150405"), Tuning{})
	if err != nil {
		t.Fatalf("Failed to create sample store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testSample(camera string, ts time.Time, fps float64) models.FpsSample {
	return models.FpsSample{
		Timestamp:       ts,
		CameraID:        camera,
		FPS:             fps,
		ImageCount:      30,
		IntervalSeconds: 1.0,
	}
}

func TestAddAndFinalize(t *testing.T) {
	store := createTestStore(t)

	t0 := time.Date(2019, 6, 1, 10, 0, 0, 0, time.UTC)
	store.AddSample(testSample("123456789012", t0, 29.97))
	store.AddSample(testSample("123456789012", t0.Add(5*time.Second), 30.00))
	store.AddSample(testSample("210987654321", t0.Add(time.Second), 15))

	if err := store.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := store.LastError(); err != nil {
		t.Fatalf("flush error: %v", err)
	}

	if store.Len() != 3 {
		t.Errorf("expected 3 samples, got %d", store.Len())
	}

	cams := store.Cameras()
	if len(cams) != 2 || cams[0] != "123456789012" || cams[1] != "210987654321" {
		t.Errorf("expected first-seen camera order, got %v", cams)
	}

	tr := store.TimeRange()
	if tr == nil {
		t.Fatal("expected non-nil time range")
	}
	if !tr.Start.Equal(t0) || !tr.End.Equal(t0.Add(5*time.Second)) {
		t.Errorf("unexpected time range: %v", tr)
	}
}

func TestQueryBucketsMatchesAggregator(t *testing.T) {
	store := createTestStore(t)

	t0 := time.Date(2019, 6, 1, 10, 0, 0, 0, time.UTC)
	samples := []models.FpsSample{
		testSample("123456789012", t0, 29.97),
		testSample("123456789012", t0.Add(5*time.Second), 30.00),
		testSample("123456789012", t0.Add(8*time.Minute+30*time.Second), 28),
		testSample("210987654321", t0.Add(time.Second), 15),
	}
	for _, s := range samples {
		store.AddSample(s)
	}
	if err := store.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	res := 2 * time.Minute
	got, err := store.QueryBuckets(context.Background(), res)
	if err != nil {
		t.Fatalf("QueryBuckets: %v", err)
	}
	want := aggregate.Resample(samples, res)

	if len(got.Cameras) != len(want.Cameras) {
		t.Fatalf("camera count mismatch: %v vs %v", got.Cameras, want.Cameras)
	}
	for _, cam := range want.Cameras {
		gb, wb := got.Buckets[cam], want.Buckets[cam]
		if len(gb) != len(wb) {
			t.Fatalf("camera %s: %d buckets from store, %d from aggregator", cam, len(gb), len(wb))
		}
		for i := range wb {
			if gb[i] != wb[i] {
				t.Errorf("camera %s bucket %d: store %v != aggregator %v", cam, i, gb[i], wb[i])
			}
		}
	}
}

func TestQuerySamples(t *testing.T) {
	store := createTestStore(t)

	t0 := time.Date(2019, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		store.AddSample(testSample("123456789012", t0.Add(time.Duration(i)*time.Second), 30))
	}
	store.AddSample(testSample("210987654321", t0, 15))
	if err := store.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	samples, total, err := store.QuerySamples(context.Background(), "123456789012", time.Time{}, time.Time{}, 1, 4)
	if err != nil {
		t.Fatalf("QuerySamples: %v", err)
	}
	if total != 10 {
		t.Errorf("expected total 10, got %d", total)
	}
	if len(samples) != 4 {
		t.Errorf("expected page of 4, got %d", len(samples))
	}
	if !samples[0].Timestamp.Equal(t0) {
		t.Errorf("expected first sample at %v, got %v", t0, samples[0].Timestamp)
	}

	// Time-bounded query: [t0+2s, t0+5s) holds 3 samples.
	_, total, err = store.QuerySamples(context.Background(), "123456789012", t0.Add(2*time.Second), t0.Add(5*time.Second), 1, 100)
	if err != nil {
		t.Fatalf("QuerySamples bounded: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 samples in range, got %d", total)
	}
}

func TestCloseRemovesFile(t *testing.T) {
	store := createTestStore(t)
	path := store.dbPath

	store.AddSample(testSample("123456789012", time.Date(2019, 6, 1, 10, 0, 0, 0, time.UTC), 30))
	if err := store.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected db file removed on close, stat err: %v", err)
	}
}

func TestTuningPragmasApplied(t *testing.T) {
	store, err := New(t.TempDir(), "tuned", Tuning{Threads: 2, MemoryLimit: "256MB"})
	if err != nil {
		t.Fatalf("New with tuning: %v", err)
	}
	defer store.Close()

	var threads int64
	if err := store.db.QueryRow("SELECT current_setting('threads')").Scan(&threads); err != nil {
		t.Fatalf("reading threads setting: %v", err)
	}
	if threads != 2 {
		t.Errorf("expected 2 DuckDB threads, got %d", threads)
	}

	store.AddSample(testSample("123456789012", time.Date(2019, 6, 1, 10, 0, 0, 0, time.UTC), 30))
	if err := store.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 sample, got %d", store.Len())
	}
}
