// Package aggregate resamples per-camera FPS series into fixed-width,
// epoch-aligned time buckets.
package aggregate

import (
	"time"

	"github.com/fps-visualizer/backend/internal/models"
)

// Result holds one ordered bucket sequence per camera. Cameras preserves
// first-seen order so repeated runs over the same input render panels in
// the same order.
type Result struct {
	Cameras []string
	Buckets map[string][]models.Bucket
}

// BucketStart returns the start of the grid bucket containing t. The grid
// is anchored at the Unix epoch in UTC, so files starting at different
// times land on the same boundaries.
func BucketStart(t time.Time, resolution time.Duration) time.Time {
	us := t.UnixMicro()
	resUs := resolution.Microseconds()
	rem := us % resUs
	if rem < 0 {
		rem += resUs
	}
	return time.UnixMicro(us - rem).UTC()
}

// Resample partitions samples by camera and reduces each camera's series to
// mean FPS per bucket. Every grid bucket between a camera's first and last
// sample is present; empty ones carry mean 0, surfacing measurement gaps
// instead of interpolating across them.
func Resample(samples []models.FpsSample, resolution time.Duration) *Result {
	if resolution <= 0 {
		resolution = 2 * time.Minute
	}

	// Phase 1: partition by camera, preserving input order within each
	// group and first-seen order across groups.
	groups := make(map[string][]models.FpsSample)
	var cameras []string
	for _, s := range samples {
		if _, seen := groups[s.CameraID]; !seen {
			cameras = append(cameras, s.CameraID)
		}
		groups[s.CameraID] = append(groups[s.CameraID], s)
	}

	// Phase 2: deterministic sweep per camera over the contiguous grid.
	buckets := make(map[string][]models.Bucket, len(cameras))
	for _, cam := range cameras {
		buckets[cam] = resampleCamera(cam, groups[cam], resolution)
	}

	return &Result{Cameras: cameras, Buckets: buckets}
}

func resampleCamera(cameraID string, samples []models.FpsSample, resolution time.Duration) []models.Bucket {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)

	var minStart, maxStart int64
	for i, s := range samples {
		start := BucketStart(s.Timestamp, resolution).UnixMicro()
		sums[start] += s.FPS
		counts[start]++
		if i == 0 || start < minStart {
			minStart = start
		}
		if i == 0 || start > maxStart {
			maxStart = start
		}
	}

	if len(samples) == 0 {
		return nil
	}

	resUs := resolution.Microseconds()
	out := make([]models.Bucket, 0, (maxStart-minStart)/resUs+1)
	for start := minStart; start <= maxStart; start += resUs {
		b := models.Bucket{
			CameraID:    cameraID,
			BucketStart: time.UnixMicro(start).UTC(),
		}
		if n := counts[start]; n > 0 {
			b.MeanFPS = sums[start] / float64(n)
		}
		out = append(out, b)
	}
	return out
}

// FillGaps expands a sparse, ordered bucket list onto the contiguous grid
// between its first and last entry, inserting zero-mean buckets for missing
// windows. Inputs must already lie on the grid; it is used to normalize
// store-side aggregates so they match Resample output exactly.
func FillGaps(cameraID string, sparse []models.Bucket, resolution time.Duration) []models.Bucket {
	if len(sparse) == 0 {
		return nil
	}

	resUs := resolution.Microseconds()
	first := sparse[0].BucketStart.UnixMicro()
	last := sparse[len(sparse)-1].BucketStart.UnixMicro()

	out := make([]models.Bucket, 0, (last-first)/resUs+1)
	i := 0
	for start := first; start <= last; start += resUs {
		if i < len(sparse) && sparse[i].BucketStart.UnixMicro() == start {
			b := sparse[i]
			b.CameraID = cameraID
			b.BucketStart = b.BucketStart.UTC()
			out = append(out, b)
			i++
			continue
		}
		out = append(out, models.Bucket{
			CameraID:    cameraID,
			BucketStart: time.UnixMicro(start).UTC(),
		})
	}
	return out
}

// Panels flattens a Result into renderer input, one panel per camera in
// first-seen order.
func (r *Result) Panels() []models.Panel {
	panels := make([]models.Panel, 0, len(r.Cameras))
	for _, cam := range r.Cameras {
		panels = append(panels, models.Panel{CameraID: cam, Buckets: r.Buckets[cam]})
	}
	return panels
}
