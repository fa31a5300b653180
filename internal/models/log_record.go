// Package models contains domain types for the Camera FPS Log Visualizer.
package models

import "time"

// LogRecord is a single camera-tester log line that matched the envelope
// grammar: timestamp, 12-digit camera serial, free-text message.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	CameraID  string    `json:"cameraId"`
	Message   string    `json:"message"`
}

// FpsSample is a LogRecord whose message carried an FPS measurement.
type FpsSample struct {
	Timestamp       time.Time `json:"timestamp"`
	CameraID        string    `json:"cameraId"`
	FPS             float64   `json:"fps"`
	ImageCount      int       `json:"imageCount"`
	IntervalSeconds float64   `json:"intervalSeconds"`
}

// Bucket is one fixed-width time window of a camera's FPS series.
// Buckets for a camera are contiguous on the resolution grid; windows with
// no samples carry MeanFPS 0.
type Bucket struct {
	CameraID    string    `json:"cameraId"`
	BucketStart time.Time `json:"bucketStart"`
	MeanFPS     float64   `json:"meanFps"`
}

// Panel is one camera's chart lane: its full ordered bucket sequence.
type Panel struct {
	CameraID string   `json:"cameraId"`
	Buckets  []Bucket `json:"buckets"`
}

// TimeRange represents a time window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
