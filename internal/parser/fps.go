package parser

import (
	"regexp"
	"strconv"

	"github.com/fps-visualizer/backend/internal/models"
)

// fpsRegex matches the measurement the tester prints once per interval:
//
//	FPS: 29.97 (30 / 1.001)
//
// mean FPS, image count, interval in seconds. Anchored at the start of the
// message only; trailing text is tolerated.
var fpsRegex = regexp.MustCompile(`^FPS: ([0-9.]+) \((\d+) / ([0-9.]+)\)`)

// ExtractFPS matches a LogRecord's message against the FPS grammar and, on
// match, combines the record's timestamp and camera with the captured
// numbers. Non-matching records are the expected majority case and are
// dropped without diagnostics.
func ExtractFPS(rec models.LogRecord) (models.FpsSample, bool) {
	m := fpsRegex.FindStringSubmatch(rec.Message)
	if m == nil {
		return models.FpsSample{}, false
	}

	fps, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.FpsSample{}, false
	}
	images, err := strconv.Atoi(m[2])
	if err != nil {
		return models.FpsSample{}, false
	}
	interval, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return models.FpsSample{}, false
	}

	return models.FpsSample{
		Timestamp:       rec.Timestamp,
		CameraID:        rec.CameraID,
		FPS:             fps,
		ImageCount:      images,
		IntervalSeconds: interval,
	}, true
}
