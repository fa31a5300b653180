package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fps-visualizer/backend/internal/reader"
)

func TestParseEnvelope(t *testing.T) {
	line := "2019-06-01 10:00:00.000000 [123456789012] FPS: 29.97 (30 / 1.001)"

	rec, ok, err := ParseEnvelope(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected line to match envelope")
	}

	want := time.Date(2019, 6, 1, 10, 0, 0, 0, time.UTC)
	if !rec.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, rec.Timestamp)
	}
	if rec.CameraID != "123456789012" {
		t.Errorf("expected camera 123456789012, got %s", rec.CameraID)
	}
	if rec.Message != "FPS: 29.97 (30 / 1.001)" {
		t.Errorf("unexpected message: %q", rec.Message)
	}
}

func TestParseEnvelopeMicroseconds(t *testing.T) {
	rec, ok, err := ParseEnvelope("2019-06-01 10:00:05.123456 [000000000001] ready")
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	if rec.Timestamp.Nanosecond() != 123456000 {
		t.Errorf("expected 123456 microseconds, got %d ns", rec.Timestamp.Nanosecond())
	}
}

func TestParseEnvelopeMismatch(t *testing.T) {
	for _, line := range []string{
		"garbage line with no structure",
		"",
		"2019-06-01 10:00:00.000 [123456789012] short fraction",
		"2019-06-01 10:00:00.000000 [12345] short serial",
		"2019-06-01T10:00:00.000000 [123456789012] wrong separator",
	} {
		if _, ok, err := ParseEnvelope(line); ok || err != nil {
			t.Errorf("expected clean mismatch for %q, got ok=%v err=%v", line, ok, err)
		}
	}
}

func TestParseEnvelopeInvalidCalendar(t *testing.T) {
	// Matches the envelope shape but is not a real date.
	_, _, err := ParseEnvelope("2019-02-30 10:00:00.000000 [123456789012] msg")
	if err == nil {
		t.Fatal("expected FormatError for Feb 30")
	}
	if _, isFormat := err.(*FormatError); !isFormat {
		t.Fatalf("expected *FormatError, got %T", err)
	}

	_, _, err = ParseEnvelope("2019-13-01 10:00:00.000000 [123456789012] msg")
	if err == nil {
		t.Fatal("expected FormatError for month 13")
	}
}

func TestParseTimestampLeapDay(t *testing.T) {
	ts, err := ParseTimestamp("2020-02-29 23:59:59.999999")
	if err != nil {
		t.Fatalf("leap day rejected: %v", err)
	}
	if ts.Day() != 29 {
		t.Errorf("expected day 29, got %d", ts.Day())
	}

	if _, err := ParseTimestamp("2019-02-29 00:00:00.000000"); err == nil {
		t.Error("expected error for Feb 29 in a non-leap year")
	}
}

func TestExtractFPS(t *testing.T) {
	rec, ok, err := ParseEnvelope("2019-06-01 10:00:00.000000 [123456789012] FPS: 29.97 (30 / 1.001)")
	if err != nil || !ok {
		t.Fatalf("envelope failed: ok=%v err=%v", ok, err)
	}

	sample, ok := ExtractFPS(rec)
	if !ok {
		t.Fatal("expected FPS match")
	}
	if sample.FPS != 29.97 {
		t.Errorf("expected fps 29.97, got %v", sample.FPS)
	}
	if sample.ImageCount != 30 {
		t.Errorf("expected 30 images, got %d", sample.ImageCount)
	}
	if sample.IntervalSeconds != 1.001 {
		t.Errorf("expected interval 1.001, got %v", sample.IntervalSeconds)
	}
	if sample.CameraID != rec.CameraID || !sample.Timestamp.Equal(rec.Timestamp) {
		t.Error("sample must carry the record's camera and timestamp")
	}
}

func TestExtractFPSNonMatch(t *testing.T) {
	rec, _, _ := ParseEnvelope("2019-06-01 10:00:00.000000 [123456789012] Starting stream on /dev/video0")
	if _, ok := ExtractFPS(rec); ok {
		t.Error("expected no FPS match for a status message")
	}
}

func TestSampleScanner(t *testing.T) {
	content := "2019-06-01 10:00:00.000000 [123456789012] FPS: 29.97 (30 / 1.001)\n" +
		"garbage line with no structure\n" +
		"2019-06-01 10:00:02.000000 [123456789012] Exposure adjusted\n" +
		"2019-06-01 10:00:05.000000 [123456789012] FPS: 30.00 (30 / 1.000)\n"

	path := filepath.Join(t.TempDir(), "cam.log")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	lines, err := reader.NewScanner(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lines.Close()

	var diag bytes.Buffer
	s := NewSampleScanner(lines, &diag)

	samples, err := s.Collect()
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].FPS != 29.97 || samples[1].FPS != 30.00 {
		t.Errorf("unexpected sample values: %v", samples)
	}
	if !samples[0].Timestamp.Before(samples[1].Timestamp) {
		t.Error("samples must preserve input order")
	}

	// Exactly one diagnostic for the one malformed line.
	if got := len(s.Errors()); got != 1 {
		t.Fatalf("expected 1 parse error, got %d", got)
	}
	if s.Errors()[0].Line != 2 {
		t.Errorf("expected error on line 2, got %d", s.Errors()[0].Line)
	}
	if !bytes.Contains(diag.Bytes(), []byte("garbage line")) {
		t.Error("diagnostic output should quote the offending line")
	}
	if s.LinesRead() != 4 {
		t.Errorf("expected 4 lines read, got %d", s.LinesRead())
	}
}

func TestParseResolution(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"30S", 30 * time.Second},
		{"5Min", 5 * time.Minute},
		{"2min", 2 * time.Minute},
		{"2Min", 2 * time.Minute},
		{"1H", time.Hour},
		{"90S", 90 * time.Second},
		{"T", time.Minute},
		{"Min", time.Minute},
		{"1D", 24 * time.Hour},
		{"500ms", 500 * time.Millisecond},
	}
	for _, c := range cases {
		got, err := ParseResolution(c.in)
		if err != nil {
			t.Errorf("ParseResolution(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseResolution(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"", "0S", "5X", "Min5", "-5Min"} {
		if _, err := ParseResolution(bad); err == nil {
			t.Errorf("ParseResolution(%q): expected error", bad)
		}
	}
}
