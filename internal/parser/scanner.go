package parser

import (
	"fmt"
	"io"

	"github.com/fps-visualizer/backend/internal/models"
	"github.com/fps-visualizer/backend/internal/reader"
)

// SampleScanner composes line reading, envelope parsing, and FPS extraction
// into one lazy, single-pass stream of FpsSamples. Lines failing the
// envelope grammar are written to diag and collected; envelope-matching
// lines without an FPS measurement are skipped silently.
type SampleScanner struct {
	lines     *reader.Scanner
	diag      io.Writer
	errs      []models.ParseError
	sample    models.FpsSample
	linesRead int
	err       error
}

// NewSampleScanner wraps a line scanner. diag receives one line per
// envelope mismatch; pass io.Discard to suppress diagnostics.
func NewSampleScanner(lines *reader.Scanner, diag io.Writer) *SampleScanner {
	if diag == nil {
		diag = io.Discard
	}
	return &SampleScanner{lines: lines, diag: diag}
}

// Scan advances to the next FPS sample. It returns false at end of input or
// on a fatal error; Err distinguishes the two.
func (s *SampleScanner) Scan() bool {
	if s.err != nil {
		return false
	}

	for s.lines.Scan() {
		s.linesRead++
		line := s.lines.Text()

		rec, ok, err := ParseEnvelope(line)
		if err != nil {
			s.err = err
			return false
		}
		if !ok {
			fmt.Fprintf(s.diag, "failed to parse line %s:%d: %s\n", s.lines.File(), s.lines.Line(), line)
			s.errs = append(s.errs, models.ParseError{
				Line:    s.lines.Line(),
				File:    s.lines.File(),
				Content: line,
				Reason:  "line does not match envelope format",
			})
			continue
		}

		sample, ok := ExtractFPS(rec)
		if !ok {
			continue
		}

		s.sample = sample
		return true
	}

	s.err = s.lines.Err()
	return false
}

// Sample returns the sample produced by the last successful Scan.
func (s *SampleScanner) Sample() models.FpsSample { return s.sample }

// Err returns the first fatal error encountered, if any.
func (s *SampleScanner) Err() error { return s.err }

// Errors returns the envelope mismatches collected so far, one per line.
func (s *SampleScanner) Errors() []models.ParseError { return s.errs }

// LinesRead returns how many input lines have been consumed.
func (s *SampleScanner) LinesRead() int { return s.linesRead }

// Collect drains the scanner into a slice; this is the materialization
// point where the streaming stages hand off to the aggregator.
func (s *SampleScanner) Collect() ([]models.FpsSample, error) {
	var samples []models.FpsSample
	for s.Scan() {
		samples = append(samples, s.Sample())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
