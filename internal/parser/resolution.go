package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultResolution is the bucket width used when none is given.
const DefaultResolution = 2 * time.Minute

// resolutionUnits maps pandas-style offset aliases (the strings the
// original tooling accepted, e.g. "30S", "5Min", "1H") to durations.
// Lookup is case-insensitive.
var resolutionUnits = map[string]time.Duration{
	"ms":      time.Millisecond,
	"l":       time.Millisecond,
	"s":       time.Second,
	"sec":     time.Second,
	"second":  time.Second,
	"seconds": time.Second,
	"t":       time.Minute,
	"min":     time.Minute,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"h":       time.Hour,
	"hr":      time.Hour,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"d":       24 * time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
}

// ParseResolution parses a bucket-width string such as "30S", "5Min" or
// "1H" into a duration. A missing count means 1 ("Min" == "1Min"). The
// result is always positive.
func ParseResolution(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty resolution")
	}

	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}

	count := 1
	if i > 0 {
		n, err := strconv.Atoi(trimmed[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid resolution %q: %w", s, err)
		}
		count = n
	}
	if count <= 0 {
		return 0, fmt.Errorf("resolution %q must be positive", s)
	}

	unit, ok := resolutionUnits[strings.ToLower(trimmed[i:])]
	if !ok {
		return 0, fmt.Errorf("unknown resolution unit %q in %q", trimmed[i:], s)
	}

	return time.Duration(count) * unit, nil
}
