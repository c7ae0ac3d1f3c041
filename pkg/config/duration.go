package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseISO8601Duration parses the subset of ISO-8601 durations the
// configuration file uses for TTLs and tick intervals: an optional date
// part (years, months, weeks, days) and an optional time part (hours,
// minutes, seconds), e.g. "PT1H30M", "P1D", "P1DT12H".
//
// Hand-rolled against the standard library; every other
// duration concern in this codebase uses time.Duration directly once
// parsed.
func ParseISO8601Duration(s string) (time.Duration, error) {
	orig := s
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q: missing P prefix", orig)
	}
	s = s[1:]

	datePart, timePart, hasTime := strings.Cut(s, "T")
	if !hasTime {
		datePart, timePart = s, ""
	}

	var total time.Duration

	d, err := parseComponents(datePart, map[byte]time.Duration{
		'Y': 365 * 24 * time.Hour,
		'M': 30 * 24 * time.Hour,
		'W': 7 * 24 * time.Hour,
		'D': 24 * time.Hour,
	})
	if err != nil {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", orig, err)
	}
	total += d

	d, err = parseComponents(timePart, map[byte]time.Duration{
		'H': time.Hour,
		'M': time.Minute,
		'S': time.Second,
	})
	if err != nil {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", orig, err)
	}
	total += d

	return total, nil
}

func parseComponents(s string, units map[byte]time.Duration) (time.Duration, error) {
	var total time.Duration
	var num strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' || c == '.' {
			num.WriteByte(c)
			continue
		}
		unit, ok := units[c]
		if !ok {
			return 0, fmt.Errorf("unexpected unit %q", c)
		}
		value, err := strconv.ParseFloat(num.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numeric component before %q: %w", c, err)
		}
		total += time.Duration(value * float64(unit))
		num.Reset()
	}

	if num.Len() > 0 {
		return 0, fmt.Errorf("trailing numeric component %q without unit", num.String())
	}

	return total, nil
}
