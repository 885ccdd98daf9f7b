package interval

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a time of day expressed in minutes since midnight. 1440 is
// accepted as "24:00" so that a range can end exactly at the end of the day.
type Clock int

// ParseClock parses an "HH:MM" string. Seconds ("HH:MM:SS") are accepted and
// truncated. Anything else is an error; there is no fallback value.
func ParseClock(s string) (Clock, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrMalformedClock, s)
	}
	hour, err := parseClockPart(parts[0], 2)
	if err != nil {
		return 0, fmt.Errorf("%w: %q has a bad hour", ErrMalformedClock, s)
	}
	minute, err := parseClockPart(parts[1], 2)
	if err != nil || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q has a bad minute", ErrMalformedClock, s)
	}
	if len(parts) == 3 {
		sec, serr := parseClockPart(parts[2], 2)
		if serr != nil || sec > 59 {
			return 0, fmt.Errorf("%w: %q has a bad second", ErrMalformedClock, s)
		}
	}
	if minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrMalformedClock, s)
	}
	return Clock(hour*MinutesPerHour + minute), nil
}

func parseClockPart(s string, maxLen int) (int, error) {
	if s == "" || len(s) > maxLen {
		return 0, ErrMalformedClock
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrMalformedClock
		}
	}
	return strconv.Atoi(s)
}

// Minutes returns the clock as minutes since midnight.
func (c Clock) Minutes() int { return int(c) }

// String formats the clock as zero-padded "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/MinutesPerHour, int(c)%MinutesPerHour)
}

// Span builds the interval between two clocks.
func Span(start, end Clock) Interval {
	return Interval{Start: int(start), End: int(end)}
}
