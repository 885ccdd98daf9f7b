// Package interval implements set operations over minute-of-day ranges.
//
// An Interval is half-open: [Start, End). All functions are pure; inputs are
// never modified and results are freshly allocated.
package interval

import (
	"fmt"
	"sort"
)

// Day boundaries in minutes.
const (
	MinutesPerDay  = 24 * 60
	MinutesPerHour = 60
)

// Interval is a half-open range of minutes within one day.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// New returns the interval [start, end).
func New(start, end int) Interval {
	return Interval{Start: start, End: end}
}

// Len returns the number of minutes covered, zero for empty or inverted intervals.
func (iv Interval) Len() int {
	if iv.End <= iv.Start {
		return 0
	}
	return iv.End - iv.Start
}

// Empty reports whether the interval covers no minutes.
func (iv Interval) Empty() bool { return iv.End <= iv.Start }

// Valid reports whether the interval lies inside a single day and has positive length.
func (iv Interval) Valid() bool {
	return iv.Start >= 0 && iv.Start < iv.End && iv.End <= MinutesPerDay
}

// Contains reports whether [start, start+duration) fits inside the interval.
func (iv Interval) Contains(start, duration int) bool {
	return iv.Start <= start && start+duration <= iv.End
}

// Overlaps reports whether two half-open intervals share at least one minute.
// Touching intervals (a.End == b.Start) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s,%s)", Clock(iv.Start), Clock(iv.End))
}

// Merge sorts intervals by start and coalesces overlapping and touching ones.
// Empty intervals are dropped.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []Interval{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Subtract removes every interval in toSubtract from every interval in source.
// Zero-length pieces are dropped, so the result never contains inverted intervals.
func Subtract(source, toSubtract []Interval) []Interval {
	var result []Interval
	for _, src := range source {
		if src.Empty() {
			continue
		}
		current := []Interval{src}
		for _, cut := range toSubtract {
			if cut.Empty() {
				continue
			}
			next := make([]Interval, 0, len(current)+1)
			for _, c := range current {
				if cut.End <= c.Start || cut.Start >= c.End {
					next = append(next, c)
					continue
				}
				if c.Start < cut.Start {
					next = append(next, Interval{Start: c.Start, End: cut.Start})
				}
				if cut.End < c.End {
					next = append(next, Interval{Start: cut.End, End: c.End})
				}
			}
			current = next
		}
		result = append(result, current...)
	}
	return result
}

// Intersect returns the pairwise overlaps of a and b that have positive length.
func Intersect(a, b []Interval) []Interval {
	var result []Interval
	for _, x := range a {
		for _, y := range b {
			start := max(x.Start, y.Start)
			end := min(x.End, y.End)
			if start < end {
				result = append(result, Interval{Start: start, End: end})
			}
		}
	}
	return result
}

// Total returns the number of minutes covered by the merged form of intervals.
func Total(intervals []Interval) int {
	total := 0
	for _, iv := range Merge(intervals) {
		total += iv.Len()
	}
	return total
}
