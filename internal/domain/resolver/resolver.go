// Package resolver finds the start minutes at which a meeting of a given
// length fits the free time of as many importance tiers as possible.
package resolver

import (
	"sort"
	"sync"

	"github.com/okian/huddle/internal/domain/interval"
)

// DayParticipant is one participant's free time on a single day.
// Higher Tier values are satisfied first.
type DayParticipant struct {
	ID   string
	Tier int
	Free []interval.Interval
}

// FindStarts returns every minute i such that [i, i+duration) fits in the
// free time of each participant in the largest cumulative tier group that
// still has a common slot.
//
// Tiers are added from the highest down. When adding a tier leaves no
// feasible minute the search stops and the previous candidates are returned;
// lower tiers are never revisited. If even the highest tier has no common
// slot the result is empty.
func FindStarts(participants []DayParticipant, duration int) []int {
	if len(participants) == 0 || duration <= 0 || duration > interval.MinutesPerDay {
		return nil
	}

	candidates := make([]int, 0, interval.MinutesPerDay-duration+1)
	for i := 0; i+duration <= interval.MinutesPerDay; i++ {
		candidates = append(candidates, i)
	}

	var group []DayParticipant
	for n, level := range levels(participants) {
		for _, p := range participants {
			if p.Tier == level {
				group = append(group, p)
			}
		}

		next := make([]int, 0, len(candidates))
		for _, i := range candidates {
			if fitsAll(group, i, duration) {
				next = append(next, i)
			}
		}
		if len(next) == 0 {
			if n == 0 {
				return nil
			}
			return candidates
		}
		candidates = next
	}
	return candidates
}

// levels returns the distinct tiers, highest first.
func levels(participants []DayParticipant) []int {
	seen := make(map[int]bool, len(participants))
	var out []int
	for _, p := range participants {
		if !seen[p.Tier] {
			seen[p.Tier] = true
			out = append(out, p.Tier)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func fitsAll(group []DayParticipant, start, duration int) bool {
	for _, p := range group {
		if !fits(p.Free, start, duration) {
			return false
		}
	}
	return true
}

func fits(free []interval.Interval, start, duration int) bool {
	for _, iv := range free {
		if iv.Contains(start, duration) {
			return true
		}
	}
	return false
}

// Run is a maximal sequence of consecutive feasible start minutes, both
// ends inclusive.
type Run struct {
	First int
	Last  int
}

// Runs compacts sorted start minutes into contiguous runs.
func Runs(starts []int) []Run {
	var out []Run
	for _, s := range starts {
		if n := len(out); n > 0 && out[n-1].Last+1 == s {
			out[n-1].Last = s
			continue
		}
		out = append(out, Run{First: s, Last: s})
	}
	return out
}

// ResolveDays runs FindStarts for every day concurrently. Days with no
// feasible start are omitted from the result.
func ResolveDays(days map[string][]DayParticipant, duration int) map[string][]int {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string][]int, len(days))
	)
	for day, participants := range days {
		wg.Add(1)
		go func(day string, participants []DayParticipant) {
			defer wg.Done()
			starts := FindStarts(participants, duration)
			if len(starts) == 0 {
				return
			}
			mu.Lock()
			out[day] = starts
			mu.Unlock()
		}(day, participants)
	}
	wg.Wait()
	return out
}
