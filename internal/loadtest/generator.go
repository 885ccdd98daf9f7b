package loadtest

import (
	"fmt"
	"math/rand/v2"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

// Busy blocks are placed on whole hours inside this range so that blocks of
// one user never overlap and imports never hit a conflict.
const (
	firstBlockHour = 8
	lastBlockHour  = 18
	productID      = "-//huddle//load test//EN"
)

var (
	blockOffsets   = []int{0, 15, 30}
	blockDurations = []int{15, 30}
	blockTitles    = []string{"Standup", "1:1", "Focus", "Review", "Interview", "Lunch"}
)

// Block is one generated busy interval.
type Block struct {
	UID   string    `json:"uid"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// User is a synthetic participant and its busy time. ID is filled in once
// the user is registered.
type User struct {
	ID    string  `json:"id,omitempty"`
	Email string  `json:"email"`
	Busy  []Block `json:"busy"`
}

// Fixture is everything a run generates up front.
type Fixture struct {
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Users     []*User `json:"users"`
	Groups    [][]int `json:"groups"`
}

// Generate builds a reproducible fixture for cfg. Busy blocks are generated
// in UTC for each of cfg.Days days starting at today's date.
func Generate(cfg *Config, today time.Time) *Fixture {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	first := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	days := max(cfg.Days, 1)
	runID := uuid.NewString()[:8]

	f := &Fixture{
		StartDate: first.Format(time.DateOnly),
		EndDate:   first.AddDate(0, 0, days-1).Format(time.DateOnly),
		Users:     make([]*User, cfg.Users),
	}
	for i := range f.Users {
		u := &User{Email: fmt.Sprintf("load-%s-%04d@example.com", runID, i)}
		for d := range days {
			u.Busy = append(u.Busy, dayBlocks(rng, first.AddDate(0, 0, d), cfg.BlocksPerDay)...)
		}
		f.Users[i] = u
	}

	size := min(max(cfg.GroupSize, 1), cfg.Users)
	f.Groups = make([][]int, cfg.Searches)
	for i := range f.Groups {
		f.Groups[i] = rng.Perm(cfg.Users)[:size]
	}
	return f
}

func dayBlocks(rng *rand.Rand, day time.Time, maxBlocks int) []Block {
	hours := lastBlockHour - firstBlockHour
	n := rng.IntN(max(min(maxBlocks, hours), 0) + 1)
	out := make([]Block, 0, n)
	for _, h := range rng.Perm(hours)[:n] {
		start := day.Add(time.Duration(firstBlockHour+h)*time.Hour +
			time.Duration(blockOffsets[rng.IntN(len(blockOffsets))])*time.Minute)
		out = append(out, Block{
			UID:   uuid.NewString(),
			Title: blockTitles[rng.IntN(len(blockTitles))],
			Start: start,
			End:   start.Add(time.Duration(blockDurations[rng.IntN(len(blockDurations))]) * time.Minute),
		})
	}
	return out
}

// Calendar renders the user's busy time as an iCalendar document.
func (u *User) Calendar(now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	for _, b := range u.Busy {
		ev := cal.AddEvent(b.UID)
		ev.SetDtStampTime(now)
		ev.SetStartAt(b.Start)
		ev.SetEndAt(b.End)
		ev.SetSummary(b.Title)
	}
	return cal.Serialize()
}
