package resolver_test

import (
	"testing"

	"github.com/okian/huddle/internal/domain/interval"
	"github.com/okian/huddle/internal/domain/resolver"
	. "github.com/smartystreets/goconvey/convey"
)

func rangeInts(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestFindStarts(t *testing.T) {
	Convey("Given a single participant free from 09:00 to 17:00", t, func() {
		ps := []resolver.DayParticipant{{ID: "a", Free: []interval.Interval{interval.New(540, 1020)}}}

		Convey("Then every start from 09:00 to 16:00 fits an hour", func() {
			So(resolver.FindStarts(ps, 60), ShouldResemble, rangeInts(540, 960))
		})
	})

	Convey("Given a key participant free for one hour and a regular one free all day", t, func() {
		ps := []resolver.DayParticipant{
			{ID: "key", Tier: 1, Free: []interval.Interval{interval.New(540, 600)}},
			{ID: "other", Tier: 0, Free: []interval.Interval{interval.New(540, 1020)}},
		}

		Convey("Then only the key participant's slot is offered", func() {
			So(resolver.FindStarts(ps, 60), ShouldResemble, []int{540})
		})
	})

	Convey("Given a lower tier that cannot meet when the higher tiers can", t, func() {
		ps := []resolver.DayParticipant{
			{ID: "boss", Tier: 2, Free: []interval.Interval{interval.New(540, 720)}},
			{ID: "lead", Tier: 1, Free: []interval.Interval{interval.New(600, 720)}},
			{ID: "intern", Tier: 0, Free: []interval.Interval{interval.New(780, 840)}},
		}

		Convey("Then the result stops at the last feasible group", func() {
			So(resolver.FindStarts(ps, 30), ShouldResemble, rangeInts(600, 690))
		})
	})

	Convey("Given two participants in the top tier with no common slot", t, func() {
		ps := []resolver.DayParticipant{
			{ID: "a", Tier: 1, Free: []interval.Interval{interval.New(540, 600)}},
			{ID: "b", Tier: 1, Free: []interval.Interval{interval.New(600, 660)}},
			{ID: "c", Tier: 0, Free: []interval.Interval{interval.New(0, 1440)}},
		}

		Convey("Then the day has no result", func() {
			So(resolver.FindStarts(ps, 30), ShouldBeEmpty)
		})
	})

	Convey("Given free time split into pieces", t, func() {
		ps := []resolver.DayParticipant{{ID: "a", Free: []interval.Interval{interval.New(540, 570), interval.New(600, 660)}}}

		Convey("Then a meeting never straddles the gap", func() {
			So(resolver.FindStarts(ps, 45), ShouldResemble, rangeInts(600, 615))
		})
	})

	Convey("Given degenerate inputs", t, func() {
		So(resolver.FindStarts(nil, 30), ShouldBeEmpty)
		ps := []resolver.DayParticipant{{ID: "a", Free: []interval.Interval{interval.New(0, 1440)}}}
		So(resolver.FindStarts(ps, 0), ShouldBeEmpty)
		So(resolver.FindStarts(ps, 1441), ShouldBeEmpty)
		So(resolver.FindStarts(ps, 1440), ShouldResemble, []int{0})
	})
}

func TestRuns(t *testing.T) {
	Convey("Given scattered start minutes", t, func() {
		runs := resolver.Runs([]int{540, 541, 542, 600, 700, 701})

		Convey("Then consecutive minutes are compacted", func() {
			So(runs, ShouldResemble, []resolver.Run{
				{First: 540, Last: 542},
				{First: 600, Last: 600},
				{First: 700, Last: 701},
			})
		})
	})
}

func TestResolveDays(t *testing.T) {
	Convey("Given two days where only one is feasible", t, func() {
		days := map[string][]resolver.DayParticipant{
			"2025-03-05": {{ID: "a", Free: []interval.Interval{interval.New(540, 600)}}},
			"2025-03-06": {{ID: "a", Free: []interval.Interval{interval.New(540, 570)}}},
		}

		Convey("Then the infeasible day is omitted", func() {
			got := resolver.ResolveDays(days, 60)
			So(len(got), ShouldEqual, 1)
			So(got["2025-03-05"], ShouldResemble, []int{540})
		})
	})
}
