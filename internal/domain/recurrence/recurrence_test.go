package recurrence_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/huddle/internal/domain/model"
	"github.com/okian/huddle/internal/domain/recurrence"
	. "github.com/smartystreets/goconvey/convey"
)

func TestExpand(t *testing.T) {
	Convey("Given a daily rule of five", t, func() {
		got, err := recurrence.Expand(model.RecurrenceRule{Frequency: model.Daily, RepeatCount: 5},
			time.Date(2025, 3, 30, 14, 0, 0, 0, time.UTC))

		Convey("Then five consecutive dates are produced across the month end", func() {
			So(err, ShouldBeNil)
			So(got.Dates, ShouldResemble, []string{"2025-03-30", "2025-03-31", "2025-04-01", "2025-04-02", "2025-04-03"})
			So(got.Failed, ShouldBeEmpty)
		})
	})

	Convey("Given a daily rule asking for millions of dates", t, func() {
		rule := model.RecurrenceRule{Frequency: model.Daily, RepeatCount: 3_000_000}

		Convey("Then it is rejected instead of silently truncated", func() {
			got, err := recurrence.Expand(rule, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			So(got.Dates, ShouldBeEmpty)
		})

		Convey("And a lower cap applies when configured", func() {
			rule.RepeatCount = 8
			_, err := recurrence.Expand(rule, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), recurrence.WithMaxOccurrences(7))
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

			got, err := recurrence.Expand(rule, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), recurrence.WithMaxOccurrences(8))
			So(err, ShouldBeNil)
			So(got.Dates, ShouldHaveLength, 8)
		})
	})

	Convey("Given a weekly rule with the default count", t, func() {
		got, err := recurrence.Expand(model.RecurrenceRule{Frequency: "Weekly"}, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC))

		Convey("Then twelve dates a week apart are produced", func() {
			So(err, ShouldBeNil)
			So(len(got.Dates), ShouldEqual, 12)
			So(got.Dates[1], ShouldEqual, "2025-01-13")
			So(got.Dates[11], ShouldEqual, "2025-03-24")
		})
	})

	Convey("Given a monthly rule anchored on January 31", t, func() {
		rule := model.RecurrenceRule{Frequency: model.Monthly, RepeatCount: 2}

		Convey("In a common year the second date is February 28", func() {
			got, err := recurrence.Expand(rule, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
			So(err, ShouldBeNil)
			So(got.Dates, ShouldResemble, []string{"2025-01-31", "2025-02-28"})
		})

		Convey("In a leap year the second date is February 29", func() {
			got, err := recurrence.Expand(rule, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
			So(err, ShouldBeNil)
			So(got.Dates, ShouldResemble, []string{"2024-01-31", "2024-02-29"})
		})

		Convey("And later months return to the 31st when they have one", func() {
			got, err := recurrence.Expand(model.RecurrenceRule{Frequency: model.Monthly, RepeatCount: 4},
				time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
			So(err, ShouldBeNil)
			So(got.Dates, ShouldResemble, []string{"2025-01-31", "2025-02-28", "2025-03-31", "2025-04-30"})
		})
	})

	Convey("Given a monthly rule anchored mid-month", t, func() {
		got, err := recurrence.Expand(model.RecurrenceRule{Frequency: model.Monthly, RepeatCount: 3},
			time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC))

		Convey("Then the day of month is kept across the year end", func() {
			So(err, ShouldBeNil)
			So(got.Dates, ShouldResemble, []string{"2025-11-15", "2025-12-15", "2026-01-15"})
		})
	})

	Convey("Given a custom rule with one bad date", t, func() {
		got, err := recurrence.Expand(model.RecurrenceRule{
			Frequency:   model.Custom,
			CustomDates: []string{"2025-08-01", "2025-08-32", "2025-08-15", "2025-08-01"},
		}, time.Now())

		Convey("Then the valid dates survive and the rest are reported", func() {
			So(err, ShouldBeNil)
			So(got.Dates, ShouldResemble, []string{"2025-08-01", "2025-08-15"})
			So(len(got.Failed), ShouldEqual, 2)
			So(got.Failed[0].Input, ShouldEqual, "2025-08-32")
			So(got.Failed[1].Reason, ShouldEqual, "duplicate date")
		})
	})

	Convey("Given an invalid rule", t, func() {
		_, err := recurrence.Expand(model.RecurrenceRule{Frequency: "hourly"}, time.Now())

		Convey("Then a validation error is returned", func() {
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})
}
