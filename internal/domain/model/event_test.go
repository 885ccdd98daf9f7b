package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/huddle/internal/domain/interval"
	model "github.com/okian/huddle/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestScheduleEventSpan(t *testing.T) {
	convey.Convey("Given a schedule event", t, func() {
		ev := model.ScheduleEvent{ID: "e1", Day: "2025-03-03", Start: "09:00", End: "10:30"}

		convey.Convey("When the stored times are well formed", func() {
			span, err := ev.Span()

			convey.Convey("Then the span is in minutes", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(span, convey.ShouldResemble, interval.New(540, 630))
			})
		})

		convey.Convey("When the stored end time is malformed", func() {
			ev.End = "10h30"
			_, err := ev.Span()

			convey.Convey("Then a validation error names the field", func() {
				convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
				var verr *model.ValidationError
				convey.So(errors.As(err, &verr), convey.ShouldBeTrue)
				convey.So(verr.Field, convey.ShouldEqual, "end")
				convey.So(errors.Is(err, interval.ErrMalformedClock), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When converting to a busy source", func() {
			convey.So(ev.Entry(), convey.ShouldResemble, model.PersonalEntry{Day: "2025-03-03", Start: "09:00", End: "10:30"})
		})
	})
}

func TestErrors(t *testing.T) {
	convey.Convey("Given a participant lookup failure", t, func() {
		err := error(&model.ParticipantNotFoundError{Email: "ghost@example.com"})

		convey.Convey("Then it names the participant and matches its kind", func() {
			convey.So(err.Error(), convey.ShouldEqual, "participant not found: ghost@example.com")
			convey.So(errors.Is(err, model.ErrParticipantNotFound), convey.ShouldBeTrue)
			convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given a validation error", t, func() {
		err := model.NewValidationError("day", "2025-13-01", "expected YYYY-MM-DD")

		convey.Convey("Then the message carries field and value", func() {
			convey.So(err.Error(), convey.ShouldEqual, `invalid day "2025-13-01": expected YYYY-MM-DD`)
		})
	})
}

func TestDates(t *testing.T) {
	convey.Convey("Given ISO date strings", t, func() {
		convey.Convey("When the date exists", func() {
			d, err := model.ParseDate("day", "2024-02-29")
			convey.So(err, convey.ShouldBeNil)
			convey.So(model.FormatDate(d), convey.ShouldEqual, "2024-02-29")
		})

		convey.Convey("When the date does not exist", func() {
			_, err := model.ParseDate("day", "2025-02-29")
			convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a date range", t, func() {
		from := time.Date(2025, 3, 30, 15, 0, 0, 0, time.UTC)
		to := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)

		convey.Convey("Then every day is listed inclusively", func() {
			days := model.Days(from, to)
			convey.So(len(days), convey.ShouldEqual, 4)
			convey.So(model.FormatDate(days[0]), convey.ShouldEqual, "2025-03-30")
			convey.So(model.FormatDate(days[3]), convey.ShouldEqual, "2025-04-02")
		})

		convey.Convey("And an inverted range is empty", func() {
			convey.So(model.Days(to, from), convey.ShouldBeEmpty)
		})
	})
}

func TestRecurrenceRule(t *testing.T) {
	convey.Convey("Given recurrence rules", t, func() {
		convey.Convey("Then default counts follow the frequency", func() {
			convey.So(model.RecurrenceRule{Frequency: model.Daily}.Count(), convey.ShouldEqual, 30)
			convey.So(model.RecurrenceRule{Frequency: model.Weekly}.Count(), convey.ShouldEqual, 12)
			convey.So(model.RecurrenceRule{Frequency: model.Monthly}.Count(), convey.ShouldEqual, 12)
			convey.So(model.RecurrenceRule{Frequency: model.Daily, RepeatCount: 5}.Count(), convey.ShouldEqual, 5)
		})

		convey.Convey("And a custom rule needs dates", func() {
			err := model.RecurrenceRule{Frequency: model.Custom}.Validate()
			convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
		})

		convey.Convey("And occurrence counts above the cap are rejected by field", func() {
			var ve *model.ValidationError

			err := model.RecurrenceRule{Frequency: model.Daily, RepeatCount: model.DefaultMaxOccurrences + 1}.Validate()
			convey.So(errors.As(err, &ve), convey.ShouldBeTrue)
			convey.So(ve.Field, convey.ShouldEqual, "repeat_count")

			err = model.RecurrenceRule{Frequency: model.Custom, CustomDates: make([]string, 11)}.ValidateWithin(10)
			convey.So(errors.As(err, &ve), convey.ShouldBeTrue)
			convey.So(ve.Field, convey.ShouldEqual, "custom_dates")

			convey.So(model.RecurrenceRule{Frequency: model.Weekly, RepeatCount: 10}.ValidateWithin(10), convey.ShouldBeNil)
		})

		convey.Convey("And unknown frequencies are rejected", func() {
			_, err := model.ParseFrequency("yearly")
			convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)

			f, err := model.ParseFrequency(" Weekly ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(f, convey.ShouldEqual, model.Weekly)
		})
	})
}

func TestImportEntryKey(t *testing.T) {
	convey.Convey("Given two instances of one imported event", t, func() {
		a := model.ImportEntry{UserID: "u1", UID: "abc", Day: "2025-01-06", Start: "10:00"}
		b := a
		b.Day = "2025-01-13"

		convey.Convey("Then their keys differ per day", func() {
			convey.So(a.Key(), convey.ShouldNotEqual, b.Key())
			convey.So(a.Key(), convey.ShouldEqual, "u1|abc|2025-01-06|10:00")
		})
	})
}
