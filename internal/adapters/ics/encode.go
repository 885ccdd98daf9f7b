package ics

import (
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/okian/huddle/internal/domain/types"
)

const productID = "-//huddle//meeting slots//EN"

// EncodeSlots renders candidate meeting slots as a calendar of TENTATIVE
// events, one per slot, ordered by date. Slots with unreadable instants are
// left out.
func EncodeSlots(slots map[string][]types.MeetingSlot, name string, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	days := make([]string, 0, len(slots))
	for d := range slots {
		days = append(days, d)
	}
	sort.Strings(days)

	for _, d := range days {
		for _, slot := range slots[d] {
			start, err := time.Parse(time.RFC3339, slot.StartISO)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, slot.EndISO)
			if err != nil {
				continue
			}
			ev := cal.AddEvent(slotUID(start, end))
			ev.SetDtStampTime(now)
			ev.SetStartAt(start)
			ev.SetEndAt(end)
			ev.SetSummary(summary(name))
			ev.SetStatus(ical.ObjectStatusTentative)
			ev.SetTimeTransparency(ical.TransparencyTransparent)
		}
	}
	return cal.Serialize()
}

func slotUID(start, end time.Time) string {
	return start.UTC().Format("20060102T150405Z") + "-" + end.UTC().Format("150405Z") + "@huddle"
}

func summary(name string) string {
	if name == "" {
		return "Proposed meeting"
	}
	return name
}
