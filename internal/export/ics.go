// Package export renders a group's schedule as an iCalendar feed so members
// can subscribe from their phone's calendar app. One-time events become
// plain VEVENTs; routines become VEVENTs carrying a weekly RRULE, letting
// the subscriber's client do the recurrence expansion beyond our own
// projection horizon.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "groupcal/internal/log"
	"groupcal/internal/model"
	"groupcal/internal/schedule"
)

// bydayByIndex maps weekday numbers (0 = Sunday, as in time.Weekday) to
// rrule BYDAY values.
var bydayByIndex = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// WriteSchedule serializes the group's events and routines as a VCALENDAR.
//
// today anchors routine DTSTARTs the same way the schedule projection does:
// the first occurrence on or after today. Events with an unparseable date
// and routines with an unresolvable day are skipped with a warning rather
// than failing the whole export.
func WriteSchedule(w io.Writer, group model.Group, events []model.Event, today time.Time) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//groupcal//schedule//EN")
	if group.Name != "" {
		cal.SetXWRCalName(group.Name)
	}

	for _, ev := range events {
		day, err := time.ParseInLocation(schedule.DateLayout, ev.Date, today.Location())
		if err != nil {
			appLog.Warn("export: skipping event with bad date", "event", ev.ID, "date", ev.Date)
			continue
		}

		ve := cal.AddEvent(ev.ID + "@groupcal")
		ve.SetDtStampTime(today)
		ve.SetSummary(ev.Name)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		ve.SetStartAt(atHour(day, ev.StartHour))
		ve.SetEndAt(atHour(day, ev.EndHour))
	}

	for _, r := range group.Routines {
		if _, ok := schedule.CanonicalDay(r.Day); !ok {
			appLog.Warn("export: skipping routine with unresolvable day", "routine", r.Name, "day", r.Day)
			continue
		}

		occ := schedule.ExpandRoutines([]model.Routine{r},
			schedule.ExpandConfig{Today: today, WeeksToShow: 1})
		first, err := time.ParseInLocation(schedule.DateLayout, occ[0].Date, today.Location())
		if err != nil {
			// Expansion always emits ISO dates; this would be a bug.
			appLog.Error("export: bad projected date", err, "routine", r.Name)
			continue
		}

		rule, err := weeklyRule(first)
		if err != nil {
			appLog.Error("export: rrule build failed", err, "routine", r.Name)
			continue
		}

		ve := cal.AddEvent(routineUID(group.ID, r))
		ve.SetDtStampTime(today)
		ve.SetSummary(r.Name)
		if r.Description != "" {
			ve.SetDescription(r.Description)
		}
		ve.SetStartAt(atHour(first, r.StartHour))
		ve.SetEndAt(atHour(first, r.EndHour))
		ve.AddRrule(rule)
	}

	return cal.SerializeTo(w)
}

// weeklyRule builds the FREQ=WEEKLY;BYDAY=... rule string for a routine
// anchored at the given first occurrence.
func weeklyRule(first time.Time) (string, error) {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:  rrule.WEEKLY,
		Byweekday: []rrule.Weekday{bydayByIndex[int(first.Weekday())]},
	})
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// routineUID derives a stable per-routine UID. Routines have no backend id,
// so hash the identifying fields instead.
func routineUID(groupID string, r model.Routine) string {
	sum := sha256.Sum256([]byte(groupID + "|" + r.Name + "|" + r.Day))
	return hex.EncodeToString(sum[:8]) + "@groupcal"
}

func atHour(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
}
