package schedule

import (
	"time"

	appLog "groupcal/internal/log"
	"groupcal/internal/model"
)

const (
	// DefaultWeeksToShow is the projection horizon: how many weekly
	// occurrences are generated per routine.
	DefaultWeeksToShow = 4

	// DateLayout is the ISO calendar-date format used for all schedule
	// keys. ISO dates sort lexicographically in chronological order,
	// which the aggregator relies on.
	DateLayout = "2006-01-02"
)

// ExpandConfig controls routine projection.
type ExpandConfig struct {
	// Today anchors the projection. Occurrences always land on Today or
	// later; a routine whose weekday equals Today's starts today, not
	// next week. If zero, time.Now() is used.
	Today time.Time

	// WeeksToShow is the projection horizon in weeks. If zero or
	// negative, DefaultWeeksToShow is used.
	WeeksToShow int
}

func (c *ExpandConfig) normalize() {
	if c.Today.IsZero() {
		c.Today = time.Now()
	}
	if c.WeeksToShow <= 0 {
		c.WeeksToShow = DefaultWeeksToShow
	}
}

// ExpandRoutines projects every routine onto concrete calendar dates within
// the horizon: one occurrence per (routine, week) pair, so the result always
// holds exactly len(routines) × WeeksToShow entries.
//
// A routine whose Day resolves to neither the canonical English key nor the
// Spanish label does not abort the expansion; its occurrences are all
// anchored at Today and a warning is logged. One malformed routine must not
// blank the whole schedule.
func ExpandRoutines(routines []model.Routine, cfg ExpandConfig) []model.ScheduleEntry {
	cfg.normalize()

	out := make([]model.ScheduleEntry, 0, len(routines)*cfg.WeeksToShow)
	for _, r := range routines {
		out = append(out, expandRoutine(r, cfg)...)
	}
	return out
}

func expandRoutine(r model.Routine, cfg ExpandConfig) []model.ScheduleEntry {
	target, ok := weekdayIndex(r.Day)
	if !ok {
		appLog.Warn("schedule: unrecognized routine day; anchoring at today",
			"routine", r.Name,
			"day", r.Day,
		)
	}

	// Days until the next matching weekday, normalized into [0,6] so the
	// projection never points into the past within the current week.
	diff := 0
	if ok {
		diff = target - int(cfg.Today.Weekday())
		if diff < 0 {
			diff += 7
		}
	}

	out := make([]model.ScheduleEntry, 0, cfg.WeeksToShow)
	for i := 0; i < cfg.WeeksToShow; i++ {
		date := cfg.Today
		if ok {
			// AddDate handles month/year rollover at day granularity;
			// the local calendar day is kept, not a UTC-shifted one.
			date = cfg.Today.AddDate(0, 0, diff+7*i)
		}
		out = append(out, model.ScheduleEntry{
			Name:        r.Name,
			Description: r.Description,
			Date:        date.Format(DateLayout),
			StartHour:   r.StartHour,
			EndHour:     r.EndHour,
			CreatorID:   r.CreatorID,
			IsRoutine:   true,
		})
	}
	return out
}
