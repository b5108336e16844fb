package schedule

import (
	"sort"

	"groupcal/internal/model"
)

// Schedule is the date-grouped, chronologically sorted combination of
// one-time events and routine occurrences for a single group.
type Schedule struct {
	// Dates holds the distinct date keys present in ByDate, in ascending
	// ISO (= chronological) order. Rendering iterates this slice.
	Dates []string `json:"dates"`

	// ByDate maps each date key to its entries. Every key present has at
	// least one entry; buckets are created lazily, so no empty bucket can
	// exist. Within a bucket, insertion order is kept: one-time events
	// first, then routine occurrences, each in input order.
	ByDate map[string][]model.ScheduleEntry `json:"by_date"`
}

// Empty reports whether the schedule has nothing to show, so the renderer
// can display an explicit "no events or routines" state instead of a blank
// list.
func (s Schedule) Empty() bool {
	return len(s.Dates) == 0
}

// Total returns the number of entries across all buckets.
func (s Schedule) Total() int {
	n := 0
	for _, entries := range s.ByDate {
		n += len(entries)
	}
	return n
}

// SelectEvents implements the event-source preference rule: the freshly
// fetched list wins, but when it came back empty the caller-supplied list is
// used instead, so a slow or failed fetch does not blank the screen.
func SelectEvents(fetched, fallback []model.Event) []model.Event {
	if len(fetched) > 0 {
		return fetched
	}
	return fallback
}

// Aggregate merges one-time events with expanded routine occurrences into a
// Schedule. It is a pure transform: no internal state, and the same inputs
// (including cfg.Today) always produce the same output.
//
// Entries are never dropped: the result holds exactly
// len(events) + len(routines)×WeeksToShow entries.
func Aggregate(routines []model.Routine, events []model.Event, cfg ExpandConfig) Schedule {
	cfg.normalize()

	entries := make([]model.ScheduleEntry, 0, len(events)+len(routines)*cfg.WeeksToShow)

	// Events pass through untouched; their date is already concrete.
	for _, ev := range events {
		entries = append(entries, model.ScheduleEntry{
			EventID:     ev.ID,
			Name:        ev.Name,
			Description: ev.Description,
			Date:        ev.Date,
			StartHour:   ev.StartHour,
			EndHour:     ev.EndHour,
			CreatorID:   ev.CreatorID,
			IsRoutine:   false,
		})
	}

	// Routine occurrences come second. There is no secondary sort key, so
	// this events-before-routines order is what makes within-day ordering
	// deterministic.
	entries = append(entries, ExpandRoutines(routines, cfg)...)

	byDate := make(map[string][]model.ScheduleEntry)
	dates := make([]string, 0)
	for _, e := range entries {
		if _, seen := byDate[e.Date]; !seen {
			dates = append(dates, e.Date)
		}
		byDate[e.Date] = append(byDate[e.Date], e)
	}
	sort.Strings(dates)

	return Schedule{Dates: dates, ByDate: byDate}
}
