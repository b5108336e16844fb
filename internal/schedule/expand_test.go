package schedule

import (
	"testing"
	"time"

	"groupcal/internal/model"
)

// monday is a fixed anchor for deterministic projection tests.
// 2024-06-10 was a Monday.
var monday = time.Date(2024, time.June, 10, 12, 0, 0, 0, time.Local)

func TestExpandRoutines_SameWeekdayStartsToday(t *testing.T) {
	routines := []model.Routine{
		{Name: "Leg day", Day: "Lunes", StartHour: 18, EndHour: 19},
	}
	got := ExpandRoutines(routines, ExpandConfig{Today: monday, WeeksToShow: 4})

	want := []string{"2024-06-10", "2024-06-17", "2024-06-24", "2024-07-01"}
	if len(got) != len(want) {
		t.Fatalf("got %d occurrences, want %d", len(got), len(want))
	}
	for i, e := range got {
		if e.Date != want[i] {
			t.Fatalf("occurrence %d dated %s, want %s", i, e.Date, want[i])
		}
		if !e.IsRoutine {
			t.Fatalf("occurrence %d not tagged as routine", i)
		}
		if e.StartHour != 18 || e.EndHour != 19 {
			t.Fatalf("occurrence %d hours %d-%d, want 18-19", i, e.StartHour, e.EndHour)
		}
	}
}

func TestExpandRoutines_ForwardOnly(t *testing.T) {
	today := monday.Format(DateLayout)
	for _, key := range weekdayKeys {
		got := ExpandRoutines([]model.Routine{{Name: "r", Day: key}}, ExpandConfig{Today: monday})
		for _, e := range got {
			if e.Date < today {
				t.Fatalf("day %s projected into the past: %s < %s", key, e.Date, today)
			}
		}
	}
}

func TestExpandRoutines_PastWeekdayRollsToNextWeek(t *testing.T) {
	// Sunday is behind Monday in the week, so the first occurrence lands
	// six days out.
	got := ExpandRoutines([]model.Routine{{Name: "r", Day: "Domingo"}}, ExpandConfig{Today: monday, WeeksToShow: 2})
	if got[0].Date != "2024-06-16" {
		t.Fatalf("first occurrence %s, want 2024-06-16", got[0].Date)
	}
	if got[1].Date != "2024-06-23" {
		t.Fatalf("second occurrence %s, want 2024-06-23", got[1].Date)
	}
}

func TestExpandRoutines_UnknownDayAnchorsAtToday(t *testing.T) {
	got := ExpandRoutines([]model.Routine{{Name: "r", Day: "Funday"}}, ExpandConfig{Today: monday, WeeksToShow: 4})
	if len(got) != 4 {
		t.Fatalf("got %d occurrences, want 4", len(got))
	}
	for i, e := range got {
		if e.Date != "2024-06-10" {
			t.Fatalf("occurrence %d dated %s, want anchor date 2024-06-10", i, e.Date)
		}
	}
}

func TestExpandRoutines_CountIsAlwaysRTimesW(t *testing.T) {
	routines := []model.Routine{
		{Name: "a", Day: "Monday"},
		{Name: "b", Day: "Jueves"},
		{Name: "c", Day: "not-a-day"},
	}
	got := ExpandRoutines(routines, ExpandConfig{Today: monday, WeeksToShow: 3})
	if len(got) != 9 {
		t.Fatalf("got %d occurrences, want 9", len(got))
	}
}

func TestExpandRoutines_MonthRollover(t *testing.T) {
	// 2024-12-30 was a Monday; a Wednesday routine crosses into January.
	today := time.Date(2024, time.December, 30, 8, 0, 0, 0, time.Local)
	got := ExpandRoutines([]model.Routine{{Name: "r", Day: "Wednesday"}}, ExpandConfig{Today: today, WeeksToShow: 2})
	if got[0].Date != "2025-01-01" {
		t.Fatalf("first occurrence %s, want 2025-01-01", got[0].Date)
	}
	if got[1].Date != "2025-01-08" {
		t.Fatalf("second occurrence %s, want 2025-01-08", got[1].Date)
	}
}

func TestExpandRoutines_DefaultHorizon(t *testing.T) {
	got := ExpandRoutines([]model.Routine{{Name: "r", Day: "Monday"}}, ExpandConfig{Today: monday})
	if len(got) != DefaultWeeksToShow {
		t.Fatalf("got %d occurrences, want %d", len(got), DefaultWeeksToShow)
	}
}
