package model

// Routine represents a weekly-recurring activity template attached to a
// group. Routines have no concrete dates of their own; they are projected
// onto calendar dates by internal/schedule.
type Routine struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	// Day is a weekday name. The backend is inconsistent about whether it
	// stores the canonical English key ("Monday") or the Spanish label
	// ("Lunes"); schedule.CanonicalDay accepts both forms.
	Day string `yaml:"day" json:"day"`

	// StartHour / EndHour form a half-open hour interval in [0,23],
	// StartHour < EndHour.
	StartHour int `yaml:"start_hour" json:"start_hour"`
	EndHour   int `yaml:"end_hour" json:"end_hour"`

	CreatorID string `yaml:"creator_id,omitempty" json:"creator_id,omitempty"`
}

// Event represents a one-time dated activity belonging to a group.
type Event struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	// Date is an ISO calendar date (YYYY-MM-DD) with no time-of-day
	// component; the hour fields below carry the time window.
	Date string `yaml:"date" json:"date"`

	StartHour int `yaml:"start_hour" json:"start_hour"`
	EndHour   int `yaml:"end_hour" json:"end_hour"`

	CreatorID string `yaml:"creator_id,omitempty" json:"creator_id,omitempty"`
}

// Group is the backend group entity as far as scheduling is concerned:
// an identifier plus the routines defined on it. One-time events are
// fetched separately per group.
type Group struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Routines []Routine `json:"routines"`
}

// ScheduleEntry is the normalized union consumed by rendering: either a
// one-time Event or a single dated occurrence of a Routine, discriminated
// by IsRoutine.
type ScheduleEntry struct {
	// EventID is set only for one-time events; it is what a detail view
	// navigates with. Routine occurrences are ephemeral and carry none.
	EventID string `json:"event_id,omitempty"`

	Name        string `json:"name"`
	Description string `json:"description"`

	Date      string `json:"date"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`

	CreatorID string `json:"creator_id,omitempty"`
	IsRoutine bool   `json:"is_routine"`
}
