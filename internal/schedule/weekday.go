package schedule

// Weekday handling. The canonical form everywhere in this module is the
// English key ("Monday"); the Spanish label ("Lunes") is accepted on input
// because the backend stores whichever form the screen that created the
// routine happened to use, and is produced again only at presentation
// boundaries.

// weekdayKeys is indexed by weekday number, 0 = Sunday, matching
// time.Weekday.
var weekdayKeys = [7]string{
	"Sunday",
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
}

// weekdayLabels maps each canonical key to its Spanish label. The table is
// fixed, total and bijective; it is bundled data, not configuration.
var weekdayLabels = map[string]string{
	"Sunday":    "Domingo",
	"Monday":    "Lunes",
	"Tuesday":   "Martes",
	"Wednesday": "Miércoles",
	"Thursday":  "Jueves",
	"Friday":    "Viernes",
	"Saturday":  "Sábado",
}

// labelKeys is the reverse of weekdayLabels, built once at init.
var labelKeys = func() map[string]string {
	m := make(map[string]string, len(weekdayLabels))
	for key, label := range weekdayLabels {
		m[label] = key
	}
	return m
}()

// CanonicalDay resolves a weekday name, in either canonical or Spanish
// form, to the canonical English key. The second return value is false when
// the name matches neither table.
func CanonicalDay(day string) (string, bool) {
	if _, ok := weekdayLabels[day]; ok {
		return day, true
	}
	if key, ok := labelKeys[day]; ok {
		return key, true
	}
	return "", false
}

// LocalizedDay returns the Spanish label for a canonical English key.
func LocalizedDay(key string) (string, bool) {
	label, ok := weekdayLabels[key]
	return label, ok
}

// weekdayIndex resolves a day name (either form) to its weekday number,
// 0 = Sunday.
func weekdayIndex(day string) (int, bool) {
	key, ok := CanonicalDay(day)
	if !ok {
		return 0, false
	}
	for i, k := range weekdayKeys {
		if k == key {
			return i, true
		}
	}
	return 0, false
}
