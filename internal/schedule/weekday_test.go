package schedule

import "testing"

func TestWeekdayRoundTrip(t *testing.T) {
	for _, key := range weekdayKeys {
		label, ok := LocalizedDay(key)
		if !ok {
			t.Fatalf("no label for %q", key)
		}
		back, ok := CanonicalDay(label)
		if !ok {
			t.Fatalf("label %q did not resolve", label)
		}
		if back != key {
			t.Fatalf("round trip %q → %q → %q", key, label, back)
		}
	}
}

func TestCanonicalDayAcceptsBothForms(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Monday", "Monday"},
		{"Lunes", "Monday"},
		{"Miércoles", "Wednesday"},
		{"Sábado", "Saturday"},
		{"Domingo", "Sunday"},
	}
	for _, c := range cases {
		got, ok := CanonicalDay(c.in)
		if !ok {
			t.Fatalf("CanonicalDay(%q) did not resolve", c.in)
		}
		if got != c.want {
			t.Fatalf("CanonicalDay(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCanonicalDayRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "Funday", "monday", "LUNES"} {
		if _, ok := CanonicalDay(in); ok {
			t.Fatalf("CanonicalDay(%q) resolved, want miss", in)
		}
	}
}

func TestWeekdayIndexMatchesTimePackage(t *testing.T) {
	// 0 = Sunday, aligned with time.Weekday.
	if i, _ := weekdayIndex("Sunday"); i != 0 {
		t.Fatalf("Sunday index = %d, want 0", i)
	}
	if i, _ := weekdayIndex("Saturday"); i != 6 {
		t.Fatalf("Saturday index = %d, want 6", i)
	}
}
