package dates

import (
	"testing"
	"time"
)

func TestParseRejectsMalformed(t *testing.T) {
	cases := [][2]string{
		{"2023-13-01", "2023-12-31"},
		{"01-01-2023", "2023-12-31"},
		{"2023-01-01", "not-a-date"},
		{"", "2023-12-31"},
	}
	for _, c := range cases {
		if _, err := Parse(c[0], c[1]); err == nil {
			t.Errorf("Parse(%q, %q) accepted malformed input", c[0], c[1])
		}
	}
}

func TestDaysInclusive(t *testing.T) {
	r, err := Parse("2023-01-01", "2023-01-31")
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Days(); got != 31 {
		t.Fatalf("Days() = %d, want 31", got)
	}
	if got := len(r.EachDay()); got != 31 {
		t.Fatalf("len(EachDay()) = %d, want 31", got)
	}
}

func TestEachDayOrderedAndUnique(t *testing.T) {
	r, _ := Parse("2023-02-26", "2023-03-02")
	days := r.EachDay()
	if len(days) != 5 {
		t.Fatalf("got %d days, want 5", len(days))
	}
	seen := map[string]bool{}
	for i := 1; i < len(days); i++ {
		if !days[i].After(days[i-1]) {
			t.Fatalf("days out of order at %d: %v then %v", i, days[i-1], days[i])
		}
	}
	for _, d := range days {
		k := d.Format(Layout)
		if seen[k] {
			t.Fatalf("duplicate day %s", k)
		}
		seen[k] = true
	}
	if days[0].Format(Layout) != "2023-02-26" || days[4].Format(Layout) != "2023-03-02" {
		t.Fatalf("bad endpoints: %s .. %s", days[0].Format(Layout), days[4].Format(Layout))
	}
}

func TestEachMonth(t *testing.T) {
	r, _ := Parse("2022-11-15", "2023-02-03")
	months := r.EachMonth()
	want := []string{"2022-11", "2022-12", "2023-01", "2023-02"}
	if len(months) != len(want) {
		t.Fatalf("got %d months, want %d", len(months), len(want))
	}
	for i, m := range months {
		if got := m.Format("2006-01"); got != want[i] {
			t.Errorf("month %d = %s, want %s", i, got, want[i])
		}
	}
	if r.Months() != 4 {
		t.Errorf("Months() = %d, want 4", r.Months())
	}
}

func TestValidateOrdering(t *testing.T) {
	r, _ := Parse("2023-06-01", "2023-05-01")
	if err := Validate(r, 5000); err == nil {
		t.Fatal("reversed range accepted")
	}
}

func TestValidateSpanCap(t *testing.T) {
	r, _ := Parse("2000-01-01", "2023-01-01")
	if err := Validate(r, 5000); err == nil {
		t.Fatal("overlong range accepted")
	}
	r, _ = Parse("2023-01-01", "2023-01-10")
	if err := Validate(r, 5000); err != nil {
		t.Fatalf("valid range rejected: %v", err)
	}
}

func TestCapEndToPresent(t *testing.T) {
	now := func() time.Time {
		return time.Date(2023, 6, 15, 13, 45, 0, 0, time.UTC)
	}

	r, _ := Parse("2023-06-01", "2023-12-31")
	capped := CapEndToPresent(r, now)
	if got := capped.EndString(); got != "2023-06-14" {
		t.Fatalf("capped end = %s, want 2023-06-14", got)
	}

	r, _ = Parse("2023-01-01", "2023-02-01")
	if got := CapEndToPresent(r, now).EndString(); got != "2023-02-01" {
		t.Fatalf("past end modified: %s", got)
	}
}
