package visit

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculateVisitDate_AnchorDayScenario(t *testing.T) {
	// Day-29 visit on a day-1 anchored study: baseline 2024-01-01 lands on
	// 2024-01-29 with a +-7 day window.
	res, err := CalculateVisitDate(date(2024, 1, 1), 29, UnitDays, 1, 7, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ScheduledDate.Equal(date(2024, 1, 29)) {
		t.Errorf("expected scheduled 2024-01-29, got %s", res.ScheduledDate.Format("2006-01-02"))
	}
	if !res.WindowStart.Equal(date(2024, 1, 22)) {
		t.Errorf("expected window start 2024-01-22, got %s", res.WindowStart.Format("2006-01-02"))
	}
	if !res.WindowEnd.Equal(date(2024, 2, 5)) {
		t.Errorf("expected window end 2024-02-05, got %s", res.WindowEnd.Format("2006-01-02"))
	}
	if res.DaysFromBaseline != 28 {
		t.Errorf("expected 28 days from baseline, got %d", res.DaysFromBaseline)
	}
}

func TestCalculateVisitDate_Day1MapsToBaseline(t *testing.T) {
	// On a day-1 anchored study, "day 1" is the baseline date itself.
	res, err := CalculateVisitDate(date(2024, 1, 1), 1, UnitDays, 1, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ScheduledDate.Equal(date(2024, 1, 1)) {
		t.Errorf("expected day 1 to map to baseline, got %s", res.ScheduledDate.Format("2006-01-02"))
	}
}

func TestCalculateVisitDate_Units(t *testing.T) {
	baseline := date(2024, 3, 1)
	tests := []struct {
		name     string
		value    int
		unit     string
		anchor   int
		expected time.Time
		days     int
	}{
		{"zero days anchor 0", 0, UnitDays, 0, date(2024, 3, 1), 0},
		{"14 days anchor 0", 14, UnitDays, 0, date(2024, 3, 15), 14},
		{"2 weeks anchor 0", 2, UnitWeeks, 0, date(2024, 3, 15), 14},
		{"1 month anchor 0", 1, UnitMonths, 0, date(2024, 3, 31), 30},
		{"3 months anchor 0", 3, UnitMonths, 0, date(2024, 5, 30), 90},
		{"negative days anchor 0", -7, UnitDays, 0, date(2024, 2, 23), -7},
		{"2 weeks anchor 1", 2, UnitWeeks, 1, date(2024, 3, 14), 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := CalculateVisitDate(baseline, tt.value, tt.unit, tt.anchor, 0, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.ScheduledDate.Equal(tt.expected) {
				t.Errorf("expected %s, got %s", tt.expected.Format("2006-01-02"), res.ScheduledDate.Format("2006-01-02"))
			}
			if res.DaysFromBaseline != tt.days {
				t.Errorf("expected %d days from baseline, got %d", tt.days, res.DaysFromBaseline)
			}
		})
	}
}

func TestCalculateVisitDate_Invalid(t *testing.T) {
	if _, err := CalculateVisitDate(date(2024, 1, 1), 1, "fortnights", 0, 0, 0); err == nil {
		t.Error("expected error for unknown timing unit")
	}
	if _, err := CalculateVisitDate(date(2024, 1, 1), 1, UnitDays, 2, 0, 0); err == nil {
		t.Error("expected error for anchor day outside {0,1}")
	}
	if _, err := CalculateVisitDate(date(2024, 1, 1), 1, UnitDays, 0, -1, 0); err == nil {
		t.Error("expected error for negative window")
	}
}

func TestCalculateVisitDate_TimezoneNormalization(t *testing.T) {
	// A late-evening baseline in a western timezone must not shift the
	// computed calendar date.
	loc := time.FixedZone("UTC-8", -8*3600)
	baseline := time.Date(2024, 1, 1, 23, 30, 0, 0, loc) // 2024-01-02 07:30 UTC
	res, err := CalculateVisitDate(baseline, 0, UnitDays, 0, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ScheduledDate.Equal(date(2024, 1, 2)) {
		t.Errorf("expected 2024-01-02, got %s", res.ScheduledDate.Format("2006-01-02"))
	}
}

func TestIsWithinVisitWindow_Reflexive(t *testing.T) {
	scheduled := date(2024, 6, 15)
	for _, before := range []int{0, 3, 14} {
		for _, after := range []int{0, 3, 14} {
			if !IsWithinVisitWindow(scheduled, scheduled, before, after) {
				t.Errorf("window [-%d,+%d] should contain the scheduled date itself", before, after)
			}
		}
	}
}

func TestIsWithinVisitWindow_Bounds(t *testing.T) {
	scheduled := date(2024, 6, 15)
	tests := []struct {
		name   string
		actual time.Time
		want   bool
	}{
		{"at window start", date(2024, 6, 12), true},
		{"at window end", date(2024, 6, 18), true},
		{"one day before start", date(2024, 6, 11), false},
		{"one day after end", date(2024, 6, 19), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWithinVisitWindow(tt.actual, scheduled, 3, 3); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDaysFromScheduled(t *testing.T) {
	scheduled := date(2024, 6, 15)
	if d := DaysFromScheduled(scheduled, scheduled); d != 0 {
		t.Errorf("expected 0, got %d", d)
	}
	if d := DaysFromScheduled(date(2024, 6, 12), scheduled); d != -3 {
		t.Errorf("expected -3 for early visit, got %d", d)
	}
	if d := DaysFromScheduled(date(2024, 6, 20), scheduled); d != 5 {
		t.Errorf("expected 5 for late visit, got %d", d)
	}
}

func TestDeriveVisitStatus(t *testing.T) {
	scheduled := date(2024, 6, 15) // window [2024-06-12, 2024-06-18] at +-3
	early := date(2024, 6, 10)
	inWindow := date(2024, 6, 16)
	late := date(2024, 6, 25)

	tests := []struct {
		name   string
		today  time.Time
		actual *time.Time
		want   string
	}{
		{"actual inside window", date(2024, 7, 1), &inWindow, StatusCompleted},
		{"actual at scheduled", date(2024, 7, 1), &scheduled, StatusCompleted},
		{"actual before window", date(2024, 7, 1), &early, StatusEarly},
		{"actual after window", date(2024, 7, 1), &late, StatusLate},
		{"today before window", date(2024, 6, 1), nil, StatusScheduled},
		{"today at window start", date(2024, 6, 12), nil, StatusDue},
		{"today at scheduled", date(2024, 6, 15), nil, StatusDue},
		{"today at window end", date(2024, 6, 18), nil, StatusDue},
		{"today after window", date(2024, 6, 19), nil, StatusOverdue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveVisitStatus(tt.today, scheduled, tt.actual, 3, 3); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
