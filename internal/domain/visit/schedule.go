package visit

import (
	"fmt"
	"time"
)

// Visit status values derived by DeriveVisitStatus. The status is a pure
// projection of (today, scheduled date, actual date, window); it is
// recomputed on every read and never stored as authoritative state.
const (
	StatusScheduled = "scheduled"
	StatusDue       = "due"
	StatusOverdue   = "overdue"
	StatusCompleted = "completed"
	StatusEarly     = "early"
	StatusLate      = "late"
)

// Timing units accepted on visit schedule templates. Months use a fixed
// 30-day approximation rather than calendar months.
const (
	UnitDays   = "days"
	UnitWeeks  = "weeks"
	UnitMonths = "months"
)

// VisitDateResult is the output of CalculateVisitDate.
type VisitDateResult struct {
	ScheduledDate    time.Time `json:"scheduled_date"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	DaysFromBaseline int       `json:"days_from_baseline"`
}

// DateOnly truncates a timestamp to its UTC calendar date (midnight UTC).
// All visit arithmetic runs on these values so that local-timezone midnight
// boundaries cannot introduce off-by-one days.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the signed whole-day difference b - a.
func daysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// CalculateVisitDate resolves a template timing against a baseline date.
//
// The offset is timingValue converted to days (weeks x7, months x30). When
// the study counts the baseline as day 1 (anchorDay == 1), protocol timing
// values are one day ahead of their zero-indexed equivalent, so one day is
// subtracted: day 1 maps to the baseline itself. The window is
// [scheduled - windowBefore, scheduled + windowAfter], inclusive.
func CalculateVisitDate(baseline time.Time, timingValue int, timingUnit string, anchorDay, windowBefore, windowAfter int) (VisitDateResult, error) {
	var days int
	switch timingUnit {
	case UnitDays:
		days = timingValue
	case UnitWeeks:
		days = timingValue * 7
	case UnitMonths:
		days = timingValue * 30
	default:
		return VisitDateResult{}, fmt.Errorf("invalid timing unit: %s", timingUnit)
	}

	if anchorDay != 0 && anchorDay != 1 {
		return VisitDateResult{}, fmt.Errorf("anchor_day must be 0 or 1, got %d", anchorDay)
	}
	if windowBefore < 0 || windowAfter < 0 {
		return VisitDateResult{}, fmt.Errorf("visit window days must be non-negative")
	}

	if anchorDay == 1 {
		days--
	}

	scheduled := DateOnly(baseline).AddDate(0, 0, days)
	return VisitDateResult{
		ScheduledDate:    scheduled,
		WindowStart:      scheduled.AddDate(0, 0, -windowBefore),
		WindowEnd:        scheduled.AddDate(0, 0, windowAfter),
		DaysFromBaseline: days,
	}, nil
}

// IsWithinVisitWindow reports whether an actual visit date falls inside the
// inclusive window around the scheduled date.
func IsWithinVisitWindow(actual, scheduled time.Time, windowBefore, windowAfter int) bool {
	a := DateOnly(actual)
	s := DateOnly(scheduled)
	return !a.Before(s.AddDate(0, 0, -windowBefore)) && !a.After(s.AddDate(0, 0, windowAfter))
}

// DaysFromScheduled returns the signed day difference between the actual and
// scheduled dates. Negative means the visit happened early.
func DaysFromScheduled(actual, scheduled time.Time) int {
	return daysBetween(scheduled, actual)
}

// DeriveVisitStatus computes the visit status projection.
//
// With an actual date: completed inside the window, early before it, late
// after it. Without one: scheduled before the window opens, due inside it,
// overdue once it has closed.
func DeriveVisitStatus(today, scheduled time.Time, actual *time.Time, windowBefore, windowAfter int) string {
	s := DateOnly(scheduled)
	windowStart := s.AddDate(0, 0, -windowBefore)
	windowEnd := s.AddDate(0, 0, windowAfter)

	if actual != nil {
		a := DateOnly(*actual)
		switch {
		case a.Before(windowStart):
			return StatusEarly
		case a.After(windowEnd):
			return StatusLate
		default:
			return StatusCompleted
		}
	}

	t := DateOnly(today)
	switch {
	case t.Before(windowStart):
		return StatusScheduled
	case t.After(windowEnd):
		return StatusOverdue
	default:
		return StatusDue
	}
}
