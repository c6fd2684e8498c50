package dosing

import (
	"math"
	"time"
)

// ComplianceResult holds the outcome of evaluating one dispensing cycle.
// CompliancePercentage is rounded to the nearest whole percent and nil when
// no doses were expected in the interval.
type ComplianceResult struct {
	ExpectedTaken        float64    `json:"expected_taken"`
	ActualTaken          int        `json:"actual_taken"`
	CompliancePercentage *float64   `json:"compliance_percentage"`
	ExpectedReturnDate   *time.Time `json:"expected_return_date"`
	ReturnAnomaly        bool       `json:"return_anomaly"`
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}

// CalculateCompliance evaluates a dispensing cycle as of evaluatedAt.
//
// The dosing interval runs from the dispensing date through the last dose
// date (or evaluatedAt, whichever is earlier), counting both endpoints.
// Dispensing and evaluating on the same day counts as one dosing day.
func CalculateCompliance(dispensingDate time.Time, tabletsDispensed, tabletsReturned int, dosePerDay float64, lastDoseDate *time.Time, evaluatedAt time.Time) ComplianceResult {
	result := ComplianceResult{}

	end := dateOnly(evaluatedAt)
	if lastDoseDate != nil && dateOnly(*lastDoseDate).Before(end) {
		end = dateOnly(*lastDoseDate)
	}

	daysElapsed := daysBetween(dispensingDate, end) + 1
	if daysElapsed > 0 && dosePerDay > 0 {
		result.ExpectedTaken = float64(daysElapsed) * dosePerDay
	}

	actual := tabletsDispensed - tabletsReturned
	if actual < 0 {
		result.ReturnAnomaly = true
		actual = 0
	}
	result.ActualTaken = actual

	if result.ExpectedTaken > 0 {
		pct := math.Round(float64(result.ActualTaken) / result.ExpectedTaken * 100)
		result.CompliancePercentage = &pct
	}

	if dosePerDay > 0 && tabletsDispensed > 0 {
		supplyDays := int(math.Ceil(float64(tabletsDispensed) / dosePerDay))
		ret := dateOnly(dispensingDate).AddDate(0, 0, supplyDays-1)
		result.ExpectedReturnDate = &ret
	}

	return result
}

// AverageCompliance averages the non-nil percentages. Returns nil when no
// cycle produced a percentage.
func AverageCompliance(percentages []*float64) *float64 {
	var sum float64
	var n int
	for _, p := range percentages {
		if p == nil {
			continue
		}
		sum += *p
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
