package dosing

import (
	"time"

	"github.com/google/uuid"
)

// Drug is an investigational product dispensed under a study protocol.
type Drug struct {
	ID         uuid.UUID `json:"id"`
	StudyID    uuid.UUID `json:"study_id"`
	Name       string    `json:"name"`
	DosePerDay float64   `json:"dose_per_day"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DrugCycle records one dispensing of a drug to a subject. A cycle is open
// until a last dose date is recorded; tablet counts come from the bottle
// return at the next visit.
type DrugCycle struct {
	ID               uuid.UUID  `json:"id"`
	SubjectID        uuid.UUID  `json:"subject_id"`
	DrugID           uuid.UUID  `json:"drug_id"`
	VisitID          *uuid.UUID `json:"visit_id,omitempty"`
	DispensingDate   time.Time  `json:"dispensing_date"`
	LastDoseDate     *time.Time `json:"last_dose_date,omitempty"`
	TabletsDispensed int        `json:"tablets_dispensed"`
	TabletsReturned  int        `json:"tablets_returned"`
	Note             *string    `json:"note,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CycleCompliance pairs a cycle with its evaluated compliance numbers.
type CycleCompliance struct {
	Cycle      *DrugCycle       `json:"cycle"`
	DrugName   string           `json:"drug_name"`
	DosePerDay float64          `json:"dose_per_day"`
	Result     ComplianceResult `json:"result"`
}

// VisitComplianceGroup aggregates the cycles attributed to one visit.
// Cycles never linked to a visit land in the group with a nil VisitID.
type VisitComplianceGroup struct {
	VisitID           *uuid.UUID         `json:"visit_id"`
	Cycles            []*CycleCompliance `json:"cycles"`
	AverageCompliance *float64           `json:"average_compliance"`
}

// SubjectComplianceSummary is the per-subject compliance rollup.
type SubjectComplianceSummary struct {
	SubjectID         uuid.UUID               `json:"subject_id"`
	Groups            []*VisitComplianceGroup `json:"groups"`
	OverallCompliance *float64                `json:"overall_compliance"`
}

// ExpectedReturn is a forecasted bottle return used for kit demand planning.
type ExpectedReturn struct {
	SubjectID          uuid.UUID `json:"subject_id"`
	DrugID             uuid.UUID `json:"drug_id"`
	CycleID            uuid.UUID `json:"cycle_id"`
	ExpectedReturnDate time.Time `json:"expected_return_date"`
}
