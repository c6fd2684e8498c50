package visit

import (
	"time"

	"github.com/google/uuid"
)

// VisitScheduleTemplate maps to the visit_schedule_template table. Templates
// sharing a section_id form a re-anchorable group: their subject visits are
// projected from the subject's section anchor instead of the enrollment date.
type VisitScheduleTemplate struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	StudyID      uuid.UUID  `db:"study_id" json:"study_id"`
	Name         string     `db:"name" json:"name"`
	TimingValue  int        `db:"timing_value" json:"timing_value"`
	TimingUnit   string     `db:"timing_unit" json:"timing_unit"`
	WindowBefore int        `db:"window_before" json:"window_before"`
	WindowAfter  int        `db:"window_after" json:"window_after"`
	SectionID    *uuid.UUID `db:"section_id" json:"section_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// SubjectSection maps to the subject_section table: a per-subject anchor date
// for a template section. Re-anchoring it moves only the section's visits
// that are still in the scheduled state.
type SubjectSection struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SubjectID  uuid.UUID `db:"subject_id" json:"subject_id"`
	SectionID  uuid.UUID `db:"section_id" json:"section_id"`
	AnchorDate time.Time `db:"anchor_date" json:"anchor_date"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectVisit maps to the subject_visit table. Status is derived on read
// from the dates and window; the column is never the source of truth.
type SubjectVisit struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	SubjectID        uuid.UUID  `db:"subject_id" json:"subject_id"`
	VisitScheduleID  *uuid.UUID `db:"visit_schedule_id" json:"visit_schedule_id,omitempty"`
	SubjectSectionID *uuid.UUID `db:"subject_section_id" json:"subject_section_id,omitempty"`
	VisitDate        time.Time  `db:"visit_date" json:"visit_date"`
	ActualDate       *time.Time `db:"actual_date" json:"actual_date,omitempty"`
	WindowBefore     int        `db:"window_before" json:"window_before"`
	WindowAfter      int        `db:"window_after" json:"window_after"`
	Status           string     `db:"-" json:"status"`
	Note             *string    `db:"note" json:"note,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// StudyInfo is the slice of study state the scheduler needs.
type StudyInfo struct {
	ID        uuid.UUID `json:"id"`
	AnchorDay int       `json:"anchor_day"`
}

// SubjectBaseline is the slice of subject state the scheduler needs. The
// enrollment date is the default projection baseline.
type SubjectBaseline struct {
	SubjectID      uuid.UUID `json:"subject_id"`
	StudyID        uuid.UUID `json:"study_id"`
	SubjectNumber  string    `json:"subject_number"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	Status         string    `json:"status"`
}

// ProjectedVisit is one row of the horizon projection: a template resolved
// against a subject's current baseline or section anchor, overlaid with the
// recorded visit when one exists.
type ProjectedVisit struct {
	SubjectID     uuid.UUID  `json:"subject_id"`
	SubjectNumber string     `json:"subject_number"`
	TemplateID    uuid.UUID  `json:"template_id"`
	TemplateName  string     `json:"template_name"`
	VisitID       *uuid.UUID `json:"visit_id,omitempty"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	WindowStart   time.Time  `json:"window_start"`
	WindowEnd     time.Time  `json:"window_end"`
	Status        string     `json:"status"`
}
