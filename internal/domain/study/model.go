package study

import (
	"time"

	"github.com/google/uuid"
)

// Study maps to the study table. AnchorDay records whether the protocol
// labels the baseline visit study-day 0 or study-day 1; every downstream
// visit-date offset depends on it, so it is immutable after creation.
type Study struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	ProtocolNumber      string    `db:"protocol_number" json:"protocol_number"`
	Title               string    `db:"title" json:"title"`
	AnchorDay           int       `db:"anchor_day" json:"anchor_day"`
	DosingFrequency     *float64  `db:"dosing_frequency" json:"dosing_frequency,omitempty"`
	ComplianceThreshold *float64  `db:"compliance_threshold" json:"compliance_threshold,omitempty"`
	Status              string    `db:"status" json:"status"`
	SponsorName         *string   `db:"sponsor_name" json:"sponsor_name,omitempty"`
	SiteName            *string   `db:"site_name" json:"site_name,omitempty"`
	Note                *string   `db:"note" json:"note,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Subject maps to the subject table. EnrollmentDate is the scheduling
// baseline used for visit projection unless a section anchor overrides it.
type Subject struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	StudyID        uuid.UUID  `db:"study_id" json:"study_id"`
	SubjectNumber  string     `db:"subject_number" json:"subject_number"`
	EnrollmentDate time.Time  `db:"enrollment_date" json:"enrollment_date"`
	Status         string     `db:"status" json:"status"`
	WithdrawalDate *time.Time `db:"withdrawal_date" json:"withdrawal_date,omitempty"`
	Note           *string    `db:"note" json:"note,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
