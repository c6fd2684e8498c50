package labkit

import (
	"time"

	"github.com/google/uuid"
)

// Kit statuses. A kit moves forward through the lifecycle; expired is set by
// the recompute sweep, never by hand.
const (
	KitAvailable       = "available"
	KitAssigned        = "assigned"
	KitUsed            = "used"
	KitPendingShipment = "pending_shipment"
	KitShipped         = "shipped"
	KitDestroyed       = "destroyed"
	KitExpired         = "expired"
)

// Recommendation statuses. The engine keeps at most one active row per study
// and kit type.
const (
	RecommendationActive     = "active"
	RecommendationExpired    = "expired"
	RecommendationSuperseded = "superseded"
)

// LabKit is one physical kit held in site inventory.
type LabKit struct {
	ID              uuid.UUID  `json:"id"`
	StudyID         uuid.UUID  `json:"study_id"`
	KitType         string     `json:"kit_type"`
	AccessionNumber string     `json:"accession_number"`
	LotNumber       *string    `json:"lot_number,omitempty"`
	ExpirationDate  *time.Time `json:"expiration_date,omitempty"`
	Status          string     `json:"status"`
	Note            *string    `json:"note,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// KitRequirement declares how many kits of a type a study consumes. A
// requirement bound to a visit template drives demand per projected visit; a
// requirement bound to a drug drives demand per expected bottle return.
type KitRequirement struct {
	ID              uuid.UUID  `json:"id"`
	StudyID         uuid.UUID  `json:"study_id"`
	VisitScheduleID *uuid.UUID `json:"visit_schedule_id,omitempty"`
	DrugID          *uuid.UUID `json:"drug_id,omitempty"`
	KitType         string     `json:"kit_type"`
	Quantity        int        `json:"quantity"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LabKitRecommendation is an open ordering suggestion produced by the
// recompute engine. At most one active recommendation exists per study and
// kit type.
type LabKitRecommendation struct {
	ID             uuid.UUID `json:"id"`
	StudyID        uuid.UUID `json:"study_id"`
	KitType        string    `json:"kit_type"`
	QuantityNeeded int       `json:"quantity_needed"`
	HorizonEndDate time.Time `json:"horizon_end_date"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RecomputeResult reports what one study recompute changed.
type RecomputeResult struct {
	StudyID     uuid.UUID `json:"study_id"`
	KitsExpired int64     `json:"kits_expired"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Expired     int       `json:"expired"`
}

// StudyOutcome is one study's entry in a batch sweep.
type StudyOutcome struct {
	StudyID uuid.UUID        `json:"study_id"`
	Result  *RecomputeResult `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// BatchResult summarizes a full sweep. Totals count only the studies that
// recomputed successfully.
type BatchResult struct {
	Processed int             `json:"processed"`
	Failures  int             `json:"failures"`
	Totals    RecomputeResult `json:"totals"`
	Results   []*StudyOutcome `json:"results"`
}
