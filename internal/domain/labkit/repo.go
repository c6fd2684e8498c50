package labkit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type KitRepository interface {
	Create(ctx context.Context, k *LabKit) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabKit, error)
	Update(ctx context.Context, k *LabKit) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByStudy(ctx context.Context, studyID uuid.UUID, limit, offset int) ([]*LabKit, int, error)
	// ExpireOverdue marks kits past their expiration date as expired and
	// returns the number changed. Kits already shipped or destroyed are
	// left alone.
	ExpireOverdue(ctx context.Context, studyID uuid.UUID, asOf time.Time) (int64, error)
	// CountUsableByType counts kits per type that can cover upcoming
	// demand: available, assigned, or pending shipment, and not expiring
	// before the horizon end.
	CountUsableByType(ctx context.Context, studyID uuid.UUID, horizonEnd time.Time) (map[string]int, error)
}

type RequirementRepository interface {
	Create(ctx context.Context, r *KitRequirement) error
	GetByID(ctx context.Context, id uuid.UUID) (*KitRequirement, error)
	Update(ctx context.Context, r *KitRequirement) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*KitRequirement, error)
}

type RecommendationRepository interface {
	Create(ctx context.Context, rec *LabKitRecommendation) error
	Update(ctx context.Context, rec *LabKitRecommendation) error
	ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*LabKitRecommendation, error)
	ListActiveByStudy(ctx context.Context, studyID uuid.UUID) ([]*LabKitRecommendation, error)
}
