package dosing

import (
	"context"

	"github.com/google/uuid"
)

type DrugRepository interface {
	Create(ctx context.Context, d *Drug) error
	GetByID(ctx context.Context, id uuid.UUID) (*Drug, error)
	Update(ctx context.Context, d *Drug) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*Drug, error)
}

type CycleRepository interface {
	Create(ctx context.Context, c *DrugCycle) error
	GetByID(ctx context.Context, id uuid.UUID) (*DrugCycle, error)
	Update(ctx context.Context, c *DrugCycle) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*DrugCycle, error)
	// ListOpenByStudy returns cycles with no last dose date across all
	// subjects on the study, for return forecasting.
	ListOpenByStudy(ctx context.Context, studyID uuid.UUID) ([]*DrugCycle, error)
}
