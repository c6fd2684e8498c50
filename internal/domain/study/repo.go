package study

import (
	"context"

	"github.com/google/uuid"
)

type StudyRepository interface {
	Create(ctx context.Context, s *Study) error
	GetByID(ctx context.Context, id uuid.UUID) (*Study, error)
	Update(ctx context.Context, s *Study) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Study, int, error)
	ListByStatuses(ctx context.Context, statuses []string) ([]*Study, error)
}

type SubjectRepository interface {
	Create(ctx context.Context, s *Subject) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subject, error)
	Update(ctx context.Context, s *Subject) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByStudy(ctx context.Context, studyID uuid.UUID, limit, offset int) ([]*Subject, int, error)
}
