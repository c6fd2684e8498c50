package visit

import (
	"context"

	"github.com/google/uuid"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *VisitScheduleTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*VisitScheduleTemplate, error)
	Update(ctx context.Context, t *VisitScheduleTemplate) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByStudy(ctx context.Context, studyID uuid.UUID, activeOnly bool) ([]*VisitScheduleTemplate, error)
}

type SectionRepository interface {
	Create(ctx context.Context, s *SubjectSection) error
	GetByID(ctx context.Context, id uuid.UUID) (*SubjectSection, error)
	UpdateAnchor(ctx context.Context, id uuid.UUID, s *SubjectSection) error
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*SubjectSection, error)
	ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*SubjectSection, error)
}

type VisitRepository interface {
	Create(ctx context.Context, v *SubjectVisit) error
	GetByID(ctx context.Context, id uuid.UUID) (*SubjectVisit, error)
	Update(ctx context.Context, v *SubjectVisit) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySubject(ctx context.Context, subjectID uuid.UUID, limit, offset int) ([]*SubjectVisit, int, error)
	ListBySection(ctx context.Context, subjectSectionID uuid.UUID) ([]*SubjectVisit, error)
	ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*SubjectVisit, error)
}

// ReferenceRepository reads the study and subject slices the scheduler needs
// for projection, batched per study.
type ReferenceRepository interface {
	GetStudyInfo(ctx context.Context, studyID uuid.UUID) (*StudyInfo, error)
	GetBaseline(ctx context.Context, subjectID uuid.UUID) (*SubjectBaseline, error)
	ListBaselines(ctx context.Context, studyID uuid.UUID) ([]*SubjectBaseline, error)
}
