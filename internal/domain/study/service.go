package study

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	studies  StudyRepository
	subjects SubjectRepository
}

func NewService(studies StudyRepository, subjects SubjectRepository) *Service {
	return &Service{studies: studies, subjects: subjects}
}

// -- Study --

var validStudyStatuses = map[string]bool{
	"enrolling": true, "active": true, "closed_to_enrollment": true, "completed": true,
}

func (s *Service) CreateStudy(ctx context.Context, st *Study) error {
	if st.ProtocolNumber == "" {
		return fmt.Errorf("protocol_number is required")
	}
	if st.Title == "" {
		return fmt.Errorf("title is required")
	}
	if st.AnchorDay != 0 && st.AnchorDay != 1 {
		return fmt.Errorf("anchor_day must be 0 or 1, got %d", st.AnchorDay)
	}
	if st.Status == "" {
		st.Status = "enrolling"
	}
	if !validStudyStatuses[st.Status] {
		return fmt.Errorf("invalid status: %s", st.Status)
	}
	if st.DosingFrequency != nil && *st.DosingFrequency <= 0 {
		return fmt.Errorf("dosing_frequency must be positive")
	}
	return s.studies.Create(ctx, st)
}

func (s *Service) GetStudy(ctx context.Context, id uuid.UUID) (*Study, error) {
	return s.studies.GetByID(ctx, id)
}

// UpdateStudy rejects any change to anchor_day. Changing it after creation
// would silently shift every computed visit date for enrolled subjects.
func (s *Service) UpdateStudy(ctx context.Context, st *Study) error {
	if st.Status != "" && !validStudyStatuses[st.Status] {
		return fmt.Errorf("invalid status: %s", st.Status)
	}
	existing, err := s.studies.GetByID(ctx, st.ID)
	if err != nil {
		return err
	}
	if st.AnchorDay != existing.AnchorDay {
		return fmt.Errorf("anchor_day is immutable: study uses anchor_day=%d", existing.AnchorDay)
	}
	if st.DosingFrequency != nil && *st.DosingFrequency <= 0 {
		return fmt.Errorf("dosing_frequency must be positive")
	}
	return s.studies.Update(ctx, st)
}

func (s *Service) DeleteStudy(ctx context.Context, id uuid.UUID) error {
	return s.studies.Delete(ctx, id)
}

func (s *Service) ListStudies(ctx context.Context, limit, offset int) ([]*Study, int, error) {
	return s.studies.List(ctx, limit, offset)
}

func (s *Service) ListStudiesByStatuses(ctx context.Context, statuses []string) ([]*Study, error) {
	for _, st := range statuses {
		if !validStudyStatuses[st] {
			return nil, fmt.Errorf("invalid status filter: %s", st)
		}
	}
	return s.studies.ListByStatuses(ctx, statuses)
}

// -- Subject --

var validSubjectStatuses = map[string]bool{
	"screening": true, "enrolled": true, "active": true,
	"completed": true, "withdrawn": true, "screen_failed": true,
}

func (s *Service) CreateSubject(ctx context.Context, sub *Subject) error {
	if sub.StudyID == uuid.Nil {
		return fmt.Errorf("study_id is required")
	}
	if sub.SubjectNumber == "" {
		return fmt.Errorf("subject_number is required")
	}
	if sub.EnrollmentDate.IsZero() {
		return fmt.Errorf("enrollment_date is required")
	}
	if sub.Status == "" {
		sub.Status = "screening"
	}
	if !validSubjectStatuses[sub.Status] {
		return fmt.Errorf("invalid status: %s", sub.Status)
	}
	return s.subjects.Create(ctx, sub)
}

func (s *Service) GetSubject(ctx context.Context, id uuid.UUID) (*Subject, error) {
	return s.subjects.GetByID(ctx, id)
}

func (s *Service) UpdateSubject(ctx context.Context, sub *Subject) error {
	if sub.Status != "" && !validSubjectStatuses[sub.Status] {
		return fmt.Errorf("invalid status: %s", sub.Status)
	}
	return s.subjects.Update(ctx, sub)
}

func (s *Service) DeleteSubject(ctx context.Context, id uuid.UUID) error {
	return s.subjects.Delete(ctx, id)
}

func (s *Service) ListSubjectsByStudy(ctx context.Context, studyID uuid.UUID, limit, offset int) ([]*Subject, int, error) {
	return s.subjects.ListByStudy(ctx, studyID, limit, offset)
}
