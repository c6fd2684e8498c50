package study

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock repositories --

type mockStudyRepo struct {
	studies map[uuid.UUID]*Study
}

func newMockStudyRepo() *mockStudyRepo {
	return &mockStudyRepo{studies: make(map[uuid.UUID]*Study)}
}

func (m *mockStudyRepo) Create(_ context.Context, s *Study) error {
	s.ID = uuid.New()
	m.studies[s.ID] = s
	return nil
}

func (m *mockStudyRepo) GetByID(_ context.Context, id uuid.UUID) (*Study, error) {
	s, ok := m.studies[id]
	if !ok {
		return nil, fmt.Errorf("study not found")
	}
	return s, nil
}

func (m *mockStudyRepo) Update(_ context.Context, s *Study) error {
	if _, ok := m.studies[s.ID]; !ok {
		return fmt.Errorf("study not found")
	}
	m.studies[s.ID] = s
	return nil
}

func (m *mockStudyRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.studies, id)
	return nil
}

func (m *mockStudyRepo) List(_ context.Context, limit, offset int) ([]*Study, int, error) {
	var items []*Study
	for _, s := range m.studies {
		items = append(items, s)
	}
	return items, len(items), nil
}

func (m *mockStudyRepo) ListByStatuses(_ context.Context, statuses []string) ([]*Study, error) {
	want := make(map[string]bool)
	for _, st := range statuses {
		want[st] = true
	}
	var items []*Study
	for _, s := range m.studies {
		if want[s.Status] {
			items = append(items, s)
		}
	}
	return items, nil
}

type mockSubjectRepo struct {
	subjects map[uuid.UUID]*Subject
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{subjects: make(map[uuid.UUID]*Subject)}
}

func (m *mockSubjectRepo) Create(_ context.Context, s *Subject) error {
	s.ID = uuid.New()
	m.subjects[s.ID] = s
	return nil
}

func (m *mockSubjectRepo) GetByID(_ context.Context, id uuid.UUID) (*Subject, error) {
	s, ok := m.subjects[id]
	if !ok {
		return nil, fmt.Errorf("subject not found")
	}
	return s, nil
}

func (m *mockSubjectRepo) Update(_ context.Context, s *Subject) error {
	if _, ok := m.subjects[s.ID]; !ok {
		return fmt.Errorf("subject not found")
	}
	m.subjects[s.ID] = s
	return nil
}

func (m *mockSubjectRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.subjects, id)
	return nil
}

func (m *mockSubjectRepo) ListByStudy(_ context.Context, studyID uuid.UUID, limit, offset int) ([]*Subject, int, error) {
	var items []*Subject
	for _, s := range m.subjects {
		if s.StudyID == studyID {
			items = append(items, s)
		}
	}
	return items, len(items), nil
}

func newTestService() (*Service, *mockStudyRepo, *mockSubjectRepo) {
	studies := newMockStudyRepo()
	subjects := newMockSubjectRepo()
	return NewService(studies, subjects), studies, subjects
}

// -- Study tests --

func TestCreateStudy(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	s := &Study{ProtocolNumber: "PROTO-001", Title: "Phase II Trial", AnchorDay: 1}
	if err := svc.CreateStudy(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if s.Status != "enrolling" {
		t.Errorf("expected default status enrolling, got %s", s.Status)
	}
}

func TestCreateStudy_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name  string
		study *Study
	}{
		{"missing protocol number", &Study{Title: "T"}},
		{"missing title", &Study{ProtocolNumber: "P-1"}},
		{"bad anchor day", &Study{ProtocolNumber: "P-1", Title: "T", AnchorDay: 2}},
		{"bad status", &Study{ProtocolNumber: "P-1", Title: "T", Status: "paused"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateStudy(ctx, tt.study); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestUpdateStudy_AnchorDayImmutable(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	s := &Study{ProtocolNumber: "PROTO-001", Title: "Trial", AnchorDay: 1, Status: "active"}
	if err := svc.CreateStudy(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated := &Study{ID: s.ID, ProtocolNumber: "PROTO-001", Title: "Trial", AnchorDay: 0, Status: "active"}
	err := svc.UpdateStudy(ctx, updated)
	if err == nil {
		t.Fatal("expected error when changing anchor_day")
	}

	// Same anchor day passes.
	updated.AnchorDay = 1
	updated.Title = "Trial (amended)"
	if err := svc.UpdateStudy(ctx, updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateStudy_InvalidStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	s := &Study{ProtocolNumber: "PROTO-001", Title: "Trial"}
	if err := svc.CreateStudy(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Status = "archived"
	if err := svc.UpdateStudy(ctx, s); err == nil {
		t.Error("expected invalid status error")
	}
}

func TestListStudiesByStatuses(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for _, st := range []string{"enrolling", "active", "completed"} {
		s := &Study{ProtocolNumber: "P-" + st, Title: "T", Status: st}
		if err := svc.CreateStudy(ctx, s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	items, err := svc.ListStudiesByStatuses(ctx, []string{"enrolling", "active"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 studies, got %d", len(items))
	}

	if _, err := svc.ListStudiesByStatuses(ctx, []string{"bogus"}); err == nil {
		t.Error("expected error for invalid status filter")
	}
}

// -- Subject tests --

func TestCreateSubject(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	sub := &Subject{
		StudyID:        uuid.New(),
		SubjectNumber:  "001-001",
		EnrollmentDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := svc.CreateSubject(ctx, sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Status != "screening" {
		t.Errorf("expected default status screening, got %s", sub.Status)
	}
}

func TestCreateSubject_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	enrolled := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		subject *Subject
	}{
		{"missing study id", &Subject{SubjectNumber: "001", EnrollmentDate: enrolled}},
		{"missing subject number", &Subject{StudyID: uuid.New(), EnrollmentDate: enrolled}},
		{"missing enrollment date", &Subject{StudyID: uuid.New(), SubjectNumber: "001"}},
		{"bad status", &Subject{StudyID: uuid.New(), SubjectNumber: "001", EnrollmentDate: enrolled, Status: "paused"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateSubject(ctx, tt.subject); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestListSubjectsByStudy(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	studyID := uuid.New()
	for i := 0; i < 3; i++ {
		sub := &Subject{
			StudyID:        studyID,
			SubjectNumber:  fmt.Sprintf("001-%03d", i+1),
			EnrollmentDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Status:         "enrolled",
		}
		if err := svc.CreateSubject(ctx, sub); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	items, total, err := svc.ListSubjectsByStudy(ctx, studyID, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Errorf("expected 3 subjects, got total=%d len=%d", total, len(items))
	}
}
