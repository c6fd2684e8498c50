package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	templates TemplateRepository
	sections  SectionRepository
	visits    VisitRepository
	refs      ReferenceRepository
	now       func() time.Time
}

func NewService(templates TemplateRepository, sections SectionRepository, visits VisitRepository, refs ReferenceRepository) *Service {
	return &Service{
		templates: templates,
		sections:  sections,
		visits:    visits,
		refs:      refs,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Tests use this to pin "today".
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// -- Templates --

var validTimingUnits = map[string]bool{
	UnitDays: true, UnitWeeks: true, UnitMonths: true,
}

func (s *Service) validateTemplate(t *VisitScheduleTemplate) error {
	if t.StudyID == uuid.Nil {
		return fmt.Errorf("study_id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validTimingUnits[t.TimingUnit] {
		return fmt.Errorf("invalid timing_unit: %s", t.TimingUnit)
	}
	if t.WindowBefore < 0 || t.WindowAfter < 0 {
		return fmt.Errorf("window days must be non-negative")
	}
	return nil
}

func (s *Service) CreateTemplate(ctx context.Context, t *VisitScheduleTemplate) error {
	if err := s.validateTemplate(t); err != nil {
		return err
	}
	return s.templates.Create(ctx, t)
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*VisitScheduleTemplate, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *Service) UpdateTemplate(ctx context.Context, t *VisitScheduleTemplate) error {
	if err := s.validateTemplate(t); err != nil {
		return err
	}
	return s.templates.Update(ctx, t)
}

func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	return s.templates.Delete(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context, studyID uuid.UUID, activeOnly bool) ([]*VisitScheduleTemplate, error) {
	return s.templates.ListByStudy(ctx, studyID, activeOnly)
}

// -- Sections --

func (s *Service) CreateSection(ctx context.Context, sec *SubjectSection) error {
	if sec.SubjectID == uuid.Nil {
		return fmt.Errorf("subject_id is required")
	}
	if sec.SectionID == uuid.Nil {
		return fmt.Errorf("section_id is required")
	}
	if sec.AnchorDate.IsZero() {
		return fmt.Errorf("anchor_date is required")
	}
	sec.AnchorDate = DateOnly(sec.AnchorDate)
	return s.sections.Create(ctx, sec)
}

func (s *Service) ListSectionsBySubject(ctx context.Context, subjectID uuid.UUID) ([]*SubjectSection, error) {
	return s.sections.ListBySubject(ctx, subjectID)
}

// ReanchorSection moves a subject section's anchor date and recomputes the
// scheduled date of the section's visits that are still in the scheduled
// state. Visits that are due, overdue, or already have an actual date are
// historical records and stay where they are.
func (s *Service) ReanchorSection(ctx context.Context, sectionID uuid.UUID, newAnchor time.Time) (int, error) {
	if newAnchor.IsZero() {
		return 0, fmt.Errorf("anchor_date is required")
	}
	sec, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		return 0, fmt.Errorf("load section: %w", err)
	}

	baseline, err := s.refs.GetBaseline(ctx, sec.SubjectID)
	if err != nil {
		return 0, fmt.Errorf("load subject: %w", err)
	}
	info, err := s.refs.GetStudyInfo(ctx, baseline.StudyID)
	if err != nil {
		return 0, fmt.Errorf("load study: %w", err)
	}

	visits, err := s.visits.ListBySection(ctx, sectionID)
	if err != nil {
		return 0, fmt.Errorf("load section visits: %w", err)
	}

	templates, err := s.templates.ListByStudy(ctx, baseline.StudyID, false)
	if err != nil {
		return 0, fmt.Errorf("load templates: %w", err)
	}
	templateByID := make(map[uuid.UUID]*VisitScheduleTemplate, len(templates))
	for _, t := range templates {
		templateByID[t.ID] = t
	}

	sec.AnchorDate = DateOnly(newAnchor)
	if err := s.sections.UpdateAnchor(ctx, sectionID, sec); err != nil {
		return 0, fmt.Errorf("update anchor: %w", err)
	}

	today := s.now()
	moved := 0
	for _, v := range visits {
		status := DeriveVisitStatus(today, v.VisitDate, v.ActualDate, v.WindowBefore, v.WindowAfter)
		if status != StatusScheduled {
			continue
		}
		if v.VisitScheduleID == nil {
			continue
		}
		t, ok := templateByID[*v.VisitScheduleID]
		if !ok {
			continue
		}
		res, err := CalculateVisitDate(sec.AnchorDate, t.TimingValue, t.TimingUnit, info.AnchorDay, t.WindowBefore, t.WindowAfter)
		if err != nil {
			return moved, fmt.Errorf("recompute visit %s: %w", v.ID, err)
		}
		if res.ScheduledDate.Equal(v.VisitDate) {
			continue
		}
		v.VisitDate = res.ScheduledDate
		if err := s.visits.Update(ctx, v); err != nil {
			return moved, fmt.Errorf("reschedule visit %s: %w", v.ID, err)
		}
		moved++
	}
	return moved, nil
}

// -- Subject visits --

func (s *Service) CreateVisit(ctx context.Context, v *SubjectVisit) error {
	if v.SubjectID == uuid.Nil {
		return fmt.Errorf("subject_id is required")
	}
	if v.VisitDate.IsZero() {
		return fmt.Errorf("visit_date is required")
	}
	if v.WindowBefore < 0 || v.WindowAfter < 0 {
		return fmt.Errorf("window days must be non-negative")
	}
	v.VisitDate = DateOnly(v.VisitDate)
	if v.ActualDate != nil {
		d := DateOnly(*v.ActualDate)
		v.ActualDate = &d
	}
	if err := s.visits.Create(ctx, v); err != nil {
		return err
	}
	s.decorate(v)
	return nil
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*SubjectVisit, error) {
	v, err := s.visits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorate(v)
	return v, nil
}

func (s *Service) UpdateVisit(ctx context.Context, v *SubjectVisit) error {
	if v.WindowBefore < 0 || v.WindowAfter < 0 {
		return fmt.Errorf("window days must be non-negative")
	}
	v.VisitDate = DateOnly(v.VisitDate)
	if v.ActualDate != nil {
		d := DateOnly(*v.ActualDate)
		v.ActualDate = &d
	}
	if err := s.visits.Update(ctx, v); err != nil {
		return err
	}
	s.decorate(v)
	return nil
}

func (s *Service) DeleteVisit(ctx context.Context, id uuid.UUID) error {
	return s.visits.Delete(ctx, id)
}

func (s *Service) ListVisitsBySubject(ctx context.Context, subjectID uuid.UUID, limit, offset int) ([]*SubjectVisit, int, error) {
	items, total, err := s.visits.ListBySubject(ctx, subjectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, v := range items {
		s.decorate(v)
	}
	return items, total, nil
}

// decorate fills in the derived status field.
func (s *Service) decorate(v *SubjectVisit) {
	v.Status = DeriveVisitStatus(s.now(), v.VisitDate, v.ActualDate, v.WindowBefore, v.WindowAfter)
}

// -- Projection --

// SchedulePreview projects every active template for one subject against
// the subject's enrollment date or, for sectioned templates, the subject's
// section anchor. Templates in sections the subject has not started are
// omitted.
func (s *Service) SchedulePreview(ctx context.Context, subjectID uuid.UUID) ([]*ProjectedVisit, error) {
	baseline, err := s.refs.GetBaseline(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load subject: %w", err)
	}
	info, err := s.refs.GetStudyInfo(ctx, baseline.StudyID)
	if err != nil {
		return nil, fmt.Errorf("load study: %w", err)
	}
	templates, err := s.templates.ListByStudy(ctx, baseline.StudyID, true)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	sections, err := s.sections.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	anchorBySection := make(map[uuid.UUID]time.Time, len(sections))
	for _, sec := range sections {
		anchorBySection[sec.SectionID] = sec.AnchorDate
	}

	today := s.now()
	var preview []*ProjectedVisit
	for _, t := range templates {
		base := baseline.EnrollmentDate
		if t.SectionID != nil {
			anchor, ok := anchorBySection[*t.SectionID]
			if !ok {
				continue
			}
			base = anchor
		}
		res, err := CalculateVisitDate(base, t.TimingValue, t.TimingUnit, info.AnchorDay, t.WindowBefore, t.WindowAfter)
		if err != nil {
			return nil, fmt.Errorf("project template %s: %w", t.ID, err)
		}
		preview = append(preview, &ProjectedVisit{
			SubjectID:     subjectID,
			SubjectNumber: baseline.SubjectNumber,
			TemplateID:    t.ID,
			TemplateName:  t.Name,
			ScheduledDate: res.ScheduledDate,
			WindowStart:   res.WindowStart,
			WindowEnd:     res.WindowEnd,
			Status:        DeriveVisitStatus(today, res.ScheduledDate, nil, t.WindowBefore, t.WindowAfter),
		})
	}
	return preview, nil
}

// ListProjected projects all active templates for every subject of a study
// and keeps the rows whose scheduled date falls inside [from, to]. All data
// is pulled in four batched reads and joined in memory; recorded visits are
// overlaid on their projection so the derived status reflects actual dates.
func (s *Service) ListProjected(ctx context.Context, studyID uuid.UUID, from, to time.Time) ([]*ProjectedVisit, error) {
	info, err := s.refs.GetStudyInfo(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("load study: %w", err)
	}
	templates, err := s.templates.ListByStudy(ctx, studyID, true)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	baselines, err := s.refs.ListBaselines(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}
	sections, err := s.sections.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	visits, err := s.visits.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("load visits: %w", err)
	}

	type sectionKey struct {
		subjectID uuid.UUID
		sectionID uuid.UUID
	}
	anchors := make(map[sectionKey]time.Time, len(sections))
	for _, sec := range sections {
		anchors[sectionKey{sec.SubjectID, sec.SectionID}] = sec.AnchorDate
	}

	type visitKey struct {
		subjectID  uuid.UUID
		templateID uuid.UUID
	}
	visitByKey := make(map[visitKey]*SubjectVisit, len(visits))
	for _, v := range visits {
		if v.VisitScheduleID == nil {
			continue
		}
		visitByKey[visitKey{v.SubjectID, *v.VisitScheduleID}] = v
	}

	from = DateOnly(from)
	to = DateOnly(to)
	today := s.now()

	var projected []*ProjectedVisit
	for _, b := range baselines {
		if b.Status == "withdrawn" || b.Status == "screen_failed" {
			continue
		}
		for _, t := range templates {
			base := b.EnrollmentDate
			if t.SectionID != nil {
				anchor, ok := anchors[sectionKey{b.SubjectID, *t.SectionID}]
				if !ok {
					continue
				}
				base = anchor
			}
			res, err := CalculateVisitDate(base, t.TimingValue, t.TimingUnit, info.AnchorDay, t.WindowBefore, t.WindowAfter)
			if err != nil {
				return nil, fmt.Errorf("project template %s: %w", t.ID, err)
			}
			if res.ScheduledDate.Before(from) || res.ScheduledDate.After(to) {
				continue
			}

			pv := &ProjectedVisit{
				SubjectID:     b.SubjectID,
				SubjectNumber: b.SubjectNumber,
				TemplateID:    t.ID,
				TemplateName:  t.Name,
				ScheduledDate: res.ScheduledDate,
				WindowStart:   res.WindowStart,
				WindowEnd:     res.WindowEnd,
				Status:        DeriveVisitStatus(today, res.ScheduledDate, nil, t.WindowBefore, t.WindowAfter),
			}
			if v, ok := visitByKey[visitKey{b.SubjectID, t.ID}]; ok {
				id := v.ID
				pv.VisitID = &id
				pv.Status = DeriveVisitStatus(today, res.ScheduledDate, v.ActualDate, t.WindowBefore, t.WindowAfter)
			}
			projected = append(projected, pv)
		}
	}
	return projected, nil
}
