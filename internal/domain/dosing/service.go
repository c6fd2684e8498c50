package dosing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	drugs  DrugRepository
	cycles CycleRepository
	now    func() time.Time
}

func NewService(drugs DrugRepository, cycles CycleRepository) *Service {
	return &Service{drugs: drugs, cycles: cycles, now: time.Now}
}

// SetClock overrides the evaluation clock. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// -- Drugs --

func (s *Service) CreateDrug(ctx context.Context, d *Drug) error {
	if err := validateDrug(d); err != nil {
		return err
	}
	return s.drugs.Create(ctx, d)
}

func (s *Service) GetDrug(ctx context.Context, id uuid.UUID) (*Drug, error) {
	return s.drugs.GetByID(ctx, id)
}

func (s *Service) UpdateDrug(ctx context.Context, d *Drug) error {
	if err := validateDrug(d); err != nil {
		return err
	}
	return s.drugs.Update(ctx, d)
}

func (s *Service) DeleteDrug(ctx context.Context, id uuid.UUID) error {
	return s.drugs.Delete(ctx, id)
}

func (s *Service) ListDrugs(ctx context.Context, studyID uuid.UUID) ([]*Drug, error) {
	return s.drugs.ListByStudy(ctx, studyID)
}

func validateDrug(d *Drug) error {
	if d.StudyID == uuid.Nil {
		return fmt.Errorf("study_id is required")
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.DosePerDay <= 0 {
		return fmt.Errorf("dose_per_day must be positive")
	}
	return nil
}

// -- Cycles --

func (s *Service) CreateCycle(ctx context.Context, c *DrugCycle) error {
	if err := s.validateCycle(ctx, c); err != nil {
		return err
	}
	return s.cycles.Create(ctx, c)
}

func (s *Service) GetCycle(ctx context.Context, id uuid.UUID) (*DrugCycle, error) {
	return s.cycles.GetByID(ctx, id)
}

func (s *Service) UpdateCycle(ctx context.Context, c *DrugCycle) error {
	if err := s.validateCycle(ctx, c); err != nil {
		return err
	}
	return s.cycles.Update(ctx, c)
}

func (s *Service) DeleteCycle(ctx context.Context, id uuid.UUID) error {
	return s.cycles.Delete(ctx, id)
}

func (s *Service) validateCycle(ctx context.Context, c *DrugCycle) error {
	if c.SubjectID == uuid.Nil {
		return fmt.Errorf("subject_id is required")
	}
	if c.DrugID == uuid.Nil {
		return fmt.Errorf("drug_id is required")
	}
	if _, err := s.drugs.GetByID(ctx, c.DrugID); err != nil {
		return fmt.Errorf("drug %s: %w", c.DrugID, err)
	}
	if c.DispensingDate.IsZero() {
		return fmt.Errorf("dispensing_date is required")
	}
	if c.TabletsDispensed < 0 || c.TabletsReturned < 0 {
		return fmt.Errorf("tablet counts cannot be negative")
	}
	if c.LastDoseDate != nil && c.LastDoseDate.Before(c.DispensingDate) {
		return fmt.Errorf("last_dose_date cannot precede dispensing_date")
	}
	c.DispensingDate = dateOnly(c.DispensingDate)
	if c.LastDoseDate != nil {
		d := dateOnly(*c.LastDoseDate)
		c.LastDoseDate = &d
	}
	return nil
}

// EvaluateCycle computes compliance for a single cycle as of now.
func (s *Service) EvaluateCycle(ctx context.Context, cycleID uuid.UUID) (*CycleCompliance, error) {
	c, err := s.cycles.GetByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	d, err := s.drugs.GetByID(ctx, c.DrugID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(c, d), nil
}

func (s *Service) evaluate(c *DrugCycle, d *Drug) *CycleCompliance {
	return &CycleCompliance{
		Cycle:      c,
		DrugName:   d.Name,
		DosePerDay: d.DosePerDay,
		Result: CalculateCompliance(c.DispensingDate, c.TabletsDispensed, c.TabletsReturned,
			d.DosePerDay, c.LastDoseDate, s.now()),
	}
}

// SubjectSummary evaluates every cycle for the subject and groups the results
// by the visit the dispensing was recorded against. Cycles without a visit
// link share one unattributed group, ordered last.
func (s *Service) SubjectSummary(ctx context.Context, subjectID uuid.UUID) (*SubjectComplianceSummary, error) {
	cycles, err := s.cycles.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	drugCache := make(map[uuid.UUID]*Drug)
	groups := make(map[uuid.UUID]*VisitComplianceGroup)
	var order []uuid.UUID

	for _, c := range cycles {
		d, ok := drugCache[c.DrugID]
		if !ok {
			d, err = s.drugs.GetByID(ctx, c.DrugID)
			if err != nil {
				return nil, fmt.Errorf("drug %s: %w", c.DrugID, err)
			}
			drugCache[c.DrugID] = d
		}

		key := uuid.Nil
		if c.VisitID != nil {
			key = *c.VisitID
		}
		g, ok := groups[key]
		if !ok {
			g = &VisitComplianceGroup{VisitID: c.VisitID}
			groups[key] = g
			order = append(order, key)
		}
		g.Cycles = append(g.Cycles, s.evaluate(c, d))
	}

	// Unattributed cycles sort after the visit-linked groups.
	sort.SliceStable(order, func(i, j int) bool {
		return order[i] != uuid.Nil && order[j] == uuid.Nil
	})

	summary := &SubjectComplianceSummary{SubjectID: subjectID}
	var all []*float64
	for _, key := range order {
		g := groups[key]
		var pcts []*float64
		for _, cc := range g.Cycles {
			pcts = append(pcts, cc.Result.CompliancePercentage)
			all = append(all, cc.Result.CompliancePercentage)
		}
		g.AverageCompliance = AverageCompliance(pcts)
		summary.Groups = append(summary.Groups, g)
	}
	summary.OverallCompliance = AverageCompliance(all)
	return summary, nil
}

// ExpectedReturns forecasts bottle returns for open cycles on the study that
// fall inside [from, to]. Used by kit demand planning.
func (s *Service) ExpectedReturns(ctx context.Context, studyID uuid.UUID, from, to time.Time) ([]*ExpectedReturn, error) {
	cycles, err := s.cycles.ListOpenByStudy(ctx, studyID)
	if err != nil {
		return nil, err
	}
	drugCache := make(map[uuid.UUID]*Drug)
	var returns []*ExpectedReturn
	for _, c := range cycles {
		d, ok := drugCache[c.DrugID]
		if !ok {
			d, err = s.drugs.GetByID(ctx, c.DrugID)
			if err != nil {
				return nil, fmt.Errorf("drug %s: %w", c.DrugID, err)
			}
			drugCache[c.DrugID] = d
		}
		r := CalculateCompliance(c.DispensingDate, c.TabletsDispensed, c.TabletsReturned,
			d.DosePerDay, c.LastDoseDate, s.now())
		if r.ExpectedReturnDate == nil {
			continue
		}
		ret := *r.ExpectedReturnDate
		if ret.Before(dateOnly(from)) || ret.After(dateOnly(to)) {
			continue
		}
		returns = append(returns, &ExpectedReturn{
			SubjectID:          c.SubjectID,
			DrugID:             c.DrugID,
			CycleID:            c.ID,
			ExpectedReturnDate: ret,
		})
	}
	return returns, nil
}
