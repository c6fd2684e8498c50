package labkit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bvquist1400/study-coordinator-pro/internal/domain/dosing"
	"github.com/bvquist1400/study-coordinator-pro/internal/domain/study"
	"github.com/bvquist1400/study-coordinator-pro/internal/domain/visit"
)

// VisitProjector yields the projected visit calendar the engine forecasts
// demand from. Satisfied by the visit service.
type VisitProjector interface {
	ListProjected(ctx context.Context, studyID uuid.UUID, from, to time.Time) ([]*visit.ProjectedVisit, error)
}

// DispensingSource yields forecasted bottle returns. Satisfied by the dosing
// service.
type DispensingSource interface {
	ExpectedReturns(ctx context.Context, studyID uuid.UUID, from, to time.Time) ([]*dosing.ExpectedReturn, error)
}

// StudyLister selects the studies a batch sweep covers. Satisfied by the
// study service.
type StudyLister interface {
	ListStudiesByStatuses(ctx context.Context, statuses []string) ([]*study.Study, error)
}

// TxRunner wraps a recompute in a transaction. Nil runs the function
// directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	kits            KitRepository
	requirements    RequirementRepository
	recommendations RecommendationRepository
	projector       VisitProjector
	dispensing      DispensingSource
	studies         StudyLister
	runTx           TxRunner
	now             func() time.Time
}

func NewService(kits KitRepository, requirements RequirementRepository, recommendations RecommendationRepository,
	projector VisitProjector, dispensing DispensingSource, studies StudyLister, runTx TxRunner) *Service {
	return &Service{
		kits:            kits,
		requirements:    requirements,
		recommendations: recommendations,
		projector:       projector,
		dispensing:      dispensing,
		studies:         studies,
		runTx:           runTx,
		now:             time.Now,
	}
}

// SetClock overrides the engine clock. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// -- Kits --

var validKitStatuses = map[string]bool{
	KitAvailable:       true,
	KitAssigned:        true,
	KitUsed:            true,
	KitPendingShipment: true,
	KitShipped:         true,
	KitDestroyed:       true,
	KitExpired:         true,
}

func (s *Service) CreateKit(ctx context.Context, k *LabKit) error {
	if k.Status == "" {
		k.Status = KitAvailable
	}
	if err := validateKit(k); err != nil {
		return err
	}
	return s.kits.Create(ctx, k)
}

func (s *Service) GetKit(ctx context.Context, id uuid.UUID) (*LabKit, error) {
	return s.kits.GetByID(ctx, id)
}

func (s *Service) UpdateKit(ctx context.Context, k *LabKit) error {
	if err := validateKit(k); err != nil {
		return err
	}
	return s.kits.Update(ctx, k)
}

func (s *Service) DeleteKit(ctx context.Context, id uuid.UUID) error {
	return s.kits.Delete(ctx, id)
}

func (s *Service) ListKits(ctx context.Context, studyID uuid.UUID, limit, offset int) ([]*LabKit, int, error) {
	return s.kits.ListByStudy(ctx, studyID, limit, offset)
}

func validateKit(k *LabKit) error {
	if k.StudyID == uuid.Nil {
		return fmt.Errorf("study_id is required")
	}
	if k.KitType == "" {
		return fmt.Errorf("kit_type is required")
	}
	if k.AccessionNumber == "" {
		return fmt.Errorf("accession_number is required")
	}
	if !validKitStatuses[k.Status] {
		return fmt.Errorf("invalid kit status %q", k.Status)
	}
	return nil
}

// -- Requirements --

func (s *Service) CreateRequirement(ctx context.Context, r *KitRequirement) error {
	if err := validateRequirement(r); err != nil {
		return err
	}
	return s.requirements.Create(ctx, r)
}

func (s *Service) GetRequirement(ctx context.Context, id uuid.UUID) (*KitRequirement, error) {
	return s.requirements.GetByID(ctx, id)
}

func (s *Service) UpdateRequirement(ctx context.Context, r *KitRequirement) error {
	if err := validateRequirement(r); err != nil {
		return err
	}
	return s.requirements.Update(ctx, r)
}

func (s *Service) DeleteRequirement(ctx context.Context, id uuid.UUID) error {
	return s.requirements.Delete(ctx, id)
}

func (s *Service) ListRequirements(ctx context.Context, studyID uuid.UUID) ([]*KitRequirement, error) {
	return s.requirements.ListByStudy(ctx, studyID)
}

func validateRequirement(r *KitRequirement) error {
	if r.StudyID == uuid.Nil {
		return fmt.Errorf("study_id is required")
	}
	if r.KitType == "" {
		return fmt.Errorf("kit_type is required")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if r.VisitScheduleID == nil && r.DrugID == nil {
		return fmt.Errorf("requirement must reference a visit template or a drug")
	}
	return nil
}

// -- Recommendations --

func (s *Service) ListRecommendations(ctx context.Context, studyID uuid.UUID, activeOnly bool) ([]*LabKitRecommendation, error) {
	if activeOnly {
		return s.recommendations.ListActiveByStudy(ctx, studyID)
	}
	return s.recommendations.ListByStudy(ctx, studyID)
}

// -- Recompute Engine --

// Statuses carrying an actual visit date. Those visits already consumed
// their kits.
var doneVisitStatuses = map[string]bool{
	visit.StatusCompleted: true,
	visit.StatusEarly:     true,
	visit.StatusLate:      true,
}

// Recompute refreshes the kit recommendations for one study. It expires
// overdue kits, forecasts demand over the next daysAhead days from projected
// visits and expected bottle returns, nets it against usable inventory, and
// reconciles the open recommendations. Running it twice in a row changes
// nothing the second time.
func (s *Service) Recompute(ctx context.Context, studyID uuid.UUID, daysAhead int) (*RecomputeResult, error) {
	if studyID == uuid.Nil {
		return nil, fmt.Errorf("study_id is required")
	}
	if daysAhead <= 0 {
		return nil, fmt.Errorf("days_ahead must be positive")
	}

	result := &RecomputeResult{StudyID: studyID}
	run := func(ctx context.Context) error {
		return s.recompute(ctx, studyID, daysAhead, result)
	}
	if s.runTx != nil {
		if err := s.runTx(ctx, run); err != nil {
			return nil, err
		}
	} else if err := run(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) recompute(ctx context.Context, studyID uuid.UUID, daysAhead int, result *RecomputeResult) error {
	today := dateOnly(s.now())
	horizonEnd := today.AddDate(0, 0, daysAhead)

	expired, err := s.kits.ExpireOverdue(ctx, studyID, today)
	if err != nil {
		return fmt.Errorf("expire kits: %w", err)
	}
	result.KitsExpired = expired

	demand, err := s.forecastDemand(ctx, studyID, today, horizonEnd)
	if err != nil {
		return err
	}

	supply, err := s.kits.CountUsableByType(ctx, studyID, horizonEnd)
	if err != nil {
		return fmt.Errorf("count inventory: %w", err)
	}

	active, err := s.recommendations.ListActiveByStudy(ctx, studyID)
	if err != nil {
		return fmt.Errorf("list recommendations: %w", err)
	}
	activeByType := make(map[string]*LabKitRecommendation, len(active))
	for _, rec := range active {
		activeByType[rec.KitType] = rec
	}

	// Deterministic order keeps repo call sequences stable.
	types := make([]string, 0, len(demand))
	for kitType := range demand {
		types = append(types, kitType)
	}
	sort.Strings(types)

	for _, kitType := range types {
		need := demand[kitType] - supply[kitType]
		if need < 0 {
			need = 0
		}
		rec, exists := activeByType[kitType]
		delete(activeByType, kitType)

		switch {
		case need == 0 && !exists:
			// Nothing to recommend.
		case need == 0 && exists:
			rec.Status = RecommendationExpired
			if err := s.recommendations.Update(ctx, rec); err != nil {
				return fmt.Errorf("expire recommendation %s: %w", kitType, err)
			}
			result.Expired++
		case !exists:
			rec = &LabKitRecommendation{
				StudyID:        studyID,
				KitType:        kitType,
				QuantityNeeded: need,
				HorizonEndDate: horizonEnd,
				Status:         RecommendationActive,
			}
			if err := s.recommendations.Create(ctx, rec); err != nil {
				return fmt.Errorf("create recommendation %s: %w", kitType, err)
			}
			result.Created++
		case rec.QuantityNeeded != need || !rec.HorizonEndDate.Equal(horizonEnd):
			rec.QuantityNeeded = need
			rec.HorizonEndDate = horizonEnd
			if err := s.recommendations.Update(ctx, rec); err != nil {
				return fmt.Errorf("update recommendation %s: %w", kitType, err)
			}
			result.Updated++
		}
	}

	// Active recommendations for kit types with no forecast left.
	for _, rec := range activeByType {
		rec.Status = RecommendationExpired
		if err := s.recommendations.Update(ctx, rec); err != nil {
			return fmt.Errorf("expire recommendation %s: %w", rec.KitType, err)
		}
		result.Expired++
	}
	return nil
}

func (s *Service) forecastDemand(ctx context.Context, studyID uuid.UUID, from, to time.Time) (map[string]int, error) {
	reqs, err := s.requirements.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}

	byTemplate := make(map[uuid.UUID][]*KitRequirement)
	byDrug := make(map[uuid.UUID][]*KitRequirement)
	for _, r := range reqs {
		if r.VisitScheduleID != nil {
			byTemplate[*r.VisitScheduleID] = append(byTemplate[*r.VisitScheduleID], r)
		}
		if r.DrugID != nil {
			byDrug[*r.DrugID] = append(byDrug[*r.DrugID], r)
		}
	}

	demand := make(map[string]int)
	if len(byTemplate) > 0 {
		projected, err := s.projector.ListProjected(ctx, studyID, from, to)
		if err != nil {
			return nil, fmt.Errorf("project visits: %w", err)
		}
		for _, pv := range projected {
			if doneVisitStatuses[pv.Status] {
				continue
			}
			for _, r := range byTemplate[pv.TemplateID] {
				demand[r.KitType] += r.Quantity
			}
		}
	}
	if len(byDrug) > 0 {
		returns, err := s.dispensing.ExpectedReturns(ctx, studyID, from, to)
		if err != nil {
			return nil, fmt.Errorf("forecast returns: %w", err)
		}
		for _, ret := range returns {
			for _, r := range byDrug[ret.DrugID] {
				demand[r.KitType] += r.Quantity
			}
		}
	}
	return demand, nil
}

// RecomputeAll sweeps every study in the given statuses. A failing study is
// recorded and the sweep moves on; totals cover only the studies that
// succeeded.
func (s *Service) RecomputeAll(ctx context.Context, daysAhead int, statuses []string) (*BatchResult, error) {
	if daysAhead <= 0 {
		return nil, fmt.Errorf("days_ahead must be positive")
	}
	if len(statuses) == 0 {
		statuses = []string{"enrolling", "active"}
	}

	studies, err := s.studies.ListStudiesByStatuses(ctx, statuses)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}

	batch := &BatchResult{}
	for _, st := range studies {
		batch.Processed++
		result, err := s.Recompute(ctx, st.ID, daysAhead)
		if err != nil {
			batch.Failures++
			batch.Results = append(batch.Results, &StudyOutcome{StudyID: st.ID, Error: err.Error()})
			log.Error().Err(err).Str("study_id", st.ID.String()).Msg("lab kit recompute failed")
			continue
		}
		batch.Totals.KitsExpired += result.KitsExpired
		batch.Totals.Created += result.Created
		batch.Totals.Updated += result.Updated
		batch.Totals.Expired += result.Expired
		batch.Results = append(batch.Results, &StudyOutcome{StudyID: st.ID, Result: result})
	}
	log.Info().
		Int("processed", batch.Processed).
		Int("failures", batch.Failures).
		Int("created", batch.Totals.Created).
		Int("updated", batch.Totals.Updated).
		Int("expired", batch.Totals.Expired).
		Msg("lab kit recommendation sweep finished")
	return batch, nil
}
