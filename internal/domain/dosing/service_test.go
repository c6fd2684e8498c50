package dosing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockDrugRepo struct {
	drugs map[uuid.UUID]*Drug
}

func newMockDrugRepo() *mockDrugRepo {
	return &mockDrugRepo{drugs: make(map[uuid.UUID]*Drug)}
}

func (m *mockDrugRepo) Create(_ context.Context, d *Drug) error {
	d.ID = uuid.New()
	m.drugs[d.ID] = d
	return nil
}

func (m *mockDrugRepo) GetByID(_ context.Context, id uuid.UUID) (*Drug, error) {
	d, ok := m.drugs[id]
	if !ok {
		return nil, fmt.Errorf("drug not found")
	}
	return d, nil
}

func (m *mockDrugRepo) Update(_ context.Context, d *Drug) error {
	if _, ok := m.drugs[d.ID]; !ok {
		return fmt.Errorf("drug not found")
	}
	m.drugs[d.ID] = d
	return nil
}

func (m *mockDrugRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.drugs, id)
	return nil
}

func (m *mockDrugRepo) ListByStudy(_ context.Context, studyID uuid.UUID) ([]*Drug, error) {
	var items []*Drug
	for _, d := range m.drugs {
		if d.StudyID == studyID {
			items = append(items, d)
		}
	}
	return items, nil
}

type mockCycleRepo struct {
	cycles map[uuid.UUID]*DrugCycle
	// studyOf maps a subject to its study for ListOpenByStudy.
	studyOf map[uuid.UUID]uuid.UUID
}

func newMockCycleRepo() *mockCycleRepo {
	return &mockCycleRepo{
		cycles:  make(map[uuid.UUID]*DrugCycle),
		studyOf: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *mockCycleRepo) Create(_ context.Context, c *DrugCycle) error {
	c.ID = uuid.New()
	m.cycles[c.ID] = c
	return nil
}

func (m *mockCycleRepo) GetByID(_ context.Context, id uuid.UUID) (*DrugCycle, error) {
	c, ok := m.cycles[id]
	if !ok {
		return nil, fmt.Errorf("cycle not found")
	}
	return c, nil
}

func (m *mockCycleRepo) Update(_ context.Context, c *DrugCycle) error {
	if _, ok := m.cycles[c.ID]; !ok {
		return fmt.Errorf("cycle not found")
	}
	m.cycles[c.ID] = c
	return nil
}

func (m *mockCycleRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.cycles, id)
	return nil
}

func (m *mockCycleRepo) ListBySubject(_ context.Context, subjectID uuid.UUID) ([]*DrugCycle, error) {
	var items []*DrugCycle
	for _, c := range m.cycles {
		if c.SubjectID == subjectID {
			items = append(items, c)
		}
	}
	return items, nil
}

func (m *mockCycleRepo) ListOpenByStudy(_ context.Context, studyID uuid.UUID) ([]*DrugCycle, error) {
	var items []*DrugCycle
	for _, c := range m.cycles {
		if m.studyOf[c.SubjectID] == studyID && c.LastDoseDate == nil {
			items = append(items, c)
		}
	}
	return items, nil
}

func newTestService(today time.Time) (*Service, *mockDrugRepo, *mockCycleRepo) {
	drugs := newMockDrugRepo()
	cycles := newMockCycleRepo()
	svc := NewService(drugs, cycles)
	svc.SetClock(func() time.Time { return today })
	return svc, drugs, cycles
}

func TestCreateDrug_Validation(t *testing.T) {
	svc, _, _ := newTestService(date(2024, 1, 1))
	ctx := context.Background()
	studyID := uuid.New()

	tests := []struct {
		name string
		drug *Drug
	}{
		{"missing study", &Drug{Name: "IP-101", DosePerDay: 2}},
		{"missing name", &Drug{StudyID: studyID, DosePerDay: 2}},
		{"zero dose", &Drug{StudyID: studyID, Name: "IP-101"}},
		{"negative dose", &Drug{StudyID: studyID, Name: "IP-101", DosePerDay: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateDrug(ctx, tt.drug); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := svc.CreateDrug(ctx, &Drug{StudyID: studyID, Name: "IP-101", DosePerDay: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateCycle_Validation(t *testing.T) {
	svc, drugs, _ := newTestService(date(2024, 1, 1))
	ctx := context.Background()

	drug := &Drug{StudyID: uuid.New(), Name: "IP-101", DosePerDay: 2}
	if err := drugs.Create(ctx, drug); err != nil {
		t.Fatal(err)
	}
	subjectID := uuid.New()
	early := date(2023, 12, 31)

	tests := []struct {
		name  string
		cycle *DrugCycle
	}{
		{"missing subject", &DrugCycle{DrugID: drug.ID, DispensingDate: date(2024, 1, 1), TabletsDispensed: 30}},
		{"missing drug", &DrugCycle{SubjectID: subjectID, DispensingDate: date(2024, 1, 1)}},
		{"unknown drug", &DrugCycle{SubjectID: subjectID, DrugID: uuid.New(), DispensingDate: date(2024, 1, 1)}},
		{"missing dispensing date", &DrugCycle{SubjectID: subjectID, DrugID: drug.ID}},
		{"negative tablets", &DrugCycle{SubjectID: subjectID, DrugID: drug.ID, DispensingDate: date(2024, 1, 1), TabletsDispensed: -1}},
		{"last dose before dispensing", &DrugCycle{SubjectID: subjectID, DrugID: drug.ID, DispensingDate: date(2024, 1, 1), LastDoseDate: &early}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateCycle(ctx, tt.cycle); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEvaluateCycle(t *testing.T) {
	svc, drugs, cycles := newTestService(date(2024, 2, 1))
	ctx := context.Background()

	drug := &Drug{StudyID: uuid.New(), Name: "IP-101", DosePerDay: 2}
	if err := drugs.Create(ctx, drug); err != nil {
		t.Fatal(err)
	}

	last := date(2024, 1, 10)
	cycle := &DrugCycle{
		SubjectID: uuid.New(), DrugID: drug.ID,
		DispensingDate: date(2024, 1, 1), LastDoseDate: &last,
		TabletsDispensed: 30, TabletsReturned: 12,
	}
	if err := cycles.Create(ctx, cycle); err != nil {
		t.Fatal(err)
	}

	cc, err := svc.EvaluateCycle(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cc.Result.ExpectedTaken != 20 {
		t.Errorf("expected 20 expected tablets, got %v", cc.Result.ExpectedTaken)
	}
	if cc.Result.ActualTaken != 18 {
		t.Errorf("expected 18 actual tablets, got %d", cc.Result.ActualTaken)
	}
	if cc.Result.CompliancePercentage == nil || *cc.Result.CompliancePercentage != 90 {
		t.Errorf("expected 90%%, got %v", cc.Result.CompliancePercentage)
	}
	if cc.DrugName != "IP-101" {
		t.Errorf("expected drug name on the result, got %q", cc.DrugName)
	}
}

func TestSubjectSummary_GroupsByVisit(t *testing.T) {
	svc, drugs, cycles := newTestService(date(2024, 3, 1))
	ctx := context.Background()

	drug := &Drug{StudyID: uuid.New(), Name: "IP-101", DosePerDay: 1}
	if err := drugs.Create(ctx, drug); err != nil {
		t.Fatal(err)
	}
	subjectID := uuid.New()
	visitID := uuid.New()

	// Two cycles at one visit, one never linked to a visit.
	last1 := date(2024, 1, 10)
	last2 := date(2024, 2, 9)
	linked1 := &DrugCycle{SubjectID: subjectID, DrugID: drug.ID, VisitID: &visitID,
		DispensingDate: date(2024, 1, 1), LastDoseDate: &last1, TabletsDispensed: 10, TabletsReturned: 0}
	linked2 := &DrugCycle{SubjectID: subjectID, DrugID: drug.ID, VisitID: &visitID,
		DispensingDate: date(2024, 2, 1), LastDoseDate: &last2, TabletsDispensed: 10, TabletsReturned: 5}
	unlinked := &DrugCycle{SubjectID: subjectID, DrugID: drug.ID,
		DispensingDate: date(2024, 2, 20), TabletsDispensed: 30, TabletsReturned: 0}
	for _, c := range []*DrugCycle{linked1, linked2, unlinked} {
		if err := cycles.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := svc.SubjectSummary(ctx, subjectID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(summary.Groups))
	}

	visitGroup := summary.Groups[0]
	if visitGroup.VisitID == nil || *visitGroup.VisitID != visitID {
		t.Fatal("expected the visit-linked group first")
	}
	if len(visitGroup.Cycles) != 2 {
		t.Fatalf("expected 2 cycles in the visit group, got %d", len(visitGroup.Cycles))
	}
	// Cycle 1 is 100%, cycle 2 is 50%.
	if visitGroup.AverageCompliance == nil || *visitGroup.AverageCompliance != 75 {
		t.Errorf("expected 75%% group average, got %v", visitGroup.AverageCompliance)
	}

	unlinkedGroup := summary.Groups[1]
	if unlinkedGroup.VisitID != nil {
		t.Error("expected the unattributed group last")
	}
	if summary.OverallCompliance == nil {
		t.Error("expected an overall compliance value")
	}
}

func TestSubjectSummary_AllNilPercentages(t *testing.T) {
	svc, drugs, cycles := newTestService(date(2024, 1, 1))
	ctx := context.Background()

	drug := &Drug{StudyID: uuid.New(), Name: "IP-101", DosePerDay: 1}
	if err := drugs.Create(ctx, drug); err != nil {
		t.Fatal(err)
	}
	subjectID := uuid.New()

	// Dispensed in the future relative to the clock: nothing expected yet.
	c := &DrugCycle{SubjectID: subjectID, DrugID: drug.ID,
		DispensingDate: date(2024, 6, 1), TabletsDispensed: 30}
	if err := cycles.Create(ctx, c); err != nil {
		t.Fatal(err)
	}

	summary, err := svc.SubjectSummary(ctx, subjectID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.OverallCompliance != nil {
		t.Errorf("expected nil overall compliance, got %v", *summary.OverallCompliance)
	}
}

func TestExpectedReturns(t *testing.T) {
	today := date(2024, 1, 10)
	svc, drugs, cycles := newTestService(today)
	ctx := context.Background()

	studyID := uuid.New()
	drug := &Drug{StudyID: studyID, Name: "IP-101", DosePerDay: 2}
	if err := drugs.Create(ctx, drug); err != nil {
		t.Fatal(err)
	}

	inWindow := uuid.New()
	outWindow := uuid.New()
	closed := uuid.New()
	cycles.studyOf[inWindow] = studyID
	cycles.studyOf[outWindow] = studyID
	cycles.studyOf[closed] = studyID

	// 30 tablets at 2/day: return expected 2024-01-15.
	c1 := &DrugCycle{SubjectID: inWindow, DrugID: drug.ID, DispensingDate: date(2024, 1, 1), TabletsDispensed: 30}
	// 120 tablets at 2/day: return expected 2024-03-01, outside the window.
	c2 := &DrugCycle{SubjectID: outWindow, DrugID: drug.ID, DispensingDate: date(2024, 1, 1), TabletsDispensed: 120}
	// Closed cycle: excluded by the repository filter.
	last := date(2024, 1, 5)
	c3 := &DrugCycle{SubjectID: closed, DrugID: drug.ID, DispensingDate: date(2024, 1, 1), LastDoseDate: &last, TabletsDispensed: 30}
	for _, c := range []*DrugCycle{c1, c2, c3} {
		if err := cycles.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	returns, err := svc.ExpectedReturns(ctx, studyID, today, today.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(returns) != 1 {
		t.Fatalf("expected 1 return in window, got %d", len(returns))
	}
	if returns[0].CycleID != c1.ID {
		t.Error("expected the 15-day supply cycle")
	}
	if !returns[0].ExpectedReturnDate.Equal(date(2024, 1, 15)) {
		t.Errorf("expected 2024-01-15, got %s", returns[0].ExpectedReturnDate.Format("2006-01-02"))
	}
}
