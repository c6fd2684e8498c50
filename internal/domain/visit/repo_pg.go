package visit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bvquist1400/study-coordinator-pro/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Template Repository ===========

type templateRepoPG struct{ pool *pgxpool.Pool }

func NewTemplateRepoPG(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepoPG{pool: pool}
}

func (r *templateRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const templateCols = `id, study_id, name, timing_value, timing_unit,
	window_before, window_after, section_id, active, created_at, updated_at`

func (r *templateRepoPG) scanTemplate(row pgx.Row) (*VisitScheduleTemplate, error) {
	var t VisitScheduleTemplate
	err := row.Scan(&t.ID, &t.StudyID, &t.Name, &t.TimingValue, &t.TimingUnit,
		&t.WindowBefore, &t.WindowAfter, &t.SectionID, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *templateRepoPG) Create(ctx context.Context, t *VisitScheduleTemplate) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_schedule_template (id, study_id, name, timing_value, timing_unit,
			window_before, window_after, section_id, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.StudyID, t.Name, t.TimingValue, t.TimingUnit,
		t.WindowBefore, t.WindowAfter, t.SectionID, t.Active)
	return err
}

func (r *templateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*VisitScheduleTemplate, error) {
	return r.scanTemplate(r.conn(ctx).QueryRow(ctx, `SELECT `+templateCols+` FROM visit_schedule_template WHERE id = $1`, id))
}

func (r *templateRepoPG) Update(ctx context.Context, t *VisitScheduleTemplate) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit_schedule_template SET name=$2, timing_value=$3, timing_unit=$4,
			window_before=$5, window_after=$6, section_id=$7, active=$8, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.TimingValue, t.TimingUnit,
		t.WindowBefore, t.WindowAfter, t.SectionID, t.Active)
	return err
}

func (r *templateRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM visit_schedule_template WHERE id = $1`, id)
	return err
}

func (r *templateRepoPG) ListByStudy(ctx context.Context, studyID uuid.UUID, activeOnly bool) ([]*VisitScheduleTemplate, error) {
	query := `SELECT ` + templateCols + ` FROM visit_schedule_template WHERE study_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY timing_value`
	rows, err := r.conn(ctx).Query(ctx, query, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*VisitScheduleTemplate
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}

// =========== Section Repository ===========

type sectionRepoPG struct{ pool *pgxpool.Pool }

func NewSectionRepoPG(pool *pgxpool.Pool) SectionRepository {
	return &sectionRepoPG{pool: pool}
}

func (r *sectionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const sectionCols = `id, subject_id, section_id, anchor_date, created_at, updated_at`

func (r *sectionRepoPG) scanSection(row pgx.Row) (*SubjectSection, error) {
	var s SubjectSection
	err := row.Scan(&s.ID, &s.SubjectID, &s.SectionID, &s.AnchorDate, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *sectionRepoPG) Create(ctx context.Context, s *SubjectSection) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO subject_section (id, subject_id, section_id, anchor_date)
		VALUES ($1,$2,$3,$4)`,
		s.ID, s.SubjectID, s.SectionID, s.AnchorDate)
	return err
}

func (r *sectionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*SubjectSection, error) {
	return r.scanSection(r.conn(ctx).QueryRow(ctx, `SELECT `+sectionCols+` FROM subject_section WHERE id = $1`, id))
}

func (r *sectionRepoPG) UpdateAnchor(ctx context.Context, id uuid.UUID, s *SubjectSection) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE subject_section SET anchor_date=$2, updated_at=NOW() WHERE id = $1`,
		id, s.AnchorDate)
	return err
}

func (r *sectionRepoPG) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*SubjectSection, error) {
	return r.list(ctx, `SELECT `+sectionCols+` FROM subject_section WHERE subject_id = $1`, subjectID)
}

func (r *sectionRepoPG) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*SubjectSection, error) {
	return r.list(ctx, `
		SELECT ss.id, ss.subject_id, ss.section_id, ss.anchor_date, ss.created_at, ss.updated_at
		FROM subject_section ss
		JOIN subject s ON s.id = ss.subject_id
		WHERE s.study_id = $1`, studyID)
}

func (r *sectionRepoPG) list(ctx context.Context, query string, arg interface{}) ([]*SubjectSection, error) {
	rows, err := r.conn(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SubjectSection
	for rows.Next() {
		s, err := r.scanSection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

// =========== Visit Repository ===========

type visitRepoPG struct{ pool *pgxpool.Pool }

func NewVisitRepoPG(pool *pgxpool.Pool) VisitRepository {
	return &visitRepoPG{pool: pool}
}

func (r *visitRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const visitCols = `id, subject_id, visit_schedule_id, subject_section_id, visit_date,
	actual_date, window_before, window_after, note, created_at, updated_at`

func (r *visitRepoPG) scanVisit(row pgx.Row) (*SubjectVisit, error) {
	var v SubjectVisit
	err := row.Scan(&v.ID, &v.SubjectID, &v.VisitScheduleID, &v.SubjectSectionID, &v.VisitDate,
		&v.ActualDate, &v.WindowBefore, &v.WindowAfter, &v.Note, &v.CreatedAt, &v.UpdatedAt)
	return &v, err
}

func (r *visitRepoPG) Create(ctx context.Context, v *SubjectVisit) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO subject_visit (id, subject_id, visit_schedule_id, subject_section_id,
			visit_date, actual_date, window_before, window_after, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		v.ID, v.SubjectID, v.VisitScheduleID, v.SubjectSectionID,
		v.VisitDate, v.ActualDate, v.WindowBefore, v.WindowAfter, v.Note)
	return err
}

func (r *visitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*SubjectVisit, error) {
	return r.scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM subject_visit WHERE id = $1`, id))
}

func (r *visitRepoPG) Update(ctx context.Context, v *SubjectVisit) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE subject_visit SET visit_date=$2, actual_date=$3,
			window_before=$4, window_after=$5, note=$6, updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.VisitDate, v.ActualDate, v.WindowBefore, v.WindowAfter, v.Note)
	return err
}

func (r *visitRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM subject_visit WHERE id = $1`, id)
	return err
}

func (r *visitRepoPG) ListBySubject(ctx context.Context, subjectID uuid.UUID, limit, offset int) ([]*SubjectVisit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM subject_visit WHERE subject_id = $1`, subjectID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+visitCols+` FROM subject_visit WHERE subject_id = $1 ORDER BY visit_date LIMIT $2 OFFSET $3`, subjectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*SubjectVisit
	for rows.Next() {
		v, err := r.scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, nil
}

func (r *visitRepoPG) ListBySection(ctx context.Context, subjectSectionID uuid.UUID) ([]*SubjectVisit, error) {
	return r.list(ctx, `SELECT `+visitCols+` FROM subject_visit WHERE subject_section_id = $1 ORDER BY visit_date`, subjectSectionID)
}

func (r *visitRepoPG) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*SubjectVisit, error) {
	return r.list(ctx, `
		SELECT v.id, v.subject_id, v.visit_schedule_id, v.subject_section_id, v.visit_date,
			v.actual_date, v.window_before, v.window_after, v.note, v.created_at, v.updated_at
		FROM subject_visit v
		JOIN subject s ON s.id = v.subject_id
		WHERE s.study_id = $1`, studyID)
}

func (r *visitRepoPG) list(ctx context.Context, query string, arg interface{}) ([]*SubjectVisit, error) {
	rows, err := r.conn(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SubjectVisit
	for rows.Next() {
		v, err := r.scanVisit(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

// =========== Reference Repository ===========

type referenceRepoPG struct{ pool *pgxpool.Pool }

func NewReferenceRepoPG(pool *pgxpool.Pool) ReferenceRepository {
	return &referenceRepoPG{pool: pool}
}

func (r *referenceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *referenceRepoPG) GetStudyInfo(ctx context.Context, studyID uuid.UUID) (*StudyInfo, error) {
	var info StudyInfo
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, anchor_day FROM study WHERE id = $1`, studyID).
		Scan(&info.ID, &info.AnchorDay)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *referenceRepoPG) GetBaseline(ctx context.Context, subjectID uuid.UUID) (*SubjectBaseline, error) {
	var b SubjectBaseline
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, study_id, subject_number, enrollment_date, status
		FROM subject WHERE id = $1`, subjectID).
		Scan(&b.SubjectID, &b.StudyID, &b.SubjectNumber, &b.EnrollmentDate, &b.Status)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *referenceRepoPG) ListBaselines(ctx context.Context, studyID uuid.UUID) ([]*SubjectBaseline, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, study_id, subject_number, enrollment_date, status
		FROM subject WHERE study_id = $1 ORDER BY subject_number`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SubjectBaseline
	for rows.Next() {
		var b SubjectBaseline
		if err := rows.Scan(&b.SubjectID, &b.StudyID, &b.SubjectNumber, &b.EnrollmentDate, &b.Status); err != nil {
			return nil, err
		}
		items = append(items, &b)
	}
	return items, nil
}
