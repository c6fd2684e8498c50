package study

import (
	"context"
	"fmt"

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

// =========== Study Repository ===========

type studyRepoPG struct{ pool *pgxpool.Pool }

func NewStudyRepoPG(pool *pgxpool.Pool) StudyRepository {
	return &studyRepoPG{pool: pool}
}

func (r *studyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const studyCols = `id, protocol_number, title, anchor_day, dosing_frequency,
	compliance_threshold, status, sponsor_name, site_name, note, created_at, updated_at`

func (r *studyRepoPG) scanStudy(row pgx.Row) (*Study, error) {
	var s Study
	err := row.Scan(&s.ID, &s.ProtocolNumber, &s.Title, &s.AnchorDay, &s.DosingFrequency,
		&s.ComplianceThreshold, &s.Status, &s.SponsorName, &s.SiteName, &s.Note, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *studyRepoPG) Create(ctx context.Context, s *Study) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO study (id, protocol_number, title, anchor_day, dosing_frequency,
			compliance_threshold, status, sponsor_name, site_name, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.ProtocolNumber, s.Title, s.AnchorDay, s.DosingFrequency,
		s.ComplianceThreshold, s.Status, s.SponsorName, s.SiteName, s.Note)
	return err
}

func (r *studyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Study, error) {
	return r.scanStudy(r.conn(ctx).QueryRow(ctx, `SELECT `+studyCols+` FROM study WHERE id = $1`, id))
}

func (r *studyRepoPG) Update(ctx context.Context, s *Study) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE study SET protocol_number=$2, title=$3, dosing_frequency=$4,
			compliance_threshold=$5, status=$6, sponsor_name=$7, site_name=$8,
			note=$9, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.ProtocolNumber, s.Title, s.DosingFrequency,
		s.ComplianceThreshold, s.Status, s.SponsorName, s.SiteName, s.Note)
	return err
}

func (r *studyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM study WHERE id = $1`, id)
	return err
}

func (r *studyRepoPG) List(ctx context.Context, limit, offset int) ([]*Study, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM study`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+studyCols+` FROM study ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Study
	for rows.Next() {
		s, err := r.scanStudy(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

func (r *studyRepoPG) ListByStatuses(ctx context.Context, statuses []string) ([]*Study, error) {
	if len(statuses) == 0 {
		return nil, fmt.Errorf("at least one status is required")
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+studyCols+` FROM study WHERE status = ANY($1) ORDER BY created_at`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Study
	for rows.Next() {
		s, err := r.scanStudy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

// =========== Subject Repository ===========

type subjectRepoPG struct{ pool *pgxpool.Pool }

func NewSubjectRepoPG(pool *pgxpool.Pool) SubjectRepository {
	return &subjectRepoPG{pool: pool}
}

func (r *subjectRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const subjectCols = `id, study_id, subject_number, enrollment_date, status,
	withdrawal_date, note, created_at, updated_at`

func (r *subjectRepoPG) scanSubject(row pgx.Row) (*Subject, error) {
	var s Subject
	err := row.Scan(&s.ID, &s.StudyID, &s.SubjectNumber, &s.EnrollmentDate, &s.Status,
		&s.WithdrawalDate, &s.Note, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *subjectRepoPG) Create(ctx context.Context, s *Subject) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO subject (id, study_id, subject_number, enrollment_date, status, note)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.StudyID, s.SubjectNumber, s.EnrollmentDate, s.Status, s.Note)
	return err
}

func (r *subjectRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Subject, error) {
	return r.scanSubject(r.conn(ctx).QueryRow(ctx, `SELECT `+subjectCols+` FROM subject WHERE id = $1`, id))
}

func (r *subjectRepoPG) Update(ctx context.Context, s *Subject) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE subject SET subject_number=$2, enrollment_date=$3, status=$4,
			withdrawal_date=$5, note=$6, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.SubjectNumber, s.EnrollmentDate, s.Status, s.WithdrawalDate, s.Note)
	return err
}

func (r *subjectRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM subject WHERE id = $1`, id)
	return err
}

func (r *subjectRepoPG) ListByStudy(ctx context.Context, studyID uuid.UUID, limit, offset int) ([]*Subject, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM subject WHERE study_id = $1`, studyID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+subjectCols+` FROM subject WHERE study_id = $1 ORDER BY subject_number LIMIT $2 OFFSET $3`, studyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Subject
	for rows.Next() {
		s, err := r.scanSubject(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}
