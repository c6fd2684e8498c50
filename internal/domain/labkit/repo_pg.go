package labkit

import (
	"context"
	"time"

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

// =========== Kit Repository ===========

type kitRepoPG struct{ pool *pgxpool.Pool }

func NewKitRepoPG(pool *pgxpool.Pool) KitRepository {
	return &kitRepoPG{pool: pool}
}

func (r *kitRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const kitCols = `id, study_id, kit_type, accession_number, lot_number,
	expiration_date, status, note, created_at, updated_at`

func (r *kitRepoPG) scanKit(row pgx.Row) (*LabKit, error) {
	var k LabKit
	err := row.Scan(&k.ID, &k.StudyID, &k.KitType, &k.AccessionNumber, &k.LotNumber,
		&k.ExpirationDate, &k.Status, &k.Note, &k.CreatedAt, &k.UpdatedAt)
	return &k, err
}

func (r *kitRepoPG) Create(ctx context.Context, k *LabKit) error {
	k.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_kit (id, study_id, kit_type, accession_number, lot_number,
			expiration_date, status, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		k.ID, k.StudyID, k.KitType, k.AccessionNumber, k.LotNumber,
		k.ExpirationDate, k.Status, k.Note)
	return err
}

func (r *kitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabKit, error) {
	return r.scanKit(r.conn(ctx).QueryRow(ctx, `SELECT `+kitCols+` FROM lab_kit WHERE id = $1`, id))
}

func (r *kitRepoPG) Update(ctx context.Context, k *LabKit) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_kit SET kit_type=$2, accession_number=$3, lot_number=$4,
			expiration_date=$5, status=$6, note=$7, updated_at=NOW()
		WHERE id = $1`,
		k.ID, k.KitType, k.AccessionNumber, k.LotNumber, k.ExpirationDate, k.Status, k.Note)
	return err
}

func (r *kitRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM lab_kit WHERE id = $1`, id)
	return err
}

func (r *kitRepoPG) ListByStudy(ctx context.Context, studyID uuid.UUID, limit, offset int) ([]*LabKit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_kit WHERE study_id = $1`, studyID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+kitCols+` FROM lab_kit WHERE study_id = $1 ORDER BY accession_number LIMIT $2 OFFSET $3`, studyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LabKit
	for rows.Next() {
		k, err := r.scanKit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, k)
	}
	return items, total, nil
}

func (r *kitRepoPG) ExpireOverdue(ctx context.Context, studyID uuid.UUID, asOf time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_kit SET status=$3, updated_at=NOW()
		WHERE study_id = $1
		  AND expiration_date IS NOT NULL AND expiration_date < $2
		  AND status NOT IN ($3, $4, $5)`,
		studyID, asOf, KitExpired, KitShipped, KitDestroyed)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *kitRepoPG) CountUsableByType(ctx context.Context, studyID uuid.UUID, horizonEnd time.Time) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT kit_type, COUNT(*)
		FROM lab_kit
		WHERE study_id = $1
		  AND status IN ($2, $3, $4)
		  AND (expiration_date IS NULL OR expiration_date >= $5)
		GROUP BY kit_type`,
		studyID, KitAvailable, KitAssigned, KitPendingShipment, horizonEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var kitType string
		var n int
		if err := rows.Scan(&kitType, &n); err != nil {
			return nil, err
		}
		counts[kitType] = n
	}
	return counts, rows.Err()
}

// =========== Requirement Repository ===========

type requirementRepoPG struct{ pool *pgxpool.Pool }

func NewRequirementRepoPG(pool *pgxpool.Pool) RequirementRepository {
	return &requirementRepoPG{pool: pool}
}

func (r *requirementRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const requirementCols = `id, study_id, visit_schedule_id, drug_id, kit_type, quantity, created_at, updated_at`

func (r *requirementRepoPG) scanRequirement(row pgx.Row) (*KitRequirement, error) {
	var req KitRequirement
	err := row.Scan(&req.ID, &req.StudyID, &req.VisitScheduleID, &req.DrugID,
		&req.KitType, &req.Quantity, &req.CreatedAt, &req.UpdatedAt)
	return &req, err
}

func (r *requirementRepoPG) Create(ctx context.Context, req *KitRequirement) error {
	req.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO kit_requirement (id, study_id, visit_schedule_id, drug_id, kit_type, quantity)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		req.ID, req.StudyID, req.VisitScheduleID, req.DrugID, req.KitType, req.Quantity)
	return err
}

func (r *requirementRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*KitRequirement, error) {
	return r.scanRequirement(r.conn(ctx).QueryRow(ctx, `SELECT `+requirementCols+` FROM kit_requirement WHERE id = $1`, id))
}

func (r *requirementRepoPG) Update(ctx context.Context, req *KitRequirement) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE kit_requirement SET visit_schedule_id=$2, drug_id=$3, kit_type=$4,
			quantity=$5, updated_at=NOW()
		WHERE id = $1`,
		req.ID, req.VisitScheduleID, req.DrugID, req.KitType, req.Quantity)
	return err
}

func (r *requirementRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM kit_requirement WHERE id = $1`, id)
	return err
}

func (r *requirementRepoPG) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*KitRequirement, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+requirementCols+` FROM kit_requirement WHERE study_id = $1 ORDER BY kit_type`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*KitRequirement
	for rows.Next() {
		req, err := r.scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, nil
}

// =========== Recommendation Repository ===========

type recommendationRepoPG struct{ pool *pgxpool.Pool }

func NewRecommendationRepoPG(pool *pgxpool.Pool) RecommendationRepository {
	return &recommendationRepoPG{pool: pool}
}

func (r *recommendationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recommendationCols = `id, study_id, kit_type, quantity_needed, horizon_end_date, status, created_at, updated_at`

func (r *recommendationRepoPG) scanRecommendation(row pgx.Row) (*LabKitRecommendation, error) {
	var rec LabKitRecommendation
	err := row.Scan(&rec.ID, &rec.StudyID, &rec.KitType, &rec.QuantityNeeded,
		&rec.HorizonEndDate, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	return &rec, err
}

func (r *recommendationRepoPG) Create(ctx context.Context, rec *LabKitRecommendation) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_kit_recommendation (id, study_id, kit_type, quantity_needed, horizon_end_date, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.StudyID, rec.KitType, rec.QuantityNeeded, rec.HorizonEndDate, rec.Status)
	return err
}

func (r *recommendationRepoPG) Update(ctx context.Context, rec *LabKitRecommendation) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_kit_recommendation SET quantity_needed=$2, horizon_end_date=$3,
			status=$4, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.QuantityNeeded, rec.HorizonEndDate, rec.Status)
	return err
}

func (r *recommendationRepoPG) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*LabKitRecommendation, error) {
	return r.list(ctx, `SELECT `+recommendationCols+` FROM lab_kit_recommendation WHERE study_id = $1 ORDER BY kit_type`, studyID)
}

func (r *recommendationRepoPG) ListActiveByStudy(ctx context.Context, studyID uuid.UUID) ([]*LabKitRecommendation, error) {
	return r.list(ctx, `SELECT `+recommendationCols+` FROM lab_kit_recommendation WHERE study_id = $1 AND status = '`+RecommendationActive+`' ORDER BY kit_type`, studyID)
}

func (r *recommendationRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*LabKitRecommendation, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LabKitRecommendation
	for rows.Next() {
		rec, err := r.scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, nil
}
