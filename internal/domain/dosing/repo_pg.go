package dosing

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

// =========== Drug Repository ===========

type drugRepoPG struct{ pool *pgxpool.Pool }

func NewDrugRepoPG(pool *pgxpool.Pool) DrugRepository {
	return &drugRepoPG{pool: pool}
}

func (r *drugRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const drugCols = `id, study_id, name, dose_per_day, note, created_at, updated_at`

func (r *drugRepoPG) scanDrug(row pgx.Row) (*Drug, error) {
	var d Drug
	err := row.Scan(&d.ID, &d.StudyID, &d.Name, &d.DosePerDay, &d.Note, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *drugRepoPG) Create(ctx context.Context, d *Drug) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO drug (id, study_id, name, dose_per_day, note)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.StudyID, d.Name, d.DosePerDay, d.Note)
	return err
}

func (r *drugRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Drug, error) {
	return r.scanDrug(r.conn(ctx).QueryRow(ctx, `SELECT `+drugCols+` FROM drug WHERE id = $1`, id))
}

func (r *drugRepoPG) Update(ctx context.Context, d *Drug) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE drug SET name=$2, dose_per_day=$3, note=$4, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.DosePerDay, d.Note)
	return err
}

func (r *drugRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM drug WHERE id = $1`, id)
	return err
}

func (r *drugRepoPG) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*Drug, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+drugCols+` FROM drug WHERE study_id = $1 ORDER BY name`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Drug
	for rows.Next() {
		d, err := r.scanDrug(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, nil
}

// =========== Cycle Repository ===========

type cycleRepoPG struct{ pool *pgxpool.Pool }

func NewCycleRepoPG(pool *pgxpool.Pool) CycleRepository {
	return &cycleRepoPG{pool: pool}
}

func (r *cycleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const cycleCols = `id, subject_id, drug_id, visit_id, dispensing_date, last_dose_date,
	tablets_dispensed, tablets_returned, note, created_at, updated_at`

func (r *cycleRepoPG) scanCycle(row pgx.Row) (*DrugCycle, error) {
	var c DrugCycle
	err := row.Scan(&c.ID, &c.SubjectID, &c.DrugID, &c.VisitID, &c.DispensingDate, &c.LastDoseDate,
		&c.TabletsDispensed, &c.TabletsReturned, &c.Note, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *cycleRepoPG) Create(ctx context.Context, c *DrugCycle) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO drug_cycle (id, subject_id, drug_id, visit_id, dispensing_date,
			last_dose_date, tablets_dispensed, tablets_returned, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.SubjectID, c.DrugID, c.VisitID, c.DispensingDate,
		c.LastDoseDate, c.TabletsDispensed, c.TabletsReturned, c.Note)
	return err
}

func (r *cycleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DrugCycle, error) {
	return r.scanCycle(r.conn(ctx).QueryRow(ctx, `SELECT `+cycleCols+` FROM drug_cycle WHERE id = $1`, id))
}

func (r *cycleRepoPG) Update(ctx context.Context, c *DrugCycle) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE drug_cycle SET visit_id=$2, dispensing_date=$3, last_dose_date=$4,
			tablets_dispensed=$5, tablets_returned=$6, note=$7, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.VisitID, c.DispensingDate, c.LastDoseDate,
		c.TabletsDispensed, c.TabletsReturned, c.Note)
	return err
}

func (r *cycleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM drug_cycle WHERE id = $1`, id)
	return err
}

func (r *cycleRepoPG) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*DrugCycle, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+cycleCols+` FROM drug_cycle WHERE subject_id = $1 ORDER BY dispensing_date`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *cycleRepoPG) ListOpenByStudy(ctx context.Context, studyID uuid.UUID) ([]*DrugCycle, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT c.id, c.subject_id, c.drug_id, c.visit_id, c.dispensing_date, c.last_dose_date,
			c.tablets_dispensed, c.tablets_returned, c.note, c.created_at, c.updated_at
		FROM drug_cycle c
		JOIN subject s ON s.id = c.subject_id
		WHERE s.study_id = $1 AND c.last_dose_date IS NULL
		ORDER BY c.dispensing_date`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *cycleRepoPG) collect(rows pgx.Rows) ([]*DrugCycle, error) {
	var items []*DrugCycle
	for rows.Next() {
		c, err := r.scanCycle(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
