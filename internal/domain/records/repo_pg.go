package records

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type recordsRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &recordsRepoPG{pool: pool}
}

func (r *recordsRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *recordsRepoPG) CreateVital(ctx context.Context, v *VitalRecord) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vital_records (id, patient_id, type, value, numeric_value, unit, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		v.ID, v.PatientID, v.Type, v.Value, v.NumericValue, v.Unit, v.RecordedAt)
	return err
}

func (r *recordsRepoPG) ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]*VitalRecord, error) {
	q := `SELECT id, patient_id, type, value, numeric_value, unit, recorded_at
		FROM vital_records
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY recorded_at DESC, id DESC`
	args := []interface{}{patientID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*VitalRecord
	for rows.Next() {
		var v VitalRecord
		if err := rows.Scan(&v.ID, &v.PatientID, &v.Type, &v.Value, &v.NumericValue, &v.Unit, &v.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (r *recordsRepoPG) CreateLab(ctx context.Context, l *LabResult) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_results (id, patient_id, test_name, value, numeric_value, unit, reference_range, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		l.ID, l.PatientID, l.TestName, l.Value, l.NumericValue, l.Unit, l.ReferenceRange, l.RecordedAt)
	return err
}

func (r *recordsRepoPG) ListLabs(ctx context.Context, patientID uuid.UUID, limit int) ([]*LabResult, error) {
	q := `SELECT id, patient_id, test_name, value, numeric_value, unit, reference_range, recorded_at
		FROM lab_results
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY recorded_at DESC, id DESC`
	args := []interface{}{patientID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*LabResult
	for rows.Next() {
		var l LabResult
		if err := rows.Scan(&l.ID, &l.PatientID, &l.TestName, &l.Value, &l.NumericValue, &l.Unit, &l.ReferenceRange, &l.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *recordsRepoPG) CreateConsultation(ctx context.Context, c *Consultation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultations (id, patient_id, doctor_id, date, symptoms, notes)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.PatientID, c.DoctorID, c.Date, c.Symptoms, c.Notes)
	return err
}

const consultCols = `c.id, c.patient_id, c.doctor_id, c.date, c.symptoms, c.notes,
	u.id, u.name, u.email, u.role`

func scanConsultWithDoctor(rows pgx.Rows) (*Consultation, error) {
	var c Consultation
	var d DoctorRef
	err := rows.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.Date, &c.Symptoms, &c.Notes,
		&d.ID, &d.Name, &d.Email, &d.Role)
	if err != nil {
		return nil, err
	}
	c.Doctor = &d
	return &c, nil
}

func (r *recordsRepoPG) ListConsultations(ctx context.Context, patientID uuid.UUID, cur pagination.Cursor) ([]*Consultation, *uuid.UUID, error) {
	q := `SELECT ` + consultCols + `
		FROM consultations c
		JOIN users u ON u.id = c.doctor_id
		WHERE c.patient_id = $1 AND c.deleted_at IS NULL`
	args := []interface{}{patientID}

	if cur.After != nil {
		var at time.Time
		err := r.conn(ctx).QueryRow(ctx,
			`SELECT date FROM consultations WHERE id = $1 AND patient_id = $2`,
			*cur.After, patientID).Scan(&at)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, httperr.Validation(map[string]string{"cursor": "unknown cursor"})
			}
			return nil, nil, err
		}
		q += ` AND (c.date, c.id) < ($2, $3)`
		args = append(args, at, *cur.After)
	}

	q += ` ORDER BY c.date DESC, c.id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, cur.Limit+1)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var out []*Consultation
	for rows.Next() {
		c, err := scanConsultWithDoctor(rows)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *uuid.UUID
	if len(out) > cur.Limit {
		out = out[:cur.Limit]
		id := out[len(out)-1].ID
		next = &id
	}
	return out, next, nil
}

func (r *recordsRepoPG) RecentConsultations(ctx context.Context, patientID uuid.UUID, limit int) ([]*Consultation, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, doctor_id, date, symptoms, notes
		FROM consultations
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY date DESC, id DESC
		LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Consultation
	for rows.Next() {
		var c Consultation
		if err := rows.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.Date, &c.Symptoms, &c.Notes); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
