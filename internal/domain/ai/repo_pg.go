package ai

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibrief/medibrief/internal/domain/analytics"
	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type summaryRepoPG struct{ pool *pgxpool.Pool }

func NewSummaryRepoPG(pool *pgxpool.Pool) SummaryRepository {
	return &summaryRepoPG{pool: pool}
}

func (r *summaryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *summaryRepoPG) Create(ctx context.Context, s *AISummary) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	flags, err := json.Marshal(s.RiskFlags)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ai_summaries (id, patient_id, summary_text, risk_flags)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		s.ID, s.PatientID, s.SummaryText, flags).
		Scan(&s.CreatedAt)
}

func scanSummary(row pgx.Row) (*AISummary, error) {
	var s AISummary
	var flags []byte
	err := row.Scan(&s.ID, &s.PatientID, &s.SummaryText, &flags, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httperr.New(httperr.KindNotFound, "summary not found")
		}
		return nil, err
	}
	if err := json.Unmarshal(flags, &s.RiskFlags); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *summaryRepoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*AISummary, error) {
	return scanSummary(r.conn(ctx).QueryRow(ctx, `
		SELECT s.id, s.patient_id, s.summary_text, s.risk_flags, s.created_at
		FROM ai_summaries s
		JOIN patients p ON p.id = s.patient_id
		WHERE s.id = $1 AND p.clinic_id = $2 AND s.deleted_at IS NULL`, id, clinicID))
}

func (r *summaryRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*AISummary, error) {
	q := `SELECT id, patient_id, summary_text, risk_flags, created_at
		FROM ai_summaries
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`
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

	var out []*AISummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *summaryRepoPG) LatestSummaryRisks(ctx context.Context) ([]analytics.SummaryRisk, error) {
	clinicID := db.ClinicFromContext(ctx)
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT ON (s.patient_id)
			s.patient_id, p.first_name || ' ' || p.last_name, s.risk_flags, s.created_at
		FROM ai_summaries s
		JOIN patients p ON p.id = s.patient_id
		WHERE p.clinic_id = $1 AND p.is_archived = false AND s.deleted_at IS NULL
		ORDER BY s.patient_id, s.created_at DESC`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []analytics.SummaryRisk
	for rows.Next() {
		var sr analytics.SummaryRisk
		var flags []byte
		if err := rows.Scan(&sr.PatientID, &sr.PatientName, &flags, &sr.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(flags, &sr.Flags); err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}
