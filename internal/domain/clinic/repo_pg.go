package clinic

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type clinicRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &clinicRepoPG{pool: pool}
}

func (r *clinicRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const clinicCols = `id, name, email, subscription_plan, ai_call_count, billing_period_start, created_at`

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.SubscriptionPlan,
		&c.AICallCount, &c.BillingPeriodStart, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httperr.New(httperr.KindNotFound, "clinic not found")
		}
		return nil, err
	}
	return &c, nil
}

func (r *clinicRepoPG) Create(ctx context.Context, c *Clinic) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinics (id, name, email, subscription_plan)
		VALUES ($1,$2,$3,$4)
		RETURNING ai_call_count, billing_period_start, created_at`,
		c.ID, c.Name, c.Email, c.SubscriptionPlan).
		Scan(&c.AICallCount, &c.BillingPeriodStart, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return httperr.New(httperr.KindConflict, "clinic email already registered")
		}
		return err
	}
	return nil
}

func (r *clinicRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return scanClinic(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clinicCols+` FROM clinics WHERE id = $1`, id))
}

func (r *clinicRepoPG) ResetBillingPeriodIfStale(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	// The month comparison happens in SQL so concurrent callers converge on
	// the same answer regardless of app-instance clock skew.
	return scanClinic(r.conn(ctx).QueryRow(ctx, `
		UPDATE clinics
		SET ai_call_count = CASE
				WHEN date_trunc('month', billing_period_start AT TIME ZONE 'UTC')
				   < date_trunc('month', now() AT TIME ZONE 'UTC')
				THEN 0 ELSE ai_call_count END,
			billing_period_start = CASE
				WHEN date_trunc('month', billing_period_start AT TIME ZONE 'UTC')
				   < date_trunc('month', now() AT TIME ZONE 'UTC')
				THEN now() ELSE billing_period_start END
		WHERE id = $1
		RETURNING `+clinicCols, id))
}

func (r *clinicRepoPG) IncrementAICalls(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE clinics SET ai_call_count = ai_call_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.New(httperr.KindNotFound, "clinic not found")
	}
	return nil
}
