package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibrief/medibrief/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type auditRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &auditRepoPG{pool: pool}
}

func (r *auditRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *auditRepoPG) Append(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO audit_log (id, clinic_id, user_id, action, entity_type, entity_id, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.ClinicID, e.UserID, e.Action, e.EntityType, e.EntityID, e.Timestamp)
	return err
}

func (r *auditRepoPG) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	n := 0
	add := func(cond string, v interface{}) {
		n++
		where += fmt.Sprintf(" AND "+cond, n)
		args = append(args, v)
	}
	// The clinic predicate is unconditional; row-level security is the
	// second wall, not the only one.
	add("clinic_id = $%d", f.ClinicID)
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM audit_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, clinic_id, user_id, action, entity_type, entity_id, timestamp
		FROM audit_log %s
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ClinicID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}
