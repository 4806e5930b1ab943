package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/medibrief/medibrief/internal/platform/httperr"
)

type contextKey string

const (
	ClinicIDKey contextKey = "clinic_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
)

// ClinicBinder returns middleware that binds the authenticated principal's
// clinic id to a dedicated database connection for the lifetime of the
// request. The binding sets the app.clinic_id session variable that every
// row-level security policy filters on, so even a buggy query cannot cross
// a tenant boundary. clinicIDOf extracts the clinic id established by the
// auth middleware; requests without one are rejected before any query runs.
func ClinicBinder(pool *pgxpool.Pool, clinicIDOf func(echo.Context) (uuid.UUID, bool)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clinicID, ok := clinicIDOf(c)
			if !ok || clinicID == uuid.Nil {
				return httperr.New(httperr.KindForbidden, "no clinic context")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return httperr.Wrap(httperr.KindUnavailable, "database unavailable", err)
			}
			defer func() {
				// Clear the binding before the connection returns to the
				// pool so a later request cannot inherit it.
				_, _ = conn.Exec(context.Background(), `SELECT set_config('app.clinic_id', '', false)`)
				conn.Release()
			}()

			_, err = conn.Exec(ctx, `SELECT set_config('app.clinic_id', $1, false)`, clinicID.String())
			if err != nil {
				return httperr.Wrap(httperr.KindForbidden, "clinic binding failed", err)
			}

			ctx = context.WithValue(ctx, ClinicIDKey, clinicID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// ConnFromContext retrieves the clinic-bound database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TxFromContext retrieves the active transaction from context.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// ClinicFromContext retrieves the bound clinic id from context.
func ClinicFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ClinicIDKey).(uuid.UUID)
	return id
}

// WithTx begins a transaction on the clinic-bound connection and returns a
// derived context carrying it. The clinic binding made by ClinicBinder is
// session-scoped, so it applies inside the transaction as well.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, fmt.Errorf("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// RunInPoolTx executes fn inside a transaction taken directly from the
// pool, for flows that run before any clinic binding exists (registration,
// logins). Repositories pick the transaction up from the context.
func RunInPoolTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if pool == nil {
		return fn(ctx)
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// RunInTx executes fn inside a transaction on the clinic-bound connection,
// committing on success and rolling back on error. Without a bound
// connection (background workers, tests) fn runs directly and each
// statement commits on its own.
func RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ConnFromContext(ctx) == nil {
		return fn(ctx)
	}
	txCtx, tx, err := WithTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
