package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckHealth pings the database with a short deadline and reports whether
// it responded.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return pool.Ping(ctx) == nil
}
