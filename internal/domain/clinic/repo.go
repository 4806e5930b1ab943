package clinic

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	// ResetBillingPeriodIfStale zeroes the call counter and re-anchors the
	// billing period when now falls in a later UTC month than the stored
	// anchor. Returns the clinic as of after the (possible) reset.
	ResetBillingPeriodIfStale(ctx context.Context, id uuid.UUID) (*Clinic, error)
	// IncrementAICalls bumps the monotonic call counter. At-least-once
	// semantics: over-counting under retry is acceptable.
	IncrementAICalls(ctx context.Context, id uuid.UUID) error
}
