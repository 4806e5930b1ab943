package audit

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows audit listings. ClinicID always applies; the other zero
// values match everything.
type Filter struct {
	ClinicID   uuid.UUID
	Action     string
	EntityType string
	UserID     *uuid.UUID
	Limit      int
	Offset     int
}

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) ([]*Entry, int, error)
}
