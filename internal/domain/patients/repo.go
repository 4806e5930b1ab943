package patients

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Archive(ctx context.Context, clinicID, id uuid.UUID) error
	// ListCursor returns one page ordered by created_at desc with id as the
	// tiebreak, plus the next cursor when more rows exist.
	ListCursor(ctx context.Context, clinicID uuid.UUID, cur pagination.Cursor) ([]*Patient, *uuid.UUID, error)

	// Portal credential operations. The ByInviteToken and ByEmail lookups run
	// without a clinic binding: they serve public auth endpoints.
	SetInvite(ctx context.Context, clinicID, id uuid.UUID, token uuid.UUID, expiresAt time.Time) error
	GetByInviteToken(ctx context.Context, token uuid.UUID) (*Patient, error)
	SetCredentials(ctx context.Context, id uuid.UUID, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, phone *string) error
}
