package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	// GetByEmail runs without a clinic filter: emails are unique across the
	// system and logins happen before any clinic binding exists.
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*User, error)
}
