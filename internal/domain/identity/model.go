package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/platform/auth"
)

// User is a staff principal (ADMIN or DOCTOR). Patients authenticate
// through their patient row instead.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ClinicID     uuid.UUID `db:"clinic_id" json:"clinicId"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	IsArchived   bool      `db:"is_archived" json:"isArchived"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
