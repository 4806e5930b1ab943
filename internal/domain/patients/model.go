package patients

import (
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

// Patient maps to the patients table. Credential fields (password hash,
// invite token) never serialize; they exist only for the portal onboarding
// flow.
type Patient struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ClinicID        uuid.UUID  `db:"clinic_id" json:"clinicId"`
	FirstName       string     `db:"first_name" json:"firstName"`
	LastName        string     `db:"last_name" json:"lastName"`
	DateOfBirth     time.Time  `db:"date_of_birth" json:"dateOfBirth"`
	Gender          Gender     `db:"gender" json:"gender"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Email           *string    `db:"email" json:"email,omitempty"`
	PasswordHash    *string    `db:"password_hash" json:"-"`
	InviteToken     *uuid.UUID `db:"invite_token" json:"-"`
	InviteExpiresAt *time.Time `db:"invite_expires_at" json:"-"`
	IsArchived      bool       `db:"is_archived" json:"isArchived"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}

// FullName returns "First Last" for display projections.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// HasCredentials reports whether the patient can already sign in to the
// portal.
func (p *Patient) HasCredentials() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}

// Age returns whole years at now, or -1 when the birth date is unset.
func (p *Patient) Age(now time.Time) int {
	if p.DateOfBirth.IsZero() {
		return -1
	}
	now = now.UTC()
	dob := p.DateOfBirth.UTC()
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return -1
	}
	return years
}
