package audit

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Entry is one append-only audit record. Action text is scrubbed before
// persistence so the trail never stores PHI.
type Entry struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ClinicID   uuid.UUID `db:"clinic_id" json:"-"`
	UserID     uuid.UUID `db:"user_id" json:"userId"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   uuid.UUID `db:"entity_id" json:"entityId"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
}

var (
	uuidPattern  = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	// Six or more digits, optionally separated by spaces, dashes, dots or
	// parentheses, with an optional leading +. Catches phone numbers without
	// eating short counts like "3 vitals".
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{4,}\d`)
)

const redacted = "[REDACTED]"

// Scrub removes identifier-shaped substrings (UUIDs, emails, phone number
// runs) from free-text action strings.
func Scrub(s string) string {
	s = uuidPattern.ReplaceAllString(s, redacted)
	s = emailPattern.ReplaceAllString(s, redacted)
	s = phonePattern.ReplaceAllStringFunc(s, func(m string) string {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 6 {
			return redacted
		}
		return m
	})
	return s
}
