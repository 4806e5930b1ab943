package ai

import (
	"time"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/domain/analytics"
)

// AISummary is one generated clinical summary with its deterministic risk
// assessment.
type AISummary struct {
	ID          uuid.UUID           `db:"id" json:"id"`
	PatientID   uuid.UUID           `db:"patient_id" json:"patientId"`
	SummaryText string              `db:"summary_text" json:"summaryText"`
	RiskFlags   analytics.RiskFlags `db:"risk_flags" json:"riskFlags"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
	DeletedAt   *time.Time          `db:"deleted_at" json:"-"`
}

// JobPayload travels through the queue. It carries identifiers only; the
// worker re-reads fresh clinical data when it runs.
type JobPayload struct {
	ClinicID  uuid.UUID `json:"clinicId"`
	PatientID uuid.UUID `json:"patientId"`
	UserID    uuid.UUID `json:"userId"`
}
