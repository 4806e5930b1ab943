package ai

import (
	"context"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/domain/analytics"
)

type SummaryRepository interface {
	Create(ctx context.Context, s *AISummary) error
	// GetByID scopes through the patient's clinic; a summary from another
	// clinic is indistinguishable from a missing one.
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*AISummary, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*AISummary, error)
	// LatestSummaryRisks feeds the clinic risk roll-up: the newest
	// non-deleted summary per patient in the bound clinic.
	LatestSummaryRisks(ctx context.Context) ([]analytics.SummaryRisk, error)
}
