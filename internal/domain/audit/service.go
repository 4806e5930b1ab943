package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibrief/medibrief/internal/platform/db"
)

// Service scrubs and appends audit entries. Append failures outside a
// transaction are logged rather than surfaced so the mutation they describe
// still succeeds; inside a transaction the caller decides.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record appends one scrubbed audit entry. The returned error is non-nil
// only when the append itself failed; callers inside a transaction should
// treat that as fatal for the transaction.
func (s *Service) Record(ctx context.Context, clinicID, userID uuid.UUID, action, entityType string, entityID uuid.UUID) error {
	e := &Entry{
		ClinicID:   clinicID,
		UserID:     userID,
		Action:     Scrub(action),
		EntityType: entityType,
		EntityID:   entityID,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.repo.Append(ctx, e); err != nil {
		s.logger.Error().Err(err).Str("action", e.Action).Msg("audit append failed")
		return err
	}
	return nil
}

// RecordBestEffort is Record for non-transactional paths: failures are
// swallowed after logging.
func (s *Service) RecordBestEffort(ctx context.Context, clinicID, userID uuid.UUID, action, entityType string, entityID uuid.UUID) {
	_ = s.Record(ctx, clinicID, userID, action, entityType, entityID)
}

// List returns one page of the bound clinic's audit trail. The clinic
// filter is applied here as well as by row-level security.
func (s *Service) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	f.ClinicID = db.ClinicFromContext(ctx)
	return s.repo.List(ctx, f)
}
