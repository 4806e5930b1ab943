package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/pkg/pagination"
)

type Repository interface {
	CreateVital(ctx context.Context, v *VitalRecord) error
	// ListVitals returns up to limit rows ordered recorded_at desc; limit <= 0
	// means no cap.
	ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]*VitalRecord, error)

	CreateLab(ctx context.Context, l *LabResult) error
	ListLabs(ctx context.Context, patientID uuid.UUID, limit int) ([]*LabResult, error)

	CreateConsultation(ctx context.Context, c *Consultation) error
	// ListConsultations pages date desc with id tiebreak and joins the doctor
	// projection.
	ListConsultations(ctx context.Context, patientID uuid.UUID, cur pagination.Cursor) ([]*Consultation, *uuid.UUID, error)
	// RecentConsultations returns up to limit rows date desc without the
	// doctor join, for the summary input builder.
	RecentConsultations(ctx context.Context, patientID uuid.UUID, limit int) ([]*Consultation, error)
}
