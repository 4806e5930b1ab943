package records

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/domain/audit"
	"github.com/medibrief/medibrief/internal/domain/patients"
	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/pkg/pagination"
)

// WriteHook runs after a successful clinical write; the AI pipeline uses it
// to evict the patient's structured-input cache entry.
type WriteHook func(ctx context.Context, patientID uuid.UUID)

type Service struct {
	repo     Repository
	patients patients.Repository
	audit    *audit.Service
	onWrite  WriteHook
}

func NewService(repo Repository, patientRepo patients.Repository, auditSvc *audit.Service) *Service {
	return &Service{repo: repo, patients: patientRepo, audit: auditSvc}
}

// SetWriteHook attaches the post-write callback. Optional.
func (s *Service) SetWriteHook(h WriteHook) { s.onWrite = h }

func (s *Service) notifyWrite(ctx context.Context, patientID uuid.UUID) {
	if s.onWrite != nil {
		s.onWrite(ctx, patientID)
	}
}

// requirePatient confirms the patient exists in the caller's clinic. A
// cross-tenant id gets the same not-found as a missing one.
func (s *Service) requirePatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := s.patients.GetByID(ctx, db.ClinicFromContext(ctx), patientID)
	return err
}

func parseRecordedAt(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Now().UTC(), true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

type VitalInput struct {
	PatientID  string  `json:"patientId"`
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Unit       *string `json:"unit"`
	RecordedAt string  `json:"recordedAt"`
}

func (s *Service) CreateVital(ctx context.Context, actorID uuid.UUID, in VitalInput) (*VitalRecord, error) {
	fields := map[string]string{}
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		fields["patientId"] = "must be a valid id"
	}
	vt := VitalType(strings.ToUpper(strings.TrimSpace(in.Type)))
	if !vt.Valid() {
		fields["type"] = "must be one of BP, GLUCOSE, HEART_RATE, WEIGHT"
	}
	if strings.TrimSpace(in.Value) == "" {
		fields["value"] = "required"
	}
	recordedAt, ok := parseRecordedAt(in.RecordedAt)
	if !ok {
		fields["recordedAt"] = "must be a timestamp"
	}
	if len(fields) > 0 {
		return nil, httperr.Validation(fields)
	}

	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}

	v := &VitalRecord{
		PatientID:    patientID,
		Type:         vt,
		Value:        in.Value,
		NumericValue: ParseNumeric(in.Value),
		Unit:         in.Unit,
		RecordedAt:   recordedAt,
	}
	clinicID := db.ClinicFromContext(ctx)
	err = db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateVital(ctx, v); err != nil {
			return err
		}
		return s.audit.Record(ctx, clinicID, actorID, "VITAL_CREATE", "VitalRecord", v.ID)
	})
	if err != nil {
		return nil, err
	}
	s.notifyWrite(ctx, patientID)
	return v, nil
}

func (s *Service) ListVitals(ctx context.Context, patientID uuid.UUID) ([]*VitalRecord, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListVitals(ctx, patientID, 0)
}

type LabInput struct {
	PatientID      string  `json:"patientId"`
	TestName       string  `json:"testName"`
	Value          string  `json:"value"`
	Unit           *string `json:"unit"`
	ReferenceRange *string `json:"referenceRange"`
	RecordedAt     string  `json:"recordedAt"`
}

func (s *Service) CreateLab(ctx context.Context, actorID uuid.UUID, in LabInput) (*LabResult, error) {
	fields := map[string]string{}
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		fields["patientId"] = "must be a valid id"
	}
	if strings.TrimSpace(in.TestName) == "" {
		fields["testName"] = "required"
	}
	if strings.TrimSpace(in.Value) == "" {
		fields["value"] = "required"
	}
	recordedAt, ok := parseRecordedAt(in.RecordedAt)
	if !ok {
		fields["recordedAt"] = "must be a timestamp"
	}
	if len(fields) > 0 {
		return nil, httperr.Validation(fields)
	}

	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}

	l := &LabResult{
		PatientID:      patientID,
		TestName:       in.TestName,
		Value:          in.Value,
		NumericValue:   ParseNumeric(in.Value),
		Unit:           in.Unit,
		ReferenceRange: in.ReferenceRange,
		RecordedAt:     recordedAt,
	}
	clinicID := db.ClinicFromContext(ctx)
	err = db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateLab(ctx, l); err != nil {
			return err
		}
		return s.audit.Record(ctx, clinicID, actorID, "LAB_CREATE", "LabResult", l.ID)
	})
	if err != nil {
		return nil, err
	}
	s.notifyWrite(ctx, patientID)
	return l, nil
}

func (s *Service) ListLabs(ctx context.Context, patientID uuid.UUID) ([]*LabResult, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListLabs(ctx, patientID, 0)
}

type ConsultationInput struct {
	PatientID string `json:"patientId"`
	Date      string `json:"date"`
	Symptoms  string `json:"symptoms"`
	Notes     string `json:"notes"`
}

// CreateConsultation records a visit authored by the calling doctor; the
// author is taken from the token, never the body.
func (s *Service) CreateConsultation(ctx context.Context, actorID uuid.UUID, in ConsultationInput) (*Consultation, error) {
	fields := map[string]string{}
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		fields["patientId"] = "must be a valid id"
	}
	if strings.TrimSpace(in.Symptoms) == "" {
		fields["symptoms"] = "required"
	}
	date, ok := parseRecordedAt(in.Date)
	if !ok {
		fields["date"] = "must be a timestamp"
	}
	if len(fields) > 0 {
		return nil, httperr.Validation(fields)
	}

	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}

	c := &Consultation{
		PatientID: patientID,
		DoctorID:  actorID,
		Date:      date,
		Symptoms:  in.Symptoms,
		Notes:     in.Notes,
	}
	clinicID := db.ClinicFromContext(ctx)
	err = db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateConsultation(ctx, c); err != nil {
			return err
		}
		return s.audit.Record(ctx, clinicID, actorID, "CONSULTATION_CREATE", "Consultation", c.ID)
	})
	if err != nil {
		return nil, err
	}
	s.notifyWrite(ctx, patientID)
	return c, nil
}

func (s *Service) ListConsultations(ctx context.Context, patientID uuid.UUID, cur pagination.Cursor) ([]*Consultation, *uuid.UUID, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, nil, err
	}
	return s.repo.ListConsultations(ctx, patientID, cur)
}
