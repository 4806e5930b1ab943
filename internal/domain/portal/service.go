package portal

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/domain/ai"
	"github.com/medibrief/medibrief/internal/domain/analytics"
	"github.com/medibrief/medibrief/internal/domain/audit"
	"github.com/medibrief/medibrief/internal/domain/patients"
	"github.com/medibrief/medibrief/internal/domain/records"
	"github.com/medibrief/medibrief/internal/platform/auth"
	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/pkg/pagination"
)

const minPasswordLen = 8

// Service serves PATIENT-role principals their own clinical data. Every
// read keys on the principal's own id; there is no path to another
// patient's rows.
type Service struct {
	patients  patients.Repository
	records   records.Repository
	analytics *analytics.Service
	summaries ai.SummaryRepository
	audit     *audit.Service
}

func NewService(
	patientRepo patients.Repository,
	recordsRepo records.Repository,
	analyticsSvc *analytics.Service,
	summaries ai.SummaryRepository,
	auditSvc *audit.Service,
) *Service {
	return &Service{
		patients:  patientRepo,
		records:   recordsRepo,
		analytics: analyticsSvc,
		summaries: summaries,
		audit:     auditSvc,
	}
}

// Profile is the patient-facing self view.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DateOfBirth string    `json:"dateOfBirth"`
	Gender      string    `json:"gender"`
	Phone       *string   `json:"phone,omitempty"`
	Email       *string   `json:"email,omitempty"`
}

func profileOf(p *patients.Patient) *Profile {
	return &Profile{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth.UTC().Format("2006-01-02"),
		Gender:      string(p.Gender),
		Phone:       p.Phone,
		Email:       p.Email,
	}
}

func (s *Service) self(ctx context.Context) (*patients.Patient, error) {
	p := auth.PrincipalFromContext(ctx)
	return s.patients.GetByID(ctx, db.ClinicFromContext(ctx), p.ID)
}

func (s *Service) Me(ctx context.Context) (*Profile, error) {
	p, err := s.self(ctx)
	if err != nil {
		return nil, err
	}
	return profileOf(p), nil
}

// ProfileUpdate carries the self-editable fields. Names, birth date, and
// gender stay clinic-managed.
type ProfileUpdate struct {
	Phone *string `json:"phone"`
}

func (s *Service) UpdateMe(ctx context.Context, in ProfileUpdate) (*Profile, error) {
	p, err := s.self(ctx)
	if err != nil {
		return nil, err
	}
	if in.Phone != nil {
		trimmed := strings.TrimSpace(*in.Phone)
		if trimmed != "" && (len(trimmed) < 6 || len(trimmed) > 30) {
			return nil, httperr.Validation(map[string]string{"phone": "must be 6-30 characters"})
		}
		if trimmed == "" {
			in.Phone = nil
		} else {
			in.Phone = &trimmed
		}
	}

	err = db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.patients.UpdateProfile(ctx, p.ID, in.Phone); err != nil {
			return err
		}
		return s.audit.Record(ctx, p.ClinicID, p.ID, "PORTAL_PROFILE_UPDATE", "Patient", p.ID)
	})
	if err != nil {
		return nil, err
	}
	p.Phone = in.Phone
	return profileOf(p), nil
}

// SecurityUpdate rotates the portal password after proving the current one.
type SecurityUpdate struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Service) ChangePassword(ctx context.Context, in SecurityUpdate) error {
	if len(in.NewPassword) < minPasswordLen {
		return httperr.Validation(map[string]string{
			"newPassword": "must be at least 8 characters",
		})
	}

	p, err := s.self(ctx)
	if err != nil {
		return err
	}
	if !p.HasCredentials() || !auth.CheckPassword(in.CurrentPassword, *p.PasswordHash) {
		return httperr.New(httperr.KindForbidden, "current password is incorrect")
	}

	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	return db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.patients.UpdatePassword(ctx, p.ID, hash); err != nil {
			return err
		}
		return s.audit.Record(ctx, p.ClinicID, p.ID, "PORTAL_PASSWORD_CHANGE", "Patient", p.ID)
	})
}

// Vitals returns the principal's own vital history, newest first.
func (s *Service) Vitals(ctx context.Context) ([]*records.VitalRecord, error) {
	p, err := s.self(ctx)
	if err != nil {
		return nil, err
	}
	return s.records.ListVitals(ctx, p.ID, 0)
}

// Labs returns the principal's labs with their range classification.
func (s *Service) Labs(ctx context.Context) ([]analytics.LabFlagged, error) {
	p, err := s.self(ctx)
	if err != nil {
		return nil, err
	}
	labs, err := s.records.ListLabs(ctx, p.ID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]analytics.LabFlagged, 0, len(labs))
	for _, l := range labs {
		out = append(out, analytics.LabFlagged{
			LabResult: l,
			Status:    analytics.FlagLab(l.NumericValue, l.ReferenceRange),
		})
	}
	return out, nil
}

// Appointments pages the principal's consultations with the doctor
// projection joined on.
func (s *Service) Appointments(ctx context.Context, cur pagination.Cursor) ([]*records.Consultation, *uuid.UUID, error) {
	p, err := s.self(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s.records.ListConsultations(ctx, p.ID, cur)
}

// Analytics runs the full patient report against the principal's own data.
func (s *Service) Analytics(ctx context.Context) (*analytics.PatientReport, error) {
	p, err := s.self(ctx)
	if err != nil {
		return nil, err
	}
	return s.analytics.PatientReport(ctx, p.ID)
}

// Summaries lists the principal's generated summaries, newest first.
func (s *Service) Summaries(ctx context.Context) ([]*ai.AISummary, error) {
	p, err := s.self(ctx)
	if err != nil {
		return nil, err
	}
	return s.summaries.ListByPatient(ctx, p.ID, 0)
}
