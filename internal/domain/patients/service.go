package patients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/domain/audit"
	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/pkg/pagination"
)

const (
	maxNameLen  = 100
	minPhoneLen = 6
	maxPhoneLen = 30
)

type Service struct {
	repo  Repository
	audit *audit.Service
}

func NewService(repo Repository, auditSvc *audit.Service) *Service {
	return &Service{repo: repo, audit: auditSvc}
}

// CreateInput carries the writable patient fields.
type CreateInput struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	DateOfBirth string  `json:"dateOfBirth"`
	Gender      Gender  `json:"gender"`
	Phone       *string `json:"phone"`
}

func (in *CreateInput) validate() (time.Time, map[string]string) {
	fields := map[string]string{}

	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.FirstName == "" || len(in.FirstName) > maxNameLen {
		fields["firstName"] = fmt.Sprintf("required, at most %d characters", maxNameLen)
	}
	if in.LastName == "" || len(in.LastName) > maxNameLen {
		fields["lastName"] = fmt.Sprintf("required, at most %d characters", maxNameLen)
	}

	var dob time.Time
	if in.DateOfBirth == "" {
		fields["dateOfBirth"] = "required"
	} else {
		var err error
		dob, err = time.Parse("2006-01-02", in.DateOfBirth)
		if err != nil {
			dob, err = time.Parse(time.RFC3339, in.DateOfBirth)
		}
		switch {
		case err != nil:
			fields["dateOfBirth"] = "must be a date (YYYY-MM-DD)"
		case dob.After(time.Now().UTC()):
			fields["dateOfBirth"] = "must not be in the future"
		}
	}

	if !in.Gender.Valid() {
		fields["gender"] = "must be one of MALE, FEMALE, OTHER"
	}

	if in.Phone != nil {
		p := strings.TrimSpace(*in.Phone)
		if p == "" {
			in.Phone = nil
		} else if len(p) < minPhoneLen || len(p) > maxPhoneLen {
			fields["phone"] = fmt.Sprintf("must be between %d and %d characters", minPhoneLen, maxPhoneLen)
		} else {
			in.Phone = &p
		}
	}

	return dob, fields
}

func (s *Service) Create(ctx context.Context, actorID uuid.UUID, in CreateInput) (*Patient, error) {
	dob, fields := in.validate()
	if len(fields) > 0 {
		return nil, httperr.Validation(fields)
	}

	clinicID := db.ClinicFromContext(ctx)
	p := &Patient{
		ClinicID:    clinicID,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		DateOfBirth: dob,
		Gender:      in.Gender,
		Phone:       in.Phone,
	}

	err := db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.audit.Record(ctx, clinicID, actorID, "PATIENT_CREATE", "Patient", p.ID)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, db.ClinicFromContext(ctx), id)
}

func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, in CreateInput) (*Patient, error) {
	dob, fields := in.validate()
	if len(fields) > 0 {
		return nil, httperr.Validation(fields)
	}

	clinicID := db.ClinicFromContext(ctx)
	p, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	p.FirstName = in.FirstName
	p.LastName = in.LastName
	p.DateOfBirth = dob
	p.Gender = in.Gender
	p.Phone = in.Phone

	err = db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.audit.Record(ctx, clinicID, actorID, "PATIENT_UPDATE", "Patient", p.ID)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Archive soft-deletes; archived patients disappear from every read path.
func (s *Service) Archive(ctx context.Context, actorID, id uuid.UUID) error {
	clinicID := db.ClinicFromContext(ctx)
	return db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Archive(ctx, clinicID, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, clinicID, actorID, "PATIENT_ARCHIVE", "Patient", id)
	})
}

func (s *Service) List(ctx context.Context, cur pagination.Cursor) ([]*Patient, *uuid.UUID, error) {
	return s.repo.ListCursor(ctx, db.ClinicFromContext(ctx), cur)
}
