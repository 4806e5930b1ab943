package portal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

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

type mockPatientRepo struct {
	patients map[uuid.UUID]*patients.Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: map[uuid.UUID]*patients.Patient{}}
}

func (m *mockPatientRepo) Create(_ context.Context, p *patients.Patient) error {
	p.ID = uuid.New()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, clinicID, id uuid.UUID) (*patients.Patient, error) {
	p, ok := m.patients[id]
	if !ok || p.ClinicID != clinicID || p.IsArchived {
		return nil, httperr.New(httperr.KindNotFound, "patient not found")
	}
	return p, nil
}

func (m *mockPatientRepo) Update(_ context.Context, _ *patients.Patient) error { return nil }
func (m *mockPatientRepo) Archive(_ context.Context, _, _ uuid.UUID) error     { return nil }
func (m *mockPatientRepo) ListCursor(_ context.Context, _ uuid.UUID, _ pagination.Cursor) ([]*patients.Patient, *uuid.UUID, error) {
	return nil, nil, nil
}
func (m *mockPatientRepo) SetInvite(_ context.Context, _, _ uuid.UUID, _ uuid.UUID, _ time.Time) error {
	return nil
}
func (m *mockPatientRepo) GetByInviteToken(_ context.Context, _ uuid.UUID) (*patients.Patient, error) {
	return nil, httperr.New(httperr.KindNotFound, "invite not found")
}
func (m *mockPatientRepo) SetCredentials(_ context.Context, _ uuid.UUID, _, _ string) error {
	return nil
}
func (m *mockPatientRepo) GetByEmail(_ context.Context, _ string) (*patients.Patient, error) {
	return nil, httperr.New(httperr.KindNotFound, "patient not found")
}

func (m *mockPatientRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	if p, ok := m.patients[id]; ok {
		p.PasswordHash = &hash
	}
	return nil
}

func (m *mockPatientRepo) UpdateProfile(_ context.Context, id uuid.UUID, phone *string) error {
	if p, ok := m.patients[id]; ok {
		p.Phone = phone
	}
	return nil
}

type mockRecordsRepo struct {
	vitals   []*records.VitalRecord
	labs     []*records.LabResult
	consults []*records.Consultation
}

func (m *mockRecordsRepo) CreateVital(_ context.Context, _ *records.VitalRecord) error { return nil }
func (m *mockRecordsRepo) ListVitals(_ context.Context, patientID uuid.UUID, _ int) ([]*records.VitalRecord, error) {
	var out []*records.VitalRecord
	for _, v := range m.vitals {
		if v.PatientID == patientID {
			out = append(out, v)
		}
	}
	return out, nil
}
func (m *mockRecordsRepo) CreateLab(_ context.Context, _ *records.LabResult) error { return nil }
func (m *mockRecordsRepo) ListLabs(_ context.Context, patientID uuid.UUID, _ int) ([]*records.LabResult, error) {
	var out []*records.LabResult
	for _, l := range m.labs {
		if l.PatientID == patientID {
			out = append(out, l)
		}
	}
	return out, nil
}
func (m *mockRecordsRepo) CreateConsultation(_ context.Context, _ *records.Consultation) error {
	return nil
}
func (m *mockRecordsRepo) ListConsultations(_ context.Context, patientID uuid.UUID, _ pagination.Cursor) ([]*records.Consultation, *uuid.UUID, error) {
	var out []*records.Consultation
	for _, c := range m.consults {
		if c.PatientID == patientID {
			out = append(out, c)
		}
	}
	return out, nil, nil
}
func (m *mockRecordsRepo) RecentConsultations(ctx context.Context, patientID uuid.UUID, _ int) ([]*records.Consultation, error) {
	list, _, err := m.ListConsultations(ctx, patientID, pagination.Cursor{})
	return list, err
}

type mockAuditRepo struct {
	entries []*audit.Entry
}

func (m *mockAuditRepo) Append(_ context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) List(_ context.Context, _ audit.Filter) ([]*audit.Entry, int, error) {
	return m.entries, len(m.entries), nil
}

type mockSummaryRepo struct {
	summaries []*ai.AISummary
}

func (m *mockSummaryRepo) Create(_ context.Context, s *ai.AISummary) error {
	s.ID = uuid.New()
	m.summaries = append(m.summaries, s)
	return nil
}
func (m *mockSummaryRepo) GetByID(_ context.Context, _, _ uuid.UUID) (*ai.AISummary, error) {
	return nil, httperr.New(httperr.KindNotFound, "summary not found")
}
func (m *mockSummaryRepo) ListByPatient(_ context.Context, patientID uuid.UUID, _ int) ([]*ai.AISummary, error) {
	var out []*ai.AISummary
	for _, s := range m.summaries {
		if s.PatientID == patientID {
			out = append(out, s)
		}
	}
	return out, nil
}
func (m *mockSummaryRepo) LatestSummaryRisks(_ context.Context) ([]analytics.SummaryRisk, error) {
	return nil, nil
}

type portalFixture struct {
	svc       *Service
	patients  *mockPatientRepo
	records   *mockRecordsRepo
	auditRepo *mockAuditRepo
	clinicID  uuid.UUID
	patientID uuid.UUID
}

func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()

	clinicID := uuid.New()
	pr := newMockPatientRepo()
	hash, err := auth.HashPassword("old-password")
	if err != nil {
		t.Fatal(err)
	}
	email := "amina@example.com"
	p := &patients.Patient{
		ClinicID:     clinicID,
		FirstName:    "Amina",
		LastName:     "Okafor",
		DateOfBirth:  time.Date(1979, 3, 14, 0, 0, 0, 0, time.UTC),
		Gender:       patients.GenderFemale,
		Email:        &email,
		PasswordHash: &hash,
	}
	if err := pr.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	rr := &mockRecordsRepo{}
	summaries := &mockSummaryRepo{}
	auditRepo := &mockAuditRepo{}
	auditSvc := audit.NewService(auditRepo, zerolog.Nop())
	analyticsSvc := analytics.NewService(rr, pr, summaries)

	return &portalFixture{
		svc:       NewService(pr, rr, analyticsSvc, summaries, auditSvc),
		patients:  pr,
		records:   rr,
		auditRepo: auditRepo,
		clinicID:  clinicID,
		patientID: p.ID,
	}
}

func (f *portalFixture) ctx() context.Context {
	ctx := context.WithValue(context.Background(), db.ClinicIDKey, f.clinicID)
	return auth.WithPrincipal(ctx, &auth.Principal{
		ID:       f.patientID,
		ClinicID: f.clinicID,
		Role:     auth.RolePatient,
	})
}

func TestPortalMe(t *testing.T) {
	f := newPortalFixture(t)

	p, err := f.svc.Me(f.ctx())
	if err != nil {
		t.Fatal(err)
	}
	if p.FirstName != "Amina" || p.DateOfBirth != "1979-03-14" {
		t.Errorf("profile = %+v", p)
	}
}

func TestPortalUpdatePhone(t *testing.T) {
	f := newPortalFixture(t)

	phone := " +44 20 7946 0123 "
	p, err := f.svc.UpdateMe(f.ctx(), ProfileUpdate{Phone: &phone})
	if err != nil {
		t.Fatal(err)
	}
	if p.Phone == nil || *p.Phone != "+44 20 7946 0123" {
		t.Errorf("phone = %v, want trimmed value", p.Phone)
	}

	short := "123"
	if _, err := f.svc.UpdateMe(f.ctx(), ProfileUpdate{Phone: &short}); httperr.KindOf(err) != httperr.KindValidation {
		t.Errorf("short phone: kind = %v, want validation", httperr.KindOf(err))
	}
}

func TestPortalChangePassword(t *testing.T) {
	f := newPortalFixture(t)

	err := f.svc.ChangePassword(f.ctx(), SecurityUpdate{
		CurrentPassword: "old-password",
		NewPassword:     "new-password-9",
	})
	if err != nil {
		t.Fatal(err)
	}

	stored := f.patients.patients[f.patientID].PasswordHash
	if stored == nil || !auth.CheckPassword("new-password-9", *stored) {
		t.Error("new password not persisted")
	}

	found := false
	for _, e := range f.auditRepo.entries {
		if e.Action == "PORTAL_PASSWORD_CHANGE" {
			found = true
		}
	}
	if !found {
		t.Error("password change must be audited")
	}
}

func TestPortalChangePasswordWrongCurrent(t *testing.T) {
	f := newPortalFixture(t)

	err := f.svc.ChangePassword(f.ctx(), SecurityUpdate{
		CurrentPassword: "not-the-password",
		NewPassword:     "new-password-9",
	})
	if httperr.KindOf(err) != httperr.KindForbidden {
		t.Errorf("kind = %v, want forbidden", httperr.KindOf(err))
	}
	if !auth.CheckPassword("old-password", *f.patients.patients[f.patientID].PasswordHash) {
		t.Error("password must stay unchanged after a rejected rotation")
	}
}

func TestPortalChangePasswordTooShort(t *testing.T) {
	f := newPortalFixture(t)
	err := f.svc.ChangePassword(f.ctx(), SecurityUpdate{
		CurrentPassword: "old-password",
		NewPassword:     "short",
	})
	if httperr.KindOf(err) != httperr.KindValidation {
		t.Errorf("kind = %v, want validation", httperr.KindOf(err))
	}
}

func TestPortalLabsFlagged(t *testing.T) {
	f := newPortalFixture(t)

	rng := "4.0-5.6"
	f.records.labs = append(f.records.labs,
		&records.LabResult{
			ID: uuid.New(), PatientID: f.patientID,
			TestName: "HbA1c", Value: "6.2", NumericValue: numPtr(6.2), ReferenceRange: &rng,
		},
		&records.LabResult{
			ID: uuid.New(), PatientID: f.patientID,
			TestName: "Culture", Value: "negative",
		},
	)

	labs, err := f.svc.Labs(f.ctx())
	if err != nil {
		t.Fatal(err)
	}
	if len(labs) != 2 {
		t.Fatalf("labs = %d, want 2", len(labs))
	}
	if labs[0].Status != analytics.FlagHigh {
		t.Errorf("HbA1c status = %q, want high", labs[0].Status)
	}
	if labs[1].Status != analytics.FlagUnknown {
		t.Errorf("qualitative lab status = %q, want unknown", labs[1].Status)
	}
}

func TestPortalOwnDataOnly(t *testing.T) {
	f := newPortalFixture(t)

	// Seed a second patient's vitals; the principal must never see them.
	other := uuid.New()
	f.records.vitals = append(f.records.vitals,
		&records.VitalRecord{ID: uuid.New(), PatientID: f.patientID, Type: records.VitalBP, Value: "120", NumericValue: numPtr(120)},
		&records.VitalRecord{ID: uuid.New(), PatientID: other, Type: records.VitalBP, Value: "180", NumericValue: numPtr(180)},
	)

	vitals, err := f.svc.Vitals(f.ctx())
	if err != nil {
		t.Fatal(err)
	}
	if len(vitals) != 1 || vitals[0].PatientID != f.patientID {
		t.Errorf("vitals = %+v, want only own rows", vitals)
	}
}

func TestPortalArchivedPatientLockedOut(t *testing.T) {
	f := newPortalFixture(t)
	f.patients.patients[f.patientID].IsArchived = true

	if _, err := f.svc.Me(f.ctx()); httperr.KindOf(err) != httperr.KindNotFound {
		t.Errorf("archived principal: kind = %v, want not-found", httperr.KindOf(err))
	}
}

func numPtr(f float64) *float64 { return &f }
