package records

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibrief/medibrief/internal/domain/audit"
	"github.com/medibrief/medibrief/internal/domain/patients"
	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/pkg/pagination"
)

type mockRepo struct {
	vitals   []*VitalRecord
	labs     []*LabResult
	consults []*Consultation
}

func (m *mockRepo) CreateVital(_ context.Context, v *VitalRecord) error {
	v.ID = uuid.New()
	m.vitals = append(m.vitals, v)
	return nil
}

func (m *mockRepo) ListVitals(_ context.Context, patientID uuid.UUID, limit int) ([]*VitalRecord, error) {
	var out []*VitalRecord
	for _, v := range m.vitals {
		if v.PatientID == patientID {
			out = append(out, v)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepo) CreateLab(_ context.Context, l *LabResult) error {
	l.ID = uuid.New()
	m.labs = append(m.labs, l)
	return nil
}

func (m *mockRepo) ListLabs(_ context.Context, patientID uuid.UUID, limit int) ([]*LabResult, error) {
	var out []*LabResult
	for _, l := range m.labs {
		if l.PatientID == patientID {
			out = append(out, l)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepo) CreateConsultation(_ context.Context, c *Consultation) error {
	c.ID = uuid.New()
	m.consults = append(m.consults, c)
	return nil
}

func (m *mockRepo) ListConsultations(_ context.Context, patientID uuid.UUID, cur pagination.Cursor) ([]*Consultation, *uuid.UUID, error) {
	out, _ := m.RecentConsultations(context.Background(), patientID, cur.Limit)
	return out, nil, nil
}

func (m *mockRepo) RecentConsultations(_ context.Context, patientID uuid.UUID, limit int) ([]*Consultation, error) {
	var out []*Consultation
	for _, c := range m.consults {
		if c.PatientID == patientID {
			out = append(out, c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubPatientRepo struct {
	known map[uuid.UUID]uuid.UUID // patient id -> clinic id
}

func (s *stubPatientRepo) GetByID(_ context.Context, clinicID, id uuid.UUID) (*patients.Patient, error) {
	if c, ok := s.known[id]; ok && c == clinicID {
		return &patients.Patient{ID: id, ClinicID: clinicID}, nil
	}
	return nil, httperr.New(httperr.KindNotFound, "patient not found")
}

func (s *stubPatientRepo) Create(_ context.Context, _ *patients.Patient) error { return nil }
func (s *stubPatientRepo) Update(_ context.Context, _ *patients.Patient) error { return nil }
func (s *stubPatientRepo) Archive(_ context.Context, _, _ uuid.UUID) error     { return nil }
func (s *stubPatientRepo) ListCursor(_ context.Context, _ uuid.UUID, _ pagination.Cursor) ([]*patients.Patient, *uuid.UUID, error) {
	return nil, nil, nil
}
func (s *stubPatientRepo) SetInvite(_ context.Context, _, _ uuid.UUID, _ uuid.UUID, _ time.Time) error {
	return nil
}
func (s *stubPatientRepo) GetByInviteToken(_ context.Context, _ uuid.UUID) (*patients.Patient, error) {
	return nil, httperr.New(httperr.KindNotFound, "patient not found")
}
func (s *stubPatientRepo) SetCredentials(_ context.Context, _ uuid.UUID, _, _ string) error {
	return nil
}
func (s *stubPatientRepo) GetByEmail(_ context.Context, _ string) (*patients.Patient, error) {
	return nil, httperr.New(httperr.KindNotFound, "patient not found")
}
func (s *stubPatientRepo) UpdatePassword(_ context.Context, _ uuid.UUID, _ string) error { return nil }
func (s *stubPatientRepo) UpdateProfile(_ context.Context, _ uuid.UUID, _ *string) error { return nil }

type mockAuditRepo struct{ entries []*audit.Entry }

func (m *mockAuditRepo) Append(_ context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}
func (m *mockAuditRepo) List(_ context.Context, _ audit.Filter) ([]*audit.Entry, int, error) {
	return m.entries, len(m.entries), nil
}

func newTestService(clinicID, patientID uuid.UUID) (*Service, *mockRepo, *mockAuditRepo) {
	repo := &mockRepo{}
	auditRepo := &mockAuditRepo{}
	pr := &stubPatientRepo{known: map[uuid.UUID]uuid.UUID{patientID: clinicID}}
	return NewService(repo, pr, audit.NewService(auditRepo, zerolog.Nop())), repo, auditRepo
}

func clinicCtx(clinicID uuid.UUID) context.Context {
	return context.WithValue(context.Background(), db.ClinicIDKey, clinicID)
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"120/80", f(120)},
		{"98.6 F", f(98.6)},
		{"-3", f(-3)},
		{"positive", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := ParseNumeric(tc.in)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("ParseNumeric(%q) = %v, want nil", tc.in, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Errorf("ParseNumeric(%q) = %v, want %v", tc.in, got, *tc.want)
		}
	}
}

func f(v float64) *float64 { return &v }

func TestCreateVital_Success(t *testing.T) {
	clinicID, patientID, actorID := uuid.New(), uuid.New(), uuid.New()
	svc, repo, auditRepo := newTestService(clinicID, patientID)
	hooked := uuid.Nil
	svc.SetWriteHook(func(_ context.Context, id uuid.UUID) { hooked = id })

	v, err := svc.CreateVital(clinicCtx(clinicID), actorID, VitalInput{
		PatientID: patientID.String(),
		Type:      "bp",
		Value:     "120/80",
	})
	if err != nil {
		t.Fatalf("CreateVital: %v", err)
	}
	if v.Type != VitalBP {
		t.Errorf("type = %s, want BP", v.Type)
	}
	if v.NumericValue == nil || *v.NumericValue != 120 {
		t.Errorf("numericValue = %v, want 120", v.NumericValue)
	}
	if len(repo.vitals) != 1 {
		t.Fatalf("stored vitals = %d", len(repo.vitals))
	}
	if hooked != patientID {
		t.Error("write hook not invoked with patient id")
	}
	if len(auditRepo.entries) != 1 || auditRepo.entries[0].Action != "VITAL_CREATE" {
		t.Errorf("audit = %+v", auditRepo.entries)
	}
}

func TestCreateVital_UnknownPatient(t *testing.T) {
	clinicID := uuid.New()
	svc, _, _ := newTestService(clinicID, uuid.New())

	_, err := svc.CreateVital(clinicCtx(clinicID), uuid.New(), VitalInput{
		PatientID: uuid.NewString(),
		Type:      "BP",
		Value:     "120/80",
	})
	if httperr.KindOf(err) != httperr.KindNotFound {
		t.Errorf("kind = %v, want not-found", httperr.KindOf(err))
	}
}

func TestCreateVital_CrossClinicHidden(t *testing.T) {
	clinicA, patientID := uuid.New(), uuid.New()
	svc, _, _ := newTestService(clinicA, patientID)

	_, err := svc.CreateVital(clinicCtx(uuid.New()), uuid.New(), VitalInput{
		PatientID: patientID.String(),
		Type:      "BP",
		Value:     "120/80",
	})
	if httperr.KindOf(err) != httperr.KindNotFound {
		t.Errorf("kind = %v, want not-found (no existence leak)", httperr.KindOf(err))
	}
}

func TestCreateVital_BadType(t *testing.T) {
	clinicID, patientID := uuid.New(), uuid.New()
	svc, _, _ := newTestService(clinicID, patientID)

	_, err := svc.CreateVital(clinicCtx(clinicID), uuid.New(), VitalInput{
		PatientID: patientID.String(),
		Type:      "TEMPERATURE",
		Value:     "98.6",
	})
	if httperr.KindOf(err) != httperr.KindValidation {
		t.Errorf("kind = %v, want validation", httperr.KindOf(err))
	}
}

func TestCreateLab_PreservesValueVerbatim(t *testing.T) {
	clinicID, patientID := uuid.New(), uuid.New()
	svc, _, _ := newTestService(clinicID, patientID)

	rr := "70-100"
	l, err := svc.CreateLab(clinicCtx(clinicID), uuid.New(), LabInput{
		PatientID:      patientID.String(),
		TestName:       "Glucose",
		Value:          "positive",
		ReferenceRange: &rr,
	})
	if err != nil {
		t.Fatalf("CreateLab: %v", err)
	}
	if l.Value != "positive" {
		t.Errorf("value = %q, want verbatim", l.Value)
	}
	if l.NumericValue != nil {
		t.Errorf("numericValue = %v, want nil for non-numeric", *l.NumericValue)
	}
}

func TestCreateConsultation_DoctorFromToken(t *testing.T) {
	clinicID, patientID, doctorID := uuid.New(), uuid.New(), uuid.New()
	svc, repo, _ := newTestService(clinicID, patientID)

	c, err := svc.CreateConsultation(clinicCtx(clinicID), doctorID, ConsultationInput{
		PatientID: patientID.String(),
		Symptoms:  "headache, dizziness",
		Notes:     "follow up in two weeks",
		Date:      "2026-08-20",
	})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}
	if c.DoctorID != doctorID {
		t.Errorf("doctorId = %s, want caller %s", c.DoctorID, doctorID)
	}
	if c.Date.Format("2006-01-02") != "2026-08-20" {
		t.Errorf("date = %v", c.Date)
	}
	if len(repo.consults) != 1 {
		t.Fatalf("stored consults = %d", len(repo.consults))
	}
}
