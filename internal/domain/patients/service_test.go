package patients

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibrief/medibrief/internal/domain/audit"
	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/pkg/pagination"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: map[uuid.UUID]*Patient{}}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, clinicID, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok || p.ClinicID != clinicID || p.IsArchived {
		return nil, httperr.New(httperr.KindNotFound, "patient not found")
	}
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) Archive(_ context.Context, clinicID, id uuid.UUID) error {
	p, ok := m.patients[id]
	if !ok || p.ClinicID != clinicID || p.IsArchived {
		return httperr.New(httperr.KindNotFound, "patient not found")
	}
	p.IsArchived = true
	return nil
}

func (m *mockRepo) ListCursor(_ context.Context, clinicID uuid.UUID, _ pagination.Cursor) ([]*Patient, *uuid.UUID, error) {
	var out []*Patient
	for _, p := range m.patients {
		if p.ClinicID == clinicID && !p.IsArchived {
			out = append(out, p)
		}
	}
	return out, nil, nil
}

func (m *mockRepo) SetInvite(_ context.Context, _, _ uuid.UUID, _ uuid.UUID, _ time.Time) error {
	return nil
}
func (m *mockRepo) GetByInviteToken(_ context.Context, _ uuid.UUID) (*Patient, error) {
	return nil, httperr.New(httperr.KindNotFound, "patient not found")
}
func (m *mockRepo) SetCredentials(_ context.Context, _ uuid.UUID, _, _ string) error { return nil }
func (m *mockRepo) GetByEmail(_ context.Context, _ string) (*Patient, error) {
	return nil, httperr.New(httperr.KindNotFound, "patient not found")
}
func (m *mockRepo) UpdatePassword(_ context.Context, _ uuid.UUID, _ string) error { return nil }
func (m *mockRepo) UpdateProfile(_ context.Context, _ uuid.UUID, _ *string) error { return nil }

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

func newTestService() (*Service, *mockRepo, *mockAuditRepo) {
	repo := newMockRepo()
	auditRepo := &mockAuditRepo{}
	svc := NewService(repo, audit.NewService(auditRepo, zerolog.Nop()))
	return svc, repo, auditRepo
}

func clinicCtx(clinicID uuid.UUID) context.Context {
	return context.WithValue(context.Background(), db.ClinicIDKey, clinicID)
}

func strPtr(s string) *string { return &s }

func TestCreatePatient_Success(t *testing.T) {
	svc, _, auditRepo := newTestService()
	clinicID := uuid.New()
	actorID := uuid.New()

	p, err := svc.Create(clinicCtx(clinicID), actorID, CreateInput{
		FirstName:   "Jane",
		LastName:    "Doe",
		DateOfBirth: "1990-05-15",
		Gender:      GenderFemale,
		Phone:       strPtr("+1234567890"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ClinicID != clinicID {
		t.Errorf("clinic id = %s, want %s", p.ClinicID, clinicID)
	}
	if p.DateOfBirth.Year() != 1990 {
		t.Errorf("date of birth year = %d", p.DateOfBirth.Year())
	}
	if len(auditRepo.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(auditRepo.entries))
	}
	e := auditRepo.entries[0]
	if e.Action != "PATIENT_CREATE" || e.EntityID != p.ID || e.UserID != actorID {
		t.Errorf("unexpected audit entry %+v", e)
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := clinicCtx(uuid.New())

	cases := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"missing first name", CreateInput{LastName: "D", DateOfBirth: "1990-01-01", Gender: GenderMale}, "firstName"},
		{"long last name", CreateInput{FirstName: "J", LastName: string(make([]byte, 101)), DateOfBirth: "1990-01-01", Gender: GenderMale}, "lastName"},
		{"future dob", CreateInput{FirstName: "J", LastName: "D", DateOfBirth: "2999-01-01", Gender: GenderMale}, "dateOfBirth"},
		{"bad dob", CreateInput{FirstName: "J", LastName: "D", DateOfBirth: "not-a-date", Gender: GenderMale}, "dateOfBirth"},
		{"bad gender", CreateInput{FirstName: "J", LastName: "D", DateOfBirth: "1990-01-01", Gender: "X"}, "gender"},
		{"short phone", CreateInput{FirstName: "J", LastName: "D", DateOfBirth: "1990-01-01", Gender: GenderMale, Phone: strPtr("123")}, "phone"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, uuid.New(), tc.in)
			var he *httperr.Error
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !asHTTPErr(err, &he) || he.Kind != httperr.KindValidation {
				t.Fatalf("kind = %v, want validation", err)
			}
			if _, ok := he.Fields[tc.field]; !ok {
				t.Errorf("missing field error for %q in %v", tc.field, he.Fields)
			}
		})
	}
}

func asHTTPErr(err error, target **httperr.Error) bool {
	e, ok := err.(*httperr.Error)
	if ok {
		*target = e
	}
	return ok
}

func TestArchivePatient_SecondDeleteNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()
	ctx := clinicCtx(clinicID)

	p, err := svc.Create(ctx, uuid.New(), CreateInput{
		FirstName: "Jane", LastName: "Doe", DateOfBirth: "1990-05-15", Gender: GenderFemale,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Archive(ctx, uuid.New(), p.ID); err != nil {
		t.Fatalf("first archive: %v", err)
	}
	err = svc.Archive(ctx, uuid.New(), p.ID)
	if httperr.KindOf(err) != httperr.KindNotFound {
		t.Errorf("second archive kind = %v, want not-found", httperr.KindOf(err))
	}
}

func TestGetPatient_CrossClinicHidden(t *testing.T) {
	svc, _, _ := newTestService()
	clinicA := uuid.New()
	clinicB := uuid.New()

	p, err := svc.Create(clinicCtx(clinicA), uuid.New(), CreateInput{
		FirstName: "Jane", LastName: "Doe", DateOfBirth: "1990-05-15", Gender: GenderFemale,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.Get(clinicCtx(clinicB), p.ID)
	if httperr.KindOf(err) != httperr.KindNotFound {
		t.Errorf("cross-clinic get kind = %v, want not-found", httperr.KindOf(err))
	}
}

func TestPatientAge(t *testing.T) {
	now := time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)
	p := &Patient{DateOfBirth: time.Date(1990, time.September, 1, 0, 0, 0, 0, time.UTC)}
	if got := p.Age(now); got != 35 {
		t.Errorf("age before birthday = %d, want 35", got)
	}
	p.DateOfBirth = time.Date(1990, time.August, 25, 0, 0, 0, 0, time.UTC)
	if got := p.Age(now); got != 36 {
		t.Errorf("age on birthday = %d, want 36", got)
	}
}
