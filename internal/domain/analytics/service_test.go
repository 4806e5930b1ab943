package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/domain/patients"
	"github.com/medibrief/medibrief/internal/domain/records"
	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/pkg/pagination"
)

type mockPatientRepo struct {
	patients map[uuid.UUID]*patients.Patient
}

func (m *mockPatientRepo) Create(_ context.Context, p *patients.Patient) error {
	p.ID = uuid.New()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, clinicID, id uuid.UUID) (*patients.Patient, error) {
	p, ok := m.patients[id]
	if !ok || p.ClinicID != clinicID {
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
func (m *mockPatientRepo) UpdatePassword(_ context.Context, _ uuid.UUID, _ string) error { return nil }
func (m *mockPatientRepo) UpdateProfile(_ context.Context, _ uuid.UUID, _ *string) error { return nil }

type mockRecordsRepo struct {
	vitals   []*records.VitalRecord
	labs     []*records.LabResult
	consults []*records.Consultation
}

func (m *mockRecordsRepo) CreateVital(_ context.Context, _ *records.VitalRecord) error { return nil }
func (m *mockRecordsRepo) ListVitals(_ context.Context, _ uuid.UUID, _ int) ([]*records.VitalRecord, error) {
	return m.vitals, nil
}
func (m *mockRecordsRepo) CreateLab(_ context.Context, _ *records.LabResult) error { return nil }
func (m *mockRecordsRepo) ListLabs(_ context.Context, _ uuid.UUID, _ int) ([]*records.LabResult, error) {
	return m.labs, nil
}
func (m *mockRecordsRepo) CreateConsultation(_ context.Context, _ *records.Consultation) error {
	return nil
}
func (m *mockRecordsRepo) ListConsultations(_ context.Context, _ uuid.UUID, _ pagination.Cursor) ([]*records.Consultation, *uuid.UUID, error) {
	return m.consults, nil, nil
}
func (m *mockRecordsRepo) RecentConsultations(_ context.Context, _ uuid.UUID, _ int) ([]*records.Consultation, error) {
	return m.consults, nil
}

type mockSummarySource struct {
	risks []SummaryRisk
}

func (m *mockSummarySource) LatestSummaryRisks(_ context.Context) ([]SummaryRisk, error) {
	return m.risks, nil
}

func numPtr(f float64) *float64 { return &f }
func strPtr(s string) *string   { return &s }

func reportFixture(t *testing.T) (*Service, *mockRecordsRepo, *mockSummarySource, context.Context, uuid.UUID) {
	t.Helper()

	clinicID := uuid.New()
	pr := &mockPatientRepo{patients: map[uuid.UUID]*patients.Patient{}}
	p := &patients.Patient{ClinicID: clinicID, FirstName: "Test", LastName: "Patient"}
	if err := pr.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	rr := &mockRecordsRepo{}
	src := &mockSummarySource{}
	ctx := context.WithValue(context.Background(), db.ClinicIDKey, clinicID)
	return NewService(rr, pr, src), rr, src, ctx, p.ID
}

func seedVitals(rr *mockRecordsRepo, patientID uuid.UUID, typ records.VitalType, values ...float64) {
	// Repos return recorded_at desc; store newest first.
	now := time.Now().UTC()
	for i := len(values) - 1; i >= 0; i-- {
		rr.vitals = append(rr.vitals, &records.VitalRecord{
			ID:           uuid.New(),
			PatientID:    patientID,
			Type:         typ,
			NumericValue: numPtr(values[i]),
			RecordedAt:   now.Add(-time.Duration(len(values)-1-i) * time.Hour),
		})
	}
}

func TestPatientReportSpikeDetection(t *testing.T) {
	svc, rr, _, ctx, patientID := reportFixture(t)
	seedVitals(rr, patientID, records.VitalBP, 120, 122, 121, 123, 165)

	report, err := svc.PatientReport(ctx, patientID)
	if err != nil {
		t.Fatal(err)
	}

	bp := report.Trends[string(records.VitalBP)]
	if len(bp.Anomalies) != 1 {
		t.Fatalf("anomalies = %+v, want exactly one", bp.Anomalies)
	}
	if bp.Anomalies[0].Value != 165 {
		t.Errorf("anomalous value = %v, want 165", bp.Anomalies[0].Value)
	}
	if bp.Delta != 45 {
		t.Errorf("delta = %v, want 45", bp.Delta)
	}
	if report.Risk.Score <= 0 {
		t.Errorf("anomalies must contribute to the composite score, got %d", report.Risk.Score)
	}
}

func TestPatientReportLabCounting(t *testing.T) {
	svc, rr, _, ctx, patientID := reportFixture(t)
	rr.labs = []*records.LabResult{
		{ID: uuid.New(), PatientID: patientID, TestName: "LDL", NumericValue: numPtr(160), ReferenceRange: strPtr("< 130")},
		{ID: uuid.New(), PatientID: patientID, TestName: "HbA1c", NumericValue: numPtr(5.1), ReferenceRange: strPtr("4.0-5.6")},
		{ID: uuid.New(), PatientID: patientID, TestName: "Culture", Value: "negative"},
	}

	report, err := svc.PatientReport(ctx, patientID)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.LabFlags) != 3 {
		t.Fatalf("labFlags = %d, want 3", len(report.LabFlags))
	}
	byName := map[string]string{}
	for _, l := range report.LabFlags {
		byName[l.TestName] = l.Status
	}
	if byName["LDL"] != FlagHigh || byName["HbA1c"] != FlagNormal || byName["Culture"] != FlagUnknown {
		t.Errorf("statuses = %v", byName)
	}

	// One out-of-range of two evaluated: the lab contributor sub-score is 50,
	// weighted at 0.25 into the composite.
	var labContribution *RiskContributor
	for i := range report.Risk.Contributors {
		if report.Risk.Contributors[i].Source == "lab_out_of_range" {
			labContribution = &report.Risk.Contributors[i]
		}
	}
	if labContribution == nil || labContribution.Subscore != 50 {
		t.Errorf("lab contributor = %+v, want sub-score 50", labContribution)
	}
}

func TestPatientReportConcerningSymptoms(t *testing.T) {
	svc, rr, _, ctx, patientID := reportFixture(t)
	rr.consults = []*records.Consultation{
		{ID: uuid.New(), PatientID: patientID, Symptoms: "intermittent chest pain"},
		{ID: uuid.New(), PatientID: patientID, Symptoms: "mild headache"},
	}

	report, err := svc.PatientReport(ctx, patientID)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.RiskFlags.ConcerningSymptoms) != 1 {
		t.Errorf("concerning = %v, want only the chest pain report", report.RiskFlags.ConcerningSymptoms)
	}
	if report.RiskFlags.Disclaimer == "" {
		t.Error("risk flags must always carry the disclaimer")
	}
}

func TestPatientReportUnknownPatient(t *testing.T) {
	svc, _, _, ctx, _ := reportFixture(t)
	if _, err := svc.PatientReport(ctx, uuid.New()); httperr.KindOf(err) != httperr.KindNotFound {
		t.Errorf("kind = %v, want not-found", httperr.KindOf(err))
	}
}

func TestClinicRiskOrderingAndThreshold(t *testing.T) {
	svc, _, src, ctx, _ := reportFixture(t)

	critical := RiskFlags{
		HighBloodPressureTrend: true,
		RisingGlucoseTrend:     true,
		TachycardiaTrend:       true,
		ConcerningSymptoms:     []string{"chest pain"},
		Disclaimer:             Disclaimer,
	}
	calm := RiskFlags{Disclaimer: Disclaimer}
	borderline := RiskFlags{
		HighBloodPressureTrend: true,
		RisingGlucoseTrend:     true,
		Disclaimer:             Disclaimer,
	}

	src.risks = []SummaryRisk{
		{PatientID: uuid.New(), PatientName: "Calm Patient", Flags: calm},
		{PatientID: uuid.New(), PatientName: "Critical Patient", Flags: critical},
		{PatientID: uuid.New(), PatientName: "Borderline Patient", Flags: borderline},
	}

	report, err := svc.ClinicRisk(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalAssessed != 3 {
		t.Errorf("totalAssessed = %d, want 3", report.TotalAssessed)
	}
	// critical: 3*25 + 1*10 = 85; borderline: 2*25 = 50; calm: 0.
	if len(report.HighRisk) != 2 {
		t.Fatalf("highRisk = %+v, want 2 entries", report.HighRisk)
	}
	if report.HighRisk[0].PatientName != "Critical Patient" || report.HighRisk[0].Score != 85 {
		t.Errorf("top entry = %+v", report.HighRisk[0])
	}
	if report.HighRisk[1].Score != 50 {
		t.Errorf("second entry = %+v", report.HighRisk[1])
	}
}
