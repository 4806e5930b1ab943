package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/domain/patients"
	"github.com/medibrief/medibrief/internal/domain/records"
	"github.com/medibrief/medibrief/internal/platform/db"
)

// SummaryRisk is one patient's latest persisted risk assessment, supplied
// by the summary store for the clinic roll-up.
type SummaryRisk struct {
	PatientID   uuid.UUID `json:"patientId"`
	PatientName string    `json:"patientName"`
	CreatedAt   time.Time `json:"createdAt"`
	Flags       RiskFlags `json:"flags"`
}

// SummarySource yields the latest summary risk flags per patient in the
// bound clinic.
type SummarySource interface {
	LatestSummaryRisks(ctx context.Context) ([]SummaryRisk, error)
}

type Service struct {
	records   records.Repository
	patients  patients.Repository
	summaries SummarySource
}

func NewService(recordsRepo records.Repository, patientRepo patients.Repository, summaries SummarySource) *Service {
	return &Service{records: recordsRepo, patients: patientRepo, summaries: summaries}
}

// LabFlagged is a lab result annotated with its range classification.
type LabFlagged struct {
	*records.LabResult
	Status string `json:"status"`
}

// PatientReport is the full analytics view for one patient.
type PatientReport struct {
	PatientID uuid.UUID        `json:"patientId"`
	Trends    map[string]Trend `json:"trends"`
	LabFlags  []LabFlagged     `json:"labFlags"`
	RiskFlags RiskFlags        `json:"riskFlags"`
	Risk      RiskScore        `json:"risk"`
}

// metricSeries projects vitals (recorded_at desc in) into per-metric
// ascending numeric series.
func metricSeries(vitals []*records.VitalRecord) map[records.VitalType][]float64 {
	out := map[records.VitalType][]float64{}
	// Reverse to chronological order, skip rows without a numeric value.
	for i := len(vitals) - 1; i >= 0; i-- {
		v := vitals[i]
		if v.NumericValue != nil {
			out[v.Type] = append(out[v.Type], *v.NumericValue)
		}
	}
	return out
}

func symptomStrings(consults []*records.Consultation) []string {
	var out []string
	for _, c := range consults {
		if c.Symptoms != "" {
			out = append(out, c.Symptoms)
		}
	}
	return out
}

// PatientReport computes trends, lab flags, risk flags, and the composite
// risk score for one patient.
func (s *Service) PatientReport(ctx context.Context, patientID uuid.UUID) (*PatientReport, error) {
	if _, err := s.patients.GetByID(ctx, db.ClinicFromContext(ctx), patientID); err != nil {
		return nil, err
	}

	vitals, err := s.records.ListVitals(ctx, patientID, 0)
	if err != nil {
		return nil, err
	}
	labs, err := s.records.ListLabs(ctx, patientID, 0)
	if err != nil {
		return nil, err
	}
	consults, err := s.records.RecentConsultations(ctx, patientID, 10)
	if err != nil {
		return nil, err
	}

	series := metricSeries(vitals)
	trends := map[string]Trend{}
	anomalyCount := 0
	for _, t := range records.VitalTypes {
		trend := BuildTrend(string(t), series[t])
		trends[string(t)] = trend
		anomalyCount += len(trend.Anomalies)
	}

	labFlags := make([]LabFlagged, 0, len(labs))
	evaluated, outOfRange := 0, 0
	for _, l := range labs {
		status := FlagLab(l.NumericValue, l.ReferenceRange)
		if status != FlagUnknown {
			evaluated++
			if status != FlagNormal {
				outOfRange++
			}
		}
		labFlags = append(labFlags, LabFlagged{LabResult: l, Status: status})
	}

	symptoms := symptomStrings(consults)
	flags := ComputeRiskFlags(
		series[records.VitalBP],
		series[records.VitalGlucose],
		series[records.VitalHeartRate],
		series[records.VitalWeight],
		symptoms,
	)

	risk := CompositeRisk(anomalyCount, flags.ActiveCount(), outOfRange, evaluated, len(flags.ConcerningSymptoms))

	return &PatientReport{
		PatientID: patientID,
		Trends:    trends,
		LabFlags:  labFlags,
		RiskFlags: flags,
		Risk:      risk,
	}, nil
}

// ClinicRiskEntry is one patient in the clinic roll-up.
type ClinicRiskEntry struct {
	PatientID        uuid.UUID `json:"patientId"`
	PatientName      string    `json:"patientName"`
	Score            int       `json:"score"`
	Tier             string    `json:"tier"`
	Flags            RiskFlags `json:"flags"`
	SummaryCreatedAt time.Time `json:"summaryCreatedAt"`
}

type ClinicRiskReport struct {
	TotalAssessed int               `json:"totalAssessed"`
	HighRisk      []ClinicRiskEntry `json:"highRisk"`
	GeneratedAt   time.Time         `json:"generatedAt"`
}

// ClinicRisk rolls the latest persisted summary per patient up into a
// clinic-wide view, highest risk first.
func (s *Service) ClinicRisk(ctx context.Context) (*ClinicRiskReport, error) {
	risks, err := s.summaries.LatestSummaryRisks(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]ClinicRiskEntry, 0, len(risks))
	for _, r := range risks {
		score := int(clamp100(float64(r.Flags.ActiveCount()*25 + len(r.Flags.ConcerningSymptoms)*10)))
		entries = append(entries, ClinicRiskEntry{
			PatientID:        r.PatientID,
			PatientName:      r.PatientName,
			Score:            score,
			Tier:             ScoreTier(score),
			Flags:            r.Flags,
			SummaryCreatedAt: r.CreatedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })

	high := make([]ClinicRiskEntry, 0, len(entries))
	for _, e := range entries {
		if e.Score >= 50 {
			high = append(high, e)
		}
	}

	return &ClinicRiskReport{
		TotalAssessed: len(entries),
		HighRisk:      high,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}
