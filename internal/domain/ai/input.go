package ai

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/domain/patients"
	"github.com/medibrief/medibrief/internal/domain/records"
	"github.com/medibrief/medibrief/internal/platform/cache"
)

const (
	inputCacheTTL = 5 * time.Minute

	maxInputVitals   = 20
	maxInputLabs     = 20
	maxInputConsults = 10
	maxTrendPoints   = 10
	maxSymptoms      = 5
	maxLabValues     = 8
)

// InputCacheKey is the cache slot for one patient's structured input.
func InputCacheKey(patientID uuid.UUID) string {
	return "ai:structured-input:" + patientID.String()
}

// LabValue is one lab row in the structured input.
type LabValue struct {
	TestName       string  `json:"testName"`
	Value          string  `json:"value"`
	Unit           *string `json:"unit,omitempty"`
	ReferenceRange *string `json:"referenceRange,omitempty"`
	RecordedAt     string  `json:"recordedAt"`
}

// StructuredInput is the compact clinical snapshot fed to summary
// generation. Trend series are most-recent first.
type StructuredInput struct {
	PatientID      uuid.UUID  `json:"patientId"`
	Age            int        `json:"age"`
	BPTrend        []float64  `json:"bpTrend"`
	GlucoseTrend   []float64  `json:"glucoseTrend"`
	HeartRateTrend []float64  `json:"heartRateTrend"`
	WeightTrend    []float64  `json:"weightTrend"`
	RecentSymptoms []string   `json:"recentSymptoms"`
	RecentLabs     []LabValue `json:"recentLabValues"`
}

// trendChronological reverses a most-recent-first series into oldest-first
// order for the analytics engine.
func trendChronological(series []float64) []float64 {
	out := make([]float64, len(series))
	for i, v := range series {
		out[len(series)-1-i] = v
	}
	return out
}

// InputBuilder assembles structured inputs, caching them briefly. Cache
// failures fall back to recomputation.
type InputBuilder struct {
	records  records.Repository
	patients patients.Repository
	cache    *cache.Cache
}

func NewInputBuilder(recordsRepo records.Repository, patientRepo patients.Repository, c *cache.Cache) *InputBuilder {
	return &InputBuilder{records: recordsRepo, patients: patientRepo, cache: c}
}

// Invalidate drops the cached input for a patient. Wired as the clinical
// write hook.
func (b *InputBuilder) Invalidate(ctx context.Context, patientID uuid.UUID) {
	b.cache.Delete(ctx, InputCacheKey(patientID))
}

// Build returns the structured input for a patient, from cache when fresh.
// clinicID scopes the patient lookup.
func (b *InputBuilder) Build(ctx context.Context, clinicID, patientID uuid.UUID) (*StructuredInput, error) {
	key := InputCacheKey(patientID)
	var cached StructuredInput
	if b.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := b.patients.GetByID(ctx, clinicID, patientID)
	if err != nil {
		return nil, err
	}
	vitals, err := b.records.ListVitals(ctx, patientID, maxInputVitals)
	if err != nil {
		return nil, err
	}
	labs, err := b.records.ListLabs(ctx, patientID, maxInputLabs)
	if err != nil {
		return nil, err
	}
	consults, err := b.records.RecentConsultations(ctx, patientID, maxInputConsults)
	if err != nil {
		return nil, err
	}

	in := &StructuredInput{
		PatientID:      patientID,
		Age:            p.Age(time.Now()),
		BPTrend:        []float64{},
		GlucoseTrend:   []float64{},
		HeartRateTrend: []float64{},
		WeightTrend:    []float64{},
		RecentSymptoms: []string{},
		RecentLabs:     []LabValue{},
	}

	// Vitals arrive recorded_at desc, so appending keeps most-recent first.
	for _, v := range vitals {
		if v.NumericValue == nil {
			continue
		}
		var dst *[]float64
		switch v.Type {
		case records.VitalBP:
			dst = &in.BPTrend
		case records.VitalGlucose:
			dst = &in.GlucoseTrend
		case records.VitalHeartRate:
			dst = &in.HeartRateTrend
		case records.VitalWeight:
			dst = &in.WeightTrend
		default:
			continue
		}
		if len(*dst) < maxTrendPoints {
			*dst = append(*dst, *v.NumericValue)
		}
	}

	for _, c := range consults {
		if c.Symptoms == "" {
			continue
		}
		if len(in.RecentSymptoms) < maxSymptoms {
			in.RecentSymptoms = append(in.RecentSymptoms, c.Symptoms)
		}
	}

	for _, l := range labs {
		if len(in.RecentLabs) >= maxLabValues {
			break
		}
		in.RecentLabs = append(in.RecentLabs, LabValue{
			TestName:       l.TestName,
			Value:          l.Value,
			Unit:           l.Unit,
			ReferenceRange: l.ReferenceRange,
			RecordedAt:     l.RecordedAt.UTC().Format(time.RFC3339),
		})
	}

	b.cache.Set(ctx, key, in, inputCacheTTL)
	return in, nil
}
