package ai

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/domain/analytics"
)

func strPtr(s string) *string { return &s }

func TestRenderFallbackSummarySections(t *testing.T) {
	in := &StructuredInput{
		PatientID:      uuid.New(),
		Age:            62,
		BPTrend:        []float64{152, 149, 131, 128},
		GlucoseTrend:   []float64{},
		HeartRateTrend: []float64{88, 84},
		WeightTrend:    []float64{91.2},
		RecentSymptoms: []string{"chest pain on exertion"},
		RecentLabs: []LabValue{
			{TestName: "LDL", Value: "160", ReferenceRange: strPtr("< 130")},
			{TestName: "HbA1c", Value: "5.4", ReferenceRange: strPtr("4.0-5.6")},
		},
	}
	flags := analytics.ComputeRiskFlags(
		trendChronological(in.BPTrend), nil, nil, nil, in.RecentSymptoms)

	out := RenderFallbackSummary(in, flags)

	// Every section header appears, in order.
	pos := -1
	for _, h := range SectionHeaders {
		i := strings.Index(out, h)
		if i < 0 {
			t.Fatalf("missing section %q in:\n%s", h, out)
		}
		if i < pos {
			t.Errorf("section %q out of order", h)
		}
		pos = i
	}

	if !strings.Contains(out, "not a diagnosis") {
		t.Errorf("disclaimer missing from summary:\n%s", out)
	}
	if !strings.Contains(out, "LDL") || !strings.Contains(out, "high") {
		t.Errorf("out-of-range lab not reported:\n%s", out)
	}
	if !strings.Contains(out, "chest pain on exertion") {
		t.Errorf("symptom report missing:\n%s", out)
	}
}

func TestRenderFallbackSummaryEmptyInput(t *testing.T) {
	in := &StructuredInput{
		PatientID:      uuid.New(),
		Age:            -1,
		BPTrend:        []float64{},
		GlucoseTrend:   []float64{},
		HeartRateTrend: []float64{},
		WeightTrend:    []float64{},
		RecentSymptoms: []string{},
		RecentLabs:     []LabValue{},
	}
	flags := analytics.ComputeRiskFlags(nil, nil, nil, nil, nil)

	out := RenderFallbackSummary(in, flags)
	for _, h := range SectionHeaders {
		if !strings.Contains(out, h) {
			t.Errorf("missing section %q for empty input", h)
		}
	}
	if !strings.Contains(out, "No recent laboratory results") {
		t.Errorf("empty labs must be stated explicitly:\n%s", out)
	}
	if !strings.Contains(out, "No recent symptoms") {
		t.Errorf("empty symptoms must be stated explicitly:\n%s", out)
	}
}
