package ai

import (
	"fmt"
	"strings"

	"github.com/medibrief/medibrief/internal/domain/analytics"
)

// RenderFallbackSummary produces a deterministic summary from the
// structured input and risk flags. It runs whenever no model provider is
// configured or the provider call fails, so its output must stand on its
// own clinically.
func RenderFallbackSummary(in *StructuredInput, flags analytics.RiskFlags) string {
	var b strings.Builder

	section := func(header string) {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(header)
		b.WriteString("\n")
	}

	section("Clinical Overview")
	fmt.Fprintf(&b, "Automated summary for patient age band %s, generated from %d vital series, %d recent lab result(s), and %d recent symptom report(s).",
		AgeBand(in.Age), countNonEmptyTrends(in), len(in.RecentLabs), len(in.RecentSymptoms))

	section("Vital Sign Trends")
	writeTrendLine(&b, "Blood pressure", in.BPTrend)
	writeTrendLine(&b, "Glucose", in.GlucoseTrend)
	writeTrendLine(&b, "Heart rate", in.HeartRateTrend)
	writeTrendLine(&b, "Weight", in.WeightTrend)

	section("Laboratory Findings")
	if len(in.RecentLabs) == 0 {
		b.WriteString("No recent laboratory results on record.")
	}
	for i, l := range in.RecentLabs {
		if i > 0 {
			b.WriteString("\n")
		}
		status := analytics.FlagLab(numericOf(l.Value), l.ReferenceRange)
		rng := "no reference range"
		if l.ReferenceRange != nil {
			rng = "range " + *l.ReferenceRange
		}
		fmt.Fprintf(&b, "- %s: %s (%s) — %s", l.TestName, l.Value, rng, status)
	}

	section("Symptom Analysis")
	if len(in.RecentSymptoms) == 0 {
		b.WriteString("No recent symptoms reported.")
	} else {
		fmt.Fprintf(&b, "Recent reports: %s.", strings.Join(in.RecentSymptoms, "; "))
		if n := len(flags.ConcerningSymptoms); n > 0 {
			fmt.Fprintf(&b, " %d report(s) mention red-flag terms and warrant follow-up.", n)
		}
	}

	section("Risk Assessment")
	active := activeFlagNames(flags)
	if len(active) == 0 {
		b.WriteString("No trend-based risk flags are active.")
	} else {
		fmt.Fprintf(&b, "Active trend flags: %s.", strings.Join(active, ", "))
	}

	section("Recommended Monitoring")
	if len(active) == 0 && len(flags.ConcerningSymptoms) == 0 {
		b.WriteString("Continue routine monitoring per standing care plan.")
	} else {
		b.WriteString("Increase monitoring frequency for the flagged metrics and review red-flag symptom reports at the next clinical contact.")
	}

	section("Disclaimer")
	b.WriteString(flags.Disclaimer)

	return b.String()
}

func countNonEmptyTrends(in *StructuredInput) int {
	n := 0
	for _, t := range [][]float64{in.BPTrend, in.GlucoseTrend, in.HeartRateTrend, in.WeightTrend} {
		if len(t) > 0 {
			n++
		}
	}
	return n
}

// writeTrendLine reports a most-recent-first series on one line.
func writeTrendLine(b *strings.Builder, label string, series []float64) {
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	if len(series) == 0 {
		fmt.Fprintf(b, "- %s: no numeric readings on record.", label)
		return
	}
	latest := series[0]
	oldest := series[len(series)-1]
	fmt.Fprintf(b, "- %s: latest %.1f over %d reading(s), change %+.1f since the oldest in window.",
		label, latest, len(series), latest-oldest)
}

func numericOf(value string) *float64 {
	// Local copy of the records projection to keep this package's fallback
	// rendering self-contained.
	var f float64
	if _, err := fmt.Sscanf(value, "%g", &f); err != nil {
		return nil
	}
	return &f
}

func activeFlagNames(f analytics.RiskFlags) []string {
	var out []string
	if f.HighBloodPressureTrend {
		out = append(out, "high blood pressure trend")
	}
	if f.RisingGlucoseTrend {
		out = append(out, "rising glucose trend")
	}
	if f.TachycardiaTrend {
		out = append(out, "elevated heart rate trend")
	}
	if f.RapidWeightChange {
		out = append(out, "rapid weight change")
	}
	return out
}
