package analytics

import (
	"math"
	"regexp"
	"strconv"
)

// Disclaimer is appended to every generated summary and risk assessment.
const Disclaimer = "This report is AI-assisted decision support and is not a diagnosis. " +
	"All findings require review by a qualified clinician."

// DefaultZThreshold is the |z| cutoff for anomaly detection.
const DefaultZThreshold = 2.0

type Anomaly struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	Z     float64 `json:"z"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func meanStddev(series []float64) (mean, stddev float64) {
	n := float64(len(series))
	for _, v := range series {
		mean += v
	}
	mean /= n
	var ss float64
	for _, v := range series {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / n)
}

// DetectAnomalies returns every point whose z-score magnitude meets the
// threshold. Series shorter than three points, or with zero variance, have
// no meaningful distribution and yield nothing.
func DetectAnomalies(series []float64, threshold float64) []Anomaly {
	if len(series) < 3 {
		return nil
	}
	mean, stddev := meanStddev(series)
	if stddev == 0 {
		return nil
	}
	var out []Anomaly
	for i, v := range series {
		// Thresholding happens on the rounded value so reported z-scores are
		// consistent with the cutoff.
		z := round2((v - mean) / stddev)
		if math.Abs(z) >= threshold {
			out = append(out, Anomaly{Index: i, Value: v, Z: z})
		}
	}
	return out
}

// LatestBaselineZ computes the z-score of the last point against the
// distribution of all prior points. ok is false when the baseline is too
// short or flat to score against.
func LatestBaselineZ(series []float64) (z float64, ok bool) {
	if len(series) < 3 {
		return 0, false
	}
	baseline := series[:len(series)-1]
	mean, stddev := meanStddev(baseline)
	if stddev == 0 {
		return 0, false
	}
	return (series[len(series)-1] - mean) / stddev, true
}

type Trend struct {
	Metric    string    `json:"metric"`
	Points    []float64 `json:"points"`
	Latest    float64   `json:"latest"`
	Delta     float64   `json:"delta"`
	Anomalies []Anomaly `json:"anomalies"`
}

// BuildTrend summarizes one metric's series, ordered oldest first.
func BuildTrend(metric string, points []float64) Trend {
	t := Trend{Metric: metric, Points: points, Anomalies: DetectAnomalies(points, DefaultZThreshold)}
	if t.Anomalies == nil {
		t.Anomalies = []Anomaly{}
	}
	if len(points) == 0 {
		return t
	}
	t.Latest = points[len(points)-1]
	t.Delta = round2(points[len(points)-1] - points[0])
	return t
}

// Range is a parsed reference interval; nil means unbounded on that side.
type Range struct {
	Low  *float64 `json:"low"`
	High *float64 `json:"high"`
}

var (
	boundedRange = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*[-–—]\s*(\d+(?:\.\d+)?)\s*$`)
	upperBound   = regexp.MustCompile(`^\s*[<≤]\s*(\d+(?:\.\d+)?)\s*$`)
	lowerBound   = regexp.MustCompile(`^\s*[>≥]\s*(\d+(?:\.\d+)?)\s*$`)
)

// ParseReferenceRange accepts "A-B" (hyphen or dash variants), "< A"/"≤ A",
// "> A"/"≥ A". Anything else parses to an unbounded range.
func ParseReferenceRange(s string) Range {
	if m := boundedRange.FindStringSubmatch(s); m != nil {
		low, err1 := strconv.ParseFloat(m[1], 64)
		high, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			return Range{Low: &low, High: &high}
		}
	}
	if m := upperBound.FindStringSubmatch(s); m != nil {
		if high, err := strconv.ParseFloat(m[1], 64); err == nil {
			return Range{High: &high}
		}
	}
	if m := lowerBound.FindStringSubmatch(s); m != nil {
		if low, err := strconv.ParseFloat(m[1], 64); err == nil {
			return Range{Low: &low}
		}
	}
	return Range{}
}

const (
	FlagHigh    = "high"
	FlagLow     = "low"
	FlagNormal  = "normal"
	FlagUnknown = "unknown"
)

// FlagLab classifies a numeric lab value against its reference range.
func FlagLab(numeric *float64, referenceRange *string) string {
	if numeric == nil || referenceRange == nil {
		return FlagUnknown
	}
	r := ParseReferenceRange(*referenceRange)
	if r.Low == nil && r.High == nil {
		return FlagUnknown
	}
	switch {
	case r.High != nil && *numeric > *r.High:
		return FlagHigh
	case r.Low != nil && *numeric < *r.Low:
		return FlagLow
	default:
		return FlagNormal
	}
}

var concerningSymptomPattern = regexp.MustCompile(`(?i)(chest pain|dyspnea|fatigue|syncope|dizziness|palpitation|edema|blurred vision)`)

// MatchConcerningSymptoms returns the symptom strings that mention a
// red-flag term.
func MatchConcerningSymptoms(symptoms []string) []string {
	var out []string
	for _, s := range symptoms {
		if concerningSymptomPattern.MatchString(s) {
			out = append(out, s)
		}
	}
	return out
}

// RiskFlags is the deterministic risk assessment persisted with each
// summary.
type RiskFlags struct {
	HighBloodPressureTrend bool     `json:"highBloodPressureTrend"`
	RisingGlucoseTrend     bool     `json:"risingGlucoseTrend"`
	TachycardiaTrend       bool     `json:"tachycardiaTrend"`
	RapidWeightChange      bool     `json:"rapidWeightChange"`
	ConcerningSymptoms     []string `json:"concerningSymptoms"`
	Disclaimer             string   `json:"disclaimer"`
}

// ActiveCount counts the boolean trend flags that fired.
func (f RiskFlags) ActiveCount() int {
	n := 0
	for _, b := range []bool{f.HighBloodPressureTrend, f.RisingGlucoseTrend, f.TachycardiaTrend, f.RapidWeightChange} {
		if b {
			n++
		}
	}
	return n
}

// ComputeRiskFlags derives trend flags from latest-versus-baseline
// z-scores. Directional metrics flag on a high-side excursion; weight flags
// on rapid change in either direction.
func ComputeRiskFlags(bp, glucose, heartRate, weight []float64, symptoms []string) RiskFlags {
	f := RiskFlags{
		ConcerningSymptoms: MatchConcerningSymptoms(symptoms),
		Disclaimer:         Disclaimer,
	}
	if f.ConcerningSymptoms == nil {
		f.ConcerningSymptoms = []string{}
	}
	if z, ok := LatestBaselineZ(bp); ok && z >= DefaultZThreshold {
		f.HighBloodPressureTrend = true
	}
	if z, ok := LatestBaselineZ(glucose); ok && z >= DefaultZThreshold {
		f.RisingGlucoseTrend = true
	}
	if z, ok := LatestBaselineZ(heartRate); ok && z >= DefaultZThreshold {
		f.TachycardiaTrend = true
	}
	if z, ok := LatestBaselineZ(weight); ok && math.Abs(z) >= DefaultZThreshold {
		f.RapidWeightChange = true
	}
	return f
}

type RiskContributor struct {
	Source   string  `json:"source"`
	Weight   float64 `json:"weight"`
	Subscore float64 `json:"subscore"`
	Detail   string  `json:"detail"`
}

type RiskScore struct {
	Score        int               `json:"score"`
	Tier         string            `json:"tier"`
	Contributors []RiskContributor `json:"contributors"`
}

// ScoreTier maps a composite score onto its severity tier.
func ScoreTier(score int) string {
	switch {
	case score < 25:
		return "low"
	case score < 50:
		return "moderate"
	case score < 75:
		return "high"
	default:
		return "critical"
	}
}

func clamp100(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

// CompositeRisk blends four weighted sub-scores into a 0–100 score.
func CompositeRisk(anomalyCount, activeFlags, labsOutOfRange, labsEvaluated, symptomMatches int) RiskScore {
	vitalScore := clamp100(float64(anomalyCount) * 20)
	flagScore := clamp100(float64(activeFlags) * 25)
	labScore := 0.0
	if labsEvaluated > 0 {
		labScore = clamp100(math.Round(100 * float64(labsOutOfRange) / float64(labsEvaluated)))
	}
	symptomScore := clamp100(float64(symptomMatches) * 25)

	contributors := []RiskContributor{
		{Source: "vital_anomalies", Weight: 0.30, Subscore: vitalScore,
			Detail: strconv.Itoa(anomalyCount) + " anomalous vital reading(s)"},
		{Source: "ai_risk_flags", Weight: 0.30, Subscore: flagScore,
			Detail: strconv.Itoa(activeFlags) + " active trend flag(s)"},
		{Source: "lab_out_of_range", Weight: 0.25, Subscore: labScore,
			Detail: strconv.Itoa(labsOutOfRange) + " of " + strconv.Itoa(labsEvaluated) + " evaluated lab(s) out of range"},
		{Source: "concerning_symptoms", Weight: 0.15, Subscore: symptomScore,
			Detail: strconv.Itoa(symptomMatches) + " concerning symptom mention(s)"},
	}

	var total float64
	for _, c := range contributors {
		total += c.Weight * c.Subscore
	}
	score := int(math.Round(total))
	return RiskScore{Score: score, Tier: ScoreTier(score), Contributors: contributors}
}
