package ai

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// AnonymizedInput is the PHI-free projection sent to the model provider.
// The session id replaces every caller-facing identifier and is minted
// fresh per invocation.
type AnonymizedInput struct {
	SessionID      string     `json:"sessionId"`
	AgeBand        string     `json:"ageBand"`
	BPTrend        []float64  `json:"bpTrend"`
	GlucoseTrend   []float64  `json:"glucoseTrend"`
	HeartRateTrend []float64  `json:"heartRateTrend"`
	WeightTrend    []float64  `json:"weightTrend"`
	RecentSymptoms []string   `json:"recentSymptoms"`
	RecentLabs     []LabValue `json:"recentLabValues"`
}

// AgeBand maps an exact age onto a five-year band; unknown or negative
// ages stay opaque.
func AgeBand(age int) string {
	if age < 0 {
		return "unknown"
	}
	lo := (age / 5) * 5
	return fmt.Sprintf("%d-%d", lo, lo+4)
}

var (
	salutationPattern = regexp.MustCompile(`(?i)\b(mr|mrs|ms|dr|patient|name)\b\.?:?\s*`)
	capitalPairs      = regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)
	phoneLike         = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)
	emailLike         = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	multiSpace        = regexp.MustCompile(`\s+`)

	markerCase = strings.NewReplacer(
		"[redacted]", "[REDACTED]",
		"[phone]", "[PHONE]",
		"[email]", "[EMAIL]",
	)
)

// NormalizeSymptom strips anything name-, phone-, or email-shaped from a
// free-text symptom string.
func NormalizeSymptom(s string) string {
	// Name-shaped capitalized pairs must be redacted before lowercasing
	// destroys the signal.
	s = strings.TrimSpace(s)
	s = emailLike.ReplaceAllString(s, "[EMAIL]")
	s = phoneLike.ReplaceAllString(s, "[PHONE]")
	s = salutationPattern.ReplaceAllString(s, "")
	s = capitalPairs.ReplaceAllString(s, "[REDACTED]")
	s = strings.ToLower(s)
	// Lowercasing runs last; restore the marker tokens.
	s = markerCase.Replace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Anonymize converts a structured input into its external-safe form.
// Numeric series and lab rows carry no PHI and pass through unchanged.
func Anonymize(in *StructuredInput) *AnonymizedInput {
	out := &AnonymizedInput{
		SessionID:      uuid.NewString(),
		AgeBand:        AgeBand(in.Age),
		BPTrend:        in.BPTrend,
		GlucoseTrend:   in.GlucoseTrend,
		HeartRateTrend: in.HeartRateTrend,
		WeightTrend:    in.WeightTrend,
		RecentLabs:     in.RecentLabs,
		RecentSymptoms: make([]string, 0, len(in.RecentSymptoms)),
	}
	for _, s := range in.RecentSymptoms {
		if n := NormalizeSymptom(s); n != "" {
			out.RecentSymptoms = append(out.RecentSymptoms, n)
		}
	}
	return out
}
