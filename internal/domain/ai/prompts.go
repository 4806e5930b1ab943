package ai

import (
	"encoding/json"
	"strings"
)

// SectionHeaders enumerates the required summary sections in order. Both
// the model prompt and the fallback renderer emit exactly these.
var SectionHeaders = []string{
	"Clinical Overview",
	"Vital Sign Trends",
	"Laboratory Findings",
	"Symptom Analysis",
	"Risk Assessment",
	"Recommended Monitoring",
	"Disclaimer",
}

const summarySystemPrompt = `You are a clinical documentation assistant. You receive an anonymized,
structured snapshot of a patient's recent vitals, laboratory results, and
reported symptoms. Produce a concise clinical summary organized under
exactly these section headers, in this order:

Clinical Overview
Vital Sign Trends
Laboratory Findings
Symptom Analysis
Risk Assessment
Recommended Monitoring
Disclaimer

Rules:
- Describe observations and trends only. Never state or imply a diagnosis.
- Never invent data that is not in the snapshot.
- Note explicitly when a section has insufficient data.
- The Disclaimer section must state that this is AI-assisted decision
  support, is not a diagnosis, and requires clinician review.`

const chatSystemPrompt = `You are a clinical records assistant. Answer the question using only the
anonymized patient context provided. If the context does not contain the
answer, say so plainly. Describe observations only; never diagnose. End
every answer with a one-sentence reminder that this is not a diagnosis and
requires clinician review.`

// summaryUserPrompt renders the anonymized snapshot as the user message.
func summaryUserPrompt(in *AnonymizedInput) string {
	snapshot, _ := json.MarshalIndent(in, "", "  ")
	var b strings.Builder
	b.WriteString("Anonymized patient snapshot (session ")
	b.WriteString(in.SessionID)
	b.WriteString("):\n\n")
	b.Write(snapshot)
	b.WriteString("\n\nWrite the clinical summary now.")
	return b.String()
}

func chatUserPrompt(in *AnonymizedInput, question string) string {
	snapshot, _ := json.MarshalIndent(in, "", "  ")
	var b strings.Builder
	b.WriteString("Anonymized patient context:\n\n")
	b.Write(snapshot)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
