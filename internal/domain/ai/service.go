package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibrief/medibrief/internal/domain/analytics"
	"github.com/medibrief/medibrief/internal/domain/audit"
	"github.com/medibrief/medibrief/internal/domain/clinic"
	"github.com/medibrief/medibrief/internal/domain/patients"
	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/events"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/internal/platform/llm"
	"github.com/medibrief/medibrief/internal/platform/queue"
)

// QueueName is the durable queue carrying summary generation jobs.
const QueueName = "ai-summary-generation"

const (
	maxChatMessageLen = 2000

	llmTemperature = 0.25
	llmMaxTokens   = 1500
)

// JobQueue is the slice of the queue API the service needs; tests swap in
// an in-memory implementation.
type JobQueue interface {
	Enqueue(ctx context.Context, payload any) (string, error)
	Status(ctx context.Context, jobID string) (*queue.Status, error)
}

type Service struct {
	summaries SummaryRepository
	clinics   clinic.Repository
	patients  patients.Repository
	input     *InputBuilder
	jobs      JobQueue
	bus       *events.Bus
	provider  llm.Provider // nil when no model is configured
	audit     *audit.Service
	quotas    clinic.QuotaLimits
	logger    zerolog.Logger
}

func NewService(
	summaries SummaryRepository,
	clinics clinic.Repository,
	patientRepo patients.Repository,
	input *InputBuilder,
	jobs JobQueue,
	bus *events.Bus,
	provider llm.Provider,
	auditSvc *audit.Service,
	quotas clinic.QuotaLimits,
	logger zerolog.Logger,
) *Service {
	return &Service{
		summaries: summaries,
		clinics:   clinics,
		patients:  patientRepo,
		input:     input,
		jobs:      jobs,
		bus:       bus,
		provider:  provider,
		audit:     auditSvc,
		quotas:    quotas,
		logger:    logger,
	}
}

// checkQuota resets the billing window if a new UTC month started, then
// rejects when the plan's monthly ceiling is already reached.
func (s *Service) checkQuota(ctx context.Context, clinicID uuid.UUID) error {
	cl, err := s.clinics.ResetBillingPeriodIfStale(ctx, clinicID)
	if err != nil {
		return err
	}
	limit := s.quotas.MonthlyLimit(cl.SubscriptionPlan)
	if cl.AICallCount >= limit {
		return httperr.New(httperr.KindRateLimited, "monthly AI quota exceeded").
			WithExtra("monthlyLimit", limit)
	}
	return nil
}

// EnqueueResult is the accepted-response body for a queued generation.
type EnqueueResult struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// GenerateSummary validates tenancy and quota, then enqueues a generation
// job. The counter increment is at-least-once: a retry after a lost ack may
// double-count, never under-count.
func (s *Service) GenerateSummary(ctx context.Context, actorID, patientID uuid.UUID) (*EnqueueResult, error) {
	clinicID := db.ClinicFromContext(ctx)
	if _, err := s.patients.GetByID(ctx, clinicID, patientID); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, clinicID); err != nil {
		return nil, err
	}

	jobID, err := s.jobs.Enqueue(ctx, JobPayload{
		ClinicID:  clinicID,
		PatientID: patientID,
		UserID:    actorID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.clinics.IncrementAICalls(ctx, clinicID); err != nil {
		s.logger.Error().Err(err).Str("clinic_id", clinicID.String()).Msg("quota increment failed")
	}

	return &EnqueueResult{JobID: jobID, Status: string(queue.StateQueued)}, nil
}

// JobStatusResponse is the polled view of a generation job.
type JobStatusResponse struct {
	State        string  `json:"state"`
	SummaryID    *string `json:"summaryId,omitempty"`
	FailedReason *string `json:"failedReason,omitempty"`
}

func (s *Service) JobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	st, err := s.jobs.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	// Job records carry their clinic; another tenant's job is
	// indistinguishable from an unknown one.
	var payload JobPayload
	if err := json.Unmarshal(st.Payload, &payload); err != nil || payload.ClinicID != db.ClinicFromContext(ctx) {
		return nil, httperr.New(httperr.KindNotFound, "job not found")
	}
	resp := &JobStatusResponse{State: string(st.State)}
	if st.State == queue.StateCompleted && st.Result != "" {
		r := st.Result
		resp.SummaryID = &r
	}
	if st.FailedReason != "" {
		fr := st.FailedReason
		resp.FailedReason = &fr
	}
	return resp, nil
}

func (s *Service) GetSummary(ctx context.Context, id uuid.UUID) (*AISummary, error) {
	return s.summaries.GetByID(ctx, db.ClinicFromContext(ctx), id)
}

func (s *Service) ListSummaries(ctx context.Context, patientID uuid.UUID) ([]*AISummary, error) {
	if _, err := s.patients.GetByID(ctx, db.ClinicFromContext(ctx), patientID); err != nil {
		return nil, err
	}
	return s.summaries.ListByPatient(ctx, patientID, 0)
}

// generate runs the full pipeline for one job payload: structured input,
// deterministic risk flags, model call with fallback, persistence, audit,
// and the terminal completion event.
func (s *Service) generate(ctx context.Context, payload JobPayload) (*AISummary, error) {
	in, err := s.input.Build(ctx, payload.ClinicID, payload.PatientID)
	if err != nil {
		return nil, err
	}

	flags := analytics.ComputeRiskFlags(
		trendChronological(in.BPTrend),
		trendChronological(in.GlucoseTrend),
		trendChronological(in.HeartRateTrend),
		trendChronological(in.WeightTrend),
		in.RecentSymptoms,
	)

	text := s.summaryText(ctx, in, flags)

	summary := &AISummary{PatientID: payload.PatientID, SummaryText: text, RiskFlags: flags}
	if err := s.summaries.Create(ctx, summary); err != nil {
		return nil, err
	}
	s.audit.RecordBestEffort(ctx, payload.ClinicID, payload.UserID,
		"AI_SUMMARY_GENERATE", "AISummary", summary.ID)
	return summary, nil
}

// summaryText calls the configured provider; any error falls back to the
// deterministic renderer and never fails the job.
func (s *Service) summaryText(ctx context.Context, in *StructuredInput, flags analytics.RiskFlags) string {
	if s.provider == nil {
		return RenderFallbackSummary(in, flags)
	}

	anon := Anonymize(in)
	out, err := s.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: summaryUserPrompt(anon)},
	}, llm.Options{Temperature: llmTemperature, MaxTokens: llmMaxTokens})
	if err != nil {
		s.logger.Warn().Err(err).Msg("model call failed, using fallback summary")
		return RenderFallbackSummary(in, flags)
	}
	return out
}

// ProcessJob is the queue handler. The returned result string is the
// summary id, surfaced through job status and the completion event.
func (s *Service) ProcessJob(ctx context.Context, job *queue.Job) (string, error) {
	var payload JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("malformed job payload: %w", err)
	}

	summary, err := s.generate(ctx, payload)
	if err != nil {
		return "", err
	}
	return summary.ID.String(), nil
}

// PublishCompleted emits the terminal success event for a job.
func (s *Service) PublishCompleted(jobID, summaryID string) {
	s.bus.Publish(context.Background(), events.JobEvent{
		JobID:     jobID,
		State:     string(queue.StateCompleted),
		SummaryID: &summaryID,
	})
}

// PublishFailed emits the terminal failure event for a job.
func (s *Service) PublishFailed(jobID, reason string) {
	s.bus.Publish(context.Background(), events.JobEvent{
		JobID:        jobID,
		State:        string(queue.StateFailed),
		FailedReason: &reason,
	})
}

// ChatResponse is the synchronous question-answering result.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// Chat answers a question about a patient from anonymized context only.
// Same quota as summary generation; no queue.
func (s *Service) Chat(ctx context.Context, actorID, patientID uuid.UUID, message string) (*ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" || len(message) > maxChatMessageLen {
		return nil, httperr.Validation(map[string]string{
			"message": "required, at most 2000 characters",
		})
	}

	clinicID := db.ClinicFromContext(ctx)
	if _, err := s.patients.GetByID(ctx, clinicID, patientID); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, clinicID); err != nil {
		return nil, err
	}

	in, err := s.input.Build(ctx, clinicID, patientID)
	if err != nil {
		return nil, err
	}

	if err := s.clinics.IncrementAICalls(ctx, clinicID); err != nil {
		s.logger.Error().Err(err).Str("clinic_id", clinicID.String()).Msg("quota increment failed")
	}

	anon := Anonymize(in)
	answer := s.chatAnswer(ctx, anon, message)
	s.audit.RecordBestEffort(ctx, clinicID, actorID, "AI_CHAT", "Patient", patientID)
	return &ChatResponse{Answer: answer}, nil
}

func (s *Service) chatAnswer(ctx context.Context, anon *AnonymizedInput, question string) string {
	if s.provider != nil {
		out, err := s.provider.Complete(ctx, []llm.Message{
			{Role: "system", Content: chatSystemPrompt},
			{Role: "user", Content: chatUserPrompt(anon, question)},
		}, llm.Options{Temperature: llmTemperature, MaxTokens: llmMaxTokens})
		if err == nil {
			return out
		}
		s.logger.Warn().Err(err).Msg("model call failed, using fallback answer")
	}
	return renderFallbackChatAnswer(anon)
}

// renderFallbackChatAnswer gives a deterministic context recap when no
// model is reachable.
func renderFallbackChatAnswer(anon *AnonymizedInput) string {
	var b strings.Builder
	b.WriteString("A language model is not available right now, so here is the recorded context. ")
	fmt.Fprintf(&b, "Age band %s. ", anon.AgeBand)
	fmt.Fprintf(&b, "Readings on file: %d blood pressure, %d glucose, %d heart rate, %d weight. ",
		len(anon.BPTrend), len(anon.GlucoseTrend), len(anon.HeartRateTrend), len(anon.WeightTrend))
	if len(anon.RecentSymptoms) > 0 {
		fmt.Fprintf(&b, "Recent symptoms: %s. ", strings.Join(anon.RecentSymptoms, "; "))
	}
	if len(anon.RecentLabs) > 0 {
		fmt.Fprintf(&b, "%d recent lab result(s) on file. ", len(anon.RecentLabs))
	}
	b.WriteString(analytics.Disclaimer)
	return b.String()
}
