package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Priyankas007/appointment-recorder/internal/summarize"
	"github.com/Priyankas007/appointment-recorder/internal/visits"
	"github.com/Priyankas007/appointment-recorder/pkg/queue"
)

// SummaryProcessor consumes visit summary jobs: load the archived
// transcript, summarize it, store the result.
type SummaryProcessor struct {
	visitRepo *visits.Repository
	client    *summarize.Client
	queue     *queue.Queue
	logger    *zap.Logger
}

// NewSummaryProcessor creates a visit summary processor.
func NewSummaryProcessor(visitRepo *visits.Repository, client *summarize.Client, q *queue.Queue, logger *zap.Logger) *SummaryProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryProcessor{visitRepo: visitRepo, client: client, queue: q, logger: logger}
}

// Process executes one visit summary job.
func (p *SummaryProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeVisitSummary {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.VisitSummaryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	v, err := p.visitRepo.GetByID(ctx, payload.VisitID)
	if err != nil {
		return fmt.Errorf("visit not found: %s: %w", payload.VisitID, err)
	}
	if v.Summary != nil {
		p.logger.Info("visit already summarized", zap.String("visit_id", v.ID.String()))
		return nil
	}

	prompt := summarize.BuildTranscriptPrompt(renderTranscript(v))
	summary, model, err := p.client.Summarize(ctx, prompt)
	if err != nil {
		return fmt.Errorf("summarize visit: %w", err)
	}
	if err := p.visitRepo.UpdateSummary(ctx, v.ID, summary, model); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	p.logger.Info("visit summarized", zap.String("visit_id", v.ID.String()), zap.String("model", model))
	return nil
}

// Run dequeues and processes jobs until ctx is cancelled. Failed jobs are
// retried through the queue with DLQ fallback.
func (p *SummaryProcessor) Run(ctx context.Context) {
	p.logger.Info("summary worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("summary worker stopped")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			_ = p.queue.Retry(ctx, job)
		}
	}
}

func renderTranscript(v *visits.Visit) string {
	var b strings.Builder
	for _, ev := range v.Transcript {
		b.WriteString(ev.Speaker)
		b.WriteString(": ")
		b.WriteString(ev.Text)
		b.WriteString("\n")
	}
	return b.String()
}
