package visits

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Priyankas007/appointment-recorder/internal/transcribe"
	"github.com/Priyankas007/appointment-recorder/pkg/queue"
)

// Archiver persists ended sessions and queues them for summarization. It is
// wired as the registry's session-ended hook and runs entirely off the
// session hot path.
type Archiver struct {
	repo   *Repository
	queue  *queue.Queue // optional; nil skips summarization
	logger *zap.Logger
}

// NewArchiver creates an archiver. q may be nil.
func NewArchiver(repo *Repository, q *queue.Queue, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{repo: repo, queue: q, logger: logger}
}

// SessionEnded archives one completed session. Sessions with no finalized
// segments are not worth keeping.
func (a *Archiver) SessionEnded(s *transcribe.Session) {
	transcript := s.FinalTranscript()
	if len(transcript) == 0 {
		return
	}
	stats := s.Stats()
	v := &Visit{
		ID:         s.ID,
		Backend:    string(s.Variant()),
		StartedAt:  s.StartedAt,
		EndedAt:    s.StartedAt.Add(s.Duration()),
		Transcript: transcript,
		ChunkCount: stats.Chunks,
		ByteCount:  stats.Bytes,
		WordCount:  stats.Words,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.repo.Create(ctx, v); err != nil {
		a.logger.Error("archive visit failed", zap.String("visit_id", v.ID.String()), zap.Error(err))
		return
	}
	a.logger.Info("visit archived",
		zap.String("visit_id", v.ID.String()), zap.Int("segments", len(transcript)))

	if a.queue == nil {
		return
	}
	if err := a.queue.EnqueueVisitSummary(ctx, queue.VisitSummaryPayload{VisitID: v.ID}); err != nil {
		a.logger.Warn("enqueue visit summary failed", zap.String("visit_id", v.ID.String()), zap.Error(err))
	}
}
