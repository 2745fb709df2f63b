package visits

import (
	"time"

	"github.com/google/uuid"

	"github.com/Priyankas007/appointment-recorder/internal/transcribe"
)

// Visit is an archived transcription session: the finalized transcript plus
// counters, and the summary once the worker has produced one.
type Visit struct {
	ID           uuid.UUID                    `json:"id"`
	Backend      string                       `json:"backend"`
	StartedAt    time.Time                    `json:"started_at"`
	EndedAt      time.Time                    `json:"ended_at"`
	Transcript   []transcribe.TranscriptEvent `json:"transcript"`
	ChunkCount   int64                        `json:"chunk_count"`
	ByteCount    int64                        `json:"byte_count"`
	WordCount    int64                        `json:"word_count"`
	Summary      *string                      `json:"summary,omitempty"`
	SummaryModel *string                      `json:"summary_model,omitempty"`
	SummarizedAt *time.Time                   `json:"summarized_at,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
}
