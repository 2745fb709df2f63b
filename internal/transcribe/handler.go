package transcribe

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Priyankas007/appointment-recorder/pkg/response"
)

// Handler handles live transcription HTTP endpoints.
type Handler struct {
	registry *Registry
	logger   *zap.Logger
}

// NewHandler creates a transcription handler.
func NewHandler(registry *Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, logger: logger}
}

// eventBatch is the poll/stream response payload.
type eventBatch struct {
	SessionID string            `json:"session_id"`
	Events    []TranscriptEvent `json:"events"`
	LastSeq   uint64            `json:"last_seq"`
}

// Start handles POST /transcribe/start. The response reports which backend
// variant the session runs on so the UI can surface demo mode.
func (h *Handler) Start(c *gin.Context) {
	s, err := h.registry.Create()
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			response.ServiceUnavailable(c, err.Error(), response.CodeBackendUnavailable)
			return
		}
		h.logger.Error("start session failed", zap.Error(err))
		response.Internal(c, "failed to start session")
		return
	}
	response.Created(c, gin.H{
		"session_id": s.ID,
		"backend":    s.Variant(),
	})
}

// Stream handles POST /transcribe/stream/:id with a raw audio chunk body.
func (h *Handler) Stream(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	chunk, err := io.ReadAll(io.LimitReader(c.Request.Body, h.registry.MaxChunkBytes()+1))
	if err != nil {
		response.BadRequest(c, "failed to read audio data")
		return
	}
	if len(chunk) == 0 {
		response.BadRequest(c, "no audio data provided")
		return
	}

	if err := h.registry.Ingest(id, chunk); err != nil {
		h.writeError(c, err)
		return
	}
	s, err := h.registry.Get(id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	stats := s.Stats()
	response.OK(c, gin.H{
		"session_id": id,
		"audio_size": len(chunk),
		"chunks":     stats.Chunks,
		"bytes":      stats.Bytes,
	})
}

// Poll handles GET /transcribe/poll/:id?after_seq=N. Suspends up to the poll
// idle timeout when no events are available, then returns an empty batch.
func (h *Handler) Poll(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	afterSeq, err := strconv.ParseUint(c.DefaultQuery("after_seq", "0"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid after_seq")
		return
	}

	events, last, err := h.registry.Poll(c.Request.Context(), id, afterSeq)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			h.writeError(c, err)
			return
		}
		// poller went away; nothing to write
		return
	}
	if events == nil {
		events = []TranscriptEvent{}
	}
	response.OK(c, eventBatch{SessionID: id.String(), Events: events, LastSeq: last})
}

// Events handles GET /transcribe/events/:id as a Server-Sent Events stream.
// Resumable: pass after_seq to pick up where a previous connection stopped.
// Disconnecting only drops the stream; the session lives on until ended or
// reaped.
func (h *Handler) Events(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	cursor, err := strconv.ParseUint(c.DefaultQuery("after_seq", "0"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid after_seq")
		return
	}
	if _, err := h.registry.Get(id); err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Internal(c, "streaming unsupported")
		return
	}

	ctx := c.Request.Context()
	for {
		events, last, err := h.registry.Poll(ctx, id, cursor)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				writeSSE(c.Writer, "session_ended", gin.H{"session_id": id})
				flusher.Flush()
			}
			return
		}
		if len(events) == 0 {
			// idle timeout elapsed; keep the connection warm
			_, _ = c.Writer.WriteString(": keepalive\n\n")
			flusher.Flush()
			continue
		}
		cursor = last
		writeSSE(c.Writer, "transcript", eventBatch{SessionID: id.String(), Events: events, LastSeq: last})
		flusher.Flush()
	}
}

// End handles POST /transcribe/end/:id. Idempotent: ending an unknown or
// already-ended session still returns OK.
func (h *Handler) End(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	s := h.registry.End(id)
	if s == nil {
		response.OK(c, gin.H{"session_id": id, "status": "ended"})
		return
	}
	stats := s.Stats()
	final := s.FinalTranscript()
	response.OK(c, gin.H{
		"session_id":       id,
		"status":           "ended",
		"backend":          s.Variant(),
		"duration_seconds": s.Duration().Seconds(),
		"final_transcript": final,
		"total_entries":    len(final),
		"stats":            stats,
	})
}

func (h *Handler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.NotFound(c, err.Error(), response.CodeSessionNotFound)
	case errors.Is(err, ErrSessionNotActive):
		response.Conflict(c, err.Error(), response.CodeSessionNotActive)
	case errors.Is(err, ErrChunkTooLarge):
		response.TooLarge(c, err.Error(), response.CodeChunkTooLarge)
	default:
		h.logger.Error("transcribe request failed", zap.Error(err))
		response.Internal(c, "internal error")
	}
}

func writeSSE(w io.Writer, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = io.WriteString(w, "event: "+event+"\ndata: "+string(data)+"\n\n")
}
