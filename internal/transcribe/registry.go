package transcribe

import (
	"context"
	"time"

	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Priyankas007/appointment-recorder/config"
)

// Registry is the single ownership point for live sessions: process-wide map
// from session id to session, thread-safe under concurrent create/get/remove.
// The map lock covers only map operations; each session carries its own
// locks, so one session never blocks another.
type Registry struct {
	cfg    config.TranscribeConfig
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	onEnded func(*Session)
}

// NewRegistry creates a session registry.
func NewRegistry(cfg config.TranscribeConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// SetEndedHook sets a callback invoked once per session after teardown
// completes (e.g. visit archival). Must be called before sessions start.
func (r *Registry) SetEndedHook(fn func(*Session)) { r.onEnded = fn }

// Create starts a new session. The backend variant is decided here, once:
// streaming when an endpoint is configured and reachable, demo when nothing
// is configured. A configured but unreachable endpoint fails with
// ErrBackendUnavailable instead of silently downgrading.
func (r *Registry) Create() (*Session, error) {
	s := newSession(r.logger)
	s.onEnded = func(ended *Session) {
		r.Remove(ended.ID)
		if r.onEnded != nil {
			r.onEnded(ended)
		}
	}

	var backend Backend
	if r.cfg.StreamingConfigured() {
		backend = NewStreamingBackend(
			r.cfg.WSEndpoint, r.cfg.APIKey, r.cfg.DialTimeout,
			s.appendEvent,
			func(err error) {
				r.logger.Error("backend stream failed, ending session",
					zap.String("session_id", s.ID.String()), zap.Error(err))
				go s.End()
			},
			r.logger,
		)
	} else {
		backend = NewDemoBackend(s.appendEvent, r.cfg.DemoSegmentBytes)
	}
	if err := backend.Start(); err != nil {
		return nil, err
	}
	s.stateMu.Lock()
	s.backend = backend
	s.stateMu.Unlock()

	r.mu.Lock()
	for r.sessions[s.ID] != nil {
		// uuid collisions are not expected; ids are never reused regardless
		s.ID = uuid.New()
	}
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Info("session started",
		zap.String("session_id", s.ID.String()),
		zap.String("backend", string(backend.Variant())))
	return s, nil
}

// Get returns the session for id or ErrSessionNotFound.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	s := r.sessions[id]
	r.mu.RUnlock()
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove evicts id from the registry. Idempotent: removing an unknown or
// already-removed id is a no-op so explicit end and the reaper can race.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// MaxChunkBytes returns the configured per-chunk limit.
func (r *Registry) MaxChunkBytes() int64 { return r.cfg.MaxChunkBytes }

// Ingest is the audio chunk front door: size check first, then session
// lookup, then forward. Oversized chunks never touch session state.
func (r *Registry) Ingest(id uuid.UUID, chunk []byte) error {
	if int64(len(chunk)) > r.cfg.MaxChunkBytes {
		return ErrChunkTooLarge
	}
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	return s.Ingest(chunk)
}

// Poll delivers events after afterSeq for id, suspending up to the
// configured poll idle timeout. Racing with reaper eviction yields either
// the remaining events or a clean ErrSessionNotFound.
func (r *Registry) Poll(ctx context.Context, id uuid.UUID, afterSeq uint64) ([]TranscriptEvent, uint64, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, 0, err
	}
	return s.Poll(ctx, afterSeq, r.cfg.PollIdleTimeout)
}

// End tears down id and removes it. Returns the session when it existed,
// nil otherwise; both outcomes are success to the caller.
func (r *Registry) End(id uuid.UUID) *Session {
	s, err := r.Get(id)
	if err != nil {
		return nil
	}
	s.End()
	r.Remove(id)
	return s
}

// RunReaper sweeps at a fixed interval until ctx is cancelled, ending
// sessions idle longer than the configured timeout. Each sweep iterates a
// snapshot so the registry lock is never held across teardown.
func (r *Registry) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		idle := now.Sub(s.LastActivity())
		if idle <= r.cfg.SessionIdleTimeout {
			continue
		}
		r.logger.Info("reaping idle session",
			zap.String("session_id", s.ID.String()),
			zap.Duration("idle", idle))
		s.End()
		r.Remove(s.ID)
	}
}
