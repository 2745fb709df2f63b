package transcribe

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the session lifecycle state. Transitions are one-way:
// Active -> Ending -> Ended.
type State string

const (
	StateActive State = "active"
	StateEnding State = "ending"
	StateEnded  State = "ended"
)

// Session owns one backend instance, an ordered event log, and lifecycle
// state. Each session is locked individually so sessions never contend with
// each other.
//
// Lock order: stateMu before eventsMu. The backend emit path runs while
// stateMu may be held by the pusher, so appendEvent takes only eventsMu.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	logger *zap.Logger

	stateMu sync.Mutex
	state   State
	backend Backend

	eventsMu sync.Mutex
	events   []TranscriptEvent
	seq      uint64
	stats    Stats
	notify   chan struct{} // closed and replaced on every append; wakes pollers

	lastActivity atomic.Int64 // unix nanos

	endOnce sync.Once
	endDone chan struct{}
	endedAt time.Time
	onEnded func(*Session) // archive hook, invoked once after teardown
}

func newSession(logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		logger:    logger,
		state:     StateActive,
		stats:     Stats{SpeakerSegments: make(map[string]int64)},
		notify:    make(chan struct{}),
		endDone:   make(chan struct{}),
	}
	s.touch()
	return s
}

// Variant reports which backend implementation the session runs on.
func (s *Session) Variant() Variant {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.backend.Variant()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// LastActivity returns the time of the last chunk or event.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Stats returns a copy of the running counters.
func (s *Session) Stats() Stats {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	return s.stats.clone()
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Ingest validates state and forwards one chunk to the backend, preserving
// arrival order. Chunk size validation happens in the registry before the
// session is touched.
func (s *Session) Ingest(chunk []byte) error {
	s.stateMu.Lock()
	if s.state != StateActive {
		s.stateMu.Unlock()
		return ErrSessionNotActive
	}
	// Push under stateMu so concurrent ingest calls cannot reorder chunks.
	err := s.backend.PushAudio(chunk)
	s.stateMu.Unlock()
	if err != nil {
		return err
	}

	s.eventsMu.Lock()
	s.stats.Chunks++
	s.stats.Bytes += int64(len(chunk))
	s.eventsMu.Unlock()
	s.touch()
	return nil
}

// appendEvent assigns the next sequence number and appends the event.
// It is the backend emit sink; events arriving after teardown are dropped.
func (s *Session) appendEvent(ev TranscriptEvent) {
	s.eventsMu.Lock()
	select {
	case <-s.endDone:
		s.eventsMu.Unlock()
		return
	default:
	}
	s.seq++
	ev.Sequence = s.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.events = append(s.events, ev)
	if ev.IsFinal {
		s.stats.Words += int64(len(strings.Fields(ev.Text)))
		s.stats.SpeakerSegments[ev.Speaker]++
	}
	close(s.notify)
	s.notify = make(chan struct{})
	s.eventsMu.Unlock()
	s.touch()
}

// EventsAfter returns an ordered copy of events with sequence > afterSeq and
// the new cursor. Sequence numbers are contiguous from 1, so the slice index
// doubles as the cursor.
func (s *Session) EventsAfter(afterSeq uint64) ([]TranscriptEvent, uint64) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if afterSeq >= s.seq {
		return nil, afterSeq
	}
	out := make([]TranscriptEvent, s.seq-afterSeq)
	copy(out, s.events[afterSeq:])
	return out, s.seq
}

// Poll returns events after afterSeq, suspending until a new event arrives,
// ctx is cancelled, or idleTimeout elapses (empty batch). A disconnecting
// poller never affects the session itself.
func (s *Session) Poll(ctx context.Context, afterSeq uint64, idleTimeout time.Duration) ([]TranscriptEvent, uint64, error) {
	deadline := time.NewTimer(idleTimeout)
	defer deadline.Stop()
	for {
		events, last := s.EventsAfter(afterSeq)
		if len(events) > 0 {
			return events, last, nil
		}

		s.eventsMu.Lock()
		wake := s.notify
		s.eventsMu.Unlock()

		select {
		case <-wake:
		case <-s.endDone:
			// drain whatever the teardown flushed, then report empty
			events, last = s.EventsAfter(afterSeq)
			return events, last, nil
		case <-deadline.C:
			return nil, afterSeq, nil
		case <-ctx.Done():
			return nil, afterSeq, ctx.Err()
		}
	}
}

// End drives Active -> Ending -> Ended: drains the backend, releases its
// resources exactly once, and blocks until teardown completes. Safe to call
// from the handler and the reaper concurrently.
func (s *Session) End() {
	s.endOnce.Do(func() {
		s.stateMu.Lock()
		s.state = StateEnding
		backend := s.backend
		s.stateMu.Unlock()

		if err := backend.Finish(); err != nil {
			s.logger.Warn("backend drain failed", zap.String("session_id", s.ID.String()), zap.Error(err))
		}
		if err := backend.Close(); err != nil {
			s.logger.Warn("backend close failed", zap.String("session_id", s.ID.String()), zap.Error(err))
		}

		s.stateMu.Lock()
		s.state = StateEnded
		s.endedAt = time.Now()
		s.stateMu.Unlock()
		close(s.endDone)

		if s.onEnded != nil {
			go s.onEnded(s)
		}
	})
	<-s.endDone
}

// Duration returns the session length; for a live session, time since start.
func (s *Session) Duration() time.Duration {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == StateEnded {
		return s.endedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// FinalTranscript returns only the finalized segments, in order.
func (s *Session) FinalTranscript() []TranscriptEvent {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	out := make([]TranscriptEvent, 0, len(s.events))
	for _, ev := range s.events {
		if ev.IsFinal {
			out = append(out, ev)
		}
	}
	return out
}
