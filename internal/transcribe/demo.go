package transcribe

import (
	"time"
)

// Demo phrases cycle deterministically so the pipeline and UI can be
// exercised without a real STT service.
var demoPhrases = []string{
	"Hello, how are you today?",
	"I'm doing well, thank you for asking.",
	"What brings you here today?",
	"I have an appointment scheduled.",
	"Let me check your records.",
	"Everything looks good so far.",
	"Do you have any questions?",
	"The patient reports feeling better.",
	"We should schedule a follow-up appointment.",
	"The medication seems to be working well.",
	"Please take this prescription to the pharmacy.",
	"Thank you for your time.",
}

var demoSpeakers = []string{"Speaker_1", "Speaker_2", "Speaker_3"}

// DemoBackend synthesizes transcript events at a fixed cadence: one partial
// followed by one final segment for every segmentBytes of audio received
// (roughly two seconds of microphone input at default settings). Speaker
// labels rotate through a small fixed set.
type DemoBackend struct {
	emit         EmitFunc
	segmentBytes int64

	pending int64 // bytes received since last emitted segment
	segment int   // segments emitted so far, indexes phrases and speakers
	closed  bool
}

// NewDemoBackend creates a demo backend emitting through emit.
func NewDemoBackend(emit EmitFunc, segmentBytes int64) *DemoBackend {
	if segmentBytes <= 0 {
		segmentBytes = 32 * 1024
	}
	return &DemoBackend{emit: emit, segmentBytes: segmentBytes}
}

// Start is a no-op; the demo backend needs no external resources.
func (d *DemoBackend) Start() error { return nil }

// PushAudio accumulates bytes and emits a partial plus a final segment each
// time the cadence threshold is crossed.
func (d *DemoBackend) PushAudio(chunk []byte) error {
	if d.closed {
		return ErrSessionNotActive
	}
	d.pending += int64(len(chunk))
	for d.pending >= d.segmentBytes {
		d.pending -= d.segmentBytes
		d.emitSegment(true)
	}
	return nil
}

// Finish drains a trailing segment when enough audio arrived since the last
// one, finalizing directly without a preceding partial.
func (d *DemoBackend) Finish() error {
	if d.closed {
		return nil
	}
	if d.pending >= d.segmentBytes/4 {
		d.pending = 0
		d.emitSegment(false)
	}
	return nil
}

// Close releases nothing but marks the backend terminal. Idempotent.
func (d *DemoBackend) Close() error {
	d.closed = true
	return nil
}

// Variant reports the demo variant.
func (d *DemoBackend) Variant() Variant { return VariantDemo }

func (d *DemoBackend) emitSegment(withPartial bool) {
	phrase := demoPhrases[d.segment%len(demoPhrases)]
	speaker := demoSpeakers[d.segment%len(demoSpeakers)]
	confidence := 0.85 + 0.01*float64(d.segment%14)
	d.segment++

	now := time.Now()
	if withPartial {
		half := phrase[:len(phrase)/2]
		d.emit(TranscriptEvent{
			Speaker:    speaker,
			Text:       half,
			IsFinal:    false,
			Confidence: confidence - 0.05,
			Timestamp:  now,
		})
	}
	d.emit(TranscriptEvent{
		Speaker:    speaker,
		Text:       phrase,
		IsFinal:    true,
		Confidence: confidence,
		Timestamp:  now,
	})
}
