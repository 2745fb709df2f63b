package transcribe

// Variant identifies which backend implementation a session runs on.
// The choice is made once at session start and never changes.
type Variant string

const (
	// VariantStreaming is the real STT service over a websocket connection.
	VariantStreaming Variant = "streaming"
	// VariantDemo is the deterministic simulator used when no streaming
	// credentials are configured. It is a first-class mode, not an error
	// path: the start response reports it so the UI can show demo mode.
	VariantDemo Variant = "demo"
)

// EmitFunc receives transcript segments from a backend. The sequence number
// is assigned by the session, so backends leave Sequence zero.
type EmitFunc func(TranscriptEvent)

// ErrorFunc receives a fatal mid-stream backend error. The session responds
// by ending itself with a best-effort drain; other sessions are unaffected.
type ErrorFunc func(error)

// Backend consumes audio chunks and produces diarized transcript events
// through the emit callback. Implementations must be safe for one concurrent
// pusher; Close must be idempotent.
type Backend interface {
	// Start establishes backend resources. A streaming backend that cannot
	// reach its service returns ErrBackendUnavailable.
	Start() error
	// PushAudio forwards one audio chunk, in arrival order.
	PushAudio(chunk []byte) error
	// Finish drains in-flight partial results into final events.
	Finish() error
	// Close releases backend resources. Safe to call more than once.
	Close() error
	// Variant reports which implementation this is.
	Variant() Variant
}
