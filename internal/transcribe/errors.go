package transcribe

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown or already
	// evicted. Clients should start a new session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotActive is returned for audio sent to an ending or ended
	// session. The chunk is dropped, not buffered.
	ErrSessionNotActive = errors.New("session not active")

	// ErrChunkTooLarge is returned when a single audio chunk exceeds the
	// configured maximum. The session stats are left untouched.
	ErrChunkTooLarge = errors.New("audio chunk exceeds maximum size")

	// ErrBackendUnavailable is returned when the streaming backend is
	// configured but the connection fails at session start. Sessions never
	// silently downgrade to the demo backend.
	ErrBackendUnavailable = errors.New("transcription backend unavailable")
)
