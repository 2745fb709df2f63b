package transcribe

import "time"

// TranscriptEvent is one diarized transcript segment emitted by a backend.
// Sequence numbers are assigned by the owning session at emission time,
// strictly increasing and never reused. Partial events carry their own
// sequence numbers; superseding a partial is a consumer concern, the
// transport never retracts a delivered event.
type TranscriptEvent struct {
	Sequence   uint64    `json:"sequence"`
	Speaker    string    `json:"speaker"`
	Text       string    `json:"text"`
	IsFinal    bool      `json:"is_final"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stats holds running counters for a session.
type Stats struct {
	Chunks          int64            `json:"chunks"`
	Bytes           int64            `json:"bytes"`
	Words           int64            `json:"words"`
	SpeakerSegments map[string]int64 `json:"speaker_segments"`
}

func (s Stats) clone() Stats {
	out := s
	out.SpeakerSegments = make(map[string]int64, len(s.SpeakerSegments))
	for k, v := range s.SpeakerSegments {
		out.SpeakerSegments[k] = v
	}
	return out
}
