package transcribe

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// drainWait bounds how long Finish waits for the service to flush in-flight
// results after the finalize control message.
const drainWait = 5 * time.Second

// streamResult is the wire format of transcript messages from the STT
// service: diarized segments with partial/final flag and confidence.
type streamResult struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	IsFinal    bool    `json:"is_final"`
	Confidence float64 `json:"confidence"`
}

// StreamingBackend forwards audio to an external diarization/STT service
// over a websocket and converts its asynchronous results into transcript
// events. A connection failure at Start surfaces ErrBackendUnavailable; a
// mid-stream failure is reported through onError and ends only this session.
type StreamingBackend struct {
	endpoint    string
	apiKey      string
	dialTimeout time.Duration
	emit        EmitFunc
	onError     ErrorFunc
	logger      *zap.Logger

	writeMu   sync.Mutex
	conn      *websocket.Conn
	readDone  chan struct{}
	closeOnce sync.Once
}

// NewStreamingBackend creates a streaming backend for the given endpoint.
func NewStreamingBackend(endpoint, apiKey string, dialTimeout time.Duration, emit EmitFunc, onError ErrorFunc, logger *zap.Logger) *StreamingBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamingBackend{
		endpoint:    endpoint,
		apiKey:      apiKey,
		dialTimeout: dialTimeout,
		emit:        emit,
		onError:     onError,
		logger:      logger,
		readDone:    make(chan struct{}),
	}
}

// Start dials the STT service and begins the result read loop.
func (b *StreamingBackend) Start() error {
	dialer := websocket.Dialer{HandshakeTimeout: b.dialTimeout}
	header := http.Header{}
	if b.apiKey != "" {
		header.Set("Authorization", "Bearer "+b.apiKey)
	}
	conn, _, err := dialer.Dial(b.endpoint, header)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrBackendUnavailable, b.endpoint, err)
	}
	b.conn = conn
	go b.readLoop()
	b.logger.Info("streaming backend connected", zap.String("endpoint", b.endpoint))
	return nil
}

// PushAudio sends one chunk as a binary frame, preserving arrival order.
func (b *StreamingBackend) PushAudio(chunk []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.conn == nil {
		return ErrSessionNotActive
	}
	if err := b.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("write audio frame: %w", err)
	}
	return nil
}

// Finish asks the service to flush remaining results and waits briefly for
// the read loop to drain them. Drain is best effort.
func (b *StreamingBackend) Finish() error {
	b.writeMu.Lock()
	if b.conn != nil {
		_ = b.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"finalize"}`))
	}
	b.writeMu.Unlock()

	select {
	case <-b.readDone:
	case <-time.After(drainWait):
		b.logger.Warn("streaming backend drain timed out", zap.String("endpoint", b.endpoint))
	}
	return nil
}

// Close tears the connection down exactly once.
func (b *StreamingBackend) Close() error {
	b.closeOnce.Do(func() {
		b.writeMu.Lock()
		defer b.writeMu.Unlock()
		if b.conn != nil {
			_ = b.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = b.conn.Close()
		}
	})
	return nil
}

// Variant reports the real streaming variant.
func (b *StreamingBackend) Variant() Variant { return VariantStreaming }

func (b *StreamingBackend) readLoop() {
	defer close(b.readDone)
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			b.logger.Warn("streaming backend read failed", zap.Error(err))
			if b.onError != nil {
				b.onError(err)
			}
			return
		}
		var res streamResult
		if err := json.Unmarshal(data, &res); err != nil {
			b.logger.Warn("streaming backend bad result payload", zap.Error(err))
			continue
		}
		if res.Text == "" {
			continue
		}
		b.emit(TranscriptEvent{
			Speaker:    res.Speaker,
			Text:       res.Text,
			IsFinal:    res.IsFinal,
			Confidence: res.Confidence,
			Timestamp:  time.Now(),
		})
	}
}
