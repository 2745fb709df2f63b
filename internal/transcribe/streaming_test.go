package transcribe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sttServer is a fake streaming STT service: it echoes every binary audio
// frame back as a final transcript result and closes cleanly on finalize.
type sttServer struct {
	t *testing.T

	mu         sync.Mutex
	authHeader string
	frames     int
}

func (s *sttServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.authHeader = r.Header.Get("Authorization")
	s.mu.Unlock()

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	require.NoError(s.t, err)
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			s.mu.Lock()
			s.frames++
			n := s.frames
			s.mu.Unlock()
			payload, _ := json.Marshal(streamResult{
				Speaker:    "Speaker_1",
				Text:       "segment " + string(rune('0'+n)),
				IsFinal:    true,
				Confidence: 0.93,
			})
			_ = conn.WriteMessage(websocket.TextMessage, payload)
		case websocket.TextMessage:
			if strings.Contains(string(data), "finalize") {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}
}

func startSTT(t *testing.T) (*sttServer, string) {
	stt := &sttServer{t: t}
	srv := httptest.NewServer(http.HandlerFunc(stt.handler))
	t.Cleanup(srv.Close)
	return stt, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamingRoundTrip(t *testing.T) {
	stt, url := startSTT(t)

	var mu sync.Mutex
	var events []TranscriptEvent
	b := NewStreamingBackend(url, "stt-key", time.Second, func(ev TranscriptEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}, nil, nil)

	require.NoError(t, b.Start())
	require.NoError(t, b.PushAudio([]byte("chunk-one")))
	require.NoError(t, b.PushAudio([]byte("chunk-two")))
	require.NoError(t, b.Finish())
	require.NoError(t, b.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, "segment 1", events[0].Text)
	assert.Equal(t, "segment 2", events[1].Text)
	assert.True(t, events[0].IsFinal)
	assert.InDelta(t, 0.93, events[0].Confidence, 0.001)

	stt.mu.Lock()
	defer stt.mu.Unlock()
	assert.Equal(t, "Bearer stt-key", stt.authHeader)
}

func TestStreamingDialFailure(t *testing.T) {
	b := NewStreamingBackend("ws://127.0.0.1:1/stt", "key", 100*time.Millisecond, func(TranscriptEvent) {}, nil, nil)

	err := b.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestStreamingMidStreamErrorReported(t *testing.T) {
	// server drops the connection without a close handshake
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		_, _, _ = conn.ReadMessage()
		_ = conn.NetConn().Close()
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	errCh := make(chan error, 1)
	b := NewStreamingBackend(url, "key", time.Second, func(TranscriptEvent) {}, func(err error) {
		errCh <- err
	}, nil)

	require.NoError(t, b.Start())
	require.NoError(t, b.PushAudio([]byte("chunk")))

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("mid-stream error was not reported")
	}
	require.NoError(t, b.Close())
}

func TestStreamingPushBeforeStart(t *testing.T) {
	b := NewStreamingBackend("ws://unused", "key", time.Second, func(TranscriptEvent) {}, nil, nil)

	assert.ErrorIs(t, b.PushAudio([]byte("chunk")), ErrSessionNotActive)
}

func TestStreamingIgnoresMalformedResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"speaker":"Speaker_1","text":"","is_final":true}`))
		payload, _ := json.Marshal(streamResult{Speaker: "Speaker_1", Text: "real", IsFinal: true, Confidence: 0.9})
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		// hold the connection open until the client closes
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	var mu sync.Mutex
	var events []TranscriptEvent
	b := NewStreamingBackend(url, "key", time.Second, func(ev TranscriptEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}, nil, nil)

	require.NoError(t, b.Start())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "real", events[0].Text)
	mu.Unlock()
	require.NoError(t, b.Close())
}
