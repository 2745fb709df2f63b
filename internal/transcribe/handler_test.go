package transcribe

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priyankas007/appointment-recorder/config"
	"github.com/Priyankas007/appointment-recorder/pkg/response"
)

func newTestRouter(cfg config.TranscribeConfig) (*Registry, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	registry := NewRegistry(cfg, nil)
	handler := NewHandler(registry, nil)

	router := gin.New()
	router.POST("/transcribe/start", handler.Start)
	router.POST("/transcribe/stream/:id", handler.Stream)
	router.GET("/transcribe/poll/:id", handler.Poll)
	router.GET("/transcribe/events/:id", handler.Events)
	router.POST("/transcribe/end/:id", handler.End)
	return registry, router
}

func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) response.Body {
	t.Helper()
	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestStartReturnsDemoSession(t *testing.T) {
	_, router := newTestRouter(testConfig())

	w := doRequest(router, http.MethodPost, "/transcribe/start", nil)

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.True(t, body.Success)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, "demo", data["backend"])
	_, err := uuid.Parse(data["session_id"].(string))
	assert.NoError(t, err)
}

func TestStartUnreachableStreamingIs503(t *testing.T) {
	cfg := testConfig()
	cfg.WSEndpoint = "ws://127.0.0.1:1/stt"
	cfg.APIKey = "test-key"
	cfg.DialTimeout = 100 * time.Millisecond
	_, router := newTestRouter(cfg)

	w := doRequest(router, http.MethodPost, "/transcribe/start", nil)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody(t, w)
	assert.False(t, body.Success)
	assert.Equal(t, response.CodeBackendUnavailable, body.Code)
}

func TestStreamInvalidSessionID(t *testing.T) {
	_, router := newTestRouter(testConfig())

	w := doRequest(router, http.MethodPost, "/transcribe/stream/not-a-uuid", []byte("audio"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamUnknownSession(t *testing.T) {
	_, router := newTestRouter(testConfig())

	w := doRequest(router, http.MethodPost, "/transcribe/stream/"+uuid.NewString(), []byte("audio"))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeSessionNotFound, decodeBody(t, w).Code)
}

func TestStreamEmptyBody(t *testing.T) {
	registry, router := newTestRouter(testConfig())
	s, err := registry.Create()
	require.NoError(t, err)

	w := doRequest(router, http.MethodPost, "/transcribe/stream/"+s.ID.String(), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamChunkTooLarge(t *testing.T) {
	registry, router := newTestRouter(testConfig())
	s, err := registry.Create()
	require.NoError(t, err)

	oversized := bytes.Repeat([]byte{0x00}, 1025)
	w := doRequest(router, http.MethodPost, "/transcribe/stream/"+s.ID.String(), oversized)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, response.CodeChunkTooLarge, decodeBody(t, w).Code)
	stats := s.Stats()
	assert.Zero(t, stats.Chunks)
	assert.Zero(t, stats.Bytes)
}

func TestStreamAccumulatesStats(t *testing.T) {
	registry, router := newTestRouter(testConfig())
	s, err := registry.Create()
	require.NoError(t, err)

	chunk := bytes.Repeat([]byte{0x00}, 16)
	w := doRequest(router, http.MethodPost, "/transcribe/stream/"+s.ID.String(), chunk)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(router, http.MethodPost, "/transcribe/stream/"+s.ID.String(), chunk)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w).Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["chunks"])
	assert.Equal(t, float64(32), data["bytes"])
}

func TestStreamAfterEndIsConflict(t *testing.T) {
	registry, router := newTestRouter(testConfig())
	s, err := registry.Create()
	require.NoError(t, err)
	s.End()
	require.Eventually(t, func() bool { return registry.Count() == 0 }, time.Second, 5*time.Millisecond)

	// keep the ended session resolvable so the state check is what rejects
	registry.mu.Lock()
	registry.sessions[s.ID] = s
	registry.mu.Unlock()

	w := doRequest(router, http.MethodPost, "/transcribe/stream/"+s.ID.String(), []byte("audio"))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.CodeSessionNotActive, decodeBody(t, w).Code)
}

func TestPollReturnsEventsAndResumes(t *testing.T) {
	registry, router := newTestRouter(testConfig())
	s, err := registry.Create()
	require.NoError(t, err)
	require.NoError(t, registry.Ingest(s.ID, bytes.Repeat([]byte{0x00}, 16)))

	w := doRequest(router, http.MethodGet, "/transcribe/poll/"+s.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var batch eventBatch
	raw, err := json.Marshal(decodeBody(t, w).Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &batch))
	require.Len(t, batch.Events, 2)
	assert.Equal(t, uint64(2), batch.LastSeq)

	// resuming past the last delivered sequence yields an empty batch
	w = doRequest(router, http.MethodGet, "/transcribe/poll/"+s.ID.String()+"?after_seq=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	raw, err = json.Marshal(decodeBody(t, w).Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &batch))
	assert.Empty(t, batch.Events)
}

func TestPollInvalidAfterSeq(t *testing.T) {
	registry, router := newTestRouter(testConfig())
	s, err := registry.Create()
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/transcribe/poll/"+s.ID.String()+"?after_seq=banana", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPollUnknownSession(t *testing.T) {
	_, router := newTestRouter(testConfig())

	w := doRequest(router, http.MethodGet, "/transcribe/poll/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEndUnknownSessionIsOK(t *testing.T) {
	_, router := newTestRouter(testConfig())

	w := doRequest(router, http.MethodPost, "/transcribe/end/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w).Data.(map[string]interface{})
	assert.Equal(t, "ended", data["status"])
}

func TestEndReturnsFinalTranscript(t *testing.T) {
	registry, router := newTestRouter(testConfig())
	s, err := registry.Create()
	require.NoError(t, err)
	require.NoError(t, registry.Ingest(s.ID, bytes.Repeat([]byte{0x00}, 32)))

	w := doRequest(router, http.MethodPost, "/transcribe/end/"+s.ID.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w).Data.(map[string]interface{})
	assert.Equal(t, "ended", data["status"])
	assert.Equal(t, "demo", data["backend"])
	assert.Equal(t, float64(2), data["total_entries"])
	assert.Len(t, data["final_transcript"], 2)
	assert.Equal(t, 0, registry.Count())
}

func TestEventsStreamDeliversAndClosesOnEnd(t *testing.T) {
	registry, router := newTestRouter(testConfig())
	s, err := registry.Create()
	require.NoError(t, err)
	require.NoError(t, registry.Ingest(s.ID, bytes.Repeat([]byte{0x00}, 16)))

	srv := httptest.NewServer(router)
	defer srv.Close()

	go func() {
		time.Sleep(150 * time.Millisecond)
		registry.End(s.ID)
	}()

	resp, err := http.Get(srv.URL + "/transcribe/events/" + s.ID.String())
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	stream := string(raw)
	assert.Contains(t, stream, "event: transcript")
	assert.Contains(t, stream, "event: session_ended")
	assert.Less(t, strings.Index(stream, "event: transcript"), strings.Index(stream, "event: session_ended"))
}

func TestEventsUnknownSession(t *testing.T) {
	_, router := newTestRouter(testConfig())

	w := doRequest(router, http.MethodGet, "/transcribe/events/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
