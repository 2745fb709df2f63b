package transcribe

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startWsServer(t *testing.T) (*Registry, string) {
	gin.SetMode(gin.TestMode)
	registry := NewRegistry(testConfig(), nil)
	router := gin.New()
	router.GET("/ws/transcribe", ServeWs(registry, zap.NewNop()))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return registry, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/transcribe"
}

func readWsMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWsDeliversBatchesAndResumes(t *testing.T) {
	registry, url := startWsServer(t)
	s, err := registry.Create()
	require.NoError(t, err)
	require.NoError(t, registry.Ingest(s.ID, bytes.Repeat([]byte{0x00}, 16)))

	conn, _, err := websocket.DefaultDialer.Dial(url+"?session_id="+s.ID.String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readWsMessage(t, conn)
	require.Equal(t, "transcript", msg.Event)
	var batch eventBatch
	require.NoError(t, json.Unmarshal(msg.Data, &batch))
	require.Len(t, batch.Events, 2)
	assert.Equal(t, uint64(2), batch.LastSeq)

	// new audio arrives while connected; delivery resumes past the cursor
	// and may arrive split across batches
	require.NoError(t, registry.Ingest(s.ID, bytes.Repeat([]byte{0x00}, 16)))
	var got []TranscriptEvent
	for len(got) < 2 {
		msg = readWsMessage(t, conn)
		require.Equal(t, "transcript", msg.Event)
		require.NoError(t, json.Unmarshal(msg.Data, &batch))
		got = append(got, batch.Events...)
	}
	assert.Equal(t, uint64(3), got[0].Sequence)
	assert.Equal(t, uint64(4), got[1].Sequence)
}

func TestWsReconnectWithCursorSkipsDelivered(t *testing.T) {
	registry, url := startWsServer(t)
	s, err := registry.Create()
	require.NoError(t, err)
	require.NoError(t, registry.Ingest(s.ID, bytes.Repeat([]byte{0x00}, 32)))

	conn, _, err := websocket.DefaultDialer.Dial(url+"?session_id="+s.ID.String()+"&after_seq=2", nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readWsMessage(t, conn)
	require.Equal(t, "transcript", msg.Event)
	var batch eventBatch
	require.NoError(t, json.Unmarshal(msg.Data, &batch))
	require.Len(t, batch.Events, 2)
	assert.Equal(t, uint64(3), batch.Events[0].Sequence)
}

func TestWsSessionEndedNotice(t *testing.T) {
	registry, url := startWsServer(t)
	s, err := registry.Create()
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?session_id="+s.ID.String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		registry.End(s.ID)
	}()

	// skip keepalive pings until the ended notice arrives
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Event == "session_ended" {
			return
		}
	}
}

func TestWsUnknownSessionRejected(t *testing.T) {
	_, url := startWsServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?session_id="+uuid.NewString(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWsMissingSessionIDRejected(t *testing.T) {
	_, url := startWsServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
