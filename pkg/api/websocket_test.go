package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPreview(t *testing.T) (*websocket.Conn, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/preview/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, env
}

func roundTrip(t *testing.T, conn *websocket.Conn, req PreviewRequest) PreviewMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteJSON(req))
	var msg PreviewMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPreviewPing(t *testing.T) {
	conn, env := dialPreview(t)
	msg := roundTrip(t, conn, PreviewRequest{Type: MessagePing, ID: "1"})
	assert.Equal(t, MessagePong, msg.Type)
	assert.Equal(t, "1", msg.ID)
	assert.Equal(t, 1, env.server.preview.ConnectedClients())
}

func TestPreviewNormalize(t *testing.T) {
	conn, _ := dialPreview(t)
	msg := roundTrip(t, conn, PreviewRequest{
		Type:      MessageNormalize,
		ID:        "n",
		Document:  json.RawMessage(editorDocument),
		Direction: "LR",
	})
	require.Equal(t, MessageDefinition, msg.Type, msg.Error)
	require.NotNil(t, msg.Definition)
	assert.Equal(t, "orders", msg.Definition.Name)
	assert.True(t, strings.HasPrefix(msg.Diagram, "flowchart LR\n"))
}

func TestPreviewRender(t *testing.T) {
	conn, _ := dialPreview(t)
	var req PreviewRequest
	require.NoError(t, json.Unmarshal([]byte(`{"type":"render","tasks":[{"name":"A","taskReferenceName":"a","type":"SIMPLE"}]}`), &req))

	msg := roundTrip(t, conn, req)
	require.Equal(t, MessageDiagram, msg.Type, msg.Error)
	assert.Contains(t, msg.Diagram, `a_0["A"]`)
}

func TestPreviewErrors(t *testing.T) {
	conn, _ := dialPreview(t)

	msg := roundTrip(t, conn, PreviewRequest{Type: "subscribe"})
	assert.Equal(t, MessageError, msg.Type)
	assert.Contains(t, msg.Error, "subscribe")

	msg = roundTrip(t, conn, PreviewRequest{Type: MessageNormalize})
	assert.Equal(t, MessageError, msg.Type)

	msg = roundTrip(t, conn, PreviewRequest{Type: MessageRender, Direction: "XY"})
	assert.Equal(t, MessageError, msg.Type)
	assert.Contains(t, msg.Error, "XY")

	msg = roundTrip(t, conn, PreviewRequest{
		Type:     MessageNormalize,
		Document: json.RawMessage(`{"nodes":[{"id":"x","label":"Mystery"}]}`),
	})
	assert.Equal(t, MessageError, msg.Type)
	assert.Contains(t, msg.Error, "Mystery")
}

func TestPreviewCloseAll(t *testing.T) {
	conn, env := dialPreview(t)
	roundTrip(t, conn, PreviewRequest{Type: MessagePing})

	env.server.preview.CloseAll()
	assert.Equal(t, 0, env.server.preview.ConnectedClients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
