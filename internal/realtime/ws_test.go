package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/model"
)

// 测试用身份：X-Test-User 为 admin 时是管理员，bad 时认证失败
func testPrincipal(r *http.Request) (*model.User, error) {
	switch r.Header.Get("X-Test-User") {
	case "admin":
		return admin, nil
	case "bad":
		return nil, errors.New("invalid token")
	default:
		return nil, nil
	}
}

func newWSServer(t *testing.T) (*Registry, *Hub, string) {
	t.Helper()
	registry := NewRegistry(nil)
	hub := NewHub(registry, zap.NewNop())
	h := NewHandler(registry, testPrincipal, config.RealtimeConfig{
		SendBuffer:   8,
		WriteTimeout: time.Second,
		PingInterval: time.Minute,
	}, zap.NewNop())

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return registry, hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, user string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if user != "" {
		header.Set("X-Test-User", user)
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Frame{Event: event, Data: raw}))
}

func recv(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestWebSocketJoinAndReceive(t *testing.T) {
	require := require.New(t)
	_, hub, url := newWSServer(t)
	ws := dial(t, url, "")

	send(t, ws, "join-election", "e1")
	f := recv(t, ws)
	require.Equal("joined", f.Event)
	require.JSONEq(`{"room":"election-e1"}`, string(f.Data))

	hub.Deliver(Event{Room: ElectionRoom("e1"), Name: EventVoteCast, Data: json.RawMessage(`{"votesCount":1}`)})
	f = recv(t, ws)
	require.Equal(EventVoteCast, f.Event)
	require.JSONEq(`{"votesCount":1}`, string(f.Data))

	send(t, ws, "leave-election", "e1")
	require.Equal("left", recv(t, ws).Event)
}

func TestWebSocketAdminRoomRequiresAdmin(t *testing.T) {
	require := require.New(t)
	registry, _, url := newWSServer(t)

	anon := dial(t, url, "")
	send(t, anon, "join-admin-room", nil)
	f := recv(t, anon)
	require.Equal("error", f.Event)
	require.Empty(registry.Members(AdminRoom))

	// 被拒绝后连接仍然可用
	send(t, anon, "join-election", "e1")
	require.Equal("joined", recv(t, anon).Event)

	adm := dial(t, url, "admin")
	send(t, adm, "join-admin-room", nil)
	require.Equal("joined", recv(t, adm).Event)
	require.Len(registry.Members(AdminRoom), 1)
}

func TestWebSocketRejectsBadCredentials(t *testing.T) {
	_, _, url := newWSServer(t)
	header := http.Header{}
	header.Set("X-Test-User", "bad")

	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketDisconnectLeavesRooms(t *testing.T) {
	require := require.New(t)
	registry, _, url := newWSServer(t)
	ws := dial(t, url, "")

	send(t, ws, "join-election", "e1")
	require.Equal("joined", recv(t, ws).Event)
	require.Len(registry.Members(ElectionRoom("e1")), 1)

	ws.Close()
	require.Eventually(func() bool {
		return len(registry.Members(ElectionRoom("e1"))) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketUnknownEvent(t *testing.T) {
	_, _, url := newWSServer(t)
	ws := dial(t, url, "")
	send(t, ws, "subscribe-everything", nil)
	f := recv(t, ws)
	require.Equal(t, "error", f.Event)
	require.Contains(t, string(f.Data), "unknown event")
}

func TestWebSocketMalformedFrameKeepsConnection(t *testing.T) {
	require := require.New(t)
	_, _, url := newWSServer(t)
	ws := dial(t, url, "")

	for _, raw := range []string{`{"event":1}`, `{"event":"join-election","data":`, `[]`} {
		require.NoError(ws.WriteMessage(websocket.TextMessage, []byte(raw)))
		f := recv(t, ws)
		require.Equal("error", f.Event, raw)
		require.Contains(string(f.Data), "malformed frame")
	}

	send(t, ws, "join-election", "e1")
	require.Equal("joined", recv(t, ws).Event)
}
