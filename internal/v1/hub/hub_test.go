package hub

import (
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

type recordingHandler struct {
	mu          sync.Mutex
	connected   []*Connection
	frames      []string
	disconnects []*Connection
}

func (r *recordingHandler) HandleConnect(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, conn)
}

func (r *recordingHandler) HandleFrame(conn *Connection, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, string(raw))
}

func (r *recordingHandler) HandleDisconnect(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects = append(r.disconnects, conn)
}

func (r *recordingHandler) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recordingHandler) disconnectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.disconnects)
}

func newTestServer(t *testing.T, h *Hub) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.Accept))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func TestAccept_RegistersConnectionAndDeliversFrame(t *testing.T) {
	h := New(10, nil)
	rec := &recordingHandler{}
	h.SetHandler(rec)

	srv, url := newTestServer(t, h)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	require.Eventually(t, func() bool { return rec.frameCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, h.ConnectionCount())
}

func TestAccept_RefusesAtCapacity(t *testing.T) {
	h := New(0, nil)
	h.SetHandler(&recordingHandler{})

	srv, url := newTestServer(t, h)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDisconnect_RunsHandlerAndDropsFromHub(t *testing.T) {
	h := New(10, nil)
	rec := &recordingHandler{}
	h.SetHandler(rec)

	srv, url := newTestServer(t, h)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	ws.Close()

	require.Eventually(t, func() bool { return h.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return rec.disconnectCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBroadcastToRoom_ExcludesGivenUser(t *testing.T) {
	h := New(10, nil)
	h.SetHandler(&recordingHandler{})

	srv, url := newTestServer(t, h)
	defer srv.Close()

	wsA, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer wsA.Close()
	wsB, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer wsB.Close()

	require.Eventually(t, func() bool { return h.ConnectionCount() == 2 }, time.Second, 10*time.Millisecond)

	var connA, connB *Connection
	h.mu.RLock()
	for _, c := range h.byID {
		if connA == nil {
			connA = c
		} else {
			connB = c
		}
	}
	h.mu.RUnlock()

	h.BindUser(connA, "userA")
	h.BindUser(connB, "userB")
	h.BindRoom(connA, "room1")
	h.BindRoom(connB, "room1")

	h.BroadcastToRoom("room1", []byte("hello"), "userA")

	wsB.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := wsB.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	wsA.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = wsA.ReadMessage()
	assert.Error(t, err, "expected the excluded sender to receive nothing")
}

func TestBindUser_DuplicateAuthEvictsOlderConnection(t *testing.T) {
	h := New(10, nil)
	h.SetHandler(&recordingHandler{})

	srv, url := newTestServer(t, h)
	defer srv.Close()

	wsOld, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer wsOld.Close()
	wsNew, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer wsNew.Close()

	require.Eventually(t, func() bool { return h.ConnectionCount() == 2 }, time.Second, 10*time.Millisecond)

	var connOld, connNew *Connection
	h.mu.RLock()
	for _, c := range h.byID {
		if connOld == nil {
			connOld = c
		} else {
			connNew = c
		}
	}
	h.mu.RUnlock()

	h.BindUser(connOld, "dupuser")
	h.BindUser(connNew, "dupuser")

	require.Eventually(t, func() bool { return connOld.IsClosed() }, time.Second, 10*time.Millisecond)

	h.mu.RLock()
	boundConnID := h.byUser["dupuser"]
	h.mu.RUnlock()
	assert.Equal(t, connNew.ID, boundConnID)
}
