package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/engine"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/order"
)

type fakeSource struct {
	mu        sync.Mutex
	online    bool
	pending   []ops.Operation
	listeners map[int]engine.Listener
	next      int
}

func (f *fakeSource) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeSource) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *fakeSource) Pending() []ops.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ops.Operation(nil), f.pending...)
}

func (f *fakeSource) Unsaved() int { return 0 }

func (f *fakeSource) Subscribe(fn engine.Listener) func() {
	f.mu.Lock()
	if f.listeners == nil {
		f.listeners = map[int]engine.Listener{}
	}
	id := f.next
	f.next++
	f.listeners[id] = fn
	pending, online := len(f.pending), f.online
	f.mu.Unlock()

	fn(pending, online)
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeSource) set(online bool, pending []ops.Operation) {
	f.mu.Lock()
	f.online = online
	f.pending = pending
	listeners := make([]engine.Listener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()
	for _, l := range listeners {
		l(len(pending), online)
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func pendingOps() []ops.Operation {
	return []ops.Operation{
		{ID: "op-1", Seq: 1, OrderID: "ORD-1", Payload: ops.Status{Status: order.StatusPreparing},
			CreatedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
		{ID: "op-2", Seq: 2, OrderID: "ORD-1", Payload: ops.Cancel{}, Attempts: 2, LastError: "remote store unavailable",
			CreatedAt: time.Date(2025, 1, 1, 12, 0, 1, 0, time.UTC)},
	}
}

func TestStatus(t *testing.T) {
	src := &fakeSource{online: true, pending: pendingOps()}
	srv := httptest.NewServer(New(src).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var got Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, Status{Pending: 2, Online: true}, got)
}

func TestPending(t *testing.T) {
	src := &fakeSource{pending: pendingOps()}
	srv := httptest.NewServer(New(src).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pending")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []PendingOp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, ops.KindStatus, got[0].Kind)
	assert.Equal(t, ops.KindCancel, got[1].Kind)
	assert.Equal(t, 2, got[1].Attempts)
	assert.Equal(t, "remote store unavailable", got[1].LastError)
}

func TestPending_EmptyIsArray(t *testing.T) {
	srv := httptest.NewServer(New(&fakeSource{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pending")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	engine.NewMetrics(reg)

	srv := httptest.NewServer(New(&fakeSource{}, WithGatherer(reg)).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	without := httptest.NewServer(New(&fakeSource{}).Handler())
	defer without.Close()
	resp2, err := http.Get(without.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(New(&fakeSource{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/status", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebSocket_StreamsChanges(t *testing.T) {
	src := &fakeSource{}
	srv := httptest.NewServer(New(src).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first Status
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, Status{Pending: 0, Online: false}, first)

	src.set(true, pendingOps())
	var second Status
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, Status{Pending: 2, Online: true}, second)
}

func TestWebSocket_UnsubscribesOnClose(t *testing.T) {
	src := &fakeSource{}
	srv := httptest.NewServer(New(src).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var first Status
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, 1, src.subscribers())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return src.subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}
