package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/redpacket-backend/internal/adapter/repository/memory"
	"github.com/simaogato/redpacket-backend/internal/domain"
)

// recordingSubmitter captures submitted claims
type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []domain.ClaimRequest
	err  error
}

func (s *recordingSubmitter) Submit(ctx context.Context, req domain.ClaimRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return s.err
}

func (s *recordingSubmitter) requests() []domain.ClaimRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ClaimRequest(nil), s.reqs...)
}

type testServer struct {
	*httptest.Server
	registry  *memory.ConnectionRegistry
	submitter *recordingSubmitter
	handler   *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	registry := memory.NewConnectionRegistry(nil, nil)
	submitter := &recordingSubmitter{}
	handler := NewHandler(registry, submitter, nil)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, registry: registry, submitter: submitter, handler: handler}
}

func (s *testServer) dial(t *testing.T, clientID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/eventbus?" + ClientIDParam + "=" + clientID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func (s *testServer) waitRegistered(t *testing.T, clientID string) domain.Connection {
	t.Helper()
	var conn domain.Connection
	require.Eventually(t, func() bool {
		c, ok := s.registry.Lookup(clientID)
		conn = c
		return ok
	}, time.Second, 5*time.Millisecond)
	return conn
}

func TestValidClientID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{id: "alice", want: true},
		{id: "Client42", want: true},
		{id: "", want: false},
		{id: "has space", want: false},
		{id: "dash-ed", want: false},
		{id: "ünicode", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidClientID(tt.id))
		})
	}
}

func TestHandler_RejectsInvalidClientID(t *testing.T) {
	srv := newTestServer(t)

	_, resp, err := srv.dial(t, "bad-id")

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, srv.registry.Count())
}

func TestHandler_RegistersAndDelivers(t *testing.T) {
	srv := newTestServer(t)
	client, _, err := srv.dial(t, "alice")
	require.NoError(t, err)

	conn := srv.waitRegistered(t, "alice")
	assert.Equal(t, "alice", conn.ClientID())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Send(ctx, map[string]string{"type": "claim_result", "status": "granted"}))

	var got map[string]string
	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, "granted", got["status"])
}

func TestHandler_UnregistersOnDisconnect(t *testing.T) {
	srv := newTestServer(t)
	client, _, err := srv.dial(t, "bob")
	require.NoError(t, err)
	srv.waitRegistered(t, "bob")

	require.NoError(t, client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	client.Close()

	assert.Eventually(t, func() bool {
		_, ok := srv.registry.Lookup("bob")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestHandler_DuplicateClientIsRefused(t *testing.T) {
	srv := newTestServer(t)
	first, _, err := srv.dial(t, "carol")
	require.NoError(t, err)
	original := srv.waitRegistered(t, "carol")

	second, _, err := srv.dial(t, "carol")
	require.NoError(t, err)

	require.NoError(t, second.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = second.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)

	current, ok := srv.registry.Lookup("carol")
	require.True(t, ok)
	assert.Same(t, original, current)

	// the first connection keeps receiving messages
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, current.Send(ctx, map[string]string{"type": "ping"}))
	var got map[string]string
	require.NoError(t, first.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, first.ReadJSON(&got))
	assert.Equal(t, "ping", got["type"])
}

func TestHandler_InboundClaimUsesConnectionClientID(t *testing.T) {
	srv := newTestServer(t)
	client, _, err := srv.dial(t, "dave")
	require.NoError(t, err)
	srv.waitRegistered(t, "dave")

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`)))
	require.NoError(t, client.WriteJSON(map[string]string{"type": TypeClaim, "id": "p1", "clientId": "mallory"}))

	require.Eventually(t, func() bool {
		return len(srv.submitter.requests()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.ClaimRequest{PacketID: "p1", ClientID: "dave"}, srv.submitter.requests()[0])
}

func TestHandler_Shutdown(t *testing.T) {
	srv := newTestServer(t)
	client, _, err := srv.dial(t, "erin")
	require.NoError(t, err)
	srv.waitRegistered(t, "erin")

	srv.handler.Shutdown()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Eventually(t, func() bool { return srv.registry.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestConn_SendHonoursCancelledContext(t *testing.T) {
	srv := newTestServer(t)
	_, _, err := srv.dial(t, "frank")
	require.NoError(t, err)
	conn := srv.waitRegistered(t, "frank")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, conn.Send(ctx, "x"), context.Canceled)
}
