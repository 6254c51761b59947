package wsconsumer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crossspread-arb/internal/appctx"
	"crossspread-arb/internal/backoff"
	"crossspread-arb/internal/svcerr"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu          sync.Mutex
	connects    int32
	disconnects int32
	messages    []string
	onConnect   func(*Writer) error
	onMessage   func(string, *Writer) error
	connectedCh chan struct{}
}

func (h *recordingHandler) OnConnect(w *Writer) error {
	atomic.AddInt32(&h.connects, 1)
	if h.connectedCh != nil {
		close(h.connectedCh)
	}
	if h.onConnect != nil {
		return h.onConnect(w)
	}
	return nil
}

func (h *recordingHandler) OnMessage(data []byte, w *Writer) error {
	h.mu.Lock()
	h.messages = append(h.messages, string(data))
	h.mu.Unlock()
	if h.onMessage != nil {
		return h.onMessage(string(data), w)
	}
	return nil
}

func (h *recordingHandler) OnDisconnect() {
	atomic.AddInt32(&h.disconnects, 1)
}

func (h *recordingHandler) OnHeartbeat(w *Writer) {}

var upgrader = websocket.Upgrader{}

func echoServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.WriteMessage(websocket.TextMessage, msg)
		}
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, url
}

func TestOnConnectCalledExactlyOncePerCycle(t *testing.T) {
	srv, url := echoServer(t)
	defer srv.Close()

	handler := &recordingHandler{connectedCh: make(chan struct{})}
	consumer := New(Config{
		Name:              "test",
		URL:               url,
		HeartbeatInterval: time.Hour,
		Handler:           handler,
		Backoff:           backoff.New(10*time.Millisecond, 100*time.Millisecond, 3),
	})

	ctx := appctx.New()
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	select {
	case <-handler.connectedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect")
	}

	assert.True(t, consumer.IsConnected())
	ctx.Cancel(appctx.Exit)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&handler.connects))
	assert.Equal(t, int32(1), atomic.LoadInt32(&handler.disconnects))
	assert.False(t, consumer.IsConnected())
}

func TestOnMessageDeliversInboundFrames(t *testing.T) {
	srv, url := echoServer(t)
	defer srv.Close()

	received := make(chan struct{})
	handler := &recordingHandler{connectedCh: make(chan struct{})}
	handler.onConnect = func(w *Writer) error {
		return w.Write([]byte("ping"))
	}
	handler.onMessage = func(msg string, w *Writer) error {
		close(received)
		return nil
	}

	consumer := New(Config{
		Name:              "test",
		URL:               url,
		HeartbeatInterval: time.Hour,
		Handler:           handler,
		Backoff:           backoff.New(10*time.Millisecond, 100*time.Millisecond, 3),
	})

	ctx := appctx.New()
	go consumer.Run(ctx)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}

	ctx.Cancel(appctx.Exit)
}

func TestUnrecoverableErrorTerminates(t *testing.T) {
	srv, url := echoServer(t)
	defer srv.Close()

	handler := &recordingHandler{connectedCh: make(chan struct{})}
	handler.onConnect = func(w *Writer) error {
		return w.Write([]byte("trigger"))
	}
	handler.onMessage = func(msg string, w *Writer) error {
		return svcerr.NewUnrecoverable("test", assertErr)
	}

	consumer := New(Config{
		Name:              "test",
		URL:               url,
		HeartbeatInterval: time.Hour,
		Handler:           handler,
		Backoff:           backoff.New(10*time.Millisecond, 100*time.Millisecond, 3),
	})

	ctx := appctx.New()
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	<-handler.connectedCh

	select {
	case err := <-done:
		var unrecoverable *svcerr.Unrecoverable
		assert.ErrorAs(t, err, &unrecoverable)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate on unrecoverable error")
	}
}

var assertErr = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
