package diagram

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"projectron-api/internal/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// silentCDP completes the websocket handshake and then never answers.
type silentCDP struct {
	ln      net.Listener
	accepts atomic.Int32

	mu    sync.Mutex
	conns []net.Conn
}

func newSilentCDP(t *testing.T) *silentCDP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &silentCDP{ln: ln}
	go s.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, c := range s.conns {
			_ = c.Close()
		}
	})
	return s
}

func (s *silentCDP) url() string {
	return "ws://" + s.ln.Addr().String() + "/devtools/browser/silent"
}

func (s *silentCDP) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handshake(conn)
	}
}

func (s *silentCDP) handshake(conn net.Conn) {
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return
	}
	sum := sha1.Sum([]byte(req.Header.Get("Sec-WebSocket-Key") + "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
	_, _ = conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\nConnection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + base64.StdEncoding.EncodeToString(sum[:]) + "\r\n\r\n"))
	s.accepts.Add(1)
}

// refusedURL points at a port nothing listens on.
func refusedURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "ws://" + addr + "/devtools/browser/gone"
}

// hungClient is a connected session whose browser stopped responding.
type hungClient struct {
	mu      sync.Mutex
	methods []string
}

func (h *hungClient) Event() <-chan *cdp.Event { return make(chan *cdp.Event) }

func (h *hungClient) Call(ctx context.Context, _, method string, _ interface{}) ([]byte, error) {
	h.mu.Lock()
	h.methods = append(h.methods, method)
	h.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (h *hungClient) calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.methods...)
}

func observedRenderer(cfg config.RendererConfig) (*BrowserRenderer, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return NewBrowserRenderer(cfg, zap.New(core)), logs
}

func sessionReleased(r *BrowserRenderer) bool {
	if !r.mu.TryLock() {
		return false
	}
	r.mu.Unlock()
	return true
}

func TestBrowserRenderer_RetriesRefusedConnection(t *testing.T) {
	r, logs := observedRenderer(config.RendererConfig{
		ControlURL:      refusedURL(t),
		MaxRetries:      3,
		RetryDelay:      50 * time.Millisecond,
		ValidateTimeout: 5 * time.Second,
	})

	start := time.Now()
	err := r.Validate(context.Background(), "A -> B: hi")
	elapsed := time.Since(start)

	require.ErrorContains(t, err, "renderer failed after 3 attempts")
	var se *SyntaxError
	require.False(t, errors.As(err, &se))
	require.Equal(t, 3, logs.FilterMessage("renderer session unavailable").Len())
	require.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	require.Less(t, elapsed, 5*time.Second)
	require.True(t, sessionReleased(r))
	require.Nil(t, r.browser)
}

func TestBrowserRenderer_SilentBrowserDoesNotHoldSession(t *testing.T) {
	stub := newSilentCDP(t)
	r, _ := observedRenderer(config.RendererConfig{
		ControlURL:      stub.url(),
		MaxRetries:      3,
		RetryDelay:      10 * time.Millisecond,
		ValidateTimeout: 200 * time.Millisecond,
	})

	for i := 0; i < 3; i++ {
		start := time.Now()
		err := r.Validate(context.Background(), "A -> B: hi")
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Less(t, time.Since(start), time.Second)

		require.Eventually(t, func() bool { return sessionReleased(r) }, 2*time.Second, 10*time.Millisecond)
	}

	r.mu.Lock()
	require.Nil(t, r.browser)
	require.Nil(t, r.cancelSession)
	r.mu.Unlock()
	require.EqualValues(t, 3, stub.accepts.Load())
}

func TestBrowserRenderer_DropsStaleSession(t *testing.T) {
	r, logs := observedRenderer(config.RendererConfig{
		ControlURL:      refusedURL(t),
		MaxRetries:      1,
		ValidateTimeout: 2 * time.Second,
	})
	r.sessionTimeout = 50 * time.Millisecond
	hung := &hungClient{}
	r.browser = rod.New().Client(hung)

	start := time.Now()
	err := r.Validate(context.Background(), "A -> B: hi")
	require.ErrorContains(t, err, "connect to browser")
	require.Less(t, time.Since(start), time.Second)

	require.Equal(t, 1, logs.FilterMessage("renderer session is stale, reconnecting").Len())
	require.Equal(t, []string{"Browser.getVersion", "Browser.close"}, hung.calls())
	require.True(t, sessionReleased(r))
	require.Nil(t, r.browser)
}

func TestBrowserRenderer_CallerGivesUpWhileQueued(t *testing.T) {
	r, logs := observedRenderer(config.RendererConfig{ControlURL: refusedURL(t), MaxRetries: 1})

	r.mu.Lock()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Validate(ctx, "A -> B: hi")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	r.mu.Unlock()

	require.Eventually(t, func() bool { return sessionReleased(r) }, time.Second, 10*time.Millisecond)
	require.Zero(t, logs.FilterMessage("renderer session unavailable").Len())
}

func TestNewBrowserRenderer_NilLogger(t *testing.T) {
	r := NewBrowserRenderer(config.RendererConfig{}, nil)
	require.NotNil(t, r.logger)
	require.Equal(t, defaultSessionTimeout, r.sessionTimeout)
}
