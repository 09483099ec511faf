package netserver

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLine(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	return string(msg)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestWebSocketSession(t *testing.T) {
	s, _ := newServer(t)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv.URL)

	assert.Equal(t, "*PROTOCOLS: REC\n", readLine(t, conn))
	assert.Equal(t, "*CAPABILITY: REC name,count\n", readLine(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("!1 ENABLE REC count\n")))
	assert.Equal(t, "*ACK: 1 OK\n", readLine(t, conn))

	s.SendToAll("REC", &record{count: 5})
	assert.Equal(t, "*REC: 5 \n", readLine(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	assert.Eventually(t, func() bool { return s.NumSessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, _ := newServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}

		_ = c.Close()

		return true
	}, 2*time.Second, 10*time.Millisecond)

	conn := dial(t, "http://"+addr)
	assert.Equal(t, "*PROTOCOLS: REC\n", readLine(t, conn))

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.Zero(t, s.NumSessions())
}

func TestListenAndServeMaxClients(t *testing.T) {
	s, _ := newServer(t, WithMaxClients(1))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = s.ListenAndServe(ctx, addr) }()

	var first *websocket.Conn

	require.Eventually(t, func() bool {
		conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr, nil)
		if err != nil {
			return false
		}

		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		first = conn

		return true
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "*PROTOCOLS: REC\n", readLine(t, first))

	short := websocket.Dialer{HandshakeTimeout: 200 * time.Millisecond}

	second, resp, err := short.Dial("ws://"+addr, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if second != nil {
		_ = second.Close()
	}

	require.Error(t, err)

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return s.NumSessions() == 0 }, 2*time.Second, 10*time.Millisecond)

	third := dial(t, "http://"+addr)
	assert.Equal(t, "*PROTOCOLS: REC\n", readLine(t, third))
}

func TestListenAndServeBadAddress(t *testing.T) {
	s, _ := newServer(t)

	err := s.ListenAndServe(context.Background(), "256.0.0.1:bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
