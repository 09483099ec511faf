/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package netserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	shutdownWait   = 5 * time.Second
)

// Handler upgrades HTTP requests to websocket sessions. Each text message
// from the client may carry one or more newline separated commands; each
// queued line is written as one text message.
func (s *Server) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("remote_addr", r.RemoteAddr).
				Msg("Failed to upgrade to WebSocket")

			return
		}

		sess := s.Open()

		s.logger.Info().
			Str("remote_addr", r.RemoteAddr).
			Str("session", sess.ID).
			Msg("WebSocket connection established")

		go s.writePump(conn, sess)

		s.readPump(conn, sess)
	})
}

func (s *Server) readPump(conn *websocket.Conn, sess *Session) {
	defer func() {
		s.Close(sess.ID)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Str("session", sess.ID).Msg("WebSocket read error")
			}

			return
		}

		for _, line := range strings.Split(string(msg), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}

			_ = s.HandleCommand(sess.ID, line)
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case line, ok := <-sess.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				s.logger.Debug().Err(err).Str("session", sess.ID).Msg("WebSocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ListenAndServe serves websocket sessions on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	if s.maxClients > 0 {
		ln = netutil.LimitListener(ln, s.maxClients)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts websocket sessions on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: writeWait,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Int("max_clients", s.maxClients).
			Msg("Listening for client sessions")

		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()

	s.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
