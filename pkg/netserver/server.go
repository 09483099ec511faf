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

// Package netserver delivers tracker records to client sessions using a
// line based, field selectable text protocol.
package netserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/protocol"
)

const defaultSendBuffer = 1024

var (
	errNilProtocol = errors.New("nil protocol")
	errNoRender    = errors.New("protocol has no render function")
	// ErrDuplicateProtocol is returned when a protocol name is registered twice.
	ErrDuplicateProtocol = errors.New("protocol already registered")
	// ErrUnknownSession is returned for operations on a closed or unknown session.
	ErrUnknownSession = errors.New("unknown session")
	// ErrDuplicateCommand is returned when a command verb is already taken.
	ErrDuplicateCommand = errors.New("command already registered")
	errNilCommand       = errors.New("nil command handler")
)

// Option customizes a Server.
type Option func(*Server)

// WithMirror copies every broadcast record to m.
func WithMirror(m Mirror) Option {
	return func(s *Server) { s.mirror = m }
}

// WithSendBuffer sets the number of lines a session may have queued
// before further lines are dropped.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithMaxClients caps concurrent client connections accepted by
// ListenAndServe. Zero means no cap.
func WithMaxClients(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxClients = n
		}
	}
}

// Server owns the protocol table and the client sessions.
type Server struct {
	logger     logger.Logger
	mirror     Mirror
	sendBuffer int
	maxClients int

	mu        sync.RWMutex
	protocols map[string]*protocol.Protocol
	order     []string
	sessions  map[string]*Session
	commands  map[string]func(sessionID string, args []string) error
}

// New creates a server with no protocols and no sessions.
func New(log logger.Logger, opts ...Option) *Server {
	s := &Server{
		logger:     log,
		sendBuffer: defaultSendBuffer,
		protocols:  make(map[string]*protocol.Protocol),
		sessions:   make(map[string]*Session),
		commands:   make(map[string]func(string, []string) error),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RegisterProtocol makes a protocol available to sessions. Names are
// case insensitive and stored upper case.
func (s *Server) RegisterProtocol(p *protocol.Protocol) error {
	if p == nil || p.Name == "" {
		return errNilProtocol
	}

	if p.Render == nil {
		return fmt.Errorf("%w: %s", errNoRender, p.Name)
	}

	name := strings.ToUpper(p.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.protocols[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProtocol, name)
	}

	s.protocols[name] = p
	s.order = append(s.order, name)

	s.logger.Debug().Str("protocol", name).Int("fields", len(p.Fields)).Msg("Registered protocol")

	return nil
}

// RegisterCommand adds a client command verb. The handler runs before the
// acknowledgement; a returned error becomes the *ERROR reply. Verbs are
// case insensitive and may not shadow ENABLE, REMOVE or CAPABILITY.
func (s *Server) RegisterCommand(verb string, fn func(sessionID string, args []string) error) error {
	verb = strings.ToUpper(strings.TrimSpace(verb))

	if verb == "" || fn == nil {
		return errNilCommand
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.commands[verb]; ok || isBuiltinCommand(verb) {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, verb)
	}

	s.commands[verb] = fn

	s.logger.Debug().Str("command", verb).Msg("Registered command")

	return nil
}

func (s *Server) command(verb string) (func(string, []string) error, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn, ok := s.commands[verb]

	return fn, ok
}

// Protocols lists registered protocol names in registration order.
func (s *Server) Protocols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.order...)
}

func (s *Server) lookup(name string) (*protocol.Protocol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.protocols[strings.ToUpper(name)]

	return p, ok
}

// Open creates a session and queues the greeting: the protocol list and
// the capability line of every protocol.
func (s *Server) Open() *Session {
	sess := newSession(uuid.NewString(), s.sendBuffer)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	names := append([]string(nil), s.order...)
	protos := make([]*protocol.Protocol, len(names))

	for i, name := range names {
		protos[i] = s.protocols[name]
	}
	s.mu.Unlock()

	sess.enqueue(frame("PROTOCOLS", strings.Join(names, ",")))

	for i, p := range protos {
		sess.enqueue(capabilityLine(names[i], p))
	}

	s.logger.Info().Str("session", sess.ID).Msg("Session opened")

	return sess
}

// Close removes a session and closes its outbox.
func (s *Server) Close(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return
	}

	sess.close()

	s.logger.Info().
		Str("session", sessionID).
		Int64("dropped", sess.Dropped()).
		Msg("Session closed")
}

// CloseAll closes every session.
func (s *Server) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

// Session returns an open session by id.
func (s *Server) Session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]

	return sess, ok
}

// NumSessions reports the number of open sessions.
func (s *Server) NumSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func (s *Server) snapshot() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// SendToAll renders data for every session subscribed to proto. All
// sessions share one cache so each field is computed once per call.
func (s *Server) SendToAll(proto string, data any) {
	p, ok := s.lookup(proto)
	if !ok {
		s.logger.Debug().Str("protocol", proto).Msg("Send to unregistered protocol")
		return
	}

	name := strings.ToUpper(p.Name)
	cache := protocol.NewCache()
	sent := 0

	for _, sess := range s.snapshot() {
		ids, ok := sess.fields(name)
		if !ok {
			continue
		}

		if sess.enqueue(frame(name, s.render(p, ids, cache, data))) {
			sent++
		}
	}

	if s.mirror != nil {
		s.publish(p, name, cache, data)
	}

	recordBroadcast(context.Background(), name, sent)
}

// SendToClient renders data for one session when it is subscribed to proto.
func (s *Server) SendToClient(sessionID, proto string, data any, cache *protocol.Cache) {
	p, ok := s.lookup(proto)
	if !ok {
		return
	}

	sess, ok := s.Session(sessionID)
	if !ok {
		return
	}

	name := strings.ToUpper(p.Name)

	ids, ok := sess.fields(name)
	if !ok {
		return
	}

	if sess.enqueue(frame(name, s.render(p, ids, cache, data))) {
		recordBroadcast(context.Background(), name, 1)
	}
}

// render returns the record or the error token; a render error never
// aborts delivery.
func (s *Server) render(p *protocol.Protocol, ids []int, cache *protocol.Cache, data any) string {
	line, err := p.Render(ids, cache, data)
	if err != nil {
		recordRenderError(context.Background(), p.Name)
		s.logger.Debug().Err(err).Str("protocol", p.Name).Msg("Render failed")
	}

	return line
}

func (s *Server) publish(p *protocol.Protocol, name string, cache *protocol.Cache, data any) {
	all := make([]int, len(p.Fields))
	for i := range all {
		all[i] = i
	}

	line := s.render(p, all, cache, data)

	if err := s.mirror.Publish(name, p.Fields, line); err != nil {
		s.logger.Warn().Err(err).Str("protocol", name).Msg("Mirror publish failed")
	}
}

func frame(proto, body string) string {
	return "*" + proto + ": " + body + "\n"
}

func capabilityLine(name string, p *protocol.Protocol) string {
	return frame("CAPABILITY", name+" "+strings.Join(p.Fields, ","))
}
