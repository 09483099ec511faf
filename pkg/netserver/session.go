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
	"strings"
	"sync"
	"sync/atomic"
)

// Session is one connected client: its subscriptions and its outbound queue.
type Session struct {
	ID string

	mu     sync.RWMutex
	subs   map[string][]int
	out    chan string
	closed bool

	dropped atomic.Int64
}

func newSession(id string, buffer int) *Session {
	return &Session{
		ID:   id,
		subs: make(map[string][]int),
		out:  make(chan string, buffer),
	}
}

// Outbox yields framed lines in send order. It is closed with the session.
func (s *Session) Outbox() <-chan string {
	return s.out
}

// Dropped counts lines discarded because the outbox was full.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

// Subscribed reports whether the session enabled proto.
func (s *Session) Subscribed(proto string) bool {
	_, ok := s.fields(proto)
	return ok
}

func (s *Session) fields(proto string) ([]int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.subs[strings.ToUpper(proto)]

	return ids, ok
}

func (s *Session) subscribe(proto string, ids []int) {
	s.mu.Lock()
	s.subs[strings.ToUpper(proto)] = ids
	s.mu.Unlock()
}

func (s *Session) unsubscribe(proto string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToUpper(proto)
	if _, ok := s.subs[key]; !ok {
		return false
	}

	delete(s.subs, key)

	return true
}

// enqueue queues a line without blocking. A full queue drops the line.
func (s *Session) enqueue(line string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.out <- line:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.out)
}
