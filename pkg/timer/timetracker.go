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

package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/carverauto/devicetracker/pkg/logger"
)

var (
	errInvalidInterval = errors.New("timer interval must be positive")
	errNilFunc         = errors.New("timer callback is nil")
)

type entry struct {
	id       int
	interval time.Duration
	fn       Func
	cancel   context.CancelFunc
}

// TimeTracker schedules periodic callbacks. Each timer runs on its own
// goroutine, so a slow callback delays only its own next tick; ticks that
// arrive while a callback is still running are dropped.
type TimeTracker struct {
	clock  Clock
	logger logger.Logger

	mu      sync.Mutex
	nextID  int
	timers  map[int]*entry
	ctx     context.Context
	started bool
	wg      sync.WaitGroup
}

// NewTimeTracker creates a TimeTracker. A nil clock uses wall time.
func NewTimeTracker(clock Clock, log logger.Logger) *TimeTracker {
	if clock == nil {
		clock = RealClock()
	}

	return &TimeTracker{
		clock:  clock,
		logger: log,
		timers: make(map[int]*entry),
	}
}

// Now reports the tracker's notion of the current time.
func (t *TimeTracker) Now() time.Time {
	return t.clock.Now()
}

// RegisterTimer schedules fn every interval and returns an id for RemoveTimer.
// Timers registered before Start begin ticking when Start is called.
func (t *TimeTracker) RegisterTimer(interval time.Duration, fn Func) (int, error) {
	if interval <= 0 {
		return -1, errInvalidInterval
	}

	if fn == nil {
		return -1, errNilFunc
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++

	e := &entry{id: t.nextID, interval: interval, fn: fn}
	t.timers[e.id] = e

	if t.started {
		t.launchLocked(e)
	}

	return e.id, nil
}

// RemoveTimer stops a timer. It is safe to call from inside the timer's own
// callback and for ids that are already gone.
func (t *TimeTracker) RemoveTimer(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.timers[id]
	if !ok {
		return
	}

	delete(t.timers, id)

	if e.cancel != nil {
		e.cancel()
	}
}

// Len reports the number of registered timers.
func (t *TimeTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.timers)
}

// Start begins ticking every registered timer until ctx is done or Stop is called.
func (t *TimeTracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return
	}

	t.ctx = ctx
	t.started = true

	for _, e := range t.timers {
		t.launchLocked(e)
	}
}

// Stop cancels every timer and waits for in-flight callbacks to return.
func (t *TimeTracker) Stop() {
	t.mu.Lock()

	for _, e := range t.timers {
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
	}

	t.started = false
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *TimeTracker) launchLocked(e *entry) {
	ctx, cancel := context.WithCancel(t.ctx)
	e.cancel = cancel

	t.wg.Add(1)

	go t.run(ctx, e)
}

func (t *TimeTracker) run(ctx context.Context, e *entry) {
	defer t.wg.Done()

	ticker := t.clock.Ticker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}

			if !t.fire(e) {
				t.RemoveTimer(e.id)

				return
			}
		}
	}
}

func (t *TimeTracker) fire(e *entry) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			if t.logger != nil {
				t.logger.Error().Int("timer_id", e.id).Interface("panic", r).Msg("Timer callback panicked")
			}

			keep = true
		}
	}()

	return e.fn()
}
