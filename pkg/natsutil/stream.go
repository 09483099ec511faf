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

package natsutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type streamManager interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// EnsureStream creates the stream when it is missing and adds subject to
// an existing stream whose subjects do not already cover it.
func EnsureStream(ctx context.Context, js streamManager, name, subject string) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to get stream %s: %w", name, err)
		}

		cfg := jetstream.StreamConfig{Name: name, Subjects: []string{subject}}
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return nil
	}

	info := stream.CachedInfo()
	if info == nil {
		return nil
	}

	cfg := info.Config
	subjects := ensureSubjectList(slices.Clone(cfg.Subjects), subject)

	if len(subjects) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = subjects

	if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to update stream %s: %w", name, err)
	}

	return nil
}

func ensureSubjectList(subjects []string, subject string) []string {
	for _, s := range subjects {
		if matchesSubject(s, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether pattern covers subject. A pattern ending in
// ">" covers its own wildcard form as well.
func matchesSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}

		if i >= len(st) {
			return false
		}

		if tok != "*" && tok != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
