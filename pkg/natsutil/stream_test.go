package natsutil

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	jetstream.Stream
	info *jetstream.StreamInfo
}

func (s *fakeStream) CachedInfo() *jetstream.StreamInfo { return s.info }

type fakeManager struct {
	stream    jetstream.Stream
	getErr    error
	createErr error
	created   []jetstream.StreamConfig
}

func (m *fakeManager) Stream(context.Context, string) (jetstream.Stream, error) {
	return m.stream, m.getErr
}

func (m *fakeManager) CreateOrUpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	m.created = append(m.created, cfg)
	return nil, m.createErr
}

func TestEnsureStreamCreatesMissing(t *testing.T) {
	m := &fakeManager{getErr: jetstream.ErrStreamNotFound}

	require.NoError(t, EnsureStream(context.Background(), m, "DEVICES", "devicetracker.>"))
	require.Len(t, m.created, 1)
	assert.Equal(t, "DEVICES", m.created[0].Name)
	assert.Equal(t, []string{"devicetracker.>"}, m.created[0].Subjects)
}

func TestEnsureStreamAddsSubject(t *testing.T) {
	m := &fakeManager{stream: &fakeStream{info: &jetstream.StreamInfo{
		Config: jetstream.StreamConfig{Name: "DEVICES", Subjects: []string{"alerts.*"}},
	}}}

	require.NoError(t, EnsureStream(context.Background(), m, "DEVICES", "devicetracker.>"))
	require.Len(t, m.created, 1)
	assert.Equal(t, []string{"alerts.*", "devicetracker.>"}, m.created[0].Subjects)
}

func TestEnsureStreamAlreadyCovered(t *testing.T) {
	m := &fakeManager{stream: &fakeStream{info: &jetstream.StreamInfo{
		Config: jetstream.StreamConfig{Name: "DEVICES", Subjects: []string{">"}},
	}}}

	require.NoError(t, EnsureStream(context.Background(), m, "DEVICES", "devicetracker.>"))
	assert.Empty(t, m.created)
}

func TestEnsureStreamErrors(t *testing.T) {
	m := &fakeManager{getErr: errTestFixture}
	require.ErrorIs(t, EnsureStream(context.Background(), m, "DEVICES", "dt.>"), errTestFixture)

	m = &fakeManager{getErr: nats.ErrNoResponders, createErr: errTestFixture}
	require.ErrorIs(t, EnsureStream(context.Background(), m, "DEVICES", "dt.>"), errTestFixture)
}

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{"adds subject when list empty", nil, "devicetracker.>", []string{"devicetracker.>"}},
		{"keeps list when wildcard matches", []string{"devicetracker.*"}, "devicetracker.common", []string{"devicetracker.*"}},
		{"keeps list when greater wildcard matches", []string{">"}, "devicetracker.>", []string{">"}},
		{"appends when unmatched", []string{"logs.syslog.*"}, "devicetracker.>", []string{"logs.syslog.*", "devicetracker.>"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject))
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "devicetracker.common", "devicetracker.common", true},
		{"single wildcard", "devicetracker.*", "devicetracker.common", true},
		{"greater wildcard", "devicetracker.>", "devicetracker.common", true},
		{"greater covers itself", "devicetracker.>", "devicetracker.>", true},
		{"no match length", "devicetracker.*", "devicetracker.common.x", false},
		{"no match tokens", "logs.syslog.*", "devicetracker.common", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats no stream response", nats.ErrNoStreamResponse, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}
