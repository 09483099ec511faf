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

// Package natsutil mirrors tracker records to NATS JetStream.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/models"
)

const (
	envelopeSource = "devicetracker"
	drainTimeout   = 5 * time.Second
)

var errNATSDisabled = errors.New("nats mirror is not configured")

// RecordEnvelope is the JSON message published for one record.
type RecordEnvelope struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Protocol  string    `json:"protocol"`
	Fields    []string  `json:"fields"`
	Record    string    `json:"record"`
	Timestamp time.Time `json:"timestamp"`
}

type asyncPublisher interface {
	PublishAsync(subject string, payload []byte, opts ...jetstream.PublishOpt) (jetstream.PubAckFuture, error)
}

type asyncCompleter interface {
	PublishAsyncComplete() <-chan struct{}
}

// RecordPublisher publishes every record it is handed to <prefix>.<protocol>.
type RecordPublisher struct {
	js     asyncPublisher
	nc     *nats.Conn
	prefix string
	logger logger.Logger
	now    func() time.Time
}

// NewRecordPublisher wraps a JetStream context.
func NewRecordPublisher(js asyncPublisher, prefix string, log logger.Logger) *RecordPublisher {
	return &RecordPublisher{
		js:     js,
		prefix: prefix,
		logger: log,
		now:    time.Now,
	}
}

// Subject is the subject records of proto are published on.
func (p *RecordPublisher) Subject(proto string) string {
	return p.prefix + "." + strings.ToLower(proto)
}

// Publish queues one record without waiting for the server acknowledgement.
func (p *RecordPublisher) Publish(proto string, fields []string, record string) error {
	env := RecordEnvelope{
		ID:        uuid.NewString(),
		Source:    envelopeSource,
		Protocol:  proto,
		Fields:    fields,
		Record:    record,
		Timestamp: p.now().UTC(),
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", proto, err)
	}

	if _, err := p.js.PublishAsync(p.Subject(proto), payload); err != nil {
		return fmt.Errorf("failed to publish %s record: %w", proto, err)
	}

	return nil
}

// Connect dials NATS, ensures the mirror stream covers <prefix>.> and
// returns a publisher that owns the connection.
func Connect(ctx context.Context, cfg *models.NATSConfig, log logger.Logger) (*RecordPublisher, error) {
	if !cfg.Enabled() {
		return nil, errNATSDisabled
	}

	nc, err := ConnectWithSecurity(cfg.URL, cfg.TLS, log)
	if err != nil {
		return nil, err
	}

	var js jetstream.JetStream

	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := EnsureStream(ctx, js, cfg.Stream, cfg.SubjectPrefix+".>"); err != nil {
		nc.Close()
		return nil, err
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("stream", cfg.Stream).
		Str("subjects", cfg.SubjectPrefix+".>").
		Msg("Record mirror connected")

	p := NewRecordPublisher(js, cfg.SubjectPrefix, log)
	p.nc = nc

	return p, nil
}

// ConnectWithSecurity connects to NATS, using mutual TLS when tlsCfg is set.
func ConnectWithSecurity(url string, tlsCfg *models.TLSConfig, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	var opts []nats.Option

	if tlsCfg != nil {
		conf, err := TLSConfig(tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(conf))
	}

	opts = append(opts,
		nats.Name(envelopeSource),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

// Close waits for pending asynchronous publishes and drains the connection.
func (p *RecordPublisher) Close() {
	if c, ok := p.js.(asyncCompleter); ok {
		select {
		case <-c.PublishAsyncComplete():
		case <-time.After(drainTimeout):
			p.logger.Warn().Msg("Timed out waiting for record mirror acks")
		}
	}

	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to drain NATS connection")
		}
	}
}
