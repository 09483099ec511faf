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

// Package logger is the structured logging layer of the devicetracker,
// built on zerolog with optional OTLP log export.
package logger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//nolint:gochecknoglobals // process-wide default logger
var (
	globalMu     sync.RWMutex
	globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// Init builds a logger from config and installs it as the process default,
// including zerolog's log.Logger.
func Init(ctx context.Context, config *Config) error {
	zlog, err := Build(ctx, config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	globalLogger = zlog
	log.Logger = zlog
	globalMu.Unlock()

	return nil
}

// Global returns the process default logger.
func Global() zerolog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	return globalLogger
}

// Build creates a zerolog logger from config. When OTLP export is enabled
// every line is also emitted as an OTLP log record.
func Build(ctx context.Context, config *Config) (zerolog.Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := config.level()
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	output := config.writer()

	if config.OTel.Enabled {
		otlp, err := NewOTELWriter(ctx, config.OTel)
		if err != nil {
			return zerolog.Nop(), err
		}

		output = zerolog.MultiLevelWriter(output, otlp)
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}

// New builds a Logger from config.
func New(ctx context.Context, config *Config) (Logger, error) {
	zlog, err := Build(ctx, config)
	if err != nil {
		return nil, err
	}

	return Wrap(zlog), nil
}

// Wrap adapts a zerolog logger to the Logger interface.
func Wrap(zlog zerolog.Logger) Logger {
	return &zeroLogger{logger: zlog}
}

type zeroLogger struct {
	mu     sync.RWMutex
	logger zerolog.Logger
}

func (z *zeroLogger) current() *zerolog.Logger {
	z.mu.RLock()
	defer z.mu.RUnlock()

	l := z.logger

	return &l
}

func (z *zeroLogger) Trace() *zerolog.Event { return z.current().Trace() }
func (z *zeroLogger) Debug() *zerolog.Event { return z.current().Debug() }
func (z *zeroLogger) Info() *zerolog.Event  { return z.current().Info() }
func (z *zeroLogger) Warn() *zerolog.Event  { return z.current().Warn() }
func (z *zeroLogger) Error() *zerolog.Event { return z.current().Error() }
func (z *zeroLogger) Fatal() *zerolog.Event { return z.current().Fatal() }
func (z *zeroLogger) Panic() *zerolog.Event { return z.current().Panic() }
func (z *zeroLogger) With() zerolog.Context { return z.current().With() }

func (z *zeroLogger) WithComponent(component string) zerolog.Logger {
	return z.current().With().Str("component", component).Logger()
}

func (z *zeroLogger) WithFields(fields map[string]any) zerolog.Logger {
	return z.current().With().Fields(fields).Logger()
}

func (z *zeroLogger) SetLevel(level zerolog.Level) {
	z.mu.Lock()
	z.logger = z.logger.Level(level)
	z.mu.Unlock()
}

func (z *zeroLogger) SetDebug(debug bool) {
	if debug {
		z.SetLevel(zerolog.DebugLevel)
		return
	}

	z.SetLevel(zerolog.InfoLevel)
}

// Shutdown flushes and stops the OTLP log exporter if one was started.
func Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return shutdownProvider(ctx)
}
