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

// Package app boots the devicetracker service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/devicetracker/pkg/capture"
	"github.com/carverauto/devicetracker/pkg/config"
	"github.com/carverauto/devicetracker/pkg/lifecycle"
	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/natsutil"
	"github.com/carverauto/devicetracker/pkg/netserver"
	"github.com/carverauto/devicetracker/pkg/packet"
	"github.com/carverauto/devicetracker/pkg/phy/dot11"
	"github.com/carverauto/devicetracker/pkg/tags"
	"github.com/carverauto/devicetracker/pkg/timer"
	"github.com/carverauto/devicetracker/pkg/tracker"
	"github.com/carverauto/devicetracker/pkg/version"
)

const shutdownTimeout = 10 * time.Second

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath  string
	CaptureFile string
}

// Run loads the configuration, starts every component and blocks until
// the process is signalled or a component fails.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg models.TrackerConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, opts.ConfigPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if opts.CaptureFile != "" {
		cfg.CaptureFile = opts.CaptureFile
	}

	if err := lifecycle.InitializeLogger(ctx, cfg.Logging); err != nil {
		return err
	}

	defer func() {
		_ = lifecycle.ShutdownLogger()
	}()

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, "devicetracker-main", cfg.Logging)
	if err != nil {
		return err
	}

	if _, err := lifecycle.InitializeMetrics(ctx, cfg.Metrics); err != nil && !errors.Is(err, lifecycle.ErrMetricsDisabled) {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := lifecycle.ShutdownMetrics(shutdownCtx); err != nil {
			mainLogger.Error().Err(err).Msg("Error shutting down metrics")
		}
	}()

	tracing := logger.TracingConfig{
		ServiceName:    version.ServiceName,
		ServiceVersion: version.GetVersion(),
		Logger:         mainLogger,
	}

	if cfg.Logging != nil {
		tracing.OTel = &cfg.Logging.OTel
	}

	tp, ctx, rootSpan, err := logger.InitializeTracing(ctx, tracing)
	if err != nil {
		return err
	}

	defer func() {
		rootSpan.End()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := tp.Shutdown(shutdownCtx); err != nil {
			mainLogger.Error().Err(err).Msg("Error shutting down tracing")
		}
	}()

	ctx, stop := lifecycle.SignalContext(ctx)
	defer stop()

	svc, err := newService(ctx, &cfg)
	if err != nil {
		return err
	}

	return svc.run(ctx, mainLogger)
}

type service struct {
	cfg     *models.TrackerConfig
	chain   *packet.Chain
	timers  *timer.TimeTracker
	server  *netserver.Server
	mirror  *natsutil.RecordPublisher
	tracker *tracker.DeviceTracker
	source  *capture.Source
}

func componentLogger(ctx context.Context, name string, cfg *models.TrackerConfig) (logger.Logger, error) {
	return lifecycle.CreateComponentLogger(ctx, name, cfg.Logging)
}

func newService(ctx context.Context, cfg *models.TrackerConfig) (*service, error) {
	loggers := make(map[string]logger.Logger)

	for _, name := range []string{"tracker", "netserver", "timer", "tags", "dot11", "capture", "natsutil"} {
		l, err := componentLogger(ctx, name, cfg)
		if err != nil {
			return nil, err
		}

		loggers[name] = l
	}

	svc := &service{
		cfg:    cfg,
		chain:  packet.NewChain(),
		timers: timer.NewTimeTracker(nil, loggers["timer"]),
	}

	serverOpts := []netserver.Option{netserver.WithMaxClients(cfg.MaxClients)}

	if cfg.NATS.Enabled() {
		mirror, err := natsutil.Connect(ctx, cfg.NATS, loggers["natsutil"])
		if err != nil {
			loggers["natsutil"].Warn().Err(err).Msg("Record mirror unavailable, continuing without it")
		} else {
			svc.mirror = mirror
			serverOpts = append(serverOpts, netserver.WithMirror(mirror))
		}
	}

	svc.server = netserver.New(loggers["netserver"], serverOpts...)

	t, err := tracker.New(tracker.Config{
		Server:       svc.server,
		Chain:        svc.chain,
		Timers:       svc.timers,
		Tags:         tags.NewStore(cfg.ConfigDir, loggers["tags"]),
		Logger:       loggers["tracker"],
		TickInterval: time.Duration(cfg.TickInterval),
	})
	if err != nil {
		svc.closeMirror()
		return nil, err
	}

	if _, err := t.RegisterPhyHandler(dot11.NewFactory(svc.chain.Refs(), loggers["dot11"])); err != nil {
		svc.closeMirror()
		return nil, fmt.Errorf("failed to register 802.11 handler: %w", err)
	}

	svc.tracker = t

	if cfg.CaptureFile != "" {
		svc.source = capture.NewSource(svc.chain, cfg.CaptureWorkers, loggers["capture"])
	}

	return svc, nil
}

func (s *service) closeMirror() {
	if s.mirror != nil {
		s.mirror.Close()
	}
}

func (s *service) run(ctx context.Context, log logger.Logger) error {
	if err := s.tracker.LoadTags(); err != nil {
		log.Warn().Err(err).Msg("Continuing with the tags already in memory")
	}

	if err := s.tracker.Start(ctx); err != nil {
		s.closeMirror()
		return err
	}

	s.timers.Start(ctx)

	log.Info().
		Str("listen_addr", s.cfg.ListenAddr).
		Str("capture_file", s.cfg.CaptureFile).
		Bool("mirror", s.mirror != nil).
		Str("version", version.GetFullVersion()).
		Msg("Device tracker running")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.server.ListenAndServe(gctx, s.cfg.ListenAddr)
	})

	if s.source != nil {
		g.Go(func() error {
			err := s.source.ReplayFile(gctx, s.cfg.CaptureFile)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		})
	}

	runErr := g.Wait()

	// The tracker goes first so no cycle or hook runs against stopped collaborators.
	if err := s.tracker.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Error saving tags")
	}

	s.timers.Stop()
	s.server.CloseAll()
	s.closeMirror()

	log.Info().Msg("Device tracker stopped")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	return nil
}
