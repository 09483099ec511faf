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

// Package capture replays recorded link frames into the packet chain.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/packet"
)

const queueDepth = 256

var errUnknownFormat = errors.New("not a pcap or pcapng capture")

// frameReader is what pcapgo's classic and next-generation readers share.
type frameReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source feeds frames into a chain with a fixed number of workers.
type Source struct {
	chain   *packet.Chain
	workers int
	logger  logger.Logger

	frames atomic.Int64
	errors atomic.Int64
}

// NewSource returns a source that runs workers chain workers. Values
// below one mean a single worker.
func NewSource(chain *packet.Chain, workers int, log logger.Logger) *Source {
	return &Source{
		chain:   chain,
		workers: max(workers, 1),
		logger:  log,
	}
}

// Frames counts frames handed to the chain.
func (s *Source) Frames() int64 { return s.frames.Load() }

// ReadErrors counts frames the reader could not decode and skipped.
func (s *Source) ReadErrors() int64 { return s.errors.Load() }

// ReplayFile reads a pcap or pcapng file until its end or until ctx is done.
func (s *Source) ReplayFile(ctx context.Context, path string) (err error) {
	ctx, span := logger.Tracer("devicetracker.capture").Start(ctx, "capture.replay")
	span.SetAttributes(attribute.String("capture.file", path), attribute.Int("capture.workers", s.workers))

	defer func() {
		span.SetAttributes(
			attribute.Int64("capture.frames", s.Frames()),
			attribute.Int64("capture.read_errors", s.ReadErrors()),
		)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open capture %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	s.logger.Info().Str("file", path).Int("workers", s.workers).Msg("Replaying capture")

	if err := s.Replay(ctx, f); err != nil {
		return fmt.Errorf("replay %s: %w", path, err)
	}

	s.logger.Info().
		Str("file", path).
		Int64("frames", s.Frames()).
		Int64("read_errors", s.ReadErrors()).
		Msg("Capture replay finished")

	return nil
}

// Replay reads a capture stream, detecting pcap or pcapng from its magic.
func (s *Source) Replay(ctx context.Context, r io.Reader) error {
	fr, err := openReader(r)
	if err != nil {
		return err
	}

	return s.Run(ctx, fr)
}

func openReader(r io.Reader) (frameReader, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUnknownFormat, err)
	}

	// pcapng files start with a section header block.
	if magic[0] == 0x0a && magic[1] == 0x0d && magic[2] == 0x0d && magic[3] == 0x0a {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errUnknownFormat, err)
		}

		return ng, nil
	}

	rd, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUnknownFormat, err)
	}

	return rd, nil
}

// Run pumps frames from fr through the chain. The reader runs on the
// calling goroutine's group; workers process packets concurrently.
func (s *Source) Run(ctx context.Context, fr frameReader) error {
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan *packet.Packet, queueDepth)
	refs := s.chain.Refs()
	linkType := int(fr.LinkType())

	g.Go(func() error {
		defer close(queue)

		for {
			data, ci, err := fr.ReadPacketData()
			if errors.Is(err, io.EOF) {
				return nil
			}

			if err != nil {
				if errors.Is(err, io.ErrUnexpectedEOF) {
					s.logger.Warn().Err(err).Msg("Truncated capture")
					return nil
				}

				s.errors.Add(1)
				s.logger.Debug().Err(err).Msg("Skipping unreadable frame")

				continue
			}

			p := packet.New(ci.Timestamp)
			p.Insert(refs.LinkFrame, &packet.LinkFrame{LinkType: linkType, Data: data})

			select {
			case queue <- p:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	for range s.workers {
		g.Go(func() error {
			for p := range queue {
				s.chain.ProcessPacket(p)
				s.frames.Add(1)
			}

			return nil
		})
	}

	return g.Wait()
}
