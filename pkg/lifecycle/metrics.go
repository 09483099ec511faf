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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
)

// ErrMetricsDisabled is returned by InitializeMetrics when no exporter is configured.
var ErrMetricsDisabled = errors.New("metrics export disabled")

var errMetricsEndpointRequired = errors.New("metrics.otlp_endpoint is required when metrics are enabled")

const (
	defaultExportInterval = 15 * time.Second
)

//nolint:gochecknoglobals // global provider so shutdown can flush it
var (
	meterProvider *sdkmetric.MeterProvider
	meterMu       sync.Mutex
)

// InitializeMetrics installs a global MeterProvider exporting over OTLP/gRPC.
// Calling it again returns the provider already installed.
func InitializeMetrics(ctx context.Context, config models.MetricsConfig) (*sdkmetric.MeterProvider, error) {
	if !config.Enabled {
		return nil, ErrMetricsDisabled
	}

	if config.OTLPEndpoint == "" {
		return nil, errMetricsEndpointRequired
	}

	meterMu.Lock()
	defer meterMu.Unlock()

	if meterProvider != nil {
		return meterProvider, nil
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint),
	}

	if config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	interval := time.Duration(config.ExportInterval)
	if interval <= 0 {
		interval = defaultExportInterval
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(version.ServiceName),
			semconv.ServiceVersion(version.GetVersion()),
		)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)

	otel.SetMeterProvider(provider)
	meterProvider = provider

	return meterProvider, nil
}

// ShutdownMetrics flushes and stops the metrics pipeline.
func ShutdownMetrics(ctx context.Context) error {
	meterMu.Lock()
	defer meterMu.Unlock()

	if meterProvider == nil {
		return nil
	}

	provider := meterProvider
	meterProvider = nil

	return provider.Shutdown(ctx)
}
