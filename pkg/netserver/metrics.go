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
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName          = "devicetracker.netserver"
	metricBroadcast    = "devicetracker_records_broadcast_total"
	metricRenderErrors = "devicetracker_render_errors_total"
	attributeProtocol  = "protocol"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	broadcastCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	renderErrorCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	sent, err := meter.Int64Counter(
		metricBroadcast,
		metric.WithDescription("Records queued to client sessions"),
	)
	if err != nil {
		otel.Handle(err)
	}
	broadcastCounter = sent

	failed, err := meter.Int64Counter(
		metricRenderErrors,
		metric.WithDescription("Records replaced by the unknown field token"),
	)
	if err != nil {
		otel.Handle(err)
	}
	renderErrorCounter = failed
}

func recordBroadcast(ctx context.Context, proto string, n int) {
	if n == 0 {
		return
	}

	meterOnce.Do(initMeter)
	if broadcastCounter == nil {
		return
	}

	broadcastCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attributeProtocol, proto)))
}

func recordRenderError(ctx context.Context, proto string) {
	meterOnce.Do(initMeter)
	if renderErrorCounter == nil {
		return
	}

	renderErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attributeProtocol, proto)))
}
