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

package tracker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName            = "devicetracker.tracker"
	metricPackets        = "devicetracker_packets_total"
	metricDevicesCreated = "devicetracker_devices_created_total"
	metricCycleDuration  = "devicetracker_cycle_duration_seconds"
	outcomeClassified    = "classified"
	outcomeFiltered      = "filtered"
	attributePhy         = "phy"
	attributeOutcome     = "outcome"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	packetCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	deviceCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	cycleHistogram metric.Float64Histogram
)

func initMeter() {
	meter := otel.Meter(meterName)

	packets, err := meter.Int64Counter(
		metricPackets,
		metric.WithDescription("Packets seen by the device classifier"),
	)
	if err != nil {
		otel.Handle(err)
	}
	packetCounter = packets

	devices, err := meter.Int64Counter(
		metricDevicesCreated,
		metric.WithDescription("Devices created on first sight"),
	)
	if err != nil {
		otel.Handle(err)
	}
	deviceCounter = devices

	hist, err := meter.Float64Histogram(
		metricCycleDuration,
		metric.WithDescription("Duration of one tracker broadcast cycle"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	cycleHistogram = hist
}

func recordPacket(ctx context.Context, phyID int, outcome string) {
	meterOnce.Do(initMeter)
	if packetCounter == nil {
		return
	}

	packetCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attributePhy, strconv.Itoa(phyID)),
		attribute.String(attributeOutcome, outcome),
	))
}

func recordDeviceCreated(ctx context.Context, phyID int) {
	meterOnce.Do(initMeter)
	if deviceCounter == nil {
		return
	}

	deviceCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attributePhy, strconv.Itoa(phyID))))
}

func recordCycle(ctx context.Context, d time.Duration) {
	meterOnce.Do(initMeter)
	if cycleHistogram == nil {
		return
	}

	cycleHistogram.Record(ctx, d.Seconds())
}
