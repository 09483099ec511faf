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

//go:generate mockgen -destination=mock_phy.go -package=phy github.com/carverauto/devicetracker/pkg/phy Handler,Tracker

// Package phy registers the per-technology handlers that classify packets
// and take part in the tracker's periodic cycle.
package phy

import (
	"github.com/carverauto/devicetracker/pkg/packet"
)

// Tracker is the view of the device tracker a handler is bound to.
type Tracker interface {
	NumDevices(phy int) int
	NumPackets(phy int) int64
}

// Handler is one wireless technology.
type Handler interface {
	// Name identifies the technology, e.g. "IEEE802.11".
	Name() string
	// ID is the id the registry assigned when the handler was built.
	ID() int
	// Classify resolves a packet of this technology to its common summary.
	// It returns false for packets it does not recognize.
	Classify(p *packet.Packet) (*packet.CommonInfo, bool)
	// TimerKick runs once per tracker cycle.
	TimerKick()
}

// Factory builds a handler bound to its registry id and the tracker.
type Factory func(id int, tracker Tracker) (Handler, error)
