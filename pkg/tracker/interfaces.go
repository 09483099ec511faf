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

//go:generate mockgen -destination=mock_tracker.go -package=tracker github.com/carverauto/devicetracker/pkg/tracker Server,TagStore

import (
	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/protocol"
)

// Server delivers rendered records to client sessions.
type Server interface {
	RegisterProtocol(p *protocol.Protocol) error
	// SendToAll renders data once per distinct field set and sends it to every subscribed session.
	SendToAll(proto string, data any)
	// SendToClient renders data for one session, reusing values already in cache.
	SendToClient(sessionID, proto string, data any, cache *protocol.Cache)
}

// CommandRegistrar is implemented by servers that accept client commands
// beyond protocol subscription. The tracker registers its tag commands
// when the server offers it.
type CommandRegistrar interface {
	RegisterCommand(verb string, fn func(sessionID string, args []string) error) error
}

// TagStore persists user tags per device.
type TagStore interface {
	Load() error
	Save() error
	Get(key models.MacAddr) map[string]string
	Set(key models.MacAddr, tag, value string)
	Clear(key models.MacAddr, tag string) bool
	All() map[models.MacAddr]map[string]string
}
