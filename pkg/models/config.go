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

package models

import (
	"errors"
	"time"

	"github.com/carverauto/devicetracker/pkg/logger"
)

var (
	errInvalidTickInterval = errors.New("tick_interval must be positive")
	errInvalidWorkers      = errors.New("capture_workers must be positive")
	errInvalidMaxClients   = errors.New("max_clients must not be negative")
	errNATSStreamRequired  = errors.New("nats.stream is required when nats.url is set")
)

const (
	defaultListenAddr     = ":2501"
	defaultTickInterval   = time.Second
	defaultConfigDir      = "/var/lib/devicetracker"
	defaultSubjectPrefix  = "devicetracker"
	defaultExportInterval = 15 * time.Second
	defaultCaptureWorkers = 1
)

// Duration is shared with the logger configuration.
type Duration = logger.Duration

// TLSConfig names the files for a mutual TLS client connection.
type TLSConfig struct {
	CAFile     string `json:"ca_file"`
	CertFile   string `json:"cert_file"`
	KeyFile    string `json:"key_file"`
	ServerName string `json:"server_name"`
}

// NATSConfig configures the optional record mirror.
type NATSConfig struct {
	URL           string     `json:"url"`
	Stream        string     `json:"stream"`
	SubjectPrefix string     `json:"subject_prefix"`
	Domain        string     `json:"domain,omitempty"`
	TLS           *TLSConfig `json:"tls,omitempty"`
}

// Enabled reports whether a NATS server was configured.
func (c *NATSConfig) Enabled() bool {
	return c != nil && c.URL != ""
}

// MetricsConfig configures OTLP metric export.
type MetricsConfig struct {
	Enabled        bool     `json:"enabled"`
	OTLPEndpoint   string   `json:"otlp_endpoint"`
	Insecure       bool     `json:"insecure"`
	ExportInterval Duration `json:"export_interval"`
}

// TrackerConfig is the configuration of the devicetracker service.
type TrackerConfig struct {
	ListenAddr     string         `json:"listen_addr"`
	TickInterval   Duration       `json:"tick_interval"`
	ConfigDir      string         `json:"config_dir"`
	CaptureFile    string         `json:"capture_file"`
	CaptureWorkers int            `json:"capture_workers"`
	MaxClients     int            `json:"max_clients"`
	NATS           *NATSConfig    `json:"nats,omitempty"`
	Metrics        MetricsConfig  `json:"metrics"`
	Logging        *logger.Config `json:"logging,omitempty"`
}

// Validate fills in defaults and rejects unusable values.
func (c *TrackerConfig) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.TickInterval == 0 {
		c.TickInterval = Duration(defaultTickInterval)
	}

	if c.TickInterval < 0 {
		return errInvalidTickInterval
	}

	if c.ConfigDir == "" {
		c.ConfigDir = defaultConfigDir
	}

	if c.CaptureWorkers == 0 {
		c.CaptureWorkers = defaultCaptureWorkers
	}

	if c.CaptureWorkers < 0 {
		return errInvalidWorkers
	}

	if c.MaxClients < 0 {
		return errInvalidMaxClients
	}

	if c.NATS.Enabled() {
		if c.NATS.Stream == "" {
			return errNATSStreamRequired
		}

		if c.NATS.SubjectPrefix == "" {
			c.NATS.SubjectPrefix = defaultSubjectPrefix
		}
	}

	if c.Metrics.ExportInterval == 0 {
		c.Metrics.ExportInterval = Duration(defaultExportInterval)
	}

	return nil
}
