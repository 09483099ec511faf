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

package logger

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	envLevel      = "DEVTRACKER_LOG_LEVEL"
	envDebug      = "DEVTRACKER_DEBUG"
	envOutput     = "DEVTRACKER_LOG_OUTPUT"
	envTimeFormat = "DEVTRACKER_LOG_TIME_FORMAT"

	defaultServiceName  = "devicetracker"
	defaultBatchTimeout = 5 * time.Second
)

// Config controls level, destination and optional OTLP export of a logger.
type Config struct {
	Level      string     `json:"level" yaml:"level"`
	Debug      bool       `json:"debug" yaml:"debug"`
	Output     string     `json:"output" yaml:"output"`
	TimeFormat string     `json:"time_format" yaml:"time_format"`
	OTel       OTelConfig `json:"otel" yaml:"otel"`
}

// DefaultConfig reads DEVTRACKER_LOG_* and the standard OTEL_* variables.
func DefaultConfig() *Config {
	return &Config{
		Level:      envString(envLevel, "info"),
		Debug:      envBool(envDebug, false),
		Output:     envString(envOutput, "stdout"),
		TimeFormat: envString(envTimeFormat, ""),
		OTel:       DefaultOTelConfig(),
	}
}

// DefaultOTelConfig reads the OTLP log exporter settings from the environment.
func DefaultOTelConfig() OTelConfig {
	batchTimeout := defaultBatchTimeout

	if d, err := time.ParseDuration(os.Getenv("OTEL_EXPORTER_OTLP_LOGS_TIMEOUT")); err == nil && d > 0 {
		batchTimeout = d
	}

	return OTelConfig{
		Enabled:      envBool("OTEL_LOGS_ENABLED", false),
		Endpoint:     envString("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", ""),
		Headers:      parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_LOGS_HEADERS")),
		ServiceName:  envString("OTEL_SERVICE_NAME", defaultServiceName),
		BatchTimeout: Duration(batchTimeout),
		Insecure:     envBool("OTEL_EXPORTER_OTLP_LOGS_INSECURE", false),
	}
}

// level resolves the effective level; Debug wins over Level.
func (c *Config) level() (zerolog.Level, error) {
	if c.Debug {
		return zerolog.DebugLevel, nil
	}

	if c.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(strings.ToLower(c.Level))
}

func (c *Config) writer() io.Writer {
	switch strings.ToLower(c.Output) {
	case "stderr":
		return os.Stderr
	case "discard", "none":
		return io.Discard
	default:
		return os.Stdout
	}
}

// parseHeaders reads "k=v,k2=v2"; malformed pairs are ignored.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if k = strings.TrimSpace(k); k != "" {
			headers[k] = strings.TrimSpace(v)
		}
	}

	return headers
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))

	switch v {
	case "":
		return fallback
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}

	return b
}
