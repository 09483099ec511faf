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
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
	"google.golang.org/grpc/credentials"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
	errFailedToParseCACert  = errors.New("failed to parse CA certificate")
)

const maxAttributeValueLength = 4096

// OTelConfig configures OTLP/gRPC log export.
type OTelConfig struct {
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	Endpoint     string            `json:"endpoint" yaml:"endpoint"`
	Headers      map[string]string `json:"headers" yaml:"headers"`
	ServiceName  string            `json:"service_name" yaml:"service_name"`
	BatchTimeout Duration          `json:"batch_timeout" yaml:"batch_timeout"`
	Insecure     bool              `json:"insecure" yaml:"insecure"`
	TLS          *TLSConfig        `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// TLSConfig holds optional client certificate and CA files for the exporter.
type TLSConfig struct {
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
}

// One provider serves every logger built in the process.
//
//nolint:gochecknoglobals // needed for proper OTel shutdown handling
var (
	otelProviderMu sync.Mutex
	otelProvider   *sdklog.LoggerProvider
)

// OTelWriter re-emits zerolog JSON lines as OTLP log records, scoped by
// the line's component field.
type OTelWriter struct {
	ctx      context.Context
	provider *sdklog.LoggerProvider

	mu      sync.Mutex
	loggers map[string]otellog.Logger
	scope   string
}

// NewOTELWriter returns a writer bound to the process log provider,
// creating the provider on first use.
func NewOTELWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	provider, err := sharedProvider(ctx, config)
	if err != nil {
		return nil, err
	}

	scope := config.ServiceName
	if scope == "" {
		scope = defaultServiceName
	}

	return &OTelWriter{
		ctx:      ctx,
		provider: provider,
		loggers:  make(map[string]otellog.Logger),
		scope:    scope,
	}, nil
}

func sharedProvider(ctx context.Context, config OTelConfig) (*sdklog.LoggerProvider, error) {
	otelProviderMu.Lock()
	defer otelProviderMu.Unlock()

	if otelProvider != nil {
		return otelProvider, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(config.Endpoint)}

	switch {
	case config.Insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case config.TLS != nil:
		tlsConfig, err := clientTLS(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
		}

		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	batchTimeout := time.Duration(config.BatchTimeout)
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}

	otelProvider = sdklog.NewLoggerProvider(
		sdklog.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(batchTimeout))),
	)

	global.SetLoggerProvider(otelProvider)

	return otelProvider, nil
}

func shutdownProvider(ctx context.Context) error {
	otelProviderMu.Lock()
	provider := otelProvider
	otelProvider = nil
	otelProviderMu.Unlock()

	if provider == nil {
		return nil
	}

	return provider.Shutdown(ctx)
}

// Write never fails; lines that are not JSON objects are dropped.
func (w *OTelWriter) Write(p []byte) (int, error) {
	var entry map[string]any

	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}

	w.emitter(popString(entry, "component", w.scope)).
		Emit(w.ctx, buildRecord(entry))

	return len(p), nil
}

func (w *OTelWriter) emitter(scope string) otellog.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.loggers[scope]
	if !ok {
		l = w.provider.Logger(scope)
		w.loggers[scope] = l
	}

	return l
}

// buildRecord moves the zerolog time, level and message fields into the
// record and keeps the rest as typed attributes.
func buildRecord(entry map[string]any) otellog.Record {
	var record otellog.Record

	if ts, ok := entry[zerolog.TimestampFieldName].(string); ok {
		if parsed, err := time.Parse(zerolog.TimeFieldFormat, ts); err == nil {
			record.SetTimestamp(parsed)
			delete(entry, zerolog.TimestampFieldName)
		}
	}

	if level, ok := entry[zerolog.LevelFieldName].(string); ok {
		record.SetSeverity(severity(level))
		record.SetSeverityText(level)
		delete(entry, zerolog.LevelFieldName)
	}

	if msg, ok := entry[zerolog.MessageFieldName].(string); ok {
		record.SetBody(otellog.StringValue(msg))
		delete(entry, zerolog.MessageFieldName)
	}

	for key, value := range entry {
		record.AddAttributes(otellog.KeyValue{Key: key, Value: attributeValue(value)})
	}

	return record
}

// popString removes and returns a non-empty string field, or fallback.
func popString(entry map[string]any, key, fallback string) string {
	v, ok := entry[key].(string)
	if !ok || v == "" {
		return fallback
	}

	delete(entry, key)

	return v
}

func attributeValue(value any) otellog.Value {
	switch v := value.(type) {
	case nil:
		return otellog.StringValue("null")
	case string:
		return otellog.StringValue(truncate(v))
	case bool:
		return otellog.BoolValue(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return otellog.Int64Value(int64(v))
		}

		return otellog.Float64Value(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return otellog.StringValue(truncate(fmt.Sprint(v)))
		}

		return otellog.StringValue(truncate(string(raw)))
	}
}

func truncate(value string) string {
	if len(value) <= maxAttributeValueLength {
		return value
	}

	cut := value[:maxAttributeValueLength-3]
	for !utf8.ValidString(cut) && cut != "" {
		cut = cut[:len(cut)-1]
	}

	return cut + "..."
}

func severity(level string) otellog.Severity {
	level = strings.ToLower(level)
	if level == "warning" {
		level = zerolog.LevelWarnValue
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return otellog.SeverityInfo
	}

	switch lvl {
	case zerolog.TraceLevel:
		return otellog.SeverityTrace
	case zerolog.DebugLevel:
		return otellog.SeverityDebug
	case zerolog.WarnLevel:
		return otellog.SeverityWarn
	case zerolog.ErrorLevel:
		return otellog.SeverityError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}

func clientTLS(cfg *TLSConfig) (*tls.Config, error) {
	conf := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		conf.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile == "" {
		return conf, nil
	}

	caCert, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errFailedToParseCACert
	}

	conf.RootCAs = pool

	return conf, nil
}
