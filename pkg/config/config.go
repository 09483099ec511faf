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

// Package config loads service configuration from a file or the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/rs/zerolog"
)

var (
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errInvalidConfigPtr    = errors.New("config must be a non-nil pointer")
)

const (
	configSourceFile = "file"
	configSourceEnv  = "env"

	// DefaultEnvPrefix prefixes every variable read when CONFIG_SOURCE=env.
	DefaultEnvPrefix = "DEVTRACKER_"
)

// Config picks a ConfigLoader from CONFIG_SOURCE and validates the result.
type Config struct {
	file   ConfigLoader
	logger logger.Logger
}

// NewConfig returns a Config. A nil log writes warnings to stderr, since the
// service logger is configured by the very file being loaded.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.Wrap(zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger())
	}

	return &Config{
		file:   &FileConfigLoader{logger: log},
		logger: log,
	}
}

// ValidateConfig runs cfg.Validate when cfg implements Validator.
func ValidateConfig(cfg any) error {
	if v, ok := cfg.(Validator); ok {
		return v.Validate()
	}

	return nil
}

// LoadAndValidate fills cfg from the configured source and validates it.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg any) error {
	if cfg == nil {
		return errInvalidConfigPtr
	}

	source := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_SOURCE")))

	loader, err := c.loader(source)
	if err != nil {
		return err
	}

	if err := loader.Load(ctx, path, cfg); err != nil {
		return err
	}

	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.logger.Debug().Str("source", source).Str("path", path).Msg("Configuration loaded")

	return nil
}

func (c *Config) loader(source string) (ConfigLoader, error) {
	switch source {
	case configSourceFile, "":
		return c.file, nil
	case configSourceEnv:
		prefix, ok := os.LookupEnv("CONFIG_ENV_PREFIX")
		if !ok || prefix == "" {
			prefix = DefaultEnvPrefix
		}

		return NewEnvConfigLoader(c.logger, prefix), nil
	default:
		return nil, fmt.Errorf("%w: %q (expected %q or %q)",
			errInvalidConfigSource, source, configSourceFile, configSourceEnv)
	}
}
