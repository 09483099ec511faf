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

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/rs/zerolog"
)

var (
	// ErrDstMustBeNonNilPointer is returned when Load is given a non-pointer or nil.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct is returned when Load is given a pointer to a non-struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

// EnvConfigLoader fills a struct from environment variables named after its
// json tags: with prefix DEVTRACKER_, NATSConfig.URL under the "nats" field
// is read from DEVTRACKER_NATS_URL. A whole document may instead be given in
// <prefix>CONFIG_JSON.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

// NewEnvConfigLoader returns a loader reading variables that start with prefix.
func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	return &EnvConfigLoader{logger: log, prefix: prefix}
}

// Load implements ConfigLoader. Values that fail to parse are logged and
// skipped so one bad variable does not hide the rest.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst any) error {
	if doc := os.Getenv(e.prefix + "CONFIG_JSON"); doc != "" {
		if err := json.Unmarshal([]byte(doc), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %sCONFIG_JSON: %w", e.prefix, err)
		}

		e.debug().Msg("Loaded configuration from CONFIG_JSON")

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	if v.Elem().Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	set := e.walk(v.Elem(), e.prefix)

	e.debug().Int("variables", set).Msg("Loaded configuration from environment")

	return nil
}

// walk fills the exported, json-tagged fields of v and returns how many
// variables were applied.
func (e *EnvConfigLoader) walk(v reflect.Value, prefix string) int {
	set := 0
	t := v.Type()

	for i := range t.NumField() {
		sf := t.Field(i)
		field := v.Field(i)

		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "" || name == "-" || !field.CanSet() {
			continue
		}

		key := prefix + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		if isStruct(field.Type()) {
			if field.Kind() == reflect.Pointer {
				if field.IsNil() {
					field.Set(reflect.New(field.Type().Elem()))
				}

				field = field.Elem()
			}

			set += e.walk(field, key+"_")

			continue
		}

		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}

		if err := assign(field, raw); err != nil {
			if e.logger != nil {
				e.logger.Warn().Str("env", key).Err(err).Msg("Ignoring environment variable")
			}

			continue
		}

		set++
	}

	return set
}

// debug returns nil without a logger; zerolog treats a nil event as disabled.
func (e *EnvConfigLoader) debug() *zerolog.Event {
	if e.logger == nil {
		return nil
	}

	return e.logger.Debug()
}

func isStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Kind() == reflect.Struct
}

// assign parses raw into field. Durations accept "1s" style strings, string
// slices are comma separated, and anything else falls back to JSON.
func assign(field reflect.Value, raw string) error {
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		return assign(field.Elem(), raw)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Kind() == reflect.Int64 && field.Type().Name() == "Duration" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}

			field.SetInt(int64(d))

			return nil
		}

		i, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}

		field.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer: %w", err)
		}

		field.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}

		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(raw, ",")
			out := reflect.MakeSlice(field.Type(), len(parts), len(parts))

			for i, p := range parts {
				out.Index(i).SetString(strings.TrimSpace(p))
			}

			field.Set(out)

			return nil
		}

		return unmarshalInto(field, raw)
	default:
		return unmarshalInto(field, raw)
	}

	return nil
}

func unmarshalInto(field reflect.Value, raw string) error {
	if err := json.Unmarshal([]byte(raw), field.Addr().Interface()); err != nil {
		return fmt.Errorf("invalid %s value: %w", field.Kind(), err)
	}

	return nil
}
