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
	"fmt"
	"net"
	"strings"
)

var errInvalidMAC = errors.New("invalid hardware address")

// MacAddr is the fixed-width key a tracked device is indexed by.
type MacAddr [6]byte

// PhyAny selects every registered technology in counter and count queries.
const PhyAny = -1

// ParseMAC parses a colon, dash or dot separated 48-bit hardware address.
func ParseMAC(s string) (MacAddr, error) {
	var mac MacAddr

	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return mac, fmt.Errorf("%w: %w", errInvalidMAC, err)
	}

	if len(hw) != len(mac) {
		return mac, fmt.Errorf("%w: %q is not 48 bits", errInvalidMAC, s)
	}

	copy(mac[:], hw)

	return mac, nil
}

// MustParseMAC is ParseMAC for constants and tests.
func MustParseMAC(s string) MacAddr {
	mac, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}

	return mac
}

// MacFromHardwareAddr converts a decoded address, returning false when it is not 48 bits.
func MacFromHardwareAddr(hw net.HardwareAddr) (MacAddr, bool) {
	var mac MacAddr

	if len(hw) != len(mac) {
		return mac, false
	}

	copy(mac[:], hw)

	return mac, true
}

// String renders the address as uppercase colon separated octets.
func (m MacAddr) String() string {
	const hexDigits = "0123456789ABCDEF"

	buf := make([]byte, 0, 17)

	for i, b := range m {
		if i > 0 {
			buf = append(buf, ':')
		}

		buf = append(buf, hexDigits[b>>4], hexDigits[b&0x0f])
	}

	return string(buf)
}

// IsZero reports whether every octet is zero.
func (m MacAddr) IsZero() bool {
	return m == MacAddr{}
}

// MarshalText implements encoding.TextMarshaler so addresses can key YAML and JSON maps.
func (m MacAddr) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MacAddr) UnmarshalText(text []byte) error {
	mac, err := ParseMAC(string(text))
	if err != nil {
		return err
	}

	*m = mac

	return nil
}
