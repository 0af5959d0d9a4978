// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "testing"

func TestParseAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  Address
	}{
		{"serial:/dev/ttyUSB0:115200", Address{Scheme: SchemeSerial, Target: "/dev/ttyUSB0", Baud: 115200}},
		{"serial:/dev/serial/by-id/usb-ArduPilot:if00:57600", Address{Scheme: SchemeSerial, Target: "/dev/serial/by-id/usb-ArduPilot:if00", Baud: 57600}},
		{"udpin:127.0.0.1:14550", Address{Scheme: SchemeUDPIn, Target: "127.0.0.1:14550"}},
		{"udpin::14550", Address{Scheme: SchemeUDPIn, Target: ":14550"}},
		{"udpout:10.0.0.2:14550", Address{Scheme: SchemeUDPOut, Target: "10.0.0.2:14550"}},
		{"udpbcast:192.168.1.255:14550", Address{Scheme: SchemeUDPBroadcast, Target: "192.168.1.255:14550"}},
		{"tcpin:0.0.0.0:5760", Address{Scheme: SchemeTCPIn, Target: "0.0.0.0:5760"}},
		{"tcpout:[::1]:5760", Address{Scheme: SchemeTCPOut, Target: "[::1]:5760"}},
	}
	for _, test := range tests {
		got, err := ParseAddress(test.input)
		if err != nil {
			t.Errorf("ParseAddress(%q): %v", test.input, err)
			continue
		}
		if got != test.want {
			t.Errorf("ParseAddress(%q) = %+v, want %+v", test.input, got, test.want)
		}
		if got.String() != test.input {
			t.Errorf("String() = %q, want %q", got.String(), test.input)
		}
	}
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	t.Parallel()
	for _, input := range []string{
		"",
		"udpin",
		"udpin:",
		"quic:127.0.0.1:14550",
		"serial:/dev/ttyUSB0",
		"serial:/dev/ttyUSB0:fast",
		"serial:/dev/ttyUSB0:0",
		"udpout:127.0.0.1",
		"udpout::14550",
		"tcpout:127.0.0.1:0",
		"tcpin:127.0.0.1:99999",
	} {
		if _, err := ParseAddress(input); err == nil {
			t.Errorf("ParseAddress(%q) succeeded, want error", input)
		}
	}
}
