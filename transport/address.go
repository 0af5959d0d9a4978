// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Scheme selects the kind of link an address opens.
type Scheme string

const (
	SchemeSerial       Scheme = "serial"
	SchemeUDPIn        Scheme = "udpin"
	SchemeUDPOut       Scheme = "udpout"
	SchemeUDPBroadcast Scheme = "udpbcast"
	SchemeTCPIn        Scheme = "tcpin"
	SchemeTCPOut       Scheme = "tcpout"
)

// Address is a parsed endpoint address.
type Address struct {
	Scheme Scheme

	// Target is the device path for serial links and host:port for
	// network links.
	Target string

	// Baud is the serial line rate. Zero for network links.
	Baud int
}

// ParseAddress parses an endpoint address string.
func ParseAddress(address string) (Address, error) {
	scheme, target, found := strings.Cut(address, ":")
	if !found || target == "" {
		return Address{}, fmt.Errorf("endpoint address %q: want <scheme>:<target>", address)
	}

	switch Scheme(scheme) {
	case SchemeSerial:
		separator := strings.LastIndex(target, ":")
		if separator <= 0 {
			return Address{}, fmt.Errorf("endpoint address %q: want serial:<device>:<baud>", address)
		}
		baud, err := strconv.Atoi(target[separator+1:])
		if err != nil || baud <= 0 {
			return Address{}, fmt.Errorf("endpoint address %q: invalid baud rate %q", address, target[separator+1:])
		}
		return Address{Scheme: SchemeSerial, Target: target[:separator], Baud: baud}, nil

	case SchemeUDPIn, SchemeUDPOut, SchemeUDPBroadcast, SchemeTCPIn, SchemeTCPOut:
		host, port, err := net.SplitHostPort(target)
		if err != nil {
			return Address{}, fmt.Errorf("endpoint address %q: %w", address, err)
		}
		portNumber, err := strconv.Atoi(port)
		if err != nil || portNumber < 0 || portNumber > 65535 {
			return Address{}, fmt.Errorf("endpoint address %q: invalid port %q", address, port)
		}
		outbound := Scheme(scheme) == SchemeUDPOut || Scheme(scheme) == SchemeTCPOut || Scheme(scheme) == SchemeUDPBroadcast
		if outbound && (host == "" || portNumber == 0) {
			return Address{}, fmt.Errorf("endpoint address %q: %s needs an explicit host and port", address, scheme)
		}
		return Address{Scheme: Scheme(scheme), Target: target}, nil

	default:
		return Address{}, fmt.Errorf("endpoint address %q: unknown scheme %q", address, scheme)
	}
}

// String formats the address in the form ParseAddress accepts.
func (a Address) String() string {
	if a.Scheme == SchemeSerial {
		return fmt.Sprintf("%s:%s:%d", a.Scheme, a.Target, a.Baud)
	}
	return string(a.Scheme) + ":" + a.Target
}
