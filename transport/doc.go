// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport opens the links between the bridge and MAVLink
// speaking peers: flight controllers on serial ports, ground stations
// and companion computers on UDP and TCP.
//
// An endpoint is named by an address string of the form
// "<scheme>:<target>":
//
//	serial:/dev/ttyUSB0:115200   serial device and baud rate
//	udpin:0.0.0.0:14550          bind; reply to every peer heard from
//	udpout:10.0.0.2:14550        send to (and read from) one peer
//	udpbcast:192.168.1.255:14550 bind the port; send to the broadcast address
//	tcpin:0.0.0.0:5760           accept any number of TCP clients
//	tcpout:127.0.0.1:5760        connect to a TCP server
//
// Addresses are validated when the endpoint is opened, not when the
// configuration is loaded, so one bad endpoint fails only its own
// connection handler.
//
// Every link is exposed as a [Conn] that reads whole frames (delimited
// by lib/mavframe, preserved byte for byte) and writes raw frame bytes.
// [SystemOpener] is the production [Opener]; tests substitute their own
// Opener to drive connection handlers without real devices or sockets.
//
// Serial ports are configured through termios (golang.org/x/sys/unix)
// and are only supported on Linux.
package transport
