// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/mavlink-bridge/bridge"
	"github.com/bureau-foundation/mavlink-bridge/lib/config"
)

func parseFlags(t *testing.T, args ...string) *config.Config {
	t.Helper()
	var values flagValues
	flagSet := newFlagSet(&values)
	if err := flagSet.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	cfg := config.Default()
	if err := applyFlags(cfg, flagSet, &values); err != nil {
		t.Fatalf("applyFlags(%v): %v", args, err)
	}
	return cfg
}

func TestFlagsOverrideConfig(t *testing.T) {
	t.Parallel()
	cfg := parseFlags(t,
		"--id", "6f1c",
		"--mode", "client",
		"--connect", "tcp/10.0.0.1:7447,tcp/10.0.0.2:7447",
		"--endpoint", "serial:/dev/ttyUSB0:57600@v1",
		"--endpoint", "udpin:0.0.0.0:14550",
		"--broadcast-channel-capacity", "64",
		"--rest-http-port", "8000",
		"--group-member-identity", "fleet-7",
	)
	if cfg.Overlay.ID != "6f1c" || cfg.Overlay.Mode != "client" {
		t.Errorf("overlay = %+v", cfg.Overlay)
	}
	if want := []string{"tcp/10.0.0.1:7447", "tcp/10.0.0.2:7447"}; !reflect.DeepEqual(cfg.Overlay.Connect, want) {
		t.Errorf("connect = %v, want %v", cfg.Overlay.Connect, want)
	}
	wantEndpoints := []bridge.EndpointConfig{
		{Endpoint: "serial:/dev/ttyUSB0:57600", Version: "v1"},
		{Endpoint: "udpin:0.0.0.0:14550"},
	}
	if !reflect.DeepEqual(cfg.MAVLink.Endpoints, wantEndpoints) {
		t.Errorf("endpoints = %+v, want %+v", cfg.MAVLink.Endpoints, wantEndpoints)
	}
	if cfg.MAVLink.BroadcastChannelCapacity != 64 || cfg.MAVLink.GroupMemberIdentity != "fleet-7" {
		t.Errorf("mavlink = %+v", cfg.MAVLink)
	}
	if cfg.Admin.Listen != ":8000" {
		t.Errorf("admin.listen = %q, want :8000", cfg.Admin.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestUnsetFlagsKeepConfig(t *testing.T) {
	t.Parallel()
	cfg := parseFlags(t)
	if !reflect.DeepEqual(cfg, config.Default()) {
		t.Errorf("no flags changed the config: %+v", cfg)
	}
}

func TestWatchdogFlag(t *testing.T) {
	t.Parallel()
	tests := []struct {
		args []string
		want float64
	}{
		{[]string{"--watchdog"}, 1.0},
		{[]string{"--watchdog=0.5"}, 0.5},
	}
	for _, test := range tests {
		cfg := parseFlags(t, test.args...)
		if cfg.MAVLink.Watchdog == nil || *cfg.MAVLink.Watchdog != test.want {
			t.Errorf("%v: watchdog = %v, want %v", test.args, cfg.MAVLink.Watchdog, test.want)
		}
	}
	if cfg := parseFlags(t); cfg.MAVLink.Watchdog != nil {
		t.Errorf("watchdog enabled without the flag: %v", *cfg.MAVLink.Watchdog)
	}
}

func TestParseEndpointFlag(t *testing.T) {
	t.Parallel()
	if _, err := parseEndpointFlag("udpin:0.0.0.0:14550@v3"); err == nil {
		t.Error("accepted @v3")
	}
	if _, err := parseEndpointFlag(""); err == nil {
		t.Error("accepted an empty endpoint")
	}
	got, err := parseEndpointFlag("tcpout:127.0.0.1:5760@v2")
	if err != nil || got != (bridge.EndpointConfig{Endpoint: "tcpout:127.0.0.1:5760", Version: "v2"}) {
		t.Errorf("got %+v, %v", got, err)
	}
}

func TestNewLoggerFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		format   string
		terminal bool
		wantJSON bool
	}{
		{"auto", true, false},
		{"auto", false, true},
		{"json", true, true},
		{"text", false, false},
	}
	for _, test := range tests {
		var output bytes.Buffer
		logger, err := newLogger(config.LoggingConfig{Level: "info", Format: test.format}, &output, test.terminal)
		if err != nil {
			t.Fatalf("newLogger: %v", err)
		}
		logger.Info("hello", "endpoint", "udpin:0.0.0.0:14550")
		isJSON := json.Valid(bytes.TrimSpace(output.Bytes()))
		if isJSON != test.wantJSON {
			t.Errorf("format %s terminal %v: output %q, want JSON %v", test.format, test.terminal, output.String(), test.wantJSON)
		}
	}

	var output bytes.Buffer
	logger, _ := newLogger(config.LoggingConfig{Level: "warn"}, &output, true)
	logger.Info("suppressed")
	if strings.Contains(output.String(), "suppressed") {
		t.Error("info record written at warn level")
	}
}
