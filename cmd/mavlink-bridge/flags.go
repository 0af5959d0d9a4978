// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/mavlink-bridge/bridge"
	"github.com/bureau-foundation/mavlink-bridge/lib/config"
)

// defaultWatchdogSeconds is the period used when --watchdog is given
// without a value.
const defaultWatchdogSeconds = 1.0

// flagValues holds every override flag. Only flags the user actually
// set are applied.
type flagValues struct {
	configPath          string
	id                  string
	mode                string
	listen              []string
	connect             []string
	compression         string
	sharedKeyFile       string
	endpoints           []string
	capacity            int
	restHTTPPort        int
	watchdog            float64
	groupMemberIdentity string
	logLevel            string
	logFormat           string
}

func newFlagSet(values *flagValues) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("mavlink-bridge", pflag.ContinueOnError)
	flagSet.StringVarP(&values.configPath, "config", "c", "", "configuration file (.yaml, .yml, .json, .jsonc, .json5)")
	flagSet.StringVarP(&values.id, "id", "i", "", "overlay session identity in lowercase hex (default: random)")
	flagSet.StringVarP(&values.mode, "mode", "m", "", "overlay mode: peer or client")
	flagSet.StringSliceVarP(&values.listen, "listen", "l", nil, "overlay locator to listen on, tcp/<host>:<port> (repeatable)")
	flagSet.StringSliceVarP(&values.connect, "connect", "e", nil, "overlay locator to connect to, tcp/<host>:<port> (repeatable)")
	flagSet.StringVar(&values.compression, "compression", "", "overlay payload compression: none, lz4, or zstd")
	flagSet.StringVar(&values.sharedKeyFile, "shared-key-file", "", "file holding the key that encrypts overlay links")
	flagSet.StringArrayVar(&values.endpoints, "endpoint", nil, "MAVLink endpoint, <address>[@v1|@v2] (repeatable; replaces configured endpoints)")
	flagSet.IntVar(&values.capacity, "broadcast-channel-capacity", 0, "relay capacity in frames")
	flagSet.IntVar(&values.restHTTPPort, "rest-http-port", 0, "serve the HTTP admin interface on this port")
	flagSet.Float64Var(&values.watchdog, "watchdog", defaultWatchdogSeconds, "enable the scheduler watchdog with this period in seconds")
	flagSet.Lookup("watchdog").NoOptDefVal = strconv.FormatFloat(defaultWatchdogSeconds, 'f', -1, 64)
	flagSet.StringVar(&values.groupMemberIdentity, "group-member-identity", "", "identity shared by a group of bridges in liveliness keys")
	flagSet.StringVar(&values.logLevel, "log-level", "", "debug, info, warn, or error")
	flagSet.StringVar(&values.logFormat, "log-format", "", "auto, text, or json")
	flagSet.Bool("version", false, "print the version and exit")
	flagSet.BoolP("help", "h", false, "show help")
	return flagSet
}

// applyFlags overrides cfg with every flag the user set.
func applyFlags(cfg *config.Config, flagSet *pflag.FlagSet, values *flagValues) error {
	if flagSet.Changed("id") {
		cfg.Overlay.ID = values.id
	}
	if flagSet.Changed("mode") {
		cfg.Overlay.Mode = values.mode
	}
	if flagSet.Changed("listen") {
		cfg.Overlay.Listen = values.listen
	}
	if flagSet.Changed("connect") {
		cfg.Overlay.Connect = values.connect
	}
	if flagSet.Changed("compression") {
		cfg.Overlay.Compression = values.compression
	}
	if flagSet.Changed("shared-key-file") {
		key, err := config.ReadSharedKeyFile(values.sharedKeyFile)
		if err != nil {
			return err
		}
		cfg.Overlay.SharedKey = key
	}
	if flagSet.Changed("endpoint") {
		endpoints := make([]bridge.EndpointConfig, 0, len(values.endpoints))
		for _, value := range values.endpoints {
			endpoint, err := parseEndpointFlag(value)
			if err != nil {
				return err
			}
			endpoints = append(endpoints, endpoint)
		}
		cfg.MAVLink.Endpoints = endpoints
	}
	if flagSet.Changed("broadcast-channel-capacity") {
		cfg.MAVLink.BroadcastChannelCapacity = values.capacity
	}
	if flagSet.Changed("rest-http-port") {
		if values.restHTTPPort <= 0 || values.restHTTPPort > 65535 {
			return fmt.Errorf("--rest-http-port: %d is not a port", values.restHTTPPort)
		}
		cfg.Admin.Listen = net.JoinHostPort("", strconv.Itoa(values.restHTTPPort))
	}
	if flagSet.Changed("watchdog") {
		period := values.watchdog
		cfg.MAVLink.Watchdog = &period
	}
	if flagSet.Changed("group-member-identity") {
		cfg.MAVLink.GroupMemberIdentity = values.groupMemberIdentity
	}
	if flagSet.Changed("log-level") {
		cfg.Logging.Level = values.logLevel
	}
	if flagSet.Changed("log-format") {
		cfg.Logging.Format = values.logFormat
	}
	return nil
}

// parseEndpointFlag splits "<address>[@v1|@v2]".
func parseEndpointFlag(value string) (bridge.EndpointConfig, error) {
	if value == "" {
		return bridge.EndpointConfig{}, fmt.Errorf("--endpoint: empty address")
	}
	address, version, found := strings.Cut(value, "@")
	if !found {
		return bridge.EndpointConfig{Endpoint: value}, nil
	}
	if version != "v1" && version != "v2" {
		return bridge.EndpointConfig{}, fmt.Errorf("--endpoint %q: version suffix must be @v1 or @v2", value)
	}
	return bridge.EndpointConfig{Endpoint: address, Version: version}, nil
}
