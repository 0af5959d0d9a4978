// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/mavlink-bridge/admin"
	"github.com/bureau-foundation/mavlink-bridge/bridge"
	"github.com/bureau-foundation/mavlink-bridge/lib/config"
	"github.com/bureau-foundation/mavlink-bridge/lib/version"
	"github.com/bureau-foundation/mavlink-bridge/overlay"
)

// instanceName is the name the bridge is started under.
const instanceName = "mavlink"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var values flagValues
	flagSet := newFlagSet(&values)

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion, _ := flagSet.GetBool("version"); showVersion {
		version.Print("mavlink-bridge")
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	cfg, err := loadConfig(values.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, flagSet, &values); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, os.Stderr, stderrIsTerminal())
	if err != nil {
		return err
	}

	cfg.MAVLink.Scheduler().Apply(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := overlay.OpenPeer(ctx, cfg.PeerConfig(logger))
	if err != nil {
		return fmt.Errorf("opening overlay session: %w", err)
	}
	defer session.Close()

	instance, err := bridge.Plugin{}.Start(instanceName, bridge.Host{
		Config:  cfg.MAVLink,
		Session: session,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer instance.Close()

	adminDone := make(chan error, 1)
	if cfg.Admin.Listen != "" {
		server := admin.NewServer(admin.ServerConfig{
			Address: cfg.Admin.Listen,
			Handler: admin.NewHandler(instance, session, logger),
			Logger:  logger,
		})
		go func() { adminDone <- server.Serve(ctx) }()
	}

	logger.Info("mavlink-bridge running", "version", version.Info(), "session", session.ID())

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-adminDone:
		return fmt.Errorf("admin interface: %w", err)
	}
}

// loadConfig loads the file named by --config or MAVLINK_BRIDGE_CONFIG,
// or returns defaults when neither is set.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `mavlink-bridge - bridge MAVLink endpoints onto an overlay network

USAGE
    mavlink-bridge [flags]

ENDPOINTS
    serial:<device>:<baud>     serial port, raw 8N1
    udpin:<host>:<port>        bind and reply to every peer that sent a datagram
    udpout:<host>:<port>       send to a fixed remote
    udpbcast:<host>:<port>     send broadcasts, receive on the same port
    tcpin:<host>:<port>        accept clients, write to all of them
    tcpout:<host>:<port>       connect to a server

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
EXAMPLES
    # Flight controller on USB and a ground station on UDP, peering with a router
    mavlink-bridge --endpoint serial:/dev/ttyUSB0:57600 --endpoint udpin:0.0.0.0:14550 \
        --connect tcp/10.0.0.1:7447

    # Everything from a file, with the admin interface and watchdog enabled
    mavlink-bridge --config /etc/mavlink-bridge.yaml --rest-http-port 8000 --watchdog
`)
}
