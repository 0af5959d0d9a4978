// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/mavlink-bridge/bridge"
	"github.com/bureau-foundation/mavlink-bridge/lib/config"
	"github.com/bureau-foundation/mavlink-bridge/lib/mavframe"
	"github.com/bureau-foundation/mavlink-bridge/lib/version"
	"github.com/bureau-foundation/mavlink-bridge/overlay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		connect   []string
		keyFile   string
		keyExpr   string
		list      bool
		injectHex string
		target    string
		count     int
		linkWait  time.Duration
		logLevel  string
	)
	flagSet := pflag.NewFlagSet("mavlink-overlay-tap", pflag.ContinueOnError)
	flagSet.StringSliceVarP(&connect, "connect", "e", nil, "overlay locator to connect to, tcp/<host>:<port> (required, repeatable)")
	flagSet.StringVar(&keyFile, "shared-key-file", "", "file holding the key that encrypts overlay links")
	flagSet.StringVarP(&keyExpr, "key", "k", bridge.EgressExpr, "key expression to subscribe to")
	flagSet.BoolVar(&list, "list", false, "print live bridge tokens and exit")
	flagSet.StringVar(&injectHex, "inject-hex", "", "put this hex-encoded frame under the target bridge's /v2/in key and exit")
	flagSet.StringVar(&target, "target", "", "identity of the bridge --inject-hex sends to")
	flagSet.IntVarP(&count, "count", "n", 0, "exit after this many frames (0: run until interrupted)")
	flagSet.DurationVar(&linkWait, "link-timeout", 10*time.Second, "how long to wait for a peer link")
	flagSet.StringVar(&logLevel, "log-level", "warn", "debug, info, warn, or error")
	flagSet.Bool("version", false, "print the version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintln(os.Stderr, "mavlink-overlay-tap - watch and inject MAVLink traffic on the overlay")
		flagSet.SetOutput(os.Stderr)
		flagSet.PrintDefaults()
		return nil
	}
	if showVersion, _ := flagSet.GetBool("version"); showVersion {
		version.Print("mavlink-overlay-tap")
		return nil
	}
	if len(connect) == 0 {
		return errors.New("--connect is required")
	}
	if injectHex != "" && target == "" {
		return errors.New("--inject-hex requires --target")
	}

	level, err := config.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := newLogger(level)

	var sharedKey []byte
	if keyFile != "" {
		key, err := config.ReadSharedKeyFile(keyFile)
		if err != nil {
			return err
		}
		sharedKey = []byte(key)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := overlay.OpenPeer(ctx, overlay.PeerConfig{
		Mode:      overlay.ModeClient,
		Connect:   connect,
		SharedKey: sharedKey,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("opening overlay session: %w", err)
	}
	defer session.Close()

	if err := waitForLink(ctx, session, linkWait); err != nil {
		return err
	}

	switch {
	case list:
		return listBridges(ctx, session, os.Stdout)
	case injectHex != "":
		return inject(ctx, session, bridge.KeysFor(target).In, injectHex)
	default:
		return tap(ctx, session, keyExpr, count, os.Stdout)
	}
}

// waitForLink blocks until the session has at least one peer.
func waitForLink(ctx context.Context, session *overlay.PeerSession, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for len(session.Peers()) == 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("no overlay peer reachable after %v", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

func listBridges(ctx context.Context, session overlay.Session, output io.Writer) error {
	keys, err := session.Liveliness(ctx, bridge.DiscoveryExpr)
	if err != nil {
		return fmt.Errorf("liveliness query: %w", err)
	}
	for _, key := range keys {
		fmt.Fprintln(output, key)
	}
	return nil
}

func inject(ctx context.Context, session overlay.Session, key, encoded string) error {
	raw, err := hex.DecodeString(strings.ReplaceAll(encoded, " ", ""))
	if err != nil {
		return fmt.Errorf("--inject-hex: %w", err)
	}
	if _, err := mavframe.ParseExact(raw); err != nil {
		return fmt.Errorf("--inject-hex is not one MAVLink frame: %w", err)
	}
	publisher, err := session.DeclarePublisher(ctx, key)
	if err != nil {
		return err
	}
	defer publisher.Close()
	if err := publisher.Put(ctx, raw); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// tap prints every sample matching keyExpr until ctx ends or count
// samples have been printed.
func tap(ctx context.Context, session overlay.Session, keyExpr string, count int, output io.Writer) error {
	subscriber, err := session.DeclareSubscriber(ctx, keyExpr)
	if err != nil {
		return err
	}
	defer subscriber.Close()

	for printed := 0; count == 0 || printed < count; printed++ {
		sample, err := subscriber.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, overlay.ErrClosed) {
				return nil
			}
			return err
		}
		fmt.Fprintln(output, describeSample(sample))
	}
	return nil
}

// describeSample renders one sample as a single line.
func describeSample(sample overlay.Sample) string {
	frame, err := mavframe.ParseExact(sample.Payload)
	if err != nil {
		return fmt.Sprintf("%s invalid len=%d: %v", sample.Key, len(sample.Payload), err)
	}
	name, known := mavframe.MessageName(frame.MessageID)
	if !known {
		name = "UNKNOWN"
	}
	signed := ""
	if frame.Signed {
		signed = " signed"
	}
	return fmt.Sprintf("%s %s seq=%d sys=%d comp=%d msg=%d %s len=%d%s",
		sample.Key, frame.Version, frame.Sequence, frame.SystemID, frame.ComponentID,
		frame.MessageID, name, len(frame.Raw), signed)
}
