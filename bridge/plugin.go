// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/mavlink-bridge/lib/clock"
	"github.com/bureau-foundation/mavlink-bridge/overlay"
	"github.com/bureau-foundation/mavlink-bridge/transport"
)

// Host is what a host process hands the bridge when starting it: the
// configuration and an overlay session it owns.
type Host struct {
	Config  Config
	Session overlay.Session
	Logger  *slog.Logger

	// Opener and Clock are optional; see Options.
	Opener transport.Opener
	Clock  clock.Clock
}

// RunningInstance is a started bridge as seen by its host.
type RunningInstance interface {
	Name() string
	Status() RuntimeStatus
	Close() error
}

// Capability starts bridges on behalf of a host. The host owns the
// process, the scheduler, and the overlay session; the bridge owns
// only what it starts.
type Capability interface {
	Start(name string, host Host) (RunningInstance, error)
}

var _ Capability = Plugin{}

// Plugin is the bridge's Capability.
type Plugin struct{}

// Start starts a Runtime named name.
func (Plugin) Start(name string, host Host) (RunningInstance, error) {
	if name == "" {
		return nil, &ConfigError{Field: "name", Err: fmt.Errorf("instance name is empty")}
	}
	logger := host.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runtime, err := Start(context.Background(), Options{
		Config:  host.Config,
		Session: host.Session,
		Opener:  host.Opener,
		Clock:   host.Clock,
		Logger:  logger.With("plugin", name),
	})
	if err != nil {
		return nil, err
	}
	return &instance{name: name, Runtime: runtime}, nil
}

type instance struct {
	name string
	*Runtime
}

func (i *instance) Name() string { return i.name }
