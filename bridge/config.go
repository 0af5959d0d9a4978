// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/bureau-foundation/mavlink-bridge/lib/mavframe"
	"github.com/bureau-foundation/mavlink-bridge/lib/watchdog"
	"github.com/bureau-foundation/mavlink-bridge/relay"
)

// EndpointConfig is one configured endpoint as written in a
// configuration file.
type EndpointConfig struct {
	// Endpoint is the transport address, for example
	// "serial:/dev/ttyUSB0:115200". It is validated when the handler
	// opens it, not here.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Version is "v1" or "v2". Empty means v2.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

// Config is the bridge's core configuration.
type Config struct {
	Endpoints []EndpointConfig `yaml:"endpoints" json:"endpoints"`

	// BroadcastChannelCapacity is the relay capacity in frames.
	BroadcastChannelCapacity int `yaml:"broadcast_channel_capacity" json:"broadcast_channel_capacity"`

	// ToOverlay enables the egress task and its liveliness token.
	ToOverlay bool `yaml:"to_overlay" json:"to_overlay"`

	// FromOverlay enables the ingress task and its liveliness token.
	FromOverlay bool `yaml:"from_overlay" json:"from_overlay"`

	WorkerThreadCount      int `yaml:"worker_thread_count" json:"worker_thread_count"`
	MaxBlockingThreadCount int `yaml:"max_blocking_thread_count" json:"max_blocking_thread_count"`

	// GroupMemberIdentity replaces the session identity in liveliness
	// keys so that several bridge processes present as one member.
	GroupMemberIdentity string `yaml:"group_member_identity,omitempty" json:"group_member_identity,omitempty"`

	// Watchdog is the watchdog sampling period in seconds. Nil
	// disables the watchdog.
	Watchdog *float64 `yaml:"watchdog,omitempty" json:"watchdog,omitempty"`
}

// DefaultConfig returns the configuration used for fields a file does
// not set.
func DefaultConfig() Config {
	return Config{
		BroadcastChannelCapacity: relay.DefaultCapacity,
		ToOverlay:                true,
		FromOverlay:              true,
		WorkerThreadCount:        2,
		MaxBlockingThreadCount:   50,
	}
}

// EndpointDescriptor is a validated endpoint: the address its handler
// opens and the protocol version it speaks.
type EndpointDescriptor struct {
	Address string
	Version mavframe.Version
}

// Validate checks every field. Endpoint addresses are only checked for
// presence.
func (c Config) Validate() error {
	if c.BroadcastChannelCapacity <= 0 {
		return &ConfigError{Field: "broadcast_channel_capacity", Err: fmt.Errorf("must be positive, got %d", c.BroadcastChannelCapacity)}
	}
	if c.WorkerThreadCount <= 0 {
		return &ConfigError{Field: "worker_thread_count", Err: fmt.Errorf("must be positive, got %d", c.WorkerThreadCount)}
	}
	if c.MaxBlockingThreadCount <= 0 {
		return &ConfigError{Field: "max_blocking_thread_count", Err: fmt.Errorf("must be positive, got %d", c.MaxBlockingThreadCount)}
	}
	if _, err := c.Descriptors(); err != nil {
		return err
	}
	if c.Watchdog != nil {
		if err := watchdog.ValidatePeriod(secondsToDuration(*c.Watchdog)); err != nil {
			return &ConfigError{Field: "watchdog", Err: err}
		}
	}
	return nil
}

// Descriptors converts the configured endpoints, in order.
func (c Config) Descriptors() ([]EndpointDescriptor, error) {
	descriptors := make([]EndpointDescriptor, 0, len(c.Endpoints))
	seen := make(map[string]bool, len(c.Endpoints))
	for index, endpoint := range c.Endpoints {
		field := fmt.Sprintf("endpoints[%d]", index)
		if endpoint.Endpoint == "" {
			return nil, &ConfigError{Field: field, Err: errors.New("endpoint address is empty")}
		}
		if seen[endpoint.Endpoint] {
			// The address is the handler's origin; two handlers with the
			// same origin would suppress each other's frames.
			return nil, &ConfigError{Field: field, Err: fmt.Errorf("duplicate endpoint %q", endpoint.Endpoint)}
		}
		seen[endpoint.Endpoint] = true
		version, err := mavframe.ParseVersion(endpoint.Version)
		if err != nil {
			return nil, &ConfigError{Field: field + ".version", Err: err}
		}
		descriptors = append(descriptors, EndpointDescriptor{Address: endpoint.Endpoint, Version: version})
	}
	return descriptors, nil
}

// WatchdogPeriod returns the configured watchdog period, or false when
// the watchdog is disabled.
func (c Config) WatchdogPeriod() (time.Duration, bool) {
	if c.Watchdog == nil {
		return 0, false
	}
	return secondsToDuration(*c.Watchdog), true
}

// Scheduler returns the scheduler sizing this configuration asks for.
func (c Config) Scheduler() SchedulerSettings {
	return SchedulerSettings{
		WorkerThreads:      c.WorkerThreadCount,
		MaxBlockingThreads: c.MaxBlockingThreadCount,
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// threadReserve is added to the thread limit for threads the Go
// runtime itself needs (sysmon, GC workers, the watchdog thread).
const threadReserve = 32

// defaultMaxThreads is the Go runtime's own thread limit. Exceeding
// the limit is a fatal error, not back-pressure, so the bridge never
// sets it lower than this.
const defaultMaxThreads = 10000

// SchedulerSettings sizes the Go scheduler. The bridge core never
// applies it; the process entry point does, once, before starting the
// runtime.
type SchedulerSettings struct {
	// WorkerThreads becomes GOMAXPROCS.
	WorkerThreads int

	// MaxBlockingThreads is the number of OS threads expected to be
	// blocked in system calls, on top of the workers. It can only raise
	// the runtime thread limit.
	MaxBlockingThreads int
}

// ThreadLimit returns the runtime thread limit Apply leaves in place:
// the Go default, or the configured workers plus blocking threads plus
// a reserve when that is larger.
func (s SchedulerSettings) ThreadLimit() int {
	return max(defaultMaxThreads, s.WorkerThreads+s.MaxBlockingThreads+threadReserve)
}

// Apply sets GOMAXPROCS and, when the configuration needs more threads
// than the Go default, raises the runtime thread limit.
func (s SchedulerSettings) Apply(logger *slog.Logger) {
	if s.WorkerThreads > 0 {
		runtime.GOMAXPROCS(s.WorkerThreads)
	}
	limit := s.ThreadLimit()
	if limit > defaultMaxThreads {
		debug.SetMaxThreads(limit)
	}
	logger.Info("scheduler configured",
		"gomaxprocs", runtime.GOMAXPROCS(0),
		"max_blocking_threads", s.MaxBlockingThreads,
		"thread_limit", limit)
}
