// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/mavlink-bridge/lib/clock"
	"github.com/bureau-foundation/mavlink-bridge/lib/version"
	"github.com/bureau-foundation/mavlink-bridge/lib/watchdog"
	"github.com/bureau-foundation/mavlink-bridge/overlay"
	"github.com/bureau-foundation/mavlink-bridge/relay"
	"github.com/bureau-foundation/mavlink-bridge/transport"
)

// Options are the collaborators a Runtime is started with.
type Options struct {
	Config Config

	// Session is the overlay session, already open. The runtime shares
	// it with its overlay tasks and never closes it.
	Session overlay.Session

	// Opener opens endpoint transports. Defaults to a
	// transport.SystemOpener.
	Opener transport.Opener

	// Clock stamps envelopes and paces the watchdog. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Runtime is one running bridge.
type Runtime struct {
	config   Config
	identity string
	keys     LivelinessKeys
	session  overlay.Session
	relay    *relay.Relay
	logger   *slog.Logger

	supervisor *Supervisor
	egress     *EgressTask
	ingress    *IngressTask
	watchdog   *watchdog.Watchdog
	tokens     []overlay.Token
	clock      clock.Clock
	started    time.Time

	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	closeOnce sync.Once
}

// RuntimeStatus is a snapshot of a running bridge.
type RuntimeStatus struct {
	Version        string           `json:"version"`
	Identity       string           `json:"identity"`
	SessionID      string           `json:"session_id"`
	Keys           LivelinessKeys   `json:"keys"`
	Uptime         string           `json:"uptime"`
	RelayCapacity  int              `json:"relay_capacity"`
	RelayPublished uint64           `json:"relay_published"`
	Endpoints      []EndpointStatus `json:"endpoints"`
	Overlay        []TaskStatus     `json:"overlay"`
	Watchdog       string           `json:"watchdog,omitempty"`
}

// Start validates the configuration, declares the liveliness tokens,
// and starts every unit of work. Configuration problems return
// *ConfigError and token failures *LivelinessError; nothing is left
// running in either case. ctx bounds startup only; the runtime runs
// until Close.
func Start(ctx context.Context, options Options) (*Runtime, error) {
	config := options.Config
	if err := config.Validate(); err != nil {
		return nil, err
	}
	descriptors, err := config.Descriptors()
	if err != nil {
		return nil, err
	}
	if options.Session == nil {
		return nil, &ConfigError{Field: "session", Err: errors.New("no overlay session provided")}
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runtimeClock := options.Clock
	if runtimeClock == nil {
		runtimeClock = clock.Real()
	}
	opener := options.Opener
	if opener == nil {
		opener = &transport.SystemOpener{Logger: logger}
	}

	identity := NodeIdentity(options.Session.ID(), config.GroupMemberIdentity)
	runtime := &Runtime{
		config:   config,
		identity: identity,
		keys:     KeysFor(identity),
		session:  options.Session,
		relay:    relay.New(config.BroadcastChannelCapacity),
		logger:   logger.With("identity", identity),
		clock:    runtimeClock,
		started:  runtimeClock.Now(),
	}

	if err := runtime.declareTokens(ctx); err != nil {
		return nil, err
	}

	if period, enabled := config.WatchdogPeriod(); enabled {
		monitor, err := watchdog.New(watchdog.Config{Period: period, Clock: runtimeClock, Logger: logger})
		if err != nil {
			runtime.undeclareTokens()
			return nil, &ConfigError{Field: "watchdog", Err: err}
		}
		runtime.watchdog = monitor
	}

	// Every cursor is subscribed before any producer starts, so no
	// consumer misses frames published during startup.
	runtime.supervisor = NewSupervisor(descriptors, opener, runtime.relay, runtimeClock, runtime.logger)
	if config.ToOverlay {
		runtime.egress = NewEgressTask(options.Session, runtime.keys.Out, runtime.relay, runtime.logger)
	}
	if config.FromOverlay {
		runtime.ingress = NewIngressTask(options.Session, runtime.keys.In, runtime.relay, runtimeClock, runtime.logger)
	}

	runContext, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runtime.cancel = cancel

	if runtime.watchdog != nil {
		runtime.watchdog.Start()
	}
	runtime.spawn(func() { runtime.supervisor.Run(runContext) })
	if runtime.egress != nil {
		runtime.spawn(func() { runtime.egress.Run(runContext) })
	}
	if runtime.ingress != nil {
		runtime.spawn(func() { runtime.ingress.Run(runContext) })
	}

	runtime.logger.Info("bridge started",
		"session", options.Session.ID(),
		"endpoints", len(descriptors),
		"to_overlay", config.ToOverlay,
		"from_overlay", config.FromOverlay,
		"relay_capacity", config.BroadcastChannelCapacity)
	return runtime, nil
}

func (r *Runtime) spawn(unit func()) {
	r.waitGroup.Add(1)
	go func() {
		defer r.waitGroup.Done()
		unit()
	}()
}

func (r *Runtime) declareTokens(ctx context.Context) error {
	keys := []string{r.keys.Root}
	if r.config.ToOverlay {
		keys = append(keys, r.keys.Out)
	}
	if r.config.FromOverlay {
		keys = append(keys, r.keys.In)
	}
	for _, key := range keys {
		token, err := r.session.DeclareToken(ctx, key)
		if err != nil {
			r.undeclareTokens()
			return &LivelinessError{Key: key, Err: err}
		}
		r.tokens = append(r.tokens, token)
		r.logger.Debug("liveliness token declared", "key", key)
	}
	return nil
}

func (r *Runtime) undeclareTokens() {
	for _, token := range r.tokens {
		if err := token.Close(); err != nil {
			r.logger.Warn("undeclaring liveliness token failed", "key", token.Key(), "error", err)
		}
	}
	r.tokens = nil
}

// Identity returns the identity used in this bridge's keys.
func (r *Runtime) Identity() string { return r.identity }

// Keys returns this bridge's liveliness keys.
func (r *Runtime) Keys() LivelinessKeys { return r.keys }

// Session returns the overlay session the runtime was started with.
func (r *Runtime) Session() overlay.Session { return r.session }

// Status returns a snapshot of every unit of work.
func (r *Runtime) Status() RuntimeStatus {
	status := RuntimeStatus{
		Version:        version.Full(),
		Identity:       r.identity,
		SessionID:      r.session.ID(),
		Keys:           r.keys,
		Uptime:         r.clock.Now().Sub(r.started).Round(time.Second).String(),
		RelayCapacity:  r.relay.Capacity(),
		RelayPublished: r.relay.Published(),
		Endpoints:      r.supervisor.Status(),
	}
	if r.egress != nil {
		status.Overlay = append(status.Overlay, r.egress.Status())
	} else {
		status.Overlay = append(status.Overlay, TaskStatus{Task: "egress", Key: r.keys.Out, State: StateDisabled})
	}
	if r.ingress != nil {
		status.Overlay = append(status.Overlay, r.ingress.Status())
	} else {
		status.Overlay = append(status.Overlay, TaskStatus{Task: "ingress", Key: r.keys.In, State: StateDisabled})
	}
	if period, enabled := r.config.WatchdogPeriod(); enabled {
		status.Watchdog = period.String()
	}
	return status
}

// Close stops every unit of work, closes the relay, undeclares the
// liveliness tokens, and waits for everything to finish. The overlay
// session stays open. Idempotent.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		r.relay.Close()
		r.waitGroup.Wait()
		r.undeclareTokens()
		if r.watchdog != nil {
			r.watchdog.Stop()
		}
		r.logger.Info("bridge stopped")
	})
	return nil
}
