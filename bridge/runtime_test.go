// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bureau-foundation/mavlink-bridge/lib/mavframe"
	"github.com/bureau-foundation/mavlink-bridge/lib/testutil"
	"github.com/bureau-foundation/mavlink-bridge/overlay"
)

func TestRuntimeDeclaresAndUndeclaresTokens(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		toOverlay   bool
		fromOverlay bool
		want        []string
	}{
		{"both directions", true, true, []string{"@/a1/@mavlink", "@/a1/@mavlink/v2/in", "@/a1/@mavlink/v2/out"}},
		{"egress only", true, false, []string{"@/a1/@mavlink", "@/a1/@mavlink/v2/out"}},
		{"ingress only", false, true, []string{"@/a1/@mavlink", "@/a1/@mavlink/v2/in"}},
		{"presence only", false, false, []string{"@/a1/@mavlink"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			network := overlay.NewMemoryNetwork()
			session := openSession(t, network, "a1")

			config := DefaultConfig()
			config.ToOverlay = test.toOverlay
			config.FromOverlay = test.fromOverlay
			runtime, err := Start(context.Background(), Options{Config: config, Session: session, Opener: newFakeOpener()})
			if err != nil {
				t.Fatalf("Start: %v", err)
			}

			observer := openSession(t, network, "b2")
			got, err := observer.Liveliness(context.Background(), DiscoveryExpr)
			if err != nil {
				t.Fatalf("Liveliness: %v", err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("liveliness = %v, want %v", got, test.want)
			}

			if err := runtime.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if err := runtime.Close(); err != nil {
				t.Fatalf("second Close: %v", err)
			}
			if tokens := network.Tokens(); len(tokens) != 0 {
				t.Errorf("tokens after Close = %v, want none", tokens)
			}
		})
	}
}

func TestRuntimeUsesGroupMemberIdentity(t *testing.T) {
	t.Parallel()
	network := overlay.NewMemoryNetwork()
	session := openSession(t, network, "a1")

	config := DefaultConfig()
	config.GroupMemberIdentity = "fleet-7"
	runtime, err := Start(context.Background(), Options{Config: config, Session: session, Opener: newFakeOpener()})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer runtime.Close()

	if runtime.Identity() != "fleet-7" {
		t.Errorf("Identity = %q, want fleet-7", runtime.Identity())
	}
	if runtime.Keys().Out != "@/fleet-7/@mavlink/v2/out" {
		t.Errorf("Out = %q", runtime.Keys().Out)
	}
	status := runtime.Status()
	if status.SessionID != "a1" || status.Identity != "fleet-7" {
		t.Errorf("status identity = %q session = %q", status.Identity, status.SessionID)
	}
}

func TestRuntimeForwardsBetweenEndpointAndOverlay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	network := overlay.NewMemoryNetwork()
	session := openSession(t, network, "a1")
	observer := openSession(t, network, "b2")

	outbound, err := observer.DeclareSubscriber(ctx, EgressExpr)
	if err != nil {
		t.Fatalf("DeclareSubscriber: %v", err)
	}

	opener := newFakeOpener()
	serial := opener.add(serialAddress)
	config := DefaultConfig()
	config.Endpoints = []EndpointConfig{{Endpoint: serialAddress}}
	runtime, err := Start(ctx, Options{Config: config, Session: session, Opener: opener})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer runtime.Close()

	eventually(t, "every unit running", func() bool {
		status := runtime.Status()
		if status.Endpoints[0].State != StateRunning {
			return false
		}
		for _, task := range status.Overlay {
			if task.State != StateRunning {
				return false
			}
		}
		return true
	})

	fromVehicle := heartbeat(mavframe.V2, 1)
	serial.inbound <- fromVehicle
	sample := receiveSample(t, outbound)
	if sample.Key != runtime.Keys().Out || !bytes.Equal(sample.Payload, fromVehicle) {
		t.Errorf("egress sample = %q %x", sample.Key, sample.Payload)
	}

	publisher, err := observer.DeclarePublisher(ctx, runtime.Keys().In)
	if err != nil {
		t.Fatalf("DeclarePublisher: %v", err)
	}
	toVehicle := heartbeat(mavframe.V1, 2)
	if err := publisher.Put(ctx, toVehicle); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got := testutil.RequireReceive(t, serial.written, 5*time.Second, "injected frame on serial")
	if !bytes.Equal(got, toVehicle) {
		t.Errorf("serial wrote %x, want %x", got, toVehicle)
	}

	// Injected frames are relayed, so egress republishes them too.
	sample = receiveSample(t, outbound)
	if !bytes.Equal(sample.Payload, toVehicle) {
		t.Errorf("republished sample = %x, want %x", sample.Payload, toVehicle)
	}

	if err := runtime.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	testutil.RequireClosed(t, serial.closed, 5*time.Second, "endpoint closed by runtime Close")
	for _, endpoint := range runtime.Status().Endpoints {
		if endpoint.State != StateEnded {
			t.Errorf("%s state = %s after Close", endpoint.Endpoint, endpoint.State)
		}
	}
}

func TestStartRejectsBadOptions(t *testing.T) {
	t.Parallel()
	network := overlay.NewMemoryNetwork()
	session := openSession(t, network, "a1")

	badCapacity := DefaultConfig()
	badCapacity.BroadcastChannelCapacity = 0
	badVersion := DefaultConfig()
	badVersion.Endpoints = []EndpointConfig{{Endpoint: serialAddress, Version: "v3"}}

	tests := []struct {
		name    string
		options Options
		field   string
	}{
		{"zero capacity", Options{Config: badCapacity, Session: session}, "broadcast_channel_capacity"},
		{"bad version", Options{Config: badVersion, Session: session}, "endpoints[0].version"},
		{"no session", Options{Config: DefaultConfig()}, "session"},
	}
	for _, test := range tests {
		_, err := Start(context.Background(), test.options)
		var configError *ConfigError
		if !errors.As(err, &configError) {
			t.Errorf("%s: Start = %v, want *ConfigError", test.name, err)
			continue
		}
		if configError.Field != test.field {
			t.Errorf("%s: Field = %q, want %q", test.name, configError.Field, test.field)
		}
	}
	if tokens := network.Tokens(); len(tokens) != 0 {
		t.Errorf("tokens after failed starts = %v, want none", tokens)
	}
}

func TestStartFailsWhenTokensCannotBeDeclared(t *testing.T) {
	t.Parallel()
	network := overlay.NewMemoryNetwork()
	session := openSession(t, network, "a1")
	session.Close()

	_, err := Start(context.Background(), Options{Config: DefaultConfig(), Session: session})
	var livelinessError *LivelinessError
	if !errors.As(err, &livelinessError) {
		t.Fatalf("Start = %v, want *LivelinessError", err)
	}
	if livelinessError.Key != "@/a1/@mavlink" || !errors.Is(err, overlay.ErrClosed) {
		t.Errorf("LivelinessError = %+v", livelinessError)
	}
}

func TestRuntimeStatusReportsDisabledTasks(t *testing.T) {
	t.Parallel()
	network := overlay.NewMemoryNetwork()
	session := openSession(t, network, "a1")

	config := DefaultConfig()
	config.ToOverlay = false
	config.FromOverlay = false
	runtime, err := Start(context.Background(), Options{Config: config, Session: session})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer runtime.Close()

	status := runtime.Status()
	if len(status.Overlay) != 2 {
		t.Fatalf("Overlay = %+v, want two entries", status.Overlay)
	}
	for _, task := range status.Overlay {
		if task.State != StateDisabled {
			t.Errorf("%s state = %s, want %s", task.Task, task.State, StateDisabled)
		}
	}
	if status.RelayCapacity != config.BroadcastChannelCapacity {
		t.Errorf("RelayCapacity = %d, want %d", status.RelayCapacity, config.BroadcastChannelCapacity)
	}
}

func TestPluginStartsNamedInstance(t *testing.T) {
	t.Parallel()
	network := overlay.NewMemoryNetwork()
	session := openSession(t, network, "a1")

	var capability Capability = Plugin{}
	if _, err := capability.Start("", Host{Config: DefaultConfig(), Session: session}); err == nil {
		t.Error("Start with empty name succeeded")
	}

	instance, err := capability.Start("mavlink", Host{Config: DefaultConfig(), Session: session, Opener: newFakeOpener()})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if instance.Name() != "mavlink" {
		t.Errorf("Name = %q, want mavlink", instance.Name())
	}
	if instance.Status().Identity != "a1" {
		t.Errorf("Identity = %q, want a1", instance.Status().Identity)
	}
	if err := instance.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if tokens := network.Tokens(); len(tokens) != 0 {
		t.Errorf("tokens after Close = %v, want none", tokens)
	}
}
