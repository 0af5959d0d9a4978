// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/bureau-foundation/mavlink-bridge/bridge"
	"github.com/bureau-foundation/mavlink-bridge/overlay"
)

type staticStatus bridge.RuntimeStatus

func (s staticStatus) Status() bridge.RuntimeStatus { return bridge.RuntimeStatus(s) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newOverlay returns a session with two bridges' tokens visible to it.
func newOverlay(t *testing.T) overlay.Session {
	t.Helper()
	ctx := context.Background()
	network := overlay.NewMemoryNetwork()
	for _, id := range []string{"a1", "b2"} {
		session, err := network.Open(id)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { session.Close() })
		keys := bridge.KeysFor(id)
		for _, key := range []string{keys.Root, keys.Out} {
			if _, err := session.DeclareToken(ctx, key); err != nil {
				t.Fatalf("DeclareToken: %v", err)
			}
		}
	}
	observer, err := network.Open("c3")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { observer.Close() })
	return observer
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	return recorder
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()
	source := staticStatus{
		Identity:      "a1",
		SessionID:     "a1",
		Keys:          bridge.KeysFor("a1"),
		RelayCapacity: 1024,
		Endpoints: []bridge.EndpointStatus{
			{Endpoint: "udpin:0.0.0.0:14550", Version: "v2", State: bridge.StateRunning, FramesIn: 3},
		},
	}
	handler := NewHandler(source, newOverlay(t), quietLogger())

	recorder := get(t, handler, "/status")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", recorder.Code)
	}
	if contentType := recorder.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	var got bridge.RuntimeStatus
	if err := json.Unmarshal(recorder.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.Identity != "a1" || got.Keys.In != "@/a1/@mavlink/v2/in" {
		t.Errorf("status = %+v", got)
	}
	if len(got.Endpoints) != 1 || got.Endpoints[0].FramesIn != 3 || got.Endpoints[0].State != bridge.StateRunning {
		t.Errorf("endpoints = %+v", got.Endpoints)
	}
}

func TestLivelinessEndpoint(t *testing.T) {
	t.Parallel()
	handler := NewHandler(staticStatus{}, newOverlay(t), quietLogger())

	tests := []struct {
		name   string
		target string
		want   LivelinessResponse
	}{
		{
			name:   "default expression lists every bridge",
			target: "/liveliness",
			want: LivelinessResponse{KeyExpr: bridge.DiscoveryExpr, Alive: []string{
				"@/a1/@mavlink", "@/a1/@mavlink/v2/out", "@/b2/@mavlink", "@/b2/@mavlink/v2/out",
			}},
		},
		{
			name:   "egress keys only",
			target: "/liveliness?key=@/*/@mavlink/v2/out",
			want: LivelinessResponse{KeyExpr: bridge.EgressExpr, Alive: []string{
				"@/a1/@mavlink/v2/out", "@/b2/@mavlink/v2/out",
			}},
		},
		{
			name:   "no match",
			target: "/liveliness?key=@/*/@mavlink/v2/in",
			want:   LivelinessResponse{KeyExpr: "@/*/@mavlink/v2/in", Alive: []string{}},
		},
	}
	for _, test := range tests {
		recorder := get(t, handler, test.target)
		if recorder.Code != http.StatusOK {
			t.Errorf("%s: status code = %d, want 200", test.name, recorder.Code)
			continue
		}
		var got LivelinessResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &got); err != nil {
			t.Fatalf("%s: decoding body: %v", test.name, err)
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("%s: got %+v, want %+v", test.name, got, test.want)
		}
	}
}

func TestLivelinessRejectsBadExpression(t *testing.T) {
	t.Parallel()
	handler := NewHandler(staticStatus{}, newOverlay(t), quietLogger())
	recorder := get(t, handler, "/liveliness?key=@/a1//x")
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want 400", recorder.Code)
	}
}

func TestOnlyGetIsRouted(t *testing.T) {
	t.Parallel()
	handler := NewHandler(staticStatus{}, newOverlay(t), quietLogger())
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/status", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d, want 405", recorder.Code)
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerConfig{
		Address: "127.0.0.1:0",
		Handler: NewHandler(staticStatus{Identity: "a1"}, newOverlay(t), quietLogger()),
		Logger:  quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() { serveDone <- server.Serve(ctx) }()

	select {
	case <-server.Ready():
	case <-t.Context().Done():
		t.Fatal("server did not become ready before test deadline")
	}

	response, err := http.Get("http://" + server.Addr().String() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Errorf("GET /status = %d, want 200", response.StatusCode)
	}

	cancel()
	select {
	case err := <-serveDone:
		if err != nil {
			t.Errorf("Serve = %v, want nil", err)
		}
	case <-t.Context().Done():
		t.Fatal("server did not shut down before test deadline")
	}
}
