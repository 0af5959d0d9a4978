// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/mavlink-bridge/lib/testutil"
)

func envelope(origin string, sequence int) Envelope {
	return Envelope{Origin: origin, Raw: []byte{byte(sequence)}, Timestamp: int64(sequence)}
}

func requireEnvelope(t *testing.T, cursor *Cursor, want byte) {
	t.Helper()
	got, err := cursor.TryNext()
	if err != nil {
		t.Fatalf("TryNext: %v, want envelope %d", err, want)
	}
	if got.Raw[0] != want {
		t.Fatalf("TryNext returned envelope %d, want %d", got.Raw[0], want)
	}
}

func requireLag(t *testing.T, cursor *Cursor, want uint64) {
	t.Helper()
	_, err := cursor.TryNext()
	var lag *LagError
	if !errors.As(err, &lag) {
		t.Fatalf("TryNext: %v, want *LagError", err)
	}
	if lag.Skipped != want {
		t.Fatalf("Skipped = %d, want %d", lag.Skipped, want)
	}
}

func TestCursorReadsInPublishOrder(t *testing.T) {
	t.Parallel()
	relay := New(8)
	cursor := relay.Subscribe()
	for i := 1; i <= 3; i++ {
		if err := relay.Publish(envelope("a", i)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	for i := byte(1); i <= 3; i++ {
		requireEnvelope(t, cursor, i)
	}
	if _, err := cursor.TryNext(); err != ErrEmpty {
		t.Fatalf("TryNext on drained cursor = %v, want ErrEmpty", err)
	}
}

func TestSubscribeStartsAtTail(t *testing.T) {
	t.Parallel()
	relay := New(4)
	relay.Publish(envelope("a", 1))
	cursor := relay.Subscribe()
	relay.Publish(envelope("a", 2))
	requireEnvelope(t, cursor, 2)
}

func TestOverflowEvictsOldestAndReportsLag(t *testing.T) {
	t.Parallel()
	relay := New(2)
	cursor := relay.Subscribe()
	for i := 1; i <= 3; i++ {
		relay.Publish(envelope("a", i))
	}

	requireLag(t, cursor, 1)
	requireEnvelope(t, cursor, 2)
	requireEnvelope(t, cursor, 3)
	if cursor.Lagged() != 1 {
		t.Errorf("Lagged = %d, want 1", cursor.Lagged())
	}
}

func TestLagIsPerCursor(t *testing.T) {
	t.Parallel()
	relay := New(3)
	fast := relay.Subscribe()
	slow := relay.Subscribe()

	for i := 1; i <= 6; i++ {
		relay.Publish(envelope("a", i))
		requireEnvelope(t, fast, byte(i))
	}

	requireLag(t, slow, 3)
	for i := byte(4); i <= 6; i++ {
		requireEnvelope(t, slow, i)
	}
}

func TestCloseDrainsThenReportsClosed(t *testing.T) {
	t.Parallel()
	relay := New(4)
	cursor := relay.Subscribe()
	relay.Publish(envelope("a", 1))
	relay.Close()
	relay.Close()

	if err := relay.Publish(envelope("a", 2)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Publish after Close = %v, want ErrClosed", err)
	}
	requireEnvelope(t, cursor, 1)
	if _, err := cursor.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Next after drain = %v, want ErrClosed", err)
	}
}

func TestPublishRejectsEmptyOrigin(t *testing.T) {
	t.Parallel()
	if err := New(1).Publish(Envelope{Raw: []byte{1}}); err == nil {
		t.Fatal("Publish accepted an envelope without origin")
	}
}

func TestNextWakesOnPublish(t *testing.T) {
	t.Parallel()
	relay := New(4)
	cursor := relay.Subscribe()

	received := make(chan Envelope, 1)
	go func() {
		got, err := cursor.Next(context.Background())
		if err != nil {
			t.Errorf("Next: %v", err)
			return
		}
		received <- got
	}()

	relay.Publish(envelope("producer", 7))
	got := testutil.RequireReceive(t, received, 5*time.Second, "waiting for Next")
	if got.Origin != "producer" || got.Raw[0] != 7 {
		t.Errorf("Next = %+v, want origin producer and payload 7", got)
	}
}

func TestNextHonoursContext(t *testing.T) {
	t.Parallel()
	cursor := New(1).Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cursor.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Next = %v, want context.Canceled", err)
	}
}

func TestConcurrentPublishersReachEveryCursor(t *testing.T) {
	t.Parallel()
	const publishers, perPublisher = 4, 50
	relay := New(publishers * perPublisher)
	cursors := []*Cursor{relay.Subscribe(), relay.Subscribe()}

	var waitGroup sync.WaitGroup
	for p := 0; p < publishers; p++ {
		waitGroup.Add(1)
		go func(origin string) {
			defer waitGroup.Done()
			for i := 0; i < perPublisher; i++ {
				relay.Publish(envelope(origin, i))
			}
		}(fmt.Sprintf("publisher-%d", p))
	}
	waitGroup.Wait()

	for index, cursor := range cursors {
		count := 0
		for {
			_, err := cursor.TryNext()
			if err == ErrEmpty {
				break
			}
			if err != nil {
				t.Fatalf("cursor %d: %v", index, err)
			}
			count++
		}
		if count != publishers*perPublisher {
			t.Errorf("cursor %d read %d envelopes, want %d", index, count, publishers*perPublisher)
		}
	}
}
