// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"context"
	"sync"
	"sync/atomic"
)

// subscriberQueueCapacity bounds how many samples a subscriber may
// hold before the oldest are dropped.
const subscriberQueueCapacity = 1024

// sampleQueue is a drop-oldest FIFO with a single consumer.
type sampleQueue struct {
	mutex   sync.Mutex
	items   []Sample
	dropped uint64
	closed  bool
	notify  chan struct{}
	done    chan struct{}
}

func newSampleQueue() *sampleQueue {
	return &sampleQueue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *sampleQueue) push(sample Sample) {
	q.mutex.Lock()
	if q.closed {
		q.mutex.Unlock()
		return
	}
	if len(q.items) >= subscriberQueueCapacity {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, sample)
	q.mutex.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *sampleQueue) pop(ctx context.Context) (Sample, error) {
	for {
		q.mutex.Lock()
		if len(q.items) > 0 {
			sample := q.items[0]
			q.items = q.items[1:]
			q.mutex.Unlock()
			return sample, nil
		}
		closed := q.closed
		q.mutex.Unlock()
		if closed {
			return Sample{}, ErrClosed
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		}
	}
}

// close discards queued samples and wakes the consumer.
func (q *sampleQueue) close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}

func (q *sampleQueue) droppedCount() uint64 {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.dropped
}

type subscriber struct {
	id        uint64
	keyExpr   string
	queue     *sampleQueue
	undeclare func()
	closeOnce sync.Once
}

func newSubscriber(id uint64, keyExpr string, undeclare func()) *subscriber {
	return &subscriber{id: id, keyExpr: keyExpr, queue: newSampleQueue(), undeclare: undeclare}
}

func (s *subscriber) KeyExpr() string { return s.keyExpr }

func (s *subscriber) Receive(ctx context.Context) (Sample, error) {
	return s.queue.pop(ctx)
}

func (s *subscriber) Close() error {
	s.closeOnce.Do(func() {
		s.undeclare()
		s.queue.close()
	})
	return nil
}

type publisher struct {
	key    string
	put    func(key string, payload []byte) error
	closed atomic.Bool
}

func (p *publisher) Key() string { return p.key }

func (p *publisher) Put(ctx context.Context, payload []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.put(p.key, payload)
}

func (p *publisher) Close() error {
	p.closed.Store(true)
	return nil
}

type token struct {
	key       string
	undeclare func()
	closeOnce sync.Once
}

func (t *token) Key() string { return t.key }

func (t *token) Close() error {
	t.closeOnce.Do(t.undeclare)
	return nil
}
