package realtime

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
)

// ErrBrokerClosed is reported when the change stream ends without the
// subscription being closed.
var ErrBrokerClosed = errors.New("change stream closed by broker")

// LoadFunc reads the complete current value of a feed.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Feed is a lazy, restartable source of snapshots for one topic. Nothing is
// subscribed until Subscribe is called, and every Subscribe starts afresh.
type Feed[T any] struct {
	broker Broker
	topic  string
	load   LoadFunc[T]
	logger *slog.Logger
}

// NewFeed creates a Feed that reloads with load after each change on topic.
func NewFeed[T any](broker Broker, topic string, load LoadFunc[T], logger *slog.Logger) *Feed[T] {
	return &Feed[T]{
		broker: broker,
		topic:  topic,
		load:   load,
		logger: logger.With("component", "realtime.feed", "topic", topic),
	}
}

// Topic returns the topic the feed listens on.
func (f *Feed[T]) Topic() string {
	return f.topic
}

// Subscribe starts a subscription. The first snapshot is the current value;
// a new full snapshot follows every change until Close or ctx cancellation.
func (f *Feed[T]) Subscribe(ctx context.Context) (*Subscription[T], error) {
	subCtx, cancel := context.WithCancel(ctx)

	// Subscribe before the initial load so no change between the two is lost.
	changes, err := f.broker.SubscribeChanges(subCtx, f.topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", f.topic, err)
	}

	initial, err := f.load(subCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load %s: %w", f.topic, err)
	}

	sub := &Subscription[T]{
		snapshots: make(chan T),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go sub.run(subCtx, f, initial, changes)

	return sub, nil
}

// Seq exposes the feed as an iterator. Breaking out of the loop closes the
// subscription. A terminal error is yielded once, as the last element.
func (f *Feed[T]) Seq(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		sub, err := f.Subscribe(ctx)
		if err != nil {
			yield(zero, err)
			return
		}
		defer sub.Close()

		for snapshot := range sub.Snapshots() {
			if !yield(snapshot, nil) {
				return
			}
		}
		if err := sub.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// Subscription is one live view of a Feed.
type Subscription[T any] struct {
	snapshots chan T
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// Snapshots delivers full snapshots. It is closed when the subscription ends.
func (s *Subscription[T]) Snapshots() <-chan T {
	return s.snapshots
}

// Err returns the terminal error, if any, after Snapshots is closed.
// A subscription ended by Close or context cancellation has no error.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes and waits for delivery to stop. Safe to call repeatedly.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Subscription[T]) run(ctx context.Context, f *Feed[T], initial T, changes <-chan struct{}) {
	defer close(s.done)
	defer close(s.snapshots)
	defer s.cancel()

	if !s.deliver(ctx, initial) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				if ctx.Err() == nil {
					s.setErr(ErrBrokerClosed)
				}
				return
			}

			snapshot, err := f.load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Keep the subscription; the next change retries the load.
				f.logger.Warn("failed to reload snapshot", "error", err)
				continue
			}
			if !s.deliver(ctx, snapshot) {
				return
			}
		}
	}
}

func (s *Subscription[T]) deliver(ctx context.Context, snapshot T) bool {
	select {
	case s.snapshots <- snapshot:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Subscription[T]) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
