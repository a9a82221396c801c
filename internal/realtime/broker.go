// Package realtime turns change signals into live snapshot subscriptions.
//
// A Broker only says "something under this topic changed". A Feed reacts to
// each signal by reloading the complete current value, so subscribers always
// receive full snapshots and never diffs.
package realtime

import (
	"context"
	"sync"
)

// Broker publishes and delivers change signals per topic.
// cache.Cache implements it on Redis Pub/Sub; LocalBroker keeps it in process.
type Broker interface {
	PublishChange(ctx context.Context, topic string) error
	// SubscribeChanges must be active when it returns. The channel is closed
	// once ctx is done.
	SubscribeChanges(ctx context.Context, topic string) (<-chan struct{}, error)
}

// LocalBroker is an in-process Broker for single-instance deployments and tests.
type LocalBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewLocalBroker creates an empty LocalBroker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan struct{}]struct{})}
}

// PublishChange signals every current subscriber of topic. It never blocks.
func (b *LocalBroker) PublishChange(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// SubscribeChanges registers a subscriber until ctx is done.
func (b *LocalBroker) SubscribeChanges(ctx context.Context, topic string) (<-chan struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan struct{}]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()

		b.mu.Lock()
		delete(b.subs[topic], ch)
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
		close(ch)
		b.mu.Unlock()
	}()

	return ch, nil
}

// Subscribers returns the number of active subscribers of topic.
func (b *LocalBroker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
