package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// Topic names a node wide broadcast.
type Topic string

const (
	// TopicSetup is published once the stores are open and before the start-up ledger is chosen.
	TopicSetup Topic = "setup"
	// TopicShutdown is published during the ordered stop, after validations and manifests are saved.
	TopicShutdown Topic = "shutdown"
)

// Observer reacts to a broadcast. A returned error is reported to the publisher.
type Observer = func(ctx context.Context) error

type subscription struct {
	name     string
	observer Observer
}

// Bus distributes Setup and Shutdown broadcasts to the subscribed observers, in subscription
// order. The bus value is owned by the node and handed to subsystems at construction.
type Bus struct {
	lock        sync.RWMutex
	subscribers map[Topic][]subscription
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Topic][]subscription),
	}
}

// Subscribe registers the observer for the topic under a descriptive name used in errors.
func (b *Bus) Subscribe(topic Topic, name string, observer Observer) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], subscription{name: name, observer: observer})
}

// Subscribers returns the number of observers of the topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.subscribers[topic])
}

// Publish calls every observer of the topic, even if an earlier one failed. The errors of all
// failing observers are combined.
func (b *Bus) Publish(ctx context.Context, topic Topic) error {
	b.lock.RLock()
	subs := make([]subscription, len(b.subscribers[topic]))
	copy(subs, b.subscribers[topic])
	b.lock.RUnlock()

	var errs error
	for _, sub := range subs {
		if err := sub.observer(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s observer %q failed: %w", topic, sub.name, err))
		}
	}
	return errs
}
