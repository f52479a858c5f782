// Package registry provides the topic index shared by all relay connections.
//
// The registry is bidirectional: it maps every topic to the set of
// connections subscribed to it, and every connection to the set of topics it
// is subscribed to. Both sides are mutated under a single lock so that a
// connection is a member of a topic's set if and only if that topic is a
// member of the connection's set.
package registry

import (
	"sort"
	"sync"
)

// Subscriber is a connection that can receive published messages.
//
// Send must not block and must not report errors to the caller: a failed
// delivery is handled by the subscriber itself (typically by closing), so
// that one broken receiver never interrupts a fan-out.
type Subscriber interface {
	Send(data []byte)
}

// Observer is notified about registry changes. All methods are called with
// the registry lock held and must return quickly.
type Observer interface {
	TopicCreated(topic string)
	TopicDeleted(topic string)
	Delivered(topic string, receivers int)
}

// Registry is the topic index. The zero value is not usable; use New.
type Registry struct {
	topics        map[string]map[Subscriber]struct{}
	subscriptions map[Subscriber]map[string]struct{}
	observer      Observer
	mu            sync.RWMutex
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		topics:        make(map[string]map[Subscriber]struct{}),
		subscriptions: make(map[Subscriber]map[string]struct{}),
	}
}

// SetObserver installs an observer for topic lifecycle and delivery events.
func (r *Registry) SetObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Subscribe adds sub to topic. Subscribing twice has no additional effect.
func (r *Registry) Subscribe(sub Subscriber, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[topic]
	if !ok {
		subs = make(map[Subscriber]struct{})
		r.topics[topic] = subs
		if r.observer != nil {
			r.observer.TopicCreated(topic)
		}
	}
	subs[sub] = struct{}{}

	set, ok := r.subscriptions[sub]
	if !ok {
		set = make(map[string]struct{})
		r.subscriptions[sub] = set
	}
	set[topic] = struct{}{}
}

// Unsubscribe removes sub from topic. A topic left without subscribers is
// deleted. It is a no-op if sub is not subscribed to topic.
func (r *Registry) Unsubscribe(sub Subscriber, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(sub, topic)
}

func (r *Registry) unsubscribeLocked(sub Subscriber, topic string) {
	if subs, ok := r.topics[topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(r.topics, topic)
			if r.observer != nil {
				r.observer.TopicDeleted(topic)
			}
		}
	}

	if set, ok := r.subscriptions[sub]; ok {
		delete(set, topic)
		if len(set) == 0 {
			delete(r.subscriptions, sub)
		}
	}
}

// Publish delivers data unmodified to every current subscriber of topic,
// including the publisher when it is subscribed. Publishing to a topic with
// no subscribers is a silent no-op. It returns the number of delivery
// attempts made.
func (r *Registry) Publish(topic string, data []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs, ok := r.topics[topic]
	if !ok {
		return 0
	}
	for sub := range subs {
		sub.Send(data)
	}
	if r.observer != nil {
		r.observer.Delivered(topic, len(subs))
	}
	return len(subs)
}

// RemoveConnection unsubscribes sub from every topic and forgets it. It
// returns the topics sub was subscribed to, sorted.
func (r *Registry) RemoveConnection(sub Subscriber) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subscriptions[sub]
	if !ok {
		return nil
	}
	removed := make([]string, 0, len(set))
	for topic := range set {
		removed = append(removed, topic)
	}
	for _, topic := range removed {
		r.unsubscribeLocked(sub, topic)
	}
	delete(r.subscriptions, sub)

	sort.Strings(removed)
	return removed
}

// Topics returns the topics sub is subscribed to, sorted.
func (r *Registry) Topics(sub Subscriber) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.subscriptions[sub]
	topics := make([]string, 0, len(set))
	for topic := range set {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// IsSubscribed reports whether sub is subscribed to topic.
func (r *Registry) IsSubscribed(sub Subscriber, topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[topic][sub]
	return ok
}

// Has reports whether topic currently has at least one subscriber.
func (r *Registry) Has(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[topic]
	return ok
}

// SubscriberCount returns the number of subscribers of topic.
func (r *Registry) SubscriberCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// TopicCount returns the number of live topics.
func (r *Registry) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

// ConnectionCount returns the number of connections holding at least one subscription.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}

// Consistent reports whether the topic and subscription indexes mirror each
// other exactly.
func (r *Registry) Consistent() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pairs := 0
	for topic, subs := range r.topics {
		if len(subs) == 0 {
			return false
		}
		for sub := range subs {
			if _, ok := r.subscriptions[sub][topic]; !ok {
				return false
			}
			pairs++
		}
	}
	for _, set := range r.subscriptions {
		if len(set) == 0 {
			return false
		}
		pairs -= len(set)
	}
	return pairs == 0
}
