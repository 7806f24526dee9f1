// Package realtime – subscription registry.
//
// The Registry maps live sessions to the topics they receive events for.
// It is purely local to one process; cross-process fan-out is the
// Broadcaster's job. Both directions of the mapping are indexed so that
// delivery (topic → sessions) and teardown (session → topics) are each a
// single map walk.
package realtime

import "sync"

// Registry is the process-local topic membership table. Safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	byTopic   map[Topic]map[*Session]struct{}
	bySession map[*Session]map[Topic]struct{}
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byTopic:   make(map[Topic]map[*Session]struct{}),
		bySession: make(map[*Session]map[Topic]struct{}),
	}
}

// Subscribe adds the session to each topic. Subscribing to a topic the
// session already holds is a no-op.
func (r *Registry) Subscribe(sess *Session, topics ...Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	topicSet := r.bySession[sess]
	if topicSet == nil {
		topicSet = make(map[Topic]struct{})
		r.bySession[sess] = topicSet
	}
	for _, t := range topics {
		if !t.Valid() {
			continue
		}
		topicSet[t] = struct{}{}
		sessions := r.byTopic[t]
		if sessions == nil {
			sessions = make(map[*Session]struct{})
			r.byTopic[t] = sessions
		}
		sessions[sess] = struct{}{}
	}
	subscriptionsGauge.Set(float64(r.subscriptionCountLocked()))
}

// Unsubscribe removes the session from each topic. Topics the session does
// not hold are ignored.
func (r *Registry) Unsubscribe(sess *Session, topics ...Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	topicSet := r.bySession[sess]
	for _, t := range topics {
		delete(topicSet, t)
		if sessions := r.byTopic[t]; sessions != nil {
			delete(sessions, sess)
			if len(sessions) == 0 {
				delete(r.byTopic, t)
			}
		}
	}
	if len(topicSet) == 0 {
		delete(r.bySession, sess)
	}
	subscriptionsGauge.Set(float64(r.subscriptionCountLocked()))
}

// DropSession removes every topic membership of the session in one step.
// After it returns no delivery can observe the session, which is how
// in-flight results for a dropped connection get discarded.
func (r *Registry) DropSession(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for t := range r.bySession[sess] {
		if sessions := r.byTopic[t]; sessions != nil {
			delete(sessions, sess)
			if len(sessions) == 0 {
				delete(r.byTopic, t)
			}
		}
	}
	delete(r.bySession, sess)
	subscriptionsGauge.Set(float64(r.subscriptionCountLocked()))
}

// LocalSubscribers returns the sessions currently subscribed to topic.
func (r *Registry) LocalSubscribers(topic Topic) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := r.byTopic[topic]
	out := make([]*Session, 0, len(sessions))
	for s := range sessions {
		out = append(out, s)
	}
	return out
}

// Topics returns the session's current subscriptions.
func (r *Registry) Topics(sess *Session) []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Topic, 0, len(r.bySession[sess]))
	for t := range r.bySession[sess] {
		out = append(out, t)
	}
	return out
}

// Contains reports whether the session holds at least one subscription.
// Delivery uses it to discard results for sessions dropped mid-flight.
func (r *Registry) Contains(sess *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySession[sess]
	return ok
}

func (r *Registry) subscriptionCountLocked() int {
	n := 0
	for _, topics := range r.bySession {
		n += len(topics)
	}
	return n
}
