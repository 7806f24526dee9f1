// Package realtime – event broadcaster.
//
// The Broadcaster fans one event out to every locally subscribed session
// and, separately, publishes it to the shared broker so sibling processes
// repeat the local-delivery half for their own subscribers. Broker messages
// are replayed locally only, never re-published, which is what prevents
// infinite fan-out loops. Redis pub/sub echoes publishes back to the
// publisher, so each envelope carries the origin process id and the
// receive path skips its own.
package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/provell/go-network-backend/internal/store"
)

// DefaultBrokerChannel is the broker channel all processes share.
const DefaultBrokerChannel = "network:events"

// Publisher is the capability services need to emit events. Broadcaster
// implements it; tests substitute a recorder.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, ev Event)
}

// envelope is the broker wire format.
type envelope struct {
	Origin string `json:"origin"`
	Topic  string `json:"topic"`
	Event  Event  `json:"event"`
}

// Broadcaster bridges the local Registry with the shared broker.
type Broadcaster struct {
	registry *Registry
	broker   store.Broker
	channel  string
	origin   string
	log      zerolog.Logger
}

// NewBroadcaster constructs a Broadcaster publishing on channel. Each
// instance gets a unique origin id; run one per process.
func NewBroadcaster(registry *Registry, broker store.Broker, channel string, log zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultBrokerChannel
	}
	return &Broadcaster{
		registry: registry,
		broker:   broker,
		channel:  channel,
		origin:   uuid.NewString(),
		log:      log,
	}
}

// Publish delivers the event to all local subscribers of topic and hands it
// to the broker for sibling processes. A broker outage never blocks local
// delivery; it is logged and the event still reaches local sessions.
func (b *Broadcaster) Publish(ctx context.Context, topic Topic, ev Event) {
	b.deliverLocal(topic, ev)

	payload, err := json.Marshal(envelope{Origin: b.origin, Topic: topic.String(), Event: ev})
	if err != nil {
		b.log.Error().Err(err).Str("topic", topic.String()).Msg("marshal broker envelope")
		return
	}
	if err := b.broker.Publish(ctx, b.channel, payload); err != nil {
		b.log.Warn().Err(err).Str("topic", topic.String()).Msg("broker publish failed")
		return
	}
	brokerCounter.WithLabelValues("published").Inc()
}

// Run consumes the broker channel until ctx is cancelled, replaying each
// foreign envelope to local subscribers. Call it in its own goroutine.
func (b *Broadcaster) Run(ctx context.Context) error {
	return b.broker.Subscribe(ctx, b.channel, b.onBrokerMessage)
}

// onBrokerMessage replays exactly the local-delivery half of Publish.
func (b *Broadcaster) onBrokerMessage(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.log.Warn().Err(err).Msg("malformed broker envelope")
		return
	}
	if env.Origin == b.origin {
		return
	}
	topic, err := ParseTopic(env.Topic)
	if err != nil {
		b.log.Warn().Err(err).Msg("broker envelope with invalid topic")
		return
	}
	brokerCounter.WithLabelValues("received").Inc()
	b.deliverLocal(topic, env.Event)
}

// deliverLocal enqueues the event to each subscribed session, isolating
// per-recipient failure: a closed session or full buffer affects only that
// session. Sessions dropped between lookup and enqueue are skipped.
func (b *Broadcaster) deliverLocal(topic Topic, ev Event) {
	for _, sess := range b.registry.LocalSubscribers(topic) {
		if !b.registry.Contains(sess) {
			continue
		}
		if sess.Enqueue(ev) {
			deliveredCounter.WithLabelValues(ev.Name).Inc()
			continue
		}
		droppedCounter.Inc()
		b.log.Debug().
			Str("session_id", sess.ID).
			Str("identity_id", sess.IdentityID).
			Str("event", ev.Name).
			Msg("dropped frame for slow session")
	}
}
