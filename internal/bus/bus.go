// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package bus is the in-process event bus connecting sources to clients.
//
// Sources and clients never hold references to each other; both publish to
// and subscribe on the bus, which the supervisor owns. Events travel as
// JSON envelopes, so every subscriber decodes its own copy and mutations
// never leak between components. Delivery order from a single publisher is
// preserved per event kind; cross-publisher ordering is not guaranteed.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/models"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("bus: closed")

// Event kinds published on the bus.
const (
	// KindNewPlay fires when a source discovers a play it has not seen.
	KindNewPlay = "newPlay"
	// KindScrobble fires after a client successfully scrobbles a play.
	KindScrobble = "scrobble"
	// KindScrobbleQueued fires when a client accepts a play into its queue.
	KindScrobbleQueued = "scrobbleQueued"
	// KindScrobbleDequeued fires when a client removes a play from its queue
	// without scrobbling it (duplicate, out of timeframe, manual removal).
	KindScrobbleDequeued = "scrobbleDequeued"
	// KindDeadLetter fires when a scrobble moves to a client's dead-letter list.
	KindDeadLetter = "deadLetter"
	// KindStatusChange fires on component lifecycle transitions.
	KindStatusChange = "statusChange"
	// KindNowPlaying fires when a push source reports an in-flight listen.
	KindNowPlaying = "nowPlaying"
)

// Kinds lists every event kind, for subscribers that want the full feed.
var Kinds = []string{
	KindNewPlay,
	KindScrobble,
	KindScrobbleQueued,
	KindScrobbleDequeued,
	KindDeadLetter,
	KindStatusChange,
	KindNowPlaying,
}

// Component origins carried in Event.From.
const (
	FromSource = "source"
	FromClient = "client"
)

// Event is the envelope every bus message travels in.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Name string    `json:"name"`
	From string    `json:"from"`
	At   time.Time `json:"at"`

	// Data is the kind-specific payload, decoded with Decode.
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// PlayData is the payload of newPlay and nowPlaying events.
type PlayData struct {
	Play models.Play `json:"play"`
}

// ScrobbleData is the payload of scrobble events.
type ScrobbleData struct {
	Scrobbled models.ScrobbledPlay `json:"scrobbled"`
}

// QueuedData is the payload of scrobbleQueued and scrobbleDequeued events.
type QueuedData struct {
	Queued models.QueuedScrobble `json:"queued"`

	// Reason is set on dequeue: "duplicate", "timeframe", "transform",
	// "removed".
	Reason string `json:"reason,omitempty"`
}

// DeadLetterData is the payload of deadLetter events.
type DeadLetterData struct {
	DeadLetter models.DeadLetterScrobble `json:"deadLetter"`
}

// StatusData is the payload of statusChange events.
type StatusData struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatusStopped is the StatusData.Status a worker publishes when it parks
// itself after exhausting its restart budget. It is not a lifecycle state;
// the state machine keeps its last state while the worker stays down.
const StatusStopped = "STOPPED"

// Bus is a typed pub/sub over an in-memory channel transport, one topic
// per event kind.
type Bus struct {
	ch     *gochannel.GoChannel
	mu     sync.Mutex
	closed bool
}

// New creates a Bus. The transport logs through the shared zerolog sink.
func New() *Bus {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)
	return &Bus{ch: ch}
}

// Publish emits an event of the given kind. The payload is serialized
// immediately, so later mutations by the publisher are not observable.
func (b *Bus) Publish(kind, name, from string, payload interface{}) error {
	evt := Event{
		ID:   uuid.New().String(),
		Type: kind,
		Name: name,
		From: from,
		At:   time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		evt.Data = data
	}

	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return b.ch.Publish(topic(kind), message.NewMessage(evt.ID, raw))
}

// Subscribe returns a channel of events for the requested kinds. The
// channel closes when ctx is cancelled or the bus is closed. Slow
// subscribers buffer up to the transport's channel size and then apply
// backpressure on their own feed only.
func (b *Bus) Subscribe(ctx context.Context, kinds ...string) (<-chan Event, error) {
	if len(kinds) == 0 {
		kinds = Kinds
	}

	out := make(chan Event, 64)
	var wg sync.WaitGroup

	for _, kind := range kinds {
		msgs, err := b.ch.Subscribe(ctx, topic(kind))
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", kind, err)
		}

		wg.Add(1)
		go func(msgs <-chan *message.Message) {
			defer wg.Done()
			for msg := range msgs {
				var evt Event
				if err := json.Unmarshal(msg.Payload, &evt); err != nil {
					logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable bus event")
					msg.Ack()
					continue
				}
				select {
				case out <- evt:
					msg.Ack()
				case <-ctx.Done():
					msg.Nack()
					return
				}
			}
		}(msgs)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// Close shuts the transport down. Subscriber channels drain and close.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.ch.Close()
}

func topic(kind string) string {
	return "events." + kind
}
