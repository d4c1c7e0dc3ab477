// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package notify pushes operational events to external channels.
//
// The service subscribes on the bus and forwards what an operator cannot
// afford to miss: dead-lettered scrobbles and workers that parked after
// exhausting their restart budget. The config events list widens the
// selection to any bus kind. Delivery failures are logged and counted,
// never retried; the dashboard feed shows the same events either way.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/audiographus/internal/bus"
	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/metrics"
)

// Notice is one outbound notification. Title, message and priority sit at
// the top level so a gotify or ntfy endpoint can consume the body as is;
// the raw event rides along for richer receivers.
type Notice struct {
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Priority int       `json:"priority"`
	Source   string    `json:"source"`
	At       time.Time `json:"timestamp"`
	Event    bus.Event `json:"event"`
}

// Priority values stay within the 1..5 range both gotify and ntfy accept.
const (
	priorityInfo   = 3
	priorityHigh   = 4
	priorityUrgent = 5
)

// Notifier delivers notices to one external channel.
type Notifier interface {
	Name() string

	// Enabled reports whether the notifier can deliver at all. Disabled
	// notifiers are skipped at send time.
	Enabled() bool

	Send(ctx context.Context, notice Notice) error
}

// EventStream is the slice of the bus the notifier consumes.
type EventStream interface {
	Subscribe(ctx context.Context, kinds ...string) (<-chan bus.Event, error)
}

var _ EventStream = (*bus.Bus)(nil)

// Service consumes bus events and fans matching ones out to the
// registered notifiers. It runs under the supervision tree.
type Service struct {
	events    EventStream
	notifiers []Notifier

	kinds     []string
	allStatus bool
}

// New builds the service from config. The webhook notifier is registered
// when it is enabled; Register adds further channels.
func New(events EventStream, cfg config.NotifierConfig) *Service {
	s := &Service{events: events}

	if len(cfg.Webhook.Events) == 0 {
		s.kinds = []string{bus.KindDeadLetter, bus.KindStatusChange}
	} else {
		s.kinds = append([]string(nil), cfg.Webhook.Events...)
		for _, kind := range s.kinds {
			if kind == bus.KindStatusChange {
				s.allStatus = true
			}
		}
	}

	if w := NewWebhook(cfg.Webhook); w.Enabled() {
		s.Register(w)
	}
	return s
}

// Register adds a notifier.
func (s *Service) Register(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

// Active reports whether any registered notifier can deliver. The
// supervisor skips the service entirely when nothing is listening.
func (s *Service) Active() bool {
	for _, n := range s.notifiers {
		if n.Enabled() {
			return true
		}
	}
	return false
}

func (s *Service) String() string { return "notifier" }

// Serve consumes the subscribed kinds until ctx ends or the bus closes.
func (s *Service) Serve(ctx context.Context) error {
	events, err := s.events.Subscribe(ctx, s.kinds...)
	if err != nil {
		return fmt.Errorf("subscribe notifier: %w", err)
	}
	logging.Info().Strs("kinds", s.kinds).Int("notifiers", len(s.notifiers)).Msg("Notifier running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			s.handle(ctx, evt)
		}
	}
}

func (s *Service) handle(ctx context.Context, evt bus.Event) {
	notice, ok := s.notice(evt)
	if !ok {
		return
	}
	for _, n := range s.notifiers {
		if !n.Enabled() {
			continue
		}
		if err := n.Send(ctx, notice); err != nil {
			metrics.NotificationsSent.WithLabelValues(n.Name(), "error").Inc()
			logging.Warn().Err(err).
				Str("notifier", n.Name()).
				Str("event", evt.Type).
				Msg("Notification delivery failed")
			continue
		}
		metrics.NotificationsSent.WithLabelValues(n.Name(), "ok").Inc()
	}
}

// notice lowers a bus event into a Notice. Status changes pass only when
// they report a parked worker, unless the config asked for all of them.
func (s *Service) notice(evt bus.Event) (Notice, bool) {
	n := Notice{
		Priority: priorityInfo,
		Source:   "audiographus",
		At:       evt.At,
		Event:    evt,
	}

	switch evt.Type {
	case bus.KindDeadLetter:
		var data bus.DeadLetterData
		if err := evt.Decode(&data); err != nil {
			logging.Warn().Err(err).Str("event_id", evt.ID).Msg("Dropping undecodable deadLetter event")
			return Notice{}, false
		}
		n.Title = fmt.Sprintf("Scrobble dead-lettered on %s", evt.Name)
		n.Message = fmt.Sprintf("%s (%s)", data.DeadLetter.Play.String(), data.DeadLetter.Error)
		n.Priority = priorityHigh

	case bus.KindStatusChange:
		var data bus.StatusData
		if err := evt.Decode(&data); err != nil {
			logging.Warn().Err(err).Str("event_id", evt.ID).Msg("Dropping undecodable statusChange event")
			return Notice{}, false
		}
		if data.Status != bus.StatusStopped && !s.allStatus {
			return Notice{}, false
		}
		n.Title = fmt.Sprintf("%s %s is %s", evt.From, evt.Name, data.Status)
		n.Message = data.Error
		if data.Status == bus.StatusStopped {
			n.Title = fmt.Sprintf("Scrobble worker %s stopped", evt.Name)
			n.Priority = priorityUrgent
			if n.Message == "" {
				n.Message = "restart budget exhausted"
			}
		}

	default:
		n.Title = fmt.Sprintf("%s event from %s %s", evt.Type, evt.From, evt.Name)
	}

	return n, true
}
