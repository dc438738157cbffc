// Package notify delivers "order ready" alerts raised by the status poller.
//
// A Sink is the "deliver local alert" primitive. This package ships a
// zerolog-backed LogSink, an in-memory Outbox drained by the host UI, an
// AMQP fanout publisher, and Multi to combine them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-laundry-sync/internal/status"
)

// Notification is a single user-facing alert.
type Notification struct {
	ID          string        `json:"id"           example:"4b7f5b1e-9a43-4d4c-8f5a-2a1d9d1f6b10"`
	Kind        string        `json:"kind"         example:"order_ready"`
	OrderNumber string        `json:"order_number" example:"LB-1001"`
	Status      status.Status `json:"status"       example:"ready" swaggertype:"string"`
	Label       string        `json:"label"        example:"Ready"`
	Message     string        `json:"message"      example:"Order LB-1001 is ready"`
	At          time.Time     `json:"at"`
}

// Notification kinds.
const (
	KindOrderReady     = "order_ready"
	KindSessionExpired = "session_expired"
)

// OrderReady builds the alert for an order that reached a ready-like status.
func OrderReady(number string, s status.Status, at time.Time) Notification {
	label := status.DisplayLabel(s)
	return Notification{
		ID:          uuid.NewString(),
		Kind:        KindOrderReady,
		OrderNumber: number,
		Status:      s,
		Label:       label,
		Message:     fmt.Sprintf("Order %s is %s", number, label),
		At:          at,
	}
}

// SessionExpired builds the alert shown after a forced logout.
func SessionExpired(at time.Time) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Kind:    KindSessionExpired,
		Message: "Your session expired due to inactivity",
		At:      at,
	}
}

// Sink delivers notifications.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogSink writes notifications to a zerolog logger.
type LogSink struct {
	Logger *zerolog.Logger
}

// Deliver logs n at info level.
func (s LogSink) Deliver(_ context.Context, n Notification) error {
	lg := s.Logger
	if lg == nil {
		l := log.With().Logger()
		lg = &l
	}
	lg.Info().
		Str("notification_id", n.ID).
		Str("kind", n.Kind).
		Str("order_number", n.OrderNumber).
		Str("status", string(n.Status)).
		Msg(n.Message)
	return nil
}

// Multi delivers to every sink and joins their errors.
type Multi []Sink

// Deliver fans n out to all sinks; a failing sink does not stop the others.
func (m Multi) Deliver(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
