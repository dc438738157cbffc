// Package services – StatusPoller
//
// StatusPoller runs one background polling task per tracked order number on
// a tasks.Arena. Each tick fetches the tracking record:
//
//   - notify-when-ready turned off: the task stops without notifying;
//   - a ready-like status: one notification is delivered, then the task ends;
//   - anything else, including fetch failures: keep ticking.
//
// Emission happens inside the task's liveness guard, so once Stop returns a
// tick that was already in flight can no longer notify.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/notify"
	"github.com/tbourn/go-laundry-sync/internal/status"
	"github.com/tbourn/go-laundry-sync/internal/tasks"
)

// DefaultPollInterval is the reference tracking poll interval.
const DefaultPollInterval = 15 * time.Minute

// defaultDeliverTimeout bounds one notification delivery.
const defaultDeliverTimeout = 10 * time.Second

// StatusPoller polls tracking records and raises ready notifications.
// Construct it with NewStatusPoller.
type StatusPoller struct {
	// Source fetches tracking records.
	Source TrackingFetcher
	// Sink receives ready notifications.
	Sink notify.Sink
	// Local resolves the cached order when a record lacks an embedded one. Optional.
	Local OrderFinder
	// Interval is used when Start is given a non-positive interval.
	Interval time.Duration
	// Now stamps notifications.
	Now func() time.Time
	// DeliverTimeout bounds one Sink.Deliver call.
	DeliverTimeout time.Duration
	// Log receives tick failures.
	Log zerolog.Logger

	arena *tasks.Arena
}

// watch is the per-task state of one poller. Ticks of a task never overlap.
type watch struct {
	known *domain.Order
}

// NewStatusPoller returns a poller delivering to sink.
func NewStatusPoller(src TrackingFetcher, sink notify.Sink) *StatusPoller {
	return &StatusPoller{
		Source:         src,
		Sink:           sink,
		Interval:       DefaultPollInterval,
		Now:            func() time.Time { return time.Now().UTC() },
		DeliverTimeout: defaultDeliverTimeout,
		Log:            log.With().Str("component", "poller").Logger(),
		arena: tasks.NewArena(tasks.WithExitHook(func(string) {
			pollersActive.Dec()
		})),
	}
}

// Start begins polling number every interval (DefaultPollInterval when
// interval <= 0), first tick immediately. It returns false without creating a
// second task when one is already running for number.
func (p *StatusPoller) Start(number string, interval time.Duration) bool {
	number = strings.TrimSpace(number)
	if number == "" {
		return false
	}
	if interval <= 0 {
		interval = p.Interval
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	w := &watch{}
	started := p.arena.Start(number, interval, func(ctx context.Context, t *tasks.Task) bool {
		return p.tick(ctx, t, w)
	})
	if started {
		pollersActive.Inc()
		p.Log.Info().Str("order_number", number).Dur("interval", interval).Msg("status polling started")
	}
	return started
}

// Stop cancels polling of number. It is idempotent and reports whether a
// live task was stopped. No notification for number is emitted after it returns.
func (p *StatusPoller) Stop(number string) bool {
	number = strings.TrimSpace(number)
	stopped := p.arena.Stop(number)
	if stopped {
		p.Log.Info().Str("order_number", number).Msg("status polling stopped")
	}
	return stopped
}

// Active reports whether number is being polled.
func (p *StatusPoller) Active(number string) bool {
	return p.arena.Running(strings.TrimSpace(number))
}

// Numbers lists the order numbers being polled.
func (p *StatusPoller) Numbers() []string { return p.arena.Names() }

// Len returns the number of live pollers.
func (p *StatusPoller) Len() int { return p.arena.Len() }

// StopAll stops every poller without waiting for in-flight ticks.
func (p *StatusPoller) StopAll() {
	for _, n := range p.arena.Names() {
		p.Stop(n)
	}
}

// Close stops every poller, refuses new ones and waits for their goroutines.
func (p *StatusPoller) Close(ctx context.Context) error {
	return p.arena.Close(ctx)
}

// tick is one poll of t.Name(). It reports whether the task is done.
func (p *StatusPoller) tick(ctx context.Context, t *tasks.Task, w *watch) bool {
	number := t.Name()

	tr := otel.Tracer("services/StatusPoller")
	ctx, span := tr.Start(ctx, "Tick",
		trace.WithAttributes(attribute.String("order_number", number)),
	)
	defer span.End()

	rec, err := p.Source.FetchTracking(ctx, number)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		pollTicks.WithLabelValues("error").Inc()
		span.RecordError(err)
		p.Log.Warn().Err(err).Str("order_number", number).Msg("tracking poll failed; retrying next tick")
		return false
	}

	known := p.remember(ctx, w, number, rec)

	if !rec.NotifyWhenReady {
		t.Guard(func() {
			pollTicks.WithLabelValues("disabled").Inc()
			p.Log.Info().Str("order_number", number).Msg("notify-when-ready off; polling stopped")
		})
		return true
	}

	st := rec.CurrentStatus(known)
	span.SetAttributes(attribute.String("status", string(st)))
	if !status.IsReadyForNotification(st) {
		pollTicks.WithLabelValues("waiting").Inc()
		return false
	}

	t.Guard(func() {
		pollTicks.WithLabelValues("ready").Inc()
		p.deliver(number, st)
	})
	return true
}

// deliver runs under the task guard, detached from the task context so a
// concurrent Stop cannot abort a delivery that already began.
func (p *StatusPoller) deliver(number string, st status.Status) {
	timeout := p.DeliverTimeout
	if timeout <= 0 {
		timeout = defaultDeliverTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n := notify.OrderReady(number, st, p.now())
	if err := p.Sink.Deliver(ctx, n); err != nil {
		notificationsSent.WithLabelValues("failed").Inc()
		p.Log.Error().Err(err).Str("order_number", number).Msg("deliver ready notification")
		return
	}
	notificationsSent.WithLabelValues("delivered").Inc()
}

// remember keeps the last complete order seen by w so later records that
// carry only a reference still resolve a status.
func (p *StatusPoller) remember(ctx context.Context, w *watch, number string, rec *domain.TrackingRecord) *domain.Order {
	if w.known == nil && p.Local != nil {
		if o, err := p.Local.FindByNumber(ctx, number); err == nil && o != nil {
			w.known = o
		}
	}
	if o := rec.ResolveOrder(w.known); o != nil && (o.Number != "" || o.Status != "") {
		w.known = o
	}
	return w.known
}

func (p *StatusPoller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}
