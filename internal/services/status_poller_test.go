package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/notify"
	"github.com/tbourn/go-laundry-sync/internal/remote"
	"github.com/tbourn/go-laundry-sync/internal/status"
)

const fastPoll = 5 * time.Millisecond

func newTestPoller(t *testing.T, src TrackingFetcher, sink notify.Sink) *StatusPoller {
	t.Helper()
	p := NewStatusPoller(src, sink)
	p.Log = quietLogger()
	p.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.Close(ctx); err != nil {
			t.Errorf("poller Close: %v", err)
		}
	})
	return p
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// trackingSequence returns records from seq in order, repeating the last one.
func trackingSequence(calls *atomic.Int32, seq ...func() (*domain.TrackingRecord, error)) *fakeSource {
	return &fakeSource{fetchTracking: func(context.Context, string) (*domain.TrackingRecord, error) {
		i := int(calls.Add(1)) - 1
		if i >= len(seq) {
			i = len(seq) - 1
		}
		return seq[i]()
	}}
}

func record(st status.Status, notifyOn bool) func() (*domain.TrackingRecord, error) {
	return func() (*domain.TrackingRecord, error) {
		return &domain.TrackingRecord{
			OrderNumber:     "LB-1",
			Order:           &domain.Order{ID: "o-1", Number: "LB-1", Status: st},
			NotifyWhenReady: notifyOn,
		}, nil
	}
}

func failing(err error) func() (*domain.TrackingRecord, error) {
	return func() (*domain.TrackingRecord, error) { return nil, err }
}

func TestPoller_StartIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	src := trackingSequence(&calls, record(status.Washing, true))
	p := newTestPoller(t, src, &recordingSink{})

	if !p.Start("LB-1", time.Hour) {
		t.Fatalf("first Start should schedule")
	}
	if p.Start("LB-1", time.Hour) {
		t.Fatalf("second Start must be a no-op")
	}
	if p.Len() != 1 || !p.Active("LB-1") {
		t.Fatalf("expected exactly one live poller, len=%d", p.Len())
	}
	eventually(t, "first tick", func() bool { return calls.Load() == 1 })
	if p.Start(" ", time.Hour) {
		t.Fatalf("blank number must not start")
	}
}

func TestPoller_FailureStatusKeepsPolling(t *testing.T) {
	var calls atomic.Int32
	src := trackingSequence(&calls, record("delivery_failed", true))
	sink := &recordingSink{}
	p := newTestPoller(t, src, sink)

	p.Start("LB-1", fastPoll)
	eventually(t, "several ticks", func() bool { return calls.Load() >= 3 })
	if !p.Active("LB-1") {
		t.Fatalf("a failed delivery must not end tracking")
	}
	if got := sink.all(); len(got) != 0 {
		t.Fatalf("no ready alert expected, got %d", len(got))
	}
}

func TestPoller_NotifiesOnceThenSelfTerminates(t *testing.T) {
	var calls atomic.Int32
	src := trackingSequence(&calls,
		record(status.Washing, true),
		record(status.Folding, true),
		record(status.Ready, true),
	)
	sink := &recordingSink{}
	p := newTestPoller(t, src, sink)

	before := testutil.ToFloat64(pollTicks.WithLabelValues("ready"))
	p.Start("LB-1", fastPoll)
	eventually(t, "self termination", func() bool { return !p.Active("LB-1") })
	time.Sleep(5 * fastPoll)

	got := sink.all()
	if len(got) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(got))
	}
	n := got[0]
	if n.Kind != notify.KindOrderReady || n.OrderNumber != "LB-1" || n.Status != status.Ready || n.Label != "Ready" {
		t.Fatalf("notification = %+v", n)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected no ticks after termination, got %d fetches", calls.Load())
	}
	if d := testutil.ToFloat64(pollTicks.WithLabelValues("ready")) - before; d != 1 {
		t.Fatalf("ready tick metric delta = %v", d)
	}
}

func TestPoller_DeliveredAlsoNotifies(t *testing.T) {
	var calls atomic.Int32
	sink := &recordingSink{}
	p := newTestPoller(t, trackingSequence(&calls, record(status.Delivered, true)), sink)
	p.Start("LB-1", fastPoll)
	eventually(t, "self termination", func() bool { return !p.Active("LB-1") })
	if got := sink.all(); len(got) != 1 || got[0].Status != status.Delivered {
		t.Fatalf("notifications = %+v", got)
	}
}

func TestPoller_NotifyFlagOffStopsSilently(t *testing.T) {
	var calls atomic.Int32
	src := trackingSequence(&calls, record(status.Washing, true), record(status.Ready, false))
	sink := &recordingSink{}
	p := newTestPoller(t, src, sink)

	before := testutil.ToFloat64(pollTicks.WithLabelValues("disabled"))
	p.Start("LB-1", fastPoll)
	eventually(t, "disabled stop", func() bool { return !p.Active("LB-1") })

	if len(sink.all()) != 0 {
		t.Fatalf("flag off must not notify, got %+v", sink.all())
	}
	if d := testutil.ToFloat64(pollTicks.WithLabelValues("disabled")) - before; d != 1 {
		t.Fatalf("disabled tick metric delta = %v", d)
	}
}

func TestPoller_FetchFailuresKeepTicking(t *testing.T) {
	var calls atomic.Int32
	src := trackingSequence(&calls,
		failing(remote.ErrTransient),
		failing(remote.ErrMalformed),
		record(status.Ready, true),
	)
	sink := &recordingSink{}
	p := newTestPoller(t, src, sink)

	before := testutil.ToFloat64(pollTicks.WithLabelValues("error"))
	p.Start("LB-1", fastPoll)
	eventually(t, "recovery and notification", func() bool { return len(sink.all()) == 1 })
	eventually(t, "self termination", func() bool { return !p.Active("LB-1") })

	if d := testutil.ToFloat64(pollTicks.WithLabelValues("error")) - before; d != 2 {
		t.Fatalf("error tick metric delta = %v", d)
	}
}

func TestPoller_StopBeforeReadyEmitsNothing(t *testing.T) {
	var calls atomic.Int32
	sink := &recordingSink{}
	p := newTestPoller(t, trackingSequence(&calls, record(status.Washing, true)), sink)

	p.Start("LB-1", fastPoll)
	eventually(t, "a few ticks", func() bool { return calls.Load() >= 2 })
	if !p.Stop("LB-1") {
		t.Fatalf("Stop should report a live task")
	}
	if p.Stop("LB-1") || p.Stop("never-started") {
		t.Fatalf("Stop must be idempotent")
	}
	n := calls.Load()
	time.Sleep(5 * fastPoll)
	if calls.Load() > n+1 {
		t.Fatalf("ticks continued after Stop: %d -> %d", n, calls.Load())
	}
	if len(sink.all()) != 0 {
		t.Fatalf("no notification expected")
	}
}

func TestPoller_InFlightTickAfterStopDoesNotNotify(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	src := &fakeSource{fetchTracking: func(context.Context, string) (*domain.TrackingRecord, error) {
		close(entered)
		<-release
		return record(status.Ready, true)()
	}}
	sink := &recordingSink{}
	p := newTestPoller(t, src, sink)

	p.Start("LB-1", time.Hour)
	<-entered
	p.Stop("LB-1")
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(sink.all()) != 0 {
		t.Fatalf("stale notification emitted after Stop: %+v", sink.all())
	}
}

func TestPoller_ReferenceOnlyRecordFallsBackToCachedOrder(t *testing.T) {
	cache := newMemCache()
	cache.parts["u1"] = []domain.Order{{ID: "o-7", Number: "LB-7", Status: status.Ready}}
	src := &fakeSource{fetchTracking: func(context.Context, string) (*domain.TrackingRecord, error) {
		return &domain.TrackingRecord{OrderNumber: "LB-7", OrderID: "o-7", NotifyWhenReady: true}, nil
	}}
	sink := &recordingSink{}
	p := newTestPoller(t, src, sink)
	p.Local = cache

	p.Start("LB-7", fastPoll)
	eventually(t, "notification", func() bool { return len(sink.all()) == 1 })
	if got := sink.all()[0]; got.Status != status.Ready || got.OrderNumber != "LB-7" {
		t.Fatalf("notification = %+v", got)
	}
}

func TestPoller_SinkFailureStillTerminates(t *testing.T) {
	var calls atomic.Int32
	sink := &recordingSink{err: errors.New("no channel")}
	p := newTestPoller(t, trackingSequence(&calls, record(status.Ready, true)), sink)

	before := testutil.ToFloat64(notificationsSent.WithLabelValues("failed"))
	p.Start("LB-1", fastPoll)
	eventually(t, "termination", func() bool { return !p.Active("LB-1") })
	if d := testutil.ToFloat64(notificationsSent.WithLabelValues("failed")) - before; d != 1 {
		t.Fatalf("failed notification metric delta = %v", d)
	}
	if calls.Load() != 1 {
		t.Fatalf("failed delivery must not re-poll, got %d fetches", calls.Load())
	}
}

func TestPoller_ActiveGaugeTracksLifecycle(t *testing.T) {
	base := testutil.ToFloat64(pollersActive)
	var calls atomic.Int32
	p := newTestPoller(t, trackingSequence(&calls, record(status.Washing, true)), &recordingSink{})

	p.Start("LB-1", time.Hour)
	p.Start("LB-2", time.Hour)
	if got := testutil.ToFloat64(pollersActive) - base; got != 2 {
		t.Fatalf("gauge delta after start = %v", got)
	}
	p.StopAll()
	eventually(t, "gauge back to baseline", func() bool { return testutil.ToFloat64(pollersActive) == base })
	if p.Len() != 0 {
		t.Fatalf("pollers left after StopAll: %v", p.Numbers())
	}
}
