// Package services – BulkStatusCoordinator
//
// BulkStatusCoordinator applies one target status to a selection of orders.
// Every order gets its own concurrent remote update; completions (success or
// failure) are counted atomically and the aggregate outcome is finalized
// exactly once, by whichever completion brings the count to the total.
// Failures are not retried; FailedIDs lets the caller re-apply the subset.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/status"
)

// Bulk outcome kinds.
const (
	OutcomeAllSucceeded   = "all_succeeded"
	OutcomePartialFailure = "partial_failure"
)

var errBulkPanic = errors.New("status update panicked")

// BulkOutcome is the aggregate result of one Apply.
type BulkOutcome struct {
	Target    status.Status  `json:"target"     swaggertype:"string"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
	FailedIDs []string       `json:"failed_ids"`
	Updated   []domain.Order `json:"updated"`
}

// AllSucceeded reports whether no update failed.
func (o BulkOutcome) AllSucceeded() bool { return o.Failed == 0 }

// PartialFailure returns the failure count and total when any update failed.
func (o BulkOutcome) PartialFailure() (failed, total int, ok bool) {
	return o.Failed, o.Total, o.Failed > 0
}

// Kind names the outcome.
func (o BulkOutcome) Kind() string {
	if o.AllSucceeded() {
		return OutcomeAllSucceeded
	}
	return OutcomePartialFailure
}

// BulkStatusCoordinator fans status updates out and their results in.
type BulkStatusCoordinator struct {
	// Remote performs the individual updates.
	Remote StatusUpdater
	// OnComplete, when set, receives every finalized outcome once.
	OnComplete func(BulkOutcome)
	// Log receives individual failures.
	Log zerolog.Logger
}

// NewBulkStatusCoordinator returns a coordinator over remote.
func NewBulkStatusCoordinator(remote StatusUpdater) *BulkStatusCoordinator {
	return &BulkStatusCoordinator{
		Remote: remote,
		Log:    log.With().Str("component", "bulk_status").Logger(),
	}
}

// bulkRun is the shared state of one Apply.
type bulkRun struct {
	target    status.Status
	total     int32
	completed atomic.Int32
	failed    atomic.Int32

	mu      sync.Mutex
	failIDs []string
	updated []domain.Order

	done    chan BulkOutcome
	onFinal func(BulkOutcome)
}

// complete records one terminated update and finalizes the run when it was
// the last one. Only the completion that reaches total finalizes.
func (r *bulkRun) complete(id string, o *domain.Order, err error) {
	r.mu.Lock()
	if err != nil {
		r.failIDs = append(r.failIDs, id)
	} else if o != nil {
		r.updated = append(r.updated, *o)
	}
	r.mu.Unlock()

	if err != nil {
		r.failed.Add(1)
	}
	if r.completed.Add(1) == r.total {
		r.finalize()
	}
}

func (r *bulkRun) finalize() {
	r.mu.Lock()
	out := BulkOutcome{
		Target:    r.target,
		Total:     int(r.total),
		Completed: int(r.completed.Load()),
		Failed:    int(r.failed.Load()),
		FailedIDs: append([]string{}, r.failIDs...),
		Updated:   append([]domain.Order{}, r.updated...),
	}
	r.mu.Unlock()

	bulkOutcomes.WithLabelValues(out.Kind()).Inc()
	if r.onFinal != nil {
		r.onFinal(out)
	}
	r.done <- out
}

// Apply sets target on every distinct id concurrently and returns the
// aggregate outcome once all updates have terminated. Blank and duplicate ids
// are dropped. An unknown target fails with ErrInvalidStatus before any call.
// Cancelling ctx makes pending updates fail; Apply still waits for them.
func (c *BulkStatusCoordinator) Apply(ctx context.Context, ids []string, target status.Status) (BulkOutcome, error) {
	canon, ok := status.Parse(string(target))
	if !ok {
		return BulkOutcome{}, ErrInvalidStatus
	}
	uniq := dedupeIDs(ids)

	tr := otel.Tracer("services/BulkStatusCoordinator")
	ctx, span := tr.Start(ctx, "Apply",
		trace.WithAttributes(
			attribute.String("status", string(canon)),
			attribute.Int("orders", len(uniq)),
		),
	)
	defer span.End()

	run := &bulkRun{
		target:  canon,
		total:   int32(len(uniq)),
		done:    make(chan BulkOutcome, 1),
		onFinal: c.OnComplete,
	}
	if len(uniq) == 0 {
		run.finalize()
		return <-run.done, nil
	}

	for _, id := range uniq {
		go func(id string) {
			o, err := c.update(ctx, id, canon)
			if err != nil {
				bulkItems.WithLabelValues("failed").Inc()
				c.Log.Warn().Err(err).Str("order_id", id).Str("status", string(canon)).Msg("bulk status update failed")
			} else {
				bulkItems.WithLabelValues("ok").Inc()
			}
			run.complete(id, o, err)
		}(id)
	}

	out := <-run.done
	span.SetAttributes(attribute.Int("failed", out.Failed))
	return out, nil
}

// update performs one remote call, converting a panic into a failure so the
// run still reaches its total.
func (c *BulkStatusCoordinator) update(ctx context.Context, id string, s status.Status) (o *domain.Order, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			c.Log.Error().Interface("panic", rec).Str("order_id", id).Msg("bulk status update panicked")
			o, err = nil, errBulkPanic
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Remote.UpdateStatus(ctx, id, s)
}

func dedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
