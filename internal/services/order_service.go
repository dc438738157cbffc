// Package services – OrderService
//
// OrderService carries the user-initiated order operations: submission,
// status changes, notify toggling, ratings, lookups and the staff queue.
// Unlike the read path these propagate remote failures so the caller can
// inform the user. Successful writes are mirrored into the owner's cache
// partition through the repository; a failed mirror is logged, not returned,
// since the next refresh repairs it.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/repo"
	"github.com/tbourn/go-laundry-sync/internal/status"
	"github.com/tbourn/go-laundry-sync/internal/utils"
)

// Queue paging bounds.
const (
	DefaultQueuePageSize = 20
	MaxQueuePageSize     = 100
)

// OrderService provides the order write paths and lookups.
type OrderService struct {
	// Remote is the source of truth.
	Remote OrderSource
	// Repo mirrors successful writes into the cache. Optional.
	Repo *OrderCacheRepository
	// Local resolves cached orders by number for tracking fallbacks. Optional.
	Local OrderFinder
	// Submissions makes keyed submissions replayable. Optional.
	Submissions SubmissionLog
	// Log receives non-fatal cache mirror failures.
	Log zerolog.Logger
}

// NewOrderService constructs an OrderService.
func NewOrderService(remote OrderSource, r *OrderCacheRepository, local OrderFinder) *OrderService {
	return &OrderService{
		Remote: remote,
		Repo:   r,
		Local:  local,
		Log:    log.With().Str("component", "order_service").Logger(),
	}
}

// Submit validates and submits a new order for owner. The total item count
// is computed from the line items; the server assigns id, number and status.
func (s *OrderService) Submit(ctx context.Context, owner string, items []domain.LineItem, instructions string, priority bool) (*domain.Order, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	clean, err := normalizeItems(items)
	if err != nil {
		return nil, err
	}

	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("owner_id", owner),
			attribute.Int("items", len(clean)),
		),
	)
	defer span.End()

	req := domain.NewOrder{
		OwnerID:      owner,
		Items:        clean,
		TotalItems:   domain.CountItems(clean),
		Instructions: strings.TrimSpace(instructions),
		Priority:     priority,
	}
	o, err := s.Remote.Create(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Fill what the server left out from the request.
	if o.OwnerID == "" {
		o.OwnerID = owner
	}
	if len(o.Items) == 0 {
		o.Items = req.Items
	}
	if o.TotalItems == 0 {
		o.TotalItems = req.TotalItems
	}
	if o.Instructions == "" {
		o.Instructions = req.Instructions
	}
	if o.Status == "" {
		o.Status = status.Pending
	}
	if !o.Priority {
		o.Priority = req.Priority
	}

	s.mirror(ctx, owner, *o)
	return o, nil
}

// SubmitOnce is Submit guarded by an idempotency key. When key already
// produced an order for owner, that order is returned with replayed=true and
// nothing is created remotely. A blank key or a missing Submissions log
// degrades to a plain Submit.
func (s *OrderService) SubmitOnce(ctx context.Context, owner, key string, items []domain.LineItem, instructions string, priority bool) (o *domain.Order, replayed bool, err error) {
	key = strings.TrimSpace(key)
	owner = strings.TrimSpace(owner)
	if key == "" || s.Submissions == nil {
		o, err = s.Submit(ctx, owner, items, instructions, priority)
		return o, false, err
	}
	if owner == "" {
		return nil, false, ErrEmptyOwner
	}

	rec, err := s.Submissions.Lookup(ctx, owner, key)
	switch {
	case err == nil && rec != nil:
		return s.replay(ctx, owner, rec), true, nil
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		s.Log.Warn().Err(err).Str("owner", owner).Msg("submission key lookup failed")
	}

	o, err = s.Submit(ctx, owner, items, instructions, priority)
	if err != nil {
		return nil, false, err
	}
	if err := s.Submissions.Record(ctx, owner, key, *o); err != nil {
		s.Log.Warn().Err(err).Str("owner", owner).Str("order_id", o.ID).Msg("record submission key")
	}
	return o, false, nil
}

// replay resolves the order recorded by rec: cache first, then the remote by
// number, and finally the bare reference.
func (s *OrderService) replay(ctx context.Context, owner string, rec *domain.SubmissionKey) *domain.Order {
	if o := s.cached(ctx, owner, rec.OrderID); o != nil {
		return o
	}
	if rec.OrderNumber != "" {
		if o, err := s.Remote.FetchByNumber(ctx, rec.OrderNumber); err == nil && o != nil {
			return o
		}
	}
	return &domain.Order{ID: rec.OrderID, Number: rec.OrderNumber, OwnerID: owner, Items: []domain.LineItem{}}
}

func normalizeItems(items []domain.LineItem) ([]domain.LineItem, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		it.Category = strings.TrimSpace(it.Category)
		if it.Name == "" || it.Quantity <= 0 {
			return nil, ErrInvalidItem
		}
		out = append(out, it)
	}
	return out, nil
}

// UpdateStatus sets a canonical status on an order of owner.
func (s *OrderService) UpdateStatus(ctx context.Context, owner, orderID string, target status.Status) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrEmptyOrderID
	}
	canon, ok := status.Parse(string(target))
	if !ok {
		return nil, ErrInvalidStatus
	}

	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.String("order_id", orderID),
			attribute.String("status", string(canon)),
		),
	)
	defer span.End()

	o, err := s.Remote.UpdateStatus(ctx, orderID, canon)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if o.Status == "" {
		o.Status = canon
	}
	if owner = strings.TrimSpace(owner); owner != "" {
		s.mirror(ctx, owner, *o)
	}
	return o, nil
}

// Advance moves an order one step along the progression. The current status
// is taken from the owner's cache, falling back to a remote lookup by number.
func (s *OrderService) Advance(ctx context.Context, owner, orderID string) (*domain.Order, error) {
	cur, err := s.current(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}
	next, ok := status.Next(cur.Status)
	if !ok {
		return nil, ErrNoNextStatus
	}
	return s.UpdateStatus(ctx, owner, cur.ID, next)
}

// ToggleNotify flips the notify-when-ready flag of an order.
func (s *OrderService) ToggleNotify(ctx context.Context, number string) (*domain.TrackingRecord, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrEmptyOrderNumber
	}
	return s.Remote.ToggleNotify(ctx, number)
}

// Rate records a 1..5 rating with optional feedback on a delivered order.
// When the order is cached, rating a non-delivered or already rated order is
// rejected locally; otherwise the server decides.
func (s *OrderService) Rate(ctx context.Context, owner, orderID string, rating int, feedback string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrEmptyOrderID
	}
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	if cached := s.cached(ctx, owner, orderID); cached != nil {
		if st, _ := status.Parse(string(cached.Status)); st != status.Delivered {
			return nil, ErrNotDelivered
		}
		if cached.Rating != nil {
			return nil, ErrAlreadyRated
		}
	}

	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Rate",
		trace.WithAttributes(
			attribute.String("order_id", orderID),
			attribute.Int("rating", rating),
		),
	)
	defer span.End()

	o, err := s.Remote.SubmitRating(ctx, orderID, rating, strings.TrimSpace(feedback))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if o.Rating == nil {
		o.Rating = &rating
	}
	if owner = strings.TrimSpace(owner); owner != "" {
		s.mirror(ctx, owner, *o)
	}
	return o, nil
}

// Lookup fetches an order by its human-facing number.
func (s *OrderService) Lookup(ctx context.Context, number string) (*domain.Order, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrEmptyOrderNumber
	}
	return s.Remote.FetchByNumber(ctx, number)
}

// Tracking fetches the tracking record of an order and resolves its order
// against the local cache when the record embeds only a reference.
func (s *OrderService) Tracking(ctx context.Context, number string) (*domain.TrackingRecord, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrEmptyOrderNumber
	}
	rec, err := s.Remote.FetchTracking(ctx, number)
	if err != nil {
		return nil, err
	}
	var known *domain.Order
	if s.Local != nil {
		known, _ = s.Local.FindByNumber(ctx, number)
	}
	rec.Order = rec.ResolveOrder(known)
	return rec, nil
}

// Queue returns one page of the staff queue, priority orders first, then by
// progression stage, then oldest first.
func (s *OrderService) Queue(ctx context.Context, f domain.OrderFilter) (domain.OrderPage, error) {
	if f.Status != "" {
		canon, ok := status.Parse(string(f.Status))
		if !ok {
			return domain.OrderPage{}, ErrInvalidStatus
		}
		f.Status = canon
	}
	f.Page, f.PageSize = utils.ClampPage(f.Page, f.PageSize, DefaultQueuePageSize, MaxQueuePageSize)

	page, err := s.Remote.FetchAll(ctx, f)
	if err != nil {
		return domain.OrderPage{}, err
	}
	SortQueue(page.Orders)
	return page, nil
}

// SortQueue orders a staff queue in place.
func SortQueue(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if a.Priority != b.Priority {
			return a.Priority
		}
		if ra, rb := status.QueueRank(a.Status), status.QueueRank(b.Status); ra != rb {
			return ra < rb
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// current resolves the order to advance: cached first, then the remote by
// number (orderID doubling as a number for callers that only know that).
func (s *OrderService) current(ctx context.Context, owner, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrEmptyOrderID
	}
	if o := s.cached(ctx, owner, orderID); o != nil {
		return o, nil
	}
	return s.Remote.FetchByNumber(ctx, orderID)
}

// cached returns the cached order of owner with the given id or number.
func (s *OrderService) cached(ctx context.Context, owner, orderID string) *domain.Order {
	owner = strings.TrimSpace(owner)
	if s.Repo == nil || owner == "" {
		return nil
	}
	for _, o := range s.Repo.Snapshot(ctx, owner) {
		if o.ID == orderID || o.Number == orderID {
			cp := o
			return &cp
		}
	}
	return nil
}

// mirror upserts o into owner's partition. A partial server response (no
// number) is merged onto the cached copy so the row keeps its other fields.
func (s *OrderService) mirror(ctx context.Context, owner string, o domain.Order) {
	if s.Repo == nil {
		return
	}
	if o.Number == "" {
		if c := s.cached(ctx, owner, o.ID); c != nil {
			merged := *c
			merged.Status = o.Status
			if o.Rating != nil {
				merged.Rating = o.Rating
				merged.Feedback = o.Feedback
			}
			if !o.UpdatedAt.IsZero() {
				merged.UpdatedAt = o.UpdatedAt
			}
			o = merged
		}
	}
	if err := s.Repo.Upsert(ctx, owner, o); err != nil {
		s.Log.Warn().Err(err).Str("owner", owner).Str("order_id", o.ID).Msg("mirror order into cache")
	}
}
