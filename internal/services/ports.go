package services

import (
	"context"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/status"
)

// OrderFetcher loads an owner's orders from the source of truth.
type OrderFetcher interface {
	FetchByOwner(ctx context.Context, owner string) ([]domain.Order, error)
}

// TrackingFetcher loads the tracking record of an order.
type TrackingFetcher interface {
	FetchTracking(ctx context.Context, number string) (*domain.TrackingRecord, error)
}

// StatusUpdater changes the status of one order remotely.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, s status.Status) (*domain.Order, error)
}

// OrderSource is the full remote order API. *remote.Client implements it.
type OrderSource interface {
	OrderFetcher
	TrackingFetcher
	StatusUpdater

	// FetchAll returns one page of the staff queue.
	FetchAll(ctx context.Context, f domain.OrderFilter) (domain.OrderPage, error)
	// FetchByNumber looks an order up by its human-facing number.
	FetchByNumber(ctx context.Context, number string) (*domain.Order, error)
	// Create submits a new order; the server assigns id, number and status.
	Create(ctx context.Context, req domain.NewOrder) (*domain.Order, error)
	// ToggleNotify flips the notify-when-ready flag.
	ToggleNotify(ctx context.Context, number string) (*domain.TrackingRecord, error)
	// SubmitRating records a rating for a delivered order.
	SubmitRating(ctx context.Context, orderID string, rating int, feedback string) (*domain.Order, error)
}

// OrderCache is the local per-owner order store. *repo.OrderStore implements it.
// ReplaceAll must be atomic: readers see the old partition or the new one.
type OrderCache interface {
	ReplaceAll(ctx context.Context, owner string, orders []domain.Order) error
	Upsert(ctx context.Context, owner string, o domain.Order) error
	ReadAll(ctx context.Context, owner string) ([]domain.Order, error)
	ClearAll(ctx context.Context) error
}

// OrderFinder resolves a previously cached order by number.
type OrderFinder interface {
	FindByNumber(ctx context.Context, number string) (*domain.Order, error)
}

// SubmissionLog remembers which order a keyed submission produced.
// *repo.SubmissionStore implements it.
type SubmissionLog interface {
	Lookup(ctx context.Context, owner, key string) (*domain.SubmissionKey, error)
	Record(ctx context.Context, owner, key string, o domain.Order) error
}
