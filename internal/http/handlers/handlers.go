// Package handlers: service contracts and wiring.
//
// Handlers are transport-thin: they validate input, call the engine, and
// translate results into HTTP responses. They depend on the small interfaces
// below; the concrete services package types satisfy them.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/notify"
	"github.com/tbourn/go-laundry-sync/internal/services"
	"github.com/tbourn/go-laundry-sync/internal/status"
	"github.com/tbourn/go-laundry-sync/internal/utils"
)

//
// Service contracts (context-aware)
//

// OrderCache is the cache-first read path. *services.OrderCacheRepository
// implements it.
type OrderCache interface {
	// GetOrders returns the cached orders of owner and refreshes in the background.
	GetOrders(ctx context.Context, owner string) []domain.Order
	// Snapshot returns the cached orders of owner without refreshing.
	Snapshot(ctx context.Context, owner string) []domain.Order
	// Refresh synchronously replaces owner's partition with the remote set.
	Refresh(ctx context.Context, owner string) error
	// RefreshAsync schedules a background refresh; false when offline or closed.
	RefreshAsync(owner string) bool
	// ClearAll wipes every partition.
	ClearAll(ctx context.Context) error
}

// CacheStats feeds the order list ETag. *repo.OrderStore implements it.
type CacheStats interface {
	Stats(ctx context.Context, owner string) (int64, *time.Time, error)
}

// OrderService carries the user-initiated order operations.
// *services.OrderService implements it.
type OrderService interface {
	SubmitOnce(ctx context.Context, owner, key string, items []domain.LineItem, instructions string, priority bool) (*domain.Order, bool, error)
	UpdateStatus(ctx context.Context, owner, orderID string, target status.Status) (*domain.Order, error)
	Advance(ctx context.Context, owner, orderID string) (*domain.Order, error)
	Rate(ctx context.Context, owner, orderID string, rating int, feedback string) (*domain.Order, error)
	ToggleNotify(ctx context.Context, number string) (*domain.TrackingRecord, error)
	Tracking(ctx context.Context, number string) (*domain.TrackingRecord, error)
	Queue(ctx context.Context, f domain.OrderFilter) (domain.OrderPage, error)
}

// BulkUpdater applies one status to many orders.
// *services.BulkStatusCoordinator implements it.
type BulkUpdater interface {
	Apply(ctx context.Context, ids []string, target status.Status) (services.BulkOutcome, error)
}

// Poller manages per-order status polling. *services.StatusPoller implements it.
type Poller interface {
	Start(number string, interval time.Duration) bool
	Stop(number string) bool
	Active(number string) bool
	Numbers() []string
}

// Session receives session lifecycle events. *services.SessionMonitor
// implements it.
type Session interface {
	Login()
	Logout()
	RecordActivity()
	Navigate(screen string)
	OnForeground(screen string) bool
	OnBackground()
	State() services.SessionState
}

// Inbox hands pending notifications to the UI. *notify.Outbox implements it.
type Inbox interface {
	Drain() []notify.Notification
}

//
// Handler wiring
//

// Deps lists the collaborators of Handlers. Stats and Inbox are optional.
type Deps struct {
	Cache   OrderCache
	Stats   CacheStats
	Orders  OrderService
	Bulk    BulkUpdater
	Poller  Poller
	Session Session
	Inbox   Inbox
}

// Handlers groups the HTTP endpoints of the host API.
type Handlers struct {
	cache   OrderCache
	stats   CacheStats
	orders  OrderService
	bulk    BulkUpdater
	poller  Poller
	session Session
	inbox   Inbox
}

// New constructs a Handlers instance bound to d.
func New(d Deps) *Handlers {
	return &Handlers{
		cache:   d.Cache,
		stats:   d.Stats,
		orders:  d.Orders,
		bulk:    d.Bulk,
		poller:  d.Poller,
		session: d.Session,
		inbox:   d.Inbox,
	}
}

//
// Shared DTOs and helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), services.DefaultQueuePageSize),
		services.DefaultQueuePageSize,
		services.MaxQueuePageSize,
	)
}

// ownerParam returns the trimmed :owner path parameter.
func ownerParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("owner"))
}

// numberParam returns the trimmed :number path parameter.
func numberParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("number"))
}
