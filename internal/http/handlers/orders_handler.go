// Order HTTP handlers.
//
// This file exposes the owner-scoped order endpoints:
//   - GET  /owners/{owner}/orders                  (cache-first list, ETag, ?q= search)
//   - POST /owners/{owner}/orders/refresh          (synchronous refresh)
//   - POST /owners/{owner}/orders                  (submit, Idempotency-Key aware)
//   - PUT  /owners/{owner}/orders/{id}/status      (set status)
//   - POST /owners/{owner}/orders/{id}/advance     (next status)
//   - POST /owners/{owner}/orders/{id}/rating      (rate a delivered order)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/http/middleware"
	"github.com/tbourn/go-laundry-sync/internal/search"
	"github.com/tbourn/go-laundry-sync/internal/status"
)

//
// DTOs
//

// OrderView is an order plus the presentation fields derived from its status.
type OrderView struct {
	domain.Order
	Label       string `json:"status_label"    example:"Washing"`
	Progress    int    `json:"progress"        example:"45"`
	Color       string `json:"status_color"    example:"#0288D1"`
	NeedsRating bool   `json:"needs_rating"`
}

// newOrderView decorates o.
func newOrderView(o domain.Order) OrderView {
	return OrderView{
		Order:       o,
		Label:       status.DisplayLabel(o.Status),
		Progress:    status.ProgressPercent(o.Status),
		Color:       status.Color(o.Status),
		NeedsRating: o.NeedsRating(),
	}
}

func newOrderViews(orders []domain.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderView(o))
	}
	return out
}

// ListOrdersResponse is the cached order list of one owner.
type ListOrdersResponse struct {
	Orders []OrderView `json:"orders"`
	Count  int         `json:"count" example:"2"`
}

// SubmitOrderRequest is the JSON payload of an order submission.
type SubmitOrderRequest struct {
	Items        []domain.LineItem `json:"items"                          binding:"required,min=1"`
	Instructions string            `json:"special_instructions,omitempty" example:"Cold wash only"`
	Priority     bool              `json:"priority,omitempty"`
}

// UpdateStatusRequest is the JSON payload for setting an order status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required" example:"ready"`
}

// RateOrderRequest is the JSON payload for rating a delivered order.
type RateOrderRequest struct {
	Rating   int    `json:"rating"             binding:"required,min=1,max=5" example:"5"`
	Feedback string `json:"feedback,omitempty" example:"Crisp and on time"`
}

//
// Handlers
//

// ListOrders godoc
// @ID          listOrders
// @Summary     List an owner's orders (cache-first)
// @Description Returns the locally cached orders immediately and refreshes them from the
// @Description remote service in the background. Supports a weak ETag via If-None-Match
// @Description and an optional ?q= filter over order number, items, instructions and status.
// @Tags        Orders
// @Produce     json
//
// @Param       owner  path   string  true   "Owner (user) ID"  example(student-42)
// @Param       q      query  string  false  "Search query"     example(towel)
//
// @Success     200  {object}  handlers.ListOrdersResponse
// @Success     304  "Not modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /owners/{owner}/orders [get]
func (h *Handlers) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()
	owner := ownerParam(c)
	if owner == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "owner id required")
		return
	}
	q := strings.TrimSpace(c.Query("q"))

	// ETag pre-check (best effort). A match still schedules a refresh when online.
	if h.stats != nil && q == "" {
		if count, last, err := h.stats.Stats(ctx, owner); err == nil {
			var ts int64
			if last != nil {
				ts = last.UnixNano()
			}
			etag := fmt.Sprintf(`W/"orders:%s:%d:%d"`, owner, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				h.cache.RefreshAsync(owner)
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	orders := h.cache.GetOrders(ctx, owner)
	if q != "" {
		orders = search.Filter(orders, q)
	}
	ok(c, http.StatusOK, ListOrdersResponse{Orders: newOrderViews(orders), Count: len(orders)})
}

// RefreshOrders godoc
// @ID          refreshOrders
// @Summary     Refresh an owner's cached orders now
// @Description Fetches the owner's orders from the remote service and replaces the cache
// @Description partition. On failure the previous cache is kept and the error is returned.
// @Tags        Orders
// @Produce     json
//
// @Param       owner  path  string  true  "Owner (user) ID"
//
// @Success     200  {object}  handlers.ListOrdersResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Cache wiped during refresh"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote unavailable"
// @Router      /owners/{owner}/orders/refresh [post]
func (h *Handlers) RefreshOrders(c *gin.Context) {
	ctx := c.Request.Context()
	owner := ownerParam(c)
	if owner == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "owner id required")
		return
	}
	if err := h.cache.Refresh(ctx, owner); err != nil {
		failErr(c, err, ErrCodeRefreshFailed)
		return
	}
	orders := h.cache.Snapshot(ctx, owner)
	ok(c, http.StatusOK, ListOrdersResponse{Orders: newOrderViews(orders), Count: len(orders)})
}

// SubmitOrder godoc
// @ID          submitOrder
// @Summary     Submit a new order
// @Description Validates the line items, submits the order and mirrors it into the cache.
// @Description A repeated Idempotency-Key returns the originally created order with
// @Description `Idempotency-Replayed: true` instead of creating a second one.
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       owner            path    string  true   "Owner (user) ID"
// @Param       Idempotency-Key  header  string  false  "Key for safe retries (UUID recommended)"
// @Param       body             body    handlers.SubmitOrderRequest  true  "Order payload"
//
// @Success     201  {object}  handlers.OrderView      "Created"
// @Success     200  {object}  handlers.OrderView      "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Rejected by the order service"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote unavailable"
// @Router      /owners/{owner}/orders [post]
func (h *Handlers) SubmitOrder(c *gin.Context) {
	owner := ownerParam(c)
	if owner == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "owner id required")
		return
	}
	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "at least one item required")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	o, replayed, err := h.orders.SubmitOnce(c.Request.Context(), owner, key, req.Items, req.Instructions, req.Priority)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	if replayed {
		c.Header(middleware.HeaderReplayed, "true")
		ok(c, http.StatusOK, newOrderView(*o))
		return
	}
	ok(c, http.StatusCreated, newOrderView(*o))
}

// UpdateOrderStatus godoc
// @ID          updateOrderStatus
// @Summary     Set an order's status
// @Description Accepts canonical status values only (pending, received, washing, drying,
// @Description folding, ready, delivered, cancelled).
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       owner  path  string  true  "Owner (user) ID"
// @Param       id     path  string  true  "Order ID"
// @Param       body   body  handlers.UpdateStatusRequest  true  "Target status"
//
// @Success     200  {object}  handlers.OrderView
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote unavailable"
// @Router      /owners/{owner}/orders/{id}/status [put]
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), ownerParam(c), c.Param("id"), status.Status(req.Status))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, newOrderView(*o))
}

// AdvanceOrder godoc
// @ID          advanceOrder
// @Summary     Move an order to its next status
// @Tags        Orders
// @Produce     json
//
// @Param       owner  path  string  true  "Owner (user) ID"
// @Param       id     path  string  true  "Order ID or number"
//
// @Success     200  {object}  handlers.OrderView
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Order is terminal"
// @Router      /owners/{owner}/orders/{id}/advance [post]
func (h *Handlers) AdvanceOrder(c *gin.Context) {
	o, err := h.orders.Advance(c.Request.Context(), ownerParam(c), c.Param("id"))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, newOrderView(*o))
}

// RateOrder godoc
// @ID          rateOrder
// @Summary     Rate a delivered order
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       owner  path  string  true  "Owner (user) ID"
// @Param       id     path  string  true  "Order ID"
// @Param       body   body  handlers.RateOrderRequest  true  "Rating payload"
//
// @Success     200  {object}  handlers.OrderView
// @Failure     400  {object}  handlers.ErrorResponse  "Rating out of range"
// @Failure     409  {object}  handlers.ErrorResponse  "Not delivered or already rated"
// @Router      /owners/{owner}/orders/{id}/rating [post]
func (h *Handlers) RateOrder(c *gin.Context) {
	var req RateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "rating must be between 1 and 5")
		return
	}
	o, err := h.orders.Rate(c.Request.Context(), ownerParam(c), c.Param("id"), req.Rating, req.Feedback)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, newOrderView(*o))
}
