// Staff queue HTTP handlers.
//
//   - GET  /queue          (paged, filterable remote listing sorted for processing)
//   - POST /queue/status   (apply one status to a selection of orders)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/services"
	"github.com/tbourn/go-laundry-sync/internal/status"
)

// QueueResponse is one page of the staff queue.
type QueueResponse struct {
	Orders     []OrderView `json:"orders"`
	Pagination Pagination  `json:"pagination"`
}

// BulkStatusRequest selects orders and the status to apply to all of them.
type BulkStatusRequest struct {
	IDs    []string `json:"order_ids" binding:"required"`
	Status string   `json:"status"    binding:"required" example:"ready"`
}

// BulkStatusResponse is the aggregate outcome of a bulk update.
type BulkStatusResponse struct {
	services.BulkOutcome
	Outcome string `json:"outcome" example:"partial_failure"`
}

// parseDay accepts RFC 3339 timestamps and plain dates.
func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// ListQueue godoc
// @ID          listQueue
// @Summary     List the staff processing queue
// @Description Returns one page of all orders, priority first, then by processing stage,
// @Description then oldest first.
// @Tags        Queue
// @Produce     json
//
// @Param       status     query  string  false  "Canonical status filter"   example(washing)
// @Param       from       query  string  false  "Created at or after (RFC 3339 or YYYY-MM-DD)"
// @Param       to         query  string  false  "Created before (RFC 3339 or YYYY-MM-DD)"
// @Param       q          query  string  false  "Search passed to the order service"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.QueueResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote unavailable"
// @Router      /queue [get]
func (h *Handlers) ListQueue(c *gin.Context) {
	page, pageSize := clampPagination(c)
	f := domain.OrderFilter{
		Status:   status.Status(strings.TrimSpace(c.Query("status"))),
		Search:   strings.TrimSpace(c.Query("q")),
		Page:     page,
		PageSize: pageSize,
	}
	if v := strings.TrimSpace(c.Query("from")); v != "" {
		t, err := parseDay(v)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "from must be RFC 3339 or YYYY-MM-DD")
			return
		}
		f.From = t
	}
	if v := strings.TrimSpace(c.Query("to")); v != "" {
		t, err := parseDay(v)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to must be RFC 3339 or YYYY-MM-DD")
			return
		}
		f.To = t
	}

	res, err := h.orders.Queue(c.Request.Context(), f)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, QueueResponse{
		Orders: newOrderViews(res.Orders),
		Pagination: Pagination{
			Page:       res.Page,
			PageSize:   res.PageSize,
			Total:      res.Total,
			TotalPages: res.TotalPages,
			HasNext:    res.HasNext(),
		},
	})
}

// BulkUpdateStatus godoc
// @ID          bulkUpdateStatus
// @Summary     Apply one status to many orders
// @Description Every selected order is updated concurrently; the response reports how many
// @Description failed and which ids to retry. Failures are not retried automatically.
// @Tags        Queue
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.BulkStatusRequest  true  "Selection and target status"
//
// @Success     200  {object}  handlers.BulkStatusResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status or body"
// @Router      /queue/status [post]
func (h *Handlers) BulkUpdateStatus(c *gin.Context) {
	var req BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order_ids and status required")
		return
	}
	out, err := h.bulk.Apply(c.Request.Context(), req.IDs, status.Status(req.Status))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, BulkStatusResponse{BulkOutcome: out, Outcome: out.Kind()})
}
