// Tracking HTTP handlers.
//
//   - GET    /tracking/{number}          (tracking record with resolved status)
//   - POST   /tracking/{number}/notify   (toggle notify-when-ready; starts or stops polling)
//   - POST   /tracking/{number}/poll     (start polling)
//   - DELETE /tracking/{number}/poll     (stop polling)
//   - GET    /polling                    (numbers currently polled)
package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/status"
)

// TrackingResponse is a tracking record plus its resolved status.
type TrackingResponse struct {
	Record   *domain.TrackingRecord `json:"tracking"`
	Status   status.Status          `json:"status"       example:"ready" swaggertype:"string"`
	Label    string                 `json:"status_label" example:"Ready"`
	Progress int                    `json:"progress"     example:"90"`
	Polling  bool                   `json:"polling"`
}

// StartPollingRequest optionally overrides the poll interval.
type StartPollingRequest struct {
	// IntervalSeconds <= 0 uses the configured default.
	IntervalSeconds int `json:"interval_seconds,omitempty" example:"900"`
}

// PollingResponse reports the polling state of one order.
type PollingResponse struct {
	OrderNumber string `json:"order_number" example:"LB-1001"`
	Polling     bool   `json:"polling"`
	Started     bool   `json:"started"`
}

// PollingListResponse lists the order numbers being polled.
type PollingListResponse struct {
	Numbers []string `json:"order_numbers"`
}

func (h *Handlers) trackingResponse(number string, rec *domain.TrackingRecord) TrackingResponse {
	st := rec.CurrentStatus(rec.Order)
	return TrackingResponse{
		Record:   rec,
		Status:   st,
		Label:    status.DisplayLabel(st),
		Progress: status.ProgressPercent(st),
		Polling:  h.poller.Active(number),
	}
}

// GetTracking godoc
// @ID          getTracking
// @Summary     Get an order's tracking record
// @Description A record that only references its order is completed from the local cache.
// @Tags        Tracking
// @Produce     json
//
// @Param       number  path  string  true  "Order number"  example(LB-1001)
//
// @Success     200  {object}  handlers.TrackingResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Remote unavailable"
// @Router      /tracking/{number} [get]
func (h *Handlers) GetTracking(c *gin.Context) {
	number := numberParam(c)
	rec, err := h.orders.Tracking(c.Request.Context(), number)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, h.trackingResponse(number, rec))
}

// ToggleNotify godoc
// @ID          toggleNotify
// @Summary     Toggle notify-when-ready for an order
// @Description Flips the flag on the order service. Enabling it starts status polling for
// @Description the order; disabling it stops polling.
// @Tags        Tracking
// @Produce     json
//
// @Param       number  path  string  true  "Order number"
//
// @Success     200  {object}  handlers.TrackingResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Router      /tracking/{number}/notify [post]
func (h *Handlers) ToggleNotify(c *gin.Context) {
	number := numberParam(c)
	rec, err := h.orders.ToggleNotify(c.Request.Context(), number)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	if rec.NotifyWhenReady {
		h.poller.Start(number, 0)
	} else {
		h.poller.Stop(number)
	}
	ok(c, http.StatusOK, h.trackingResponse(number, rec))
}

// StartPolling godoc
// @ID          startPolling
// @Summary     Start polling an order's status
// @Description Idempotent: an order already being polled keeps its existing task.
// @Tags        Tracking
// @Accept      json
// @Produce     json
//
// @Param       number  path  string  true   "Order number"
// @Param       body    body  handlers.StartPollingRequest  false  "Interval override"
//
// @Success     202  {object}  handlers.PollingResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /tracking/{number}/poll [post]
func (h *Handlers) StartPolling(c *gin.Context) {
	number := numberParam(c)
	if number == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order number required")
		return
	}
	var req StartPollingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	started := h.poller.Start(number, time.Duration(req.IntervalSeconds)*time.Second)
	ok(c, http.StatusAccepted, PollingResponse{OrderNumber: number, Polling: h.poller.Active(number), Started: started})
}

// StopPolling godoc
// @ID          stopPolling
// @Summary     Stop polling an order's status
// @Tags        Tracking
//
// @Param       number  path  string  true  "Order number"
//
// @Success     204  "Stopped (or was not polling)"
// @Router      /tracking/{number}/poll [delete]
func (h *Handlers) StopPolling(c *gin.Context) {
	h.poller.Stop(numberParam(c))
	noContent(c)
}

// ListPolling godoc
// @ID          listPolling
// @Summary     List orders being polled
// @Tags        Tracking
// @Produce     json
// @Success     200  {object}  handlers.PollingListResponse
// @Router      /polling [get]
func (h *Handlers) ListPolling(c *gin.Context) {
	nums := append([]string{}, h.poller.Numbers()...)
	sort.Strings(nums)
	ok(c, http.StatusOK, PollingListResponse{Numbers: nums})
}
