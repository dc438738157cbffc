// Notification and cache maintenance handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-laundry-sync/internal/notify"
)

// NotificationsResponse carries the drained notifications, oldest first.
type NotificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
}

// DrainNotifications godoc
// @ID          drainNotifications
// @Summary     Take pending notifications
// @Description Returns and removes every pending notification (order ready, session expired).
// @Tags        Notifications
// @Produce     json
// @Success     200  {object}  handlers.NotificationsResponse
// @Router      /notifications [get]
func (h *Handlers) DrainNotifications(c *gin.Context) {
	out := []notify.Notification{}
	if h.inbox != nil {
		out = append(out, h.inbox.Drain()...)
	}
	ok(c, http.StatusOK, NotificationsResponse{Notifications: out})
}

// ClearCache godoc
// @ID          clearCache
// @Summary     Wipe the local order cache
// @Description Removes every cached partition. Refreshes in flight are discarded.
// @Tags        Cache
// @Success     204  "Cleared"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cache [delete]
func (h *Handlers) ClearCache(c *gin.Context) {
	if err := h.cache.ClearAll(c.Request.Context()); err != nil {
		failErr(c, err, ErrCodeCacheFailed)
		return
	}
	noContent(c)
}
