// Package domain defines the order and tracking models exchanged with the
// remote order service, plus the GORM models backing the local order cache.
package domain

import (
	"sort"
	"time"

	"github.com/tbourn/go-laundry-sync/internal/status"
)

// LineItem is a single garment group within an order.
type LineItem struct {
	Name     string `json:"name"               example:"Shirt"`
	Quantity int    `json:"quantity"           example:"3"`
	Category string `json:"category,omitempty" example:"tops"`
}

// Order is a laundry service request.
//
// Fields:
//   - ID: server-assigned opaque identifier.
//   - Number: human-facing order number used for lookup and tracking (e.g. "LB-1001").
//   - OwnerID: the submitting user; the cache partition key.
//   - Rating/Feedback: meaningful only once Status is delivered. A delivered
//     order with a nil Rating has not been rated yet.
type Order struct {
	ID           string        `json:"id"                             example:"o-100"`
	Number       string        `json:"order_number"                   example:"LB-1001"`
	OwnerID      string        `json:"user_id"                        example:"student-42"`
	Items        []LineItem    `json:"items"`
	TotalItems   int           `json:"total_items"                    example:"5"`
	Instructions string        `json:"special_instructions,omitempty" example:"Cold wash only"`
	Status       status.Status `json:"status"                         example:"pending" swaggertype:"string"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Rating       *int          `json:"rating,omitempty"               example:"5"`
	Feedback     string        `json:"feedback,omitempty"`
	Priority     bool          `json:"priority,omitempty"`
}

// NeedsRating reports whether the order is delivered but not yet rated.
func (o Order) NeedsRating() bool {
	p, _ := status.Parse(string(o.Status))
	return p == status.Delivered && o.Rating == nil
}

// NewOrder is the payload of an order submission. The server assigns id,
// number, status and timestamps.
type NewOrder struct {
	OwnerID      string     `json:"user_id"`
	Items        []LineItem `json:"items"`
	TotalItems   int        `json:"total_items"`
	Instructions string     `json:"special_instructions,omitempty"`
	Priority     bool       `json:"priority,omitempty"`
}

// CountItems sums the quantities of all line items.
func CountItems(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// StatusEvent is one entry of an order's status history.
type StatusEvent struct {
	Status status.Status `json:"status"         swaggertype:"string"`
	At     time.Time     `json:"timestamp"`
	Note   string        `json:"note,omitempty"`
}

// TrackingRecord is a read projection of an order plus its status history and
// the notify-when-ready flag.
//
// The embedded Order may be missing or only partially populated; use
// ResolveOrder to fall back to a previously known Order.
type TrackingRecord struct {
	ID              string        `json:"id,omitempty"`
	OrderNumber     string        `json:"order_number"      example:"LB-1001"`
	OrderID         string        `json:"order_id,omitempty"`
	Order           *Order        `json:"order,omitempty"`
	History         []StatusEvent `json:"status_history"`
	NotifyWhenReady bool          `json:"notify_when_ready"`
}

// orderRef returns the id of the referenced order, if any.
func (r TrackingRecord) orderRef() string {
	if r.OrderID != "" {
		return r.OrderID
	}
	if r.Order != nil {
		return r.Order.ID
	}
	return ""
}

// ResolveOrder returns the embedded order when it carries more than an id
// reference; otherwise it returns known, provided known refers to the same
// order (or the record has no reference at all). The result may be nil.
func (r TrackingRecord) ResolveOrder(known *Order) *Order {
	if r.Order != nil && (r.Order.Number != "" || r.Order.Status != "") {
		return r.Order
	}
	if known != nil {
		if ref := r.orderRef(); ref == "" || ref == known.ID {
			return known
		}
	}
	return r.Order
}

// LatestEvent returns the most recent history entry.
func (r TrackingRecord) LatestEvent() (StatusEvent, bool) {
	if len(r.History) == 0 {
		return StatusEvent{}, false
	}
	ev := make([]StatusEvent, len(r.History))
	copy(ev, r.History)
	sort.SliceStable(ev, func(i, j int) bool { return ev[i].At.Before(ev[j].At) })
	return ev[len(ev)-1], true
}

// CurrentStatus resolves the order status from the embedded order first,
// then the newest history entry, and only then from known (the fallback used
// when the record carries neither). It returns "" when nothing is available.
func (r TrackingRecord) CurrentStatus(known *Order) status.Status {
	if r.Order != nil && r.Order.Status != "" {
		return r.Order.Status
	}
	if ev, ok := r.LatestEvent(); ok && ev.Status != "" {
		return ev.Status
	}
	if o := r.ResolveOrder(known); o != nil {
		return o.Status
	}
	return ""
}

// OrderFilter narrows a staff queue listing.
type OrderFilter struct {
	Status   status.Status
	From     time.Time
	To       time.Time
	Search   string
	Page     int
	PageSize int
}

// OrderPage is one page of a staff queue listing.
type OrderPage struct {
	Orders     []Order `json:"orders"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	Total      int64   `json:"total"`
	TotalPages int     `json:"total_pages"`
}

// HasNext reports whether another page follows.
func (p OrderPage) HasNext() bool { return p.Page < p.TotalPages }
