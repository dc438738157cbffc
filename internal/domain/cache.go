package domain

import (
	"time"

	"github.com/tbourn/go-laundry-sync/internal/status"
)

// CachedOrder is one row of an owner's cache partition.
//
// The composite primary key (owner_id, order_id) keeps partitions isolated:
// the same order id cached under two owners yields two independent rows.
// PlacedAt/ModifiedAt carry the server timestamps; CachedAt records when the
// row was written locally.
type CachedOrder struct {
	OwnerID      string     `gorm:"type:varchar(64);primaryKey"`
	OrderID      string     `gorm:"type:varchar(64);primaryKey"`
	Number       string     `gorm:"type:varchar(64);index:idx_cached_orders_number"`
	Items        []LineItem `gorm:"type:text;serializer:json"`
	TotalItems   int
	Instructions string `gorm:"type:text"`
	Status       string `gorm:"type:varchar(32)"`
	PlacedAt     time.Time
	ModifiedAt   time.Time
	Rating       *int
	Feedback     string `gorm:"type:text"`
	Priority     bool
	CachedAt     time.Time `gorm:"index:idx_cached_orders_cached_at"`
}

// TableName returns the database table name for CachedOrder.
func (CachedOrder) TableName() string { return "cached_orders" }

// NewCachedOrder builds the cache row for o under owner.
func NewCachedOrder(owner string, o Order, cachedAt time.Time) CachedOrder {
	return CachedOrder{
		OwnerID:      owner,
		OrderID:      o.ID,
		Number:       o.Number,
		Items:        o.Items,
		TotalItems:   o.TotalItems,
		Instructions: o.Instructions,
		Status:       string(o.Status),
		PlacedAt:     o.CreatedAt,
		ModifiedAt:   o.UpdatedAt,
		Rating:       o.Rating,
		Feedback:     o.Feedback,
		Priority:     o.Priority,
		CachedAt:     cachedAt,
	}
}

// Order converts the row back into an Order.
func (c CachedOrder) Order() Order {
	items := c.Items
	if items == nil {
		items = []LineItem{}
	}
	return Order{
		ID:           c.OrderID,
		Number:       c.Number,
		OwnerID:      c.OwnerID,
		Items:        items,
		TotalItems:   c.TotalItems,
		Instructions: c.Instructions,
		Status:       status.Status(c.Status),
		CreatedAt:    c.PlacedAt,
		UpdatedAt:    c.ModifiedAt,
		Rating:       c.Rating,
		Feedback:     c.Feedback,
		Priority:     c.Priority,
	}
}

// CacheMeta stores cache-level settings such as the schema version.
type CacheMeta struct {
	Name  string `gorm:"type:varchar(64);primaryKey"`
	Value string `gorm:"type:varchar(255);not null"`
}

// TableName returns the database table name for CacheMeta.
func (CacheMeta) TableName() string { return "cache_meta" }
