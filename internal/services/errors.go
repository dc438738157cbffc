// Package services implements the order synchronization and lifecycle
// engine: the cache-backed order repository, user-initiated order writes,
// per-order status polling, the session inactivity monitor, and bulk status
// updates.
//
// This file centralizes service-level error values so they can be returned
// consistently and mapped to HTTP results by the handler layer. Remote
// failures keep their remote.Err* sentinel in the chain.
package services

import "errors"

// Validation errors.
var (
	// ErrEmptyOwner is returned when an operation needs an owner id and got none.
	ErrEmptyOwner = errors.New("owner id is empty")

	// ErrEmptyOrderNumber is returned when an order number is required but blank.
	ErrEmptyOrderNumber = errors.New("order number is empty")

	// ErrEmptyOrderID is returned when an order id is required but blank.
	ErrEmptyOrderID = errors.New("order id is empty")

	// ErrNoItems is returned when an order is submitted without line items.
	ErrNoItems = errors.New("order has no items")

	// ErrInvalidItem is returned for a line item with a blank name or a
	// non-positive quantity.
	ErrInvalidItem = errors.New("line item needs a name and a positive quantity")

	// ErrInvalidStatus is returned when a target status is not canonical.
	ErrInvalidStatus = errors.New("unknown order status")

	// ErrNoNextStatus is returned when advancing an order that is already
	// terminal or has an unknown status.
	ErrNoNextStatus = errors.New("order cannot advance further")

	// ErrInvalidRating is returned for ratings outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrNotDelivered is returned when rating an order that is not delivered yet.
	ErrNotDelivered = errors.New("only delivered orders can be rated")

	// ErrAlreadyRated is returned when rating an order twice.
	ErrAlreadyRated = errors.New("order already rated")
)

// Lifecycle errors.
var (
	// ErrClosed is returned by components after Close.
	ErrClosed = errors.New("component closed")

	// ErrStaleRefresh reports a refresh whose result was discarded because the
	// cache was wiped while it was in flight.
	ErrStaleRefresh = errors.New("refresh discarded after cache wipe")
)
