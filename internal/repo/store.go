package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-laundry-sync/internal/domain"
)

// OrderStore binds the partition functions to a database handle so callers
// can depend on a small interface instead of *gorm.DB.
type OrderStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewOrderStore returns an OrderStore stamping rows with the wall clock (UTC).
func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *OrderStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// ReplaceAll proxies ReplaceOwnerOrders.
func (s *OrderStore) ReplaceAll(ctx context.Context, owner string, orders []domain.Order) error {
	return ReplaceOwnerOrders(ctx, s.DB, owner, orders, s.now())
}

// Upsert proxies UpsertOwnerOrder.
func (s *OrderStore) Upsert(ctx context.Context, owner string, o domain.Order) error {
	return UpsertOwnerOrder(ctx, s.DB, owner, o, s.now())
}

// ReadAll proxies ListOwnerOrders.
func (s *OrderStore) ReadAll(ctx context.Context, owner string) ([]domain.Order, error) {
	return ListOwnerOrders(ctx, s.DB, owner)
}

// Get proxies GetOwnerOrder.
func (s *OrderStore) Get(ctx context.Context, owner, orderID string) (*domain.Order, error) {
	return GetOwnerOrder(ctx, s.DB, owner, orderID)
}

// FindByNumber proxies FindCachedByNumber.
func (s *OrderStore) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return FindCachedByNumber(ctx, s.DB, number)
}

// ClearAll proxies ClearAllOrders.
func (s *OrderStore) ClearAll(ctx context.Context) error {
	return ClearAllOrders(ctx, s.DB)
}

// Stats proxies OwnerCacheStats.
func (s *OrderStore) Stats(ctx context.Context, owner string) (int64, *time.Time, error) {
	return OwnerCacheStats(ctx, s.DB, owner)
}

const (
	// DefaultSubmissionTTL is how long a submission key stays replayable.
	DefaultSubmissionTTL = 24 * time.Hour
	// submittedStatus is the HTTP status recorded for a replayable submission.
	submittedStatus = 201
)

// SubmissionStore binds the submission-key functions to a database handle.
type SubmissionStore struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time
}

// NewSubmissionStore returns a SubmissionStore using DefaultSubmissionTTL.
func NewSubmissionStore(db *gorm.DB) *SubmissionStore {
	return &SubmissionStore{DB: db, TTL: DefaultSubmissionTTL}
}

func (s *SubmissionStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Lookup returns the live record for (owner, key) or ErrNotFound.
func (s *SubmissionStore) Lookup(ctx context.Context, owner, key string) (*domain.SubmissionKey, error) {
	return GetSubmission(ctx, s.DB, owner, key, s.now())
}

// Record stores the order created for (owner, key).
func (s *SubmissionStore) Record(ctx context.Context, owner, key string, o domain.Order) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultSubmissionTTL
	}
	_, err := CreateSubmission(ctx, s.DB, owner, key, o, submittedStatus, ttl, s.now())
	return err
}

// Purge removes expired records.
func (s *SubmissionStore) Purge(ctx context.Context) (int64, error) {
	return PurgeExpiredSubmissions(ctx, s.DB, s.now())
}
