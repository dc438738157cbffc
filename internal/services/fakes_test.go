package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/notify"
	"github.com/tbourn/go-laundry-sync/internal/repo"
	"github.com/tbourn/go-laundry-sync/internal/status"
)

var errNotConfigured = errors.New("fake: not configured")

// ---------- remote source ----------

// fakeSource is an OrderSource whose behavior is set per test through hooks.
type fakeSource struct {
	fetchByOwner  func(ctx context.Context, owner string) ([]domain.Order, error)
	fetchAll      func(ctx context.Context, f domain.OrderFilter) (domain.OrderPage, error)
	fetchByNumber func(ctx context.Context, number string) (*domain.Order, error)
	fetchTracking func(ctx context.Context, number string) (*domain.TrackingRecord, error)
	updateStatus  func(ctx context.Context, id string, s status.Status) (*domain.Order, error)
	create        func(ctx context.Context, req domain.NewOrder) (*domain.Order, error)
	toggleNotify  func(ctx context.Context, number string) (*domain.TrackingRecord, error)
	submitRating  func(ctx context.Context, id string, rating int, feedback string) (*domain.Order, error)
}

func (f *fakeSource) FetchByOwner(ctx context.Context, owner string) ([]domain.Order, error) {
	if f.fetchByOwner == nil {
		return nil, errNotConfigured
	}
	return f.fetchByOwner(ctx, owner)
}

func (f *fakeSource) FetchAll(ctx context.Context, flt domain.OrderFilter) (domain.OrderPage, error) {
	if f.fetchAll == nil {
		return domain.OrderPage{}, errNotConfigured
	}
	return f.fetchAll(ctx, flt)
}

func (f *fakeSource) FetchByNumber(ctx context.Context, number string) (*domain.Order, error) {
	if f.fetchByNumber == nil {
		return nil, errNotConfigured
	}
	return f.fetchByNumber(ctx, number)
}

func (f *fakeSource) FetchTracking(ctx context.Context, number string) (*domain.TrackingRecord, error) {
	if f.fetchTracking == nil {
		return nil, errNotConfigured
	}
	return f.fetchTracking(ctx, number)
}

func (f *fakeSource) UpdateStatus(ctx context.Context, id string, s status.Status) (*domain.Order, error) {
	if f.updateStatus == nil {
		return nil, errNotConfigured
	}
	return f.updateStatus(ctx, id, s)
}

func (f *fakeSource) Create(ctx context.Context, req domain.NewOrder) (*domain.Order, error) {
	if f.create == nil {
		return nil, errNotConfigured
	}
	return f.create(ctx, req)
}

func (f *fakeSource) ToggleNotify(ctx context.Context, number string) (*domain.TrackingRecord, error) {
	if f.toggleNotify == nil {
		return nil, errNotConfigured
	}
	return f.toggleNotify(ctx, number)
}

func (f *fakeSource) SubmitRating(ctx context.Context, id string, rating int, feedback string) (*domain.Order, error) {
	if f.submitRating == nil {
		return nil, errNotConfigured
	}
	return f.submitRating(ctx, id, rating, feedback)
}

// ---------- local cache ----------

// memCache is an in-memory OrderCache with injectable failures.
type memCache struct {
	mu         sync.Mutex
	parts      map[string][]domain.Order
	readErr    error
	replaceErr error
	clearErr   error
	replaces   int
}

func newMemCache() *memCache { return &memCache{parts: map[string][]domain.Order{}} }

func (c *memCache) ReplaceAll(_ context.Context, owner string, orders []domain.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replaceErr != nil {
		return c.replaceErr
	}
	c.replaces++
	c.parts[owner] = append([]domain.Order(nil), orders...)
	return nil
}

func (c *memCache) Upsert(_ context.Context, owner string, o domain.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	part := c.parts[owner]
	for i := range part {
		if part[i].ID == o.ID {
			part[i] = o
			return nil
		}
	}
	c.parts[owner] = append(part, o)
	return nil
}

func (c *memCache) ReadAll(_ context.Context, owner string) ([]domain.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return append([]domain.Order(nil), c.parts[owner]...), nil
}

func (c *memCache) ClearAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clearErr != nil {
		return c.clearErr
	}
	c.parts = map[string][]domain.Order{}
	return nil
}

func (c *memCache) FindByNumber(_ context.Context, number string) (*domain.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, part := range c.parts {
		for _, o := range part {
			if o.Number == number {
				cp := o
				return &cp, nil
			}
		}
	}
	return nil, nil
}

// newStoreDB returns a migrated in-memory cache database.
func newStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// ---------- notifications ----------

// recordingSink collects delivered notifications.
type recordingSink struct {
	mu  sync.Mutex
	got []notify.Notification
	err error
}

func (s *recordingSink) Deliver(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return s.err
}

func (s *recordingSink) all() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Notification(nil), s.got...)
}

// ---------- misc ----------

func quietLogger() zerolog.Logger { return zerolog.Nop() }

func orderIDs(orders []domain.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	sort.Strings(out)
	return out
}
