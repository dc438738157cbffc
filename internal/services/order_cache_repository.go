// Package services – OrderCacheRepository
//
// OrderCacheRepository is the primary read path for orders. Reads are served
// from the local cache immediately and, when the device is online, a
// background refresh reconciles the owner's partition with the remote source.
//
// Writes to a partition are serialized per owner: a refresh holds the owner
// lock across fetch and replace, so a second refresh for the same owner
// observes the first one's completed write. Different owners refresh
// concurrently. A full wipe (logout) invalidates any refresh that started
// before it, so a slow fetch can never resurrect a wiped cache.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-laundry-sync/internal/domain"
)

// DefaultRefreshTimeout bounds one background refresh (fetch plus write).
const DefaultRefreshTimeout = 45 * time.Second

// OrderCacheRepository reconciles the remote order source with the local cache.
// Construct it with NewOrderCacheRepository.
type OrderCacheRepository struct {
	// Remote is the source of truth.
	Remote OrderFetcher
	// Cache is the local partitioned store; only this repository writes it.
	Cache OrderCache
	// Online reports connectivity. Nil means always online.
	Online func() bool
	// RefreshTimeout bounds background refreshes.
	RefreshTimeout time.Duration
	// Log receives refresh failures.
	Log zerolog.Logger

	locks keyedMutex

	// wipe is held shared by partition writes and exclusively by ClearAll.
	wipe sync.RWMutex
	gen  atomic.Uint64

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewOrderCacheRepository wires a repository over remote and cache.
func NewOrderCacheRepository(remote OrderFetcher, cache OrderCache) *OrderCacheRepository {
	ctx, cancel := context.WithCancel(context.Background())
	return &OrderCacheRepository{
		Remote:         remote,
		Cache:          cache,
		RefreshTimeout: DefaultRefreshTimeout,
		Log:            log.With().Str("component", "orders").Logger(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// GetOrders returns the cached orders of owner, newest first, and triggers a
// background refresh when online. It never fails: a read error is logged and
// yields an empty list. The returned snapshot does not wait for the refresh.
func (r *OrderCacheRepository) GetOrders(ctx context.Context, owner string) []domain.Order {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return []domain.Order{}
	}
	snap := r.Snapshot(ctx, owner)
	r.RefreshAsync(owner)
	return snap
}

// Snapshot reads the cached orders of owner without refreshing.
func (r *OrderCacheRepository) Snapshot(ctx context.Context, owner string) []domain.Order {
	orders, err := r.Cache.ReadAll(ctx, strings.TrimSpace(owner))
	if err != nil {
		r.Log.Error().Err(err).Str("owner", owner).Msg("read cached orders")
		return []domain.Order{}
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders
}

// Refresh fetches owner's orders and atomically replaces the cached
// partition. On failure the cache is left untouched and the error, wrapped
// around its remote.Err* cause, is returned. Nothing is retried.
func (r *OrderCacheRepository) Refresh(ctx context.Context, owner string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return ErrEmptyOwner
	}

	tr := otel.Tracer("services/OrderCacheRepository")
	ctx, span := tr.Start(ctx, "Refresh",
		trace.WithAttributes(attribute.String("owner_id", owner)),
	)
	defer span.End()

	start := time.Now()
	defer func() { cacheRefreshLatency.Observe(time.Since(start).Seconds()) }()

	unlock := r.locks.Lock(owner)
	defer unlock()

	gen := r.gen.Load()
	fetched, err := r.Remote.FetchByOwner(ctx, owner)
	if err != nil {
		return r.refreshFailed(span, owner, "fetch", err)
	}
	orders := r.normalize(owner, fetched)
	span.SetAttributes(attribute.Int("orders", len(orders)))

	r.wipe.RLock()
	defer r.wipe.RUnlock()
	if r.gen.Load() != gen {
		cacheRefreshes.WithLabelValues("stale").Inc()
		r.Log.Debug().Str("owner", owner).Msg("cache wiped during refresh; result discarded")
		return ErrStaleRefresh
	}
	if err := r.Cache.ReplaceAll(ctx, owner, orders); err != nil {
		return r.refreshFailed(span, owner, "write", err)
	}

	cacheRefreshes.WithLabelValues("ok").Inc()
	return nil
}

func (r *OrderCacheRepository) refreshFailed(span trace.Span, owner, stage string, err error) error {
	cacheRefreshes.WithLabelValues("error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	r.Log.Warn().Err(err).Str("owner", owner).Str("stage", stage).
		Msg("order refresh failed; keeping cached orders")
	return fmt.Errorf("refresh orders of %s: %w", owner, err)
}

// normalize stamps missing owners, drops orders without an id, and keeps the
// first occurrence of duplicated ids.
func (r *OrderCacheRepository) normalize(owner string, in []domain.Order) []domain.Order {
	out := make([]domain.Order, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	dropped := 0
	for _, o := range in {
		if strings.TrimSpace(o.ID) == "" {
			dropped++
			continue
		}
		if _, dup := seen[o.ID]; dup {
			dropped++
			continue
		}
		seen[o.ID] = struct{}{}
		if strings.TrimSpace(o.OwnerID) == "" {
			o.OwnerID = owner
		}
		out = append(out, o)
	}
	if dropped > 0 {
		r.Log.Warn().Str("owner", owner).Int("dropped", dropped).Msg("ignored orders without id or duplicated")
	}
	return out
}

// RefreshAsync schedules Refresh on the repository's lifecycle context. It
// reports false when offline or once the repository is closed.
func (r *OrderCacheRepository) RefreshAsync(owner string) bool {
	if !r.online() {
		return false
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.Log.Error().Interface("panic", rec).Str("owner", owner).Msg("background refresh panicked")
			}
		}()

		timeout := r.RefreshTimeout
		if timeout <= 0 {
			timeout = DefaultRefreshTimeout
		}
		ctx, cancel := context.WithTimeout(r.ctx, timeout)
		defer cancel()
		_ = r.Refresh(ctx, owner) // logged by Refresh
	}()
	return true
}

// Upsert writes one order into owner's partition, serialized with refreshes.
// Used after user-initiated writes so the cache reflects them right away.
func (r *OrderCacheRepository) Upsert(ctx context.Context, owner string, o domain.Order) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(o.ID) == "" {
		return ErrEmptyOrderID
	}
	if strings.TrimSpace(o.OwnerID) == "" {
		o.OwnerID = owner
	}

	unlock := r.locks.Lock(owner)
	defer unlock()
	r.wipe.RLock()
	defer r.wipe.RUnlock()
	return r.Cache.Upsert(ctx, owner, o)
}

// ClearAll wipes every partition. Refreshes already in flight discard their
// results instead of writing after the wipe.
func (r *OrderCacheRepository) ClearAll(ctx context.Context) error {
	r.wipe.Lock()
	defer r.wipe.Unlock()
	r.gen.Add(1)
	if err := r.Cache.ClearAll(ctx); err != nil {
		r.Log.Error().Err(err).Msg("clear order cache")
		return err
	}
	r.Log.Info().Msg("order cache cleared")
	return nil
}

// Wait blocks until every background refresh scheduled so far has returned.
func (r *OrderCacheRepository) Wait() { r.wg.Wait() }

// Close refuses new background refreshes, cancels in-flight ones and waits
// for them, or for ctx to end.
func (r *OrderCacheRepository) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *OrderCacheRepository) online() bool {
	return r.Online == nil || r.Online()
}

// keyedMutex hands out one mutex per key, freed when no holder or waiter is left.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// held returns the number of keys currently locked or awaited.
func (k *keyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
