// Package repo implements the local order cache, backed by GORM. This file
// provides small aggregate queries used for conditional responses (ETag
// generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-laundry-sync/internal/domain"
)

// OwnerCacheStats returns the number of cached orders for owner and the most
// recent CachedAt among them. When the partition is empty, count is 0 and
// lastCachedAt is nil.
func OwnerCacheStats(ctx context.Context, db *gorm.DB, owner string) (count int64, lastCachedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.CachedOrder{}).Where("owner_id = ?", owner)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest cached_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CachedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.CachedOrder{}).
		Where("owner_id = ?", owner).
		Select("cached_at").Order("cached_at DESC").Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CachedAt, nil
}
