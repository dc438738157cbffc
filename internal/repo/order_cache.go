// Package repo implements the local order cache, backed by GORM. This file
// contains the per-owner partition operations. Each function is context-aware
// and scoped to a single owner unless its name says otherwise.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-laundry-sync/internal/domain"
)

// replaceBatchSize bounds the size of a single INSERT during a partition replace.
const replaceBatchSize = 100

// ReplaceOwnerOrders atomically replaces the cache partition of owner with
// orders. The delete and the inserts run in one transaction, so readers see
// either the old partition or the new one, never a mix. On any error the
// previous partition is kept.
func ReplaceOwnerOrders(ctx context.Context, db *gorm.DB, owner string, orders []domain.Order, now time.Time) error {
	rows := make([]domain.CachedOrder, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, domain.NewCachedOrder(owner, o, now))
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", owner).Delete(&domain.CachedOrder{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, replaceBatchSize).Error
	})
}

// UpsertOwnerOrder inserts or overwrites a single order in owner's partition.
func UpsertOwnerOrder(ctx context.Context, db *gorm.DB, owner string, o domain.Order, now time.Time) error {
	row := domain.NewCachedOrder(owner, o, now)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "order_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

// ListOwnerOrders returns owner's cached orders, newest first.
func ListOwnerOrders(ctx context.Context, db *gorm.DB, owner string) ([]domain.Order, error) {
	var rows []domain.CachedOrder
	err := db.WithContext(ctx).
		Where("owner_id = ?", owner).
		Order("placed_at DESC").
		Order("order_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Order())
	}
	return out, nil
}

// GetOwnerOrder loads one cached order by id. Missing rows yield gorm.ErrRecordNotFound.
func GetOwnerOrder(ctx context.Context, db *gorm.DB, owner, orderID string) (*domain.Order, error) {
	var row domain.CachedOrder
	if err := db.WithContext(ctx).
		Where("owner_id = ? AND order_id = ?", owner, orderID).
		Take(&row).Error; err != nil {
		return nil, err
	}
	o := row.Order()
	return &o, nil
}

// FindCachedByNumber looks an order up by its human-facing number across all
// partitions. It returns (nil, nil) when nothing is cached under that number.
func FindCachedByNumber(ctx context.Context, db *gorm.DB, number string) (*domain.Order, error) {
	var rows []domain.CachedOrder
	if err := db.WithContext(ctx).
		Where("number = ?", number).
		Order("modified_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	o := rows[0].Order()
	return &o, nil
}

// ClearAllOrders wipes every partition.
func ClearAllOrders(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&domain.CachedOrder{}).Error
}
