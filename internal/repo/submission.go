// Package repo implements the local order cache, backed by GORM. This file
// provides the submission-key records behind idempotent order submission.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-laundry-sync/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = gorm.ErrRecordNotFound

	// ErrDuplicate indicates that a submission key already exists for the
	// given (owner_id, key) pair.
	ErrDuplicate = errors.New("duplicate")
)

// GetSubmission returns a non-expired record or ErrNotFound.
func GetSubmission(ctx context.Context, db *gorm.DB, owner, key string, now time.Time) (*domain.SubmissionKey, error) {
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.SubmissionKey
	err := db.WithContext(ctx).
		Where("owner_id = ? AND key = ? AND expires_at > ?", owner, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateSubmission records the order produced for (owner, key) and returns
// ErrDuplicate on a unique violation. An expired record under the same key is
// replaced.
func CreateSubmission(ctx context.Context, db *gorm.DB, owner, key string, o domain.Order, status int, ttl time.Duration, now time.Time) (*domain.SubmissionKey, error) {
	rec := &domain.SubmissionKey{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		Key:         key,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Status:      status,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND key = ? AND expires_at <= ?", owner, key, now).
			Delete(&domain.SubmissionKey{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") ||
			strings.Contains(low, "duplicate key value") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredSubmissions deletes records that expired at or before now and
// returns how many were removed.
func PurgeExpiredSubmissions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.SubmissionKey{})
	return res.RowsAffected, res.Error
}
