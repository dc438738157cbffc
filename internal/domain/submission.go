package domain

import "time"

// SubmissionKey records the order produced by an idempotent submission,
// keyed by (owner_id, key). A retried submission carrying the same key is
// answered with the recorded order instead of creating a second one.
type SubmissionKey struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	OwnerID     string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_submission_owner_key,priority:1"`
	Key         string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_submission_owner_key,priority:2"`
	OrderID     string    `gorm:"type:varchar(64);not null"`
	OrderNumber string    `gorm:"type:varchar(64)"`
	Status      int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (SubmissionKey) TableName() string { return "submission_keys" }

// Expired reports whether the record is no longer replayable at now.
func (k SubmissionKey) Expired(now time.Time) bool { return !now.Before(k.ExpiresAt) }
