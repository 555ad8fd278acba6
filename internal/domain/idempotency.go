// Package domain defines the core persistence models for the application.
// This file holds the processed-event record backing webhook deduplication.
package domain

import "time"

// ProcessedEvent is the fingerprint of an inbound platform event that has
// already been accepted for processing. The platform delivers webhooks
// at-least-once; the unique index on Fingerprint turns "record if new" into
// a single atomic INSERT, so concurrent deliveries of the same event yield
// exactly one winner.
//
// Rows are never updated. They expire after the TTL (which must cover the
// platform's retry window) and are purged by the retention job.
type ProcessedEvent struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	Fingerprint string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_event_fingerprint"`
	SenderID    string    `gorm:"type:varchar(32);not null"`
	Intent      string    `gorm:"type:varchar(24)"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedEvent) TableName() string { return "processed_events" }
