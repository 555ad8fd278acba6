// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the processed-event store that gives the
// webhook pipeline its at-most-once guarantee.
//
// The contract is a single atomic check-and-set: RecordEventIfNew inserts the
// fingerprint and reports whether this caller won. The unique index on
// processed_events.fingerprint is the arbiter; no read-then-write races.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStoreUnavailable wraps infrastructure failures of the backing store.
// Callers must treat the duplicate/new question as unanswered when they see
// it, and degrade per their documented policy instead of crashing.
var ErrStoreUnavailable = errors.New("idempotency store unavailable")

// RecordEventIfNew atomically records an event fingerprint and reports
// whether it was new. Exactly one of N concurrent calls with the same
// fingerprint returns true; the rest return false.
//
// An existing-but-expired row counts as unseen: it is deleted and re-inserted
// (expiry means the platform's retry window has long passed).
//
// On infrastructure failure the result is false plus an error wrapping
// ErrStoreUnavailable.
func RecordEventIfNew(ctx context.Context, db *gorm.DB, fingerprint, senderID, intent string, ttl time.Duration, now time.Time) (bool, error) {
	rec := &domain.ProcessedEvent{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		SenderID:    senderID,
		Intent:      intent,
		CreatedAt:   now.UTC(),
		ExpiresAt:   now.UTC().Add(ttl),
	}
	err := db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return true, nil
	}
	if !isUniqueViolation(err) {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Duplicate fingerprint. If the stored row already expired, the retry
	// window is over and this delivery is effectively a new event.
	res := db.WithContext(ctx).
		Where("fingerprint = ? AND expires_at <= ?", fingerprint, now.UTC()).
		Delete(&domain.ProcessedEvent{})
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil // live duplicate
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil // lost the re-insert race
		}
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

// PurgeExpiredEvents deletes fingerprints whose TTL has elapsed and returns
// the number of rows removed. Called by the retention job, never by the
// request path.
func PurgeExpiredEvents(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.ProcessedEvent{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
