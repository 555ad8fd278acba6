// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// FeedbackSession model.
//
// Error semantics:
//   - GetActiveSession returns ErrNotFound when no usable session exists.
//   - On other DB errors the raw gorm error is propagated; the service layer
//     translates where needed.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-bot/internal/domain"
)

// CreateSession opens a waiting feedback session for a sent prediction.
func CreateSession(ctx context.Context, db *gorm.DB, predictionID, userPhone string, expiresAt time.Time) (*domain.FeedbackSession, error) {
	s := &domain.FeedbackSession{
		ID:           uuid.NewString(),
		PredictionID: predictionID,
		UserPhone:    userPhone,
		Status:       domain.SessionWaiting,
		ExpiresAt:    expiresAt.UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetActiveSession returns the user's newest waiting session. When grace is
// positive, sessions that expired up to grace ago still match — a user
// replying "done" shortly after expiry should not be ignored.
func GetActiveSession(ctx context.Context, db *gorm.DB, userPhone string, now time.Time, grace time.Duration) (*domain.FeedbackSession, error) {
	var s domain.FeedbackSession
	err := db.WithContext(ctx).
		Where("user_phone = ? AND status = ? AND expires_at > ?",
			userPhone, domain.SessionWaiting, now.UTC().Add(-grace)).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CloseSession transitions a waiting session to the given terminal status.
// Closing an already-closed session is a no-op (RowsAffected 0, nil error):
// duplicate "done" replies should not flip a cancelled session.
func CloseSession(ctx context.Context, db *gorm.DB, sessionID, status string, now time.Time) error {
	closed := now.UTC()
	return db.WithContext(ctx).
		Model(&domain.FeedbackSession{}).
		Where("id = ? AND status = ?", sessionID, domain.SessionWaiting).
		Updates(map[string]any{"status": status, "closed_at": &closed}).Error
}

// ExpireStaleSessions marks long-expired waiting sessions as expired and
// returns how many were touched. Called by the retention job.
func ExpireStaleSessions(ctx context.Context, db *gorm.DB, now time.Time, grace time.Duration) (int64, error) {
	closed := now.UTC()
	res := db.WithContext(ctx).
		Model(&domain.FeedbackSession{}).
		Where("status = ? AND expires_at <= ?", domain.SessionWaiting, now.UTC().Add(-grace)).
		Updates(map[string]any{"status": domain.SessionExpired, "closed_at": &closed})
	return res.RowsAffected, res.Error
}
