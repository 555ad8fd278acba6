// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Suggestion
// model: the per-(recipient, day) set of recipes already shown.
//
// Concurrency contract: RecordSuggestion relies on the unique index over
// (recipient_id, day, recipe_id). Two concurrent rotations that pick the same
// recipe race at the INSERT and exactly one succeeds; the loser gets
// ErrAlreadySuggested and re-selects from a fresh snapshot. The shown set
// therefore only grows within a day and never double-records an item.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-bot/internal/domain"
)

// ErrAlreadySuggested indicates the (recipient, day, recipe) row already
// exists — another caller recorded the same pick first.
var ErrAlreadySuggested = errors.New("recipe already suggested today")

// ListShownRecipeIDs returns the IDs of every recipe already suggested to
// the recipient on the given civil day.
func ListShownRecipeIDs(ctx context.Context, db *gorm.DB, recipientID, day string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Suggestion{}).
		Where("recipient_id = ? AND day = ?", recipientID, day).
		Pluck("recipe_id", &ids).Error
	return ids, err
}

// RecordSuggestion inserts a shown-set entry. Returns ErrAlreadySuggested on
// a unique-index collision; other DB errors are propagated raw.
func RecordSuggestion(ctx context.Context, db *gorm.DB, recipientID, day, recipeID string) error {
	s := &domain.Suggestion{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Day:         day,
		RecipeID:    recipeID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadySuggested
		}
		return err
	}
	return nil
}

// CountSuggestions returns the shown-set size for (recipient, day).
func CountSuggestions(ctx context.Context, db *gorm.DB, recipientID, day string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Suggestion{}).
		Where("recipient_id = ? AND day = ?", recipientID, day).
		Count(&n).Error
	return n, err
}

// DeleteSuggestionsForDay clears all shown-set rows for a civil day across
// recipients. Used by the midnight reset job.
func DeleteSuggestionsForDay(ctx context.Context, db *gorm.DB, day string) (int64, error) {
	res := db.WithContext(ctx).Where("day = ?", day).Delete(&domain.Suggestion{})
	return res.RowsAffected, res.Error
}

// DeleteSuggestionsBefore removes shown-set rows older than the cutoff day
// (exclusive). Day keys sort lexicographically, so string comparison is
// correct. Used by the retention job.
func DeleteSuggestionsBefore(ctx context.Context, db *gorm.DB, cutoffDay string) (int64, error) {
	res := db.WithContext(ctx).Where("day < ?", cutoffDay).Delete(&domain.Suggestion{})
	return res.RowsAffected, res.Error
}
