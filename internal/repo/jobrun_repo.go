// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the JobRun
// model used by the scheduler's missed-fire detection.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recipe-bot/internal/domain"
)

// LastJobRunDay returns the civil day a named job last completed on, or ""
// when the job has never run.
func LastJobRunDay(ctx context.Context, db *gorm.DB, name string) (string, error) {
	var jr domain.JobRun
	err := db.WithContext(ctx).Where("name = ?", name).First(&jr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return jr.LastRunDay, nil
}

// RecordJobRun upserts the last-run marker for a named job.
func RecordJobRun(ctx context.Context, db *gorm.DB, name, day string, at time.Time) error {
	jr := &domain.JobRun{
		Name:       name,
		LastRunDay: day,
		LastRunAt:  at.UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_run_day", "last_run_at", "updated_at"}),
	}).Create(jr).Error
}
