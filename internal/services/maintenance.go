// Package services – maintenance
//
// Retention sweeps run off the request path, wired to the retention_gc job.
// Nothing here is time-critical; rotation and dedup stay correct even if a
// sweep is skipped for days.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-bot/internal/clock"
	"github.com/tbourn/go-recipe-bot/internal/repo"
)

// MaintenanceService owns background cleanup of expired and aged-out rows.
type MaintenanceService struct {
	DB    *gorm.DB
	Clock clock.Clock
	Loc   *time.Location
	Log   zerolog.Logger

	// RetentionDays bounds how long old-day suggestion rows are kept.
	RetentionDays int
}

// RunRetention purges expired event fingerprints, suggestion rows older than
// the retention window, and marks stale feedback sessions expired. Partial
// failures are logged and do not abort the remaining sweeps.
func (m *MaintenanceService) RunRetention(ctx context.Context) error {
	now := m.Clock.Now()

	events, err := repo.PurgeExpiredEvents(ctx, m.DB, now)
	if err != nil {
		m.Log.Error().Err(err).Msg("purge expired events")
	}

	cutoff := clock.DayKey(now.AddDate(0, 0, -m.RetentionDays), m.Loc)
	suggestions, err2 := repo.DeleteSuggestionsBefore(ctx, m.DB, cutoff)
	if err2 != nil {
		m.Log.Error().Err(err2).Msg("purge old suggestions")
	}

	sessions, err3 := repo.ExpireStaleSessions(ctx, m.DB, now, time.Hour)
	if err3 != nil {
		m.Log.Error().Err(err3).Msg("expire stale sessions")
	}

	m.Log.Info().
		Int64("events", events).
		Int64("suggestions", suggestions).
		Int64("sessions", sessions).
		Msg("retention sweep complete")

	if err != nil {
		return err
	}
	if err2 != nil {
		return err2
	}
	return err3
}
