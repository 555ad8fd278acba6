// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the ops stats endpoint. Each function is context-aware and safe to call
// from services or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-bot/internal/domain"
)

// BotStats is a point-in-time snapshot of the bot's data volumes, surfaced
// at GET /ops/stats for quick operational checks.
type BotStats struct {
	Recipes          int64 `json:"recipes"`
	SuggestionsToday int64 `json:"suggestions_today"`
	ProcessedEvents  int64 `json:"processed_events"`
	Receipts         int64 `json:"receipts"`
	Predictions      int64 `json:"predictions"`
	WaitingSessions  int64 `json:"waiting_sessions"`
}

// Stats gathers aggregate counts across the bot tables. day is the current
// civil day key used to scope the suggestions count.
func Stats(ctx context.Context, db *gorm.DB, day string) (*BotStats, error) {
	s := &BotStats{}
	type q struct {
		model any
		dest  *int64
		scope func(*gorm.DB) *gorm.DB
	}
	queries := []q{
		{&domain.Recipe{}, &s.Recipes, nil},
		{&domain.Suggestion{}, &s.SuggestionsToday, func(db *gorm.DB) *gorm.DB { return db.Where("day = ?", day) }},
		{&domain.ProcessedEvent{}, &s.ProcessedEvents, nil},
		{&domain.Receipt{}, &s.Receipts, nil},
		{&domain.Prediction{}, &s.Predictions, nil},
		{&domain.FeedbackSession{}, &s.WaitingSessions, func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", domain.SessionWaiting)
		}},
	}
	for _, it := range queries {
		m := db.WithContext(ctx).Model(it.model)
		if it.scope != nil {
			m = it.scope(m)
		}
		if err := m.Count(it.dest).Error; err != nil {
			return nil, err
		}
	}
	return s, nil
}
