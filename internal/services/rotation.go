// Package services – RotationService
//
// This file implements the non-repeating recipe selection at the heart of
// the bot. Given the candidate pool and the recipient's shown set for the
// current civil day, it picks one unseen recipe at random, records it, and
// reports exhaustion when nothing is left.
//
// Concurrency: the pick is optimistic. The shown set is read, a candidate is
// chosen, and the record is inserted under the (recipient, day, recipe)
// unique index. A concurrent rotation that chose the same recipe loses the
// INSERT and retries with the loser's pick excluded, so two simultaneous
// "not today" replies always yield two distinct recipes (or a correct
// exhaustion report when only one remained).
package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recipe-bot/internal/clock"
	"github.com/tbourn/go-recipe-bot/internal/domain"
	"github.com/tbourn/go-recipe-bot/internal/repo"
)

// Picker selects one index from [0, n). The default is uniform random; a
// round-robin picker can be swapped in without touching the contract.
type Picker func(n int) int

// RotationService owns per-day suggestion state and next-unseen selection.
type RotationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Clock supplies "now"; day keys derive from it in Loc.
	Clock clock.Clock
	// Loc is the bot timezone used for day boundaries.
	Loc *time.Location
	// Pick selects among remaining candidates; defaults to uniform random.
	Pick Picker
}

// NewRotationService constructs a RotationService with the default uniform
// random picker.
func NewRotationService(db *gorm.DB, c clock.Clock, loc *time.Location) *RotationService {
	return &RotationService{DB: db, Clock: c, Loc: loc, Pick: rand.Intn}
}

// Next returns the next unseen recipe for the recipient today, recording it
// in the shown set. exhausted is true (with a nil recipe) when every pool
// entry has already been suggested today. An unseeded pool is ErrPoolEmpty.
func (s *RotationService) Next(ctx context.Context, recipientID string) (recipe *domain.Recipe, exhausted bool, err error) {
	tr := otel.Tracer("services/RotationService")
	ctx, span := tr.Start(ctx, "Next",
		trace.WithAttributes(attribute.String("rotation.day", s.today())),
	)
	defer span.End()

	pool, err := repo.ListRecipes(ctx, s.DB)
	if err != nil {
		return nil, false, err
	}
	if len(pool) == 0 {
		return nil, false, ErrPoolEmpty
	}

	day := s.today()
	// Conflicts only happen when a concurrent caller recorded our pick
	// first; each retry excludes it, so len(pool) attempts always suffice.
	excluded := make(map[string]struct{})
	for attempt := 0; attempt < len(pool); attempt++ {
		shown, err := repo.ListShownRecipeIDs(ctx, s.DB, recipientID, day)
		if err != nil {
			return nil, false, err
		}
		seen := make(map[string]struct{}, len(shown)+len(excluded))
		for _, id := range shown {
			seen[id] = struct{}{}
		}
		for id := range excluded {
			seen[id] = struct{}{}
		}

		remaining := make([]domain.Recipe, 0, len(pool))
		for _, r := range pool {
			if _, ok := seen[r.ID]; !ok {
				remaining = append(remaining, r)
			}
		}
		if len(remaining) == 0 {
			span.SetAttributes(attribute.Bool("rotation.exhausted", true))
			return nil, true, nil
		}

		pick := remaining[s.pick(len(remaining))]
		err = repo.RecordSuggestion(ctx, s.DB, recipientID, day, pick.ID)
		if errors.Is(err, repo.ErrAlreadySuggested) {
			excluded[pick.ID] = struct{}{}
			continue
		}
		if err != nil {
			return nil, false, err
		}
		span.SetAttributes(attribute.String("rotation.recipe", pick.Name))
		return &pick, false, nil
	}
	// Every candidate was claimed by concurrent callers.
	return nil, true, nil
}

// ShownToday returns how many recipes the recipient has already been shown
// today.
func (s *RotationService) ShownToday(ctx context.Context, recipientID string) (int64, error) {
	return repo.CountSuggestions(ctx, s.DB, recipientID, s.today())
}

// ResetDay clears today's shown sets for all recipients. Wired to the
// midnight reset job.
func (s *RotationService) ResetDay(ctx context.Context) (int64, error) {
	return repo.DeleteSuggestionsForDay(ctx, s.DB, s.today())
}

func (s *RotationService) today() string {
	return clock.DayKey(s.Clock.Now(), s.Loc)
}

func (s *RotationService) pick(n int) int {
	if s.Pick == nil {
		return rand.Intn(n)
	}
	return s.Pick(n)
}
