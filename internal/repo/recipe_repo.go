// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Recipe
// model (the rotation candidate pool).
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a recipe is not found, functions return gorm.ErrRecordNotFound
//     (exported from this package as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-bot/internal/domain"
)

// ListRecipes returns the full candidate pool ordered by name. The pool is
// read fresh on every selection call; the core never caches it.
func ListRecipes(ctx context.Context, db *gorm.DB) ([]domain.Recipe, error) {
	var out []domain.Recipe
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// ListRecipeNames returns the names of every recipe in the pool, ordered.
func ListRecipeNames(ctx context.Context, db *gorm.DB) ([]string, error) {
	recipes, err := ListRecipes(ctx, db)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(recipes))
	for _, r := range recipes {
		names = append(names, r.Name)
	}
	return names, nil
}

// GetRecipe fetches a single recipe by ID, or ErrNotFound.
func GetRecipe(ctx context.Context, db *gorm.DB, id string) (*domain.Recipe, error) {
	var r domain.Recipe
	err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountRecipes returns the pool size.
func CountRecipes(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Recipe{}).Count(&n).Error
	return n, err
}

// DefaultRecipes is the starter pool seeded on first boot when the recipes
// table is empty. Operators replace it via POST /ops/seed-recipes.
var DefaultRecipes = []string{
	"Pasta Carbonara",
	"Chicken Tikka Masala",
	"Vegetable Stir Fry",
	"Beef Tacos",
	"Margherita Pizza",
	"Fish Curry",
	"Caesar Salad",
	"Chicken Fried Rice",
	"Vegetable Soup",
	"Grilled Salmon",
	"Beef Burger",
	"Chicken Noodles",
	"Tomato Pasta",
	"Vegetable Lasagna",
	"Chicken Biryani",
}

// SeedDefaultRecipes populates an empty pool with DefaultRecipes. A non-empty
// pool is left untouched so operator-curated lists survive restarts.
func SeedDefaultRecipes(ctx context.Context, db *gorm.DB) (int, error) {
	n, err := CountRecipes(ctx, db)
	if err != nil || n > 0 {
		return 0, err
	}
	return SeedRecipes(ctx, db, DefaultRecipes)
}

// SeedRecipes inserts the given names, skipping any that already exist.
// It returns the number of rows actually inserted, so re-running the seed
// endpoint is harmless.
func SeedRecipes(ctx context.Context, db *gorm.DB, names []string) (int, error) {
	inserted := 0
	now := time.Now().UTC()
	for _, name := range names {
		r := &domain.Recipe{
			ID:        uuid.NewString(),
			Name:      name,
			CreatedAt: now,
		}
		err := db.WithContext(ctx).Create(r).Error
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
