// Ops HTTP handlers.
//
// This file exposes the operator endpoints used to manage the bot at runtime:
//   - POST /ops/seed-recipes       (load the recipe pool)
//   - POST /ops/send-recipe        (push today's recipe now)
//   - POST /ops/jobs/{name}/fire   (run a scheduled job immediately)
//   - GET  /ops/jobs/{name}        (inspect a job's state and next fire)
//   - GET  /ops/receipts           (paginated receipt listing)
//   - GET  /ops/stats              (operational counters)
//
// These endpoints sit behind the rate limiter and are meant for a trusted
// operator, not end users; responses carry no-store cache headers because
// they can contain phone numbers.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-bot/internal/clock"
	"github.com/tbourn/go-recipe-bot/internal/repo"
	"github.com/tbourn/go-recipe-bot/internal/services"
	"github.com/tbourn/go-recipe-bot/internal/utils"
)

//
// DTOs
//

// SeedRecipesRequest is the JSON payload for loading the recipe pool.
type SeedRecipesRequest struct {
	// Recipes are the dish names to add; duplicates of existing names are
	// skipped, not errors.
	Recipes []string `json:"recipes" binding:"required,min=1"`
}

// SeedRecipesResponse reports how the seed request changed the pool.
type SeedRecipesResponse struct {
	Inserted int   `json:"inserted"`
	Skipped  int   `json:"skipped"`
	Total    int64 `json:"total"`
}

// JobStatusResponse describes one scheduled job.
type JobStatusResponse struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Next  string `json:"next,omitempty"` // RFC 3339, local time
}

// ReceiptSummary is the redacted receipt row returned by the listing.
type ReceiptSummary struct {
	ID               string `json:"id"`
	UserPhone        string `json:"user_phone"` // masked
	PurchaseDate     string `json:"purchase_date"`
	DateEstimated    bool   `json:"date_estimated"`
	ExtractionStatus string `json:"extraction_status"`
	CreatedAt        string `json:"created_at"`
}

// ListReceiptsResponse wraps a page of receipts.
type ListReceiptsResponse struct {
	Receipts []ReceiptSummary `json:"receipts"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int64            `json:"total"`
}

// SeedRecipes loads dish names into the rotation pool. Names already present
// are skipped so the endpoint is safe to re-run with the full list.
func (h *Handlers) SeedRecipes(c *gin.Context) {
	var req SeedRecipesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipes must be a non-empty list of names")
		return
	}

	inserted, err := repo.SeedRecipes(c.Request.Context(), h.db, req.Recipes)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSeedFailed, "could not seed recipes")
		return
	}
	total, err := repo.CountRecipes(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSeedFailed, "could not count recipes")
		return
	}

	ok(c, http.StatusOK, SeedRecipesResponse{
		Inserted: inserted,
		Skipped:  len(req.Recipes) - inserted,
		Total:    total,
	})
}

// SendRecipe pushes today's recipe to the configured recipient immediately,
// independent of the schedule.
func (h *Handlers) SendRecipe(c *gin.Context) {
	err := h.bot.SendDailyRecipe(c.Request.Context())
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"status": "sent"})
	case errors.Is(err, services.ErrNoRecipient):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no recipient phone number configured")
	case errors.Is(err, services.ErrPoolEmpty):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipe pool is empty, seed it first")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeSendFailed, "could not send recipe")
	}
}

// FireJob runs a named scheduled job immediately. The job's regular timer is
// unaffected.
func (h *Handlers) FireJob(c *gin.Context) {
	name := c.Param("name")
	if _, known := h.jobs.State(name); !known {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown job")
		return
	}
	if err := h.jobs.Fire(c.Request.Context(), name); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeFireFailed, "job fire failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "fired", "job": name})
}

// JobStatus reports a job's state and, when armed, its next fire instant in
// the bot's local timezone.
func (h *Handlers) JobStatus(c *gin.Context) {
	name := c.Param("name")
	state, known := h.jobs.State(name)
	if !known {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown job")
		return
	}
	resp := JobStatusResponse{Name: name, State: state}
	if next, armed := h.jobs.Next(name); armed {
		resp.Next = next.In(h.loc).Format(time.RFC3339)
	}
	ok(c, http.StatusOK, resp)
}

// ListReceipts returns a page of stored receipts, phone numbers masked.
// Query parameters: user (optional filter), page, page_size.
func (h *Handlers) ListReceipts(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	pageSize := utils.AtoiDefault(c.Query("page_size"), 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	receipts, total, err := repo.ListReceiptsPage(c.Request.Context(), h.db, c.Query("user"), (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list receipts")
		return
	}

	out := make([]ReceiptSummary, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, ReceiptSummary{
			ID:               r.ID,
			UserPhone:        utils.MaskPhone(r.UserPhone),
			PurchaseDate:     r.PurchaseDate,
			DateEstimated:    r.DateEstimated,
			ExtractionStatus: r.ExtractionStatus,
			CreatedAt:        r.CreatedAt.Format(time.RFC3339),
		})
	}
	ok(c, http.StatusOK, ListReceiptsResponse{
		Receipts: out,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// GetStats returns the operational counters for today in the bot's timezone.
func (h *Handlers) GetStats(c *gin.Context) {
	day := clock.DayKey(h.clk.Now(), h.loc)
	stats, err := repo.Stats(c.Request.Context(), h.db, day)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not compute stats")
		return
	}
	ok(c, http.StatusOK, gin.H{"day": day, "stats": stats})
}
