// Package domain defines the persistence models for recipes, suggestions,
// receipts, predictions, and feedback sessions. These types are mapped with
// GORM and form the core data layer of the recipe bot.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Recipe is one entry of the candidate pool the rotation selector draws from.
// The pool is small and externally curated; names are unique.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: human-readable recipe name, unique across the pool.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Recipe struct {
	ID        string    `json:"id"   gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(120);not null;uniqueIndex:ux_recipe_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Recipe.
func (Recipe) TableName() string { return "recipes" }

// Suggestion records that a recipe was suggested to a recipient on a given
// civil day (bot timezone, key format "2006-01-02"). The unique index over
// (recipient_id, day, recipe_id) is what makes rotation safe under concurrent
// requests: two simultaneous picks of the same recipe collide at the database
// and exactly one wins.
//
// Rows are never updated; the set for a (recipient, day) only grows within
// the day. Old-day rows are swept by the retention job, not by rotation.
type Suggestion struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	RecipientID string    `json:"recipient_id" gorm:"type:varchar(32);not null;uniqueIndex:ux_suggestion_day,priority:1"`
	Day         string    `json:"day"          gorm:"type:char(10);not null;uniqueIndex:ux_suggestion_day,priority:2;index:idx_suggestion_day"`
	RecipeID    string    `json:"recipe_id"    gorm:"type:char(36);not null;uniqueIndex:ux_suggestion_day,priority:3"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for Suggestion.
func (Suggestion) TableName() string { return "suggestions" }

// Receipt represents a shopping receipt a user submitted as an image.
// OCR extraction is an external concern; the bot only stores the reference
// and tracks extraction status.
type Receipt struct {
	ID            string `json:"id"             gorm:"type:char(36);primaryKey"`
	UserPhone     string `json:"user_phone"     gorm:"type:varchar(32);not null;index:idx_receipt_user"`
	ImageRef      string `json:"image_ref"      gorm:"type:text;not null"`
	MimeType      string `json:"mime_type"      gorm:"type:varchar(64)"`
	FileSize      int64  `json:"file_size"`
	StoreName     string `json:"store_name"     gorm:"type:varchar(120);not null;default:'Unknown Store'"`
	PurchaseDate  string `json:"purchase_date"  gorm:"type:char(10);not null"`
	DateEstimated bool   `json:"date_estimated" gorm:"not null;default:false"`
	// pending | completed | failed
	ExtractionStatus string         `json:"extraction_status" gorm:"type:varchar(16);not null;default:'pending'"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Receipt.
func (Receipt) TableName() string { return "receipts" }

// ReceiptItem is a single line item extracted from a receipt. Items feed the
// purchase-pattern aggregation behind grocery predictions.
type ReceiptItem struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ReceiptID string    `json:"receipt_id" gorm:"type:char(36);not null;index:idx_item_receipt"`
	Name      string    `json:"name"       gorm:"type:varchar(120);not null"`
	Quantity  float64   `json:"quantity"   gorm:"not null;default:1"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`

	// Receipt is the parent receipt. Items are cascade-deleted with it.
	Receipt Receipt `json:"-" gorm:"foreignKey:ReceiptID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ReceiptItem.
func (ReceiptItem) TableName() string { return "receipt_items" }

// Prediction is a generated grocery shopping list for a user, persisted so a
// feedback session can reference it and so the learning pass can compare it
// against what was actually bought.
//
// Items holds the predicted item names as a JSON array; the list is small
// and read-mostly, so a join table would be overkill.
type Prediction struct {
	ID             string    `json:"id"               gorm:"type:char(36);primaryKey"`
	UserPhone      string    `json:"user_phone"       gorm:"type:varchar(32);not null;index:idx_prediction_user"`
	Items          string    `json:"items"            gorm:"type:text;not null"`
	DateRangeStart string    `json:"date_range_start" gorm:"type:char(10)"`
	DateRangeEnd   string    `json:"date_range_end"   gorm:"type:char(10)"`
	Reasoning      string    `json:"reasoning"        gorm:"type:text"`
	Prompt         string    `json:"-"                gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for Prediction.
func (Prediction) TableName() string { return "predictions" }

// Feedback session status values. A session is opened when a prediction is
// sent and closed by the user's follow-up (or by expiry).
const (
	SessionWaiting          = "waiting"
	SessionCancelled        = "cancelled"
	SessionReceiptSubmitted = "receipt_submitted"
	SessionExpired          = "expired"
)

// FeedbackSession tracks the window after a prediction during which the
// user's "no" / "done" replies are interpreted as prediction feedback rather
// than free text. At most one waiting session is honored per user at a time.
type FeedbackSession struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	PredictionID string     `json:"prediction_id" gorm:"type:char(36);not null;index"`
	UserPhone    string     `json:"user_phone"    gorm:"type:varchar(32);not null;index:idx_session_user"`
	Status       string     `json:"status"        gorm:"type:varchar(24);not null;default:'waiting';check:status IN ('waiting','cancelled','receipt_submitted','expired')"`
	ExpiresAt    time.Time  `json:"expires_at"    gorm:"not null;index"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for FeedbackSession.
func (FeedbackSession) TableName() string { return "feedback_sessions" }

// JobRun persists the last completed run of a named scheduled job. The
// scheduler consults it on startup to decide whether today's instant was
// missed and, under the catch-up policy, whether to fire once immediately.
type JobRun struct {
	Name       string    `json:"name"         gorm:"type:varchar(64);primaryKey"`
	LastRunDay string    `json:"last_run_day" gorm:"type:char(10);not null"`
	LastRunAt  time.Time `json:"last_run_at"  gorm:"not null"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for JobRun.
func (JobRun) TableName() string { return "job_runs" }
