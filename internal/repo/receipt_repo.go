// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for receipts,
// receipt items, and predictions.
//
// The repository follows a "thin" approach: it performs persistence and
// simple query composition, leaving business rules (minimum receipt counts,
// prediction formatting) to the services package.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-bot/internal/domain"
)

// CreateReceipt inserts a pending receipt row for an inbound image and
// returns the persisted record.
func CreateReceipt(ctx context.Context, db *gorm.DB, userPhone, imageRef, mimeType string, fileSize int64, purchaseDate string, dateEstimated bool) (*domain.Receipt, error) {
	r := &domain.Receipt{
		ID:            uuid.NewString(),
		UserPhone:     userPhone,
		ImageRef:      imageRef,
		MimeType:      mimeType,
		FileSize:      fileSize,
		StoreName:     "Unknown Store",
		PurchaseDate:  purchaseDate,
		DateEstimated: dateEstimated,

		ExtractionStatus: "pending",
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// CountReceipts returns how many receipts a user has submitted.
func CountReceipts(ctx context.Context, db *gorm.DB, userPhone string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Receipt{}).
		Where("user_phone = ?", userPhone).
		Count(&n).Error
	return n, err
}

// ListRecentReceipts returns the user's newest receipts, capped at limit.
func ListRecentReceipts(ctx context.Context, db *gorm.DB, userPhone string, limit int) ([]domain.Receipt, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Receipt
	err := db.WithContext(ctx).
		Where("user_phone = ?", userPhone).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListReceiptsPage returns a page of a user's receipts plus the total count,
// newest first. Used by the ops listing endpoint.
func ListReceiptsPage(ctx context.Context, db *gorm.DB, userPhone string, offset, limit int) ([]domain.Receipt, int64, error) {
	q := db.WithContext(ctx).Model(&domain.Receipt{})
	if userPhone != "" {
		q = q.Where("user_phone = ?", userPhone)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Receipt
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// ListItemsForReceipts returns every line item belonging to the given
// receipt IDs. An empty ID list yields an empty slice without querying.
func ListItemsForReceipts(ctx context.Context, db *gorm.DB, receiptIDs []string) ([]domain.ReceiptItem, error) {
	if len(receiptIDs) == 0 {
		return []domain.ReceiptItem{}, nil
	}
	var out []domain.ReceiptItem
	err := db.WithContext(ctx).
		Where("receipt_id IN ?", receiptIDs).
		Find(&out).Error
	return out, err
}

// CreatePrediction persists a generated shopping-list prediction.
func CreatePrediction(ctx context.Context, db *gorm.DB, p *domain.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(p).Error
}
