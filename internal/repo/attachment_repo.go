// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Attachment
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
// Every statement is scoped by owner_id; no function reads or writes rows of
// an owner other than the one passed in.
//
// Error semantics:
//   - When a targeted row is missing, functions return gorm.ErrRecordNotFound
//     (exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - ListAttachments(ctx, db, ownerID) -> []domain.Attachment, error
//     Returns the owner's rows, newest CreatedAt first, list position second.
//
//   - CreateAttachments(ctx, db, rows) -> error
//     Inserts rows in statements of at most CreateBatchSize rows.
//
//   - UpdateAttachment(ctx, db, row) -> error
//     Overwrites the mutable columns of one (owner_id, id) row.
//
//   - DeleteAttachments(ctx, db, ownerID, ids) -> (int64, error)
//     Removes the listed ids for the owner and reports rows affected.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ListAttachments returns all attachments belonging to ownerID ordered by
// created_at descending, then position ascending, then id. It returns an
// empty slice when the owner has none.
func ListAttachments(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Attachment, error) {
	out := []domain.Attachment{}
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, position ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CreateBatchSize bounds rows per INSERT. At 9 bind variables per row it
// stays well under SQLite's 32766 and Postgres' 65535 parameter limits.
const CreateBatchSize = 500

// CreateAttachments inserts rows in batches of CreateBatchSize. Called with
// a transaction handle, all batches commit or roll back together. An empty
// slice is a no-op.
func CreateAttachments(ctx context.Context, db *gorm.DB, rows []domain.Attachment) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(&rows, CreateBatchSize).Error
}

// UpdateAttachment overwrites display_name, category, links, position,
// created_at and updated_at of the row identified by (OwnerID, ID). Nil links
// are written as NULL. If no row matches, it returns ErrNotFound.
func UpdateAttachment(ctx context.Context, db *gorm.DB, a domain.Attachment) error {
	res := db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("owner_id = ? AND id = ?", a.OwnerID, a.ID).
		Updates(map[string]any{
			"display_name": a.DisplayName,
			"category":     a.Category,
			"primary_link": a.PrimaryLink,
			"preview_link": a.PreviewLink,
			"position":     a.Position,
			"created_at":   a.CreatedAt,
			"updated_at":   a.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAttachments removes the rows with the given ids owned by ownerID and
// returns how many were deleted. An empty ids slice deletes nothing; it never
// widens to the whole owner.
func DeleteAttachments(ctx context.Context, db *gorm.DB, ownerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Delete(&domain.Attachment{})
	return res.RowsAffected, res.Error
}
