package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
)

// AttachmentsStats returns the number of rows owned by ownerID and the
// newest UpdatedAt among them. The list ETag is derived from both, so any
// create, delete or changed update moves it. maxUpdatedAt is nil when the
// owner has no rows.
func AttachmentsStats(ctx context.Context, db *gorm.DB, ownerID string) (count int64, maxUpdatedAt *time.Time, err error) {
	// Session makes the scoped query reusable for both statements.
	owned := db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("owner_id = ?", ownerID).
		Session(&gorm.Session{})

	if err = owned.Count(&count).Error; err != nil || count == 0 {
		return 0, nil, err
	}

	// ORDER BY + LIMIT instead of MAX(): SQLite returns MAX(datetime) as TEXT.
	var latest struct{ UpdatedAt time.Time }
	if err = owned.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&latest).Error; err != nil {
		return 0, nil, err
	}
	return count, &latest.UpdatedAt, nil
}
