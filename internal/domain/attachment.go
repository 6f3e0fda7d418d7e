// Package domain defines the persistence models for owner-scoped attachments
// (videos, certificates, achievements) and the idempotency ledger. These
// types are mapped with GORM and form the core data layer of the uploads
// backend.
package domain

import "time"

// Category is the closed classification of an attachment.
type Category string

const (
	CategoryVideo       Category = "video"
	CategoryCertificate Category = "certificate"
	CategoryAchievement Category = "achievement"
)

// Categories lists every accepted Category in display order.
var Categories = []Category{CategoryVideo, CategoryCertificate, CategoryAchievement}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryVideo, CategoryCertificate, CategoryAchievement:
		return true
	}
	return false
}

// Attachment is a single uploaded or linked media/document record that
// belongs to exactly one owner.
//
// Fields:
//   - OwnerID / ID: composite primary key. IDs are unique per owner, so a
//     client-chosen id can never collide with another owner's row.
//   - DisplayName: free-text label (may be empty).
//   - Category: video | certificate | achievement (enforced by DB check).
//   - PrimaryLink / PreviewLink: optional URIs; nil means "no value".
//   - Position: index of the row in the last reconciled target list. It
//     breaks CreatedAt ties so rows added together keep list order.
//   - CreatedAt: client-supplied or defaulted to the reconcile start time.
//   - UpdatedAt: last write time.
type Attachment struct {
	OwnerID     string    `json:"ownerId"     gorm:"type:varchar(128);primaryKey;index:idx_owner_created,priority:1"`
	ID          string    `json:"id"          gorm:"type:varchar(128);primaryKey"`
	DisplayName string    `json:"displayName" gorm:"type:text;not null;default:''"`
	Category    Category  `json:"category"    gorm:"type:varchar(16);not null;check:category IN ('video','certificate','achievement')"`
	PrimaryLink *string   `json:"primaryLink"`
	PreviewLink *string   `json:"previewLink"`
	Position    int       `json:"-"           gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"createdAt"   gorm:"index:idx_owner_created,priority:2"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Attachment.
func (Attachment) TableName() string { return "attachments" }

// SameContent reports whether a and b carry identical user-visible values.
// UpdatedAt is ignored.
func (a Attachment) SameContent(b Attachment) bool {
	return a.OwnerID == b.OwnerID &&
		a.ID == b.ID &&
		a.DisplayName == b.DisplayName &&
		a.Category == b.Category &&
		equalPtr(a.PrimaryLink, b.PrimaryLink) &&
		equalPtr(a.PreviewLink, b.PreviewLink) &&
		a.CreatedAt.Equal(b.CreatedAt)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
