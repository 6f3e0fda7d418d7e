package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Attachment{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }

func TestCategory_Valid(t *testing.T) {
	for _, c := range Categories {
		if !c.Valid() {
			t.Fatalf("%q should be valid", c)
		}
	}
	for _, c := range []Category{"", "Video", "photo", "certificates"} {
		if c.Valid() {
			t.Fatalf("%q should be invalid", c)
		}
	}
}

func TestAttachment_TableNames(t *testing.T) {
	if (Attachment{}).TableName() != "attachments" {
		t.Fatalf("unexpected attachment table name")
	}
	if (Idempotency{}).TableName() != "idempotency" {
		t.Fatalf("unexpected idempotency table name")
	}
}

func TestAttachment_CompositeKey_AllowsSameIDAcrossOwners(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	a := Attachment{OwnerID: "u1", ID: "same", Category: CategoryVideo, CreatedAt: now}
	b := Attachment{OwnerID: "u2", ID: "same", Category: CategoryCertificate, CreatedAt: now}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("create b (same id, other owner): %v", err)
	}

	dup := Attachment{OwnerID: "u1", ID: "same", Category: CategoryAchievement, CreatedAt: now}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected primary key violation for duplicate (owner,id)")
	}
}

func TestAttachment_CheckConstraintRejectsUnknownCategory(t *testing.T) {
	db := newTestDB(t)
	bad := Attachment{OwnerID: "u1", ID: "x", Category: "photo", CreatedAt: time.Now().UTC()}
	if err := db.Create(&bad).Error; err == nil {
		t.Fatalf("expected check constraint failure for category=photo")
	}
}

func TestAttachment_NullableLinksRoundTrip(t *testing.T) {
	db := newTestDB(t)
	in := Attachment{
		OwnerID:     "u1",
		ID:          "a1",
		DisplayName: "Goal reel",
		Category:    CategoryVideo,
		PrimaryLink: strPtr("https://cdn.example/reel.mp4"),
		CreatedAt:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := db.Create(&in).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	var got Attachment
	if err := db.First(&got, "owner_id = ? AND id = ?", "u1", "a1").Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.PreviewLink != nil {
		t.Fatalf("expected nil preview link, got %q", *got.PreviewLink)
	}
	if !got.SameContent(in) {
		t.Fatalf("round-trip mismatch:\n got=%+v\nwant=%+v", got, in)
	}
}

func TestAttachment_SameContent(t *testing.T) {
	base := Attachment{OwnerID: "u", ID: "i", DisplayName: "n", Category: CategoryVideo,
		PrimaryLink: strPtr("p"), CreatedAt: time.Unix(100, 0)}

	same := base
	same.PrimaryLink = strPtr("p") // different pointer, same value
	same.UpdatedAt = time.Unix(999, 0)
	if !base.SameContent(same) {
		t.Fatalf("expected equal content")
	}

	diff := base
	diff.PrimaryLink = nil
	if base.SameContent(diff) {
		t.Fatalf("nil vs value link should differ")
	}
	diff = base
	diff.DisplayName = "other"
	if base.SameContent(diff) {
		t.Fatalf("display name change should differ")
	}
}

func TestIdempotency_UniquePerOwnerRouteKey(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	first := Idempotency{ID: "1", OwnerID: "u1", Route: "PUT /uploads", Key: "k", Status: 200, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("insert first: %v", err)
	}
	other := Idempotency{ID: "2", OwnerID: "u2", Route: "PUT /uploads", Key: "k", Status: 200, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("same key for another owner should be allowed: %v", err)
	}
	dup := Idempotency{ID: "3", OwnerID: "u1", Route: "PUT /uploads", Key: "k", Status: 200, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate (owner,route,key)")
	}
}
