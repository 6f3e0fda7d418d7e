// Package sqlstore is the transactional AttachmentStore. It applies a
// reconcile plan inside one GORM transaction bounded by a timeout, so either
// every create, update and delete lands or none does.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
	"github.com/tbourn/go-recruit-uploads/internal/repo"
	"github.com/tbourn/go-recruit-uploads/internal/services"
)

// DefaultTxTimeout bounds Apply when Store.TxTimeout is zero.
const DefaultTxTimeout = 20 * time.Second

// Store implements services.AttachmentStore over a GORM database.
type Store struct {
	DB        *gorm.DB
	TxTimeout time.Duration
}

// New returns a Store using db with the given transaction timeout.
func New(db *gorm.DB, txTimeout time.Duration) *Store {
	return &Store{DB: db, TxTimeout: txTimeout}
}

var _ services.AttachmentStore = (*Store)(nil)

// List returns all rows of ownerID.
func (s *Store) List(ctx context.Context, ownerID string) ([]domain.Attachment, error) {
	return repo.ListAttachments(ctx, s.DB, ownerID)
}

// Apply runs creates, then updates, then deletes in a single transaction.
// An update whose row disappeared since the plan was computed aborts the
// whole transaction. Exceeding TxTimeout rolls everything back.
func (s *Store) Apply(ctx context.Context, ownerID string, plan services.Plan) error {
	if plan.Empty() {
		return nil
	}
	timeout := s.TxTimeout
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ownedBy(ownerID, plan); err != nil {
			return err
		}
		if err := repo.CreateAttachments(ctx, tx, plan.Create); err != nil {
			return fmt.Errorf("create: %w", err)
		}
		for _, a := range plan.Update {
			if err := repo.UpdateAttachment(ctx, tx, a); err != nil {
				return fmt.Errorf("update %s: %w", a.ID, err)
			}
		}
		if _, err := repo.DeleteAttachments(ctx, tx, ownerID, plan.Delete); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		// Surface a deadline hit between statements instead of committing.
		return ctx.Err()
	})
}

// ownedBy rejects plans carrying rows of another owner.
func ownedBy(ownerID string, plan services.Plan) error {
	for _, group := range [][]domain.Attachment{plan.Create, plan.Update} {
		for _, a := range group {
			if a.OwnerID != ownerID {
				return fmt.Errorf("row %s belongs to %q, not %q", a.ID, a.OwnerID, ownerID)
			}
		}
	}
	return nil
}

// DeleteOne removes (ownerID, id) and reports whether it existed.
func (s *Store) DeleteOne(ctx context.Context, ownerID, id string) (bool, error) {
	n, err := repo.DeleteAttachments(ctx, s.DB, ownerID, []string{id})
	return n > 0, err
}

// Ping checks the underlying connection pool.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
