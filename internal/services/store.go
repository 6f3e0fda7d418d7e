package services

import (
	"context"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
)

// Plan is the outcome of partitioning a target list against the persisted
// set. An id appears in at most one group.
type Plan struct {
	Create []domain.Attachment
	Update []domain.Attachment
	Delete []string
}

// Writes returns the number of row operations the plan performs.
func (p Plan) Writes() int { return len(p.Create) + len(p.Update) + len(p.Delete) }

// Empty reports whether the plan has nothing to apply.
func (p Plan) Empty() bool { return p.Writes() == 0 }

// AttachmentStore is the capability set both storage backends provide.
// Every method is scoped to a single owner and must never touch rows of
// another owner.
type AttachmentStore interface {
	// List returns every attachment of ownerID. Order is not significant;
	// the service sorts the result.
	List(ctx context.Context, ownerID string) ([]domain.Attachment, error)

	// Apply performs all creates, updates and deletes of plan for ownerID.
	// Transactional stores apply it atomically. Stores without transactions
	// upsert Create+Update first and only then delete; a failure between
	// the two phases is reported as ErrPartialApply.
	Apply(ctx context.Context, ownerID string, plan Plan) error

	// DeleteOne removes a single attachment and reports whether it existed.
	DeleteOne(ctx context.Context, ownerID, id string) (bool, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
