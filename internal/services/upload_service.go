// Package services – UploadService
//
// This file implements UploadService, the reconciler that makes the persisted
// attachment set of one owner match a client-submitted target list exactly.
// The algorithm is written once against AttachmentStore:
//
//  1. Validate and normalize the whole list (no I/O on failure).
//  2. Deduplicate by id, first occurrence wins; id-less elements are always new.
//  3. Load the owner's persisted rows.
//  4. Partition into create / update; everything persisted and unmatched is deleted.
//  5. Apply the plan through the store (atomic where the store supports it).
//  6. Re-read and return the authoritative set, newest first.
//
// Observability: public methods are OpenTelemetry-instrumented and the
// reconcile outcome is exported as Prometheus counters.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
)

// UploadService reconciles, lists and deletes owner-scoped attachments.
type UploadService struct {
	Store AttachmentStore

	// MaxUploads caps the target list length; 0 disables the check.
	MaxUploads int

	// Now and NewID are clock and id seams; nil selects time.Now and uuid.
	Now   func() time.Time
	NewID func() string
}

// NewUploadService returns a service over store with the given list cap.
func NewUploadService(store AttachmentStore, maxUploads int) *UploadService {
	return &UploadService{Store: store, MaxUploads: maxUploads}
}

// ReconcileResult carries the persisted set after a reconcile together with
// diagnostic data about the call.
type ReconcileResult struct {
	Uploads       []domain.Attachment
	Plan          Plan
	PayloadLength int
	PayloadIDs    []string
}

// Reconcile makes the persisted set of ownerID equal the deduplicated
// target list and returns the resulting set ordered newest first.
//
// Errors:
//   - *ValidationError before any storage access
//   - *StorageError when loading, applying or re-reading fails
func (s *UploadService) Reconcile(ctx context.Context, ownerID string, inputs []AttachmentInput) (res *ReconcileResult, err error) {
	start := time.Now()
	ctx, span := otel.Tracer("services/UploadService").Start(ctx, "Reconcile",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.Int("uploads.count", len(inputs)),
		),
	)
	defer span.End()
	defer func() {
		reconcileDuration.Observe(time.Since(start).Seconds())
		switch {
		case err == nil:
			reconcileTotal.WithLabelValues("ok").Inc()
		case IsValidation(err):
			reconcileTotal.WithLabelValues("invalid").Inc()
		default:
			reconcileTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	ownerID, err = normalizeOwner(ownerID)
	if err != nil {
		return nil, err
	}
	if s.MaxUploads > 0 && len(inputs) > s.MaxUploads {
		return nil, invalid(CodeTooManyUploads, "too many uploads in one request")
	}

	now := s.now()
	items, err := normalizeAll(ownerID, inputs, now)
	if err != nil {
		return nil, err
	}
	payloadIDs := make([]string, 0, len(items))
	for _, it := range items {
		if it.ID != "" {
			payloadIDs = append(payloadIDs, it.ID)
		}
	}
	items = dedupe(items)

	current, err := s.Store.List(ctx, ownerID)
	if err != nil {
		return nil, &StorageError{Op: "reconcile", Err: err}
	}

	plan := s.plan(items, current, now)
	span.SetAttributes(
		attribute.Int("plan.create", len(plan.Create)),
		attribute.Int("plan.update", len(plan.Update)),
		attribute.Int("plan.delete", len(plan.Delete)),
	)

	if err := s.Store.Apply(ctx, ownerID, plan); err != nil {
		if errors.Is(err, ErrPartialApply) {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("owner_id", ownerID).
				Strs("pending_delete", plan.Delete).
				Msg("reconcile left rows behind")
		}
		return nil, &StorageError{Op: "reconcile", Err: err}
	}
	observePlan(plan)

	final, err := s.Store.List(ctx, ownerID)
	if err != nil {
		return nil, &StorageError{Op: "reconcile", Err: err}
	}
	SortNewestFirst(final)

	zerolog.Ctx(ctx).Debug().
		Str("owner_id", ownerID).
		Int("created", len(plan.Create)).
		Int("updated", len(plan.Update)).
		Int("deleted", len(plan.Delete)).
		Msg("uploads reconciled")

	return &ReconcileResult{
		Uploads:       final,
		Plan:          plan,
		PayloadLength: len(inputs),
		PayloadIDs:    payloadIDs,
	}, nil
}

// List returns the persisted set of ownerID, newest first.
func (s *UploadService) List(ctx context.Context, ownerID string) ([]domain.Attachment, error) {
	ctx, span := otel.Tracer("services/UploadService").Start(ctx, "List",
		trace.WithAttributes(attribute.String("owner.id", ownerID)),
	)
	defer span.End()

	ownerID, err := normalizeOwner(ownerID)
	if err != nil {
		return nil, err
	}
	out, err := s.Store.List(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, &StorageError{Op: "list", Err: err}
	}
	SortNewestFirst(out)
	return out, nil
}

// Delete removes one attachment of ownerID and returns the remaining set.
// Deleting an id that does not exist is a successful no-op; removed reports
// whether a row was actually deleted.
func (s *UploadService) Delete(ctx context.Context, ownerID, id string) (rest []domain.Attachment, removed bool, err error) {
	ctx, span := otel.Tracer("services/UploadService").Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.String("attachment.id", id),
		),
	)
	defer span.End()

	ownerID, err = normalizeOwner(ownerID)
	if err != nil {
		return nil, false, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false, invalid(CodeIDRequired, "id is required")
	}

	removed, err = s.Store.DeleteOne(ctx, ownerID, id)
	if err != nil {
		span.RecordError(err)
		return nil, false, &StorageError{Op: "delete", Err: err}
	}
	if removed {
		reconcileOps.WithLabelValues("delete").Inc()
	}
	rest, err = s.Store.List(ctx, ownerID)
	if err != nil {
		return nil, removed, &StorageError{Op: "delete", Err: err}
	}
	SortNewestFirst(rest)
	return rest, removed, nil
}

// Ready reports whether the backing store is reachable.
func (s *UploadService) Ready(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// plan partitions the deduplicated items against the current rows. Every
// row receives its list index as Position. Rows written by this call carry
// UpdatedAt = now unless an update leaves the row unchanged, in which case
// the stored UpdatedAt is kept so a repeated call is a true no-op.
func (s *UploadService) plan(items []normalized, current []domain.Attachment, now time.Time) Plan {
	byID := make(map[string]domain.Attachment, len(current))
	taken := make(map[string]struct{}, len(current)+len(items))
	for _, c := range current {
		byID[c.ID] = c
		taken[c.ID] = struct{}{}
	}
	for _, it := range items {
		if it.ID != "" {
			taken[it.ID] = struct{}{}
		}
	}

	var p Plan
	matched := make(map[string]struct{}, len(items))
	for i, it := range items {
		a := it.Attachment
		a.Position = i
		a.UpdatedAt = now

		if a.ID == "" {
			a.ID = s.freshID(taken)
			p.Create = append(p.Create, a)
			continue
		}
		cur, ok := byID[a.ID]
		if !ok {
			p.Create = append(p.Create, a)
			continue
		}
		if it.DefaultedCreatedAt {
			a.CreatedAt = cur.CreatedAt
		}
		if a.SameContent(cur) && a.Position == cur.Position {
			a.UpdatedAt = cur.UpdatedAt
		}
		matched[a.ID] = struct{}{}
		p.Update = append(p.Update, a)
	}
	for _, c := range current {
		if _, ok := matched[c.ID]; !ok {
			p.Delete = append(p.Delete, c.ID)
		}
	}
	return p
}

func (s *UploadService) freshID(taken map[string]struct{}) string {
	gen := s.NewID
	if gen == nil {
		gen = uuid.NewString
	}
	for {
		id := gen()
		if _, dup := taken[id]; !dup && id != "" {
			taken[id] = struct{}{}
			return id
		}
	}
}

func (s *UploadService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC().Truncate(time.Microsecond)
	}
	return time.Now().UTC().Truncate(time.Microsecond)
}

// dedupe keeps the first element for every non-empty id. Elements without
// an id are all kept.
func dedupe(items []normalized) []normalized {
	seen := make(map[string]struct{}, len(items))
	out := make([]normalized, 0, len(items))
	for _, it := range items {
		if it.ID != "" {
			if _, dup := seen[it.ID]; dup {
				continue
			}
			seen[it.ID] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}

func normalizeOwner(ownerID string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", invalid(CodeOwnerRequired, "owner required")
	}
	if len(ownerID) > MaxIDLength {
		return "", invalid(CodeInvalidPayload, "ownerId too long")
	}
	return ownerID, nil
}

// SortNewestFirst orders rows by CreatedAt descending, then Position and ID
// ascending.
func SortNewestFirst(rows []domain.Attachment) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
}
