// Upload HTTP handlers.
//
// This file exposes the owner-scoped upload set:
//   - GET    /uploads?ownerId=   (list, newest first, weak ETag)
//   - PUT    /uploads            (reconcile the set to the posted target list)
//   - DELETE /uploads?ownerId=&id= (remove one attachment, idempotent)
//
// Handlers are transport-thin: they bind and check request shape, delegate to
// the UploadService and translate its error taxonomy into the shared error
// envelope. Storage causes are logged, never returned.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
	"github.com/tbourn/go-recruit-uploads/internal/http/middleware"
	"github.com/tbourn/go-recruit-uploads/internal/repo"
	"github.com/tbourn/go-recruit-uploads/internal/services"
)

// HeaderReplayed marks a response served from the idempotency ledger.
const HeaderReplayed = "Idempotency-Replayed"

// DefaultIdempotencyTTL is used when Options.IdempotencyTTL is zero.
const DefaultIdempotencyTTL = 24 * time.Hour

// UploadService is the reconciler contract consumed by the handlers.
//
// Implementations must be safe for concurrent use and honor ctx.
type UploadService interface {
	Reconcile(ctx context.Context, ownerID string, inputs []services.AttachmentInput) (*services.ReconcileResult, error)
	List(ctx context.Context, ownerID string) ([]domain.Attachment, error)
	Delete(ctx context.Context, ownerID, id string) ([]domain.Attachment, bool, error)
	Ready(ctx context.Context) error
}

// Options carries the optional SQL-backed features of the handlers.
type Options struct {
	// Ledger stores idempotency records for PUT. Nil disables replay.
	Ledger *gorm.DB
	// StatsDB answers the list ETag query. Nil disables conditional GET,
	// which is the case for the hosted-service backend.
	StatsDB *gorm.DB
	// IdempotencyTTL bounds how long a completed PUT can be replayed.
	IdempotencyTTL time.Duration
	// ReadyTimeout caps the store ping behind /ready. Defaults to 2s.
	ReadyTimeout time.Duration
}

// Handlers groups the upload and health endpoints.
type Handlers struct {
	svc  UploadService
	opts Options
}

// New constructs Handlers bound to svc.
func New(svc UploadService, opts Options) *Handlers {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = DefaultIdempotencyTTL
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Second
	}
	return &Handlers{svc: svc, opts: opts}
}

//
// DTOs
//

// PutUploadsRequest is the reconcile payload. Uploads is kept raw so that a
// non-list value is reported as uploads_not_list rather than a decode error.
type PutUploadsRequest struct {
	OwnerID string          `json:"ownerId" example:"cand-42"`
	Uploads json.RawMessage `json:"uploads" swaggertype:"array,object"`
}

// UploadsResponse wraps an owner's full attachment list.
type UploadsResponse struct {
	Uploads []domain.Attachment `json:"uploads"`
}

// PutUploadsMeta carries diagnostics about a reconcile call.
type PutUploadsMeta struct {
	PayloadLength int      `json:"payloadLength" example:"3"`
	PayloadIDs    []string `json:"payloadIds"`
	SavedCount    int      `json:"savedCount" example:"3"`
	Created       int      `json:"created" example:"1"`
	Updated       int      `json:"updated" example:"2"`
	Deleted       int      `json:"deleted" example:"0"`
	Replayed      bool     `json:"replayed,omitempty"`
}

// PutUploadsResponse is returned by a successful PUT /uploads.
type PutUploadsResponse struct {
	Uploads []domain.Attachment `json:"uploads"`
	Meta    PutUploadsMeta      `json:"meta"`
}

type ownerQuery struct {
	OwnerID string `form:"ownerId" binding:"required"`
}

type deleteQuery struct {
	OwnerID string `form:"ownerId" binding:"required"`
	ID      string `form:"id" binding:"required"`
}

//
// Helpers
//

// queryError maps a query binding failure onto a validation code. Fields are
// validated in declaration order, so the owner is reported first.
func queryError(err error) (code, msg string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].StructField() {
		case "OwnerID":
			return services.CodeOwnerRequired, "ownerId is required"
		case "ID":
			return services.CodeIDRequired, "id is required"
		}
		return ErrCodeBadRequest, verrs[0].Error()
	}
	return ErrCodeBadRequest, "invalid query"
}

// serviceError translates the service taxonomy: validation failures are 400
// with their own code; anything else is a 500 with a generic message.
func serviceError(c *gin.Context, err error, code, msg string) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		fail(c, http.StatusBadRequest, ve.Code, ve.Error())
		return
	}
	if errors.Is(err, services.ErrPartialApply) {
		msg += "; retry the request to finish removing stale uploads"
	}
	failWithCause(c, http.StatusInternalServerError, code, msg, err)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

//
// Handlers
//

// ListUploads godoc
// @ID          listUploads
// @Summary     List an owner's uploads
// @Description Returns every attachment of the owner, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Uploads
// @Produce     json
//
// @Param       ownerId        query   string  true  "Owner ID"                     example(cand-42)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"   example(W/\"uploads:3:1718000000000000\")
//
// @Success     200  {object} handlers.UploadsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "owner_required"
// @Failure     500  {object} handlers.ErrorResponse "list_failed"
// @Router      /uploads [get]
func (h *Handlers) ListUploads(c *gin.Context) {
	ctx := c.Request.Context()

	var q ownerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		code, msg := queryError(err)
		fail(c, http.StatusBadRequest, code, msg)
		return
	}
	owner := strings.TrimSpace(q.OwnerID)
	if owner == "" {
		fail(c, http.StatusBadRequest, services.CodeOwnerRequired, "ownerId is required")
		return
	}

	// ETag pre-check (best effort).
	if h.opts.StatsDB != nil {
		count, maxTS, err := repo.AttachmentsStats(ctx, h.opts.StatsDB, owner)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixMicro()
			}
			etag := fmt.Sprintf(`W/"uploads:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	rows, err := h.svc.List(ctx, owner)
	if err != nil {
		serviceError(c, err, ErrCodeListFailed, "failed to load uploads")
		return
	}
	ok(c, http.StatusOK, UploadsResponse{Uploads: rows})
}

// PutUploads godoc
// @ID          putUploads
// @Summary     Replace an owner's upload set
// @Description Reconciles the persisted set to exactly the posted list: missing rows are created, matching rows updated, the rest deleted, all in one unit of work.
// @Description Supports idempotency via the Idempotency-Key header; a replay returns the current list without re-applying.
// @Tags        Uploads
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.PutUploadsRequest  true  "Owner and target list"
//
// @Success     200  {object}  handlers.PutUploadsResponse
// @Header      200  {string}  Idempotency-Replayed "true when served from the idempotency ledger"
// @Failure     400  {object}  handlers.ErrorResponse "Validation failure (owner_required, uploads_not_list, invalid_category, invalid_payload, too_many_uploads)"
// @Failure     413  {object}  handlers.ErrorResponse "payload_too_large"
// @Failure     500  {object}  handlers.ErrorResponse "reconcile_failed"
// @Router      /uploads [put]
func (h *Handlers) PutUploads(c *gin.Context) {
	ctx := c.Request.Context()

	var req PutUploadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		fail(c, http.StatusBadRequest, services.CodeInvalidPayload, "request body must be a JSON object")
		return
	}
	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		fail(c, http.StatusBadRequest, services.CodeOwnerRequired, "ownerId is required")
		return
	}

	route := middleware.RouteKey(c)
	key, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && h.replay(c, owner, route, key) {
		return
	}

	inputs, err := services.DecodeTargetList(req.Uploads)
	if err != nil {
		serviceError(c, err, ErrCodeReconcileFailed, "failed to save uploads")
		return
	}

	res, err := h.svc.Reconcile(ctx, owner, inputs)
	if err != nil {
		serviceError(c, err, ErrCodeReconcileFailed, "failed to save uploads")
		return
	}

	// Idempotency (store path) – best effort.
	if hasKey && h.opts.Ledger != nil {
		_, err := repo.CreateIdempotency(ctx, h.opts.Ledger, owner, route, key,
			http.StatusOK, len(res.Uploads), h.opts.IdempotencyTTL)
		if err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not saved")
		}
	}

	ok(c, http.StatusOK, PutUploadsResponse{
		Uploads: res.Uploads,
		Meta: PutUploadsMeta{
			PayloadLength: res.PayloadLength,
			PayloadIDs:    nonNil(res.PayloadIDs),
			SavedCount:    len(res.Uploads),
			Created:       len(res.Plan.Create),
			Updated:       len(res.Plan.Update),
			Deleted:       len(res.Plan.Delete),
		},
	})
}

// replay serves a completed PUT from the ledger. It reports whether a
// response was written.
func (h *Handlers) replay(c *gin.Context, owner, route, key string) bool {
	if h.opts.Ledger == nil {
		return false
	}
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, h.opts.Ledger, owner, route, key, time.Now().UTC())
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		}
		return false
	}

	rows, err := h.svc.List(ctx, owner)
	if err != nil {
		serviceError(c, err, ErrCodeListFailed, "failed to load uploads")
		return true
	}
	status := rec.Status
	if status == 0 {
		status = http.StatusOK
	}
	c.Header(HeaderReplayed, "true")
	ok(c, status, PutUploadsResponse{
		Uploads: rows,
		Meta: PutUploadsMeta{
			PayloadIDs: []string{},
			SavedCount: len(rows),
			Replayed:   true,
		},
	})
	return true
}

// DeleteUpload godoc
// @ID          deleteUpload
// @Summary     Delete one upload
// @Description Removes one attachment of the owner and returns the remaining list. Deleting an id that does not exist succeeds without changes.
// @Tags        Uploads
// @Produce     json
//
// @Param       ownerId  query  string  true  "Owner ID"       example(cand-42)
// @Param       id       query  string  true  "Attachment ID"  example(3f0c2a4e-6a1b-4d8e-9d53-5a1c2e0b7f10)
//
// @Success     200  {object} handlers.UploadsResponse
// @Failure     400  {object} handlers.ErrorResponse "owner_required or id_required"
// @Failure     500  {object} handlers.ErrorResponse "delete_failed"
// @Router      /uploads [delete]
func (h *Handlers) DeleteUpload(c *gin.Context) {
	var q deleteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		code, msg := queryError(err)
		fail(c, http.StatusBadRequest, code, msg)
		return
	}

	rows, removed, err := h.svc.Delete(c.Request.Context(), q.OwnerID, q.ID)
	if err != nil {
		serviceError(c, err, ErrCodeDeleteFailed, "failed to delete upload")
		return
	}
	if !removed {
		middleware.LoggerFrom(c).Debug().Str("attachment_id", q.ID).Msg("delete of missing upload")
	}
	ok(c, http.StatusOK, UploadsResponse{Uploads: rows})
}

// Health godoc
// @ID          health
// @Summary     Liveness probe
// @Tags        Health
// @Produce     json
// @Success     200  {object} map[string]string
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @ID          ready
// @Summary     Readiness probe
// @Description Pings the configured attachment store.
// @Tags        Health
// @Produce     json
// @Success     200  {object} map[string]string
// @Failure     503  {object} handlers.ErrorResponse "not_ready"
// @Router      /ready [get]
func (h *Handlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.ReadyTimeout)
	defer cancel()

	if err := h.svc.Ready(ctx); err != nil {
		failWithCause(c, http.StatusServiceUnavailable, ErrCodeNotReady, "storage unreachable", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "ready"})
}
