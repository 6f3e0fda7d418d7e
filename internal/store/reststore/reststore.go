// Package reststore is the AttachmentStore for a hosted backend service that
// exposes tables over a PostgREST-style HTTP API (upsert batches and filtered
// deletes, no multi-statement transactions).
//
// Apply emulates all-or-nothing behaviour in two phases:
//
//  1. One upsert request carrying every created and updated row. The service
//     executes a single statement, so this phase either fully lands or not
//     at all. The returned representation is checked row by row.
//  2. One filtered delete for the ids that left the set.
//
// A failure (or crash) after phase 1 and before phase 2 completes leaves the
// new rows written and the old rows not yet removed. This window is the only
// tolerated inconsistency; it is reported as services.ErrPartialApply and is
// repaired by re-running the same reconcile.
package reststore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
	"github.com/tbourn/go-recruit-uploads/internal/services"
)

// ErrShortUpsert is returned when the service acknowledged fewer rows than sent.
var ErrShortUpsert = errors.New("reststore: upsert returned fewer rows than sent")

// APIError is a non-2xx response from the hosted service.
type APIError struct {
	Method string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reststore: %s failed with status %d: %s", e.Method, e.Status, e.Body)
}

// Store implements services.AttachmentStore against a hosted table endpoint.
type Store struct {
	BaseURL string // e.g. https://project.example.co/rest/v1
	APIKey  string
	Table   string
	HTTP    *http.Client
}

// New returns a Store with an http.Client bounded by timeout.
func New(baseURL, apiKey, table string, timeout time.Duration) *Store {
	if table == "" {
		table = "attachments"
	}
	return &Store{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Table:   table,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

var _ services.AttachmentStore = (*Store)(nil)

// row is the snake_case wire shape of an attachment.
type row struct {
	OwnerID     string    `json:"owner_id"`
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Category    string    `json:"category"`
	PrimaryLink *string   `json:"primary_link"`
	PreviewLink *string   `json:"preview_link"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toRow(a domain.Attachment) row {
	return row{
		OwnerID:     a.OwnerID,
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Category:    string(a.Category),
		PrimaryLink: a.PrimaryLink,
		PreviewLink: a.PreviewLink,
		Position:    a.Position,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
}

func (r row) attachment() domain.Attachment {
	return domain.Attachment{
		OwnerID:     r.OwnerID,
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Category:    domain.Category(r.Category),
		PrimaryLink: r.PrimaryLink,
		PreviewLink: r.PreviewLink,
		Position:    r.Position,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// List fetches every row of ownerID.
func (s *Store) List(ctx context.Context, ownerID string) ([]domain.Attachment, error) {
	ctx, span := s.span(ctx, "List", ownerID)
	defer span.End()

	q := url.Values{}
	q.Set("select", "*")
	q.Set("owner_id", "eq."+ownerID)
	q.Set("order", "created_at.desc,position.asc,id.asc")

	var rows []row
	if err := s.do(ctx, http.MethodGet, q, nil, "", &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Attachment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.attachment())
	}
	return out, nil
}

// Apply upserts plan.Create and plan.Update in one request, verifies the
// acknowledged rows, then deletes plan.Delete. See the package comment for
// the window between the two phases.
func (s *Store) Apply(ctx context.Context, ownerID string, plan services.Plan) error {
	ctx, span := s.span(ctx, "Apply", ownerID)
	defer span.End()

	upserts := make([]row, 0, len(plan.Create)+len(plan.Update))
	for _, group := range [][]domain.Attachment{plan.Create, plan.Update} {
		for _, a := range group {
			if a.OwnerID != ownerID {
				return fmt.Errorf("reststore: row %s belongs to %q, not %q", a.ID, a.OwnerID, ownerID)
			}
			upserts = append(upserts, toRow(a))
		}
	}

	if len(upserts) > 0 {
		body, err := json.Marshal(upserts)
		if err != nil {
			return fmt.Errorf("reststore: marshal upsert: %w", err)
		}
		q := url.Values{}
		q.Set("on_conflict", "owner_id,id")
		var acked []row
		if err := s.do(ctx, http.MethodPost, q, body, "resolution=merge-duplicates,return=representation", &acked); err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		if err := verifyAck(ownerID, upserts, acked); err != nil {
			return err
		}
	}

	if len(plan.Delete) > 0 {
		q := url.Values{}
		q.Set("owner_id", "eq."+ownerID)
		q.Set("id", "in.("+quoteList(plan.Delete)+")")
		if err := s.do(ctx, http.MethodDelete, q, nil, "return=minimal", nil); err != nil {
			span.SetAttributes(attribute.Bool("reconcile.partial", true))
			return fmt.Errorf("%w: %v", services.ErrPartialApply, err)
		}
	}
	return nil
}

// verifyAck checks that every sent row came back for the right owner.
func verifyAck(ownerID string, sent, acked []row) error {
	if len(acked) < len(sent) {
		return fmt.Errorf("%w: sent %d, acknowledged %d", ErrShortUpsert, len(sent), len(acked))
	}
	seen := make(map[string]struct{}, len(acked))
	for _, r := range acked {
		if r.OwnerID == ownerID {
			seen[r.ID] = struct{}{}
		}
	}
	for _, r := range sent {
		if _, ok := seen[r.ID]; !ok {
			return fmt.Errorf("%w: %s missing", ErrShortUpsert, r.ID)
		}
	}
	return nil
}

// DeleteOne removes (ownerID, id) and reports whether a row was removed.
func (s *Store) DeleteOne(ctx context.Context, ownerID, id string) (bool, error) {
	ctx, span := s.span(ctx, "DeleteOne", ownerID)
	defer span.End()

	q := url.Values{}
	q.Set("owner_id", "eq."+ownerID)
	q.Set("id", "eq."+id)
	var gone []row
	if err := s.do(ctx, http.MethodDelete, q, nil, "return=representation", &gone); err != nil {
		return false, err
	}
	return len(gone) > 0, nil
}

// Ping issues a HEAD against the table endpoint.
func (s *Store) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("limit", "1")
	return s.do(ctx, http.MethodHead, q, nil, "", nil)
}

func (s *Store) span(ctx context.Context, name, ownerID string) (context.Context, trace.Span) {
	return otel.Tracer("store/reststore").Start(ctx, name,
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.String("rest.table", s.Table),
		),
	)
}

// do sends one request and decodes a JSON response into out (if non-nil).
func (s *Store) do(ctx context.Context, method string, q url.Values, body []byte, prefer string, out any) error {
	target := fmt.Sprintf("%s/%s?%s", s.BaseURL, url.PathEscape(s.Table), q.Encode())

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return fmt.Errorf("reststore: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if s.APIKey != "" {
		req.Header.Set("apikey", s.APIKey)
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reststore: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil || method == http.MethodHead {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("reststore: decode %s response: %w", method, err)
	}
	return nil
}

// quoteList renders ids for an in.(...) filter, double-quoting each value
// and escaping backslashes and quotes.
func quoteList(ids []string) string {
	parts := make([]string, len(ids))
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	for i, id := range ids {
		parts[i] = `"` + r.Replace(id) + `"`
	}
	return strings.Join(parts, ",")
}
