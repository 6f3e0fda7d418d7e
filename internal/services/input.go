package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
)

// MaxIDLength bounds owner and attachment identifiers (bytes).
const MaxIDLength = 128

// LooseString accepts a JSON string, number, boolean or null and keeps its
// textual form. Objects and arrays are rejected. Set is false for null or a
// missing field.
type LooseString struct {
	Value string
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*l = LooseString{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LooseString{Value: s, Set: true}
		return nil
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("expected a scalar, got %s", jsonKind(b[0]))
	default:
		// numbers and true/false keep their literal text
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*l = LooseString{Value: string(b), Set: true}
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (l LooseString) MarshalJSON() ([]byte, error) {
	if !l.Set {
		return []byte("null"), nil
	}
	return json.Marshal(l.Value)
}

// S builds a set LooseString. Handy for callers constructing inputs in code.
func S(v string) LooseString { return LooseString{Value: v, Set: true} }

func jsonKind(c byte) string {
	if c == '{' {
		return "object"
	}
	return "array"
}

// AttachmentInput is one element of a client-submitted target list, before
// normalization. Every field is optional at the decoding stage.
type AttachmentInput struct {
	ID          LooseString `json:"id"`
	DisplayName LooseString `json:"displayName"`
	Category    LooseString `json:"category"`
	PrimaryLink LooseString `json:"primaryLink"`
	PreviewLink LooseString `json:"previewLink"`
	CreatedAt   LooseString `json:"createdAt"`
}

// DecodeTargetList decodes the raw "uploads" value of a request body. A
// missing value, null, or any non-array JSON value fails with code
// uploads_not_list. Elements that are not objects, or carry non-scalar
// fields, fail with invalid_payload and the element index.
func DecodeTargetList(raw json.RawMessage) ([]AttachmentInput, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, invalid(CodeUploadsNotList, "uploads must be a list")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, &ValidationError{Code: CodeUploadsNotList, Message: "uploads must be a list", Index: -1, Err: err}
	}
	out := make([]AttachmentInput, len(elems))
	for i, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 || e[0] != '{' {
			return nil, &ValidationError{Code: CodeInvalidPayload, Message: "element must be an object", Index: i}
		}
		if err := json.Unmarshal(e, &out[i]); err != nil {
			return nil, &ValidationError{Code: CodeInvalidPayload, Message: "malformed element", Index: i, Err: err}
		}
	}
	return out, nil
}

// normalized is an AttachmentInput after validation. ID is empty when the
// client did not supply one. DefaultedCreatedAt marks rows whose timestamp
// was substituted with the call start time.
type normalized struct {
	domain.Attachment
	DefaultedCreatedAt bool
}

// normalizeAll validates and normalizes every element before any I/O. The
// first invalid category aborts the whole call.
func normalizeAll(ownerID string, in []AttachmentInput, now time.Time) ([]normalized, error) {
	out := make([]normalized, 0, len(in))
	for i, el := range in {
		cat, err := NormalizeCategory(el.Category.Value)
		if err != nil {
			return nil, &ValidationError{Code: CodeInvalidCategory, Message: err.Error(), Index: i, Err: err}
		}
		id := strings.TrimSpace(el.ID.Value)
		if len(id) > MaxIDLength {
			return nil, &ValidationError{Code: CodeInvalidPayload, Message: "id too long", Index: i}
		}
		n := normalized{Attachment: domain.Attachment{
			OwnerID:     ownerID,
			ID:          id,
			DisplayName: el.DisplayName.Value,
			Category:    cat,
			PrimaryLink: optionalLink(el.PrimaryLink),
			PreviewLink: optionalLink(el.PreviewLink),
		}}
		if ts, ok := parseTimestamp(el.CreatedAt.Value); ok {
			n.CreatedAt = ts
		} else {
			n.CreatedAt = now
			n.DefaultedCreatedAt = true
		}
		out = append(out, n)
	}
	return out, nil
}

// optionalLink trims a link; blank becomes nil.
func optionalLink(l LooseString) *string {
	v := strings.TrimSpace(l.Value)
	if v == "" {
		return nil
	}
	return &v
}
