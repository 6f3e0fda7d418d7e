package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
)

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]domain.Category{
		"video":         domain.CategoryVideo,
		"  VIDEO ":      domain.CategoryVideo,
		"Certificate":   domain.CategoryCertificate,
		"ACHIEVEMENT\t": domain.CategoryAchievement,
	}
	for in, want := range cases {
		got, err := NormalizeCategory(in)
		if err != nil || got != want {
			t.Fatalf("NormalizeCategory(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "   ", "photo", "videos", "vid eo"} {
		_, err := NormalizeCategory(bad)
		var ice *InvalidCategoryError
		if !errors.As(err, &ice) || ice.Raw != bad {
			t.Fatalf("NormalizeCategory(%q) err = %v, want InvalidCategoryError", bad, err)
		}
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	fb := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", fb},
		{"   ", fb},
		{"yesterday", fb},
		{"2024-02-30", fb},
		{"2024-03-05T10:20:30Z", time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)},
		{"2024-03-05T10:20:30.123456789+02:00", time.Date(2024, 3, 5, 8, 20, 30, 123456000, time.UTC)},
		{"2024-03-05T10:20:30", time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)},
		{"2024-03-05 10:20:30", time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)},
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"1700000000000", time.UnixMilli(1700000000000).UTC()},
	}
	for _, tc := range tests {
		got := NormalizeTimestamp(tc.in, fb)
		if !got.Equal(tc.want) {
			t.Fatalf("NormalizeTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if got.Location() != time.UTC {
			t.Fatalf("NormalizeTimestamp(%q) not UTC: %v", tc.in, got.Location())
		}
	}
}

func TestLooseString_Unmarshal(t *testing.T) {
	var v struct {
		A LooseString `json:"a"`
		B LooseString `json:"b"`
		C LooseString `json:"c"`
		D LooseString `json:"d"`
		E LooseString `json:"e"`
	}
	if err := json.Unmarshal([]byte(`{"a":"x","b":12.5,"c":true,"d":null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != S("x") || v.B != S("12.5") || v.C != S("true") {
		t.Fatalf("unexpected values: %+v", v)
	}
	if v.D.Set || v.E.Set {
		t.Fatalf("null/missing should be unset: %+v / %+v", v.D, v.E)
	}

	if err := json.Unmarshal([]byte(`{"a":{"k":1}}`), &v); err == nil {
		t.Fatalf("object value should be rejected")
	}
	if err := json.Unmarshal([]byte(`{"a":[1]}`), &v); err == nil {
		t.Fatalf("array value should be rejected")
	}

	out, _ := json.Marshal(struct {
		A LooseString `json:"a"`
		B LooseString `json:"b"`
	}{A: S("q")})
	if string(out) != `{"a":"q","b":null}` {
		t.Fatalf("marshal = %s", out)
	}
}

func TestDecodeTargetList(t *testing.T) {
	for _, raw := range []string{``, `null`, `{}`, `"a"`, `3`} {
		_, err := DecodeTargetList(json.RawMessage(raw))
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Code != CodeUploadsNotList {
			t.Fatalf("DecodeTargetList(%q) err = %v, want uploads_not_list", raw, err)
		}
	}

	got, err := DecodeTargetList(json.RawMessage(` [] `))
	if err != nil || len(got) != 0 {
		t.Fatalf("empty list: %v %v", got, err)
	}

	got, err = DecodeTargetList(json.RawMessage(`[{"id":7,"displayName":"n","category":"video","primaryLink":"","createdAt":1700000000000}]`))
	if err != nil {
		t.Fatalf("DecodeTargetList: %v", err)
	}
	if got[0].ID != S("7") || got[0].Category != S("video") || got[0].CreatedAt != S("1700000000000") {
		t.Fatalf("unexpected decode: %+v", got[0])
	}

	_, err = DecodeTargetList(json.RawMessage(`[{"category":"video"}, 5]`))
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != CodeInvalidPayload || ve.Index != 1 {
		t.Fatalf("expected invalid_payload at index 1, got %v", err)
	}
	_, err = DecodeTargetList(json.RawMessage(`[{"category":{"x":1}}]`))
	if !errors.As(err, &ve) || ve.Code != CodeInvalidPayload || ve.Index != 0 {
		t.Fatalf("expected invalid_payload at index 0, got %v", err)
	}
}

func TestNormalizeAll_LinksAndIDs(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	items, err := normalizeAll("o", []AttachmentInput{
		{ID: S("  "), Category: S("video"), PrimaryLink: S("  "), PreviewLink: S(" https://p "), DisplayName: S(" keep spaces ")},
		{ID: S(" id-1 "), Category: S("achievement"), CreatedAt: S("2024-01-01")},
	}, now)
	if err != nil {
		t.Fatalf("normalizeAll: %v", err)
	}
	a, b := items[0], items[1]
	if a.ID != "" || a.PrimaryLink != nil || a.PreviewLink == nil || *a.PreviewLink != "https://p" {
		t.Fatalf("unexpected first: %+v", a)
	}
	if a.DisplayName != " keep spaces " || !a.DefaultedCreatedAt || !a.CreatedAt.Equal(now) {
		t.Fatalf("unexpected first: %+v", a)
	}
	if b.ID != "id-1" || b.DefaultedCreatedAt || b.OwnerID != "o" {
		t.Fatalf("unexpected second: %+v", b)
	}

	long := make([]byte, MaxIDLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = normalizeAll("o", []AttachmentInput{{ID: S(string(long)), Category: S("video")}}, now)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != CodeInvalidPayload {
		t.Fatalf("expected invalid_payload for long id, got %v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	e := &ValidationError{Code: CodeInvalidCategory, Message: "bad", Index: 2}
	if e.Error() != "invalid_category: uploads[2]: bad" {
		t.Fatalf("Error() = %q", e.Error())
	}
	e = invalid(CodeOwnerRequired, "owner required")
	if e.Error() != "owner_required: owner required" {
		t.Fatalf("Error() = %q", e.Error())
	}
	se := &StorageError{Op: "list", Err: errors.New("boom")}
	if se.Error() != "storage list: boom" {
		t.Fatalf("Error() = %q", se.Error())
	}
}
