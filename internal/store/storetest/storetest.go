// Package storetest holds the behavioural suite every services.AttachmentStore
// must pass. Each backend's tests call Run with a factory that returns a
// fresh, empty store.
package storetest

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
	"github.com/tbourn/go-recruit-uploads/internal/services"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) services.AttachmentStore

// Run executes the shared reconcile suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, svc *services.UploadService, st services.AttachmentStore)
	}{
		{"EmptyToPopulated", testEmptyToPopulated},
		{"FullRemoval", testFullRemoval},
		{"MixedUpdateAndDelete", testMixedUpdateAndDelete},
		{"Idempotence", testIdempotence},
		{"SetEquality", testSetEquality},
		{"OwnerIsolation", testOwnerIsolation},
		{"InvalidCategoryLeavesStateUnchanged", testInvalidCategory},
		{"DedupFirstWins", testDedup},
		{"NullLinksRoundTrip", testNullLinks},
		{"DeleteOneIsIdempotent", testDeleteOne},
		{"SameIDAcrossOwners", testSameIDAcrossOwners},
		{"Ping", testPing},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := newStore(t)
			tc.fn(t, newService(st), st)
		})
	}
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(st services.AttachmentStore) *services.UploadService {
	n := 0
	return &services.UploadService{
		Store:      st,
		MaxUploads: 100,
		Now:        func() time.Time { return baseTime },
		NewID: func() string {
			n++
			return "srv-" + strconv.Itoa(n)
		},
	}
}

func in(id, category, name string) services.AttachmentInput {
	el := services.AttachmentInput{Category: services.S(category), DisplayName: services.S(name)}
	if id != "" {
		el.ID = services.S(id)
	}
	return el
}

func ids(rows []domain.Attachment) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	sort.Strings(out)
	return out
}

func list(t *testing.T, st services.AttachmentStore, owner string) []domain.Attachment {
	t.Helper()
	rows, err := st.List(context.Background(), owner)
	require.NoError(t, err)
	services.SortNewestFirst(rows)
	return rows
}

func reconcile(t *testing.T, svc *services.UploadService, owner string, target ...services.AttachmentInput) *services.ReconcileResult {
	t.Helper()
	if target == nil {
		target = []services.AttachmentInput{}
	}
	res, err := svc.Reconcile(context.Background(), owner, target)
	require.NoError(t, err)
	return res
}

func testEmptyToPopulated(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	res := reconcile(t, svc, "owner", in("", "video", "Goal reel"))
	require.Len(t, res.Uploads, 1)
	got := res.Uploads[0]
	assert.Equal(t, domain.CategoryVideo, got.Category)
	assert.Equal(t, "Goal reel", got.DisplayName)
	assert.NotEmpty(t, got.ID)
	assert.True(t, got.CreatedAt.Equal(baseTime), "createdAt %v", got.CreatedAt)
	assert.Equal(t, ids(res.Uploads), ids(list(t, st, "owner")))
}

func testFullRemoval(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	reconcile(t, svc, "owner", in("a", "video", "A"), in("b", "certificate", "B"), in("c", "achievement", "C"))
	require.Len(t, list(t, st, "owner"), 3)

	res := reconcile(t, svc, "owner")
	assert.Empty(t, res.Uploads)
	assert.Empty(t, list(t, st, "owner"))
}

func testMixedUpdateAndDelete(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	reconcile(t, svc, "owner", in("a", "video", "Old"), in("b", "video", "B"), in("c", "video", "C"))

	res := reconcile(t, svc, "owner", in("a", "certificate", "New"))
	require.Len(t, res.Uploads, 1)
	assert.Equal(t, "a", res.Uploads[0].ID)
	assert.Equal(t, "New", res.Uploads[0].DisplayName)
	assert.Equal(t, domain.CategoryCertificate, res.Uploads[0].Category)
	assert.Equal(t, []string{"a"}, ids(list(t, st, "owner")))
}

func testIdempotence(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	target := []services.AttachmentInput{
		in("a", "video", "one"),
		in("b", "achievement", "two"),
		{ID: services.S("c"), Category: services.S("certificate"), CreatedAt: services.S("2024-05-05T10:00:00Z"),
			PrimaryLink: services.S("https://example.com/c.pdf")},
	}
	first := reconcile(t, svc, "owner", target...)

	svc.Now = func() time.Time { return baseTime.Add(time.Hour) }
	second := reconcile(t, svc, "owner", target...)

	assert.Empty(t, second.Plan.Create)
	assert.Empty(t, second.Plan.Delete)
	assert.Len(t, second.Plan.Update, len(target))
	require.Len(t, second.Uploads, len(first.Uploads))
	for i := range first.Uploads {
		assert.True(t, first.Uploads[i].SameContent(second.Uploads[i]), "row %d: %+v vs %+v", i, first.Uploads[i], second.Uploads[i])
		assert.True(t, first.Uploads[i].UpdatedAt.Equal(second.Uploads[i].UpdatedAt), "row %d updatedAt moved", i)
	}
}

func testSetEquality(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	reconcile(t, svc, "owner", in("keep", "video", ""), in("drop", "video", ""))

	res := reconcile(t, svc, "owner", in("keep", "video", "k"), in("", "video", "anon"), in("fresh", "achievement", "f"))
	got := ids(list(t, st, "owner"))
	assert.Equal(t, ids(res.Uploads), got)
	assert.Len(t, got, 3)
	assert.Contains(t, got, "keep")
	assert.Contains(t, got, "fresh")
	assert.NotContains(t, got, "drop")
}

func testOwnerIsolation(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	reconcile(t, svc, "B", in("b1", "video", "bee"), in("b2", "certificate", "bee2"))
	before := list(t, st, "B")

	reconcile(t, svc, "A", in("a1", "video", "x"))
	reconcile(t, svc, "A")

	after := list(t, st, "B")
	require.Len(t, after, len(before))
	for i := range before {
		assert.True(t, before[i].SameContent(after[i]))
	}
}

func testInvalidCategory(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	reconcile(t, svc, "owner", in("a", "video", "keep"))
	before := list(t, st, "owner")

	_, err := svc.Reconcile(context.Background(), "owner", []services.AttachmentInput{
		in("a", "video", "changed"),
		in("", "hologram", ""),
	})
	require.Error(t, err)
	assert.True(t, services.IsValidation(err))

	after := list(t, st, "owner")
	require.Len(t, after, 1)
	assert.True(t, before[0].SameContent(after[0]))
	assert.Equal(t, "keep", after[0].DisplayName)
}

func testDedup(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	res := reconcile(t, svc, "owner", in("x", "video", "first"), in("x", "video", "second"))
	require.Len(t, res.Uploads, 1)
	assert.Equal(t, "first", res.Uploads[0].DisplayName)
}

func testNullLinks(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	el := in("l", "video", "")
	el.PrimaryLink = services.S("  ")
	el.PreviewLink = services.S(" https://cdn.example/p.png ")
	reconcile(t, svc, "owner", el)

	rows := list(t, st, "owner")
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].PrimaryLink)
	require.NotNil(t, rows[0].PreviewLink)
	assert.Equal(t, "https://cdn.example/p.png", *rows[0].PreviewLink)
}

func testDeleteOne(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	reconcile(t, svc, "owner", in("a", "video", ""), in("b", "video", ""))
	reconcile(t, svc, "other", in("a", "video", ""))

	rest, removed, err := svc.Delete(context.Background(), "owner", "a")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"b"}, ids(rest))

	rest, removed, err = svc.Delete(context.Background(), "owner", "a")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, []string{"b"}, ids(rest))

	assert.Equal(t, []string{"a"}, ids(list(t, st, "other")))
}

func testSameIDAcrossOwners(t *testing.T, svc *services.UploadService, st services.AttachmentStore) {
	reconcile(t, svc, "A", in("shared", "video", "from A"))
	reconcile(t, svc, "B", in("shared", "certificate", "from B"))

	a := list(t, st, "A")
	b := list(t, st, "B")
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, "from A", a[0].DisplayName)
	assert.Equal(t, "from B", b[0].DisplayName)
}

func testPing(t *testing.T, _ *services.UploadService, st services.AttachmentStore) {
	assert.NoError(t, st.Ping(context.Background()))
}
