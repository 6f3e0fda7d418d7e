package reststore

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// fakeTable is a minimal in-memory stand-in for a PostgREST table endpoint.
// It understands the filters and Prefer headers the Store sends.
type fakeTable struct {
	mu   sync.Mutex
	rows map[string]row // owner_id + "\x00" + id

	apiKey     string
	failUpsert int // status to return for POST, 0 = ok
	failDelete int // status to return for filtered bulk DELETE, 0 = ok
	dropAck    bool

	requests []*http.Request
}

func newFakeTable(t *testing.T) (*fakeTable, *httptest.Server) {
	t.Helper()
	f := &fakeTable{rows: map[string]row{}, apiKey: "test-key"}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func key(owner, id string) string { return owner + "\x00" + id }

func (f *fakeTable) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeTable) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Clone(r.Context()))

	if r.Header.Get("apikey") != f.apiKey || r.Header.Get("Authorization") != "Bearer "+f.apiKey {
		http.Error(w, `{"message":"invalid api key"}`, http.StatusUnauthorized)
		return
	}
	if r.URL.Path != "/attachments" {
		http.Error(w, `{"message":"relation does not exist"}`, http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		out := f.match(q)
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].Position < out[j].Position
		})
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		if f.failUpsert != 0 {
			http.Error(w, `{"message":"upsert failed"}`, f.failUpsert)
			return
		}
		if q.Get("on_conflict") != "owner_id,id" || !strings.Contains(r.Header.Get("Prefer"), "resolution=merge-duplicates") {
			http.Error(w, `{"message":"duplicate key"}`, http.StatusConflict)
			return
		}
		var in []row
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rw := range in {
			if rw.Category != "video" && rw.Category != "certificate" && rw.Category != "achievement" {
				http.Error(w, `{"message":"check constraint"}`, http.StatusBadRequest)
				return
			}
		}
		for _, rw := range in {
			f.rows[key(rw.OwnerID, rw.ID)] = rw
		}
		if f.dropAck && len(in) > 0 {
			in = in[1:]
		}
		writeJSON(w, http.StatusCreated, in)
	case http.MethodDelete:
		bulk := strings.HasPrefix(q.Get("id"), "in.")
		if bulk && f.failDelete != 0 {
			http.Error(w, `{"message":"delete failed"}`, f.failDelete)
			return
		}
		gone := f.match(q)
		for _, rw := range gone {
			delete(f.rows, key(rw.OwnerID, rw.ID))
		}
		if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
			writeJSON(w, http.StatusOK, gone)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// match applies owner_id=eq.X and id=eq.Y / id=in.(...) filters.
func (f *fakeTable) match(q map[string][]string) []row {
	owner := strings.TrimPrefix(first(q["owner_id"]), "eq.")
	idFilter := first(q["id"])
	var ids map[string]bool
	switch {
	case strings.HasPrefix(idFilter, "eq."):
		ids = map[string]bool{strings.TrimPrefix(idFilter, "eq."): true}
	case strings.HasPrefix(idFilter, "in."):
		ids = map[string]bool{}
		for _, v := range parseInList(strings.TrimSuffix(strings.TrimPrefix(idFilter, "in.("), ")")) {
			ids[v] = true
		}
	}
	out := []row{}
	for _, rw := range f.rows {
		if rw.OwnerID != owner {
			continue
		}
		if ids != nil && !ids[rw.ID] {
			continue
		}
		out = append(out, rw)
	}
	return out
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// parseInList splits `"a","b\"c"` into its unescaped values.
func parseInList(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
		escaped bool
	)
	for _, c := range s {
		switch {
		case escaped:
			cur.WriteRune(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	if cur.Len() > 0 || len(out) > 0 {
		out = append(out, cur.String())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
