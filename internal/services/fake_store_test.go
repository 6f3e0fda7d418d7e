package services

import (
	"context"
	"sync"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
)

// memStore is an in-memory AttachmentStore with call counters and error
// injection for service tests.
type memStore struct {
	mu   sync.Mutex
	rows map[string]map[string]domain.Attachment // owner -> id -> row

	listCalls  int
	applyCalls int
	lastPlan   Plan

	listErr   error
	applyErr  error
	deleteErr error
	pingErr   error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]map[string]domain.Attachment{}}
}

func (m *memStore) seed(rows ...domain.Attachment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		if m.rows[r.OwnerID] == nil {
			m.rows[r.OwnerID] = map[string]domain.Attachment{}
		}
		m.rows[r.OwnerID][r.ID] = r
	}
}

func (m *memStore) snapshot(owner string) map[string]domain.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.Attachment{}
	for k, v := range m.rows[owner] {
		out[k] = v
	}
	return out
}

func (m *memStore) List(_ context.Context, owner string) ([]domain.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []domain.Attachment{}
	for _, r := range m.rows[owner] {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) Apply(_ context.Context, owner string, p Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	m.lastPlan = p
	if m.applyErr != nil {
		return m.applyErr
	}
	if m.rows[owner] == nil {
		m.rows[owner] = map[string]domain.Attachment{}
	}
	for _, a := range p.Create {
		m.rows[owner][a.ID] = a
	}
	for _, a := range p.Update {
		m.rows[owner][a.ID] = a
	}
	for _, id := range p.Delete {
		delete(m.rows[owner], id)
	}
	return nil
}

func (m *memStore) DeleteOne(_ context.Context, owner, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	_, ok := m.rows[owner][id]
	delete(m.rows[owner], id)
	return ok, nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }
