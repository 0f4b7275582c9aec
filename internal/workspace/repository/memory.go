package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace"
	"github.com/google/uuid"
)

// MemoryRepo is the in-memory Repository used by unit tests and by the
// service when no MongoDB URI is configured.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*workspace.Workspace
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*workspace.Workspace)}
}

func (m *MemoryRepo) Create(ctx context.Context, ws *workspace.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.store {
		if w.Name == ws.Name {
			return ErrDuplicateName
		}
	}
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ws.CreatedAt = now
	ws.UpdatedAt = now
	ws.Rev = 1
	m.store[ws.ID] = ws.Clone()
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.store[id]; ok {
		return w.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) Update(ctx context.Context, ws *workspace.Workspace, expectedRev int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[ws.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Rev != expectedRev {
		return ErrConflict
	}
	for id, w := range m.store {
		if id != ws.ID && w.Name == ws.Name {
			return ErrDuplicateName
		}
	}
	ws.Rev = expectedRev + 1
	ws.UpdatedAt = time.Now().UTC()
	m.store[ws.ID] = ws.Clone()
	return nil
}

func (m *MemoryRepo) ListForUser(ctx context.Context, userID string) ([]*workspace.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*workspace.Workspace{}
	for _, w := range m.store {
		if w.Deleted {
			continue
		}
		if w.RoleOf(userID) != "" {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
