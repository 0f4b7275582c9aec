package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document"
	"github.com/google/uuid"
)

// MemoryRepo is the in-memory Repository used by unit tests and by the
// service when no MongoDB URI is configured.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*document.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document)}
}

func (m *MemoryRepo) nameTaken(doc *document.Document) bool {
	for id, d := range m.store {
		if id != doc.ID && d.WorkspaceID == doc.WorkspaceID && d.Name == doc.Name {
			return true
		}
	}
	return false
}

func (m *MemoryRepo) Create(ctx context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if m.nameTaken(doc) {
		return ErrDuplicateName
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = doc.CreatedAt
	doc.Rev = 1
	m.store[doc.ID] = doc.Clone()
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		return d.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) Update(ctx context.Context, doc *document.Document, expectedRev int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[doc.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Rev != expectedRev {
		return ErrConflict
	}
	if m.nameTaken(doc) {
		return ErrDuplicateName
	}
	doc.Rev = expectedRev + 1
	m.store[doc.ID] = doc.Clone()
	return nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string, expectedRev int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	if cur.Rev != expectedRev {
		return ErrConflict
	}
	delete(m.store, id)
	return nil
}

func (m *MemoryRepo) List(ctx context.Context, f Filter) ([]*document.Document, error) {
	m.mu.RLock()
	out := []*document.Document{}
	for _, d := range m.store {
		if matches(d, f) {
			out = append(out, d.Clone())
		}
	}
	m.mu.RUnlock()

	sortBy := f.SortBy
	if !SortFields[sortBy] {
		sortBy = "createdAt"
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j], sortBy)
		if c == 0 {
			c = strings.Compare(out[i].ID, out[j].ID)
		}
		if f.Desc {
			return c > 0
		}
		return c < 0
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*document.Document{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryRepo) CountByWorkspaces(ctx context.Context, workspaceIDs []string) (int64, int64, error) {
	want := map[string]bool{}
	for _, id := range workspaceIDs {
		want[id] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var active, recycled int64
	for _, d := range m.store {
		if !want[d.WorkspaceID] {
			continue
		}
		if d.Deleted {
			recycled++
		} else {
			active++
		}
	}
	return active, recycled, nil
}

func matches(d *document.Document, f Filter) bool {
	if f.WorkspaceID != "" && d.WorkspaceID != f.WorkspaceID {
		return false
	}
	switch f.Deleted {
	case OnlyDeleted:
		if !d.Deleted {
			return false
		}
	case IncludeDeleted:
	default:
		if d.Deleted {
			return false
		}
	}
	if f.Metadata != "" && !strings.Contains(strings.ToLower(d.Metadata), strings.ToLower(f.Metadata)) {
		return false
	}
	for _, t := range f.Tags {
		found := false
		for _, have := range d.Tags {
			if have == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func compare(a, b *document.Document, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "type":
		return strings.Compare(a.MimeType, b.MimeType)
	case "version":
		return a.Version - b.Version
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}
