package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryUserRepository keeps users in process for tests and the
// no-database development mode.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: map[string]User{}}
}

func (r *MemoryUserRepository) UpsertBySub(ctx context.Context, u *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	next := *u
	if prev, ok := r.users[u.Sub]; ok {
		next.CreatedAt = prev.CreatedAt
	} else {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	r.users[u.Sub] = next
	out := next
	return &out, nil
}

func (r *MemoryUserRepository) GetBySub(ctx context.Context, sub string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[sub]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) Search(ctx context.Context, q string, limit int) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q = strings.ToLower(q)
	out := []*User{}
	for _, u := range r.users {
		if hasPrefixFold(u.Name, q) || hasPrefixFold(u.Email, q) || hasPrefixFold(u.Username, q) {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func hasPrefixFold(s, lowerPrefix string) bool {
	return strings.HasPrefix(strings.ToLower(s), lowerPrefix)
}
