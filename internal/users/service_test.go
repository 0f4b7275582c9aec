package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/apperr"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	lastUpsert *User
	upsertErr  error
}

func (f *fakeRepo) UpsertBySub(ctx context.Context, u *User) (*User, error) {
	f.lastUpsert = u
	ret := *u
	ret.CreatedAt = time.Now().UTC()
	ret.UpdatedAt = ret.CreatedAt
	return &ret, f.upsertErr
}

func (f *fakeRepo) GetBySub(ctx context.Context, sub string) (*User, error) {
	if f.lastUpsert != nil && f.lastUpsert.Sub == sub {
		u := *f.lastUpsert
		return &u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) Search(ctx context.Context, q string, limit int) ([]*User, error) {
	return nil, nil
}

func TestUpsertFromClaims(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	ctx := context.Background()
	claims := map[string]interface{}{
		"sub":                "sub-123",
		"email":              "x@example.com",
		"name":               "X User",
		"preferred_username": "xuser",
	}

	u, err := svc.UpsertFromClaims(ctx, claims)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Sub != "sub-123" {
		t.Fatalf("unexpected sub: %s", u.Sub)
	}
	if u.Email != "x@example.com" || u.Name != "X User" || u.Username != "xuser" {
		t.Fatalf("unexpected profile: %+v", u)
	}
	if repo.lastUpsert == nil {
		t.Fatal("expected repository UpsertBySub to be called")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set: %+v", u)
	}

	_, err = svc.UpsertFromClaims(ctx, map[string]interface{}{"email": "y@e.com"})
	if !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func TestExists(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	ok, err := svc.Exists(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "alice"})
	require.NoError(t, err)
	ok, err = svc.Exists(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSearchValidatesQuery(t *testing.T) {
	svc := NewService(NewMemoryUserRepository())
	_, err := svc.Search(context.Background(), "   ", 5)
	require.ErrorIs(t, err, apperr.Validation)
}
