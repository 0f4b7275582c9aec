package users

import (
	"context"
	"errors"
	"strings"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/apperr"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// ErrMissingSubject is returned when claims carry no "sub".
var ErrMissingSubject = errors.New("claims missing sub")

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// UpsertFromClaims creates or updates a user using OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*User, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrMissingSubject
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	username, _ := claims["preferred_username"].(string)
	return s.repo.UpsertBySub(ctx, &User{
		Sub:      sub,
		Username: username,
		Email:    email,
		Name:     name,
	})
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// Exists reports whether id belongs to a known user. Workspace membership
// changes call it before adding a collaborator.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.GetBySub(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Search looks users up by name, email or username prefix for the
// collaborator picker.
func (s *Service) Search(ctx context.Context, q string, limit int) ([]*User, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.NewValidation("missing_query", "search query is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return s.repo.Search(ctx, q, limit)
}
