package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service issues, validates and rotates refresh sessions.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service {
	return &Service{repo: r, now: func() time.Time { return time.Now().UTC() }}
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateSession stores a new refresh session and returns the refresh token.
func (s *Service) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	tok, err := newRefreshToken()
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	now := s.now()
	sess := &Session{ID: uuid.NewString(), RefreshToken: tok, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return tok, nil
}

// ValidateRefresh returns the live session for refresh or ErrInvalidRefresh.
func (s *Service) ValidateRefresh(ctx context.Context, refresh string) (*Session, error) {
	if refresh == "" {
		return nil, ErrInvalidRefresh
	}
	sess, err := s.repo.GetByRefresh(ctx, refresh)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidRefresh
	}
	if sess.expired(s.now()) {
		_ = s.repo.DeleteByRefresh(ctx, refresh)
		return nil, ErrInvalidRefresh
	}
	return sess, nil
}

// consumer is implemented by repositories that can read and delete a session
// atomically.
type consumer interface {
	Consume(ctx context.Context, refresh string) (*Session, error)
}

// Rotate consumes refresh and issues a replacement for the same user, so a
// refresh token works once.
func (s *Service) Rotate(ctx context.Context, refresh string, ttl time.Duration) (*Session, string, error) {
	sess, err := s.take(ctx, refresh)
	if err != nil {
		return nil, "", err
	}
	next, err := s.CreateSession(ctx, sess.UserID, ttl)
	if err != nil {
		return nil, "", err
	}
	return sess, next, nil
}

func (s *Service) take(ctx context.Context, refresh string) (*Session, error) {
	c, ok := s.repo.(consumer)
	if !ok {
		sess, err := s.ValidateRefresh(ctx, refresh)
		if err != nil {
			return nil, err
		}
		if err := s.repo.DeleteByRefresh(ctx, refresh); err != nil {
			return nil, fmt.Errorf("drop old session: %w", err)
		}
		return sess, nil
	}
	if refresh == "" {
		return nil, ErrInvalidRefresh
	}
	sess, err := c.Consume(ctx, refresh)
	if err != nil {
		return nil, fmt.Errorf("consume session: %w", err)
	}
	if sess == nil || sess.expired(s.now()) {
		return nil, ErrInvalidRefresh
	}
	return sess, nil
}

func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	return s.repo.DeleteByRefresh(ctx, refresh)
}
