package sessions

import (
	"errors"
	"time"
)

// ErrInvalidRefresh covers unknown, expired and already-rotated refresh tokens.
var ErrInvalidRefresh = errors.New("refresh token invalid or expired")

// Session is a refresh session. The refresh token is the lookup key.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	UserID       string    `bson:"userId" json:"userId"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

func (s *Session) expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
