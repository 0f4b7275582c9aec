package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps each session in a hash at <prefix><sha256(refresh)>,
// expiring at the session's ExpiresAt. The refresh token itself is never
// written to Redis.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository returns a repository using prefix for its keys, or
// "docvault:session:" when prefix is empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "docvault:session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(refresh string) string {
	sum := sha256.Sum256([]byte(refresh))
	return r.prefix + hex.EncodeToString(sum[:])
}

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	k := r.key(s.RefreshToken)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k,
			"id", s.ID,
			"userId", s.UserID,
			"createdAt", s.CreatedAt.UTC().Format(time.RFC3339Nano),
			"expiresAt", s.ExpiresAt.UTC().Format(time.RFC3339Nano))
		p.ExpireAt(ctx, k, s.ExpiresAt)
		return nil
	})
	return err
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	fields, err := r.client.HGetAll(ctx, r.key(refresh)).Result()
	if err != nil {
		return nil, err
	}
	return decodeSession(refresh, fields)
}

// Consume reads and deletes the session in one MULTI, so concurrent
// rotations of the same refresh token see it at most once.
func (r *RedisRepository) Consume(ctx context.Context, refresh string) (*Session, error) {
	k := r.key(refresh)
	var get *redis.MapStringStringCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		get = p.HGetAll(ctx, k)
		p.Del(ctx, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeSession(refresh, get.Val())
}

// DeleteByRefresh treats a missing key as success.
func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	return r.client.Del(ctx, r.key(refresh)).Err()
}

func decodeSession(refresh string, fields map[string]string) (*Session, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	s := &Session{ID: fields["id"], RefreshToken: refresh, UserID: fields["userId"]}
	var err error
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["createdAt"]); err != nil {
		return nil, fmt.Errorf("session createdAt: %w", err)
	}
	if s.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expiresAt"]); err != nil {
		return nil, fmt.Errorf("session expiresAt: %w", err)
	}
	return s, nil
}
