package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"grapevpn/keyhub/internal/model"
)

const adminSessionKeyPrefix = "keyhub:admin_session:"

type redisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) AdminSessionStore {
	return &redisSessionStore{client: client}
}

func adminSessionKey(adminID int64) string {
	return fmt.Sprintf("%s%d", adminSessionKeyPrefix, adminID)
}

func (s *redisSessionStore) Save(ctx context.Context, session *model.AdminSession, ttl time.Duration) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode admin session: %w", err)
	}
	return s.client.Set(ctx, adminSessionKey(session.AdminID), raw, ttl).Err()
}

func (s *redisSessionStore) Load(ctx context.Context, adminID int64) (*model.AdminSession, error) {
	return decodeSession(s.client.Get(ctx, adminSessionKey(adminID)).Bytes())
}

func (s *redisSessionStore) Take(ctx context.Context, adminID int64) (*model.AdminSession, error) {
	return decodeSession(s.client.GetDel(ctx, adminSessionKey(adminID)).Bytes())
}

func decodeSession(raw []byte, err error) (*model.AdminSession, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.AdminSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode admin session: %w", err)
	}
	return &session, nil
}

func (s *redisSessionStore) Clear(ctx context.Context, adminID int64) error {
	return s.client.Del(ctx, adminSessionKey(adminID)).Err()
}
