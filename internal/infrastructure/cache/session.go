package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore 登录会话存储
// token -> userID，带 TTL，登出即删除
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

var ErrSessionNotFound = errors.New("会话不存在或已过期")

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:token:%s", token)
}

func (s *SessionStore) Save(ctx context.Context, token string, userID int64) error {
	return s.client.Set(ctx, sessionKey(token), userID, s.ttl).Err()
}

func (s *SessionStore) Resolve(ctx context.Context, token string) (int64, error) {
	val, err := s.client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrSessionNotFound
		}
		return 0, err
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, ErrSessionNotFound
	}
	return userID, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}
