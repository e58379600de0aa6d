package session

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tokodesk/backend/internal/domain"
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string, password string, db int, ttl time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func sessionKey(registerID string) string {
	return "pos:session:" + registerID
}

func (r *RedisStore) Load(ctx context.Context, registerID string) (*domain.PosSession, bool, error) {
	val, err := r.client.Get(ctx, sessionKey(registerID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var session domain.PosSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, false, err
	}
	return &session, true, nil
}

func (r *RedisStore) Save(ctx context.Context, session domain.PosSession) error {
	session.SavedAt = time.Now().UTC()
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(session.RegisterID), payload, r.ttl).Err()
}

func (r *RedisStore) Clear(ctx context.Context, registerID string) error {
	return r.client.Del(ctx, sessionKey(registerID)).Err()
}
