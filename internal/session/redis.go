package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKey     = "admin:session"
	credentialsKey = "admin:credentials"
)

// RedisRepository keeps the session records in Redis so they survive
// process restarts, mirroring what the browser kept in local storage.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) SetSession(ctx context.Context, active bool) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if !active {
		if err := r.client.Del(ctx, sessionKey).Err(); err != nil {
			return fmt.Errorf("failed to clear session flag: %w", err)
		}
		return nil
	}
	// No expiry: the session lasts until an explicit logout.
	if err := r.client.Set(ctx, sessionKey, "true", 0).Err(); err != nil {
		return fmt.Errorf("failed to set session flag: %w", err)
	}
	return nil
}

func (r *RedisRepository) Session(ctx context.Context) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, sessionKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session flag: %w", err)
	}
	return val == "true", nil
}

func (r *RedisRepository) SaveCredentials(ctx context.Context, creds *Credentials) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := r.client.Set(ctx, credentialsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (r *RedisRepository) Credentials(ctx context.Context) (*Credentials, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, credentialsKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(val), &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &creds, nil
}

func (r *RedisRepository) ClearCredentials(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, credentialsKey).Err(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection at startup.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
