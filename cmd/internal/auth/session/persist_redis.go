package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores tokens under a per-profile key in Redis.
type RedisPersister struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisPersister connects to redisURL and verifies the connection.
func NewRedisPersister(redisURL, profile string, ttl time.Duration) (*RedisPersister, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisPersisterWithClient(client, profile, ttl), nil
}

// NewRedisPersisterWithClient wraps an existing client.
func NewRedisPersisterWithClient(client *redis.Client, profile string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{
		client: client,
		key:    "debtease:session:" + profile,
		ttl:    ttl,
	}
}

func (p *RedisPersister) Key() string { return p.key }

func (p *RedisPersister) Load(ctx context.Context) (Tokens, error) {
	raw, err := p.client.Get(ctx, p.key).Result()
	if errors.Is(err, redis.Nil) {
		return Tokens{}, ErrNoSavedSession
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("load session: %w", err)
	}

	var t Tokens
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Tokens{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return t, nil
}

func (p *RedisPersister) Save(ctx context.Context, t Tokens) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := p.client.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (p *RedisPersister) Clear(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (p *RedisPersister) Close() error {
	return p.client.Close()
}
