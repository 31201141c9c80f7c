package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisDocuments struct {
	client *redis.Client
	prefix string
}

func NewRedisDocuments(ctx context.Context, url, prefix string) (*RedisDocuments, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	d := &RedisDocuments{client: redis.NewClient(opts), prefix: prefix}
	if err := d.Ping(ctx); err != nil {
		_ = d.client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return d, nil
}

func (d *RedisDocuments) key(name string) string { return d.prefix + name }

func (d *RedisDocuments) Get(ctx context.Context, name string) ([]byte, error) {
	b, err := d.client.Get(ctx, d.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (d *RedisDocuments) Put(ctx context.Context, name string, body []byte) error {
	return d.client.Set(ctx, d.key(name), body, 0).Err()
}

func (d *RedisDocuments) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.client.Ping(ctx).Err()
}

func (d *RedisDocuments) Close() error {
	return d.client.Close()
}
