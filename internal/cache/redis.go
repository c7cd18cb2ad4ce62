// Package cache кэш производных представлений движка (сводки прогресса студентов).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss ключ не найден
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrCacheKeyEmpty пустой ключ
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// Config параметры подключения к Redis
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Redis JSON кэш поверх go-redis
type Redis struct {
	client *redis.Client
}

// NewRedis подключается к Redis и проверяет соединение
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{client: client}, nil
}

// Client возвращает клиент для pub/sub
func (c *Redis) Client() *redis.Client {
	return c.client
}

// Close закрывает соединения
func (c *Redis) Close() error {
	return c.client.Close()
}

// Get читает значение и декодирует его в dest
func (c *Redis) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Set записывает значение с TTL
func (c *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.SetWith(ctx, c.client, key, value, ttl)
}

// SetWith кодирует значение и пишет его через переданный клиент (например, пайплайн транзакции)
func (c *Redis) SetWith(ctx context.Context, cmd redis.Cmdable, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	return cmd.Set(ctx, key, data, ttl).Err()
}

// Delete удаляет ключи
func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
