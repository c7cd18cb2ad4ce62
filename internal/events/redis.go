package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher публикует события в pub/sub каналы Redis
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish отправляет все события, ошибки по отдельным событиям объединяются
func (p *RedisPublisher) Publish(ctx context.Context, evs ...Event) error {
	var errs []error
	for _, e := range evs {
		data, err := json.Marshal(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal %s: %w", e.Type, err))
			continue
		}
		if err := p.client.Publish(ctx, e.Channel(), data).Err(); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", e.Type, err))
		}
	}
	return errors.Join(errs...)
}
