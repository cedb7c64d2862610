// Package redis 安置事件总线的 Redis Streams 实现
package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"buildpool/internal/eventbus"
)

// Bus Redis Streams 事件总线
type Bus struct {
	client *redis.Client
}

var _ eventbus.PlacementEventBus = (*Bus)(nil)

// NewBus 由已有 Redis 客户端创建事件总线
func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

// Open 按 URL 连接 Redis 并创建事件总线
//
// url 示例: redis://localhost:6379/0
func Open(url string) (*Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Bus{client: client}, nil
}

// Close 关闭底层连接
func (b *Bus) Close() error {
	return b.client.Close()
}

// PublishPlacement 发布安置事件到流
func (b *Bus) PublishPlacement(ctx context.Context, event *eventbus.PlacementEvent) error {
	args := &redis.XAddArgs{
		Stream: eventbus.KeyPlacementEvents,
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"pool":        event.Pool,
			"label":       event.Label,
			"result":      event.Result,
			"image":       event.Image,
			"host":        event.Host,
			"slave":       event.Slave,
			"duration_ms": event.DurationMS,
			"timestamp":   event.Timestamp.Format(time.RFC3339Nano),
		},
	}

	id, err := b.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("publish placement event: %w", err)
	}

	event.ID = id
	log.Printf("[eventbus.placement] published seq=%s result=%s host=%s", id, event.Result, event.Host)
	return nil
}

// Recent 读取最近的安置事件（新到旧）
func (b *Bus) Recent(ctx context.Context, count int64) ([]*eventbus.PlacementEvent, error) {
	msgs, err := b.client.XRevRangeN(ctx, eventbus.KeyPlacementEvents, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("read placement events: %w", err)
	}

	events := make([]*eventbus.PlacementEvent, 0, len(msgs))
	for _, msg := range msgs {
		ev := &eventbus.PlacementEvent{ID: msg.ID}
		if v, ok := msg.Values["pool"].(string); ok {
			ev.Pool = v
		}
		if v, ok := msg.Values["label"].(string); ok {
			ev.Label = v
		}
		if v, ok := msg.Values["result"].(string); ok {
			ev.Result = v
		}
		if v, ok := msg.Values["image"].(string); ok {
			ev.Image = v
		}
		if v, ok := msg.Values["host"].(string); ok {
			ev.Host = v
		}
		if v, ok := msg.Values["slave"].(string); ok {
			ev.Slave = v
		}
		if v, ok := msg.Values["duration_ms"].(string); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				ev.DurationMS = n
			}
		}
		if v, ok := msg.Values["timestamp"].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				ev.Timestamp = t
			}
		}
		events = append(events, ev)
	}
	return events, nil
}
