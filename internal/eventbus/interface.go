// Package eventbus 安置事件总线抽象
//
// 每次安置决定可以作为事件发布给外部订阅者（审计面板、告警），
// 调用方只依赖接口；具体实现在子包 redis/ 中，测试使用 mock。
package eventbus

import (
	"context"
	"time"
)

// 流配置
const (
	// KeyPlacementEvents 安置事件流的 Redis key
	KeyPlacementEvents = "buildpool:events:placements"

	// MaxStreamLength 流的近似最大长度（超出后旧事件被裁剪）
	MaxStreamLength = 10000
)

// PlacementEvent 单次安置决定
type PlacementEvent struct {
	ID         string    `json:"id,omitempty"` // 流消息 ID（发布后由实现填充）
	Pool       string    `json:"pool"`
	Label      string    `json:"label"`  // 任务的标签表达式文本
	Result     string    `json:"result"` // provisioned / no_capacity / not_applicable
	Image      string    `json:"image,omitempty"`
	Host       string    `json:"host,omitempty"`
	Slave      string    `json:"slave,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// PlacementEventBus 安置事件总线接口
type PlacementEventBus interface {
	// PublishPlacement 发布一条安置事件
	PublishPlacement(ctx context.Context, event *PlacementEvent) error

	// Recent 读取最近发布的安置事件（新到旧）
	Recent(ctx context.Context, count int64) ([]*PlacementEvent, error)
}
