package eventbus

import (
	"context"
	"fmt"
	"sync"
)

// MockBus 内存事件总线（测试用）
type MockBus struct {
	mu     sync.Mutex
	events []*PlacementEvent

	// FailPublish 为 true 时 PublishPlacement 返回错误
	FailPublish bool
}

// NewMockBus 创建内存事件总线
func NewMockBus() *MockBus {
	return &MockBus{}
}

// PublishPlacement 记录事件到内存
func (m *MockBus) PublishPlacement(ctx context.Context, event *PlacementEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPublish {
		return fmt.Errorf("mock eventbus: publish failed")
	}

	event.ID = fmt.Sprintf("%d-0", len(m.events)+1)
	m.events = append(m.events, event)
	return nil
}

// Recent 返回最近记录的事件（新到旧）
func (m *MockBus) Recent(ctx context.Context, count int64) ([]*PlacementEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*PlacementEvent, 0, count)
	for i := len(m.events) - 1; i >= 0 && int64(len(out)) < count; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// Events 返回已记录事件的副本
func (m *MockBus) Events() []*PlacementEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*PlacementEvent, len(m.events))
	copy(out, m.events)
	return out
}
