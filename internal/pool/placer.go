package pool

import (
	"context"
	"log"
	"time"

	"buildpool/internal/eventbus"
	"buildpool/internal/label"
)

// Placer 任务安置引擎
//
// 由外部调度器按任务同步调用：先问 CanPlace（本池能否满足该任务），
// 再调 Place（真正开通执行槽）。两者共用同一套候选构造逻辑，
// 保证"可安置"与"已安置"的判定永不分叉。
//
// 每次调用运行到完成，不支持中途取消；内部无并行。
type Placer struct {
	settings Settings
	hosts    HostLister

	metrics *Metrics                   // 可选
	bus     eventbus.PlacementEventBus // 可选
}

// NewPlacer 创建安置引擎
func NewPlacer(settings Settings, hosts HostLister) *Placer {
	return &Placer{settings: settings, hosts: hosts}
}

// SetMetrics 启用 Prometheus 指标
func (p *Placer) SetMetrics(m *Metrics) {
	p.metrics = m
}

// SetEventBus 启用安置事件发布
func (p *Placer) SetEventBus(bus eventbus.PlacementEventBus) {
	p.bus = bus
}

// Settings 返回池配置
func (p *Placer) Settings() Settings {
	return p.settings
}

// HostCapacities 返回当前可用主机的剩余容量快照（按剩余容量降序）
//
// 供 HTTP API 与 WebSocket 监控查询，不触发任何开通动作。
func (p *Placer) HostCapacities(ctx context.Context) []HostCapacity {
	ranked := rankHosts(ctx, p.hosts.ListHosts(ctx), p.settings.MaxExecutors, p.metrics)
	out := make([]HostCapacity, 0, len(ranked))
	for _, hc := range ranked {
		out = append(out, HostCapacity{Addr: hc.host.Addr(), Capacity: hc.capacity})
	}
	return out
}

// candidate 匹配成功的候选：镜像名及其派生标签集合
type candidate struct {
	image  string
	labels label.Set
}

// matchCandidate 扫描候选镜像，返回首个派生标签集合满足表达式的候选
//
// 先按树遍历顺序尝试任务自带的 docker/<image> 原子
// （派生集合 = 该原子 ∪ 池容量标签），再按声明顺序尝试预注册镜像
// （派生集合 = 合成镜像标签 ∪ 镜像额外标签 ∪ 池容量标签）。
// 首个匹配即返回，不再扫描后续候选（first-match 策略）。
func (p *Placer) matchCandidate(expr label.Expression) (candidate, bool) {
	for _, atom := range label.ImageCandidates(expr) {
		derived := p.settings.CapacityLabels.Union(label.NewSet(atom))
		if expr.Matches(derived) {
			return candidate{image: label.ImageName(atom), labels: derived}, true
		}
	}

	for _, img := range p.settings.Images {
		derived := p.settings.CapacityLabels.Union(img.Labels).Union(label.NewSet(img.Atom()))
		if expr.Matches(derived) {
			return candidate{image: img.Image, labels: derived}, true
		}
	}

	return candidate{}, false
}

// CanPlace 判断本池能否满足任务的标签表达式
//
// 外部调度器应先用本方法筛选，再对返回 true 的池调用 Place。
func (p *Placer) CanPlace(expr label.Expression) bool {
	if expr == nil {
		return false
	}
	_, ok := p.matchCandidate(expr)
	return ok
}

// Place 为任务开通执行槽
//
// 无标签限制或无候选匹配 → NotApplicable；
// 匹配到镜像但排名主机全部开通失败/无剩余容量 → NoCapacity；
// 某台主机开通成功 → Provisioned，立即返回不再尝试后续主机。
func (p *Placer) Place(ctx context.Context, expr label.Expression) Result {
	start := time.Now()

	result := p.place(ctx, expr)

	duration := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordPlacement(result.Kind, duration)
	}
	p.publishEvent(ctx, expr, result, duration)
	return result
}

func (p *Placer) place(ctx context.Context, expr label.Expression) Result {
	if expr == nil {
		return NotApplicable()
	}

	c, ok := p.matchCandidate(expr)
	if !ok {
		return NotApplicable()
	}

	return p.provision(ctx, c)
}

// provision 按剩余容量降序逐台尝试开通
//
// 单台主机的 IO 错误记警告后继续下一台，不中断整次安置；
// 排名列表耗尽仍未成功则报告容量耗尽。
func (p *Placer) provision(ctx context.Context, c candidate) Result {
	for _, hc := range rankHosts(ctx, p.hosts.ListHosts(ctx), p.settings.MaxExecutors, p.metrics) {
		log.Printf("[pool.place.attempt] pool=%s host=%s capacity=%d image=%s",
			p.settings.Name, hc.host.Addr(), hc.capacity, c.image)

		slave, err := hc.host.Provision(ctx, c.image, c.labels, p.settings.Bindings)
		if err != nil {
			log.Printf("[pool.place.failed] pool=%s host=%s error=%v", p.settings.Name, hc.host.Addr(), err)
			if p.metrics != nil {
				p.metrics.RecordProvisionAttempt(false)
			}
			continue
		}

		log.Printf("[pool.place.provisioned] pool=%s host=%s slave=%s", p.settings.Name, hc.host.Addr(), slave.Name)
		if p.metrics != nil {
			p.metrics.RecordProvisionAttempt(true)
		}
		return Provisioned(slave)
	}

	return NoCapacity()
}

// publishEvent 发布安置事件（失败只记日志，不影响结果）
func (p *Placer) publishEvent(ctx context.Context, expr label.Expression, result Result, duration time.Duration) {
	if p.bus == nil {
		return
	}

	event := &eventbus.PlacementEvent{
		Pool:       p.settings.Name,
		Result:     string(result.Kind),
		DurationMS: duration.Milliseconds(),
		Timestamp:  time.Now(),
	}
	if expr != nil {
		event.Label = expr.String()
	}
	if result.Slave != nil {
		event.Image = result.Slave.Image
		event.Host = result.Slave.HostAddr
		event.Slave = result.Slave.Name
	}

	if err := p.bus.PublishPlacement(ctx, event); err != nil {
		log.Printf("[pool.place.event_failed] pool=%s error=%v", p.settings.Name, err)
	}
}
