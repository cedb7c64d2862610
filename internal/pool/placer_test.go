// Package pool 安置引擎测试
package pool

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildpool/internal/binding"
	"buildpool/internal/eventbus"
	"buildpool/internal/label"
)

func mustParse(t *testing.T, s string) label.Expression {
	t.Helper()
	expr, err := label.Parse(s)
	require.NoError(t, err)
	return expr
}

func testSettings() Settings {
	return Settings{
		Name:           "test-pool",
		CapacityLabels: label.NewSet("linux"),
		MaxExecutors:   4,
	}
}

// TestPlace_LeastBusyHostFirst 两台主机剩余容量 3 和 1，安置落在空闲主机
func TestPlace_LeastBusyHostFirst(t *testing.T) {
	busy := &fakeHost{addr: "busy", running: 3} // 剩余 1
	idle := &fakeHost{addr: "idle", running: 1} // 剩余 3
	placer := NewPlacer(testSettings(), StaticHosts{busy, idle})

	result := placer.Place(context.Background(), mustParse(t, "docker/ubuntu && linux"))

	require.Equal(t, ResultProvisioned, result.Kind)
	require.NotNil(t, result.Slave)
	assert.Equal(t, "idle", result.Slave.HostAddr)
	assert.Equal(t, "ubuntu", result.Slave.Image)
	assert.True(t, result.Slave.Labels.Contains("docker/ubuntu"))
	assert.True(t, result.Slave.Labels.Contains("linux"))
	assert.Equal(t, 0, busy.provisionCalls)
}

// TestPlace_NilExpression 无标签限制 → 不归属本池
func TestPlace_NilExpression(t *testing.T) {
	placer := NewPlacer(testSettings(), StaticHosts{&fakeHost{addr: "h"}})

	result := placer.Place(context.Background(), nil)
	assert.Equal(t, ResultNotApplicable, result.Kind)
	assert.Nil(t, result.Slave)
}

// TestPlace_NoCandidateMatch 无镜像原子且无预注册镜像匹配 → 不归属
func TestPlace_NoCandidateMatch(t *testing.T) {
	h := &fakeHost{addr: "h"}
	placer := NewPlacer(testSettings(), StaticHosts{h})

	result := placer.Place(context.Background(), mustParse(t, "windows && msvc"))
	assert.Equal(t, ResultNotApplicable, result.Kind)
	assert.Equal(t, 0, h.provisionCalls)
}

// TestPlace_ExpressionRejectsCandidate 镜像原子存在但表达式整体不满足 → 不归属
func TestPlace_ExpressionRejectsCandidate(t *testing.T) {
	placer := NewPlacer(testSettings(), StaticHosts{&fakeHost{addr: "h"}})

	// 派生集合 {docker/ubuntu, linux} 不含 windows
	result := placer.Place(context.Background(), mustParse(t, "docker/ubuntu && windows"))
	assert.Equal(t, ResultNotApplicable, result.Kind)
}

// TestPlace_FirstMatchWins 首个满足表达式的候选镜像生效，不再扫描后续候选
func TestPlace_FirstMatchWins(t *testing.T) {
	placer := NewPlacer(testSettings(), StaticHosts{&fakeHost{addr: "h"}})

	result := placer.Place(context.Background(), mustParse(t, "docker/first || docker/second"))
	require.Equal(t, ResultProvisioned, result.Kind)
	assert.Equal(t, "first", result.Slave.Image)
}

// TestPlace_PreconfiguredImage 任务未写镜像原子，通过预注册镜像匹配
func TestPlace_PreconfiguredImage(t *testing.T) {
	settings := testSettings()
	settings.Images = []PreconfiguredImage{
		{Image: "node:22", Labels: label.NewSet("nodejs")},
		{Image: "golang:1.24", Labels: label.NewSet("golang")},
	}
	placer := NewPlacer(settings, StaticHosts{&fakeHost{addr: "h"}})

	result := placer.Place(context.Background(), mustParse(t, "golang && linux"))
	require.Equal(t, ResultProvisioned, result.Kind)
	assert.Equal(t, "golang:1.24", result.Slave.Image)
	assert.True(t, result.Slave.Labels.Contains("golang"))
	assert.True(t, result.Slave.Labels.Contains("docker/golang:1.24"))
}

// TestPlace_PreconfiguredDeclaredOrder 预注册镜像按声明顺序尝试
func TestPlace_PreconfiguredDeclaredOrder(t *testing.T) {
	settings := testSettings()
	settings.Images = []PreconfiguredImage{
		{Image: "img-a", Labels: label.NewSet("build")},
		{Image: "img-b", Labels: label.NewSet("build")},
	}
	placer := NewPlacer(settings, StaticHosts{&fakeHost{addr: "h"}})

	result := placer.Place(context.Background(), mustParse(t, "build"))
	require.Equal(t, ResultProvisioned, result.Kind)
	assert.Equal(t, "img-a", result.Slave.Image)
}

// TestPlace_JobImageBeforePreconfigured 任务自带镜像原子优先于预注册镜像
func TestPlace_JobImageBeforePreconfigured(t *testing.T) {
	settings := testSettings()
	settings.Images = []PreconfiguredImage{{Image: "fallback", Labels: label.NewSet("linux")}}
	placer := NewPlacer(settings, StaticHosts{&fakeHost{addr: "h"}})

	result := placer.Place(context.Background(), mustParse(t, "docker/primary && linux"))
	require.Equal(t, ResultProvisioned, result.Kind)
	assert.Equal(t, "primary", result.Slave.Image)
}

// TestPlace_FallsThroughFailedHosts 单机 IO 错误跳过，继续下一台
func TestPlace_FallsThroughFailedHosts(t *testing.T) {
	bad := &fakeHost{addr: "bad", running: 0, provisionErr: fmt.Errorf("dial tcp: i/o timeout")}
	good := &fakeHost{addr: "good", running: 2}
	placer := NewPlacer(testSettings(), StaticHosts{bad, good})

	result := placer.Place(context.Background(), mustParse(t, "docker/ubuntu"))
	require.Equal(t, ResultProvisioned, result.Kind)
	assert.Equal(t, "good", result.Slave.HostAddr)
	assert.Equal(t, 1, bad.provisionCalls) // 空闲主机先试，失败后换机
}

// TestPlace_NoCapacity 排名列表耗尽 → 容量耗尽
func TestPlace_NoCapacity(t *testing.T) {
	full := &fakeHost{addr: "full", running: 4}
	failing := &fakeHost{addr: "failing", running: 0, provisionErr: fmt.Errorf("io error")}
	placer := NewPlacer(testSettings(), StaticHosts{full, failing})

	result := placer.Place(context.Background(), mustParse(t, "docker/ubuntu"))
	assert.Equal(t, ResultNoCapacity, result.Kind)
	assert.Equal(t, 0, full.provisionCalls) // 满载主机从不被尝试
}

// TestPlace_AllHostsDown 所有主机探测失败 → 容量耗尽，不抛错
func TestPlace_AllHostsDown(t *testing.T) {
	hosts := StaticHosts{
		&fakeHost{addr: "d1", statusErr: fmt.Errorf("down")},
		&fakeHost{addr: "d2", statusErr: fmt.Errorf("down")},
	}
	placer := NewPlacer(testSettings(), hosts)

	result := placer.Place(context.Background(), mustParse(t, "docker/ubuntu"))
	assert.Equal(t, ResultNoCapacity, result.Kind)
}

// TestCanPlace_AgreesWithPlace 可安置判定与安置结果一致
func TestCanPlace_AgreesWithPlace(t *testing.T) {
	settings := testSettings()
	settings.Images = []PreconfiguredImage{{Image: "golang:1.24", Labels: label.NewSet("golang")}}
	placer := NewPlacer(settings, StaticHosts{&fakeHost{addr: "h"}})

	exprs := []string{
		"docker/ubuntu && linux",
		"golang",
		"windows",
		"docker/ubuntu && windows",
		"!linux",
		"docker/a || ppc64",
	}
	for _, s := range exprs {
		expr := mustParse(t, s)
		result := placer.Place(context.Background(), expr)
		assert.Equal(t, placer.CanPlace(expr), result.Kind != ResultNotApplicable, "expr %q", s)
	}
}

// TestCanPlace_NilExpression nil 表达式不可安置
func TestCanPlace_NilExpression(t *testing.T) {
	placer := NewPlacer(testSettings(), StaticHosts{})
	assert.False(t, placer.CanPlace(nil))
}

// TestPlace_PublishesEvents 安置决定发布到事件总线
func TestPlace_PublishesEvents(t *testing.T) {
	bus := eventbus.NewMockBus()
	placer := NewPlacer(testSettings(), StaticHosts{&fakeHost{addr: "h"}})
	placer.SetEventBus(bus)

	placer.Place(context.Background(), mustParse(t, "docker/ubuntu"))
	placer.Place(context.Background(), mustParse(t, "windows"))

	events := bus.Events()
	require.Len(t, events, 2)
	assert.Equal(t, string(ResultProvisioned), events[0].Result)
	assert.Equal(t, "ubuntu", events[0].Image)
	assert.Equal(t, "h", events[0].Host)
	assert.Equal(t, string(ResultNotApplicable), events[1].Result)
	assert.Equal(t, "windows", events[1].Label)
}

// TestPlace_BindingsPassedThrough 池的目录挂载透传给主机开通调用
func TestPlace_BindingsPassedThrough(t *testing.T) {
	settings := testSettings()
	var err error
	settings.Bindings, err = binding.Parse("/data:/app/data:rw")
	require.NoError(t, err)

	h := &recordingHost{fakeHost: fakeHost{addr: "h"}}
	placer := NewPlacer(settings, StaticHosts{h})

	result := placer.Place(context.Background(), mustParse(t, "docker/ubuntu"))
	require.Equal(t, ResultProvisioned, result.Kind)
	require.Len(t, h.lastBinds, 1)
	assert.Equal(t, "/app/data", h.lastBinds[0].ContainerPath)
}

// recordingHost 记录开通参数的主机
type recordingHost struct {
	fakeHost
	lastBinds []binding.Binding
}

func (r *recordingHost) Provision(ctx context.Context, image string, labels label.Set, binds []binding.Binding) (*Slave, error) {
	r.lastBinds = binds
	return r.fakeHost.Provision(ctx, image, labels, binds)
}
