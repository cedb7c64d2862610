// Package pool 执行主机池与任务安置
//
// 池由一组可运行 Docker 容器的执行主机组成，统一携带容量标签、
// 单机并发上限和目录挂载配置。Placer 负责把单个构建任务
// 安置到池中剩余容量最大的合格主机上。
package pool

import (
	"context"

	"buildpool/internal/binding"
	"buildpool/internal/label"
)

// Host 一台可运行构建容器的执行主机
//
// 主机生命周期由外围池管理，Placer 只读取状态并发起安置调用。
// 状态查询和安置都是阻塞的网络操作，超时由主机通信层负责。
type Host interface {
	// Addr 返回主机地址（日志和事件标识用）
	Addr() string

	// Status 活性探测：返回 nil 表示主机可用且就绪
	Status(ctx context.Context) error

	// RunningJobs 返回主机当前运行中的构建任务数
	RunningJobs(ctx context.Context) (int, error)

	// Provision 在主机上开通一个执行槽
	//
	// 失败返回 IO 类错误；成功返回执行槽句柄。
	Provision(ctx context.Context, image string, labels label.Set, binds []binding.Binding) (*Slave, error)
}

// Slave 执行槽句柄
//
// 安置成功后返回，代表任务在主机上的落点。
type Slave struct {
	Name        string    `json:"name"`         // 槽位名（容器名）
	HostAddr    string    `json:"host_addr"`    // 所在主机地址
	ContainerID string    `json:"container_id"` // 容器 ID
	Image       string    `json:"image"`        // 使用的镜像名
	Labels      label.Set `json:"-"`            // 节点标签（派生标签集合）
}

// HostLister 提供池的当前主机集合
type HostLister interface {
	ListHosts(ctx context.Context) []Host
}

// StaticHosts 固定主机列表
type StaticHosts []Host

func (s StaticHosts) ListHosts(ctx context.Context) []Host {
	return s
}
