// Package dockerhost 执行主机的 Docker 实现
//
// 使用官方 github.com/moby/moby/client 库实现 pool.Host：
// 活性探测为 Docker Ping，运行计数为按池标签过滤的容器清点，
// 开通执行槽为创建并启动带挂载和标签的容器。
package dockerhost

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"

	"buildpool/internal/binding"
	"buildpool/internal/label"
	"buildpool/internal/pool"
)

// 开通容器携带的标签
const (
	// LabelPool 容器所属池名
	LabelPool = "buildpool.pool"

	// LabelImage 开通时请求的镜像名
	LabelImage = "buildpool.image"

	// LabelNodeLabels 节点的派生标签集合（空格分隔）
	LabelNodeLabels = "buildpool.labels"
)

// Host 一台 Docker 执行主机
type Host struct {
	addr     string
	poolName string
	cli      *client.Client
}

var _ pool.Host = (*Host)(nil)

// NewHost 创建 Docker 执行主机
//
// cli 由 Factory 按主机地址构建（含 TLS 凭据）。
func NewHost(addr, poolName string, cli *client.Client) *Host {
	return &Host{addr: addr, poolName: poolName, cli: cli}
}

// Addr 返回主机地址
func (h *Host) Addr() string {
	return h.addr
}

// Close 关闭底层客户端
func (h *Host) Close() error {
	return h.cli.Close()
}

// Status 活性探测：Docker Ping
func (h *Host) Status(ctx context.Context) error {
	if _, err := h.cli.Ping(ctx, client.PingOptions{}); err != nil {
		return fmt.Errorf("ping %s: %w", h.addr, err)
	}
	return nil
}

// RunningJobs 清点本池在该主机上运行中的构建容器数
func (h *Host) RunningJobs(ctx context.Context) (int, error) {
	result, err := h.cli.ContainerList(ctx, client.ContainerListOptions{})
	if err != nil {
		return 0, fmt.Errorf("list containers on %s: %w", h.addr, err)
	}

	count := 0
	for _, c := range result.Items {
		if c.Labels[LabelPool] == h.poolName {
			count++
		}
	}
	return count, nil
}

// Provision 在该主机上开通一个执行槽
//
// 创建并启动容器；启动失败时尽力清理已创建的容器。
func (h *Host) Provision(ctx context.Context, image string, labels label.Set, binds []binding.Binding) (*pool.Slave, error) {
	name := slaveName(h.poolName, image)

	created, err := h.cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Name:  name,
		Image: image,
		Config: &container.Config{
			Image: image,
			Labels: map[string]string{
				LabelPool:       h.poolName,
				LabelImage:      image,
				LabelNodeLabels: labels.String(),
			},
		},
		HostConfig: &container.HostConfig{
			Binds: dockerBinds(binds),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create container on %s: %w", h.addr, err)
	}

	if _, err := h.cli.ContainerStart(ctx, created.ID, client.ContainerStartOptions{}); err != nil {
		h.removeContainer(ctx, created.ID)
		return nil, fmt.Errorf("start container %s on %s: %w", created.ID, h.addr, err)
	}

	return &pool.Slave{
		Name:        name,
		HostAddr:    h.addr,
		ContainerID: created.ID,
		Image:       image,
		Labels:      labels,
	}, nil
}

// removeContainer 尽力删除容器（已不存在时静默）
func (h *Host) removeContainer(ctx context.Context, id string) {
	_, err := h.cli.ContainerRemove(ctx, id, client.ContainerRemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		log.Printf("[dockerhost.cleanup_failed] host=%s container=%s error=%v", h.addr, id, err)
	}
}

// dockerBinds 转换目录挂载为 Docker bind 语法 host:container:ro|rw
func dockerBinds(binds []binding.Binding) []string {
	out := make([]string, len(binds))
	for i, b := range binds {
		mode := "ro"
		if b.Access == binding.AccessReadWrite {
			mode = "rw"
		}
		out[i] = b.HostPath + ":" + b.ContainerPath + ":" + mode
	}
	return out
}

// slaveName 生成容器名（镜像名中的非法字符替换为 -）
func slaveName(poolName, image string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '-'
	}, image)
	return fmt.Sprintf("buildpool-%s-%s-%d", poolName, sanitized, time.Now().UnixNano())
}
