package pool

import (
	"fmt"

	"buildpool/internal/binding"
	"buildpool/internal/label"
)

// PreconfiguredImage 预注册镜像
//
// 运维方可以在池配置中为镜像预先登记友好标签，
// 任务无需使用 docker/<image> 原子也能匹配到该镜像。
type PreconfiguredImage struct {
	// Image 镜像名（如 golang:1.24）
	Image string

	// Labels 该镜像附带的额外标签
	Labels label.Set
}

// Atom 返回镜像的合成镜像标签（docker/<image>）
func (p PreconfiguredImage) Atom() label.Atom {
	return label.ImageAtom(p.Image)
}

// Settings 池的静态配置
//
// 初始化后只读，跨安置调用共享。
type Settings struct {
	// Name 池名称
	Name string

	// CapacityLabels 池恒定提供的容量标签
	CapacityLabels label.Set

	// MaxExecutors 单台主机的最大并发任务数
	MaxExecutors int

	// Bindings 应用到每个执行槽的目录挂载
	Bindings []binding.Binding

	// Images 预注册镜像（按声明顺序尝试）
	Images []PreconfiguredImage
}

// Validate 校验池配置
func (s Settings) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("pool name is required")
	}
	if s.MaxExecutors < 1 {
		return fmt.Errorf("pool %s: max executors must be greater than or equal to 1", s.Name)
	}
	for _, img := range s.Images {
		if img.Image == "" {
			return fmt.Errorf("pool %s: preconfigured image name is required", s.Name)
		}
	}
	return nil
}
