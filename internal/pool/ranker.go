package pool

import (
	"context"
	"log"
	"sort"
)

// hostCapacity 主机与其剩余容量
type hostCapacity struct {
	host     Host
	capacity int
}

// HostCapacity 主机剩余容量快照，供 API 与监控推送使用
type HostCapacity struct {
	Addr     string `json:"addr"`
	Capacity int    `json:"capacity"`
}

// rankHosts 过滤并排序可用主机
//
// 对每台主机做活性探测；探测或计数出错的主机记警告并整体排除
// （视为不可用，而不是零容量）。剩余容量 = maxExecutors − 运行中任务数，
// 只保留剩余容量大于零的主机，按剩余容量降序稳定排序，
// 使安置总是先尝试最空闲的主机。
func rankHosts(ctx context.Context, hosts []Host, maxExecutors int, m *Metrics) []hostCapacity {
	available := make([]hostCapacity, 0, len(hosts))

	for _, h := range hosts {
		if err := h.Status(ctx); err != nil {
			log.Printf("[pool.rank.probe_failed] host=%s error=%v", h.Addr(), err)
			if m != nil {
				m.ProbeErrors.Inc()
			}
			continue
		}

		count, err := h.RunningJobs(ctx)
		if err != nil {
			log.Printf("[pool.rank.count_failed] host=%s error=%v", h.Addr(), err)
			if m != nil {
				m.ProbeErrors.Inc()
			}
			continue
		}

		if remaining := maxExecutors - count; remaining > 0 {
			available = append(available, hostCapacity{host: h, capacity: remaining})
		}
	}

	sort.SliceStable(available, func(i, j int) bool {
		return available[i].capacity > available[j].capacity
	})

	if m != nil {
		m.HostsAvailable.Set(float64(len(available)))
	}
	return available
}
