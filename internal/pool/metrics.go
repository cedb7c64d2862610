// Package pool Prometheus 指标
package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 安置路径的全部指标
type Metrics struct {
	// 安置结果指标
	PlacementsTotal   *prometheus.CounterVec
	PlacementDuration prometheus.Histogram

	// 开通尝试指标
	ProvisionAttempts *prometheus.CounterVec

	// 主机探测指标
	ProbeErrors    prometheus.Counter
	HostsAvailable prometheus.Gauge
}

// NewMetrics 创建指标实例并注册到给定 registry
//
// reg 为 nil 时使用默认 registry。
func NewMetrics(reg prometheus.Registerer, poolName string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{"pool": poolName}

	return &Metrics{
		PlacementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "buildpool",
				Name:        "placements_total",
				Help:        "Total placement calls by result",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		PlacementDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   "buildpool",
				Name:        "placement_duration_seconds",
				Help:        "Placement call duration in seconds",
				Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
				ConstLabels: labels,
			},
		),
		ProvisionAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "buildpool",
				Name:        "provision_attempts_total",
				Help:        "Total per-host provision attempts by status",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		ProbeErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "buildpool",
				Name:        "host_probe_errors_total",
				Help:        "Total host status probe failures",
				ConstLabels: labels,
			},
		),
		HostsAvailable: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   "buildpool",
				Name:        "hosts_available",
				Help:        "Hosts with remaining capacity at last ranking",
				ConstLabels: labels,
			},
		),
	}
}

// RecordPlacement 记录一次安置调用
func (m *Metrics) RecordPlacement(result ResultKind, duration time.Duration) {
	m.PlacementsTotal.WithLabelValues(string(result)).Inc()
	m.PlacementDuration.Observe(duration.Seconds())
}

// RecordProvisionAttempt 记录一次单机开通尝试
func (m *Metrics) RecordProvisionAttempt(success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.ProvisionAttempts.WithLabelValues(status).Inc()
}
