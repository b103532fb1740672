// Package metrics 实现核心指标采集
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 核心指标集合
//
// 所有方法对 nil 接收者安全，未启用指标时传 nil 即可。
type Metrics struct {
	reconnects    prometheus.Counter
	transfers     *prometheus.CounterVec
	transferBytes *prometheus.CounterVec
	livePeers     prometheus.Gauge
}

// New 创建并注册指标
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshlink",
			Subsystem: "connmgr",
			Name:      "reconnect_attempts_total",
			Help:      "Number of automatic reconnection attempts triggered by peer loss.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshlink",
			Subsystem: "transfer",
			Name:      "transfers_total",
			Help:      "Number of transfers by direction and terminal status.",
		}, []string{"direction", "status"}),
		transferBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshlink",
			Subsystem: "transfer",
			Name:      "bytes_total",
			Help:      "Total bytes moved by direction.",
		}, []string{"direction"}),
		livePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshlink",
			Subsystem: "connmgr",
			Name:      "live_peers",
			Help:      "Current number of connected peers.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.reconnects, m.transfers, m.transferBytes, m.livePeers)
	}

	return m
}

// IncReconnect 记录一次自动重连尝试
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// ObserveTransfer 记录一次到达终态的传输
func (m *Metrics) ObserveTransfer(direction, status string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(direction, status).Inc()
}

// AddBytes 累加传输字节数
func (m *Metrics) AddBytes(direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.transferBytes.WithLabelValues(direction).Add(float64(n))
}

// SetLivePeers 更新当前连接的节点数
func (m *Metrics) SetLivePeers(n int) {
	if m == nil {
		return
	}
	m.livePeers.Set(float64(n))
}
