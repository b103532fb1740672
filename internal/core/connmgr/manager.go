// Package connmgr 实现消息网络的连接管理
//
// 负责通过候选地址列表建立并维持与蜂群的连接、
// 暴露实时节点数量，并在节点全部丢失时自愈。
package connmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-meshlink/internal/core/eventbus"
	"github.com/dep2p/go-meshlink/internal/core/metrics"
	"github.com/dep2p/go-meshlink/pkg/interfaces"
	"github.com/dep2p/go-meshlink/pkg/lib/log"
	"github.com/dep2p/go-meshlink/pkg/types"
)

var logger = log.Logger("core/connmgr")

// ════════════════════════════════════════════════════════════════════════════
//                              常量与错误
// ════════════════════════════════════════════════════════════════════════════

const (
	// DefaultCapabilityTimeout 能力节点发现默认超时
	DefaultCapabilityTimeout = 15 * time.Second

	// DefaultMonitorInterval 节点监控默认间隔
	DefaultMonitorInterval = 5 * time.Second

	// capabilityPollInterval 能力节点轮询间隔
	capabilityPollInterval = 100 * time.Millisecond
)

var (
	// ErrAllPeersLost 监控发现节点数降为零
	ErrAllPeersLost = errors.New("all peers lost")

	// ErrNoEndpoints 候选地址列表为空
	ErrNoEndpoints = errors.New("no bootstrap endpoints")
)

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

// Config 连接管理器配置
type Config struct {
	// Transport 底层传输（独占持有）
	Transport interfaces.Transport

	// Bus 事件总线（状态与错误对外可见面）
	Bus *eventbus.Bus

	// Clock 时钟（测试中注入 clock.Mock）
	Clock clock.Clock

	// Metrics 指标采集（可为 nil）
	Metrics *metrics.Metrics

	// Capability 所需的远端能力标签；为空表示任意节点即可
	Capability string

	// MonitorInterval 监控间隔，0 表示使用默认值
	MonitorInterval time.Duration
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接管理器
// ════════════════════════════════════════════════════════════════════════════

// Manager 连接管理器
//
// 引导候选地址严格按列表顺序尝试，首个成功即停止，
// 不做随机化、不做并行拨号，保证重连行为确定可测。
//
// 传输句柄与监控定时器由单个 Manager 实例独占持有。
type Manager struct {
	mu sync.Mutex

	transport interfaces.Transport
	bus       *eventbus.Bus
	clock     clock.Clock
	metrics   *metrics.Metrics

	capability      string
	monitorInterval time.Duration

	// connected 当前是否处于已连接状态
	connected bool

	// endpoints 最近一次成功 Connect 使用的候选列表（重连复用）
	endpoints []string

	// capabilityTimeout 最近一次 Connect 使用的能力发现超时
	capabilityTimeout time.Duration

	// monitorCancel 监控循环的取消函数
	monitorCancel context.CancelFunc

	// monitorDone 监控循环退出通知
	monitorDone chan struct{}

	// reconnecting 重连忙标志（保证同时最多一次重连）
	reconnecting atomic.Bool

	// router 订阅路由
	router *router
}

// New 创建连接管理器
func New(cfg Config) (*Manager, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("event bus cannot be nil")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	interval := cfg.MonitorInterval
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}

	m := &Manager{
		transport:       cfg.Transport,
		bus:             cfg.Bus,
		clock:           clk,
		metrics:         cfg.Metrics,
		capability:      cfg.Capability,
		monitorInterval: interval,
	}
	m.router = newRouter(m)

	return m, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接建立
// ════════════════════════════════════════════════════════════════════════════

// Connect 建立到蜂群的连接
//
// 流程：
//  1. 按顺序拨号候选地址，首个成功即停止；全部失败返回
//     *types.BootstrapExhaustedError（携带按候选顺序的逐项错误），
//     单次 Connect 内不自动重试
//  2. 拨号成功后等待至少一个具备所需能力的远端节点出现，
//     超时（capabilityTimeout，默认 15s）返回 *types.PeerDiscoveryTimeoutError
//  3. 启动周期性节点监控
//
// 参数：
//   - ctx: 上下文（取消会中止拨号与等待）
//   - endpoints: 有序的候选地址列表（只在连接建立阶段使用）
//   - capabilityTimeout: 能力发现超时，0 表示默认 15s
func (m *Manager) Connect(ctx context.Context, endpoints []string, capabilityTimeout time.Duration) error {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if len(endpoints) == 0 {
		return ErrNoEndpoints
	}

	if capabilityTimeout <= 0 {
		capabilityTimeout = DefaultCapabilityTimeout
	}

	if err := m.dialSequence(ctx, endpoints); err != nil {
		return err
	}

	if err := m.waitForCapablePeer(ctx, capabilityTimeout); err != nil {
		// 回收已建立的传输，不留半开状态
		_ = m.transport.Close()
		return err
	}

	m.mu.Lock()
	m.connected = true
	m.endpoints = append([]string(nil), endpoints...)
	m.capabilityTimeout = capabilityTimeout
	m.mu.Unlock()

	m.startMonitor()

	logger.Info("连接建立成功", "peers", len(m.transport.Peers()))
	return nil
}

// dialSequence 按顺序拨号候选地址
//
// 严格按列表顺序逐个尝试，首个成功即返回；
// 全部失败时返回携带逐候选错误的 BootstrapExhaustedError。
func (m *Manager) dialSequence(ctx context.Context, endpoints []string) error {
	candidateErrs := make([]error, 0, len(endpoints))

	for i, addr := range endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.Debug("尝试引导候选地址", "index", i, "addr", addr)

		if err := m.transport.Dial(ctx, addr); err != nil {
			logger.Warn("候选地址拨号失败", "index", i, "addr", addr, "error", err)
			candidateErrs = append(candidateErrs, fmt.Errorf("candidate %d (%s): %w", i, addr, err))
			continue
		}

		logger.Info("候选地址拨号成功", "index", i, "addr", addr)
		return nil
	}

	return &types.BootstrapExhaustedError{Candidates: candidateErrs}
}

// waitForCapablePeer 等待具备所需能力的远端节点
//
// 轮询节点快照直到发现能力节点或超时。
func (m *Manager) waitForCapablePeer(ctx context.Context, timeout time.Duration) error {
	if m.hasCapablePeer() {
		return nil
	}

	deadline := m.clock.Timer(timeout)
	defer deadline.Stop()

	ticker := m.clock.Ticker(capabilityPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return &types.PeerDiscoveryTimeoutError{Capability: m.capability}
		case <-ticker.C:
			if m.hasCapablePeer() {
				return nil
			}
		}
	}
}

// hasCapablePeer 检查是否存在具备所需能力的已连接节点
func (m *Manager) hasCapablePeer() bool {
	for _, p := range m.transport.Peers() {
		if !p.Connected {
			continue
		}
		if m.capability == "" || p.HasTag(m.capability) {
			return true
		}
	}
	return false
}

// ════════════════════════════════════════════════════════════════════════════
//                              状态查询
// ════════════════════════════════════════════════════════════════════════════

// Peers 返回远端节点的实时快照
//
// 节点数永远从传输层实时派生，不做独立缓存；
// 未连接时返回空列表。
func (m *Manager) Peers() []types.PeerRecord {
	m.mu.Lock()
	connected := m.connected
	m.mu.Unlock()

	if !connected {
		return []types.PeerRecord{}
	}
	return m.transport.Peers()
}

// IsConnected 返回当前是否已连接
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// ════════════════════════════════════════════════════════════════════════════
//                              断开
// ════════════════════════════════════════════════════════════════════════════

// Disconnect 断开连接
//
// 取消所有订阅（走各自的取消路径）、停止监控定时器、关闭传输。
// 可以从任何非终止状态调用，且幂等。
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.connected = false
	cancel := m.monitorCancel
	done := m.monitorDone
	m.monitorCancel = nil
	m.monitorDone = nil
	m.mu.Unlock()

	m.router.cancelAll()

	if cancel != nil {
		cancel()
		<-done
	}

	err := m.transport.Close()

	logger.Info("连接已断开")
	return err
}
