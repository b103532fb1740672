package connmgr

import (
	"context"

	"github.com/dep2p/go-meshlink/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              节点监控
// ════════════════════════════════════════════════════════════════════════════

// startMonitor 启动周期性节点监控
func (m *Manager) startMonitor() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.monitorCancel = cancel
	m.monitorDone = done
	m.mu.Unlock()

	go m.monitorLoop(ctx, done)
}

// monitorLoop 监控循环
//
// 每个周期读取实时节点数；若服务处于已连接状态而节点数
// 降为零，发出错误事件并尝试恰好一次重连。
func (m *Manager) monitorLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := m.clock.Ticker(m.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.IsConnected() {
				continue
			}

			peers := m.transport.Peers()
			m.metrics.SetLivePeers(len(peers))

			if len(peers) == 0 {
				m.handlePeerLoss(ctx)
			}
		}
	}
}

// handlePeerLoss 处理节点全部丢失
//
// 忙标志保证同时最多一次重连；重连失败只通过错误事件上报，
// 不强制状态转换，下一个监控周期仍可再次尝试。
func (m *Manager) handlePeerLoss(ctx context.Context) {
	if !m.reconnecting.CompareAndSwap(false, true) {
		return
	}

	logger.Warn("节点数降为零，尝试自动重连")
	m.bus.Emit(types.Event{Kind: types.EventError, Err: ErrAllPeersLost})

	go func() {
		defer m.reconnecting.Store(false)

		m.metrics.IncReconnect()

		if err := m.reconnect(ctx); err != nil {
			logger.Warn("自动重连失败", "error", err)
			m.bus.Emit(types.Event{Kind: types.EventError, Err: err})
			return
		}

		logger.Info("自动重连成功")

		// 静默重连成功也重新发出 Connected，保证渲染层可观察
		m.bus.Emit(types.Event{Kind: types.EventStateChange, State: types.StateConnected})
	}()
}

// reconnect 执行一次重连周期（复用最近一次 Connect 的候选列表）
func (m *Manager) reconnect(ctx context.Context) error {
	m.mu.Lock()
	endpoints := m.endpoints
	timeout := m.capabilityTimeout
	m.mu.Unlock()

	_ = m.transport.Close()

	if err := m.dialSequence(ctx, endpoints); err != nil {
		return err
	}

	if err := m.waitForCapablePeer(ctx, timeout); err != nil {
		_ = m.transport.Close()
		return err
	}

	// 传输重建后恢复既有订阅
	m.router.reattach()

	return nil
}
