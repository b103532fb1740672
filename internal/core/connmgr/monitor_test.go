package connmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-meshlink/internal/core/eventbus"
	"github.com/dep2p/go-meshlink/pkg/types"
)

// eventRecorder 收集总线事件
type eventRecorder struct {
	mu     sync.Mutex
	events []types.Event
}

func newEventRecorder(bus *eventbus.Bus) *eventRecorder {
	r := &eventRecorder{}
	bus.On(types.EventError, func(evt types.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, evt)
	})
	bus.On(types.EventStateChange, func(evt types.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, evt)
	})
	return r
}

func (r *eventRecorder) snapshot() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Event(nil), r.events...)
}

func (r *eventRecorder) hasStateChange(state types.ServiceState) bool {
	for _, evt := range r.snapshot() {
		if evt.Kind == types.EventStateChange && evt.State == state {
			return true
		}
	}
	return false
}

func (r *eventRecorder) hasError(target error) bool {
	for _, evt := range r.snapshot() {
		if evt.Kind == types.EventError && errors.Is(evt.Err, target) {
			return true
		}
	}
	return false
}

// tick 推进一个监控周期
//
// 监控循环的定时器在独立 goroutine 中创建，
// 推进模拟时钟前短暂让步以确保其已注册。
func tick(mock *clock.Mock, interval time.Duration) {
	time.Sleep(20 * time.Millisecond)
	mock.Add(interval)
}

// TestMonitor_ReconnectOnPeerLoss 测试节点全部丢失触发自动重连
func TestMonitor_ReconnectOnPeerLoss(t *testing.T) {
	transport := newMockTransport()

	var peersLost sync.Mutex
	lost := false
	transport.setPeers(func() []types.PeerRecord {
		peersLost.Lock()
		defer peersLost.Unlock()
		if lost {
			return nil
		}
		return []types.PeerRecord{{ID: "peer1", Connected: true}}
	})

	mock := clock.NewMock()
	bus := eventbus.NewBus()
	rec := newEventRecorder(bus)

	m, err := New(Config{
		Transport: transport,
		Bus:       bus,
		Clock:     mock,
	})
	require.NoError(t, err)

	require.NoError(t, m.Connect(context.Background(), []string{"A"}, 0))
	defer func() { _ = m.Disconnect() }()

	// 节点丢失；重连拨号时立即恢复
	transport.mu.Lock()
	transport.dialFunc = func(ctx context.Context, addr string) error {
		peersLost.Lock()
		lost = false
		peersLost.Unlock()
		return nil
	}
	transport.mu.Unlock()

	peersLost.Lock()
	lost = true
	peersLost.Unlock()

	tick(mock, DefaultMonitorInterval)

	// 丢失先上报错误事件，重连成功后重新发出 Connected
	require.Eventually(t, func() bool {
		return rec.hasStateChange(types.StateConnected)
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, rec.hasError(ErrAllPeersLost))
	assert.Equal(t, 2, transport.dialCount())
}

// TestMonitor_SingleReconnectAttempt 测试同时最多一次重连
func TestMonitor_SingleReconnectAttempt(t *testing.T) {
	transport := newMockTransport()

	mock := clock.NewMock()
	bus := eventbus.NewBus()

	m, err := New(Config{
		Transport: transport,
		Bus:       bus,
		Clock:     mock,
	})
	require.NoError(t, err)

	require.NoError(t, m.Connect(context.Background(), []string{"A"}, 0))
	defer func() { _ = m.Disconnect() }()

	// 重连拨号阻塞，保持忙标志占用
	release := make(chan struct{})
	transport.mu.Lock()
	transport.dialFunc = func(ctx context.Context, addr string) error {
		<-release
		return errors.New("dial refused")
	}
	transport.mu.Unlock()

	transport.setPeers(func() []types.PeerRecord { return nil })

	tick(mock, DefaultMonitorInterval)

	// 首次 Connect 一次拨号 + 恰好一次在途重连拨号
	require.Eventually(t, func() bool {
		return transport.dialCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	// 后续周期仍观察到零节点，但忙标志阻止并发重连
	tick(mock, DefaultMonitorInterval)
	tick(mock, DefaultMonitorInterval)
	assert.Equal(t, 2, transport.dialCount())

	close(release)
}

// TestMonitor_ReconnectFailureKeepsEligibility 测试重连失败后下个周期仍可重试
func TestMonitor_ReconnectFailureKeepsEligibility(t *testing.T) {
	transport := newMockTransport()

	mock := clock.NewMock()
	bus := eventbus.NewBus()
	rec := newEventRecorder(bus)

	m, err := New(Config{
		Transport: transport,
		Bus:       bus,
		Clock:     mock,
	})
	require.NoError(t, err)

	require.NoError(t, m.Connect(context.Background(), []string{"A"}, 0))
	defer func() { _ = m.Disconnect() }()

	transport.mu.Lock()
	transport.dialFunc = func(ctx context.Context, addr string) error {
		return errors.New("dial refused")
	}
	transport.mu.Unlock()
	transport.setPeers(func() []types.PeerRecord { return nil })

	tick(mock, DefaultMonitorInterval)

	// 重连失败只通过错误事件上报，不发出状态变化
	require.Eventually(t, func() bool {
		for _, evt := range rec.snapshot() {
			if evt.Kind == types.EventError {
				var exhausted *types.BootstrapExhaustedError
				if errors.As(evt.Err, &exhausted) {
					return true
				}
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, rec.hasStateChange(types.StateConnected))

	// 忙标志清除后，下个周期发起新一轮尝试
	require.Eventually(t, func() bool {
		return !m.reconnecting.Load()
	}, 2*time.Second, 10*time.Millisecond)

	before := transport.dialCount()
	tick(mock, DefaultMonitorInterval)

	require.Eventually(t, func() bool {
		return transport.dialCount() > before
	}, 2*time.Second, 10*time.Millisecond)
}
