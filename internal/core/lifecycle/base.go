// Package lifecycle 实现服务生命周期状态机
//
// 状态集合：Idle → Connecting → Connected → Disconnected / Failed。
// 状态变化通过事件总线对外可见，并发 Connect 合并为一次尝试。
package lifecycle

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dep2p/go-meshlink/internal/core/eventbus"
	"github.com/dep2p/go-meshlink/pkg/lib/log"
	"github.com/dep2p/go-meshlink/pkg/types"
)

var logger = log.Logger("core/lifecycle")

// ════════════════════════════════════════════════════════════════════════════
//                              状态机
// ════════════════════════════════════════════════════════════════════════════

// Base 服务生命周期基座
//
// 持有状态与事件总线，连接与断开的具体动作由调用方
// 以回调形式注入。状态读写经由内部锁，对外并发安全。
type Base struct {
	mu    sync.RWMutex
	state types.ServiceState
	bus   *eventbus.Bus

	// connectGroup 合并并发的连接尝试（幂等：结果共享）
	connectGroup singleflight.Group
}

// NewBase 创建生命周期基座（初始状态 Idle）
func NewBase(bus *eventbus.Bus) *Base {
	return &Base{
		state: types.StateIdle,
		bus:   bus,
	}
}

// State 返回当前状态
func (b *Base) State() types.ServiceState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// SetState 设置状态并发出状态变化事件
//
// 相同状态的重复设置不再发事件。
func (b *Base) SetState(state types.ServiceState) {
	b.mu.Lock()
	if b.state == state {
		b.mu.Unlock()
		return
	}
	b.state = state
	b.mu.Unlock()

	logger.Debug("状态变化", "state", state)
	b.bus.Emit(types.Event{Kind: types.EventStateChange, State: state})
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接与断开
// ════════════════════════════════════════════════════════════════════════════

// Connect 执行一次连接流程
//
// 并发调用合并为单次在途尝试，所有调用方共享其结果；
// 已连接时为空操作。流程：
//
//	Connecting → setup 成功 → Connected，发出 connect 事件
//	Connecting → setup 失败 → Failed，发出错误事件并返回该错误
//
// 已连接时为空操作，不重复发出 connect 事件。
//
// 参数：
//   - ctx: 上下文
//   - setup: 实际建立资源的动作
func (b *Base) Connect(ctx context.Context, setup func(ctx context.Context) error) error {
	_, err, _ := b.connectGroup.Do("connect", func() (interface{}, error) {
		if b.State() == types.StateConnected {
			return nil, nil
		}

		b.SetState(types.StateConnecting)

		if err := setup(ctx); err != nil {
			b.SetState(types.StateFailed)
			b.bus.Emit(types.Event{Kind: types.EventError, Err: err})
			return nil, err
		}

		b.SetState(types.StateConnected)
		b.bus.Emit(types.Event{Kind: types.EventConnected})
		return nil, nil
	})
	return err
}

// Disconnect 执行一次断开流程
//
// 从 Idle 或 Disconnected 调用是空操作（幂等），不发事件；
// teardown 的错误不阻止状态进入 Disconnected，
// 状态转换后发出 disconnect 事件。
//
// 参数：
//   - teardown: 实际释放资源的动作
func (b *Base) Disconnect(teardown func() error) error {
	switch b.State() {
	case types.StateIdle, types.StateDisconnected:
		return nil
	}

	err := teardown()
	b.SetState(types.StateDisconnected)
	b.bus.Emit(types.Event{Kind: types.EventDisconnected})
	return err
}
