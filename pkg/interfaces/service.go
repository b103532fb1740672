// 本文件定义 Service 接口，所有具体服务实现的统一生命周期契约。
package interfaces

import (
	"context"

	"github.com/dep2p/go-meshlink/pkg/types"
)

// EventHandler 事件处理函数
type EventHandler func(evt types.Event)

// Service 服务生命周期契约
//
// 所有具体服务（消息客户端、存储客户端）实现统一的
// {Idle, Connecting, Connected, Disconnected, Failed} 状态机，
// 状态变化通过事件对外通知。
type Service interface {
	// Connect 建立连接
	//
	// 已处于 Connected 或 Connecting 时为幂等空操作；
	// 连接挂起期间的并发调用复用同一次底层尝试。
	// 失败时进入 Failed、发出 error 事件并向调用方返回错误。
	Connect(ctx context.Context) error

	// Disconnect 断开连接并释放所有持有的资源
	//
	// Idle 或 Disconnected 状态下为空操作。
	Disconnect() error

	// IsConnected 返回是否已连接
	//
	// 仅当状态为 Connected 且底层资源句柄非空时为 true，
	// 以防状态与资源出现分歧。
	IsConnected() bool

	// State 返回当前状态
	State() types.ServiceState

	// On 注册事件处理器（同名重复注册去重）
	On(kind types.EventKind, handler EventHandler)

	// Off 移除事件处理器（不存在时为空操作）
	Off(kind types.EventKind, handler EventHandler)

	// Once 注册一次性事件处理器（首次触发后自动注销）
	Once(kind types.EventKind, handler EventHandler)
}
