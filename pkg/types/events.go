package types

// ════════════════════════════════════════════════════════════════════════════
//                              事件定义
// ════════════════════════════════════════════════════════════════════════════
//
// 渲染层只能依赖这里定义的事件，这是核心对外的唯一可观察面。

// EventKind 事件种类
type EventKind string

const (
	// EventStateChange 服务状态变化（携带新状态）
	EventStateChange EventKind = "statusChange"

	// EventError 错误事件（携带类型化错误）
	EventError EventKind = "error"

	// EventConnected 连接成功
	EventConnected EventKind = "connect"

	// EventDisconnected 已断开
	EventDisconnected EventKind = "disconnect"

	// EventTransferProgress 传输进度（携带传输 ID 和进度）
	EventTransferProgress EventKind = "transferProgress"
)

// Event 事件载荷（按 Kind 区分的标签联合）
//
// 只有与 Kind 对应的字段有效：
//   - EventStateChange: State
//   - EventError: Err
//   - EventTransferProgress: TransferID, Fraction
//   - EventConnected / EventDisconnected: 无附加字段
type Event struct {
	// Kind 事件种类
	Kind EventKind

	// State 新状态（EventStateChange）
	State ServiceState

	// Err 错误（EventError）
	Err error

	// TransferID 传输标识（EventTransferProgress）
	TransferID string

	// Fraction 传输进度 0.0~1.0（EventTransferProgress）
	Fraction float64
}
