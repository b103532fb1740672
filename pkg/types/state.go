package types

// ════════════════════════════════════════════════════════════════════════════
//                              服务状态
// ════════════════════════════════════════════════════════════════════════════

// ServiceState 服务状态
//
// 表示服务在生命周期中的当前阶段。
// 状态只能通过生命周期状态机转换，外部不可直接修改。
type ServiceState int

const (
	// StateIdle 空闲状态（已创建，未连接）
	StateIdle ServiceState = iota

	// StateConnecting 连接中（正在拨号引导节点或探测存储节点）
	StateConnecting

	// StateConnected 已连接（正常工作状态）
	StateConnected

	// StateDisconnected 已断开（可重新连接）
	StateDisconnected

	// StateFailed 连接失败（connect 出错后的终态，可重新 connect）
	StateFailed
)

// String 返回状态的字符串表示
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
