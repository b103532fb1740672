package types

import (
	"fmt"

	"go.uber.org/multierr"
)

// ════════════════════════════════════════════════════════════════════════════
//                              错误分类
// ════════════════════════════════════════════════════════════════════════════
//
// 所有类型化错误携带机器可读的错误码、所属子系统和可恢复标记。
// 连接建立类错误同时通过返回值和 error 事件对外可见；
// 会话中途的节点丢失只通过 error 事件上报，不强制状态转换。

// ErrorCode 机器可读错误码
type ErrorCode string

const (
	// CodeBootstrapExhausted 所有引导候选地址均拨号失败
	CodeBootstrapExhausted ErrorCode = "BOOTSTRAP_EXHAUSTED"

	// CodePeerDiscoveryTimeout 传输已建立但超时内未发现具备能力的节点
	CodePeerDiscoveryTimeout ErrorCode = "PEER_DISCOVERY_TIMEOUT"

	// CodeNotConnected 未连接状态下执行了需要连接的操作
	CodeNotConnected ErrorCode = "NOT_CONNECTED"

	// CodeEncoding 消息编码失败（不符合绑定 schema）
	CodeEncoding ErrorCode = "ENCODING_ERROR"

	// CodeDecoding 消息解码失败（字节流损坏或截断）
	CodeDecoding ErrorCode = "DECODING_ERROR"

	// CodeTransfer 传输失败（网络错误、非 2xx 响应或中止）
	CodeTransfer ErrorCode = "TRANSFER_ERROR"

	// CodeNodeUnhealthy 存储节点健康检查失败
	CodeNodeUnhealthy ErrorCode = "NODE_UNHEALTHY"
)

// Subsystem 错误所属子系统
type Subsystem string

const (
	// SubsystemConnection 连接管理
	SubsystemConnection Subsystem = "connection"

	// SubsystemProtocol 消息协议
	SubsystemProtocol Subsystem = "protocol"

	// SubsystemTransfer 文件传输
	SubsystemTransfer Subsystem = "transfer"

	// SubsystemStorage 存储节点
	SubsystemStorage Subsystem = "storage"
)

// TypedError 类型化错误的公共接口
type TypedError interface {
	error

	// Code 机器可读错误码
	Code() ErrorCode

	// Subsystem 所属子系统
	Subsystem() Subsystem

	// Recoverable 是否可恢复（调用方可重试）
	Recoverable() bool
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接错误
// ════════════════════════════════════════════════════════════════════════════

// BootstrapExhaustedError 所有引导候选地址拨号失败
//
// Candidates 按候选顺序保存每个地址的拨号错误，
// 单次 connect 内不会自动重试。
type BootstrapExhaustedError struct {
	// Candidates 每个候选地址的错误（与候选列表同序）
	Candidates []error
}

// Error 实现 error 接口
func (e *BootstrapExhaustedError) Error() string {
	return fmt.Sprintf("bootstrap exhausted: all %d candidates failed: %v",
		len(e.Candidates), multierr.Combine(e.Candidates...))
}

// Code 返回错误码
func (e *BootstrapExhaustedError) Code() ErrorCode { return CodeBootstrapExhausted }

// Subsystem 返回所属子系统
func (e *BootstrapExhaustedError) Subsystem() Subsystem { return SubsystemConnection }

// Recoverable 返回是否可恢复
func (e *BootstrapExhaustedError) Recoverable() bool { return true }

// Unwrap 返回聚合的候选错误
func (e *BootstrapExhaustedError) Unwrap() error {
	return multierr.Combine(e.Candidates...)
}

// PeerDiscoveryTimeoutError 超时内未发现具备所需能力的节点
type PeerDiscoveryTimeoutError struct {
	// Capability 所需能力标签
	Capability string
}

// Error 实现 error 接口
func (e *PeerDiscoveryTimeoutError) Error() string {
	return fmt.Sprintf("peer discovery timeout: no peer with capability %q", e.Capability)
}

// Code 返回错误码
func (e *PeerDiscoveryTimeoutError) Code() ErrorCode { return CodePeerDiscoveryTimeout }

// Subsystem 返回所属子系统
func (e *PeerDiscoveryTimeoutError) Subsystem() Subsystem { return SubsystemConnection }

// Recoverable 返回是否可恢复
func (e *PeerDiscoveryTimeoutError) Recoverable() bool { return true }

// NotConnectedError 未连接状态下执行了需要连接的操作
type NotConnectedError struct {
	// Op 被拒绝的操作名
	Op string
}

// Error 实现 error 接口
func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("not connected: %s requires an established connection", e.Op)
}

// Code 返回错误码
func (e *NotConnectedError) Code() ErrorCode { return CodeNotConnected }

// Subsystem 返回所属子系统
func (e *NotConnectedError) Subsystem() Subsystem { return SubsystemConnection }

// Recoverable 返回是否可恢复
func (e *NotConnectedError) Recoverable() bool { return true }

// ════════════════════════════════════════════════════════════════════════════
//                              协议错误
// ════════════════════════════════════════════════════════════════════════════

// EncodingError 消息编码失败
type EncodingError struct {
	// Reason 失败原因
	Reason string
}

// Error 实现 error 接口
func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: %s", e.Reason)
}

// Code 返回错误码
func (e *EncodingError) Code() ErrorCode { return CodeEncoding }

// Subsystem 返回所属子系统
func (e *EncodingError) Subsystem() Subsystem { return SubsystemProtocol }

// Recoverable 返回是否可恢复
func (e *EncodingError) Recoverable() bool { return false }

// DecodingError 消息解码失败
//
// 对截断或损坏的输入，Decode 必须返回此错误而非 panic。
type DecodingError struct {
	// Reason 失败原因
	Reason string
}

// Error 实现 error 接口
func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding error: %s", e.Reason)
}

// Code 返回错误码
func (e *DecodingError) Code() ErrorCode { return CodeDecoding }

// Subsystem 返回所属子系统
func (e *DecodingError) Subsystem() Subsystem { return SubsystemProtocol }

// Recoverable 返回是否可恢复
func (e *DecodingError) Recoverable() bool { return false }

// ════════════════════════════════════════════════════════════════════════════
//                              传输与存储错误
// ════════════════════════════════════════════════════════════════════════════

// TransferError 传输失败
//
// 只使受影响的 Transfer 进入 Failed，不影响其他并发传输，
// 跟踪器从不自动重试（重试由调用方发起新的 Transfer 表达）。
type TransferError struct {
	// TransferID 受影响的传输标识
	TransferID string

	// StatusCode HTTP 状态码（非 HTTP 错误时为 0）
	StatusCode int

	// Cause 底层错误
	Cause error
}

// Error 实现 error 接口
func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transfer %s failed: unexpected status %d", e.TransferID, e.StatusCode)
	}
	return fmt.Sprintf("transfer %s failed: %v", e.TransferID, e.Cause)
}

// Code 返回错误码
func (e *TransferError) Code() ErrorCode { return CodeTransfer }

// Subsystem 返回所属子系统
func (e *TransferError) Subsystem() Subsystem { return SubsystemTransfer }

// Recoverable 返回是否可恢复
func (e *TransferError) Recoverable() bool { return true }

// Unwrap 返回底层错误
func (e *TransferError) Unwrap() error { return e.Cause }

// NodeUnhealthyError 存储节点健康检查失败
type NodeUnhealthyError struct {
	// Endpoint 被探测的节点地址
	Endpoint string

	// Cause 底层错误（探测请求失败时有值）
	Cause error
}

// Error 实现 error 接口
func (e *NodeUnhealthyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage node %s unhealthy: %v", e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("storage node %s unhealthy", e.Endpoint)
}

// Code 返回错误码
func (e *NodeUnhealthyError) Code() ErrorCode { return CodeNodeUnhealthy }

// Subsystem 返回所属子系统
func (e *NodeUnhealthyError) Subsystem() Subsystem { return SubsystemStorage }

// Recoverable 返回是否可恢复
func (e *NodeUnhealthyError) Recoverable() bool { return true }

// Unwrap 返回底层错误
func (e *NodeUnhealthyError) Unwrap() error { return e.Cause }
