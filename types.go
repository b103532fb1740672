package meshlink

import (
	"github.com/dep2p/go-meshlink/pkg/interfaces"
	"github.com/dep2p/go-meshlink/pkg/types"
)

// 公共类型别名
//
// 调用方通常只需要导入根包。

// ────────────────────────────────────────────────────────────────────────────
// 状态与事件
// ────────────────────────────────────────────────────────────────────────────

// ServiceState 服务状态
type ServiceState = types.ServiceState

// 服务状态值
const (
	StateIdle         = types.StateIdle
	StateConnecting   = types.StateConnecting
	StateConnected    = types.StateConnected
	StateDisconnected = types.StateDisconnected
	StateFailed       = types.StateFailed
)

// Event 事件载荷
type Event = types.Event

// EventKind 事件种类
type EventKind = types.EventKind

// 事件种类值
const (
	EventStateChange      = types.EventStateChange
	EventError            = types.EventError
	EventConnected        = types.EventConnected
	EventDisconnected     = types.EventDisconnected
	EventTransferProgress = types.EventTransferProgress
)

// EventHandler 事件处理函数
type EventHandler = interfaces.EventHandler

// ────────────────────────────────────────────────────────────────────────────
// 消息与节点
// ────────────────────────────────────────────────────────────────────────────

// Envelope 消息信封
type Envelope = types.Envelope

// PeerRecord 节点快照
type PeerRecord = types.PeerRecord

// Codec 消息编解码器
type Codec = interfaces.Codec

// CancelFunc 订阅取消函数
type CancelFunc = func()

// ────────────────────────────────────────────────────────────────────────────
// 传输记录
// ────────────────────────────────────────────────────────────────────────────

// Transfer 传输记录
type Transfer = types.Transfer

// TransferStatus 传输状态
type TransferStatus = types.TransferStatus

// 传输状态值
const (
	TransferPending   = types.TransferPending
	TransferActive    = types.TransferActive
	TransferCompleted = types.TransferCompleted
	TransferFailed    = types.TransferFailed
	TransferCancelled = types.TransferCancelled
)

// UploadResult 上传结果
type UploadResult = types.UploadResult

// DownloadResult 下载结果
type DownloadResult = types.DownloadResult

// ────────────────────────────────────────────────────────────────────────────
// 类型化错误
// ────────────────────────────────────────────────────────────────────────────

// TypedError 类型化错误契约
type TypedError = types.TypedError

// BootstrapExhaustedError 全部引导候选失败
type BootstrapExhaustedError = types.BootstrapExhaustedError

// PeerDiscoveryTimeoutError 能力节点发现超时
type PeerDiscoveryTimeoutError = types.PeerDiscoveryTimeoutError

// NotConnectedError 未连接时调用了需要连接的操作
type NotConnectedError = types.NotConnectedError

// TransferError 传输失败
type TransferError = types.TransferError

// NodeUnhealthyError 存储节点健康检查失败
type NodeUnhealthyError = types.NodeUnhealthyError
