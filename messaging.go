package meshlink

import (
	"context"
	"fmt"
	"time"

	"github.com/dep2p/go-meshlink/internal/core/connmgr"
	"github.com/dep2p/go-meshlink/internal/core/eventbus"
	"github.com/dep2p/go-meshlink/internal/core/lifecycle"
	"github.com/dep2p/go-meshlink/internal/core/metrics"
	"github.com/dep2p/go-meshlink/internal/core/protocol"
	wstransport "github.com/dep2p/go-meshlink/internal/transport/websocket"
	"github.com/dep2p/go-meshlink/pkg/interfaces"
	"github.com/dep2p/go-meshlink/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              消息客户端
// ════════════════════════════════════════════════════════════════════════════

// MessagingClient 消息客户端
//
// 管理到消息蜂群的连接生命周期、主题订阅与发布。
// 节点数量永远从连接管理器实时派生，不做缓存。
type MessagingClient struct {
	base *lifecycle.Base
	bus  *eventbus.Bus
	mgr  *connmgr.Manager

	transport interfaces.Transport
	codec     interfaces.Codec

	endpoints         []string
	capabilityTimeout time.Duration
}

var _ interfaces.Service = (*MessagingClient)(nil)

// NewMessagingClient 创建消息客户端
//
// 参数：
//   - opts: 配置选项（至少需要 WithBootstrapPeers）
//
// 示例：
//
//	mc, err := meshlink.NewMessagingClient(
//	    meshlink.WithBootstrapPeers("wss://gw.example.org/ws"),
//	    meshlink.WithCapability("store"),
//	)
func NewMessagingClient(opts ...Option) (*MessagingClient, error) {
	o := newOptions()
	if err := o.apply(opts...); err != nil {
		return nil, fmt.Errorf("invalid option: %w", err)
	}

	transport := o.transport
	if transport == nil {
		transport = wstransport.New()
	}

	codec := o.codec
	if codec == nil {
		codec = protocol.NewBinaryCodec()
	}

	bus := eventbus.NewBus()

	mgr, err := connmgr.New(connmgr.Config{
		Transport:       transport,
		Bus:             bus,
		Clock:           o.clock,
		Metrics:         metrics.New(o.registerer),
		Capability:      o.capability,
		MonitorInterval: o.monitorInterval,
	})
	if err != nil {
		return nil, err
	}

	return &MessagingClient{
		base:              lifecycle.NewBase(bus),
		bus:               bus,
		mgr:               mgr,
		transport:         transport,
		codec:             codec,
		endpoints:         append([]string(nil), o.bootstrapPeers...),
		capabilityTimeout: o.capabilityTimeout,
	}, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Connect 连接到消息蜂群
//
// 并发调用合并为一次底层尝试；已连接时为空操作。
// 成功后发出 connect 事件；失败进入 Failed 并发出 error 事件。
func (c *MessagingClient) Connect(ctx context.Context) error {
	return c.base.Connect(ctx, func(ctx context.Context) error {
		return c.mgr.Connect(ctx, c.endpoints, c.capabilityTimeout)
	})
}

// Disconnect 断开连接并释放资源
//
// Idle 或 Disconnected 状态下为空操作。
func (c *MessagingClient) Disconnect() error {
	return c.base.Disconnect(func() error {
		return c.mgr.Disconnect()
	})
}

// IsConnected 返回是否已连接
//
// 状态机与连接管理器必须同时认定已连接才为 true。
func (c *MessagingClient) IsConnected() bool {
	return c.base.State() == types.StateConnected && c.mgr.IsConnected()
}

// State 返回当前状态
func (c *MessagingClient) State() types.ServiceState {
	return c.base.State()
}

// ════════════════════════════════════════════════════════════════════════════
//                              订阅与发布
// ════════════════════════════════════════════════════════════════════════════

// Subscribe 订阅主题
//
// 每条消息解码后再校验，失败即丢弃；重复载荷被抑制；
// 同一主题内按到达顺序同步投递。返回的取消函数调用后
// 该订阅不再收到任何消息。
//
// 未连接时返回 *NotConnectedError。
func (c *MessagingClient) Subscribe(topic string, handler func(Envelope)) (CancelFunc, error) {
	return c.mgr.Subscribe(protocol.New(topic, c.codec), handler)
}

// Publish 向主题发布消息
//
// 消息先经编解码器编码，非法消息返回 *EncodingError；
// 未连接时返回 *NotConnectedError。
func (c *MessagingClient) Publish(ctx context.Context, topic string, msg Envelope) error {
	return c.mgr.Publish(ctx, protocol.New(topic, c.codec), msg)
}

// Peers 返回远端节点的实时快照
func (c *MessagingClient) Peers() []PeerRecord {
	return c.mgr.Peers()
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

// On 注册事件处理器（同一处理器重复注册去重）
func (c *MessagingClient) On(kind EventKind, handler EventHandler) {
	c.bus.On(kind, handler)
}

// Off 移除事件处理器（不存在时为空操作）
func (c *MessagingClient) Off(kind EventKind, handler EventHandler) {
	c.bus.Off(kind, handler)
}

// Once 注册一次性事件处理器（首次触发后自动注销）
func (c *MessagingClient) Once(kind EventKind, handler EventHandler) {
	c.bus.Once(kind, handler)
}

// ════════════════════════════════════════════════════════════════════════════
//                              诊断
// ════════════════════════════════════════════════════════════════════════════

// MessagingDiagnostics 消息客户端诊断快照
type MessagingDiagnostics struct {
	// State 当前状态
	State ServiceState

	// PeerCount 当前连接的节点数
	PeerCount int

	// Endpoints 配置的引导候选地址
	Endpoints []string
}

// Diagnostics 返回诊断快照
func (c *MessagingClient) Diagnostics() MessagingDiagnostics {
	return MessagingDiagnostics{
		State:     c.base.State(),
		PeerCount: len(c.mgr.Peers()),
		Endpoints: append([]string(nil), c.endpoints...),
	}
}
