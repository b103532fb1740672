// Package interfaces 定义 MeshLink 公共接口
//
// 本文件定义 Transport 接口，抽象消息网络的底层传输。
package interfaces

import (
	"context"

	"github.com/dep2p/go-meshlink/pkg/types"
)

// Transport 消息网络传输层接口
//
// Transport 抽象与消息蜂群的单条链路（如 WebSocket 桥接节点）。
// 连接管理器按候选顺序依次调用 Dial，首个成功即停止；
// 底层线协议的实现不属于本层（只消费其对外 API）。
type Transport interface {
	// Dial 拨号连接到一个引导地址
	//
	// 地址是不透明的传输相关字符串，核心层不做格式校验。
	// 拨号失败必须返回错误且不留下半开状态。
	Dial(ctx context.Context, addr string) error

	// Close 关闭链路并释放资源
	//
	// 必须幂等，未连接时调用是空操作。
	Close() error

	// Peers 返回远端节点的实时快照
	//
	// 未连接时返回空列表，返回值永不缓存。
	Peers() []types.PeerRecord

	// Publish 向指定主题发布已编码的消息
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe 订阅指定主题
	//
	// sink 按传输层收到的顺序（FIFO）逐条接收原始字节；
	// 返回的取消函数调用后不再投递任何消息。
	Subscribe(topic string, sink func(payload []byte)) (cancel func(), err error)
}
