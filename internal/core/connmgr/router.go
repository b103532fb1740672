package connmgr

import (
	"context"
	"crypto/sha256"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-meshlink/internal/core/protocol"
	"github.com/dep2p/go-meshlink/pkg/lib/log"
	"github.com/dep2p/go-meshlink/pkg/types"
)

// seenCacheSize 单个订阅的去重缓存容量
const seenCacheSize = 1024

// ════════════════════════════════════════════════════════════════════════════
//                              订阅路由
// ════════════════════════════════════════════════════════════════════════════

// subscription 一个活跃订阅
//
// 恰好持有一个协议绑定（主题 + 解码器）和一个处理器；
// 生命周期从 Subscribe 调用到其返回的取消函数被调用为止，
// 取消后不再投递任何消息。
type subscription struct {
	id      string
	proto   *protocol.Protocol
	handler func(types.Envelope)

	// cancelTransport 传输层订阅的取消函数（重连后会被替换）
	cancelTransport func()

	// cancelled 订阅已取消（取消与在途投递的竞态防线）
	cancelled atomic.Bool

	// seen 载荷哈希去重缓存（gossip 风格的重复抑制）
	seen *lru.Cache[[32]byte, struct{}]
}

// router 订阅注册表与消息分发
//
// 传输层对单个主题的投递是 FIFO 的，分发在 sink 内同步完成，
// 因此同一主题内的投递顺序得以保持；跨主题没有全局顺序。
type router struct {
	mu   sync.Mutex
	mgr  *Manager
	subs map[string]*subscription
}

// newRouter 创建订阅路由
func newRouter(m *Manager) *router {
	return &router{
		mgr:  m,
		subs: make(map[string]*subscription),
	}
}

// subscribe 建立订阅
func (r *router) subscribe(proto *protocol.Protocol, handler func(types.Envelope)) (func(), error) {
	seen, err := lru.New[[32]byte, struct{}](seenCacheSize)
	if err != nil {
		return nil, err
	}

	sub := &subscription{
		id:      uuid.NewString(),
		proto:   proto,
		handler: handler,
		seen:    seen,
	}

	cancel, err := r.mgr.transport.Subscribe(proto.Topic(), func(payload []byte) {
		r.dispatch(sub, payload)
	})
	if err != nil {
		return nil, err
	}
	sub.cancelTransport = cancel

	r.mu.Lock()
	r.subs[sub.id] = sub
	r.mu.Unlock()

	logger.Debug("订阅建立", "topic", proto.Topic(), "sub", log.TruncateID(sub.id, 8))

	return func() { r.cancel(sub.id) }, nil
}

// dispatch 分发一条原始消息
//
// 流程：去重 → 解码 → 再校验 → 投递。
// 解码失败或校验不通过的消息被丢弃并记录日志，不会投递。
func (r *router) dispatch(sub *subscription, payload []byte) {
	if sub.cancelled.Load() {
		return
	}

	digest := sha256.Sum256(payload)
	if _, dup := sub.seen.Get(digest); dup {
		return
	}
	sub.seen.Add(digest, struct{}{})

	msg, err := sub.proto.Codec().Decode(payload)
	if err != nil {
		logger.Debug("丢弃无法解码的消息", "topic", sub.proto.Topic(), "error", err)
		return
	}

	// 解码输出在投递前总是再校验一次
	if !sub.proto.Codec().Validate(msg) {
		logger.Debug("丢弃校验失败的消息", "topic", sub.proto.Topic())
		return
	}

	if sub.cancelled.Load() {
		return
	}

	sub.handler(msg)
}

// cancel 取消单个订阅
func (r *router) cancel(id string) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	sub.cancelled.Store(true)
	if sub.cancelTransport != nil {
		sub.cancelTransport()
	}

	logger.Debug("订阅取消", "topic", sub.proto.Topic(), "sub", log.TruncateID(sub.id, 8))
}

// cancelAll 取消全部订阅（Disconnect 路径）
func (r *router) cancelAll() {
	r.mu.Lock()
	subs := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.subs = make(map[string]*subscription)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.cancelled.Store(true)
		if sub.cancelTransport != nil {
			sub.cancelTransport()
		}
	}
}

// reattach 传输重建后恢复所有活跃订阅
func (r *router) reattach() {
	r.mu.Lock()
	subs := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		sub := sub
		cancel, err := r.mgr.transport.Subscribe(sub.proto.Topic(), func(payload []byte) {
			r.dispatch(sub, payload)
		})
		if err != nil {
			logger.Warn("重连后恢复订阅失败", "topic", sub.proto.Topic(), "error", err)
			continue
		}
		sub.cancelTransport = cancel
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Manager 订阅 API
// ════════════════════════════════════════════════════════════════════════════

// Subscribe 按协议绑定订阅主题
//
// 返回取消函数；取消后该订阅不再投递任何消息。
// 未连接时返回 *types.NotConnectedError。
func (m *Manager) Subscribe(proto *protocol.Protocol, handler func(types.Envelope)) (func(), error) {
	if !m.IsConnected() {
		return nil, &types.NotConnectedError{Op: "subscribe"}
	}
	return m.router.subscribe(proto, handler)
}

// Publish 按协议绑定向主题发布消息
//
// 消息先经协议的编解码器编码；未连接时返回 *types.NotConnectedError。
func (m *Manager) Publish(ctx context.Context, proto *protocol.Protocol, msg types.Envelope) error {
	if !m.IsConnected() {
		return &types.NotConnectedError{Op: "publish"}
	}

	data, err := proto.Codec().Encode(msg)
	if err != nil {
		return err
	}

	return m.transport.Publish(ctx, proto.Topic(), data)
}
