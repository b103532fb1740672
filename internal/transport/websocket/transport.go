// Package websocket 实现基于 WebSocket 的消息传输
//
// 引导候选地址为 ws:// 或 wss:// URL。与网关之间的帧为
// JSON 信封，通过 type 字段区分：订阅控制、消息投递、
// 节点快照更新。
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-meshlink/pkg/interfaces"
	"github.com/dep2p/go-meshlink/pkg/lib/log"
	"github.com/dep2p/go-meshlink/pkg/types"
)

var logger = log.Logger("transport/websocket")

// ════════════════════════════════════════════════════════════════════════════
//                              常量与帧格式
// ════════════════════════════════════════════════════════════════════════════

const (
	// writeWait 单次写操作的最长等待
	writeWait = 10 * time.Second

	// pongWait 收到 pong 的最长等待（超时视为连接死亡）
	pongWait = 60 * time.Second

	// pingPeriod 心跳间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize 单帧最大长度
	maxFrameSize = 4 << 20 // 4 MiB
)

// 帧类型
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePublish     = "publish"
	frameMessage     = "message"
	framePeers       = "peers"
)

// frame 网关帧信封
type frame struct {
	// Type 帧类型
	Type string `json:"type"`

	// Topic 所属主题（subscribe/unsubscribe/publish/message）
	Topic string `json:"topic,omitempty"`

	// Payload 消息载荷（publish/message）
	Payload []byte `json:"payload,omitempty"`

	// Peers 节点快照（peers）
	Peers []peerInfo `json:"peers,omitempty"`
}

// peerInfo 节点快照中的单个节点
type peerInfo struct {
	ID        string   `json:"id"`
	Tags      []string `json:"tags,omitempty"`
	Connected bool     `json:"connected"`
}

// ════════════════════════════════════════════════════════════════════════════
//                              传输
// ════════════════════════════════════════════════════════════════════════════

// Transport WebSocket 消息传输
//
// 实现 interfaces.Transport。同一时刻最多持有一条连接；
// Dial 替换旧连接，Close 幂等。
type Transport struct {
	mu   sync.Mutex
	conn *websocket.Conn

	// writeMu 串行化并发写（gorilla 连接不支持并发写）
	writeMu sync.Mutex

	// done 当前连接的关闭通知（每次 Dial 重建）
	done chan struct{}

	// peers 最近一次节点快照
	peersMu sync.RWMutex
	peers   []types.PeerRecord

	// sinks 主题到本地接收器的路由
	sinksMu  sync.Mutex
	sinks    map[string]map[int]func([]byte)
	nextSink int
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建 WebSocket 传输
func New() *Transport {
	return &Transport{
		sinks: make(map[string]map[int]func([]byte)),
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接管理
// ════════════════════════════════════════════════════════════════════════════

// Dial 连接网关
//
// 成功后启动读循环与心跳循环；已有连接会先被关闭。
//
// 参数：
//   - ctx: 上下文（取消会中止握手）
//   - addr: 网关地址（ws:// 或 wss:// URL）
func (t *Transport) Dial(ctx context.Context, addr string) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket handshake with %s failed: %w (status %d)", addr, err, resp.StatusCode)
		}
		return fmt.Errorf("websocket dial %s failed: %w", addr, err)
	}

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})

	t.mu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
		if t.done != nil {
			close(t.done)
		}
	}
	t.conn = conn
	t.done = done
	t.mu.Unlock()

	go t.readLoop(conn, done)
	go t.pingLoop(conn, done)

	// 新连接上恢复既有主题的订阅
	t.sinksMu.Lock()
	topics := make([]string, 0, len(t.sinks))
	for topic, sinks := range t.sinks {
		if len(sinks) > 0 {
			topics = append(topics, topic)
		}
	}
	t.sinksMu.Unlock()

	for _, topic := range topics {
		if err := t.writeFrame(conn, frame{Type: frameSubscribe, Topic: topic}); err != nil {
			logger.Warn("恢复主题订阅失败", "topic", topic, "error", err)
		}
	}

	logger.Info("网关连接建立", "addr", addr)
	return nil
}

// Close 关闭连接
//
// 幂等；不清空本地接收器注册（由上层订阅取消路径负责）。
func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	done := t.done
	t.conn = nil
	t.done = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	if done != nil {
		close(done)
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))

	err := conn.Close()

	t.peersMu.Lock()
	t.peers = nil
	t.peersMu.Unlock()

	return err
}

// current 返回当前连接
func (t *Transport) current() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// ════════════════════════════════════════════════════════════════════════════
//                              读循环与心跳
// ════════════════════════════════════════════════════════════════════════════

// readLoop 读取并分发网关帧直到连接关闭
func (t *Transport) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// 主动关闭，静默退出
			default:
				logger.Warn("读循环退出", "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Debug("丢弃无法解析的帧", "error", err)
			continue
		}

		switch f.Type {
		case frameMessage:
			t.fanout(f.Topic, f.Payload)
		case framePeers:
			t.updatePeers(f.Peers)
		default:
			logger.Debug("忽略未知帧类型", "type", f.Type)
		}
	}
}

// pingLoop 周期性发送心跳直到连接关闭
func (t *Transport) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debug("心跳发送失败", "error", err)
				return
			}
		}
	}
}

// fanout 将消息分发给主题的全部本地接收器
func (t *Transport) fanout(topic string, payload []byte) {
	t.sinksMu.Lock()
	sinks := make([]func([]byte), 0, len(t.sinks[topic]))
	for _, sink := range t.sinks[topic] {
		sinks = append(sinks, sink)
	}
	t.sinksMu.Unlock()

	for _, sink := range sinks {
		sink(payload)
	}
}

// updatePeers 更新节点快照
func (t *Transport) updatePeers(infos []peerInfo) {
	peers := make([]types.PeerRecord, 0, len(infos))
	for _, info := range infos {
		peers = append(peers, types.PeerRecord{
			ID:            info.ID,
			TransportTags: info.Tags,
			Connected:     info.Connected,
		})
	}

	t.peersMu.Lock()
	t.peers = peers
	t.peersMu.Unlock()
}

// Peers 返回最近一次节点快照
func (t *Transport) Peers() []types.PeerRecord {
	t.peersMu.RLock()
	defer t.peersMu.RUnlock()
	return append([]types.PeerRecord(nil), t.peers...)
}

// ════════════════════════════════════════════════════════════════════════════
//                              发布与订阅
// ════════════════════════════════════════════════════════════════════════════

// Publish 向主题发布载荷
func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	conn := t.current()
	if conn == nil {
		return fmt.Errorf("transport not connected")
	}
	return t.writeFrame(conn, frame{Type: framePublish, Topic: topic, Payload: payload})
}

// Subscribe 订阅主题
//
// 返回的取消函数移除本地接收器；当主题不再有任何接收器时
// 向网关发送退订帧。
func (t *Transport) Subscribe(topic string, sink func(payload []byte)) (func(), error) {
	t.sinksMu.Lock()
	id := t.nextSink
	t.nextSink++

	first := len(t.sinks[topic]) == 0
	if t.sinks[topic] == nil {
		t.sinks[topic] = make(map[int]func([]byte))
	}
	t.sinks[topic][id] = sink
	t.sinksMu.Unlock()

	if first {
		if conn := t.current(); conn != nil {
			if err := t.writeFrame(conn, frame{Type: frameSubscribe, Topic: topic}); err != nil {
				t.sinksMu.Lock()
				delete(t.sinks[topic], id)
				t.sinksMu.Unlock()
				return nil, err
			}
		}
	}

	cancel := func() {
		t.sinksMu.Lock()
		delete(t.sinks[topic], id)
		last := len(t.sinks[topic]) == 0
		if last {
			delete(t.sinks, topic)
		}
		t.sinksMu.Unlock()

		if last {
			if conn := t.current(); conn != nil {
				_ = t.writeFrame(conn, frame{Type: frameUnsubscribe, Topic: topic})
			}
		}
	}

	return cancel, nil
}

// writeFrame 序列化并写出一帧
func (t *Transport) writeFrame(conn *websocket.Conn, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
