package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatewayStub 进程内网关桩
type gatewayStub struct {
	server *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []frame
}

func newGatewayStub(t *testing.T) *gatewayStub {
	t.Helper()

	g := &gatewayStub{}
	upgrader := websocket.Upgrader{}

	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		g.mu.Lock()
		g.conns = append(g.conns, conn)
		g.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f frame
			if json.Unmarshal(data, &f) == nil {
				g.mu.Lock()
				g.received = append(g.received, f)
				g.mu.Unlock()
			}
		}
	}))
	t.Cleanup(g.server.Close)

	return g
}

func (g *gatewayStub) url() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

// send 通过最近一条连接向客户端推送一帧
func (g *gatewayStub) send(t *testing.T, f frame) {
	t.Helper()

	g.mu.Lock()
	require.NotEmpty(t, g.conns)
	conn := g.conns[len(g.conns)-1]
	g.mu.Unlock()

	data, err := json.Marshal(f)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func (g *gatewayStub) frames() []frame {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]frame(nil), g.received...)
}

// TestTransport_DialAndClose 测试连接建立与幂等关闭
func TestTransport_DialAndClose(t *testing.T) {
	gateway := newGatewayStub(t)
	transport := New()

	require.NoError(t, transport.Dial(context.Background(), gateway.url()))

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
}

// TestTransport_DialFailure 测试不可达地址
func TestTransport_DialFailure(t *testing.T) {
	transport := New()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := transport.Dial(ctx, "ws://127.0.0.1:1/")
	assert.Error(t, err)
}

// TestTransport_SubscribeAndReceive 测试订阅与消息接收
func TestTransport_SubscribeAndReceive(t *testing.T) {
	gateway := newGatewayStub(t)
	transport := New()

	require.NoError(t, transport.Dial(context.Background(), gateway.url()))
	defer func() { _ = transport.Close() }()

	received := make(chan []byte, 4)
	cancel, err := transport.Subscribe("files", func(payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	// 订阅帧已发往网关
	require.Eventually(t, func() bool {
		for _, f := range gateway.frames() {
			if f.Type == frameSubscribe && f.Topic == "files" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	gateway.send(t, frame{Type: frameMessage, Topic: "files", Payload: []byte("payload")})

	select {
	case payload := <-received:
		assert.Equal(t, []byte("payload"), payload)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}

	// 取消后发送退订帧
	cancel()
	require.Eventually(t, func() bool {
		for _, f := range gateway.frames() {
			if f.Type == frameUnsubscribe && f.Topic == "files" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

// TestTransport_PeersSnapshot 测试节点快照更新
func TestTransport_PeersSnapshot(t *testing.T) {
	gateway := newGatewayStub(t)
	transport := New()

	require.NoError(t, transport.Dial(context.Background(), gateway.url()))
	defer func() { _ = transport.Close() }()

	assert.Empty(t, transport.Peers())

	gateway.send(t, frame{Type: framePeers, Peers: []peerInfo{
		{ID: "peer1", Tags: []string{"store"}, Connected: true},
		{ID: "peer2", Connected: false},
	}})

	require.Eventually(t, func() bool {
		return len(transport.Peers()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	peers := transport.Peers()
	assert.Equal(t, "peer1", peers[0].ID)
	assert.True(t, peers[0].HasTag("store"))

	// 关闭后快照清空
	require.NoError(t, transport.Close())
	assert.Empty(t, transport.Peers())
}

// TestTransport_Publish 测试发布帧写出
func TestTransport_Publish(t *testing.T) {
	gateway := newGatewayStub(t)
	transport := New()

	require.NoError(t, transport.Dial(context.Background(), gateway.url()))
	defer func() { _ = transport.Close() }()

	require.NoError(t, transport.Publish(context.Background(), "files", []byte("data")))

	require.Eventually(t, func() bool {
		for _, f := range gateway.frames() {
			if f.Type == framePublish && f.Topic == "files" && string(f.Payload) == "data" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// 未连接时发布失败
	require.NoError(t, transport.Close())
	assert.Error(t, transport.Publish(context.Background(), "files", []byte("data")))
}

// TestTransport_ResubscribeOnRedial 测试重拨后恢复订阅
func TestTransport_ResubscribeOnRedial(t *testing.T) {
	gateway := newGatewayStub(t)
	transport := New()

	require.NoError(t, transport.Dial(context.Background(), gateway.url()))

	_, err := transport.Subscribe("files", func([]byte) {})
	require.NoError(t, err)

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Dial(context.Background(), gateway.url()))
	defer func() { _ = transport.Close() }()

	// 新连接上自动重发订阅帧
	require.Eventually(t, func() bool {
		count := 0
		for _, f := range gateway.frames() {
			if f.Type == frameSubscribe && f.Topic == "files" {
				count++
			}
		}
		return count == 2
	}, 2*time.Second, 10*time.Millisecond)
}
