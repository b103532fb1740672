package connmgr

import (
	"context"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-meshlink/internal/core/protocol"
	"github.com/dep2p/go-meshlink/pkg/types"
)

func testEnvelope(sender string, ts uint64) types.Envelope {
	return types.Envelope{
		Timestamp: ts,
		Sender:    sender,
		FileName:  "report.pdf",
		FileSize:  2048,
		FileType:  "application/pdf",
		FileID:    "bafy-" + sender,
	}
}

func connectedManager(t *testing.T) (*Manager, *mockTransport) {
	t.Helper()

	transport := newMockTransport()
	m, _ := newTestManager(t, transport, clock.NewMock())
	require.NoError(t, m.Connect(context.Background(), []string{"A"}, 0))
	t.Cleanup(func() { _ = m.Disconnect() })
	return m, transport
}

// TestRouter_SubscribeDelivers 测试订阅按到达顺序投递有效消息
func TestRouter_SubscribeDelivers(t *testing.T) {
	m, transport := connectedManager(t)
	proto := protocol.New("files", nil)

	var mu sync.Mutex
	var received []types.Envelope

	cancel, err := m.Subscribe(proto, func(msg types.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg)
	})
	require.NoError(t, err)
	defer cancel()

	for i, sender := range []string{"alice", "bob", "carol"} {
		data, err := proto.Codec().Encode(testEnvelope(sender, uint64(1000+i)))
		require.NoError(t, err)
		transport.deliver("files", data)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 3)
	assert.Equal(t, "alice", received[0].Sender)
	assert.Equal(t, "bob", received[1].Sender)
	assert.Equal(t, "carol", received[2].Sender)
}

// TestRouter_DropsUndecodable 测试无法解码的消息被丢弃
func TestRouter_DropsUndecodable(t *testing.T) {
	m, transport := connectedManager(t)
	proto := protocol.New("files", nil)

	delivered := 0
	cancel, err := m.Subscribe(proto, func(types.Envelope) {
		delivered++
	})
	require.NoError(t, err)
	defer cancel()

	transport.deliver("files", []byte{0x01, 0x02, 0x03})
	transport.deliver("files", nil)

	assert.Zero(t, delivered)
}

// TestRouter_DeduplicatesPayloads 测试重复载荷只投递一次
func TestRouter_DeduplicatesPayloads(t *testing.T) {
	m, transport := connectedManager(t)
	proto := protocol.New("files", nil)

	delivered := 0
	cancel, err := m.Subscribe(proto, func(types.Envelope) {
		delivered++
	})
	require.NoError(t, err)
	defer cancel()

	data, err := proto.Codec().Encode(testEnvelope("alice", 1000))
	require.NoError(t, err)

	transport.deliver("files", data)
	transport.deliver("files", data)
	transport.deliver("files", data)

	assert.Equal(t, 1, delivered)
}

// TestRouter_CancelStopsDelivery 测试取消后不再投递
func TestRouter_CancelStopsDelivery(t *testing.T) {
	m, transport := connectedManager(t)
	proto := protocol.New("files", nil)

	delivered := 0
	cancel, err := m.Subscribe(proto, func(types.Envelope) {
		delivered++
	})
	require.NoError(t, err)

	data, err := proto.Codec().Encode(testEnvelope("alice", 1000))
	require.NoError(t, err)
	transport.deliver("files", data)
	require.Equal(t, 1, delivered)

	cancel()

	data2, err := proto.Codec().Encode(testEnvelope("bob", 2000))
	require.NoError(t, err)
	transport.deliver("files", data2)
	assert.Equal(t, 1, delivered)
}

// TestRouter_NotConnected 测试未连接时的订阅与发布
func TestRouter_NotConnected(t *testing.T) {
	m, _ := newTestManager(t, newMockTransport(), clock.NewMock())
	proto := protocol.New("files", nil)

	var notConnected *types.NotConnectedError

	_, err := m.Subscribe(proto, func(types.Envelope) {})
	require.ErrorAs(t, err, &notConnected)

	err = m.Publish(context.Background(), proto, testEnvelope("alice", 1000))
	require.ErrorAs(t, err, &notConnected)
}

// TestRouter_PublishEncodes 测试发布走编码路径
func TestRouter_PublishEncodes(t *testing.T) {
	m, transport := connectedManager(t)
	proto := protocol.New("files", nil)

	msg := testEnvelope("alice", 1000)
	require.NoError(t, m.Publish(context.Background(), proto, msg))

	transport.mu.Lock()
	payloads := transport.published["files"]
	transport.mu.Unlock()

	require.Len(t, payloads, 1)

	decoded, err := proto.Codec().Decode(payloads[0])
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)

	// 非法消息在编码阶段被拒绝，不触达传输层
	err = m.Publish(context.Background(), proto, types.Envelope{})
	var encErr *types.EncodingError
	require.ErrorAs(t, err, &encErr)
}
