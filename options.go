package meshlink

import (
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-meshlink/pkg/interfaces"
)

// Option 客户端配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 消息客户端
	bootstrapPeers    []string
	capability        string
	capabilityTimeout time.Duration
	monitorInterval   time.Duration
	transport         interfaces.Transport
	codec             interfaces.Codec

	// 存储客户端
	storageEndpoint string
	username        string
	password        string
	healthMaxAge    time.Duration
	httpClient      *http.Client

	// 公共
	clock      clock.Clock
	registerer prometheus.Registerer
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{}
}

// apply 应用选项列表
func (o *options) apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// ────────────────────────────────────────────────────────────────────────────
// 消息客户端选项
// ────────────────────────────────────────────────────────────────────────────

// WithBootstrapPeers 设置引导候选地址
//
// 候选地址严格按给定顺序尝试，首个成功即停止。
func WithBootstrapPeers(peers ...string) Option {
	return func(o *options) error {
		o.bootstrapPeers = append([]string(nil), peers...)
		return nil
	}
}

// WithCapability 设置所需的远端能力标签
//
// 连接建立会等待至少一个具备该标签的节点出现。
func WithCapability(tag string) Option {
	return func(o *options) error {
		o.capability = tag
		return nil
	}
}

// WithCapabilityTimeout 设置能力节点发现超时（默认 15s）
func WithCapabilityTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("capability timeout must be positive, got %v", d)
		}
		o.capabilityTimeout = d
		return nil
	}
}

// WithMonitorInterval 设置节点监控间隔（默认 5s）
func WithMonitorInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("monitor interval must be positive, got %v", d)
		}
		o.monitorInterval = d
		return nil
	}
}

// WithTransport 注入自定义传输实现
//
// 默认使用 WebSocket 传输；测试中可注入桩实现。
func WithTransport(t interfaces.Transport) Option {
	return func(o *options) error {
		if t == nil {
			return fmt.Errorf("transport cannot be nil")
		}
		o.transport = t
		return nil
	}
}

// WithCodec 注入自定义消息编解码器（默认二进制信封编解码）
func WithCodec(c interfaces.Codec) Option {
	return func(o *options) error {
		if c == nil {
			return fmt.Errorf("codec cannot be nil")
		}
		o.codec = c
		return nil
	}
}

// ────────────────────────────────────────────────────────────────────────────
// 存储客户端选项
// ────────────────────────────────────────────────────────────────────────────

// WithStorageEndpoint 设置存储节点基地址
func WithStorageEndpoint(endpoint string) Option {
	return func(o *options) error {
		if endpoint == "" {
			return fmt.Errorf("storage endpoint cannot be empty")
		}
		o.storageEndpoint = endpoint
		return nil
	}
}

// WithBasicAuth 设置存储节点的 Basic 鉴权凭证（远程模式）
func WithBasicAuth(username, password string) Option {
	return func(o *options) error {
		o.username = username
		o.password = password
		return nil
	}
}

// WithHealthMaxAge 设置健康探测结果的缓存时长（默认 30s）
func WithHealthMaxAge(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("health max age must be positive, got %v", d)
		}
		o.healthMaxAge = d
		return nil
	}
}

// WithHTTPClient 注入自定义 HTTP 客户端（超时、代理等由调用方控制）
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) error {
		if c == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		o.httpClient = c
		return nil
	}
}

// ────────────────────────────────────────────────────────────────────────────
// 公共选项
// ────────────────────────────────────────────────────────────────────────────

// WithClock 注入时钟（测试中使用 clock.Mock）
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		if c == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		o.clock = c
		return nil
	}
}

// WithMetrics 注册 Prometheus 指标到给定的 Registerer
func WithMetrics(r prometheus.Registerer) Option {
	return func(o *options) error {
		if r == nil {
			return fmt.Errorf("registerer cannot be nil")
		}
		o.registerer = r
		return nil
	}
}
