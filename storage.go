package meshlink

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-meshlink/internal/core/eventbus"
	"github.com/dep2p/go-meshlink/internal/core/lifecycle"
	"github.com/dep2p/go-meshlink/internal/core/metrics"
	"github.com/dep2p/go-meshlink/internal/core/statuscache"
	"github.com/dep2p/go-meshlink/internal/core/storageapi"
	"github.com/dep2p/go-meshlink/internal/core/transfer"
	"github.com/dep2p/go-meshlink/pkg/interfaces"
	"github.com/dep2p/go-meshlink/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              存储客户端
// ════════════════════════════════════════════════════════════════════════════

// StorageClient 存储客户端
//
// 管理到内容寻址存储节点的生命周期、健康探测缓存
// 与进度跟踪的上传下载。
type StorageClient struct {
	base    *lifecycle.Base
	bus     *eventbus.Bus
	api     interfaces.StorageAPI
	cache   *statuscache.Cache
	tracker *transfer.Tracker

	endpoint     string
	healthMaxAge time.Duration
}

var _ interfaces.Service = (*StorageClient)(nil)

// NewStorageClient 创建存储客户端
//
// 参数：
//   - opts: 配置选项（至少需要 WithStorageEndpoint）
//
// 示例：
//
//	sc, err := meshlink.NewStorageClient(
//	    meshlink.WithStorageEndpoint("http://127.0.0.1:5001"),
//	    meshlink.WithBasicAuth("admin", "secret"),
//	)
func NewStorageClient(opts ...Option) (*StorageClient, error) {
	o := newOptions()
	if err := o.apply(opts...); err != nil {
		return nil, fmt.Errorf("invalid option: %w", err)
	}

	api, err := storageapi.New(storageapi.Config{
		BaseURL:    o.storageEndpoint,
		Username:   o.username,
		Password:   o.password,
		HTTPClient: o.httpClient,
	})
	if err != nil {
		return nil, err
	}

	clk := o.clock
	if clk == nil {
		clk = clock.New()
	}

	healthMaxAge := o.healthMaxAge
	if healthMaxAge <= 0 {
		healthMaxAge = statuscache.DefaultMaxAge
	}

	bus := eventbus.NewBus()

	return &StorageClient{
		base:         lifecycle.NewBase(bus),
		bus:          bus,
		api:          api,
		cache:        statuscache.New(clk),
		tracker:      transfer.New(api, bus, metrics.New(o.registerer)),
		endpoint:     api.BaseURL(),
		healthMaxAge: healthMaxAge,
	}, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Connect 连接到存储节点
//
// 强制执行一次新鲜的健康探测并缓存结果；节点不健康时
// 返回 *NodeUnhealthyError，客户端进入 Failed。
func (c *StorageClient) Connect(ctx context.Context) error {
	return c.base.Connect(ctx, func(ctx context.Context) error {
		var probeErr error
		healthy := c.cache.Check(ctx, func(ctx context.Context) (bool, error) {
			ok, err := c.api.Health(ctx)
			probeErr = err
			return ok, err
		}, c.healthMaxAge, true)

		if !healthy {
			return &types.NodeUnhealthyError{Endpoint: c.endpoint, Cause: probeErr}
		}
		return nil
	})
}

// Disconnect 断开并清空健康缓存
//
// Idle 或 Disconnected 状态下为空操作。
func (c *StorageClient) Disconnect() error {
	return c.base.Disconnect(func() error {
		c.cache.Reset()
		return nil
	})
}

// IsConnected 返回是否已连接
func (c *StorageClient) IsConnected() bool {
	return c.base.State() == types.StateConnected && c.api != nil
}

// State 返回当前状态
func (c *StorageClient) State() types.ServiceState {
	return c.base.State()
}

// ════════════════════════════════════════════════════════════════════════════
//                              健康探测
// ════════════════════════════════════════════════════════════════════════════

// CheckHealth 检查存储节点健康
//
// 结果在新鲜窗口内（默认 30s）直接返回缓存值（包括失败结果），
// 过期或 force 为 true 时重新探测。
func (c *StorageClient) CheckHealth(ctx context.Context, force bool) bool {
	return c.cache.Check(ctx, c.api.Health, c.healthMaxAge, force)
}

// ════════════════════════════════════════════════════════════════════════════
//                              传输
// ════════════════════════════════════════════════════════════════════════════

// Upload 上传一段内容
//
// 返回传输标识与上传结果；进度通过 transferProgress 事件对外可见。
// 未连接时返回 *NotConnectedError。
//
// 参数：
//   - ctx: 上下文（取消使传输进入 Cancelled）
//   - fileName: 文件名（记录用）
//   - r: 内容读取器
//   - size: 内容总长度，-1 表示未知
func (c *StorageClient) Upload(ctx context.Context, fileName string, r io.Reader, size int64) (string, *UploadResult, error) {
	if !c.IsConnected() {
		return "", nil, &types.NotConnectedError{Op: "upload"}
	}
	return c.tracker.Upload(ctx, fileName, r, size)
}

// Download 按内容标识下载
//
// 未连接时返回 *NotConnectedError。
func (c *StorageClient) Download(ctx context.Context, contentID string) (string, *DownloadResult, error) {
	if !c.IsConnected() {
		return "", nil, &types.NotConnectedError{Op: "download"}
	}
	return c.tracker.Download(ctx, contentID)
}

// Transfers 返回全部传输记录的快照
func (c *StorageClient) Transfers() []Transfer {
	return c.tracker.List()
}

// Transfer 返回单条传输记录的快照
func (c *StorageClient) Transfer(id string) (Transfer, bool) {
	return c.tracker.Get(id)
}

// Evict 驱逐一条传输记录（删除记录的唯一途径）
func (c *StorageClient) Evict(id string) bool {
	return c.tracker.Evict(id)
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

// On 注册事件处理器（同一处理器重复注册去重）
func (c *StorageClient) On(kind EventKind, handler EventHandler) {
	c.bus.On(kind, handler)
}

// Off 移除事件处理器（不存在时为空操作）
func (c *StorageClient) Off(kind EventKind, handler EventHandler) {
	c.bus.Off(kind, handler)
}

// Once 注册一次性事件处理器（首次触发后自动注销）
func (c *StorageClient) Once(kind EventKind, handler EventHandler) {
	c.bus.Once(kind, handler)
}

// ════════════════════════════════════════════════════════════════════════════
//                              诊断
// ════════════════════════════════════════════════════════════════════════════

// StorageDiagnostics 存储客户端诊断快照
type StorageDiagnostics struct {
	// State 当前状态
	State ServiceState

	// Endpoint 存储节点基地址
	Endpoint string

	// TransferCount 当前登记的传输记录数
	TransferCount int

	// LastHealthy 最近一次健康探测结果
	LastHealthy bool

	// LastProbeAt 最近一次探测时间（零值表示从未探测）
	LastProbeAt time.Time
}

// Diagnostics 返回诊断快照
func (c *StorageClient) Diagnostics() StorageDiagnostics {
	healthy, probedAt, _ := c.cache.Last()

	return StorageDiagnostics{
		State:         c.base.State(),
		Endpoint:      c.endpoint,
		TransferCount: len(c.tracker.List()),
		LastHealthy:   healthy,
		LastProbeAt:   probedAt,
	}
}
