// Package statuscache 实现健康探测结果的时间窗缓存
package statuscache

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-meshlink/pkg/lib/log"
)

var logger = log.Logger("core/statuscache")

// DefaultMaxAge 默认新鲜度窗口
const DefaultMaxAge = 30 * time.Second

// Probe 健康探测函数
//
// 探测自身有独立的短超时，由调用方通过 ctx 控制。
type Probe func(ctx context.Context) (bool, error)

// Cache 单槽健康探测缓存
//
// 每个服务实例只跟踪一个健康检查键，因此不需要淘汰策略。
// 探测失败同样被缓存为 false，避免探测风暴。
type Cache struct {
	mu    sync.Mutex
	clock clock.Clock

	// has 是否存在历史结果
	has bool

	// value 上次探测结果
	value bool

	// capturedAt 上次探测时刻
	capturedAt time.Time
}

// New 创建缓存
//
// clk 为 nil 时使用真实时钟（测试中注入 clock.Mock）。
func New(clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.New()
	}
	return &Cache{clock: clk}
}

// Check 返回健康状态，必要时执行探测
//
// 存在历史结果、其年龄低于 maxAge 且未强制刷新时，
// 直接返回缓存值而不调用 probe（非阻塞读）。
// 否则执行 probe：成功则缓存 {结果, 当前时刻}；
// 失败则缓存 {false, 当前时刻} 并返回 false。
func (c *Cache) Check(ctx context.Context, probe Probe, maxAge time.Duration, forceRefresh bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	if c.has && !forceRefresh && now.Sub(c.capturedAt) < maxAge {
		return c.value
	}

	value, err := probe(ctx)
	if err != nil {
		logger.Debug("健康探测失败", "error", err)
		value = false
	}

	c.has = true
	c.value = value
	c.capturedAt = now

	return value
}

// Last 返回最近一次探测结果及其时刻
//
// 从未探测过时第三个返回值为 false。
func (c *Cache) Last() (value bool, capturedAt time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.capturedAt, c.has
}

// Reset 清空缓存，下次 Check 必定重新探测
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.has = false
	c.value = false
	c.capturedAt = time.Time{}
}
