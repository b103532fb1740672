package statuscache

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCache_FreshnessWindow 测试新鲜度窗口内只探测一次
func TestCache_FreshnessWindow(t *testing.T) {
	mock := clock.NewMock()
	cache := New(mock)

	calls := 0
	probe := func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	}

	ctx := context.Background()

	got := cache.Check(ctx, probe, 30*time.Second, false)
	require.True(t, got)
	require.Equal(t, 1, calls)

	// 窗口内的第二次调用命中缓存
	mock.Add(29 * time.Second)
	got = cache.Check(ctx, probe, 30*time.Second, false)
	assert.True(t, got)
	assert.Equal(t, 1, calls)

	// 窗口过期后重新探测
	mock.Add(2 * time.Second)
	got = cache.Check(ctx, probe, 30*time.Second, false)
	assert.True(t, got)
	assert.Equal(t, 2, calls)
}

// TestCache_ForceRefresh 测试强制刷新无视缓存年龄
func TestCache_ForceRefresh(t *testing.T) {
	mock := clock.NewMock()
	cache := New(mock)

	calls := 0
	probe := func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	}

	ctx := context.Background()

	cache.Check(ctx, probe, 30*time.Second, false)
	cache.Check(ctx, probe, 30*time.Second, true)

	assert.Equal(t, 2, calls)
}

// TestCache_FailureCached 测试探测失败同样被缓存
func TestCache_FailureCached(t *testing.T) {
	mock := clock.NewMock()
	cache := New(mock)

	calls := 0
	probe := func(ctx context.Context) (bool, error) {
		calls++
		return false, assert.AnError
	}

	ctx := context.Background()

	got := cache.Check(ctx, probe, 30*time.Second, false)
	require.False(t, got)
	require.Equal(t, 1, calls)

	// 失败结果在窗口内不触发再次探测（避免探测风暴）
	mock.Add(10 * time.Second)
	got = cache.Check(ctx, probe, 30*time.Second, false)
	assert.False(t, got)
	assert.Equal(t, 1, calls)
}

// TestCache_Last 测试读取最近结果
func TestCache_Last(t *testing.T) {
	mock := clock.NewMock()
	cache := New(mock)

	_, _, ok := cache.Last()
	require.False(t, ok)

	cache.Check(context.Background(), func(ctx context.Context) (bool, error) {
		return true, nil
	}, time.Second, false)

	value, capturedAt, ok := cache.Last()
	assert.True(t, ok)
	assert.True(t, value)
	assert.Equal(t, mock.Now(), capturedAt)
}

// TestCache_Reset 测试清空后必定重新探测
func TestCache_Reset(t *testing.T) {
	mock := clock.NewMock()
	cache := New(mock)

	calls := 0
	probe := func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	}

	ctx := context.Background()

	cache.Check(ctx, probe, 30*time.Second, false)
	cache.Reset()
	cache.Check(ctx, probe, 30*time.Second, false)

	assert.Equal(t, 2, calls)
}
