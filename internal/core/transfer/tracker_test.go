package transfer

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-meshlink/internal/core/eventbus"
	"github.com/dep2p/go-meshlink/internal/core/storageapi"
	"github.com/dep2p/go-meshlink/pkg/interfaces"
	"github.com/dep2p/go-meshlink/pkg/types"
)

// mockStorage 函数字段式存储桩
type mockStorage struct {
	uploadFunc   func(ctx context.Context, r io.Reader, size int64, progress interfaces.ProgressFunc) (string, error)
	downloadFunc func(ctx context.Context, contentID string, progress interfaces.ProgressFunc) (*types.DownloadResult, error)
	healthFunc   func(ctx context.Context) (bool, error)
}

func (m *mockStorage) Upload(ctx context.Context, r io.Reader, size int64, progress interfaces.ProgressFunc) (string, error) {
	return m.uploadFunc(ctx, r, size, progress)
}

func (m *mockStorage) Download(ctx context.Context, contentID string, progress interfaces.ProgressFunc) (*types.DownloadResult, error) {
	return m.downloadFunc(ctx, contentID, progress)
}

func (m *mockStorage) Health(ctx context.Context) (bool, error) {
	if m.healthFunc != nil {
		return m.healthFunc(ctx)
	}
	return true, nil
}

// progressEvents 收集进度事件
func progressEvents(bus *eventbus.Bus) func() []types.Event {
	var mu sync.Mutex
	var events []types.Event

	bus.On(types.EventTransferProgress, func(evt types.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, evt)
	})

	return func() []types.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]types.Event(nil), events...)
	}
}

// TestTracker_Upload_Success 测试上传成功的完整生命周期
func TestTracker_Upload_Success(t *testing.T) {
	bus := eventbus.NewBus()
	snapshot := progressEvents(bus)

	storage := &mockStorage{
		uploadFunc: func(ctx context.Context, r io.Reader, size int64, progress interfaces.ProgressFunc) (string, error) {
			progress(512, 1024)
			progress(1024, 1024)
			return "bafyabc", nil
		},
	}

	tracker := New(storage, bus, nil)

	id, result, err := tracker.Upload(context.Background(), "report.pdf", strings.NewReader("data"), 1024)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, "bafyabc", result.ContentID)
	assert.Equal(t, int64(1024), result.Size)

	rec, ok := tracker.Get(id)
	require.True(t, ok)
	assert.Equal(t, types.TransferCompleted, rec.Status)
	assert.Equal(t, 1.0, rec.Progress)
	assert.Equal(t, types.Upload, rec.Direction)
	assert.Equal(t, "report.pdf", rec.Ref)

	// 进度事件：0.5 → 1.0（完成时总会补发 1.0）
	events := snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, 0.5, events[0].Fraction)
	assert.Equal(t, 1.0, events[len(events)-1].Fraction)
	for _, evt := range events {
		assert.Equal(t, id, evt.TransferID)
	}
}

// TestTracker_Progress_Monotonic 测试进度单调不减
func TestTracker_Progress_Monotonic(t *testing.T) {
	bus := eventbus.NewBus()

	storage := &mockStorage{
		uploadFunc: func(ctx context.Context, r io.Reader, size int64, progress interfaces.ProgressFunc) (string, error) {
			progress(800, 1000)
			// 乱序回调不得回退进度
			progress(300, 1000)
			return "bafyabc", nil
		},
	}

	tracker := New(storage, bus, nil)

	id, _, err := tracker.Upload(context.Background(), "a.bin", strings.NewReader("data"), 1000)
	require.NoError(t, err)

	rec, _ := tracker.Get(id)
	assert.Equal(t, 1.0, rec.Progress)
}

// TestTracker_Progress_UnknownTotal 测试总长未知时不估算进度
func TestTracker_Progress_UnknownTotal(t *testing.T) {
	bus := eventbus.NewBus()
	snapshot := progressEvents(bus)

	storage := &mockStorage{
		downloadFunc: func(ctx context.Context, contentID string, progress interfaces.ProgressFunc) (*types.DownloadResult, error) {
			progress(4096, -1)
			return &types.DownloadResult{Data: []byte("data"), FileName: contentID}, nil
		},
	}

	tracker := New(storage, bus, nil)

	id, _, err := tracker.Download(context.Background(), "bafyabc")
	require.NoError(t, err)

	// 传输中进度保持 0；完成后为 1
	rec, _ := tracker.Get(id)
	assert.Equal(t, types.TransferCompleted, rec.Status)
	assert.Equal(t, 1.0, rec.Progress)

	// 唯一的进度事件是完成补发的 1.0
	events := snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, 1.0, events[0].Fraction)
}

// TestTracker_Upload_Failure 测试失败隔离与错误包装
func TestTracker_Upload_Failure(t *testing.T) {
	bus := eventbus.NewBus()

	storage := &mockStorage{
		uploadFunc: func(ctx context.Context, r io.Reader, size int64, progress interfaces.ProgressFunc) (string, error) {
			return "", &storageapi.StatusError{Code: 507, Body: "quota exceeded"}
		},
		downloadFunc: func(ctx context.Context, contentID string, progress interfaces.ProgressFunc) (*types.DownloadResult, error) {
			return &types.DownloadResult{Data: []byte("ok")}, nil
		},
	}

	tracker := New(storage, bus, nil)

	id, _, err := tracker.Upload(context.Background(), "big.bin", strings.NewReader("data"), 4)
	require.Error(t, err)

	var transferErr *types.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, id, transferErr.TransferID)
	assert.Equal(t, 507, transferErr.StatusCode)

	rec, _ := tracker.Get(id)
	assert.Equal(t, types.TransferFailed, rec.Status)
	assert.Error(t, rec.Err)

	// 单个失败不影响其他传输
	id2, _, err := tracker.Download(context.Background(), "bafyother")
	require.NoError(t, err)

	rec2, _ := tracker.Get(id2)
	assert.Equal(t, types.TransferCompleted, rec2.Status)
}

// TestTracker_Cancel 测试取消进入 Cancelled 而非 Failed
func TestTracker_Cancel(t *testing.T) {
	bus := eventbus.NewBus()

	storage := &mockStorage{
		uploadFunc: func(ctx context.Context, r io.Reader, size int64, progress interfaces.ProgressFunc) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	tracker := New(storage, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id, _, err := tracker.Upload(ctx, "a.bin", strings.NewReader("data"), 4)
	require.ErrorIs(t, err, context.Canceled)

	rec, _ := tracker.Get(id)
	assert.Equal(t, types.TransferCancelled, rec.Status)
	assert.Nil(t, rec.Err)
}

// TestTracker_DeadlineExceeded 测试超时进入 Failed 而非 Cancelled
func TestTracker_DeadlineExceeded(t *testing.T) {
	bus := eventbus.NewBus()

	storage := &mockStorage{
		uploadFunc: func(ctx context.Context, r io.Reader, size int64, progress interfaces.ProgressFunc) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	tracker := New(storage, bus, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()

	id, _, err := tracker.Upload(ctx, "a.bin", strings.NewReader("data"), 4)
	require.Error(t, err)

	var transferErr *types.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.ErrorIs(t, transferErr.Cause, context.DeadlineExceeded)

	rec, _ := tracker.Get(id)
	assert.Equal(t, types.TransferFailed, rec.Status)
	require.NotNil(t, rec.Err)
}

// TestTracker_TerminalOnce 测试终态只到达一次
func TestTracker_TerminalOnce(t *testing.T) {
	bus := eventbus.NewBus()
	snapshot := progressEvents(bus)

	var captured interfaces.ProgressFunc

	storage := &mockStorage{
		uploadFunc: func(ctx context.Context, r io.Reader, size int64, progress interfaces.ProgressFunc) (string, error) {
			captured = progress
			return "", errors.New("connection reset")
		},
	}

	tracker := New(storage, bus, nil)

	id, _, err := tracker.Upload(context.Background(), "a.bin", strings.NewReader("data"), 1000)
	require.Error(t, err)

	rec, _ := tracker.Get(id)
	require.Equal(t, types.TransferFailed, rec.Status)

	// 终态之后的进度回调被忽略
	captured(500, 1000)

	rec, _ = tracker.Get(id)
	assert.Equal(t, types.TransferFailed, rec.Status)
	assert.Equal(t, 0.0, rec.Progress)
	assert.Empty(t, snapshot())
}

// TestTracker_EvictOnly 测试记录只能显式驱逐
func TestTracker_EvictOnly(t *testing.T) {
	bus := eventbus.NewBus()

	storage := &mockStorage{
		uploadFunc: func(ctx context.Context, r io.Reader, size int64, progress interfaces.ProgressFunc) (string, error) {
			return "bafyabc", nil
		},
	}

	tracker := New(storage, bus, nil)

	id, _, err := tracker.Upload(context.Background(), "a.bin", strings.NewReader("data"), 4)
	require.NoError(t, err)

	// 完成后记录仍然保留
	_, ok := tracker.Get(id)
	require.True(t, ok)
	require.Len(t, tracker.List(), 1)

	assert.True(t, tracker.Evict(id))
	_, ok = tracker.Get(id)
	assert.False(t, ok)

	// 重复驱逐返回 false
	assert.False(t, tracker.Evict(id))
}
