// Package transfer 实现上传与下载的进度跟踪
//
// 每次传输入队时生成唯一标识并登记，进度单调推进，
// 终态只到达一次；记录只能由调用方显式驱逐。
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-meshlink/internal/core/eventbus"
	"github.com/dep2p/go-meshlink/internal/core/metrics"
	"github.com/dep2p/go-meshlink/internal/core/storageapi"
	"github.com/dep2p/go-meshlink/pkg/interfaces"
	"github.com/dep2p/go-meshlink/pkg/lib/log"
	"github.com/dep2p/go-meshlink/pkg/types"
)

var logger = log.Logger("core/transfer")

// ════════════════════════════════════════════════════════════════════════════
//                              跟踪器
// ════════════════════════════════════════════════════════════════════════════

// Tracker 传输跟踪器
//
// 独占持有全部传输记录。并发传输互不影响：
// 单个传输失败只使该记录进入 Failed。
type Tracker struct {
	mu        sync.RWMutex
	transfers map[string]*types.Transfer

	api     interfaces.StorageAPI
	bus     *eventbus.Bus
	metrics *metrics.Metrics
}

// New 创建传输跟踪器
func New(api interfaces.StorageAPI, bus *eventbus.Bus, m *metrics.Metrics) *Tracker {
	return &Tracker{
		transfers: make(map[string]*types.Transfer),
		api:       api,
		bus:       bus,
		metrics:   m,
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              上传与下载
// ════════════════════════════════════════════════════════════════════════════

// Upload 上传一段内容并跟踪进度
//
// 失败时记录进入 Failed；ctx 取消时进入 Cancelled。
// 跟踪器从不自动重试，重试由调用方发起新的传输表达。
//
// 参数：
//   - ctx: 上下文（取消使传输进入 Cancelled）
//   - fileName: 载荷引用（记录用）
//   - r: 内容读取器
//   - size: 内容总长度，-1 表示未知
//
// 返回：
//   - string: 传输标识
//   - *types.UploadResult: 上传结果
//   - error: 上传失败
func (t *Tracker) Upload(ctx context.Context, fileName string, r io.Reader, size int64) (string, *types.UploadResult, error) {
	rec := t.enqueue(types.Upload, fileName)

	t.setActive(rec.ID)

	contentID, err := t.api.Upload(ctx, r, size, t.progressFunc(rec.ID, types.Upload))
	if err != nil {
		return rec.ID, nil, t.fail(ctx, rec.ID, err)
	}

	t.complete(rec.ID, types.Upload)

	return rec.ID, &types.UploadResult{ContentID: contentID, Size: size}, nil
}

// Download 按内容标识下载并跟踪进度
//
// 参数：
//   - ctx: 上下文（取消使传输进入 Cancelled）
//   - contentID: 内容标识
//
// 返回：
//   - string: 传输标识
//   - *types.DownloadResult: 下载结果
//   - error: 下载失败
func (t *Tracker) Download(ctx context.Context, contentID string) (string, *types.DownloadResult, error) {
	rec := t.enqueue(types.Download, contentID)

	t.setActive(rec.ID)

	result, err := t.api.Download(ctx, contentID, t.progressFunc(rec.ID, types.Download))
	if err != nil {
		return rec.ID, nil, t.fail(ctx, rec.ID, err)
	}

	t.complete(rec.ID, types.Download)

	return rec.ID, result, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              记录查询与驱逐
// ════════════════════════════════════════════════════════════════════════════

// Get 返回单条传输记录的快照
func (t *Tracker) Get(id string) (types.Transfer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.transfers[id]
	if !ok {
		return types.Transfer{}, false
	}
	return *rec, true
}

// List 返回全部传输记录的快照
func (t *Tracker) List() []types.Transfer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.Transfer, 0, len(t.transfers))
	for _, rec := range t.transfers {
		out = append(out, *rec)
	}
	return out
}

// Evict 驱逐一条传输记录
//
// 记录生命周期完全由调用方管理，跟踪器从不主动删除；
// 这是删除记录的唯一途径。
func (t *Tracker) Evict(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.transfers[id]; !ok {
		return false
	}
	delete(t.transfers, id)
	return true
}

// ════════════════════════════════════════════════════════════════════════════
//                              状态推进
// ════════════════════════════════════════════════════════════════════════════

// enqueue 登记一条新传输
func (t *Tracker) enqueue(direction types.Direction, ref string) *types.Transfer {
	rec := &types.Transfer{
		ID:        uuid.NewString(),
		Direction: direction,
		Ref:       ref,
		Status:    types.TransferPending,
	}

	t.mu.Lock()
	t.transfers[rec.ID] = rec
	t.mu.Unlock()

	logger.Debug("传输入队", "id", log.TruncateID(rec.ID, 8), "direction", direction, "ref", ref)
	return rec
}

// setActive 将传输标记为进行中
func (t *Tracker) setActive(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.transfers[id]; ok && !rec.Status.Terminal() {
		rec.Status = types.TransferActive
	}
}

// progressFunc 构造单个传输的进度回调
//
// 进度单调不减：总长未知（total <= 0）时不估算、不推进；
// 终态到达后的回调一律忽略。
func (t *Tracker) progressFunc(id string, direction types.Direction) interfaces.ProgressFunc {
	var lastTransferred int64

	return func(transferred, total int64) {
		if delta := transferred - lastTransferred; delta > 0 {
			t.metrics.AddBytes(direction.String(), delta)
			lastTransferred = transferred
		}

		if total <= 0 {
			return
		}

		fraction := float64(transferred) / float64(total)
		if fraction > 1 {
			fraction = 1
		}

		t.mu.Lock()
		rec, ok := t.transfers[id]
		if !ok || rec.Status.Terminal() || fraction <= rec.Progress {
			t.mu.Unlock()
			return
		}
		rec.Progress = fraction
		t.mu.Unlock()

		t.bus.Emit(types.Event{
			Kind:       types.EventTransferProgress,
			TransferID: id,
			Fraction:   fraction,
		})
	}
}

// complete 将传输推进到 Completed 终态
func (t *Tracker) complete(id string, direction types.Direction) {
	t.mu.Lock()
	rec, ok := t.transfers[id]
	if !ok || rec.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	rec.Status = types.TransferCompleted
	rec.Progress = 1
	t.mu.Unlock()

	t.metrics.ObserveTransfer(direction.String(), types.TransferCompleted.String())

	t.bus.Emit(types.Event{
		Kind:       types.EventTransferProgress,
		TransferID: id,
		Fraction:   1,
	})

	logger.Debug("传输完成", "id", log.TruncateID(id, 8))
}

// fail 将传输推进到 Failed 或 Cancelled 终态
//
// 调用方主动取消（context.Canceled）进入 Cancelled 而非 Failed；
// 超时（context.DeadlineExceeded）与其余错误包装为
// *types.TransferError（携带 HTTP 状态码，如有）。
func (t *Tracker) fail(ctx context.Context, id string, cause error) error {
	cancelled := errors.Is(cause, context.Canceled) ||
		errors.Is(ctx.Err(), context.Canceled)

	status := types.TransferFailed
	var outErr error

	if cancelled {
		status = types.TransferCancelled
		outErr = fmt.Errorf("transfer %s cancelled: %w", id, context.Canceled)
	} else {
		transferErr := &types.TransferError{TransferID: id, Cause: cause}
		var statusErr *storageapi.StatusError
		if errors.As(cause, &statusErr) {
			transferErr.StatusCode = statusErr.Code
		}
		outErr = transferErr
	}

	t.mu.Lock()
	rec, ok := t.transfers[id]
	if !ok || rec.Status.Terminal() {
		t.mu.Unlock()
		return outErr
	}
	rec.Status = status
	if status == types.TransferFailed {
		rec.Err = outErr
	}
	direction := rec.Direction
	t.mu.Unlock()

	t.metrics.ObserveTransfer(direction.String(), status.String())

	if status == types.TransferFailed {
		t.bus.Emit(types.Event{Kind: types.EventError, Err: outErr})
		logger.Warn("传输失败", "id", log.TruncateID(id, 8), "error", cause)
	} else {
		logger.Debug("传输取消", "id", log.TruncateID(id, 8))
	}

	return outErr
}
