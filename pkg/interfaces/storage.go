// 本文件定义 StorageAPI 接口，抽象存储网络的 HTTP 外部接口。
package interfaces

import (
	"context"
	"io"

	"github.com/dep2p/go-meshlink/pkg/types"
)

// ProgressFunc 传输进度回调
//
// transferred 为已传输字节数；total 为总字节数，
// 总大小不可知时为 -1（此时不应换算为百分比）。
type ProgressFunc func(transferred, total int64)

// StorageAPI 存储网络客户端接口
//
// 只实现客户端契约，存储网络自身的共识与副本机制不属于本层。
type StorageAPI interface {
	// Upload 上传原始字节，返回内容标识
	//
	// size 为 -1 表示长度不可知（此时不报告进度）。
	Upload(ctx context.Context, r io.Reader, size int64, progress ProgressFunc) (string, error)

	// Download 按内容标识下载
	Download(ctx context.Context, contentID string, progress ProgressFunc) (*types.DownloadResult, error)

	// Health 健康探测
	//
	// 返回节点是否可达且响应正常；探测请求自身有独立的短超时。
	Health(ctx context.Context) (bool, error)
}
