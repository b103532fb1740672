package types

// ════════════════════════════════════════════════════════════════════════════
//                              传输状态
// ════════════════════════════════════════════════════════════════════════════

// TransferStatus 传输状态
type TransferStatus int

const (
	// TransferPending 已入队，尚未开始
	TransferPending TransferStatus = iota

	// TransferActive 进行中
	TransferActive

	// TransferCompleted 已完成（终态）
	TransferCompleted

	// TransferFailed 已失败（终态）
	TransferFailed

	// TransferCancelled 已取消（终态）
	TransferCancelled
)

// String 返回状态的字符串表示
func (s TransferStatus) String() string {
	switch s {
	case TransferPending:
		return "pending"
	case TransferActive:
		return "active"
	case TransferCompleted:
		return "completed"
	case TransferFailed:
		return "failed"
	case TransferCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal 返回状态是否为终态
//
// 终态只能到达一次，到达后进度回调被忽略。
func (s TransferStatus) Terminal() bool {
	return s == TransferCompleted || s == TransferFailed || s == TransferCancelled
}

// ════════════════════════════════════════════════════════════════════════════
//                              传输方向
// ════════════════════════════════════════════════════════════════════════════

// Direction 传输方向
type Direction int

const (
	// Upload 上传
	Upload Direction = iota

	// Download 下载
	Download
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case Upload:
		return "upload"
	case Download:
		return "download"
	default:
		return "unknown"
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              传输记录
// ════════════════════════════════════════════════════════════════════════════

// Transfer 一次上传或下载操作的记录
//
// 由 TransferTracker 独占持有，入队时创建，
// 只能通过调用方显式驱逐（Evict）删除，跟踪器从不主动删除。
//
// 不变量：
//   - Progress 在到达终态前单调不减
//   - 终态（Completed/Failed/Cancelled）只设置一次
type Transfer struct {
	// ID 唯一标识
	ID string

	// Direction 传输方向
	Direction Direction

	// Ref 载荷引用（上传时为文件名，下载时为内容标识）
	Ref string

	// Progress 进度（0.0 ~ 1.0）；总大小未知时保持 0，不做估算
	Progress float64

	// Status 当前状态
	Status TransferStatus

	// Err 失败原因（仅 Failed 状态有值）
	Err error
}

// ════════════════════════════════════════════════════════════════════════════
//                              传输结果
// ════════════════════════════════════════════════════════════════════════════

// UploadResult 上传结果
type UploadResult struct {
	// ContentID 存储网络返回的内容标识
	ContentID string

	// Size 上传的字节数
	Size int64
}

// DownloadResult 下载结果
type DownloadResult struct {
	// Data 下载的字节内容
	Data []byte

	// ContentType 响应的媒体类型（可能为空）
	ContentType string

	// FileName 文件名（优先取 Content-Disposition，否则回退为内容标识）
	FileName string
}
