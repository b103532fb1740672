package types

import "time"

// ════════════════════════════════════════════════════════════════════════════
//                              消息信封
// ════════════════════════════════════════════════════════════════════════════

// Envelope 参考部署使用的文件广播信封
//
// 这是发布订阅通道上承载的结构化消息。编解码由
// internal/core/protocol 的 Codec 完成，字段布局见其文档。
type Envelope struct {
	// Timestamp 发送时刻（Unix 纳秒，64 位无符号）
	Timestamp uint64

	// Sender 发送者标识
	Sender string

	// FileName 文件名
	FileName string

	// FileSize 文件大小（字节，浮点以兼容参考部署的 schema）
	FileSize float64

	// FileType 文件媒体类型
	FileType string

	// FileID 存储网络上的内容标识
	FileID string

	// Encrypted 是否加密（可选字段）
	Encrypted *bool

	// AccessCondition 访问条件表达式（可选字段）
	AccessCondition *string
}

// SentAt 返回发送时刻
func (e Envelope) SentAt() time.Time {
	return time.Unix(0, int64(e.Timestamp))
}
