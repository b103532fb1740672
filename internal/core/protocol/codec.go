// Package protocol 实现主题绑定的消息编解码
package protocol

import (
	"encoding/binary"
	"math"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-meshlink/pkg/types"
)

// maxFieldLen 单个字符串字段的长度上限
//
// 防止损坏输入中的超大长度前缀触发异常分配。
const maxFieldLen = 1 << 20 // 1 MiB

// 可选字段标志位
const (
	flagHasEncrypted       = 1 << 0
	flagEncryptedValue     = 1 << 1
	flagHasAccessCondition = 1 << 2
)

// BinaryCodec 参考信封的二进制编解码器
//
// 线格式（字段按序排列）：
//
//	u64 大端        timestamp
//	uvarint + bytes sender
//	uvarint + bytes fileName
//	u64 大端        fileSize（float64 位模式）
//	uvarint + bytes fileType
//	uvarint + bytes fileID
//	u8              flags（bit0 存在 encrypted，bit1 其值，bit2 存在 accessCondition）
//	uvarint + bytes accessCondition（仅当 bit2 置位）
//
// 字符串长度使用 uvarint 前缀，可选字段通过标志字节表达，
// 因此线上 schema 可以追加可选字段而不破坏现有消费者。
type BinaryCodec struct{}

// NewBinaryCodec 创建二进制编解码器
func NewBinaryCodec() *BinaryCodec {
	return &BinaryCodec{}
}

// ════════════════════════════════════════════════════════════════════════════
//                              编码
// ════════════════════════════════════════════════════════════════════════════

// Encode 编码信封
//
// 消息不符合 schema（Validate 不通过）时返回 *types.EncodingError。
func (c *BinaryCodec) Encode(msg types.Envelope) ([]byte, error) {
	if !c.Validate(msg) {
		return nil, &types.EncodingError{Reason: "envelope does not conform to schema"}
	}

	buf := make([]byte, 0, 64+len(msg.Sender)+len(msg.FileName)+len(msg.FileType)+len(msg.FileID))

	buf = binary.BigEndian.AppendUint64(buf, msg.Timestamp)
	buf = appendString(buf, msg.Sender)
	buf = appendString(buf, msg.FileName)
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(msg.FileSize))
	buf = appendString(buf, msg.FileType)
	buf = appendString(buf, msg.FileID)

	var flags byte
	if msg.Encrypted != nil {
		flags |= flagHasEncrypted
		if *msg.Encrypted {
			flags |= flagEncryptedValue
		}
	}
	if msg.AccessCondition != nil {
		flags |= flagHasAccessCondition
	}
	buf = append(buf, flags)

	if msg.AccessCondition != nil {
		buf = appendString(buf, *msg.AccessCondition)
	}

	return buf, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              解码
// ════════════════════════════════════════════════════════════════════════════

// Decode 解码字节流
//
// 对截断或损坏的输入返回 *types.DecodingError，绝不 panic。
// 解码结果仍需调用方（订阅路径）用 Validate 再次校验。
func (c *BinaryCodec) Decode(data []byte) (types.Envelope, error) {
	var msg types.Envelope
	r := reader{data: data}

	ts, ok := r.uint64()
	if !ok {
		return msg, &types.DecodingError{Reason: "truncated timestamp"}
	}
	msg.Timestamp = ts

	if msg.Sender, ok = r.string(); !ok {
		return msg, &types.DecodingError{Reason: "malformed sender"}
	}
	if msg.FileName, ok = r.string(); !ok {
		return msg, &types.DecodingError{Reason: "malformed fileName"}
	}

	bits, ok := r.uint64()
	if !ok {
		return msg, &types.DecodingError{Reason: "truncated fileSize"}
	}
	msg.FileSize = math.Float64frombits(bits)

	if msg.FileType, ok = r.string(); !ok {
		return msg, &types.DecodingError{Reason: "malformed fileType"}
	}
	if msg.FileID, ok = r.string(); !ok {
		return msg, &types.DecodingError{Reason: "malformed fileID"}
	}

	flags, ok := r.byte()
	if !ok {
		return msg, &types.DecodingError{Reason: "truncated flags"}
	}

	if flags&flagHasEncrypted != 0 {
		v := flags&flagEncryptedValue != 0
		msg.Encrypted = &v
	}
	if flags&flagHasAccessCondition != 0 {
		cond, ok := r.string()
		if !ok {
			return msg, &types.DecodingError{Reason: "malformed accessCondition"}
		}
		msg.AccessCondition = &cond
	}

	if !r.empty() {
		return msg, &types.DecodingError{Reason: "trailing bytes after envelope"}
	}

	return msg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              校验
// ════════════════════════════════════════════════════════════════════════════

// Validate 纯结构谓词
//
// 要求：时间戳非零、发送者与内容标识非空、
// 文件大小为非负有限数、各字符串字段不超过长度上限。
func (c *BinaryCodec) Validate(msg types.Envelope) bool {
	if msg.Timestamp == 0 {
		return false
	}
	if msg.Sender == "" || msg.FileID == "" {
		return false
	}
	if msg.FileSize < 0 || math.IsNaN(msg.FileSize) || math.IsInf(msg.FileSize, 0) {
		return false
	}
	if len(msg.Sender) > maxFieldLen || len(msg.FileName) > maxFieldLen ||
		len(msg.FileType) > maxFieldLen || len(msg.FileID) > maxFieldLen {
		return false
	}
	if msg.AccessCondition != nil && len(*msg.AccessCondition) > maxFieldLen {
		return false
	}
	return true
}

// ════════════════════════════════════════════════════════════════════════════
//                              内部工具
// ════════════════════════════════════════════════════════════════════════════

// appendString 追加 uvarint 长度前缀的字符串
func appendString(buf []byte, s string) []byte {
	buf = append(buf, varint.ToUvarint(uint64(len(s)))...)
	return append(buf, s...)
}

// reader 带边界检查的顺序读取器
type reader struct {
	data []byte
	off  int
}

func (r *reader) uint64() (uint64, bool) {
	if r.off+8 > len(r.data) {
		return 0, false
	}
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, true
}

func (r *reader) byte() (byte, bool) {
	if r.off >= len(r.data) {
		return 0, false
	}
	b := r.data[r.off]
	r.off++
	return b, true
}

func (r *reader) string() (string, bool) {
	n, read, err := varint.FromUvarint(r.data[r.off:])
	if err != nil {
		return "", false
	}
	r.off += read

	if n > maxFieldLen || r.off+int(n) > len(r.data) {
		return "", false
	}

	s := string(r.data[r.off : r.off+int(n)])
	r.off += int(n)
	return s, true
}

func (r *reader) empty() bool {
	return r.off == len(r.data)
}
