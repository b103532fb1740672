// 本文件定义 Codec 接口，绑定主题的编码/解码/校验三元组。
package interfaces

import "github.com/dep2p/go-meshlink/pkg/types"

// Codec 消息编解码器
//
// 把一个主题绑定到 encode/decode/validate 三元组，
// 使发布订阅可以对载荷形状保持泛化。
//
// 校验与解码解耦：线上 schema 可以演进（新增可选字段）
// 而不破坏应用层的严格契约；同一主题可以承载互不信任的
// 发送方的载荷而不会击穿消费者。
type Codec interface {
	// Encode 编码消息
	//
	// 消息不符合绑定 schema 时返回 *types.EncodingError。
	Encode(msg types.Envelope) ([]byte, error)

	// Decode 解码字节流
	//
	// 输入损坏或截断时返回 *types.DecodingError，绝不 panic。
	Decode(data []byte) (types.Envelope, error)

	// Validate 纯结构谓词
	//
	// Decode 的输出在投递给应用处理器前总是会被订阅路径
	// 再次校验，无效消息被丢弃（并记录日志），不会投递。
	Validate(msg types.Envelope) bool
}
