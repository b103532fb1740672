package protocol

import (
	"github.com/dep2p/go-meshlink/pkg/interfaces"
)

// Protocol 主题与编解码器的绑定
//
// 主题是不透明的字符串键，惯例上使用路径状分段
// （如 "files/announce"），核心层不做格式约束。
// 多个 Protocol 可以共享一个主题，前提是线 schema 兼容
//（核心层不做检查，由调用方保证）。
type Protocol struct {
	topic string
	codec interfaces.Codec
}

// New 创建协议绑定
//
// codec 为 nil 时使用默认的二进制编解码器。
func New(topic string, codec interfaces.Codec) *Protocol {
	if codec == nil {
		codec = NewBinaryCodec()
	}
	return &Protocol{topic: topic, codec: codec}
}

// Topic 返回绑定的主题
func (p *Protocol) Topic() string {
	return p.topic
}

// Codec 返回绑定的编解码器
func (p *Protocol) Codec() interfaces.Codec {
	return p.codec
}
