package storageapi

import (
	"io"

	"github.com/dep2p/go-meshlink/pkg/interfaces"
)

// countingReader 在读取过程中上报累计字节数
//
// total 为 -1 时表示总长未知，回调方负责降级处理。
type countingReader struct {
	r           io.Reader
	total       int64
	transferred int64
	progress    interfaces.ProgressFunc
}

// Read 实现 io.Reader
func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.transferred += int64(n)
		c.progress(c.transferred, c.total)
	}
	return n, err
}
