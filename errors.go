package meshlink

import (
	"errors"

	"github.com/dep2p/go-meshlink/internal/core/connmgr"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrClientClosed 客户端已关闭
	ErrClientClosed = errors.New("client closed")

	// ErrNoEndpoints 候选地址列表为空
	ErrNoEndpoints = connmgr.ErrNoEndpoints

	// ────────────────────────────────────────────────────────────────────────
	// 连接维持错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrAllPeersLost 监控发现节点数降为零（随 error 事件发出）
	ErrAllPeersLost = connmgr.ErrAllPeersLost
)
