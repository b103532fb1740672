package types

// ════════════════════════════════════════════════════════════════════════════
//                              节点信息
// ════════════════════════════════════════════════════════════════════════════

// PeerRecord 对等节点快照
//
// 由连接管理器按需生成，不做持久化。
// 每次调用 Peers() 都返回当前连接的全新快照。
type PeerRecord struct {
	// ID 节点标识（不透明字符串）
	ID string

	// TransportTags 节点支持的传输能力标签（如 "relay", "store", "filter"）
	TransportTags []string

	// Connected 当前是否保持连接
	Connected bool
}

// HasTag 检查节点是否具有指定的传输能力标签
func (p PeerRecord) HasTag(tag string) bool {
	for _, t := range p.TransportTags {
		if t == tag {
			return true
		}
	}
	return false
}
