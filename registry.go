package meshlink

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"go.uber.org/multierr"
)

// ════════════════════════════════════════════════════════════════════════════
//                              客户端注册表
// ════════════════════════════════════════════════════════════════════════════

// Registry 客户端注册表
//
// 按配置指纹缓存客户端实例：相同配置返回同一实例，
// 不同配置各自独立。实例归注册表所有，统一通过 Close 释放。
type Registry struct {
	mu        sync.Mutex
	messaging map[string]*MessagingClient
	storage   map[string]*StorageClient
	closed    bool
}

// NewRegistry 创建客户端注册表
func NewRegistry() *Registry {
	return &Registry{
		messaging: make(map[string]*MessagingClient),
		storage:   make(map[string]*StorageClient),
	}
}

// fingerprint 计算配置指纹
//
// 规范化 JSON 的 SHA-256，base58 渲染为短键。
func fingerprint(cfg interface{}) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint config: %w", err)
	}
	digest := sha256.Sum256(data)
	return base58.Encode(digest[:]), nil
}

// Messaging 返回配置对应的消息客户端（不存在则创建）
func (r *Registry) Messaging(cfg MessagingConfig) (*MessagingClient, error) {
	key, err := fingerprint(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClientClosed
	}

	if client, ok := r.messaging[key]; ok {
		return client, nil
	}

	client, err := NewMessagingClient((&UserConfig{Messaging: &cfg}).MessagingOptions()...)
	if err != nil {
		return nil, err
	}

	r.messaging[key] = client
	return client, nil
}

// Storage 返回配置对应的存储客户端（不存在则创建）
func (r *Registry) Storage(cfg StorageConfig) (*StorageClient, error) {
	key, err := fingerprint(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClientClosed
	}

	if client, ok := r.storage[key]; ok {
		return client, nil
	}

	client, err := NewStorageClient((&UserConfig{Storage: &cfg}).StorageOptions()...)
	if err != nil {
		return nil, err
	}

	r.storage[key] = client
	return client, nil
}

// Close 断开并移除全部客户端
//
// 幂等；关闭后注册表不再派发新客户端。
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	messaging := make([]*MessagingClient, 0, len(r.messaging))
	for _, client := range r.messaging {
		messaging = append(messaging, client)
	}
	storage := make([]*StorageClient, 0, len(r.storage))
	for _, client := range r.storage {
		storage = append(storage, client)
	}
	r.messaging = make(map[string]*MessagingClient)
	r.storage = make(map[string]*StorageClient)
	r.mu.Unlock()

	var errs error
	for _, client := range messaging {
		errs = multierr.Append(errs, client.Disconnect())
	}
	for _, client := range storage {
		errs = multierr.Append(errs, client.Disconnect())
	}
	return errs
}
