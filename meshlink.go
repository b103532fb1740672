package meshlink

import "context"

// Version 库版本
const Version = "0.1.0"

// StartMessaging 创建并连接消息客户端（一步到位的便捷入口）
//
// 等价于 NewMessagingClient + Connect；失败时不返回客户端。
//
// 示例：
//
//	mc, err := meshlink.StartMessaging(ctx,
//	    meshlink.WithBootstrapPeers("wss://gw.example.org/ws"),
//	)
func StartMessaging(ctx context.Context, opts ...Option) (*MessagingClient, error) {
	client, err := NewMessagingClient(opts...)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// StartStorage 创建并连接存储客户端（一步到位的便捷入口）
func StartStorage(ctx context.Context, opts ...Option) (*StorageClient, error) {
	client, err := NewStorageClient(opts...)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
