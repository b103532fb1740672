// Package meshlink 提供消息蜂群与内容寻址存储的统一客户端
//
// MeshLink 是一层面向应用的抽象：向下对接一个 P2P 消息网络
// 和一个内容寻址存储网络，向上暴露统一的连接生命周期、
// 类型化的发布订阅、以及带进度跟踪的上传下载。
//
// # 核心概念
//
// MeshLink 围绕两个客户端构建：
//
//   - MessagingClient: 消息客户端，管理到蜂群的连接与主题订阅
//   - StorageClient: 存储客户端，管理存储节点健康与内容传输
//
// 两者实现同一个生命周期契约（interfaces.Service）：
// {Idle, Connecting, Connected, Disconnected, Failed} 状态机，
// 所有状态变化与错误通过事件对外可见。
//
// # 快速开始
//
//	import "github.com/dep2p/go-meshlink"
//
//	// 1. 创建消息客户端并连接
//	mc, err := meshlink.NewMessagingClient(
//	    meshlink.WithBootstrapPeers("wss://gw1.example.org/ws", "wss://gw2.example.org/ws"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := mc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mc.Disconnect()
//
//	// 2. 订阅主题
//	cancel, _ := mc.Subscribe("files", func(msg meshlink.Envelope) {
//	    fmt.Println("received:", msg.FileName)
//	})
//	defer cancel()
//
//	// 3. 上传内容
//	sc, _ := meshlink.NewStorageClient(
//	    meshlink.WithStorageEndpoint("http://127.0.0.1:5001"),
//	)
//	_ = sc.Connect(ctx)
//	id, result, _ := sc.Upload(ctx, "report.pdf", file, size)
//
// # 可观察性
//
// 渲染层只依赖事件：
//
//	mc.On(meshlink.EventStateChange, func(evt meshlink.Event) { ... })
//	mc.On(meshlink.EventError, func(evt meshlink.Event) { ... })
//	sc.On(meshlink.EventTransferProgress, func(evt meshlink.Event) { ... })
//
// 事件处理器同步、按注册顺序调用；处理器内的 panic 被隔离，
// 不会影响其他处理器或发射方。
package meshlink
