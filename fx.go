package meshlink

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// ════════════════════════════════════════════════════════════════════════════
//                              Fx 组装
// ════════════════════════════════════════════════════════════════════════════

// App 组合根：同时持有两个客户端的运行时
type App struct {
	fxApp *fx.App

	// Messaging 消息客户端（配置缺失时为 nil）
	Messaging *MessagingClient

	// Storage 存储客户端（配置缺失时为 nil）
	Storage *StorageClient
}

// BuildApp 从用户配置构建完整应用
//
// 按配置条件加载客户端，并把连接/断开挂到 fx 生命周期：
// Start 时依次连接，Stop 时依次断开。
//
// 参数：
//   - cfg: 用户配置（至少启用一个客户端）
//   - extra: 追加的 fx 选项（测试注入等）
func BuildApp(cfg UserConfig, extra ...fx.Option) (*App, error) {
	if cfg.Messaging == nil && cfg.Storage == nil {
		return nil, fmt.Errorf("config enables no client")
	}

	app := &App{}
	modules := []fx.Option{
		fx.Supply(cfg),
	}

	if cfg.Messaging != nil {
		modules = append(modules,
			fx.Provide(func(cfg UserConfig) (*MessagingClient, error) {
				return NewMessagingClient(cfg.MessagingOptions()...)
			}),
			fx.Invoke(func(lc fx.Lifecycle, client *MessagingClient) {
				app.Messaging = client
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return client.Connect(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return client.Disconnect()
					},
				})
			}),
		)
	}

	if cfg.Storage != nil {
		modules = append(modules,
			fx.Provide(func(cfg UserConfig) (*StorageClient, error) {
				return NewStorageClient(cfg.StorageOptions()...)
			}),
			fx.Invoke(func(lc fx.Lifecycle, client *StorageClient) {
				app.Storage = client
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return client.Connect(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return client.Disconnect()
					},
				})
			}),
		)
	}

	modules = append(modules, extra...)

	// 禁用 Fx 自身的日志输出（避免干扰用户日志）
	modules = append(modules,
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app.fxApp = fx.New(modules...)
	if err := app.fxApp.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// Start 启动应用（连接全部已配置的客户端）
func (a *App) Start(ctx context.Context) error {
	return a.fxApp.Start(ctx)
}

// Stop 停止应用（断开全部客户端）
func (a *App) Stop(ctx context.Context) error {
	return a.fxApp.Stop(ctx)
}
