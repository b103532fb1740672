// Package main 提供 meshlink 命令行入口
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	meshlink "github.com/dep2p/go-meshlink"
	"github.com/dep2p/go-meshlink/pkg/lib/log"
)

var logger = log.Logger("meshlink/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//	命令行参数：运行时覆盖 / 快速测试
//	JSON 配置文件：持久化配置 / 长期运行
var (
	// ─────────────────────────────────────────────────────────────────────
	// 运行时参数
	// ─────────────────────────────────────────────────────────────────────
	configFile = flag.String("config", "", "配置文件路径（JSON）")
	bootstrap  = flag.String("bootstrap", "", "引导候选地址（逗号分隔的 ws:// URL，覆盖配置文件）")
	storage    = flag.String("storage", "", "存储节点基地址（覆盖配置文件）")
	topic      = flag.String("topic", "files", "订阅主题")

	// ─────────────────────────────────────────────────────────────────────
	// 日志参数
	// ─────────────────────────────────────────────────────────────────────
	logLevel = flag.String("log-level", "info", "日志级别 (debug/info/warn/error)")

	// ─────────────────────────────────────────────────────────────────────
	// 信息显示
	// ─────────────────────────────────────────────────────────────────────
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Printf("meshlink v%s\n", meshlink.Version)
		return nil
	}

	if err := log.SetLevelFromString(*logLevel); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := meshlink.BuildApp(cfg)
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	if app.Messaging != nil {
		attachObservers(app.Messaging)

		cancelSub, err := app.Messaging.Subscribe(*topic, func(msg meshlink.Envelope) {
			logger.Info("收到消息",
				"topic", *topic,
				"sender", msg.Sender,
				"file", msg.FileName,
				"fileID", log.TruncateID(msg.FileID, 12))
		})
		if err != nil {
			logger.Warn("订阅失败", "topic", *topic, "error", err)
		} else {
			defer cancelSub()
		}
	}

	if app.Storage != nil {
		diag := app.Storage.Diagnostics()
		logger.Info("存储节点就绪", "endpoint", diag.Endpoint, "healthy", diag.LastHealthy)
	}

	logger.Info("meshlink 运行中，Ctrl+C 退出")
	<-ctx.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	return app.Stop(stopCtx)
}

// loadConfig 组合配置文件与命令行覆盖
func loadConfig() (meshlink.UserConfig, error) {
	var cfg meshlink.UserConfig

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return cfg, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if *bootstrap != "" {
		if cfg.Messaging == nil {
			cfg.Messaging = &meshlink.MessagingConfig{}
		}
		cfg.Messaging.BootstrapPeers = strings.Split(*bootstrap, ",")
	}

	if *storage != "" {
		if cfg.Storage == nil {
			cfg.Storage = &meshlink.StorageConfig{}
		}
		cfg.Storage.Endpoint = *storage
	}

	if cfg.Messaging == nil && cfg.Storage == nil {
		return cfg, fmt.Errorf("未配置任何客户端（--bootstrap、--storage 或 --config）")
	}

	return cfg, nil
}

// attachObservers 把生命周期事件接到日志
func attachObservers(mc *meshlink.MessagingClient) {
	mc.On(meshlink.EventStateChange, func(evt meshlink.Event) {
		logger.Info("状态变化", "state", evt.State)
	})
	mc.On(meshlink.EventError, func(evt meshlink.Event) {
		logger.Warn("错误事件", "error", evt.Err)
	})
	mc.On(meshlink.EventDisconnected, func(evt meshlink.Event) {
		logger.Info("连接断开")
	})
}
