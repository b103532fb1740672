package meshlink

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration JSON 友好的时长类型
//
// 序列化为 "15s" 风格的字符串，兼容数字（纳秒）输入。
type Duration time.Duration

// MarshalJSON 实现 json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON 实现 json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration type %T", v)
	}
}

// UserConfig 用户配置结构
//
// 这是面向用户的简化配置结构，可以从 JSON 文件加载。
//
// 注意：配置文件的读取和环境变量的处理应由应用层（cmd/*）负责，
// 库本身不负责 I/O 操作。示例用法：
//
//	data, _ := os.ReadFile("config.json")
//	var cfg meshlink.UserConfig
//	json.Unmarshal(data, &cfg)
//	mc, _ := meshlink.NewMessagingClient(cfg.MessagingOptions()...)
//	sc, _ := meshlink.NewStorageClient(cfg.StorageOptions()...)
type UserConfig struct {
	// Messaging 消息客户端配置
	Messaging *MessagingConfig `json:"messaging,omitempty"`

	// Storage 存储客户端配置
	Storage *StorageConfig `json:"storage,omitempty"`
}

// MessagingConfig 消息客户端配置
type MessagingConfig struct {
	// BootstrapPeers 引导候选地址（ws:// 或 wss:// URL，严格按序尝试）
	BootstrapPeers []string `json:"bootstrap_peers,omitempty"`

	// Capability 所需的远端能力标签，为空表示任意节点即可
	Capability string `json:"capability,omitempty"`

	// CapabilityTimeout 能力节点发现超时，默认 15s
	CapabilityTimeout Duration `json:"capability_timeout,omitempty"`

	// MonitorInterval 节点监控间隔，默认 5s
	MonitorInterval Duration `json:"monitor_interval,omitempty"`
}

// StorageConfig 存储客户端配置
type StorageConfig struct {
	// Endpoint 存储节点基地址，如 http://127.0.0.1:5001
	Endpoint string `json:"endpoint,omitempty"`

	// Username Basic 鉴权用户名（远程模式）
	Username string `json:"username,omitempty"`

	// Password Basic 鉴权密码
	Password string `json:"password,omitempty"`

	// HealthMaxAge 健康探测结果的缓存时长，默认 30s
	HealthMaxAge Duration `json:"health_max_age,omitempty"`
}

// MessagingOptions 转换为消息客户端选项
func (c *UserConfig) MessagingOptions() []Option {
	if c.Messaging == nil {
		return nil
	}

	opts := []Option{
		WithBootstrapPeers(c.Messaging.BootstrapPeers...),
	}
	if c.Messaging.Capability != "" {
		opts = append(opts, WithCapability(c.Messaging.Capability))
	}
	if c.Messaging.CapabilityTimeout > 0 {
		opts = append(opts, WithCapabilityTimeout(time.Duration(c.Messaging.CapabilityTimeout)))
	}
	if c.Messaging.MonitorInterval > 0 {
		opts = append(opts, WithMonitorInterval(time.Duration(c.Messaging.MonitorInterval)))
	}
	return opts
}

// StorageOptions 转换为存储客户端选项
func (c *UserConfig) StorageOptions() []Option {
	if c.Storage == nil {
		return nil
	}

	opts := []Option{
		WithStorageEndpoint(c.Storage.Endpoint),
	}
	if c.Storage.Username != "" || c.Storage.Password != "" {
		opts = append(opts, WithBasicAuth(c.Storage.Username, c.Storage.Password))
	}
	if c.Storage.HealthMaxAge > 0 {
		opts = append(opts, WithHealthMaxAge(time.Duration(c.Storage.HealthMaxAge)))
	}
	return opts
}
