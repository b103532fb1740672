// Package storageapi 实现存储节点的 HTTP 客户端
//
// 封装内容寻址存储节点的三个端点：上传、按内容标识下载、
// 健康探测。鉴权为可选的 HTTP Basic。
package storageapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dep2p/go-meshlink/pkg/interfaces"
	"github.com/dep2p/go-meshlink/pkg/lib/log"
	"github.com/dep2p/go-meshlink/pkg/types"
)

var logger = log.Logger("core/storageapi")

// ════════════════════════════════════════════════════════════════════════════
//                              常量与错误
// ════════════════════════════════════════════════════════════════════════════

const (
	// DefaultHealthTimeout 健康探测默认超时
	DefaultHealthTimeout = 5 * time.Second

	// maxErrorBodyLen 错误响应体的最大保留长度
	maxErrorBodyLen = 512
)

// StatusError 节点返回了非成功状态码
type StatusError struct {
	// Code HTTP 状态码
	Code int

	// Body 响应体片段（用于诊断）
	Body string
}

// Error 实现 error 接口
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// ════════════════════════════════════════════════════════════════════════════
//                              客户端
// ════════════════════════════════════════════════════════════════════════════

// Config 存储客户端配置
type Config struct {
	// BaseURL 节点基地址，如 http://127.0.0.1:5001
	BaseURL string

	// Username Basic 鉴权用户名（与 Password 同时非空才启用）
	Username string

	// Password Basic 鉴权密码
	Password string

	// HTTPClient 自定义 HTTP 客户端（nil 使用默认）
	HTTPClient *http.Client

	// HealthTimeout 健康探测超时，0 表示默认 5s
	HealthTimeout time.Duration
}

// Client 存储节点 HTTP 客户端
//
// 实现 interfaces.StorageAPI。传输请求不设整体超时，
// 由调用方通过 ctx 控制生命周期；健康探测独立限时。
type Client struct {
	baseURL       string
	username      string
	password      string
	httpClient    *http.Client
	healthTimeout time.Duration
}

var _ interfaces.StorageAPI = (*Client)(nil)

// New 创建存储客户端
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}

	return &Client{
		baseURL:       base,
		username:      cfg.Username,
		password:      cfg.Password,
		httpClient:    httpClient,
		healthTimeout: healthTimeout,
	}, nil
}

// BaseURL 返回节点基地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// authenticate 按需附加 Basic 鉴权头
func (c *Client) authenticate(req *http.Request) {
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              上传
// ════════════════════════════════════════════════════════════════════════════

// Upload 上传一段内容
//
// 请求体为原始字节流，成功返回节点分配的内容标识。
// progress 在读取过程中持续回调（transferred, total）；
// size 未知时传 -1。
//
// 参数：
//   - ctx: 上下文（取消会中止传输）
//   - r: 内容读取器
//   - size: 内容总长度，-1 表示未知
//   - progress: 进度回调（可为 nil）
//
// 返回：
//   - string: 内容标识
//   - error: 上传失败
func (c *Client) Upload(ctx context.Context, r io.Reader, size int64, progress interfaces.ProgressFunc) (string, error) {
	body := io.Reader(r)
	if progress != nil {
		body = &countingReader{r: r, total: size, progress: progress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/data", body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if size >= 0 {
		req.ContentLength = size
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: truncateBody(respBody)}
	}

	contentID, err := parseUploadResponse(respBody)
	if err != nil {
		return "", err
	}

	logger.Debug("上传完成", "contentID", log.TruncateID(contentID, 12))
	return contentID, nil
}

// parseUploadResponse 从上传响应中提取内容标识
//
// 节点实现之间的响应格式并不统一，宽容解析：
// 顶层 id/cid 字段、data 包装下的 id/cid、或纯文本响应体。
func parseUploadResponse(body []byte) (string, error) {
	var envelope struct {
		ID   string `json:"id"`
		CID  string `json:"cid"`
		Data struct {
			ID  string `json:"id"`
			CID string `json:"cid"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil {
		for _, candidate := range []string{envelope.ID, envelope.CID, envelope.Data.ID, envelope.Data.CID} {
			if candidate != "" {
				return candidate, nil
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		return text, nil
	}

	return "", fmt.Errorf("upload response carries no content ID: %s", truncateBody(body))
}

// ════════════════════════════════════════════════════════════════════════════
//                              下载
// ════════════════════════════════════════════════════════════════════════════

// Download 按内容标识下载
//
// 文件名取自 Content-Disposition 头，缺失时回退为内容标识本身。
//
// 参数：
//   - ctx: 上下文（取消会中止传输）
//   - contentID: 内容标识
//   - progress: 进度回调（可为 nil）
//
// 返回：
//   - *types.DownloadResult: 内容、媒体类型与文件名
//   - error: 下载失败
func (c *Client) Download(ctx context.Context, contentID string, progress interfaces.ProgressFunc) (*types.DownloadResult, error) {
	target := c.baseURL + "/v1/data/" + url.PathEscape(contentID) + "/network/stream"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return nil, &StatusError{Code: resp.StatusCode, Body: truncateBody(body)}
	}

	reader := io.Reader(resp.Body)
	if progress != nil {
		reader = &countingReader{r: resp.Body, total: resp.ContentLength, progress: progress}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}

	fileName := fileNameFromDisposition(resp.Header.Get("Content-Disposition"))
	if fileName == "" {
		fileName = contentID
	}

	logger.Debug("下载完成", "contentID", log.TruncateID(contentID, 12), "bytes", len(data))

	return &types.DownloadResult{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		FileName:    fileName,
	}, nil
}

// fileNameFromDisposition 从 Content-Disposition 头解析文件名
func fileNameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// ════════════════════════════════════════════════════════════════════════════
//                              健康探测
// ════════════════════════════════════════════════════════════════════════════

// Health 探测节点健康
//
// 请求调试信息端点，2xx 视为健康；探测有独立的短超时。
//
// 返回：
//   - bool: 节点是否健康
//   - error: 探测请求本身失败（区别于节点不健康）
func (c *Client) Health(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/debug/info", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health request: %w", err)
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 排空响应体以复用连接
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyLen))

	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

// truncateBody 截断响应体用于错误信息
func truncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyLen {
		return text[:maxErrorBodyLen] + "..."
	}
	return text
}
