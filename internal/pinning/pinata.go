// Package pinning 上传活动图片和元数据到 Pinata，返回网关 URL 作为活动的 image 引用。
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/blues/cfc/internal/config"
	"github.com/blues/cfc/internal/logger"
	"github.com/cenkalti/backoff/v5"
)

// ErrUploadFailed 上传失败
var ErrUploadFailed = errors.New("upload failed")

const (
	pinFilePath = "/pinning/pinFileToIPFS"
	pinJSONPath = "/pinning/pinJSONToIPFS"
)

// Metadata 随文件提交的 Pinata 元数据
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Result 一次上传的结果
type Result struct {
	CID string `json:"cid"`
	URL string `json:"url"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// retryable 可以重试的上传错误（网络错误、429、5xx）
type retryable struct {
	err error
}

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

// Client Pinata 客户端
type Client struct {
	apiURL     string
	gatewayURL string
	apiKey     string
	apiSecret  string
	maxTries   uint
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBackOff 替换重试间隔策略
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = fn
	}
}

// NewClient 创建 Pinata 客户端
func NewClient(cfg config.PinningConfig, opts ...Option) *Client {
	tries := cfg.MaxRetries + 1
	if tries < 1 {
		tries = 1
	}
	c := &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		maxTries:   uint(tries),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured 是否配置了凭证
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// PinFile 上传文件
func (c *Client) PinFile(ctx context.Context, name string, r io.Reader, meta Metadata) (*Result, error) {
	// 读入内存以便重试时重新发送
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrUploadFailed, name, err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrUploadFailed, name)
	}
	if meta.Name == "" {
		meta.Name = name
	}

	build := func() (io.Reader, string, error) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", err
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return nil, "", err
		}
		if err := mw.WriteField("pinataMetadata", string(metaJSON)); err != nil {
			return nil, "", err
		}
		if err := mw.WriteField("pinataOptions", `{"cidVersion":0}`); err != nil {
			return nil, "", err
		}
		if err := mw.Close(); err != nil {
			return nil, "", err
		}
		return &body, mw.FormDataContentType(), nil
	}

	return c.pin(ctx, pinFilePath, build)
}

// PinJSON 上传 JSON 文档
func (c *Client) PinJSON(ctx context.Context, content interface{}, meta Metadata) (*Result, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"pinataContent":  content,
		"pinataMetadata": meta,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding json: %w", ErrUploadFailed, err)
	}

	build := func() (io.Reader, string, error) {
		return bytes.NewReader(payload), "application/json", nil
	}
	return c.pin(ctx, pinJSONPath, build)
}

// pin 发送请求，只重试可重试的错误
func (c *Client) pin(ctx context.Context, path string, build func() (io.Reader, string, error)) (*Result, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: pinning credentials not configured", ErrUploadFailed)
	}

	attempt := 0
	operation := func() (*Result, error) {
		attempt++
		res, err := c.do(ctx, path, build)
		if err == nil {
			return res, nil
		}
		var re retryable
		if errors.As(err, &re) {
			logger.Warn("Pinning attempt %d failed: %v", attempt, err)
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	logger.Info("Pinned %s after %d attempt(s)", res.CID, attempt)
	return res, nil
}

func (c *Client) do(ctx context.Context, path string, build func() (io.Reader, string, error)) (*Result, error) {
	body, contentType, err := build()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, retryable{err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryable{err}
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("pinata returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, retryable{statusErr}
		}
		return nil, statusErr
	}

	var pr pinResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("failed to decode pinata response: %w", err)
	}
	if pr.IpfsHash == "" {
		return nil, fmt.Errorf("pinata response has no IpfsHash")
	}

	return &Result{CID: pr.IpfsHash, URL: c.gatewayURL + "/" + pr.IpfsHash}, nil
}
