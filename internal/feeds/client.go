package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/crossfin/crossfin-route-engine/internal/monitor"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

// DefaultUserAgent 浏览器 UA，部分行情 API 会拦截默认 Go UA
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Client 上游行情 API 的共享 HTTP 客户端
// 每次调用由 context 限定超时，响应体做 JSON 形状校验
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
}

// NewClient 创建客户端，timeout 为单次上游调用的超时上限
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:   timeout,
		userAgent: DefaultUserAgent,
	}
}

// GetJSON 发起 GET 请求并返回解析后的 JSON
// 非 2xx、网络错误 => ErrUpstreamUnavailable；非法 JSON => ErrInvalidShape
func (c *Client) GetJSON(ctx context.Context, feed, url string) (gjson.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: build request: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		monitor.GetMetrics().IncUpstreamError(feed, "network")
		return gjson.Result{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	monitor.GetMetrics().ObserveUpstreamLatency(feed, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		monitor.GetMetrics().IncUpstreamError(feed, "status")
		return gjson.Result{}, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		monitor.GetMetrics().IncUpstreamError(feed, "read")
		return gjson.Result{}, fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}

	if !gjson.ValidBytes(body) {
		monitor.GetMetrics().IncUpstreamError(feed, "shape")
		return gjson.Result{}, fmt.Errorf("%w: not valid json", ErrInvalidShape)
	}

	return gjson.ParseBytes(body), nil
}

// GetJSONMirrors 依次尝试镜像地址，任一成功即返回
func (c *Client) GetJSONMirrors(ctx context.Context, feed string, bases []string, path string) (gjson.Result, error) {
	var lastErr error
	for _, base := range bases {
		result, err := c.GetJSON(ctx, feed, base+path)
		if err == nil {
			return result, nil
		}
		lastErr = err
		logger.Debug().Err(err).Str("feed", feed).Str("base", base).Msg("mirror attempt failed")
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no mirrors configured", ErrUpstreamUnavailable)
	}
	return gjson.Result{}, lastErr
}
