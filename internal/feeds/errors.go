package feeds

import "errors"

var (
	// ErrUpstreamUnavailable 网络错误、超时或非 2xx 响应
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidShape 响应体不是预期的 JSON 结构或缺少必需字段
	ErrInvalidShape = errors.New("invalid response shape")
)
