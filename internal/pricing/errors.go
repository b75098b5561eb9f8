package pricing

import "errors"

var (
	// ErrSanityCheck 数值通过了解析但落在可信区间外
	ErrSanityCheck = errors.New("sanity check failed")

	// ErrAllTiersFailed 所有回退层级都没有产出有效价格
	ErrAllTiersFailed = errors.New("all price tiers failed")
)
