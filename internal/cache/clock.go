package cache

import "time"

// Clock 时钟抽象，测试时可注入假时钟控制 TTL
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock 真实时钟
var SystemClock Clock = systemClock{}
