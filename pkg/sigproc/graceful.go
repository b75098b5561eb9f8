package sigproc

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin-route-engine/pkg/goplus"
)

type HandlerFunc func(os.Signal)

// GracefulShutdown 注册信号处理，收到退出信号后执行 shutdown，
// 超过 30 秒未完成则强制退出
func GracefulShutdown(shutdown HandlerFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	goplus.Go(func() {
		sig := <-sigChan
		log.Info().Msg(fmt.Sprintf("received signal: %s", sig.String()))

		goplus.Go(func() {
			shutdown(sig)
		})

		<-time.After(30 * time.Second)

		os.Exit(0)
	})
}
