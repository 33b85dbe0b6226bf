package redis

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
)

// redisLogger go-redis 内部只在连接异常时打印，统一按 warn 输出。
type redisLogger struct{}

func (redisLogger) Printf(ctx context.Context, format string, v ...any) {
	logger.Global().WithCtx(ctx).Warnw("redis client", "component", "redis", "detail", fmt.Sprintf(format, v...))
}

func init() {
	goredis.SetLogger(redisLogger{})
}
