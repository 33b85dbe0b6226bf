package gormx

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger 将 GORM 日志输出到统一 logger。
// 未命中记录不视为错误，查询日志的读路径经常返回空结果。
type GormLogger struct {
	LogLevel                  gormlogger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

var _ gormlogger.Interface = (*GormLogger)(nil)

func NewGormLogger(level gormlogger.LogLevel, slow time.Duration, ignoreNotFound bool) *GormLogger {
	return &GormLogger{LogLevel: level, SlowThreshold: slow, IgnoreRecordNotFoundError: ignoreNotFound}
}

// LevelFromInt 选项中的数字级别（1 silent, 2 error, 3 warn, 4 info）转换为 GORM 级别。
func LevelFromInt(level int) gormlogger.LogLevel {
	if level < int(gormlogger.Error) || level > int(gormlogger.Info) {
		return gormlogger.Silent
	}
	return gormlogger.LogLevel(level)
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.LogLevel >= gormlogger.Info {
		l.with(ctx).Infof(msg, args...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.LogLevel >= gormlogger.Warn {
		l.with(ctx).Warnf(msg, args...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.LogLevel >= gormlogger.Error {
		l.with(ctx).Errorf(msg, args...)
	}
}

// Trace 每条 SQL 执行后调用：失败记 error，慢查询记 warn，Info 级别记录全部语句。
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !(l.IgnoreRecordNotFoundError && isRecordNotFoundError(err))
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold

	var log func(msg string, keysAndValues ...any)
	var msg string
	switch {
	case failed && l.LogLevel >= gormlogger.Error:
		log, msg = l.with(ctx).Errorw, "sql failed"
	case slow && l.LogLevel >= gormlogger.Warn:
		log, msg = l.with(ctx).Warnw, "slow sql"
	case l.LogLevel >= gormlogger.Info:
		log, msg = l.with(ctx).Infow, "sql"
	default:
		return
	}

	sql, rows := fc()
	fields := []any{"sql", sql, "rows", rows, "elapsed_ms", elapsed.Milliseconds()}
	if failed {
		fields = append(fields, "error", err.Error())
	}
	log(msg, fields...)
}

func (l *GormLogger) with(ctx context.Context) core.Logger {
	return logger.Global().WithCtx(ctx, "component", "gorm")
}

func isRecordNotFoundError(err error) bool {
	return errors.Is(err, gormlogger.ErrRecordNotFound)
}
