package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormZapLogger routes GORM's query log into zap.
type GormZapLogger struct {
	ZapLogger     *zap.Logger
	LogLevel      logger.LogLevel
	SlowThreshold time.Duration
}

// NewGormZapLogger logs failed and slow queries. A non-positive slow
// threshold disables slow query reporting. Switch to logger.Info with
// LogMode to trace every statement.
func NewGormZapLogger(zapLogger *zap.Logger, slow time.Duration) *GormZapLogger {
	return &GormZapLogger{
		ZapLogger:     zapLogger.With(zap.String("component", "gorm")),
		LogLevel:      logger.Warn,
		SlowThreshold: slow,
	}
}

func (l *GormZapLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		l.ZapLogger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		l.ZapLogger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		l.ZapLogger.Error(fmt.Sprintf(msg, data...))
	}
}

// Trace reports one statement. Missing records are an expected outcome of
// lookups and are not logged as failures.
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold

	var level logger.LogLevel
	switch {
	case failed:
		level = logger.Error
	case slow:
		level = logger.Warn
	default:
		level = logger.Info
	}
	if l.LogLevel < level {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	switch level {
	case logger.Error:
		l.ZapLogger.Error("Query failed", append(fields, zap.Error(err))...)
	case logger.Warn:
		l.ZapLogger.Warn("Slow query", append(fields, zap.Duration("threshold", l.SlowThreshold))...)
	default:
		l.ZapLogger.Debug("Query", fields...)
	}
}
