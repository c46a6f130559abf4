package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	customlogger "tg-scriptguard/internal/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// CustomGormLogger routes gorm's output through the zap-backed logger package.
type CustomGormLogger struct {
	LogLevel                  logger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewCustomGormLogger maps our level names onto gorm's coarser levels
func NewCustomGormLogger(level string) logger.Interface {
	var logLevel logger.LogLevel

	switch level {
	case "DEBUG":
		logLevel = logger.Info // SQL traces only at debug
	case "WARNING", "ERROR":
		logLevel = logger.Warn
	case "FATAL":
		logLevel = logger.Error
	default:
		logLevel = logger.Warn
	}

	return &CustomGormLogger{
		LogLevel:                  logLevel,
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

func (l *CustomGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *CustomGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		customlogger.Infof(msg, data...)
	}
}

func (l *CustomGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		customlogger.Warningf(msg, data...)
	}
}

func (l *CustomGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		customlogger.Errorf(msg, data...)
	}
}

// Trace 记录SQL执行情况
func (l *CustomGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := float64(time.Since(begin).Nanoseconds()) / 1e6
	sql, rows := fc()
	source := utils.FileWithLineNum()

	switch {
	case err != nil && l.LogLevel >= logger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		customlogger.Errorf("[%.3fms] [%s] %s; error=%v", elapsed, source, sql, err)
	case l.SlowThreshold != 0 && time.Duration(elapsed*1e6) > l.SlowThreshold && l.LogLevel >= logger.Warn:
		customlogger.Warningf("[%.3fms] [%s] %s; %s, rows=%v", elapsed, source, sql, fmt.Sprintf("SLOW SQL >= %v", l.SlowThreshold), rows)
	case l.LogLevel == logger.Info:
		customlogger.Debugf("[%.3fms] [%s] %s; rows=%v", elapsed, source, sql, rows)
	}
}
