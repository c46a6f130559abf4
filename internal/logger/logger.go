package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"tg-scriptguard/internal/config"
)

var (
	mu     sync.RWMutex
	sugar  = zap.NewNop().Sugar()
	closer io.Closer
)

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

// createRotatingLogger creates a lumberjack rotating logger
func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

// ParseLevel maps the config level names onto zap levels.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Setup configures logging to output to both stdout and a rotating log file
func Setup(cfg *config.Config) error {
	logDir := cfg.Logger.Directory

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := createLogFilePath(logDir, "scriptguard")
	rotating := createRotatingLogger(logFilePath, cfg)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(cfg.Logger.TimeFormat)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(rotating)),
		zap.NewAtomicLevelAt(ParseLevel(cfg.Logger.Level)),
	)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	if closer != nil {
		closer.Close()
	}
	sugar = l.Sugar()
	closer = rotating
	mu.Unlock()

	// third-party code that still uses the standard logger ends up in the same file
	log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	Infof("Logging initialized: writing to %s", logFilePath)
	return nil
}

// Replace swaps the backing logger, mostly for tests.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = l.Sugar()
}

// Sync flushes buffered entries; call it on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = sugar.Sync()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// With returns a child logger carrying the given key/value pairs.
func With(args ...interface{}) *zap.SugaredLogger {
	return get().With(args...)
}

func Debugf(format string, args ...interface{})   { get().Debugf(format, args...) }
func Infof(format string, args ...interface{})    { get().Infof(format, args...) }
func Warningf(format string, args ...interface{}) { get().Warnf(format, args...) }
func Errorf(format string, args ...interface{})   { get().Errorf(format, args...) }
func Fatalf(format string, args ...interface{})   { get().Fatalf(format, args...) }

func Info(args ...interface{})    { get().Info(args...) }
func Warning(args ...interface{}) { get().Warn(args...) }
func Error(args ...interface{})   { get().Error(args...) }

// DebugEnabled reports whether debug entries are written, for libraries that
// need a separate switch.
func DebugEnabled() bool {
	return get().Desugar().Core().Enabled(zapcore.DebugLevel)
}
