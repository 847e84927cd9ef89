package logger

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var InfoLogger, FatalLogger *zap.Logger

var (
	serviceName = "default"
)

// minLevel — нижняя граница по конфигу (log_level). По умолчанию Info.
var minLevel atomic.Int32

// suppressed — после инвалидации ключей гасим всё, кроме Error/Fatal.
var suppressed atomic.Bool

// Sink — зеркало лог-строк в UI (console_log). nil — не зеркалим.
type Sink func(level, msg string)

var (
	sinkMu sync.RWMutex
	sink   Sink
)

func init() {
	minLevel.Store(int32(zapcore.InfoLevel))
}

// Init — один раз из main. Ядро zap держим на Debug, фильтруем сами через minLevel.
func Init() error {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.DisableCaller = true

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	InfoLogger = l
	FatalLogger = l
	return nil
}

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// ParseLevel — "debug"/"info"/"warning"/"error". Неизвестный уровень — ошибка,
// вызывающий решает, фатальна ли она.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warning", "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

func SetLevel(l zapcore.Level) {
	minLevel.Store(int32(l))
}

func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkMu.Unlock()
}

// SetSuppressed — включает/выключает подавление некритичных строк.
func SetSuppressed(v bool) {
	suppressed.Store(v)
}

func enabled(l zapcore.Level) bool {
	if suppressed.Load() && l < zapcore.ErrorLevel {
		return false
	}
	return l >= zapcore.Level(minLevel.Load())
}

func mirror(level, msg string) {
	sinkMu.RLock()
	s := sink
	sinkMu.RUnlock()
	if s != nil {
		s(level, msg)
	}
}

func Debug(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}
	if !enabled(zapcore.DebugLevel) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	InfoLogger.With(
		zap.String("service", serviceName),
	).Debug(msg)
	mirror("debug", msg)
}

func Info(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}
	if !enabled(zapcore.InfoLevel) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	InfoLogger.With(
		zap.String("service", serviceName),
	).Info(msg)
	mirror("info", msg)
}

func Warn(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}
	if !enabled(zapcore.WarnLevel) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	InfoLogger.With(
		zap.String("service", serviceName),
	).Warn(msg)
	mirror("warning", msg)
}

func Error(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}

	msg := fmt.Sprintf(format, args...)
	InfoLogger.With(
		zap.String("service", serviceName),
	).Error(msg)
	mirror("error", msg)
}

func Fatal(format string, args ...interface{}) {
	if FatalLogger == nil {
		panic("FatalLogger is not initialized")
	}

	msg := fmt.Sprintf(format, args...)
	FatalLogger.With(
		zap.String("service", serviceName),
	).Fatal(msg)
}
