package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rethinkdb-collector/pkg/config"
	"github.com/rethinkdb-collector/pkg/goid"
)

type Logger = zap.Logger

var (
	mu               sync.RWMutex
	baseLogger       = zap.NewNop()
	defaultCollector string
)

// parseLevel 日志级别字符串转 zapcore.Level
func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "dbg", "debug":
		return zapcore.DebugLevel
	case "war", "warn":
		return zapcore.WarnLevel
	case "err", "error":
		return zapcore.ErrorLevel
	case "pan", "panic":
		return zapcore.PanicLevel
	case "fat", "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger 初始化全局日志：控制台输出 + 按天/按大小滚动的 JSON 文件
func InitLogger(cfg *config.ZapLogConfig) (*zap.Logger, error) {
	level := parseLevel(cfg.Level)

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", cfg.Path, err)
	}

	opts := []rotatelogs.Option{
		rotatelogs.WithRotationTime(24 * time.Hour),
	}
	if cfg.MaxSize > 0 {
		opts = append(opts, rotatelogs.WithRotationSize(int64(cfg.MaxSize)*1024*1024))
	}
	// rotatelogs 不允许同时设置 MaxAge 和 RotationCount
	if cfg.MaxAge > 0 {
		opts = append(opts, rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour))
	} else {
		opts = append(opts, rotatelogs.WithRotationCount(uint(cfg.MaxBackup)))
	}
	writer, err := rotatelogs.New(filepath.Join(cfg.Path, "rethinkdb-agent-%Y%m%d.log"), opts...)
	if err != nil {
		return nil, fmt.Errorf("create rotate writer: %w", err)
	}

	timeEncoder := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000 -07:00"))
	}

	var stdoutEncoder zapcore.Encoder
	if cfg.Format == "console" {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.ConsoleSeparator = " "
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleCfg.EncodeTime = timeEncoder
		// Caller 两级路径
		consoleCfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
			rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
			enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
		}
		stdoutEncoder = zapcore.NewConsoleEncoder(consoleCfg)
	}

	jsonCfg := zap.NewProductionEncoderConfig()
	jsonCfg.TimeKey = "timestamp"
	jsonCfg.EncodeTime = timeEncoder
	jsonCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	if stdoutEncoder == nil {
		stdoutEncoder = zapcore.NewJSONEncoder(jsonCfg)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), zapcore.AddSync(writer), level),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	SetLogger(l)
	return l, nil
}

// SetLogger 替换全局日志（测试中可注入 zaptest/observer）
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	baseLogger = l
}

// GetGlobalLogger 返回全局日志；未初始化时为 Nop 日志
func GetGlobalLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

func SetDefaultCollector(collector string) {
	mu.Lock()
	defer mu.Unlock()
	defaultCollector = collector
}

func GetDefaultCollector() string {
	mu.RLock()
	defer mu.RUnlock()
	return defaultCollector
}

// With 返回带公共字段的子日志
func With(fields ...zapcore.Field) *zap.Logger {
	return GetGlobalLogger().With(fields...)
}

func log(level zapcore.Level, msg string, fields ...zapcore.Field) {
	l := GetGlobalLogger().WithOptions(zap.AddCallerSkip(2))
	if ce := l.Check(level, msg); ce != nil {
		merged := make([]zapcore.Field, 0, len(fields)+2)
		if c := GetDefaultCollector(); c != "" {
			merged = append(merged, zap.String("collector", c))
		}
		merged = append(merged, zap.String("goid", strconv.FormatUint(goid.Get(), 10)))
		ce.Write(append(merged, fields...)...)
	}
}

func Debug(msg string, fields ...zapcore.Field) { log(zap.DebugLevel, msg, fields...) }
func Info(msg string, fields ...zapcore.Field)  { log(zap.InfoLevel, msg, fields...) }
func Warn(msg string, fields ...zapcore.Field)  { log(zap.WarnLevel, msg, fields...) }
func Error(msg string, fields ...zapcore.Field) { log(zap.ErrorLevel, msg, fields...) }
func Panic(msg string, fields ...zapcore.Field) { log(zap.PanicLevel, msg, fields...) }
func Fatal(msg string, fields ...zapcore.Field) { log(zap.FatalLevel, msg, fields...) }

func Sync() error {
	return GetGlobalLogger().Sync()
}
