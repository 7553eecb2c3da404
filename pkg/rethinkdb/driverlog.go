package rethinkdb

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	r "gopkg.in/rethinkdb/rethinkdb-go.v6"

	"github.com/rethinkdb-collector/pkg/logger"
)

var bridgeOnce sync.Once

// zapHook 将驱动的 logrus 日志转发到全局 zap 日志
type zapHook struct{}

func (zapHook) Levels() []logrus.Level { return logrus.AllLevels }

func (zapHook) Fire(e *logrus.Entry) error {
	fields := make([]zap.Field, 0, len(e.Data)+1)
	fields = append(fields, zap.String("component", "rethinkdb-driver"))
	for k, v := range e.Data {
		fields = append(fields, zap.Any(k, v))
	}
	switch e.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		logger.Error(e.Message, fields...)
	case logrus.WarnLevel:
		logger.Warn(e.Message, fields...)
	case logrus.InfoLevel:
		logger.Info(e.Message, fields...)
	default:
		logger.Debug(e.Message, fields...)
	}
	return nil
}

// BridgeDriverLog 驱动日志接入 zap，level 为配置中的日志级别
func BridgeDriverLog(level string) {
	bridgeOnce.Do(func() {
		r.Log.SetOutput(io.Discard)
		r.Log.AddHook(zapHook{})
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	r.Log.SetLevel(lvl)
}
