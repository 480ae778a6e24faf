package bpfsconsensus

import (
	"strings"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btclog"
	"github.com/sirupsen/logrus"
)

// btcdSubsystem btcd 脚本子系统的日志标签
const btcdSubsystem = "TXSC"

// logrusWriter 把 btclog 格式化好的行按固定级别转交给 logrus
type logrusWriter struct {
	level logrus.Level
}

func (w logrusWriter) Write(p []byte) (int, error) {
	logrus.StandardLogger().Log(w.level, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// useBtcdLogger 让 btcd txscript 的日志写入 logrus 的输出
func useBtcdLogger(level logrus.Level) {
	// Panic/Fatal 级别下 logrus 会中断进程，btclog 的 Critical 日志按 Error 写出
	backend := btclog.NewBackend(logrusWriter{level: max(level, logrus.ErrorLevel)})
	logger := backend.Logger(btcdSubsystem)
	logger.SetLevel(btclogLevel(level))
	txscript.UseLogger(logger)
}

// btclogLevel 将 logrus 级别映射为 btclog 级别
func btclogLevel(level logrus.Level) btclog.Level {
	switch level {
	case logrus.TraceLevel:
		return btclog.LevelTrace
	case logrus.DebugLevel:
		return btclog.LevelDebug
	case logrus.InfoLevel:
		return btclog.LevelInfo
	case logrus.WarnLevel:
		return btclog.LevelWarn
	case logrus.ErrorLevel:
		return btclog.LevelError
	case logrus.FatalLevel, logrus.PanicLevel:
		return btclog.LevelCritical
	default:
		return btclog.LevelOff
	}
}
