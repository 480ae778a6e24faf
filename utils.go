package bpfsconsensus

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/snowzach/rotatefilehook"
	"github.com/vrecan/death/v3"
)

// EncodeToBytes 使用 gob 编码将任意数据转换为 []byte
func EncodeToBytes(data interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(data); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DecodeFromBytes 使用 gob 解码将 []byte 转换为指定的数据结构
func DecodeFromBytes(data []byte, result interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(result)
}

// WaitForShutdown 阻塞直到收到终止信号，然后关闭服务。
// syscall.SIGINT 由 ctrl+c 触发，syscall.SIGTERM 在进程被 kill 时触发。
func WaitForShutdown(svc *Service) {
	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	d.WaitForDeathWithFunc(func() {
		if err := svc.Close(); err != nil {
			logrus.Errorf("[WaitForShutdown] 关闭服务失败:\t%v", err)
		}
	})
}

const (
	logName = "console"
)

// SetLog 为每一个实例创建一个log文件，记录日志信息
func SetLog(opt *Options) error {
	logsDir := filepath.Join(opt.RootPath, LogsDir)
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}

	filename := filepath.Join(logsDir, fmt.Sprintf("%s.log", logName))
	if opt.InstanceId != "" {
		filename = filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", logName, opt.InstanceId))
	}

	// logrus 的回调钩子
	rotateFileHook, err := rotatefilehook.NewRotateFileHook(rotatefilehook.RotateFileConfig{
		Filename:   filename,
		MaxSize:    50, // 文件最大50M
		MaxBackups: 3,
		MaxAge:     28, // 存储28天
		Level:      opt.LogLevel,
		Formatter: &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		},
	})
	if err != nil {
		return fmt.Errorf("初始化文件回调钩子失败: %w", err)
	}

	logrus.SetLevel(opt.LogLevel)
	logrus.SetOutput(colorable.NewColorableStdout())
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC822,
	})
	logrus.AddHook(rotateFileHook)

	useBtcdLogger(opt.LogLevel)
	return nil
}
