package bpfsconsensus

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// 数据目录结构
const (
	LogsDir    = "logs"           // 日志目录
	HistoryDir = "db/history"     // 审计记录数据库目录
	maxThreads = 8                // 批量校验的线程数上限
	defaultTTL = 30 * time.Second // 默认批量校验超时
)

// Options 是用于创建校验服务的参数
type Options struct {
	IsOpen bool `optional:"false" default:"false"` // 服务是否已打开

	InstanceId string // 实例标识符，用于日志文件命名
	RootPath   string // 数据根目录

	ProtocolLevel ProtocolLevel // 协议级别
	Optimization  bool          // 是否启用硬件优化路径

	HistoryCapacity int  // 审计库保留的记录数
	PersistHistory  bool // 是否将淘汰的记录写入 badger

	BatchThreads int           // 批量校验线程数，0 表示按批量大小自动计算
	BatchTimeout time.Duration // 单个批次的超时时间

	LogLevel logrus.Level // 日志级别

	Registerer prometheus.Registerer // 指标注册器，为空时不注册
	Fs         afero.Fs              // 交易文件所在的文件系统
}

// DefaultOptions 设置一个推荐选项列表
func DefaultOptions() *Options {
	return &Options{
		RootPath:        ".",
		ProtocolLevel:   BPC1,
		Optimization:    true,
		HistoryCapacity: DefaultHistoryCapacity,
		PersistHistory:  false,
		BatchThreads:    0,
		BatchTimeout:    defaultTTL,
		LogLevel:        logrus.InfoLevel,
		Fs:              afero.NewOsFs(),
	}
}

// BuildInstanceId 设置实例ID
func (opt *Options) BuildInstanceId(instanceId string) {
	if opt.IsOpen {
		return
	}
	opt.InstanceId = instanceId
}

// BuildRootPath 设置数据根路径，路径不存在时尝试创建
func (opt *Options) BuildRootPath(path string) {
	if opt.IsOpen || path == "" {
		return
	}

	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		path = abs
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return
		}
	}

	opt.RootPath = path
}

// BuildProtocolLevel 设置协议级别
func (opt *Options) BuildProtocolLevel(level ProtocolLevel) {
	if opt.IsOpen {
		return
	}
	opt.ProtocolLevel = level
}

// BuildOptimization 开启或关闭硬件优化路径
func (opt *Options) BuildOptimization(enabled bool) {
	if opt.IsOpen {
		return
	}
	opt.Optimization = enabled
}

// BuildHistory 设置审计库容量以及是否持久化淘汰记录
func (opt *Options) BuildHistory(capacity int, persist bool) {
	if opt.IsOpen {
		return
	}
	opt.HistoryCapacity = capacity
	opt.PersistHistory = persist
}

// BuildBatchThreads 强制批量校验使用的线程数
func (opt *Options) BuildBatchThreads(threads int) {
	if opt.IsOpen {
		return
	}
	opt.BatchThreads = threads
}

// BuildRegisterer 设置指标注册器
func (opt *Options) BuildRegisterer(reg prometheus.Registerer) {
	if opt.IsOpen {
		return
	}
	opt.Registerer = reg
}

// BuildFs 设置交易文件所在的文件系统
func (opt *Options) BuildFs(fs afero.Fs) {
	if opt.IsOpen {
		return
	}
	opt.Fs = fs
}

// CheckAndSetOptions 检查并设置选项
func (opt *Options) CheckAndSetOptions() error {
	if opt.IsOpen {
		return fmt.Errorf("'%s' 校验服务已打开", opt.InstanceId)
	}
	if !opt.ProtocolLevel.Valid() {
		return fmt.Errorf("无效的协议级别: %v", opt.ProtocolLevel)
	}
	if opt.BatchThreads < 0 || opt.BatchThreads > maxThreads {
		return fmt.Errorf("批量校验线程数必须在 0 到 %d 之间: %d", maxThreads, opt.BatchThreads)
	}
	if opt.HistoryCapacity <= 0 {
		opt.HistoryCapacity = DefaultHistoryCapacity
	}
	if opt.BatchTimeout <= 0 {
		opt.BatchTimeout = defaultTTL
	}
	if opt.RootPath == "" {
		opt.RootPath = "."
	}
	if opt.Fs == nil {
		opt.Fs = afero.NewOsFs()
	}
	return nil
}

// historyPath 审计记录数据库路径
func (opt *Options) historyPath() string {
	return filepath.Join(opt.RootPath, HistoryDir)
}
