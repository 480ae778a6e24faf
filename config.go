package bpfsconsensus

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// envPrefix 环境变量前缀，例如 BPFS_PROTOCOL_LEVEL
const envPrefix = "BPFS"

// fileConfig 配置文件结构
type fileConfig struct {
	InstanceId      string        `mapstructure:"instance_id"`
	RootPath        string        `mapstructure:"root_path"`
	ProtocolLevel   string        `mapstructure:"protocol_level"`
	Optimization    bool          `mapstructure:"optimization"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
	PersistHistory  bool          `mapstructure:"persist_history"`
	BatchThreads    int           `mapstructure:"batch_threads"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// LoadOptions 从配置文件和环境变量加载选项。
// path 为空时只使用默认值和环境变量，支持 viper 能识别的 yaml、toml、json 等格式。
func LoadOptions(path string) (*Options, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &fileConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	return cfg.options()
}

// setDefaults 默认值与 DefaultOptions 保持一致
func setDefaults(v *viper.Viper) {
	def := DefaultOptions()

	v.SetDefault("instance_id", def.InstanceId)
	v.SetDefault("root_path", def.RootPath)
	v.SetDefault("protocol_level", def.ProtocolLevel.String())
	v.SetDefault("optimization", def.Optimization)
	v.SetDefault("history_capacity", def.HistoryCapacity)
	v.SetDefault("persist_history", def.PersistHistory)
	v.SetDefault("batch_threads", def.BatchThreads)
	v.SetDefault("batch_timeout", def.BatchTimeout.String())
	v.SetDefault("log_level", def.LogLevel.String())
}

// options 转换为 Options 并检查
func (c *fileConfig) options() (*Options, error) {
	level, err := ParseProtocolLevel(c.ProtocolLevel)
	if err != nil {
		return nil, err
	}
	logLevel, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别: %w", err)
	}

	opt := DefaultOptions()
	opt.BuildInstanceId(c.InstanceId)
	opt.BuildRootPath(c.RootPath)
	opt.BuildProtocolLevel(level)
	opt.BuildOptimization(c.Optimization)
	opt.BuildHistory(c.HistoryCapacity, c.PersistHistory)
	opt.BuildBatchThreads(c.BatchThreads)
	opt.BatchTimeout = c.BatchTimeout
	opt.LogLevel = logLevel

	if err := opt.CheckAndSetOptions(); err != nil {
		return nil, err
	}
	return opt, nil
}
