package main

import (
	"fmt"
	"os"

	"github.com/qinglongcn/bpfsconsensus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigFile string // 配置文件
	RootPath   string // 数据根目录
	Level      string // 协议级别
	NoOptimize bool   // 关闭硬件优化路径
	Threads    int    // 批量校验线程数
}

var (
	globalFlags GlobalFlags
	options     *bpfsconsensus.Options
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "bpfsverify",
	Short: "BPFS 共识校验工具",
	Long: `bpfsverify - 双路径交易校验命令行工具

每笔交易同时经过标准路径和硬件优化路径，两者结果不一致时报告共识分歧:
  bpfsverify validate tx.hex       # 校验交易文件
  bpfsverify compat tx.hex         # 共识兼容性检查
  bpfsverify inspect tx.hex        # 反汇编交易脚本
  bpfsverify hardware              # 查看硬件加速等级
  bpfsverify serve                 # 常驻运行并导出指标`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opt, err := bpfsconsensus.LoadOptions(globalFlags.ConfigFile)
		if err != nil {
			return fmt.Errorf("加载配置: %w", err)
		}

		flags := cmd.Flags()
		if flags.Changed("root") {
			opt.BuildRootPath(globalFlags.RootPath)
		}
		if flags.Changed("level") {
			level, err := bpfsconsensus.ParseProtocolLevel(globalFlags.Level)
			if err != nil {
				return err
			}
			opt.BuildProtocolLevel(level)
		}
		if flags.Changed("no-optimize") {
			opt.BuildOptimization(!globalFlags.NoOptimize)
		}
		if flags.Changed("threads") {
			opt.BuildBatchThreads(globalFlags.Threads)
		}

		if err := bpfsconsensus.SetLog(opt); err != nil {
			return fmt.Errorf("初始化日志: %w", err)
		}
		options = opt
		return nil
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// 全局标志
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigFile, "config", "c", "", "配置文件 (yaml|toml|json)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.RootPath, "root", ".", "数据根目录")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Level, "level", "l", "BPC1", "协议级别: BPC1|BPC2|BPC3")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.NoOptimize, "no-optimize", false, "关闭硬件优化路径")
	rootCmd.PersistentFlags().IntVar(&globalFlags.Threads, "threads", 0, "批量校验线程数 (0 表示自动)")

	// 添加子命令
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(compatCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(hardwareCmd)
	rootCmd.AddCommand(serveCmd)
}

// openService 按当前选项打开校验服务
func openService() (*bpfsconsensus.Service, error) {
	svc, err := bpfsconsensus.Open(options, nil)
	if err != nil {
		return nil, fmt.Errorf("打开校验服务: %w", err)
	}
	return svc, nil
}

// closeService 关闭校验服务，失败时只记录日志
func closeService(svc interface{ Close() error }) {
	if err := svc.Close(); err != nil {
		logrus.Errorf("[bpfsverify] 关闭校验服务失败:\t%v", err)
	}
}
