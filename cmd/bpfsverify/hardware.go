package main

import (
	"fmt"

	"github.com/qinglongcn/bpfsconsensus/hardware"
	"github.com/spf13/cobra"
)

// hardwareCmd 查看硬件能力
var hardwareCmd = &cobra.Command{
	Use:   "hardware",
	Short: "查看硬件加速等级",
	Long:  "探测本机 CPU 能力，输出加速等级、批量大小和硬件标识",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := hardware.NewDetectedProvider()
		caps := p.Capabilities()
		tier := hardware.EffectiveTier(p)

		fmt.Printf("Vendor:\t\t%s\n", caps.Vendor)
		fmt.Printf("Model:\t\t%s\n", caps.Model)
		fmt.Printf("AVX2:\t\t%t\n", caps.AVX2)
		fmt.Printf("CacheTuned:\t%t\n", caps.CacheTuned)
		fmt.Printf("CacheKB:\t%d\n", caps.CacheKB)
		fmt.Printf("Cores:\t\t%d\n", caps.LogicalCores)
		fmt.Printf("Tier:\t\t%s\n", tier)
		fmt.Printf("BatchSize:\t%d\n", tier.BatchSize())
		fmt.Printf("Parallel:\t%t\n", tier.Parallel())
		fmt.Printf("Fingerprint:\t%s\n", caps.Fingerprint())
		return nil
	},
}
