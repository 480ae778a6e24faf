package hardware

import (
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/sirupsen/logrus"
	xcpu "golang.org/x/sys/cpu"
)

// cacheTunedModels 已按缓存层级调优批量参数的处理器型号
var cacheTunedModels = []string{
	"i3-7020U",
	"i3-7100U",
	"i5-7200U",
	"i7-7500U",
}

// Detect 探测当前机器的 CPU 能力。
// 读取处理器信息失败时只返回核心数，此时等级为未知。
func Detect() Capabilities {
	caps := Capabilities{
		AVX2:         xcpu.X86.HasAVX2,
		LogicalCores: runtime.NumCPU(),
	}

	if n, err := cpu.Counts(true); err == nil && n > 0 {
		caps.LogicalCores = n
	}

	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		logrus.Warnf("[Detect] 读取处理器信息失败:\t%v", err)
		return caps
	}

	info := infos[0]
	caps.Vendor = info.VendorID
	caps.Model = strings.TrimSpace(info.ModelName)
	caps.CacheKB = int(info.CacheSize)
	caps.CacheTuned = caps.AVX2 && isCacheTunedModel(caps.Model)

	return caps
}

func isCacheTunedModel(model string) bool {
	for _, m := range cacheTunedModels {
		if strings.Contains(model, m) {
			return true
		}
	}
	return false
}

// DetectedProvider 基于本机探测结果的能力提供者
type DetectedProvider struct {
	caps  Capabilities
	accel *CPUVerifier
}

// NewDetectedProvider 探测本机能力。能识别出处理器时启用 CPU 加速校验器。
func NewDetectedProvider() *DetectedProvider {
	caps := Detect()
	p := &DetectedProvider{caps: caps}
	if caps.Tier() != TierUnknown {
		p.accel = NewCPUVerifier()
	}

	logrus.WithFields(logrus.Fields{
		"vendor": caps.Vendor,
		"model":  caps.Model,
		"avx2":   caps.AVX2,
		"cores":  caps.LogicalCores,
		"tier":   EffectiveTier(p).String(),
	}).Info("硬件能力探测完成")

	return p
}

// Capabilities 返回探测结果
func (p *DetectedProvider) Capabilities() Capabilities {
	return p.caps
}

// Accelerator 返回加速校验器，不可用时返回 nil
func (p *DetectedProvider) Accelerator() AcceleratedVerifier {
	if p.accel == nil {
		return nil
	}
	return p.accel
}
