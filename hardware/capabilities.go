package hardware

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// Tier 硬件加速等级
type Tier int

const (
	TierUnknown    Tier = iota // 未知或无加速器
	TierGeneric                // 通用 CPU
	TierAVX2                   // 支持 AVX2 向量指令
	TierCacheTuned             // 针对缓存层级调优过的 CPU
)

// 各等级对应的最大批量大小
const (
	BatchSizeCacheTuned = 384
	BatchSizeAVX2       = 256
	BatchSizeGeneric    = 128
	BatchSizeUnknown    = 64
)

func (t Tier) String() string {
	switch t {
	case TierGeneric:
		return "generic"
	case TierAVX2:
		return "avx2"
	case TierCacheTuned:
		return "cache-tuned"
	default:
		return "unknown"
	}
}

// BatchSize 返回该等级推荐的最大批量大小
func (t Tier) BatchSize() int {
	switch t {
	case TierCacheTuned:
		return BatchSizeCacheTuned
	case TierAVX2:
		return BatchSizeAVX2
	case TierGeneric:
		return BatchSizeGeneric
	default:
		return BatchSizeUnknown
	}
}

// Parallel 判断该等级是否使用多工作协程分块校验
func (t Tier) Parallel() bool {
	return t == TierAVX2 || t == TierCacheTuned
}

// Capabilities CPU 能力描述
type Capabilities struct {
	Vendor       string // 厂商，例如 GenuineIntel
	Model        string // 型号名称
	AVX2         bool   // 是否支持 AVX2
	CacheTuned   bool   // 是否为已调优缓存参数的型号
	CacheKB      int    // 处理器报告的缓存大小（KB），未知为 0
	LogicalCores int    // 逻辑核心数
}

// Tier 根据能力标志计算加速等级
func (c Capabilities) Tier() Tier {
	switch {
	case c.CacheTuned:
		return TierCacheTuned
	case c.AVX2:
		return TierAVX2
	case c.Vendor != "" || c.Model != "":
		return TierGeneric
	default:
		return TierUnknown
	}
}

// Fingerprint 返回 "厂商|型号" 形式的硬件标识
func (c Capabilities) Fingerprint() string {
	if c.Vendor == "" && c.Model == "" {
		return ""
	}
	return fmt.Sprintf("%s|%s", c.Vendor, c.Model)
}

// Threads 返回可用于批量校验的工作协程数量，至少为 1
func (c Capabilities) Threads() int {
	if c.LogicalCores < 1 {
		return 1
	}
	return c.LogicalCores
}

// AcceleratedVerifier 硬件加速校验器
type AcceleratedVerifier interface {
	// VerifyTaproot 校验单笔交易的 Taproot 结构
	VerifyTaproot(tx *wire.MsgTx) error

	// VerifyBatch 校验整批交易，返回无效交易的下标。
	// 返回错误表示加速器本身失败，调用方应回退到标准校验。
	VerifyBatch(txs []*wire.MsgTx) ([]int, error)
}

// CapabilityProvider 提供 CPU 能力信息和可选的加速校验器
type CapabilityProvider interface {
	Capabilities() Capabilities

	// Accelerator 返回加速校验器，不可用时返回 nil
	Accelerator() AcceleratedVerifier
}

// MaxBatchSize 返回提供者对应的最大批量大小。没有加速器时按未知等级处理。
func MaxBatchSize(p CapabilityProvider) int {
	return EffectiveTier(p).BatchSize()
}

// EffectiveTier 返回提供者实际生效的加速等级
func EffectiveTier(p CapabilityProvider) Tier {
	if p == nil || p.Accelerator() == nil {
		return TierUnknown
	}
	return p.Capabilities().Tier()
}

// StaticProvider 使用固定能力描述的提供者
type StaticProvider struct {
	Caps  Capabilities
	Accel AcceleratedVerifier
}

// Capabilities 返回固定的能力描述
func (p *StaticProvider) Capabilities() Capabilities {
	return p.Caps
}

// Accelerator 返回固定的加速校验器
func (p *StaticProvider) Accelerator() AcceleratedVerifier {
	return p.Accel
}
