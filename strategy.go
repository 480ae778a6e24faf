package bpfsconsensus

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/bpfsconsensus/hardware"
	"github.com/qinglongcn/bpfsconsensus/rules"
	"github.com/sirupsen/logrus"
)

// Strategy 一条交易校验路径
type Strategy interface {
	Name() string
	Validate(tx *wire.MsgTx, level ProtocolLevel) error
}

// checkShared 两条路径共用的检查：完整性、历史漏洞回归和协议规则。
func checkShared(tx *wire.MsgTx, level ProtocolLevel, protocol ProtocolRules) error {
	if err := rules.CheckTransactionSanity(tx); err != nil {
		return err
	}
	return protocol.CheckTransaction(tx, level)
}

// StandardStrategy 标准校验路径
type StandardStrategy struct {
	Protocol ProtocolRules
}

// NewStandardStrategy 创建标准校验路径
func NewStandardStrategy(protocol ProtocolRules) *StandardStrategy {
	return &StandardStrategy{Protocol: protocol}
}

// Name 路径名称
func (s *StandardStrategy) Name() string {
	return "standard"
}

// Validate 执行共用检查，启用 Taproot 时执行标准 Taproot 结构校验
func (s *StandardStrategy) Validate(tx *wire.MsgTx, level ProtocolLevel) error {
	if err := checkShared(tx, level, s.Protocol); err != nil {
		return err
	}
	if level.TaprootEnabled() {
		return rules.CheckTaproot(tx)
	}
	return nil
}

// HardwareStrategy 硬件优化校验路径
type HardwareStrategy struct {
	Protocol ProtocolRules
	Caps     hardware.Capabilities
	Accel    hardware.AcceleratedVerifier // 为空时直接使用标准 Taproot 校验
}

// NewHardwareStrategy 根据能力提供者创建硬件优化路径
func NewHardwareStrategy(protocol ProtocolRules, provider hardware.CapabilityProvider) *HardwareStrategy {
	s := &HardwareStrategy{Protocol: protocol}
	if provider != nil {
		s.Caps = provider.Capabilities()
		s.Accel = provider.Accelerator()
	}
	return s
}

// Name 路径名称
func (s *HardwareStrategy) Name() string {
	return "hardware"
}

// Validate 执行与标准路径相同的共用检查，Taproot 校验优先交给加速器。
// 加速器失败时回退到标准 Taproot 校验，回退结果即为本路径的结果。
func (s *HardwareStrategy) Validate(tx *wire.MsgTx, level ProtocolLevel) error {
	if err := checkShared(tx, level, s.Protocol); err != nil {
		return err
	}
	if !level.TaprootEnabled() {
		return nil
	}

	if s.Accel != nil {
		err := s.Accel.VerifyTaproot(tx)
		if err == nil {
			return nil
		}
		logrus.WithFields(logrus.Fields{
			"tx":   tx.TxHash().String(),
			"tier": s.Caps.Tier().String(),
		}).Warnf("加速 Taproot 校验失败，回退到标准校验: %v", err)
	}
	return rules.CheckTaproot(tx)
}
