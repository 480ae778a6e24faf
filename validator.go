package bpfsconsensus

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/qinglongcn/bpfsconsensus/hardware"
	"github.com/qinglongcn/bpfsconsensus/rules"
	"github.com/sirupsen/logrus"
)

// ConsensusValidator 双路径交易校验器。
// 每笔交易都会经过标准路径；启用优化时同时经过硬件优化路径，两者结果类别不一致即为共识分歧。
type ConsensusValidator struct {
	level       ProtocolLevel // 协议级别
	optimize    bool          // 是否启用优化路径
	standard    Strategy      // 标准路径
	optimized   Strategy      // 硬件优化路径
	fingerprint string        // 硬件标识
	history     *HistoryStore // 审计库
}

// NewConsensusValidator 创建校验器。provider 为空时优化路径不使用加速器，history 为空时使用默认容量的审计库。
func NewConsensusValidator(history *HistoryStore, provider hardware.CapabilityProvider,
	level ProtocolLevel, optimize bool) *ConsensusValidator {

	if history == nil {
		history = NewHistoryStore(DefaultHistoryCapacity, nil)
	}
	protocol := LevelRules{}
	v := &ConsensusValidator{
		level:     level,
		optimize:  optimize,
		standard:  NewStandardStrategy(protocol),
		optimized: NewHardwareStrategy(protocol, provider),
		history:   history,
	}
	if provider != nil {
		v.fingerprint = provider.Capabilities().Fingerprint()
	}
	return v
}

// Level 返回协议级别
func (v *ConsensusValidator) Level() ProtocolLevel {
	return v.level
}

// History 返回审计库
func (v *ConsensusValidator) History() *HistoryStore {
	return v.history
}

// WithLevel 返回使用另一个协议级别、共享同一审计库的校验器
func (v *ConsensusValidator) WithLevel(level ProtocolLevel) *ConsensusValidator {
	c := *v
	c.level = level
	return &c
}

// ValidateStandard 只执行标准路径，不写审计记录
func (v *ConsensusValidator) ValidateStandard(tx *wire.MsgTx) error {
	if tx == nil {
		return rules.MakeError(rules.ErrStructural, "交易为空")
	}
	return v.standard.Validate(tx, v.level)
}

// ValidateOptimized 只执行硬件优化路径，不写审计记录
func (v *ConsensusValidator) ValidateOptimized(tx *wire.MsgTx) error {
	if tx == nil {
		return rules.MakeError(rules.ErrStructural, "交易为空")
	}
	return v.optimized.Validate(tx, v.level)
}

// Validate 校验交易。
// 未启用优化时返回标准路径的结果；启用优化时两条路径都执行，类别一致则返回优化路径的结果，
// 否则返回 rules.ErrConsensusDivergence，任何一条路径的结果都不会被采纳。
func (v *ConsensusValidator) Validate(tx *wire.MsgTx) error {
	if tx == nil {
		return rules.MakeError(rules.ErrStructural, "交易为空")
	}
	txHash := tx.TxHash().String()

	stdErr := v.standard.Validate(tx, v.level)
	stdOK := stdErr == nil

	if !v.optimize {
		v.record(txHash, VerificationStandard, stdOK, stdOK, nil, nil)
		return stdErr
	}

	optErr := v.optimized.Validate(tx, v.level)
	optOK := optErr == nil
	v.record(txHash, VerificationOptimized, optOK, stdOK, &optOK, nil)

	if err := v.compare(tx, txHash, stdErr, optErr); err != nil {
		return err
	}
	return optErr
}

// VerifyConsensusCompatibility 审计用：两条路径都执行并比较结果类别。
// 一致时返回标准路径是否通过。
func (v *ConsensusValidator) VerifyConsensusCompatibility(tx *wire.MsgTx) (bool, error) {
	if tx == nil {
		return false, rules.MakeError(rules.ErrStructural, "交易为空")
	}
	txHash := tx.TxHash().String()

	stdErr := v.standard.Validate(tx, v.level)
	optErr := v.optimized.Validate(tx, v.level)
	stdOK, optOK := stdErr == nil, optErr == nil

	v.record(txHash, VerificationConsensus, stdOK == optOK, stdOK, &optOK, nil)

	if err := v.compare(tx, txHash, stdErr, optErr); err != nil {
		return false, err
	}
	return stdOK, nil
}

// VerifyHistoricalTransaction 重放历史交易。
// 只要两条路径一致并且与同级别的历史记录一致就返回 true，与交易本身是否有效无关。
func (v *ConsensusValidator) VerifyHistoricalTransaction(tx *wire.MsgTx, height uint32) (bool, error) {
	if _, err := v.verifyHistorical(tx, height); err != nil {
		return false, err
	}
	return true, nil
}

// verifyHistorical 返回标准路径是否通过
func (v *ConsensusValidator) verifyHistorical(tx *wire.MsgTx, height uint32) (bool, error) {
	stdOK, err := v.VerifyConsensusCompatibility(tx)
	if err != nil {
		return false, err
	}
	txHash := tx.TxHash().String()

	for _, prior := range v.history.FindByHash(txHash) {
		if prior.Level != v.level || prior.StandardResult == stdOK {
			continue
		}

		v.history.RecordConsensusCheck(false)
		logrus.WithFields(logrus.Fields{
			"tx":     txHash,
			"height": height,
			"level":  v.level.String(),
			"prior":  prior.StandardResult,
			"now":    stdOK,
		}).Error("历史校验结果与当前结果不一致")

		str := fmt.Sprintf("交易 %s 在高度 %d 的历史标准结果 %v 与当前结果 %v 不一致",
			txHash, height, prior.StandardResult, stdOK)
		return false, rules.MakeError(rules.ErrConsensusDivergence, str)
	}

	optOK := stdOK
	v.record(txHash, VerificationHistorical, true, stdOK, &optOK, &height)
	return stdOK, nil
}

// compare 比较两条路径的结果类别并更新共识计数
func (v *ConsensusValidator) compare(tx *wire.MsgTx, txHash string, stdErr, optErr error) error {
	if (stdErr == nil) == (optErr == nil) {
		v.history.RecordConsensusCheck(true)
		return nil
	}

	v.history.RecordConsensusCheck(false)
	logrus.WithFields(logrus.Fields{
		"tx":        txHash,
		"level":     v.level.String(),
		"hardware":  v.fingerprint,
		"standard":  stdErr,
		"optimized": optErr,
	}).Errorf("硬件优化路径与标准路径结果不一致\n%s", spew.Sdump(tx))

	str := fmt.Sprintf("硬件优化共识分歧: standard=%v optimized=%v", stdErr == nil, optErr == nil)
	return rules.MakeError(rules.ErrConsensusDivergence, str)
}

// record 写入审计记录
func (v *ConsensusValidator) record(txHash, typ string, combined, std bool, opt *bool, height *uint32) {
	rec := &VerificationRecord{
		TxHash:           txHash,
		VerificationType: typ,
		CombinedResult:   combined,
		StandardResult:   std,
		OptimizedResult:  opt,
		BlockHeight:      height,
		Level:            v.level,
		Timestamp:        time.Now(),
	}
	if opt != nil {
		rec.HardwareFingerprint = v.fingerprint
	}
	v.history.AddRecord(rec)

	logrus.WithFields(logrus.Fields{
		"tx":     txHash,
		"type":   typ,
		"level":  v.level.String(),
		"result": combined,
	}).Debug("校验完成")
}

// ValidateHistoricalBatch 重放一批历史交易。
// 分歧不会中断批次，全部处理后若存在分歧则返回 rules.ErrConsensusDivergence；
// 否则返回是否所有交易都通过了标准校验。
func (v *ConsensusValidator) ValidateHistoricalBatch(txs []*wire.MsgTx, height uint32) (bool, error) {
	allValid := true
	divergences := 0

	for _, tx := range txs {
		stdOK, err := v.verifyHistorical(tx, height)
		switch {
		case rules.IsDivergence(err):
			divergences++
		case err != nil:
			allValid = false
		case !stdOK:
			allValid = false
		}
	}

	if divergences > 0 {
		str := fmt.Sprintf("高度 %d 的历史批次中有 %d 笔交易出现共识分歧", height, divergences)
		return false, rules.MakeError(rules.ErrConsensusDivergence, str)
	}
	return allValid, nil
}

// ValidateMempoolBatch 按指定协议级别校验一批内存池交易。
// 无效交易只使结果为 false；共识分歧立即原样返回。
func (v *ConsensusValidator) ValidateMempoolBatch(txs []*wire.MsgTx, level ProtocolLevel) (bool, error) {
	lv := v.WithLevel(level)
	allValid := true

	for _, tx := range txs {
		err := lv.Validate(tx)
		if rules.IsDivergence(err) {
			return false, err
		}
		if err != nil {
			allValid = false
		}
	}
	return allValid, nil
}
