package bpfsconsensus

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/bpfsconsensus/rules"
)

const (
	// maxStandardMultiSigKeys 是多重签名交易输出脚本中允许的最大公钥数量，以便将其视为标准。
	maxStandardMultiSigKeys = 3
)

// ProtocolLevel 协议合规级别
type ProtocolLevel int

const (
	BPC1 ProtocolLevel = iota + 1 // 基础结构规则
	BPC2                          // 要求见证数据和标准输出脚本
	BPC3                          // 在 BPC2 基础上要求 Taproot 输出，并启用 Taproot 校验
)

func (l ProtocolLevel) String() string {
	switch l {
	case BPC1:
		return "BPC1"
	case BPC2:
		return "BPC2"
	case BPC3:
		return "BPC3"
	default:
		return fmt.Sprintf("BPC?(%d)", int(l))
	}
}

// TaprootEnabled 该级别是否启用 Taproot 结构校验
func (l ProtocolLevel) TaprootEnabled() bool {
	return l >= BPC3
}

// Valid 是否为已定义的级别
func (l ProtocolLevel) Valid() bool {
	return l >= BPC1 && l <= BPC3
}

// ParseProtocolLevel 解析 "BPC1"、"bpc2"、"3" 之类的字符串
func ParseProtocolLevel(s string) (ProtocolLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BPC1", "1":
		return BPC1, nil
	case "BPC2", "2":
		return BPC2, nil
	case "BPC3", "3":
		return BPC3, nil
	}
	return 0, fmt.Errorf("未知的协议级别: %q", s)
}

// ProtocolRules 协议规则组件，由校验路径委托调用
type ProtocolRules interface {
	CheckTransaction(tx *wire.MsgTx, level ProtocolLevel) error
}

// LevelRules 按 BPC 级别执行的协议规则
type LevelRules struct{}

// CheckTransaction 根据协议级别检查交易。
// 所有失败都以 rules.ErrProtocol 类别返回。
func (LevelRules) CheckTransaction(tx *wire.MsgTx, level ProtocolLevel) error {
	if !level.Valid() {
		return rules.MakeError(rules.ErrProtocol, fmt.Sprintf("无效的协议级别 %v", level))
	}
	if level < BPC2 {
		return nil
	}

	for i, txIn := range tx.TxIn {
		if len(txIn.Witness) == 0 {
			str := fmt.Sprintf("%v 要求见证数据，输入 %d 缺少见证", level, i)
			return rules.MakeError(rules.ErrProtocol, str)
		}
	}

	hasTaproot := false
	for i, txOut := range tx.TxOut {
		scriptClass := txscript.GetScriptClass(txOut.PkScript)
		if err := checkPkScriptStandard(txOut.PkScript, scriptClass); err != nil {
			str := fmt.Sprintf("%v 要求标准输出脚本，输出 %d", level, i)
			return rules.WrapError(rules.ErrProtocol, str, err)
		}
		if rules.IsTaprootOutput(txOut.PkScript) {
			hasTaproot = true
		}
	}

	if level >= BPC3 && !hasTaproot {
		str := fmt.Sprintf("%v 要求至少一个 Taproot 输出", level)
		return rules.MakeError(rules.ErrProtocol, str)
	}
	return nil
}

// checkPkScriptStandard 对交易输出脚本（公钥脚本）执行一系列检查，以确保它是“标准”公钥脚本。
// 对于多重签名脚本，仅允许 1 到 maxStandardMultiSigKeys 个公钥。
func checkPkScriptStandard(pkScript []byte, scriptClass txscript.ScriptClass) error {
	switch scriptClass {
	case txscript.MultiSigTy:
		numPubKeys, numSigs, err := txscript.CalcMultiSigStats(pkScript)
		if err != nil {
			return fmt.Errorf("多签脚本解析失败: %v", err)
		}

		if numPubKeys < 1 {
			return fmt.Errorf("多签脚本不含公钥")
		}
		if numPubKeys > maxStandardMultiSigKeys {
			return fmt.Errorf("多签脚本包含 %d 个公钥，超过上限 %d", numPubKeys, maxStandardMultiSigKeys)
		}

		// 至少需要 1 个签名，且签名数量不得多于公钥数量
		if numSigs < 1 {
			return fmt.Errorf("多签脚本不要求签名")
		}
		if numSigs > numPubKeys {
			return fmt.Errorf("多签脚本要求 %d 个签名，但只有 %d 个公钥", numSigs, numPubKeys)
		}

	case txscript.NonStandardTy:
		return fmt.Errorf("非标准脚本")
	}

	return nil
}
