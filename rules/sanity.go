// 交易完整性与历史漏洞回归检查

package rules

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// MaxMoney 是货币总量上限（单位：聪）。
	MaxMoney = btcutil.MaxSatoshi

	// DisabledOpcodeByte 是解锁脚本中被禁止出现的字节。
	DisabledOpcodeByte byte = 0x6f

	// minDERSigLen 和 maxDERSigLen 限定了启发式扫描所接受的 DER 签名长度（含 sighash 字节）。
	minDERSigLen = 8
	maxDERSigLen = 73
)

// CheckTransactionSanity 执行标准路径和优化路径共用的全部检查。
// 两条路径必须调用同一个函数，任何一条路径都不能单独实现这些规则。
func CheckTransactionSanity(tx *wire.MsgTx) error {
	if tx == nil {
		return MakeError(ErrStructural, "交易为空")
	}
	if len(tx.TxIn) == 0 {
		return MakeError(ErrStructural, "交易没有输入")
	}
	if len(tx.TxOut) == 0 {
		return MakeError(ErrStructural, "交易没有输出")
	}

	if err := checkDuplicateInputs(tx); err != nil {
		return err
	}
	if err := checkOutputValues(tx); err != nil {
		return err
	}
	if err := checkDisabledOpcode(tx); err != nil {
		return err
	}
	return checkHighS(tx)
}

// checkDuplicateInputs 拒绝重复花费同一个输出点的交易（CVE-2018-17144）。
func checkDuplicateInputs(tx *wire.MsgTx) error {
	seen := make(map[wire.OutPoint]struct{}, len(tx.TxIn))
	for i, txIn := range tx.TxIn {
		if _, ok := seen[txIn.PreviousOutPoint]; ok {
			str := fmt.Sprintf("输入 %d 重复花费输出点 %v", i, txIn.PreviousOutPoint)
			return MakeError(ErrStructural, str)
		}
		seen[txIn.PreviousOutPoint] = struct{}{}
	}
	return nil
}

// checkOutputValues 以饱和方式累加输出金额，总额不得超过 MaxMoney（CVE-2010-5139）。
func checkOutputValues(tx *wire.MsgTx) error {
	var total int64
	for i, txOut := range tx.TxOut {
		value := txOut.Value
		if value < 0 {
			str := fmt.Sprintf("输出 %d 的金额为负数: %d", i, value)
			return MakeError(ErrStructural, str)
		}
		if value > MaxMoney {
			str := fmt.Sprintf("输出 %d 的金额 %v 超过上限 %v", i,
				btcutil.Amount(value), btcutil.Amount(MaxMoney))
			return MakeError(ErrStructural, str)
		}

		// 在加法之前比较，避免 int64 溢出
		if total > MaxMoney-value {
			str := fmt.Sprintf("输出总额超过上限 %v", btcutil.Amount(MaxMoney))
			return MakeError(ErrStructural, str)
		}
		total += value
	}
	return nil
}

// checkDisabledOpcode 扫描每个输入的解锁脚本，出现 DisabledOpcodeByte 即视为无效。
func checkDisabledOpcode(tx *wire.MsgTx) error {
	for i, txIn := range tx.TxIn {
		for _, b := range txIn.SignatureScript {
			if b == DisabledOpcodeByte {
				str := fmt.Sprintf("输入 %d 的解锁脚本包含被禁用的操作码 0x%02x", i, b)
				return MakeError(ErrStructural, str)
			}
		}
	}
	return nil
}

// checkHighS 启发式扫描解锁脚本推送的数据和见证数据中的 DER 签名，
// S 值大于曲线阶的一半即视为可延展签名。
func checkHighS(tx *wire.MsgTx) error {
	for i, txIn := range tx.TxIn {
		tokenizer := txscript.MakeScriptTokenizer(0, txIn.SignatureScript)
		for tokenizer.Next() {
			if isHighSDER(tokenizer.Data()) {
				str := fmt.Sprintf("输入 %d 的解锁脚本包含高 S 值签名", i)
				return MakeError(ErrStructural, str)
			}
		}

		for _, item := range txIn.Witness {
			if isHighSDER(item) {
				str := fmt.Sprintf("输入 %d 的见证数据包含高 S 值签名", i)
				return MakeError(ErrStructural, str)
			}
		}
	}
	return nil
}

// isHighSDER 判断数据是否像一个 S 值过高的 DER 签名。
// 格式: 0x30 <len> 0x02 <rlen> <r> 0x02 <slen> <s> [sighash]
// 不符合 DER 形状的数据直接忽略。
func isHighSDER(sig []byte) bool {
	if len(sig) < minDERSigLen || len(sig) > maxDERSigLen || sig[0] != 0x30 {
		return false
	}

	total := int(sig[1]) + 2
	if total > len(sig) || sig[2] != 0x02 {
		return false
	}

	rLen := int(sig[3])
	sOff := 4 + rLen
	if sOff+2 > total || sig[sOff] != 0x02 {
		return false
	}

	sLen := int(sig[sOff+1])
	sStart := sOff + 2
	if sLen == 0 || sStart+sLen != total {
		return false
	}

	s := sig[sStart : sStart+sLen]
	for len(s) > 0 && s[0] == 0x00 {
		s = s[1:]
	}
	if len(s) > 32 {
		return true
	}

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(s); overflow {
		return true
	}
	return scalar.IsOverHalfOrder()
}
