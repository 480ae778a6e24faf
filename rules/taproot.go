package rules

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// MaxTaprootWitnessSize 是单个输入见证数据序列化后的最大字节数。
	MaxTaprootWitnessSize = 10000

	// TaprootOutputScriptLen 是 segwit v1 输出脚本的长度：OP_1 OP_DATA_32 <32 字节>。
	TaprootOutputScriptLen = 34

	taprootProgramLen = 32
)

// CheckTaprootInput 检查单个输入的见证结构。
func CheckTaprootInput(idx int, txIn *wire.TxIn) error {
	if len(txIn.Witness) == 0 {
		str := fmt.Sprintf("输入 %d 缺少见证数据", idx)
		return MakeError(ErrTaproot, str)
	}

	if size := txIn.Witness.SerializeSize(); size > MaxTaprootWitnessSize {
		str := fmt.Sprintf("输入 %d 的见证数据大小 %d 超过上限 %d", idx, size,
			MaxTaprootWitnessSize)
		return MakeError(ErrTaproot, str)
	}
	return nil
}

// CheckTaprootOutput 检查 segwit v1 输出脚本的长度，非见证程序和其他版本不受限制。
func CheckTaprootOutput(idx int, txOut *wire.TxOut) error {
	pkScript := txOut.PkScript
	if !txscript.IsWitnessProgram(pkScript) {
		return nil
	}
	version, program, err := txscript.ExtractWitnessProgramInfo(pkScript)
	if err != nil || version != 1 {
		return nil
	}

	if len(program) != taprootProgramLen {
		str := fmt.Sprintf("输出 %d 的 segwit v1 脚本长度为 %d，应为 %d", idx,
			len(pkScript), TaprootOutputScriptLen)
		return MakeError(ErrTaproot, str)
	}
	return nil
}

// CheckTaproot 对整笔交易执行 Taproot 结构校验。
func CheckTaproot(tx *wire.MsgTx) error {
	if tx == nil {
		return MakeError(ErrTaproot, "交易为空")
	}
	for i, txIn := range tx.TxIn {
		if err := CheckTaprootInput(i, txIn); err != nil {
			return err
		}
	}
	for i, txOut := range tx.TxOut {
		if err := CheckTaprootOutput(i, txOut); err != nil {
			return err
		}
	}
	return nil
}

// IsTaprootOutput 判断输出脚本是否为 OP_1 <32 字节> 形式。
func IsTaprootOutput(pkScript []byte) bool {
	return len(pkScript) == TaprootOutputScriptLen &&
		pkScript[0] == txscript.OP_1 && pkScript[1] == txscript.OP_DATA_32
}
