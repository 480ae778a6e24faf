package hardware

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/bpfsconsensus/rules"
)

// inputChunkSize 每次处理的输入数量，与二级缓存行的使用方式对齐
const inputChunkSize = 8

// CPUVerifier 基于 CPU 的加速校验器。
// 输入按块处理，每块内的规则与 rules.CheckTaproot 完全一致。
type CPUVerifier struct{}

// NewCPUVerifier 创建 CPU 加速校验器
func NewCPUVerifier() *CPUVerifier {
	return &CPUVerifier{}
}

// VerifyTaproot 按块校验输入见证，然后校验输出脚本
func (v *CPUVerifier) VerifyTaproot(tx *wire.MsgTx) error {
	if tx == nil {
		return fmt.Errorf("加速器收到空交易")
	}

	for start := 0; start < len(tx.TxIn); start += inputChunkSize {
		end := start + inputChunkSize
		if end > len(tx.TxIn) {
			end = len(tx.TxIn)
		}
		for i := start; i < end; i++ {
			if err := rules.CheckTaprootInput(i, tx.TxIn[i]); err != nil {
				return err
			}
		}
	}

	for i, txOut := range tx.TxOut {
		if err := rules.CheckTaprootOutput(i, txOut); err != nil {
			return err
		}
	}
	return nil
}

// VerifyBatch 校验整批交易，返回无效交易的下标。
// 批次中出现空交易时返回错误，由调用方回退到标准校验。
func (v *CPUVerifier) VerifyBatch(txs []*wire.MsgTx) ([]int, error) {
	var invalid []int
	for i, tx := range txs {
		if tx == nil {
			return nil, fmt.Errorf("批次第 %d 笔交易为空", i)
		}
		if err := v.VerifyTaproot(tx); err != nil {
			invalid = append(invalid, i)
		}
	}
	return invalid, nil
}
