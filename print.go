// 打印

package bpfsconsensus

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// DumpTransaction 打印交易的输入输出以及脚本反汇编
func DumpTransaction(w io.Writer, tx *wire.MsgTx) error {
	if tx == nil {
		return fmt.Errorf("交易为空")
	}

	fmt.Fprintf(w, "TxHash:\t\t%s\n", tx.TxHash())    // 交易哈希
	fmt.Fprintf(w, "Version:\t%d\n", tx.Version)      // 交易版本
	fmt.Fprintf(w, "LockTime:\t%d\n", tx.LockTime)    // 锁定时间
	fmt.Fprintf(w, "Witness:\t%t\n", tx.HasWitness()) // 是否包含见证数据

	for i, in := range tx.TxIn {
		fmt.Fprintf(w, "\t第【%d】个输入\n", i+1)
		fmt.Fprintf(w, "\tOutPoint\t%s\n", in.PreviousOutPoint)
		fmt.Fprintf(w, "\tSequence\t%d\n", in.Sequence)

		disasm, err := txscript.DisasmString(in.SignatureScript)
		if err != nil {
			fmt.Fprintf(w, "\tSigScript\t%x (%v)\n", in.SignatureScript, err)
		} else {
			fmt.Fprintf(w, "\tSigScript\t%s\n", disasm)
		}
		for j, item := range in.Witness {
			fmt.Fprintf(w, "\tWitness[%d]\t%s\n", j, hex.EncodeToString(item))
		}
	}

	for i, out := range tx.TxOut {
		fmt.Fprintf(w, "\t第【%d】个输出\n", i+1)
		fmt.Fprintf(w, "\tValue\t\t%s\n", btcutil.Amount(out.Value))

		disasm, err := txscript.DisasmString(out.PkScript)
		if err != nil {
			fmt.Fprintf(w, "\tPkScript\t%x (%v)\n", out.PkScript, err)
			continue
		}
		fmt.Fprintf(w, "\tPkScript\t%s\n", disasm)

		class, addrs, reqSigs, err := txscript.ExtractPkScriptAddrs(out.PkScript, &chaincfg.MainNetParams)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "\tClass\t\t%s (reqSigs=%d)\n", class, reqSigs)
		for _, addr := range addrs {
			fmt.Fprintf(w, "\tAddress\t\t%s\n", addr.EncodeAddress())
		}
	}
	return nil
}

// PrintRecord 打印一条校验记录
func PrintRecord(w io.Writer, rec *VerificationRecord) {
	fmt.Fprintf(w, "TxHash:\t\t%s\n", rec.TxHash)                                  // 交易哈希
	fmt.Fprintf(w, "Type:\t\t%s\n", rec.VerificationType)                          // 记录类型
	fmt.Fprintf(w, "Level:\t\t%s\n", rec.Level)                                    // 协议级别
	fmt.Fprintf(w, "Combined:\t%t\n", rec.CombinedResult)                          // 对外结果
	fmt.Fprintf(w, "Standard:\t%t\n", rec.StandardResult)                          // 标准路径结果
	fmt.Fprintf(w, "Timestamp:\t%s\n", rec.Timestamp.Format("2006-01-02 15:04:05")) // 创建时间

	if rec.OptimizedResult != nil {
		fmt.Fprintf(w, "Optimized:\t%t\n", *rec.OptimizedResult)
	}
	if rec.HardwareFingerprint != "" {
		fmt.Fprintf(w, "Hardware:\t%s\n", rec.HardwareFingerprint)
	}
	if rec.BlockHeight != nil {
		fmt.Fprintf(w, "Height:\t\t%d\n", *rec.BlockHeight)
	}
}
