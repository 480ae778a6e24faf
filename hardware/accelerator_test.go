package hardware

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/bpfsconsensus/rules"
	"github.com/stretchr/testify/require"
)

// newWitnessTx 构造 numInputs 个输入的交易，badInput 指定缺少见证数据的输入，-1 表示全部合法
func newWitnessTx(numInputs, badInput int) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for i := 0; i < numInputs; i++ {
		prevHash := chainhash.HashH([]byte{byte(i)})
		txIn := wire.NewTxIn(wire.NewOutPoint(&prevHash, uint32(i)), nil, nil)
		if i != badInput {
			txIn.Witness = wire.TxWitness{bytes.Repeat([]byte{0x01}, 64)}
		}
		tx.AddTxIn(txIn)
	}
	pkScript := append([]byte{txscript.OP_1, txscript.OP_DATA_32}, bytes.Repeat([]byte{0x02}, 32)...)
	tx.AddTxOut(wire.NewTxOut(1000, pkScript))
	return tx
}

// TestCPUVerifierMatchesRules 加速校验与 rules.CheckTaproot 的结果必须一致，
// 无效输入落在块边界两侧都要覆盖。
func TestCPUVerifierMatchesRules(t *testing.T) {
	v := NewCPUVerifier()

	for _, numInputs := range []int{1, 7, 8, 9, 17} {
		for bad := -1; bad < numInputs; bad++ {
			tx := newWitnessTx(numInputs, bad)

			want := rules.CheckTaproot(tx)
			got := v.VerifyTaproot(tx)
			require.Equal(t, want == nil, got == nil, "inputs=%d bad=%d", numInputs, bad)
			if got != nil {
				require.True(t, rules.IsErrorKind(got, rules.ErrTaproot))
				require.Equal(t, want.Error(), got.Error())
			}
		}
	}
}

func TestCPUVerifierBatch(t *testing.T) {
	v := NewCPUVerifier()

	txs := []*wire.MsgTx{
		newWitnessTx(3, -1),
		newWitnessTx(3, 1),
		newWitnessTx(9, -1),
		newWitnessTx(9, 8),
	}
	invalid, err := v.VerifyBatch(txs)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, invalid)

	// 空交易视为加速器失败
	_, err = v.VerifyBatch([]*wire.MsgTx{nil})
	require.Error(t, err)
}
