package bpfsconsensus

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// newMinimalTx 单输入单输出、不含见证数据的交易，seed 用于区分交易哈希
func newMinimalTx(seed byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	prevHash := chainhash.HashH([]byte{seed})
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), []byte{txscript.OP_TRUE}, nil))
	tx.AddTxOut(wire.NewTxOut(10_000, []byte{txscript.OP_TRUE}))
	return tx
}

// newTaprootTx 带见证数据并支付到 Taproot 输出的交易，满足 BPC3
func newTaprootTx(seed byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	prevHash := chainhash.HashH([]byte{seed, 0x01})
	txIn := wire.NewTxIn(wire.NewOutPoint(&prevHash, 1), nil, nil)
	txIn.Witness = wire.TxWitness{bytes.Repeat([]byte{0x01}, 64)}
	tx.AddTxIn(txIn)
	pkScript := append([]byte{txscript.OP_1, txscript.OP_DATA_32}, bytes.Repeat([]byte{seed}, 32)...)
	tx.AddTxOut(wire.NewTxOut(10_000, pkScript))
	return tx
}

// newSignedP2PKHTx 构造一笔真实签名的 P2PKH 赎回交易
func newSignedP2PKHTx(t *testing.T) *wire.MsgTx {
	privKeyBytes, err := hex.DecodeString("22a47fa09a223f2aa079edf85a7c2" +
		"d4f8720ee63e502ee2869afab7de234b80c")
	require.NoError(t, err)

	privKey, pubKey := btcec.PrivKeyFromBytes(privKeyBytes)
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubKey.SerializeCompressed()),
		&chaincfg.MainNetParams)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	// 被花费的虚构交易
	originTx := wire.NewMsgTx(wire.TxVersion)
	originTx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, ^uint32(0)),
		[]byte{txscript.OP_0, txscript.OP_0}, nil))
	originTx.AddTxOut(wire.NewTxOut(100_000, pkScript))
	originTxHash := originTx.TxHash()

	redeemTx := wire.NewMsgTx(wire.TxVersion)
	redeemTx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&originTxHash, 0), nil, nil))
	redeemTx.AddTxOut(wire.NewTxOut(90_000, pkScript))

	lookupKey := func(a btcutil.Address) (*btcec.PrivateKey, bool, error) {
		return privKey, true, nil
	}
	sigScript, err := txscript.SignTxOutput(&chaincfg.MainNetParams,
		redeemTx, 0, pkScript, txscript.SigHashAll,
		txscript.KeyClosure(lookupKey), nil, nil)
	require.NoError(t, err)
	redeemTx.TxIn[0].SignatureScript = sigScript

	return redeemTx
}
