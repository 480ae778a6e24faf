package bpfsconsensus

import (
	"bytes"
	"testing"

	"github.com/qinglongcn/bpfsconsensus/rules"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	files := NewFileStore(afero.NewMemMapFs(), "/txs")
	tx := newTaprootTx(1)

	require.NoError(t, files.WriteTransaction("a/tx.hex", tx))

	got, err := files.ReadTransaction("a/tx.hex")
	require.NoError(t, err)
	require.Equal(t, tx.TxHash(), got.TxHash())
	require.Equal(t, tx.TxIn[0].Witness, got.TxIn[0].Witness)

	// 绝对路径不拼接 BasePath
	got, err = files.ReadTransaction("/txs/a/tx.hex")
	require.NoError(t, err)
	require.Equal(t, tx.TxHash(), got.TxHash())
}

func TestFileStoreRawBytes(t *testing.T) {
	fs := afero.NewMemMapFs()
	tx := newMinimalTx(2)

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	require.NoError(t, afero.WriteFile(fs, "tx.bin", buf.Bytes(), 0644))

	got, err := NewFileStore(fs, "").ReadTransaction("tx.bin")
	require.NoError(t, err)
	require.Equal(t, tx.TxHash(), got.TxHash())
}

func TestFileStoreErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := NewFileStore(fs, "")

	_, err := files.ReadTransaction("missing.hex")
	require.True(t, rules.IsErrorKind(err, rules.ErrIO))

	require.NoError(t, afero.WriteFile(fs, "bad.hex", []byte("0100"), 0644))
	_, err = files.ReadTransaction("bad.hex")
	require.True(t, rules.IsErrorKind(err, rules.ErrIO))
}

func TestValidateFromFile(t *testing.T) {
	files := NewFileStore(afero.NewMemMapFs(), "")
	require.NoError(t, files.WriteTransaction("good.hex", newMinimalTx(1)))
	require.NoError(t, files.WriteTransaction("dup.hex", newDuplicateInputTx()))

	v := newTestValidator(BPC1, true)
	require.NoError(t, v.ValidateFromFile(files, "good.hex"))
	require.True(t, rules.IsErrorKind(v.ValidateFromFile(files, "dup.hex"), rules.ErrStructural))
	require.True(t, rules.IsErrorKind(v.ValidateFromFile(files, "none.hex"), rules.ErrIO))

	require.Equal(t, uint64(2), v.History().Stats().TotalVerified)
}
