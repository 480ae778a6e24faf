package bpfsconsensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBadgerSink(t *testing.T) {
	sink, err := NewBadgerSink(t.TempDir())
	require.NoError(t, err)
	defer sink.Close()

	falseResult := false
	height := uint32(0)
	first := &VerificationRecord{
		TxHash:              "aa",
		VerificationType:    VerificationHistorical,
		CombinedResult:      true,
		StandardResult:      false,
		OptimizedResult:     &falseResult,
		HardwareFingerprint: "GenuineIntel|test",
		BlockHeight:         &height,
		Level:               BPC3,
		Timestamp:           time.Unix(1700000000, 0),
	}
	second := newRecord("aa", true)
	other := newRecord("ab", true)

	require.NoError(t, sink.Append(first))
	require.NoError(t, sink.Append(other))
	require.NoError(t, sink.Append(second))

	found, err := sink.FindByHash("aa")
	require.NoError(t, err)
	require.Len(t, found, 2)

	got := found[0]
	require.Equal(t, VerificationHistorical, got.VerificationType)
	require.False(t, got.StandardResult)
	require.NotNil(t, got.OptimizedResult)
	require.False(t, *got.OptimizedResult)
	require.NotNil(t, got.BlockHeight)
	require.Zero(t, *got.BlockHeight)
	require.Equal(t, BPC3, got.Level)
	require.True(t, first.Timestamp.Equal(got.Timestamp))

	require.Nil(t, found[1].OptimizedResult)
	require.Nil(t, found[1].BlockHeight)

	none, err := sink.FindByHash("a")
	require.NoError(t, err)
	require.Empty(t, none)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
}

func TestHistoryStoreWithBadgerSink(t *testing.T) {
	sink, err := NewBadgerSink(t.TempDir())
	require.NoError(t, err)

	h := NewHistoryStore(2, sink)
	v := NewConsensusValidator(h, nil, BPC1, true)

	tx := newMinimalTx(1)
	require.NoError(t, v.Validate(tx))
	require.NoError(t, v.Validate(newMinimalTx(2)))
	require.NoError(t, v.Validate(newMinimalTx(3)))

	// 第一条记录已写入 badger，历史重放仍能参考它
	require.Equal(t, uint64(1), h.Stats().Offloaded)
	require.Len(t, h.FindByHash(tx.TxHash().String()), 1)

	ok, err := v.VerifyHistoricalTransaction(tx, 1)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.Close())
}
