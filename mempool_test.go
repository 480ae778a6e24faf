package bpfsconsensus

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/bpfsconsensus/hardware"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

// newMempoolTxs 生成 n 笔交易，下标在 bad 中的交易见证数据超限
func newMempoolTxs(n int, bad map[int]bool) []*wire.MsgTx {
	txs := make([]*wire.MsgTx, n)
	for i := range txs {
		if bad[i] {
			txs[i] = newOversizedWitnessTx()
			continue
		}
		txs[i] = newTaprootTx(byte(i))
	}
	return txs
}

func TestMempoolBatchVerifier(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	bad := map[int]bool{2: true, 11: true, 30: true}
	txs := newMempoolTxs(40, bad)

	providers := []hardware.CapabilityProvider{
		nil,
		tierProvider(hardware.TierGeneric),
		tierProvider(hardware.TierAVX2),
		tierProvider(hardware.TierCacheTuned),
	}
	for _, provider := range providers {
		for _, threads := range []int{1, 4} {
			opt := DefaultOptions()
			opt.BuildBatchThreads(threads)
			m := newMempoolBatchVerifier(opt, provider, pool)

			for _, tx := range txs {
				require.True(t, m.QueueTransaction(tx))
			}
			require.Equal(t, len(txs), m.Pending())
			require.False(t, m.Flush())

			stats := m.Stats()
			require.Equal(t, uint64(len(bad)), stats.InvalidCount)
			require.Equal(t, uint64(len(txs)), stats.ItemsProcessed)
			require.Equal(t, uint64(1), stats.BatchesProcessed)
		}
	}
}

func TestMempoolQueueThreshold(t *testing.T) {
	m := newMempoolBatchVerifier(DefaultOptions(), nil, nil)
	size := m.MaxBatchSize()
	require.Equal(t, hardware.BatchSizeUnknown, size)

	txs := newMempoolTxs(size, nil)
	for _, tx := range txs[:size-1] {
		require.True(t, m.QueueTransaction(tx))
	}
	require.Zero(t, m.Stats().BatchesProcessed)

	require.True(t, m.QueueTransaction(txs[size-1]))
	require.Zero(t, m.Pending())
	require.Equal(t, uint64(1), m.Stats().BatchesProcessed)
	require.True(t, m.Flush())
}

func TestMempoolAcceleratorFallback(t *testing.T) {
	accel := &fakeAccelerator{batchErr: errors.New("加速器故障")}
	provider := &hardware.StaticProvider{
		Caps:  hardware.Capabilities{Vendor: "GenuineIntel", Model: "test"},
		Accel: accel,
	}
	m := newMempoolBatchVerifier(DefaultOptions(), provider, nil)

	for _, tx := range newMempoolTxs(5, map[int]bool{4: true}) {
		m.QueueTransaction(tx)
	}
	require.False(t, m.Flush())
	require.Equal(t, 1, accel.calls)
	require.Equal(t, uint64(1), m.Stats().InvalidCount)

	// 空交易由加速器报错后按标准校验计为无效
	cpu := &hardware.StaticProvider{
		Caps:  hardware.Capabilities{Vendor: "GenuineIntel", Model: "test"},
		Accel: hardware.NewCPUVerifier(),
	}
	m = newMempoolBatchVerifier(DefaultOptions(), cpu, nil)
	m.QueueTransaction(newTaprootTx(1))
	m.QueueTransaction(nil)
	require.False(t, m.Flush())
	require.Equal(t, uint64(1), m.Stats().InvalidCount)
}

func TestMempoolCanceled(t *testing.T) {
	m := newMempoolBatchVerifier(DefaultOptions(), nil, nil)
	m.QueueTransaction(newTaprootTx(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.FlushContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, m.Pending())
	require.Zero(t, m.Stats().BatchesProcessed)
}

// cancelingAccelerator 在批量校验期间取消上下文
type cancelingAccelerator struct {
	cancel context.CancelFunc
}

func (a *cancelingAccelerator) VerifyTaproot(tx *wire.MsgTx) error { return nil }

func (a *cancelingAccelerator) VerifyBatch(txs []*wire.MsgTx) ([]int, error) {
	a.cancel()
	return nil, nil
}

// 加速器返回前上下文已取消，批次同样被丢弃
func TestMempoolCanceledDuringAccelerator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &hardware.StaticProvider{
		Caps:  hardware.Capabilities{Vendor: "GenuineIntel", Model: "test"},
		Accel: &cancelingAccelerator{cancel: cancel},
	}
	m := newMempoolBatchVerifier(DefaultOptions(), provider, nil)
	m.QueueTransaction(newTaprootTx(1))
	m.QueueTransaction(newTaprootTx(2))

	ok, err := m.FlushContext(ctx)
	require.False(t, ok)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, m.Pending())
	require.Zero(t, m.Stats().BatchesProcessed)
	require.Zero(t, m.Stats().ItemsProcessed)
}

func TestNewMempoolBatchVerifierFlushOnStop(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	out, err := NewMempoolBatchVerifier(lc, NewMempoolBatchVerifierInput{
		Opt:      DefaultOptions(),
		Provider: tierProvider(hardware.TierGeneric),
	})
	require.NoError(t, err)

	lc.RequireStart()
	out.Mempool.QueueTransaction(newTaprootTx(1))
	out.Mempool.QueueTransaction(newTaprootTx(2))
	lc.RequireStop()

	require.Zero(t, out.Mempool.Pending())
	require.Equal(t, uint64(2), out.Mempool.Stats().ItemsProcessed)
}
