package bpfsconsensus

import (
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/bpfsconsensus/hardware"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	history := NewHistoryStore(10, nil)
	oracle := newOracleVerifier(nil, nil, 0)
	mempool := newMempoolBatchVerifier(DefaultOptions(), nil, nil)
	require.NoError(t, RegisterMetrics(reg, history, oracle, mempool))

	v := NewConsensusValidator(history, nil, BPC1, true)
	require.NoError(t, v.Validate(newMinimalTx(1)))
	v.optimized = passStrategy{}
	require.Error(t, v.Validate(newDuplicateInputTx()))

	mempool.QueueTransaction(newTaprootTx(1))
	mempool.QueueTransaction(newOversizedWitnessTx())
	require.False(t, mempool.Flush())

	expected := `
# HELP bpfs_consensus_checks_total Number of dual-path consensus comparisons
# TYPE bpfs_consensus_checks_total counter
bpfs_consensus_checks_total 2
# HELP bpfs_consensus_divergences_total Number of comparisons where the optimized and standard paths disagreed
# TYPE bpfs_consensus_divergences_total counter
bpfs_consensus_divergences_total 1
# HELP bpfs_consensus_history_retained_records Verification records currently retained in memory
# TYPE bpfs_consensus_history_retained_records gauge
bpfs_consensus_history_retained_records 2
# HELP bpfs_consensus_batch_invalid_total Invalid items reported by batch verifiers
# TYPE bpfs_consensus_batch_invalid_total counter
bpfs_consensus_batch_invalid_total{verifier="mempool"} 1
bpfs_consensus_batch_invalid_total{verifier="oracle"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"bpfs_consensus_checks_total",
		"bpfs_consensus_divergences_total",
		"bpfs_consensus_history_retained_records",
		"bpfs_consensus_batch_invalid_total",
	))

	count, err := testutil.GatherAndCount(reg, "bpfs_consensus_batch_items_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// 重复注册
	require.Error(t, RegisterMetrics(reg, history, oracle, mempool))
	require.NoError(t, RegisterMetrics(nil, history, oracle, mempool))
}

// blockingAccelerator 在 VerifyBatch 中阻塞直到 release 关闭
type blockingAccelerator struct {
	started chan struct{}
	release chan struct{}
}

func (a *blockingAccelerator) VerifyTaproot(tx *wire.MsgTx) error { return nil }

func (a *blockingAccelerator) VerifyBatch(txs []*wire.MsgTx) ([]int, error) {
	close(a.started)
	<-a.release
	return nil, nil
}

// 批次处理期间采集指标不被阻塞
func TestCollectDuringBatch(t *testing.T) {
	accel := &blockingAccelerator{started: make(chan struct{}), release: make(chan struct{})}
	provider := &hardware.StaticProvider{
		Caps:  hardware.Capabilities{Vendor: "GenuineIntel", Model: "test"},
		Accel: accel,
	}
	mempool := newMempoolBatchVerifier(DefaultOptions(), provider, nil)
	collector := newConsensusCollector(nil, nil, mempool)

	mempool.QueueTransaction(newTaprootTx(1))
	flushed := make(chan bool)
	go func() {
		flushed <- mempool.Flush()
	}()
	<-accel.started

	collected := make(chan int)
	go func() {
		collected <- testutil.CollectAndCount(collector)
	}()
	select {
	case n := <-collected:
		require.Equal(t, 4, n)
	case <-time.After(5 * time.Second):
		t.Fatal("批次处理期间采集指标被阻塞")
	}

	close(accel.release)
	require.True(t, <-flushed)
	require.Equal(t, uint64(1), mempool.Stats().BatchesProcessed)
}
