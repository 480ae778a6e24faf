package bpfsconsensus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "bpfs_consensus"

type consensusCollector struct {
	history *HistoryStore
	oracle  *OracleBatchVerifier
	mempool *MempoolBatchVerifier

	consensusChecks *prometheus.Desc
	divergences     *prometheus.Desc
	retained        *prometheus.Desc
	offloaded       *prometheus.Desc

	batchItems    *prometheus.Desc
	batches       *prometheus.Desc
	batchInvalid  *prometheus.Desc
	avgItemMicros *prometheus.Desc
}

func newConsensusCollector(history *HistoryStore, oracle *OracleBatchVerifier, mempool *MempoolBatchVerifier) *consensusCollector {
	verifier := []string{"verifier"}
	return &consensusCollector{
		history: history,
		oracle:  oracle,
		mempool: mempool,
		consensusChecks: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "checks_total"),
			"Number of dual-path consensus comparisons",
			nil, nil,
		),
		divergences: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "divergences_total"),
			"Number of comparisons where the optimized and standard paths disagreed",
			nil, nil,
		),
		retained: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "history", "retained_records"),
			"Verification records currently retained in memory",
			nil, nil,
		),
		offloaded: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "history", "offloaded_records_total"),
			"Verification records written to the external sink",
			nil, nil,
		),
		batchItems: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "batch", "items_total"),
			"Items processed by batch verifiers",
			verifier, nil,
		),
		batches: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "batch", "batches_total"),
			"Batches processed by batch verifiers",
			verifier, nil,
		),
		batchInvalid: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "batch", "invalid_total"),
			"Invalid items reported by batch verifiers",
			verifier, nil,
		),
		avgItemMicros: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "batch", "avg_item_microseconds"),
			"Running average verification time per item",
			verifier, nil,
		),
	}
}

func (c *consensusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.consensusChecks
	ch <- c.divergences
	ch <- c.retained
	ch <- c.offloaded
	ch <- c.batchItems
	ch <- c.batches
	ch <- c.batchInvalid
	ch <- c.avgItemMicros
}

func (c *consensusCollector) Collect(ch chan<- prometheus.Metric) {
	if c.history != nil {
		s := c.history.Stats()
		ch <- prometheus.MustNewConstMetric(c.consensusChecks, prometheus.CounterValue, float64(s.ConsensusChecks))
		ch <- prometheus.MustNewConstMetric(c.divergences, prometheus.CounterValue, float64(s.Divergences))
		ch <- prometheus.MustNewConstMetric(c.retained, prometheus.GaugeValue, float64(s.Retained))
		ch <- prometheus.MustNewConstMetric(c.offloaded, prometheus.CounterValue, float64(s.Offloaded))
	}
	if c.oracle != nil {
		c.collectBatch(ch, "oracle", c.oracle.Stats())
	}
	if c.mempool != nil {
		c.collectBatch(ch, "mempool", c.mempool.Stats())
	}
}

func (c *consensusCollector) collectBatch(ch chan<- prometheus.Metric, name string, s VerificationStats) {
	ch <- prometheus.MustNewConstMetric(c.batchItems, prometheus.CounterValue, float64(s.ItemsProcessed), name)
	ch <- prometheus.MustNewConstMetric(c.batches, prometheus.CounterValue, float64(s.BatchesProcessed), name)
	ch <- prometheus.MustNewConstMetric(c.batchInvalid, prometheus.CounterValue, float64(s.InvalidCount), name)
	ch <- prometheus.MustNewConstMetric(c.avgItemMicros, prometheus.GaugeValue, s.AvgTimePerItemUs, name)
}

// RegisterMetrics 在 reg 中注册校验指标采集器，reg 为空时不注册
func RegisterMetrics(reg prometheus.Registerer, history *HistoryStore,
	oracle *OracleBatchVerifier, mempool *MempoolBatchVerifier) error {

	if reg == nil {
		return nil
	}
	return reg.Register(newConsensusCollector(history, oracle, mempool))
}
