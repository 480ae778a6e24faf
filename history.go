package bpfsconsensus

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// 校验记录类型
const (
	VerificationStandard   = "standard"        // 仅标准路径
	VerificationOptimized  = "optimized"       // 标准路径与优化路径
	VerificationConsensus  = "consensus_check" // 共识兼容性检查
	VerificationHistorical = "historical"      // 历史交易重放
)

// DefaultHistoryCapacity 默认保留的校验记录数量
const DefaultHistoryCapacity = 1000

// VerificationRecord 一次校验的审计记录，创建后不再修改
type VerificationRecord struct {
	TxHash              string        // 交易哈希
	VerificationType    string        // 记录类型
	CombinedResult      bool          // 对外返回的结果
	StandardResult      bool          // 标准路径结果
	OptimizedResult     *bool         // 优化路径结果，未执行时为 nil
	HardwareFingerprint string        // 硬件标识 "厂商|型号"，无硬件信息时为空
	BlockHeight         *uint32       // 区块高度，仅历史重放时设置
	Level               ProtocolLevel // 产生记录时的协议级别
	Timestamp           time.Time     // 创建时间
}

// HistoryStats 审计库统计信息
type HistoryStats struct {
	TotalVerified   uint64 // 写入过的记录总数
	ConsensusChecks uint64 // 共识检查次数
	Divergences     uint64 // 共识分歧次数
	Retained        int    // 当前保留的记录数
	Offloaded       uint64 // 写入外部存储的记录数
}

// RecordSink 接收被淘汰记录的外部存储
type RecordSink interface {
	Append(rec *VerificationRecord) error
	FindByHash(txHash string) ([]*VerificationRecord, error)
	Close() error
}

// HistoryStore 校验审计库。
// 按时间顺序保存在环形缓冲区中，同时维护按哈希索引的最新记录。
// 缓冲区满时最旧的记录被淘汰，配置了 RecordSink 时写入外部存储。
type HistoryStore struct {
	mu sync.RWMutex

	ring  []*VerificationRecord // 环形缓冲区
	head  int                   // 下一次写入位置
	count int                   // 当前记录数

	latest *lru.Cache[string, *VerificationRecord] // 按哈希索引的最新记录
	sink   RecordSink                              // 外部存储，可为空

	totalVerified   uint64
	consensusChecks uint64
	divergences     uint64
	offloaded       uint64
}

// NewHistoryStore 创建容量为 capacity 的审计库，capacity <= 0 时使用默认容量
func NewHistoryStore(capacity int, sink RecordSink) *HistoryStore {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}

	// 容量为正数时不会返回错误
	latest, _ := lru.New[string, *VerificationRecord](capacity)

	return &HistoryStore{
		ring:   make([]*VerificationRecord, capacity),
		latest: latest,
		sink:   sink,
	}
}

// Capacity 返回最大保留记录数
func (h *HistoryStore) Capacity() int {
	return len(h.ring)
}

// AddRecord 写入一条记录
func (h *HistoryStore) AddRecord(rec *VerificationRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if evicted := h.ring[h.head]; evicted != nil && h.count == len(h.ring) {
		h.offload(evicted)
	}

	h.ring[h.head] = rec
	h.head = (h.head + 1) % len(h.ring)
	if h.count < len(h.ring) {
		h.count++
	}

	h.latest.Add(rec.TxHash, rec)
	h.totalVerified++
}

// offload 将被淘汰的记录写入外部存储，调用方持有写锁
func (h *HistoryStore) offload(rec *VerificationRecord) {
	if h.sink == nil {
		return
	}
	if err := h.sink.Append(rec); err != nil {
		logrus.Errorf("[HistoryStore] 写入外部存储失败:\t%v", err)
		return
	}
	h.offloaded++
}

// GetRecord 返回指定交易的最新记录
func (h *HistoryStore) GetRecord(txHash string) (*VerificationRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.latest.Peek(txHash)
}

// FindByHash 按时间顺序返回指定交易的全部记录，包括外部存储中的记录
func (h *HistoryStore) FindByHash(txHash string) []*VerificationRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var found []*VerificationRecord
	if h.sink != nil {
		recs, err := h.sink.FindByHash(txHash)
		if err != nil {
			logrus.Errorf("[HistoryStore] 查询外部存储失败:\t%v", err)
		} else {
			found = append(found, recs...)
		}
	}

	h.each(func(rec *VerificationRecord) {
		if rec.TxHash == txHash {
			found = append(found, rec)
		}
	})
	return found
}

// FindByBlockHeight 返回指定区块高度的保留记录
func (h *HistoryStore) FindByBlockHeight(height uint32) []*VerificationRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var found []*VerificationRecord
	h.each(func(rec *VerificationRecord) {
		if rec.BlockHeight != nil && *rec.BlockHeight == height {
			found = append(found, rec)
		}
	})
	return found
}

// Records 按时间顺序返回当前保留的全部记录
func (h *HistoryStore) Records() []*VerificationRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	records := make([]*VerificationRecord, 0, h.count)
	h.each(func(rec *VerificationRecord) {
		records = append(records, rec)
	})
	return records
}

// each 从最旧到最新遍历记录，调用方持有锁
func (h *HistoryStore) each(fn func(rec *VerificationRecord)) {
	start := (h.head - h.count + len(h.ring)) % len(h.ring)
	for i := 0; i < h.count; i++ {
		fn(h.ring[(start+i)%len(h.ring)])
	}
}

// RecordConsensusCheck 记录一次共识检查
func (h *HistoryStore) RecordConsensusCheck(success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.consensusChecks++
	if !success {
		h.divergences++
	}
}

// GetConsensusStats 返回共识检查总数和分歧次数
func (h *HistoryStore) GetConsensusStats() (total, divergences uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.consensusChecks, h.divergences
}

// Stats 返回审计库统计信息
func (h *HistoryStore) Stats() HistoryStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HistoryStats{
		TotalVerified:   h.totalVerified,
		ConsensusChecks: h.consensusChecks,
		Divergences:     h.divergences,
		Retained:        h.count,
		Offloaded:       h.offloaded,
	}
}

// Close 关闭外部存储
func (h *HistoryStore) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sink == nil {
		return nil
	}
	return h.sink.Close()
}
