package bpfsconsensus

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

var (
	recordPrefix = []byte("record-")    // 记录键前缀
	recordSeqKey = []byte("record-seq") // 记录序号键
	openRetries  = 3                    // 数据库加锁失败时的重试次数
	seqBandwidth = uint64(100)          // 序号预分配数量
)

// BadgerSink 使用 badger 保存被淘汰的校验记录。
// 键为 record-<交易哈希>-<8字节序号>，同一交易的记录按写入顺序排列。
type BadgerSink struct {
	db  *badger.DB
	seq *badger.Sequence

	closeOnce sync.Once
}

// NewBadgerSink 在 path 下打开或创建数据库
func NewBadgerSink(path string) (*BadgerSink, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := openDB(opts)
	if err != nil {
		return nil, err
	}

	seq, err := db.GetSequence(recordSeqKey, seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("获取记录序号失败: %w", err)
	}

	return &BadgerSink{db: db, seq: seq}, nil
}

// openDB 打开数据库，目录被其他实例锁定时按退避重试
func openDB(opts badger.Options) (*badger.DB, error) {
	var db *badger.DB
	var err error
	for i := 0; i < openRetries; i++ {
		db, err = badger.Open(opts)
		if err == nil {
			return db, nil
		}
		if !strings.Contains(err.Error(), "LOCK") {
			break
		}
		logrus.Errorf("打开数据库失败，%d 秒后重试", i+1)
		time.Sleep(time.Duration(i+1) * time.Second)
	}

	return nil, fmt.Errorf("打开数据库失败: %w", err)
}

// storedRecord 记录的持久化形式。
// gob 会省略零值，指针字段拆成标志位和取值，避免 false 和 0 在解码后变为 nil。
type storedRecord struct {
	TxHash              string
	VerificationType    string
	CombinedResult      bool
	StandardResult      bool
	HasOptimized        bool
	OptimizedResult     bool
	HardwareFingerprint string
	HasHeight           bool
	BlockHeight         uint32
	Level               ProtocolLevel
	Timestamp           time.Time
}

func toStored(rec *VerificationRecord) *storedRecord {
	s := &storedRecord{
		TxHash:              rec.TxHash,
		VerificationType:    rec.VerificationType,
		CombinedResult:      rec.CombinedResult,
		StandardResult:      rec.StandardResult,
		HardwareFingerprint: rec.HardwareFingerprint,
		Level:               rec.Level,
		Timestamp:           rec.Timestamp,
	}
	if rec.OptimizedResult != nil {
		s.HasOptimized, s.OptimizedResult = true, *rec.OptimizedResult
	}
	if rec.BlockHeight != nil {
		s.HasHeight, s.BlockHeight = true, *rec.BlockHeight
	}
	return s
}

func (s *storedRecord) record() *VerificationRecord {
	rec := &VerificationRecord{
		TxHash:              s.TxHash,
		VerificationType:    s.VerificationType,
		CombinedResult:      s.CombinedResult,
		StandardResult:      s.StandardResult,
		HardwareFingerprint: s.HardwareFingerprint,
		Level:               s.Level,
		Timestamp:           s.Timestamp,
	}
	if s.HasOptimized {
		opt := s.OptimizedResult
		rec.OptimizedResult = &opt
	}
	if s.HasHeight {
		height := s.BlockHeight
		rec.BlockHeight = &height
	}
	return rec
}

// recordKey 生成记录键
func recordKey(txHash string, seq uint64) []byte {
	key := make([]byte, 0, len(recordPrefix)+len(txHash)+1+8)
	key = append(key, recordPrefix...)
	key = append(key, txHash...)
	key = append(key, '-')
	return binary.BigEndian.AppendUint64(key, seq)
}

// Append 写入一条记录
func (s *BadgerSink) Append(rec *VerificationRecord) error {
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("分配记录序号失败: %w", err)
	}

	value, err := EncodeToBytes(toStored(rec))
	if err != nil {
		return fmt.Errorf("编码记录失败: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.TxHash, n), value)
	})
}

// FindByHash 按写入顺序返回指定交易的全部记录
func (s *BadgerSink) FindByHash(txHash string) ([]*VerificationRecord, error) {
	prefix := append(append([]byte{}, recordPrefix...), txHash+"-"...)

	var records []*VerificationRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			stored := new(storedRecord)
			if err := DecodeFromBytes(value, stored); err != nil {
				return fmt.Errorf("解码记录失败: %w", err)
			}
			records = append(records, stored.record())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close 释放序号并关闭数据库
func (s *BadgerSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if releaseErr := s.seq.Release(); releaseErr != nil {
			logrus.Errorf("[BadgerSink] 释放序号失败:\t%v", releaseErr)
		}
		err = s.db.Close()
	})
	return err
}
