package bpfsconsensus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qinglongcn/bpfsconsensus/hardware"
	"github.com/sirupsen/logrus"
)

const (
	parallelThreshold  = 8  // 批量不少于该值时才并行
	maxParallelThreads = 4  // 自动计算时的线程数上限
	l2SubChunkSize     = 16 // 缓存调优等级下每次处理的子块大小
)

// VerificationStats 批量校验统计
type VerificationStats struct {
	ItemsProcessed   uint64  // 已处理的条目数
	BatchesProcessed uint64  // 已处理的批次数
	InvalidCount     uint64  // 无效条目数
	AvgTimePerItemUs float64 // 每个条目的平均耗时（微秒），按批次增量更新
	LastBatchSize    int     // 最近一个批次的大小
	LastBatchTimeUs  float64 // 最近一个批次的耗时（微秒）
}

// batchContext 单个工作协程独占的校验上下文，返回无效条目数
type batchContext[T any] interface {
	verify(ctx context.Context, items []T) (int, error)
}

// batchConfig 批量校验参数
type batchConfig struct {
	Threads int           // 强制线程数，0 表示自动
	Timeout time.Duration // 单个批次的超时时间，0 表示不限
}

func batchConfigFromOptions(opt *Options) batchConfig {
	if opt == nil {
		return batchConfig{}
	}
	return batchConfig{Threads: opt.BatchThreads, Timeout: opt.BatchTimeout}
}

// batchEngine 批量校验的公共实现：累积、按硬件等级分发、统计。
// 状态：空闲 → 累积 → 处理 → 空闲，同一时刻只有一个批次在处理。
type batchEngine[T any] struct {
	name string

	mu    sync.Mutex // 保护 items，处理批次期间一直持有
	items []T

	statsMu sync.Mutex // 只保护 stats，读取统计不等待正在处理的批次
	stats   VerificationStats

	maxSize     int
	tier        hardware.Tier
	accelerated bool
	cfg         batchConfig
	pool        *WorkerPool
	newContext  func() batchContext[T]
}

func newBatchEngine[T any](name string, provider hardware.CapabilityProvider, pool *WorkerPool,
	cfg batchConfig, newContext func() batchContext[T]) *batchEngine[T] {

	maxSize := hardware.MaxBatchSize(provider)
	return &batchEngine[T]{
		name:        name,
		items:       make([]T, 0, maxSize),
		maxSize:     maxSize,
		tier:        hardware.EffectiveTier(provider),
		accelerated: provider != nil && provider.Accelerator() != nil,
		cfg:         cfg,
		pool:        pool,
		newContext:  newContext,
	}
}

// queue 追加条目，达到最大批量时同步处理。仍在累积时返回 true。
func (e *batchEngine[T]) queue(ctx context.Context, item T) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.items = append(e.items, item)
	if len(e.items) < e.maxSize {
		return true, nil
	}
	return e.processLocked(ctx)
}

// flush 处理未满的批次，空批次直接返回 true
func (e *batchEngine[T]) flush(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.items) == 0 {
		return true, nil
	}
	return e.processLocked(ctx)
}

// pending 当前累积的条目数
func (e *batchEngine[T]) pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.items)
}

// processLocked 处理并清空当前批次，调用方持有锁
func (e *batchEngine[T]) processLocked(ctx context.Context) (bool, error) {
	items := e.items
	e.items = make([]T, 0, e.maxSize)
	return e.runLocked(ctx, items)
}

// run 处理调用方给出的条目，不影响正在累积的批次
func (e *batchEngine[T]) run(ctx context.Context, items []T) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.runLocked(ctx, items)
}

func (e *batchEngine[T]) runLocked(ctx context.Context, items []T) (bool, error) {
	n := len(items)
	if n == 0 {
		return true, nil
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	invalid, err := e.dispatch(ctx, items)
	if err != nil {
		logrus.Warnf("[%s] 批量校验中断，丢弃 %d 个条目:\t%v", e.name, n, err)
		return false, fmt.Errorf("%s 批量校验中断: %w", e.name, err)
	}

	e.updateStats(n, invalid, time.Since(start))
	return invalid == 0, nil
}

// threadCount 计算并行线程数
func (e *batchEngine[T]) threadCount(n int) int {
	if e.cfg.Threads > 0 {
		return min(e.cfg.Threads, n)
	}
	return min(maxParallelThreads, min(n, maxThreads))
}

// dispatch 按硬件等级选择顺序或并行执行，返回无效条目数
func (e *batchEngine[T]) dispatch(ctx context.Context, items []T) (int, error) {
	n := len(items)
	threads := e.threadCount(n)

	if !e.accelerated || !e.tier.Parallel() || n < parallelThreshold || threads <= 1 || e.pool == nil {
		return e.newContext().verify(ctx, items)
	}

	subChunk := 0
	if e.tier == hardware.TierCacheTuned {
		subChunk = l2SubChunkSize
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		invalid  int
		firstErr error
	)

	chunkSize := (n + threads - 1) / threads
	for start := 0; start < n; start += chunkSize {
		chunk := items[start:min(start+chunkSize, n)]

		job := func() {
			defer wg.Done()
			count, err := e.runChunk(ctx, chunk, subChunk)

			mu.Lock()
			invalid += count
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}

		wg.Add(1)
		if err := e.pool.Submit(ctx, job); err != nil {
			// 工作池不可用时在当前协程执行，任务内部会检查 ctx
			job()
		}
	}
	wg.Wait()

	return invalid, firstErr
}

// runChunk 使用独立的上下文处理一个块，subChunk > 0 时再按子块处理
func (e *batchEngine[T]) runChunk(ctx context.Context, chunk []T, subChunk int) (int, error) {
	vctx := e.newContext()
	if subChunk <= 0 {
		return vctx.verify(ctx, chunk)
	}

	invalid := 0
	for i := 0; i < len(chunk); i += subChunk {
		count, err := vctx.verify(ctx, chunk[i:min(i+subChunk, len(chunk))])
		invalid += count
		if err != nil {
			return invalid, err
		}
	}
	return invalid, nil
}

// updateStats 更新统计
func (e *batchEngine[T]) updateStats(n, invalid int, elapsed time.Duration) {
	elapsedUs := float64(elapsed.Nanoseconds()) / float64(time.Microsecond)
	perItem := elapsedUs / float64(n)

	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	s := &e.stats
	s.ItemsProcessed += uint64(n)
	s.BatchesProcessed++
	s.InvalidCount += uint64(invalid)
	s.LastBatchSize = n
	s.LastBatchTimeUs = elapsedUs
	s.AvgTimePerItemUs = (s.AvgTimePerItemUs*float64(s.BatchesProcessed-1) + perItem) /
		float64(s.BatchesProcessed)
}

// snapshot 返回统计副本
func (e *batchEngine[T]) snapshot() VerificationStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	return e.stats
}
