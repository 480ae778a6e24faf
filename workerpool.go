package bpfsconsensus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed 工作池已关闭
var ErrPoolClosed = errors.New("工作池已关闭")

// WorkerPool 可复用的批量校验工作池。
// 任务通过无缓冲通道分发，Submit 成功即表示某个工作协程已经接收了任务，任务一定会被执行。
type WorkerPool struct {
	jobs   chan func()   // 任务通道
	stopCh chan struct{} // 停止信号
	wg     sync.WaitGroup

	size      int
	closeOnce sync.Once

	executed atomic.Uint64 // 已执行的任务数
}

// NewWorkerPool 创建包含 size 个工作协程的工作池，size < 1 时按 1 处理
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}

	p := &WorkerPool{
		jobs:   make(chan func()),
		stopCh: make(chan struct{}),
		size:   size,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// worker 循环执行任务直到收到停止信号
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			job()
			p.executed.Add(1)
		case <-p.stopCh:
			return
		}
	}
}

// Submit 提交任务，阻塞直到某个工作协程接收任务、ctx 结束或工作池关闭
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	select {
	case <-p.stopCh:
		return ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return ErrPoolClosed
	}
}

// Size 工作协程数量
func (p *WorkerPool) Size() int {
	return p.size
}

// Executed 已执行的任务数
func (p *WorkerPool) Executed() uint64 {
	return p.executed.Load()
}

// Close 停止全部工作协程并等待正在执行的任务结束
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
	})
}
