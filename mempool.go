package bpfsconsensus

import (
	"context"

	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/bpfsconsensus/hardware"
	"github.com/qinglongcn/bpfsconsensus/rules"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

// mempoolContext 内存池批量校验的工作协程上下文
type mempoolContext struct {
	accel hardware.AcceleratedVerifier // 为空时逐笔执行标准 Taproot 校验
}

func (c *mempoolContext) verify(ctx context.Context, txs []*wire.MsgTx) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if c.accel != nil {
		bad, err := c.accel.VerifyBatch(txs)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return len(bad), ctxErr
		}
		if err == nil {
			return len(bad), nil
		}
		logrus.Warnf("[MempoolBatchVerifier] 加速批量校验失败，回退到标准校验:\t%v", err)
	}

	invalid := 0
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return invalid, err
		}
		if tx == nil || rules.CheckTaproot(tx) != nil {
			invalid++
		}
	}
	return invalid, nil
}

// MempoolBatchVerifier 内存池交易批量校验器
type MempoolBatchVerifier struct {
	engine *batchEngine[*wire.MsgTx]
}

type NewMempoolBatchVerifierInput struct {
	fx.In

	Opt      *Options                    // 选项配置
	Provider hardware.CapabilityProvider // 硬件能力
	Pool     *WorkerPool                 // 工作池
}

type NewMempoolBatchVerifierOutput struct {
	fx.Out

	Mempool *MempoolBatchVerifier // 内存池批量校验器
}

// NewMempoolBatchVerifier 根据硬件能力创建内存池批量校验器
func NewMempoolBatchVerifier(lc fx.Lifecycle, input NewMempoolBatchVerifierInput) (out NewMempoolBatchVerifierOutput, err error) {
	out.Mempool = newMempoolBatchVerifier(input.Opt, input.Provider, input.Pool)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// 停止前处理剩余的交易
			if _, err := out.Mempool.FlushContext(ctx); err != nil {
				logrus.Warnf("[NewMempoolBatchVerifier] 停止时处理剩余交易失败:\t%v", err)
			}
			return nil
		},
	})
	return out, nil
}

func newMempoolBatchVerifier(opt *Options, provider hardware.CapabilityProvider, pool *WorkerPool) *MempoolBatchVerifier {
	var accel hardware.AcceleratedVerifier
	if provider != nil {
		accel = provider.Accelerator()
	}

	newContext := func() batchContext[*wire.MsgTx] {
		return &mempoolContext{accel: accel}
	}
	return &MempoolBatchVerifier{
		engine: newBatchEngine("mempool", provider, pool, batchConfigFromOptions(opt), newContext),
	}
}

// MaxBatchSize 最大批量大小
func (m *MempoolBatchVerifier) MaxBatchSize() int {
	return m.engine.maxSize
}

// Pending 当前累积的交易数量
func (m *MempoolBatchVerifier) Pending() int {
	return m.engine.pending()
}

// QueueTransaction 加入一笔交易。批次达到最大批量时立即处理并返回批次是否全部有效，否则返回 true。
func (m *MempoolBatchVerifier) QueueTransaction(tx *wire.MsgTx) bool {
	ok, err := m.QueueContext(context.Background(), tx)
	if err != nil {
		logrus.Errorf("[MempoolBatchVerifier] 处理批次失败:\t%v", err)
	}
	return ok
}

// QueueContext 与 QueueTransaction 相同，处理批次时受 ctx 控制
func (m *MempoolBatchVerifier) QueueContext(ctx context.Context, tx *wire.MsgTx) (bool, error) {
	return m.engine.queue(ctx, tx)
}

// Flush 处理未满的批次，空批次返回 true
func (m *MempoolBatchVerifier) Flush() bool {
	ok, err := m.FlushContext(context.Background())
	if err != nil {
		logrus.Errorf("[MempoolBatchVerifier] 处理批次失败:\t%v", err)
	}
	return ok
}

// FlushContext 与 Flush 相同，处理批次时受 ctx 控制
func (m *MempoolBatchVerifier) FlushContext(ctx context.Context) (bool, error) {
	return m.engine.flush(ctx)
}

// Stats 返回统计副本
func (m *MempoolBatchVerifier) Stats() VerificationStats {
	return m.engine.snapshot()
}
