package bpfsconsensus

import (
	"context"
	"fmt"
	"time"

	"github.com/qinglongcn/bpfsconsensus/hardware"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

// stopTimeout 关闭服务的最长等待时间
const stopTimeout = 15 * time.Second

// Service 提供了与校验服务交互所需的各种组件
type Service struct {
	ctx context.Context // 全局上下文
	opt *Options        // 选项配置
	app *fx.App         // 依赖注入容器

	provider  hardware.CapabilityProvider // 硬件能力
	pool      *WorkerPool                 // 批量校验工作池
	history   *HistoryStore               // 审计库
	validator *ConsensusValidator         // 双路径校验器
	oracle    *OracleBatchVerifier        // 预言机签名批量校验器
	mempool   *MempoolBatchVerifier       // 内存池批量校验器
	files     *FileStore                  // 交易文件读写
}

// Open 返回一个新的校验服务。provider 为空时探测本机硬件能力。
func Open(opt *Options, provider hardware.CapabilityProvider) (*Service, error) {
	// 1. 检查并设置选项
	if err := opt.CheckAndSetOptions(); err != nil {
		return nil, err
	}
	// 2. 硬件能力
	if provider == nil {
		provider = hardware.NewDetectedProvider()
	}

	svc := &Service{
		ctx:      context.Background(),
		opt:      opt,
		provider: provider,
	}

	// fx 配置项
	opts := []fx.Option{
		svc.globalInit(),
		fx.Provide(
			NewWorkerPoolService,    // 工作池
			NewHistoryService,       // 审计库
			NewValidatorService,     // 双路径校验器
			NewOracleBatchVerifier,  // 预言机签名批量校验器
			NewMempoolBatchVerifier, // 内存池批量校验器
		),
		fx.Invoke(
			RegisterServiceMetrics, // 注册指标
		),
		fx.Populate(
			&svc.pool,
			&svc.history,
			&svc.validator,
			&svc.oracle,
			&svc.mempool,
			&svc.files,
		),
	}
	svc.app = fx.New(opts...)
	if err := svc.app.Err(); err != nil {
		return nil, fmt.Errorf("构建校验服务失败: %w", err)
	}

	// 启动全部生命周期钩子
	if err := svc.app.Start(svc.ctx); err != nil {
		return nil, err
	}

	opt.IsOpen = true // 校验服务已打开
	logrus.WithFields(logrus.Fields{
		"instance": opt.InstanceId,
		"level":    opt.ProtocolLevel.String(),
		"optimize": opt.Optimization,
		"tier":     hardware.EffectiveTier(provider).String(),
	}).Info("校验服务已启动")

	return svc, nil
}

// 全局初始化
func (svc *Service) globalInit() fx.Option {
	return fx.Provide(
		// 获取上下文
		func() context.Context {
			return svc.ctx
		},
		func() *Options {
			return svc.opt
		},
		func() hardware.CapabilityProvider {
			return svc.provider
		},
		func(opt *Options) *FileStore {
			return NewFileStore(opt.Fs, "")
		},
	)
}

// Close 停止服务，关闭工作池和审计库
func (svc *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := svc.app.Stop(ctx); err != nil {
		return fmt.Errorf("停止校验服务失败: %w", err)
	}
	svc.opt.IsOpen = false
	return nil
}

// Options 返回选项配置
func (svc *Service) Options() *Options { return svc.opt }

// Provider 返回硬件能力提供者
func (svc *Service) Provider() hardware.CapabilityProvider { return svc.provider }

// Validator 返回双路径校验器
func (svc *Service) Validator() *ConsensusValidator { return svc.validator }

// History 返回审计库
func (svc *Service) History() *HistoryStore { return svc.history }

// Oracle 返回预言机签名批量校验器
func (svc *Service) Oracle() *OracleBatchVerifier { return svc.oracle }

// Mempool 返回内存池批量校验器
func (svc *Service) Mempool() *MempoolBatchVerifier { return svc.mempool }

// Files 返回交易文件读写
func (svc *Service) Files() *FileStore { return svc.files }

// Pool 返回批量校验工作池
func (svc *Service) Pool() *WorkerPool { return svc.pool }

type NewWorkerPoolServiceInput struct {
	fx.In

	Provider hardware.CapabilityProvider // 硬件能力
}

type NewWorkerPoolServiceOutput struct {
	fx.Out

	Pool *WorkerPool // 批量校验工作池
}

// NewWorkerPoolService 按硬件线程数创建工作池
func NewWorkerPoolService(lc fx.Lifecycle, input NewWorkerPoolServiceInput) (out NewWorkerPoolServiceOutput, err error) {
	out.Pool = NewWorkerPool(min(input.Provider.Capabilities().Threads(), maxThreads))

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			out.Pool.Close()
			return nil
		},
	})
	return out, nil
}

type NewHistoryServiceInput struct {
	fx.In

	Opt *Options // 选项配置
}

type NewHistoryServiceOutput struct {
	fx.Out

	History *HistoryStore // 审计库
}

// NewHistoryService 创建审计库，开启持久化时淘汰的记录写入 badger
func NewHistoryService(lc fx.Lifecycle, input NewHistoryServiceInput) (out NewHistoryServiceOutput, err error) {
	var sink RecordSink
	if input.Opt.PersistHistory {
		bs, err := NewBadgerSink(input.Opt.historyPath())
		if err != nil {
			logrus.Errorf("[NewHistoryService] 打开审计数据库失败:\t%v", err)
			return out, err
		}
		sink = bs
	}
	out.History = NewHistoryStore(input.Opt.HistoryCapacity, sink)

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return out.History.Close()
		},
	})
	return out, nil
}

type NewValidatorServiceInput struct {
	fx.In

	Opt      *Options                    // 选项配置
	History  *HistoryStore               // 审计库
	Provider hardware.CapabilityProvider // 硬件能力
}

type NewValidatorServiceOutput struct {
	fx.Out

	Validator *ConsensusValidator // 双路径校验器
}

// NewValidatorService 创建双路径校验器
func NewValidatorService(input NewValidatorServiceInput) (out NewValidatorServiceOutput, err error) {
	out.Validator = NewConsensusValidator(input.History, input.Provider,
		input.Opt.ProtocolLevel, input.Opt.Optimization)
	return out, nil
}

type RegisterServiceMetricsInput struct {
	fx.In

	Opt     *Options              // 选项配置
	History *HistoryStore         // 审计库
	Oracle  *OracleBatchVerifier  // 预言机签名批量校验器
	Mempool *MempoolBatchVerifier // 内存池批量校验器
}

// RegisterServiceMetrics 在选项指定的注册器中注册指标
func RegisterServiceMetrics(input RegisterServiceMetricsInput) error {
	if err := RegisterMetrics(input.Opt.Registerer, input.History, input.Oracle, input.Mempool); err != nil {
		return fmt.Errorf("注册指标失败: %w", err)
	}
	return nil
}
