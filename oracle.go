package bpfsconsensus

import (
	"context"
	"crypto/sha256"
	"hash"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/qinglongcn/bpfsconsensus/hardware"
	"github.com/sirupsen/logrus"
)

// OracleSignature 预言机签名，ECDSA 与 BIP-340 Schnorr 签名都满足该接口
type OracleSignature interface {
	Verify(hash []byte, pubKey *btcec.PublicKey) bool
}

// OracleAttestation 预言机对合约结果的证明
type OracleAttestation struct {
	Outcome   string           // 结果字符串
	Signature OracleSignature  // 对 sha256(Outcome) 的签名
	PublicKey *btcec.PublicKey // 预言机公钥
}

// OutcomeHash 返回结果字符串的签名消息 sha256(outcome)
func OutcomeHash(outcome string) []byte {
	return chainhash.HashB([]byte(outcome))
}

// Verify 校验单个证明
func (a *OracleAttestation) Verify() bool {
	if !a.complete() {
		return false
	}
	return a.Signature.Verify(OutcomeHash(a.Outcome), a.PublicKey)
}

func (a *OracleAttestation) complete() bool {
	return a != nil && a.Signature != nil && a.PublicKey != nil
}

// oracleContext 每个工作协程独占的哈希状态
type oracleContext struct {
	hasher hash.Hash
	digest []byte
}

func newOracleContext() batchContext[*OracleAttestation] {
	return &oracleContext{
		hasher: sha256.New(),
		digest: make([]byte, 0, sha256.Size),
	}
}

func (c *oracleContext) verify(ctx context.Context, items []*OracleAttestation) (int, error) {
	invalid := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return invalid, err
		}
		if !item.complete() {
			invalid++
			continue
		}

		c.hasher.Reset()
		c.hasher.Write([]byte(item.Outcome))
		c.digest = c.hasher.Sum(c.digest[:0])

		if !item.Signature.Verify(c.digest, item.PublicKey) {
			invalid++
		}
	}
	return invalid, nil
}

// OracleBatchVerifier 预言机签名批量校验器
type OracleBatchVerifier struct {
	engine *batchEngine[*OracleAttestation]
}

// NewOracleBatchVerifier 根据硬件能力创建批量校验器
func NewOracleBatchVerifier(opt *Options, provider hardware.CapabilityProvider, pool *WorkerPool) *OracleBatchVerifier {
	return &OracleBatchVerifier{
		engine: newBatchEngine("oracle", provider, pool, batchConfigFromOptions(opt), newOracleContext),
	}
}

// MaxBatchSize 最大批量大小
func (v *OracleBatchVerifier) MaxBatchSize() int {
	return v.engine.maxSize
}

// Pending 当前累积的证明数量
func (v *OracleBatchVerifier) Pending() int {
	return v.engine.pending()
}

// Queue 加入一个证明。批次达到最大批量时立即处理并返回批次是否全部有效，否则返回 true。
func (v *OracleBatchVerifier) Queue(item *OracleAttestation) bool {
	ok, err := v.QueueContext(context.Background(), item)
	if err != nil {
		logrus.Errorf("[OracleBatchVerifier] 处理批次失败:\t%v", err)
	}
	return ok
}

// QueueContext 与 Queue 相同，处理批次时受 ctx 控制
func (v *OracleBatchVerifier) QueueContext(ctx context.Context, item *OracleAttestation) (bool, error) {
	return v.engine.queue(ctx, item)
}

// Flush 处理未满的批次，空批次返回 true
func (v *OracleBatchVerifier) Flush() bool {
	ok, err := v.FlushContext(context.Background())
	if err != nil {
		logrus.Errorf("[OracleBatchVerifier] 处理批次失败:\t%v", err)
	}
	return ok
}

// FlushContext 与 Flush 相同，处理批次时受 ctx 控制
func (v *OracleBatchVerifier) FlushContext(ctx context.Context) (bool, error) {
	return v.engine.flush(ctx)
}

// Stats 返回统计副本
func (v *OracleBatchVerifier) Stats() VerificationStats {
	return v.engine.snapshot()
}

// VerifyBatch 校验一组证明，按最大批量切分，不影响正在累积的批次
func (v *OracleBatchVerifier) VerifyBatch(ctx context.Context, items []*OracleAttestation) (bool, error) {
	allValid := true
	for start := 0; start < len(items); start += v.engine.maxSize {
		ok, err := v.engine.run(ctx, items[start:min(start+v.engine.maxSize, len(items))])
		if err != nil {
			return false, err
		}
		allValid = allValid && ok
	}
	return allValid, nil
}

// VerifySingle 校验单个证明，不计入统计
func (v *OracleBatchVerifier) VerifySingle(item *OracleAttestation) bool {
	return item.Verify()
}
