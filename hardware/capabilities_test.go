package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitiesTier(t *testing.T) {
	tests := []struct {
		name      string
		caps      Capabilities
		tier      Tier
		batchSize int
	}{
		{"空描述", Capabilities{}, TierUnknown, 64},
		{"通用", Capabilities{Vendor: "AuthenticAMD", Model: "EPYC"}, TierGeneric, 128},
		{"avx2", Capabilities{Vendor: "GenuineIntel", AVX2: true}, TierAVX2, 256},
		{"缓存调优", Capabilities{Vendor: "GenuineIntel", AVX2: true, CacheTuned: true}, TierCacheTuned, 384},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.tier, test.caps.Tier())
			assert.Equal(t, test.batchSize, test.caps.Tier().BatchSize())
		})
	}
}

func TestMaxBatchSize(t *testing.T) {
	caps := Capabilities{Vendor: "GenuineIntel", AVX2: true, CacheTuned: true}

	// 没有加速器时一律按未知等级
	assert.Equal(t, BatchSizeUnknown, MaxBatchSize(nil))
	assert.Equal(t, BatchSizeUnknown, MaxBatchSize(&StaticProvider{Caps: caps}))
	assert.Equal(t, BatchSizeCacheTuned, MaxBatchSize(&StaticProvider{Caps: caps, Accel: NewCPUVerifier()}))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "", Capabilities{}.Fingerprint())
	caps := Capabilities{Vendor: "GenuineIntel", Model: "Intel(R) Core(TM) i3-7020U CPU @ 2.30GHz"}
	assert.Equal(t, "GenuineIntel|Intel(R) Core(TM) i3-7020U CPU @ 2.30GHz", caps.Fingerprint())
}

func TestIsCacheTunedModel(t *testing.T) {
	assert.True(t, isCacheTunedModel("Intel(R) Core(TM) i3-7020U CPU @ 2.30GHz"))
	assert.False(t, isCacheTunedModel("AMD Ryzen 7 5800X"))
}

func TestDetect(t *testing.T) {
	caps := Detect()
	assert.GreaterOrEqual(t, caps.LogicalCores, 1)
	assert.GreaterOrEqual(t, caps.Threads(), 1)
	if caps.CacheTuned {
		assert.True(t, caps.AVX2)
	}
}
