package rules

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrorKindStringer 确保每个 ErrorKind 都有名称。
func TestErrorKindStringer(t *testing.T) {
	for k := ErrorKind(0); k < numErrorKinds; k++ {
		assert.NotContains(t, k.String(), "Unknown", "ErrorKind %d 缺少名称", int(k))
	}
	assert.Equal(t, "Unknown ErrorKind (99)", ErrorKind(99).String())
}

func TestIsErrorKind(t *testing.T) {
	base := MakeError(ErrConsensusDivergence, "standard=true optimized=false")
	wrapped := fmt.Errorf("批量校验: %w", base)

	assert.True(t, IsErrorKind(wrapped, ErrConsensusDivergence))
	assert.True(t, IsDivergence(wrapped))
	assert.False(t, IsErrorKind(wrapped, ErrStructural))
	assert.False(t, IsErrorKind(errors.New("plain"), ErrStructural))

	ioErr := WrapError(ErrIO, "读取交易失败", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, ioErr, io.ErrUnexpectedEOF)
	assert.Equal(t, "读取交易失败: unexpected EOF", ioErr.Error())

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrConsensusDivergence, kind)
}
