package rules

import (
	"errors"
	"fmt"
)

// ErrorKind 标识交易校验失败的类别。
type ErrorKind int

// 以下常量定义了校验结果的全部失败类别。
const (
	// ErrStructural 交易结构或历史漏洞回归检查失败。
	ErrStructural ErrorKind = iota

	// ErrProtocol 交易不满足当前协议级别的规则。
	ErrProtocol

	// ErrTaproot Taproot 结构校验失败。
	ErrTaproot

	// ErrIO 读取或解析交易数据失败。
	ErrIO

	// ErrConsensusDivergence 标准路径与优化路径的结果类别不一致。
	// 这是唯一一个表示内部缺陷而不是无效交易的类别。
	ErrConsensusDivergence

	// numErrorKinds 是错误类别的最大值，仅用于测试。
	numErrorKinds
)

// errorKindStrings 是 ErrorKind 到可读名称的映射。
var errorKindStrings = map[ErrorKind]string{
	ErrStructural:          "ErrStructural",
	ErrProtocol:            "ErrProtocol",
	ErrTaproot:             "ErrTaproot",
	ErrIO:                  "ErrIO",
	ErrConsensusDivergence: "ErrConsensusDivergence",
}

// String 返回 ErrorKind 的可读名称。
func (e ErrorKind) String() string {
	if s := errorKindStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorKind (%d)", int(e))
}

// Error 标识一次校验失败。Kind 用于程序化判断类别，Description 描述具体原因，
// Err 可选地保存底层错误。
type Error struct {
	Kind        ErrorKind // 失败类别
	Description string    // 人类可读的描述
	Err         error     // 底层错误，可为空
}

// Error 满足 error 接口。
func (e Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Description, e.Err)
	}
	return e.Description
}

// Unwrap 返回底层错误。
func (e Error) Unwrap() error {
	return e.Err
}

// MakeError 使用给定的类别和描述创建一个 Error。
func MakeError(kind ErrorKind, desc string) Error {
	return Error{Kind: kind, Description: desc}
}

// WrapError 使用给定的类别包装底层错误。
func WrapError(kind ErrorKind, desc string, err error) Error {
	return Error{Kind: kind, Description: desc, Err: err}
}

// IsErrorKind 判断 err 的错误链中是否存在指定类别的 Error。
func IsErrorKind(err error, kind ErrorKind) bool {
	var e Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsDivergence 判断错误是否为共识分歧。
func IsDivergence(err error) bool {
	return IsErrorKind(err, ErrConsensusDivergence)
}

// KindOf 返回错误链中第一个 Error 的类别。
func KindOf(err error) (ErrorKind, bool) {
	var e Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
