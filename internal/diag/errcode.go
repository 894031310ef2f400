package diag

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"sftcorpus/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志与汇总；退出码由命令层按 Code 映射。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeConfig    Code = "config"
	CodeSchema    Code = "schema"
	CodeDecode    Code = "decode"
	CodeInvariant Code = "invariant"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if contract.IsConfigError(err) {
		return CodeConfig
	}
	if errors.Is(err, contract.ErrSchema) || errors.Is(err, contract.ErrMalformedRow) {
		return CodeSchema
	}
	if errors.Is(err, contract.ErrDecode) || errors.Is(err, contract.ErrMissingField) {
		return CodeDecode
	}
	if errors.Is(err, contract.ErrInvariantViolation) || errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	var perr *fs.PathError
	var lerr *os.LinkError
	if errors.As(err, &perr) || errors.As(err, &lerr) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.ErrUnexpectedEOF) {
		return CodeIO
	}
	return CodeUnknown
}
