package contract

import "errors"

// 最小错误分类（哨兵）。调用方以 errors.Is 判定，不做字符串匹配。
var (
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrConfig: 配置错误（运行前致命）。
	ErrConfig = errors.New("configuration error")
	// ErrRatioInvalid: 划分比例非法（负数、非有限值或 val+test >= 1）。
	ErrRatioInvalid = errors.New("split ratio invalid")
	// ErrInputRoot: 输入根目录不存在或不可读。
	ErrInputRoot = errors.New("input root unreadable")
	// ErrReference: 已配置的参考表整体不可读。
	ErrReference = errors.New("reference table unreadable")

	// ErrSchema: 表头缺少必需列。
	ErrSchema = errors.New("schema mismatch")
	// ErrMalformedRow: 行列数不符或引号无法解析。
	ErrMalformedRow = errors.New("malformed row")
	// ErrDecode: 内容无法按文本解码。
	ErrDecode = errors.New("undecodable content")
	// ErrMissingField: 行缺少必需字段。
	ErrMissingField = errors.New("missing field")
)

// IsConfigError 判断 err 是否属于“运行前致命”的配置类错误。
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrRatioInvalid) ||
		errors.Is(err, ErrInputRoot) ||
		errors.Is(err, ErrReference)
}
