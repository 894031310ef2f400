package contract

import (
	"context"
	"io"
)

// Row: 表格中的一行（按表头列名取值）。
type Row struct {
	// Line: 行在源文件中的起始行号（1 起，含表头）。
	Line int
	// Fields: 列名 → 值；Err 非空时可能不完整。
	Fields map[string]string
	// Err: 行级解析错误（列数不符、引号非法），包装 ErrMalformedRow。
	Err error
}

// Get 返回列值；缺失列返回空串。
func (r Row) Get(col string) string { return r.Fields[col] }

// TableReader: 带表头的分隔文本解析器。
// 约束：
// 1) 表头缺少 required 中任一列时，在产出任何行之前返回包装 ErrSchema 的错误；
// 2) 行级错误通过 Row.Err 回调，不中断后续行；
// 3) 无内部并发，yield 返回错误时立即停止并上抛。
type TableReader interface {
	Read(ctx context.Context, r io.Reader, required []string, yield func(Row) error) error
}

// ChatTemplate: 将一对 prompt/response 渲染为固定三段式会话。
// 纯计算，不做 I/O；内容逐字节保留。
type ChatTemplate interface {
	Render(prompt, response string) ConversationRecord
}
