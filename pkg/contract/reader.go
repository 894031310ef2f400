package contract

import (
	"context"
	"io"
)

// Entry: 扫描结果中的单个候选文件。
// Err 非空表示该条目在扫描期已不可读（例如子目录无法列出），由上层记为跳过。
type Entry struct {
	ID  FileID
	Err error
}

// Reader: 源码树抽象。
// 约束：
// 1) Scan 返回根下全部候选文件，按根相对路径字节序排序，与文件系统返回顺序无关；
// 2) FileID 为根相对、正斜杠分隔；
// 3) 不做解码/业务解析，仅提供字节流；
// 4) 不在内部起并发；Open 可被多个 goroutine 同时调用。
type Reader interface {
	Scan(ctx context.Context, root string) ([]Entry, error)
	Open(ctx context.Context, root string, id FileID) (io.ReadCloser, error)
}
