// Package discard 提供 dry-run 使用的 Writer：完整消费输入流并计数，不触碰任何文件。
package discard

import (
	"context"
	"io"
	"sync"

	"sftcorpus/pkg/contract"
)

// Options: 预留；当前无配置项。
type Options struct{}

// Discard 记录每个工件“将会写入”的字节数。
type Discard struct {
	mu    sync.Mutex
	sizes map[contract.ArtifactID]int64
}

// New 创建 Discard Writer。
func New(*Options) *Discard {
	return &Discard{sizes: make(map[contract.ArtifactID]int64)}
}

var _ contract.Writer = (*Discard)(nil)

// Write 读尽 r；上游错误与 ctx 取消照常上抛。
func (d *Discard) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := io.Copy(io.Discard, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.sizes[id] = n
	d.mu.Unlock()
	return nil
}

// Size 返回最近一次写入 id 的字节数。
func (d *Discard) Size(id contract.ArtifactID) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.sizes[id]
	return n, ok
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
