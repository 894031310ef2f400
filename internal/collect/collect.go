// Package collect 遍历源码树，为每个文件产出一条 snippet 记录。
package collect

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"sftcorpus/internal/prompt"
	"sftcorpus/pkg/contract"
)

// Options 采集器配置。
type Options struct {
	// Workers: 并行读取的文件数上限；<=0 时为 1。
	Workers int
	// Subject: prompt 中的知识库主题。
	Subject string
	// OnProgress: 每个结果按序交付后回调 (done, total)；在调用方 goroutine 执行。
	OnProgress func(done, total int)
}

// Collector 将 Reader 扫描出的文件转为 Result 流。
type Collector struct {
	reader   contract.Reader
	workers  int
	subject  string
	progress func(done, total int)
}

// New 创建采集器。
func New(r contract.Reader, opts Options) *Collector {
	w := opts.Workers
	if w <= 0 {
		w = 1
	}
	return &Collector{reader: r, workers: w, subject: opts.Subject, progress: opts.OnProgress}
}

// Collect 扫描 root 并按扫描顺序对每个文件回调一次 yield。
// - 单点并发：文件读取与解码在至多 Workers 个 goroutine 中进行；
// - 顺序门闩：乱序完成的结果暂存，按下标连续冲刷，yield 只在调用方 goroutine 中执行；
// - 首错取消：yield 返回错误或 ctx 取消时停止派发，排空后返回该错误。
// 不可读/不可解码的文件以 Skip 交付，不中断采集。
func (c *Collector) Collect(ctx context.Context, root string, yield func(contract.Result) error) error {
	entries, err := c.reader.Scan(ctx, root)
	if err != nil {
		return err
	}
	rootName := rootLabel(root)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type slot struct {
		idx int
		res contract.Result
	}
	out := make(chan slot, c.workers*2)
	done := make(chan error, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	go func() {
		for i, e := range entries {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				res, err := c.readOne(gctx, root, rootName, e)
				if err != nil {
					return err
				}
				select {
				case out <- slot{idx: i, res: res}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		done <- g.Wait()
		close(out)
	}()

	buf := make(map[int]contract.Result)
	next := 0
	var firstErr error
	for s := range out {
		if firstErr != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			firstErr = err
			continue
		}
		buf[s.idx] = s.res
		for {
			r, ok := buf[next]
			if !ok {
				break
			}
			if err := ctx.Err(); err != nil {
				firstErr = err
				break
			}
			delete(buf, next)
			next++
			if err := yield(r); err != nil {
				firstErr = err
				cancel()
				break
			}
			if c.progress != nil {
				c.progress(next, len(entries))
			}
		}
	}
	werr := <-done
	switch {
	case firstErr != nil:
		return firstErr
	case werr != nil:
		return werr
	case next != len(entries):
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: collected %d of %d entries", contract.ErrInvariantViolation, next, len(entries))
	}
	return nil
}

// readOne 读取并解码单个文件；仅在 ctx 取消时返回错误，其余失败转为 Skip。
func (c *Collector) readOne(ctx context.Context, root, rootName string, e contract.Entry) (contract.Result, error) {
	src := string(e.ID)
	if e.Err != nil {
		return contract.Skipped(src, contract.SkipUnreadable, e.Err), nil
	}
	rc, err := c.reader.Open(ctx, root, e.ID)
	if err != nil {
		if ctx.Err() != nil {
			return contract.Result{}, ctx.Err()
		}
		return contract.Skipped(src, contract.SkipUnreadable, err), nil
	}
	b, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		if ctx.Err() != nil {
			return contract.Result{}, ctx.Err()
		}
		return contract.Skipped(src, contract.SkipUnreadable, err), nil
	}
	text, err := decodeText(b)
	if err != nil {
		return contract.Skipped(src, contract.SkipUndecodable, err), nil
	}
	return contract.Emit(c.snippet(e.ID, rootName, text)), nil
}

func (c *Collector) snippet(id contract.FileID, rootName, text string) contract.Record {
	src := string(id)
	name := path.Base(src)
	exampleID := strings.TrimSuffix(name, path.Ext(name))
	if exampleID == "" {
		exampleID = name
	}
	category := contract.TopSegment(id)
	if category == "" {
		category = rootName
	}
	return contract.Record{
		Prompt:   prompt.Snippet(c.subject, category, exampleID, src),
		Response: text,
		Metadata: contract.Metadata{
			SourcePath: src,
			Category:   category,
			Filename:   name,
			LineCount:  contract.IntPtr(lineCount(text)),
			RecordType: contract.RecordSnippet,
		},
	}
}

// rootLabel 返回根目录基名，作为根层级文件的类别。
func rootLabel(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Base(abs)
}
