package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"sftcorpus/pkg/contract"
)

// Encoder 将值逐行编码为 JSONL，并累计行数与字节数。
type Encoder struct {
	w     io.Writer
	buf   bytes.Buffer
	enc   *json.Encoder
	lines int
	bytes int64
}

func newEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	e.enc = json.NewEncoder(&e.buf)
	e.enc.SetEscapeHTML(false)
	return e
}

// Encode 写出 v 的单行 JSON（以 LF 结尾）。编码失败时不写出任何字节。
func (e *Encoder) Encode(v any) error {
	e.buf.Reset()
	if err := e.enc.Encode(v); err != nil {
		return err
	}
	n, err := e.w.Write(e.buf.Bytes())
	e.bytes += int64(n)
	if err != nil {
		return err
	}
	e.lines++
	return nil
}

// Lines 返回已写出的行数。
func (e *Encoder) Lines() int { return e.lines }

// Bytes 返回已写出的字节数。
func (e *Encoder) Bytes() int64 { return e.bytes }

// Stream 以单次 Writer.Write 调用流式写出工件 id：
// fill 通过 Encoder 逐行产出内容，返回后关闭管道并等待落盘结果。
// - Writer 失败：管道读端以该错误关闭，fill 的后续写入立即失败；
// - fill 失败：管道写端以该错误关闭，原子 Writer 不会留下目标文件；
// 两侧 goroutine 在返回前均已结束。
func Stream(ctx context.Context, w contract.Writer, id contract.ArtifactID, fill func(*Encoder) error) (Stats, error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := w.Write(ctx, id, pr)
		// 读端关闭：Writer 提前返回时解除 fill 的阻塞
		_ = pr.CloseWithError(err)
		done <- err
	}()

	enc := newEncoder(pw)
	ferr := fill(enc)
	if ferr != nil {
		_ = pw.CloseWithError(ferr)
	} else {
		_ = pw.Close()
	}
	werr := <-done

	st := Stats{Lines: enc.Lines(), Bytes: enc.Bytes()}
	switch {
	case werr != nil:
		return st, fmt.Errorf("write %s: %w", id, werr)
	case ferr != nil:
		return st, fmt.Errorf("write %s: %w", id, ferr)
	}
	return st, nil
}
