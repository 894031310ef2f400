// Package convert 将 JSONL 分区文件转为三段式会话记录。
package convert

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sftcorpus/internal/dataset"
	"sftcorpus/pkg/contract"
)

// Stats 单次转换统计。
type Stats struct {
	// Read: 非空输入行数。
	Read int
	// Written: 写出的会话数。
	Written int
	// Skipped: 按原因计数的跳过行。
	Skipped map[contract.SkipReason]int
	// Bytes: 写出的字节数。
	Bytes int64
}

// Options 转换器配置。
type Options struct {
	// OnSkip: 每个被跳过的行回调一次；在调用方 goroutine 执行。
	OnSkip func(contract.Skip)
}

// Formatter 逐行读取 {prompt,response,...} 并写出 {messages:[...]}。
type Formatter struct {
	out    contract.Writer
	chat   contract.ChatTemplate
	onSkip func(contract.Skip)
}

// New 创建转换器。
func New(out contract.Writer, chat contract.ChatTemplate, opts Options) *Formatter {
	return &Formatter{out: out, chat: chat, onSkip: opts.OnSkip}
}

// line 仅声明所需字段；其余字段（如 metadata）忽略。
type line struct {
	Prompt   *string `json:"prompt"`
	Response *string `json:"response"`
}

// Format 读取 inPath 并原子写出 outID。输入文件无法打开时返回包装 ErrConfig 的错误。
func (f *Formatter) Format(ctx context.Context, inPath string, outID contract.ArtifactID) (Stats, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return Stats{Skipped: map[contract.SkipReason]int{}}, fmt.Errorf("%w: input: %v", contract.ErrConfig, err)
	}
	defer in.Close()
	return f.FormatReader(ctx, filepath.Base(inPath), in, outID)
}

// FormatReader 与 Format 相同，输入取自 r；name 用于跳过记录的来源标注。
// - 空白行忽略，不计数；行长度不设上限；
// - 非 JSON 对象：malformed_line；prompt/response 缺失或为 null：missing_field；
// - 输出与输入行一一对应且保持顺序，内容逐字节保留。
func (f *Formatter) FormatReader(ctx context.Context, name string, r io.Reader, outID contract.ArtifactID) (Stats, error) {
	st := Stats{Skipped: map[contract.SkipReason]int{}}
	skip := func(no int, reason contract.SkipReason, err error) {
		st.Skipped[reason]++
		if f.onSkip != nil {
			f.onSkip(contract.Skip{Source: name + ":" + strconv.Itoa(no), Reason: reason, Err: err})
		}
	}

	br := bufio.NewReader(r)
	ds, err := dataset.Stream(ctx, f.out, outID, func(enc *dataset.Encoder) error {
		for no := 1; ; no++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, rerr := br.ReadString('\n')
			if rerr != nil && !errors.Is(rerr, io.EOF) {
				return fmt.Errorf("read %s: %w", name, rerr)
			}
			if strings.TrimSpace(s) != "" {
				st.Read++
				var ln line
				switch err := json.Unmarshal([]byte(s), &ln); {
				case err != nil:
					skip(no, contract.SkipMalformedLine, fmt.Errorf("%w: %v", contract.ErrDecode, err))
				case ln.Prompt == nil || ln.Response == nil:
					skip(no, contract.SkipMissingField, fmt.Errorf("%w: prompt and response are required", contract.ErrMissingField))
				default:
					conv := f.chat.Render(*ln.Prompt, *ln.Response)
					if err := enc.Encode(&conv); err != nil {
						return err
					}
					st.Written++
				}
			}
			if rerr != nil {
				return nil
			}
		}
	})
	st.Bytes = ds.Bytes
	return st, err
}
