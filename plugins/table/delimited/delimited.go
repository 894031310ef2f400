package delimited

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"sftcorpus/pkg/contract"
)

// Options 为分隔文本表解析器的可选配置（最小必要）。
type Options struct {
	// Comma: 字段分隔符（单个字符）。为空时使用构造方给出的默认值。
	Comma string `json:"comma"`
	// LazyQuotes: 容忍非规范引号（透传 encoding/csv 同名选项）。
	LazyQuotes bool `json:"lazy_quotes"`
	// MaxFieldBytes: 单字段最大字节数。0 表示不限制；超出时该行记为畸形行。
	MaxFieldBytes int `json:"max_field_bytes"`
}

// Table 实现 contract.TableReader。
type Table struct {
	comma    rune
	lazy     bool
	maxField int
}

// New 创建解析器；def 为 Options.Comma 为空时的分隔符。
func New(opts *Options, def rune) (*Table, error) {
	t := &Table{comma: def}
	if opts == nil {
		return t, nil
	}
	if opts.Comma != "" {
		c, size := utf8.DecodeRuneInString(opts.Comma)
		if size != len(opts.Comma) || c == utf8.RuneError || c == '"' || c == '\r' || c == '\n' {
			return nil, fmt.Errorf("delimited: invalid comma %q", opts.Comma)
		}
		t.comma = c
	}
	t.lazy = opts.LazyQuotes
	if opts.MaxFieldBytes > 0 {
		t.maxField = opts.MaxFieldBytes
	}
	return t, nil
}

var _ contract.TableReader = (*Table)(nil)

// Read 解析表头并逐行回调。
// - 输入可带 UTF-8/UTF-16 BOM；无 BOM 时按 UTF-8 解读；
// - 表头列名去除首尾空白；
// - 表头缺列：在任何行回调之前返回包装 ErrSchema 的错误；
// - 列数不符/引号非法/字段超长：Row.Err 包装 ErrMalformedRow，继续下一行。
func (t *Table) Read(ctx context.Context, r io.Reader, required []string, yield func(contract.Row) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.Comma = t.comma
	cr.LazyQuotes = t.lazy
	// 列数校验由本层按表头执行，保证错误行不影响后续行
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty table (no header)", contract.ErrSchema)
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return fmt.Errorf("%w: header: %v", contract.ErrSchema, err)
		}
		return err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if missing := missingColumns(header, required); len(missing) > 0 {
		return fmt.Errorf("%w: missing column(s) %s", contract.ErrSchema, strings.Join(missing, ", "))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var row contract.Row
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return err
			}
			row = contract.Row{Line: perr.StartLine, Err: fmt.Errorf("%w: %v", contract.ErrMalformedRow, perr.Err)}
		} else {
			line, _ := cr.FieldPos(0)
			row = t.makeRow(line, header, rec)
		}
		if err := yield(row); err != nil {
			return err
		}
	}
}

func (t *Table) makeRow(line int, header, rec []string) contract.Row {
	if len(rec) != len(header) {
		return contract.Row{Line: line, Err: fmt.Errorf("%w: expected %d fields, got %d", contract.ErrMalformedRow, len(header), len(rec))}
	}
	fields := make(map[string]string, len(header))
	for i, col := range header {
		if t.maxField > 0 && len(rec[i]) > t.maxField {
			return contract.Row{Line: line, Err: fmt.Errorf("%w: field %q too large: %d > %d", contract.ErrMalformedRow, col, len(rec[i]), t.maxField)}
		}
		fields[col] = rec[i]
	}
	return contract.Row{Line: line, Fields: fields}
}

func missingColumns(header, required []string) []string {
	have := make(map[string]struct{}, len(header))
	for _, h := range header {
		have[h] = struct{}{}
	}
	var missing []string
	for _, col := range required {
		if _, ok := have[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}
