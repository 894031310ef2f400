// Package reference 将参考表（CSV/TSV）的每一行转为 reference 记录。
package reference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sftcorpus/internal/prompt"
	"sftcorpus/pkg/contract"
)

// 列名。
const (
	ColName          = "Name"
	ColDescription   = "Description"
	ColElementType   = "ElementType"
	ColSourceFile    = "SourceFile"
	ColPath          = "Path"
	ColSignatureType = "Type"
	ColReturnType    = "ReturnType"
	ColSymbol        = "Symbol"
	ColParameters    = "Parameters"
)

// UnknownElementType: ElementType 缺失或为空时的类别。
const UnknownElementType = "Unknown"

// Required 为表头必须包含的列。
var Required = []string{ColName, ColDescription}

// Options 加载器配置。
type Options struct {
	// Subject: prompt 中的知识库主题。
	Subject string
	// ByExt: 按扩展名（小写，含点）选择解析器；未命中时使用默认解析器。
	ByExt map[string]contract.TableReader
}

// Loader 读取参考表并产出 Result 流。
type Loader struct {
	def     contract.TableReader
	byExt   map[string]contract.TableReader
	subject string
}

// New 创建加载器；def 为默认表解析器。
func New(def contract.TableReader, opts Options) *Loader {
	by := make(map[string]contract.TableReader, len(opts.ByExt))
	for ext, t := range opts.ByExt {
		by[strings.ToLower(ext)] = t
	}
	return &Loader{def: def, byExt: by, subject: opts.Subject}
}

// Load 解析 path 指向的参考表，逐行回调 yield。
// - path 为空：不产出任何结果；
// - 文件无法打开或中途读失败：返回包装 ErrReference 的错误；
// - 表头缺少必需列：产出一个 schema Skip 后返回 nil；
// - 畸形行/必需字段为空：逐行 Skip，不中断后续行。
func (l *Loader) Load(ctx context.Context, path string, yield func(contract.Result) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrReference, err)
	}
	defer f.Close()
	if info, err := f.Stat(); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrReference, err)
	} else if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", contract.ErrReference, path)
	}

	table := filepath.Base(path)
	var yieldErr error
	err = l.pick(path).Read(ctx, f, Required, func(row contract.Row) error {
		if err := yield(l.fromRow(table, row)); err != nil {
			yieldErr = err
			return err
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case yieldErr != nil:
		return yieldErr
	case errors.Is(err, contract.ErrSchema):
		return yield(contract.Skipped(table, contract.SkipSchema, err))
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("%w: %s: %v", contract.ErrReference, path, err)
	}
}

func (l *Loader) pick(path string) contract.TableReader {
	if t, ok := l.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return l.def
}

func (l *Loader) fromRow(table string, row contract.Row) contract.Result {
	src := table + ":" + strconv.Itoa(row.Line)
	if row.Err != nil {
		return contract.Skipped(src, contract.SkipMalformedRow, row.Err)
	}
	e := Entry(row)
	if e.Name == "" || e.Description == "" {
		return contract.Skipped(src, contract.SkipEmptyField, fmt.Errorf("%w: Name or Description is empty", contract.ErrMissingField))
	}
	return contract.Emit(contract.Record{
		Prompt:   prompt.Reference(l.subject, e),
		Response: prompt.ReferenceResponse(e),
		Metadata: contract.Metadata{
			SourcePath:   table + "#" + e.Name,
			Category:     e.ElementType,
			RecordType:   contract.RecordReference,
			ElementName:  e.Name,
			SourceTable:  table,
			SourceFile:   e.SourceFile,
			CategoryPath: e.CategoryPath,
		},
	})
}

// Entry 将一行转为去除首尾空白的参考条目；ElementType 为空时取 Unknown。
func Entry(row contract.Row) prompt.ReferenceEntry {
	get := func(col string) string { return strings.TrimSpace(row.Get(col)) }
	et := get(ColElementType)
	if et == "" {
		et = UnknownElementType
	}
	return prompt.ReferenceEntry{
		Name:          get(ColName),
		Description:   get(ColDescription),
		ElementType:   et,
		SourceFile:    get(ColSourceFile),
		CategoryPath:  get(ColPath),
		SignatureType: get(ColSignatureType),
		ReturnType:    get(ColReturnType),
		Symbol:        get(ColSymbol),
		Parameters:    get(ColParameters),
	}
}
