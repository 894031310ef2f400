package reference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftcorpus/internal/prompt"
	"sftcorpus/plugins/table/delimited"
	"sftcorpus/pkg/contract"
)

func newLoader(t *testing.T) *Loader {
	t.Helper()
	csvT, err := delimited.New(nil, ',')
	require.NoError(t, err)
	tsvT, err := delimited.New(nil, '\t')
	require.NoError(t, err)
	return New(csvT, Options{Subject: prompt.DefaultSubject, ByExt: map[string]contract.TableReader{".TSV": tsvT}})
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func loadAll(t *testing.T, l *Loader, path string) []contract.Result {
	t.Helper()
	var out []contract.Result
	require.NoError(t, l.Load(context.Background(), path, func(r contract.Result) error {
		out = append(out, r)
		return nil
	}))
	return out
}

// TestLoadRecords 正常行：prompt/response/元信息与字段清洗。
func TestLoadRecords(t *testing.T) {
	p := writeFile(t, "elements.csv", "Name,Description,ElementType,SourceFile,Path,Type,ReturnType,Symbol,Parameters\n"+
		" MsgBox , Shows a message. ,Function,lib/msgbox.md,Functions/GUI,Func,String,,Text\n"+
		"A_Index,Loop counter.,,,,,,,\n")
	res := loadAll(t, newLoader(t), p)
	require.Len(t, res, 2)

	r := res[0].Record
	require.NotNil(t, r)
	assert.Equal(t, "elements.csv#MsgBox", r.Metadata.SourcePath)
	assert.Equal(t, "Function", r.Metadata.Category)
	assert.Equal(t, contract.RecordReference, r.Metadata.RecordType)
	assert.Equal(t, "MsgBox", r.Metadata.ElementName)
	assert.Equal(t, "elements.csv", r.Metadata.SourceTable)
	assert.Equal(t, "lib/msgbox.md", r.Metadata.SourceFile)
	assert.Equal(t, "Functions/GUI", r.Metadata.CategoryPath)
	assert.Nil(t, r.Metadata.LineCount)
	assert.Equal(t, "Shows a message.\nSignature Type: Func\nReturn Type: String\nParameters: Text\n", r.Response)
	assert.Equal(t, "You are maintaining a knowledge base of AutoHotkey reference entries.\n"+
		"Element Type: Function\n"+
		"Element Name: MsgBox\n"+
		"Source File: lib/msgbox.md\n"+
		"Category Path: Functions/GUI\n"+
		"Provide the official description and any pertinent usage details.", r.Prompt)

	r = res[1].Record
	require.NotNil(t, r)
	assert.Equal(t, UnknownElementType, r.Metadata.Category)
	assert.Equal(t, "Loop counter.\n", r.Response)
}

// TestLoadSchemaMissing 表头缺少 Name：单个 schema Skip，无记录。
func TestLoadSchemaMissing(t *testing.T) {
	p := writeFile(t, "bad.csv", "Title,Description\nx,y\n")
	res := loadAll(t, newLoader(t), p)
	require.Len(t, res, 1)
	require.NotNil(t, res[0].Skip)
	assert.Equal(t, contract.SkipSchema, res[0].Skip.Reason)
	assert.Equal(t, "bad.csv", res[0].Skip.Source)
	assert.ErrorIs(t, *res[0].Skip, contract.ErrSchema)
}

// TestLoadRowSkips 畸形行与空字段逐行跳过，后续行继续。
func TestLoadRowSkips(t *testing.T) {
	p := writeFile(t, "e.csv", "Name,Description\n"+
		"a,one\n"+
		"b,two,extra\n"+
		",three\n"+
		"c,   \n"+
		"d,four\n")
	res := loadAll(t, newLoader(t), p)
	require.Len(t, res, 5)
	assert.NotNil(t, res[0].Record)
	require.NotNil(t, res[1].Skip)
	assert.Equal(t, contract.SkipMalformedRow, res[1].Skip.Reason)
	assert.Equal(t, "e.csv:3", res[1].Skip.Source)
	require.NotNil(t, res[2].Skip)
	assert.Equal(t, contract.SkipEmptyField, res[2].Skip.Reason)
	require.NotNil(t, res[3].Skip)
	assert.Equal(t, contract.SkipEmptyField, res[3].Skip.Reason)
	require.NotNil(t, res[4].Record)
	assert.Equal(t, "e.csv#d", res[4].Record.Metadata.SourcePath)
}

// TestLoadTSVByExt 扩展名大小写不敏感地选择 TSV 解析器。
func TestLoadTSVByExt(t *testing.T) {
	p := writeFile(t, "vars.tsv", "Name\tDescription\nA_Now\tCurrent time, local.\n")
	res := loadAll(t, newLoader(t), p)
	require.Len(t, res, 1)
	require.NotNil(t, res[0].Record)
	assert.Equal(t, "Current time, local.\n", res[0].Record.Response)
}

// TestLoadBOM 带 BOM 的表头仍可识别 Name 列。
func TestLoadBOM(t *testing.T) {
	p := writeFile(t, "bom.csv", "\ufeffName,Description\nx,y\n")
	res := loadAll(t, newLoader(t), p)
	require.Len(t, res, 1)
	assert.NotNil(t, res[0].Record)
}

// TestLoadEmptyPath 未配置：无输出、无错误。
func TestLoadEmptyPath(t *testing.T) {
	assert.Empty(t, loadAll(t, newLoader(t), ""))
}

// TestLoadUnreadable 文件不存在或为目录：ErrReference。
func TestLoadUnreadable(t *testing.T) {
	l := newLoader(t)
	noop := func(contract.Result) error { return nil }
	err := l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), noop)
	assert.ErrorIs(t, err, contract.ErrReference)
	assert.True(t, contract.IsConfigError(err))

	err = l.Load(context.Background(), t.TempDir(), noop)
	assert.ErrorIs(t, err, contract.ErrReference)
}

// TestLoadYieldError yield 错误原样返回。
func TestLoadYieldError(t *testing.T) {
	p := writeFile(t, "e.csv", "Name,Description\na,1\nb,2\n")
	stop := errors.New("stop")
	n := 0
	err := newLoader(t).Load(context.Background(), p, func(contract.Result) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

// TestLoadCanceled 已取消的 ctx 直接返回。
func TestLoadCanceled(t *testing.T) {
	p := writeFile(t, "e.csv", "Name,Description\na,1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newLoader(t).Load(ctx, p, func(contract.Result) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
