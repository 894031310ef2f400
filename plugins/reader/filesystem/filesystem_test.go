package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftcorpus/pkg/contract"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func ids(entries []contract.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, string(e.ID))
	}
	return out
}

// TestScanLexicographicOrder 全路径字节序，与目录层级无关
func TestScanLexicographicOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.ahk", "b")
	writeFile(t, root, "a/x.ahk", "ax")
	writeFile(t, root, "a.ahk", "a")
	writeFile(t, root, "a/b/c.ahk", "abc")
	writeFile(t, root, "A.ahk", "A")

	r := New(nil)
	entries, err := r.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.ahk", "a.ahk", "a/b/c.ahk", "a/x.ahk", "b.ahk"}, ids(entries))
	for _, e := range entries {
		assert.NoError(t, e.Err)
	}
}

// TestScanExcludeDir 跳过目录
func TestScanExcludeDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.ahk", "k")
	writeFile(t, root, "skip/bad.ahk", "b")
	writeFile(t, root, "deep/.GIT/obj.ahk", "g")

	r := New(&Options{ExcludeDirNames: []string{"skip", ".git/"}})
	entries, err := r.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.ahk"}, ids(entries))
}

// TestScanAllowExts 扩展名过滤（大小写不敏感，可省略点）
func TestScanAllowExts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ahk", "a")
	writeFile(t, root, "b.AHK", "b")
	writeFile(t, root, "c.txt", "c")
	writeFile(t, root, "README", "r")

	r := New(&Options{AllowExts: []string{"ahk"}})
	entries, err := r.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ahk", "b.AHK"}, ids(entries))

	all, err := New(&Options{}).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

// TestScanRootMissing 根不存在为输入根错误
func TestScanRootMissing(t *testing.T) {
	r := New(nil)
	_, err := r.Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.Is(err, contract.ErrInputRoot), "got %v", err)
}

// TestScanRootIsFile 根为文件同样报错
func TestScanRootIsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "f.ahk", "x")
	_, err := New(nil).Scan(context.Background(), filepath.Join(root, "f.ahk"))
	assert.True(t, errors.Is(err, contract.ErrInputRoot), "got %v", err)
}

// TestScanEmptyRoot 空目录返回空列表
func TestScanEmptyRoot(t *testing.T) {
	entries, err := New(nil).Scan(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestScanCtxCancel 上下文取消
func TestScanCtxCancel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ahk", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Scan(ctx, root)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

// TestOpen 读取单文件内容
func TestOpen(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sub/a.ahk", "hello")
	r := New(&Options{BufSize: 16})
	rc, err := r.Open(context.Background(), root, "sub/a.ahk")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	_, err = r.Open(context.Background(), root, "missing.ahk")
	assert.Error(t, err)
}

// TestNewBufferedCloserDefault bufSize<=0 时使用默认
func TestNewBufferedCloserDefault(t *testing.T) {
	bc := newBufferedCloser(io.NopCloser(strings.NewReader("")), 0)
	require.NotNil(t, bc.Reader)
	assert.NoError(t, bc.Close())
}
