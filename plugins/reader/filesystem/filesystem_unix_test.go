//go:build !windows

package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScanNonRegular 非常规文件被忽略
func TestScanNonRegular(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, syscall.Mkfifo(filepath.Join(root, "fifo"), 0o644))
	entries, err := New(nil).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestScanSymlinks 文件符号链接入选，目录符号链接忽略，失效链接带错误返回
func TestScanSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sub/ok.ahk", "o")
	require.NoError(t, os.Symlink(filepath.Join(root, "sub"), filepath.Join(root, "sub_link")))
	require.NoError(t, os.Symlink(filepath.Join(root, "sub", "ok.ahk"), filepath.Join(root, "l.ahk")))
	require.NoError(t, os.Symlink(filepath.Join(root, "no"), filepath.Join(root, "dangling.ahk")))

	entries, err := New(nil).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"dangling.ahk", "l.ahk", "sub/ok.ahk"}, ids(entries))
	assert.Error(t, entries[0].Err)
	assert.NoError(t, entries[1].Err)
}

// TestScanRootSymlink 根为目录符号链接时按目标遍历
func TestScanRootSymlink(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	writeFile(t, real, "a.ahk", "x")
	link := filepath.Join(dir, "ln")
	require.NoError(t, os.Symlink(real, link))

	r := New(nil)
	entries, err := r.Scan(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ahk"}, ids(entries))
	rc, err := r.Open(context.Background(), link, entries[0].ID)
	require.NoError(t, err)
	rc.Close()
}

// TestScanUnreadableDir 无法列出的子目录作为带错误的条目返回
func TestScanUnreadableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 用户不受目录权限限制")
	}
	root := t.TempDir()
	writeFile(t, root, "locked/a.ahk", "x")
	writeFile(t, root, "z.ahk", "z")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	entries, err := New(nil).Scan(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, []string{"locked", "z.ahk"}, ids(entries))
	assert.Error(t, entries[0].Err)
}
