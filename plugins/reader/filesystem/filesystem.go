package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sftcorpus/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// ExcludeDirNames: 在扫描目录时跳过这些目录名（基名匹配，大小写不敏感）。
	// 例如 [".git","node_modules"]。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// AllowExts: 允许收集的扩展名（含点，大小写不敏感，如 [".ahk"]）。为空表示不限制。
	AllowExts []string `json:"allow_exts"`
}

// FileSystem 实现基于本地目录树的 Reader。
type FileSystem struct {
	bufSize int
	// 以小写形式保存，比较时按小写基名匹配。
	excludeDir map[string]struct{}
	allow      map[string]struct{}
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	b := defaultBuf
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	ex := make(map[string]struct{})
	var allow map[string]struct{}
	if opts != nil {
		for _, name := range opts.ExcludeDirNames {
			if name = strings.Trim(name, `/\ `); name != "" {
				ex[strings.ToLower(name)] = struct{}{}
			}
		}
		for _, e := range opts.AllowExts {
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			if allow == nil {
				allow = make(map[string]struct{}, len(opts.AllowExts))
			}
			allow[strings.ToLower(e)] = struct{}{}
		}
	}
	return &FileSystem{bufSize: b, excludeDir: ex, allow: allow}
}

var _ contract.Reader = (*FileSystem)(nil)

// Scan 遍历 root，返回按根相对路径字节序排列的候选文件。
// 规则：
// - 常规文件与指向常规文件的符号链接入选；目录符号链接不跟随；
// - 失效符号链接与无法列出的子目录作为带 Err 的条目返回；
// - 设备、管道等非常规文件忽略。
func (r *FileSystem) Scan(ctx context.Context, root string) ([]contract.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrInputRoot, err)
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrInputRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", contract.ErrInputRoot, root)
	}

	var out []contract.Entry
	walkErr := filepath.WalkDir(base, func(p string, d fs.DirEntry, werr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if werr != nil {
			if p == base {
				return fmt.Errorf("%w: %v", contract.ErrInputRoot, werr)
			}
			out = append(out, contract.Entry{ID: relID(base, p), Err: werr})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p == base {
				return nil
			}
			if _, skip := r.excludeDir[strings.ToLower(d.Name())]; skip {
				return fs.SkipDir
			}
			return nil
		}
		if !r.allowed(d.Name()) {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			t, err := os.Stat(p)
			if err != nil {
				out = append(out, contract.Entry{ID: relID(base, p), Err: err})
				return nil
			}
			if !t.Mode().IsRegular() {
				// 目标不是常规文件（如目录等）则忽略
				return nil
			}
			out = append(out, contract.Entry{ID: relID(base, p)})
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		out = append(out, contract.Entry{ID: relID(base, p)})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	// WalkDir 按目录逐层字典序，"a/x" 会先于 "a.ahk"；此处统一为全路径字节序。
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Open 打开根下的单个文件，返回带缓冲的 ReadCloser。
func (r *FileSystem) Open(ctx context.Context, root string, id contract.FileID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(string(id))))
	if err != nil {
		return nil, err
	}
	return newBufferedCloser(f, r.bufSize), nil
}

func (r *FileSystem) allowed(name string) bool {
	if r.allow == nil {
		return true
	}
	_, ok := r.allow[strings.ToLower(filepath.Ext(name))]
	return ok
}

func relID(base, p string) contract.FileID {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		rel = p
	}
	return contract.NormalizeFileID(rel)
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
