// Package watch 监听输入目录树与参考表，合并短时间内的变更后触发回调。
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 默认合并窗口。
const DefaultDebounce = 500 * time.Millisecond

// Options 监听配置。
type Options struct {
	// Debounce: 最后一次事件后等待的时长；<=0 时取 DefaultDebounce。
	Debounce time.Duration
	// ExcludeDirNames: 不监听的目录基名（大小写不敏感）。
	ExcludeDirNames []string
	// OnError: 监听错误与回调错误的出口；为空时丢弃。
	OnError func(error)
}

// Watcher 基于 fsnotify 的递归监听器。
type Watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
	exclude  map[string]struct{}
	onError  func(error)
	roots    []string
	files    map[string]struct{}
}

// New 创建监听器；使用完毕须调用 Close。
func New(opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	d := opts.Debounce
	if d <= 0 {
		d = DefaultDebounce
	}
	ex := make(map[string]struct{}, len(opts.ExcludeDirNames))
	for _, n := range opts.ExcludeDirNames {
		if n = strings.Trim(n, `/\ `); n != "" {
			ex[strings.ToLower(n)] = struct{}{}
		}
	}
	return &Watcher{fw: fw, debounce: d, exclude: ex, onError: opts.OnError, files: make(map[string]struct{})}, nil
}

// AddTree 递归监听 root 下的全部目录（排除目录除外）；运行期间新建的子目录会自动加入。
func (w *Watcher) AddTree(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if err := w.addDirs(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	return nil
}

// AddFile 监听单个文件（通过其父目录），仅该文件的事件视为变更。
func (w *Watcher) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.fw.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	w.files[abs] = struct{}{}
	return nil
}

// Close 释放底层监听资源。
func (w *Watcher) Close() error { return w.fw.Close() }

// Run 阻塞直到 ctx 取消：事件在 Debounce 窗口内合并，窗口结束后以排序去重的变更路径调用 fn。
// fn 返回的错误交给 OnError，不中断监听。ctx 取消时返回 nil。
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context, changed []string) error) error {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addDirs(ev.Name); err != nil {
						w.report(err)
					}
				}
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.report(err)
		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			if err := fn(ctx, changed); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.report(err)
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if _, ok := w.files[ev.Name]; ok {
		return true
	}
	for _, root := range w.roots {
		if ev.Name == root || strings.HasPrefix(ev.Name, root+string(filepath.Separator)) {
			return !w.excluded(filepath.Base(ev.Name))
		}
	}
	return false
}

func (w *Watcher) excluded(name string) bool {
	_, ok := w.exclude[strings.ToLower(name)]
	return ok
}

func (w *Watcher) addDirs(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			w.report(err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.excluded(d.Name()) {
			return fs.SkipDir
		}
		return w.fw.Add(p)
	})
}

func (w *Watcher) report(err error) {
	if w.onError != nil && err != nil {
		w.onError(err)
	}
}
