package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sftcorpus/internal/pipeline"
	"sftcorpus/pkg/contract"
)

var (
	pipelineBuild  = pipeline.Build
	pipelineFormat = pipeline.Format
)

// 退出码：0 成功；1 运行期失败；2 用法错误；3 配置错误。
const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
	exitConfig  = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fprintf(stderr, "用法错误: %v\n", err)
	return exitUsage
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "sftcorpus",
		Short:         "Build deduplicated train/val/test JSONL datasets from example snippets and reference tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newBuildCmd(stderr), newFormatCmd(stderr), newInitCmd(stderr))
	return root
}

// exitError 携带进程退出码；信息已由命令自行输出。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// fail 输出 "<what>: <err>" 并返回指定退出码。
func fail(w io.Writer, code int, what string, err error) error {
	fprintf(w, "%s: %v\n", what, err)
	return &exitError{code: code, err: err}
}

// failRun 按错误分类选择退出码：配置类为 3，其余为 1；取消不打印。
func failRun(w io.Writer, what string, err error) error {
	code := exitRuntime
	if contract.IsConfigError(err) {
		code = exitConfig
	}
	if !errors.Is(err, context.Canceled) {
		fprintf(w, "%s: %v\n", what, err)
	}
	return &exitError{code: code, err: err}
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
