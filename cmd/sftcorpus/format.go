package main

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cfgpkg "sftcorpus/internal/config"
	"sftcorpus/internal/diag"
	"sftcorpus/pkg/contract"
)

type formatFlags struct {
	config   string
	in       string
	out      string
	system   string
	dryRun   bool
	logLevel string
	status   bool
}

func newFormatCmd(stderr io.Writer) *cobra.Command {
	f := &formatFlags{}
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Convert a prompt/response JSONL file into system/user/assistant conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFormat(cmd.Context(), cmd.Flags(), f, stderr)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "配置文件（.yaml/.yml/.json）")
	fs.StringVar(&f.in, "in", "", "输入 JSONL（build 的分区文件）")
	fs.StringVar(&f.out, "out", "", "输出 JSONL")
	fs.StringVar(&f.system, "system", "", "system 消息（覆盖模板）")
	fs.BoolVar(&f.dryRun, "dry-run", false, "只统计不写文件")
	fs.StringVar(&f.logLevel, "log-level", "", "日志级别 debug|info|warn|error")
	fs.BoolVar(&f.status, "status", true, "终端状态提示（stderr）")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runFormat(ctx context.Context, fs *pflag.FlagSet, f *formatFlags, stderr io.Writer) error {
	cfg, err := loadConfig(f.config)
	if err != nil {
		return fail(stderr, exitConfig, "配置解析失败", err)
	}
	var over cfgpkg.Config
	if fs.Changed("dry-run") {
		over.DryRun = &f.dryRun
	}
	if fs.Changed("log-level") {
		over.Logging.Level = f.logLevel
	}
	cfg = cfgpkg.Merge(cfg, over)

	out := filepath.Clean(strings.TrimSpace(f.out))
	in := strings.TrimSpace(f.in)
	if in == "" || out == "." {
		return fail(stderr, exitUsage, "用法错误", errEmptyPath)
	}
	root, id := filepath.Dir(out), filepath.Base(out)
	if !cfg.EffectiveDryRun() {
		if err := preflightCheckOutputDir(root); err != nil {
			return fail(stderr, exitConfig, "输出目录不可写或无法创建", err)
		}
	}
	w, chat, err := cfgpkg.AssembleFormat(cfg, root, f.system)
	if err != nil {
		return fail(stderr, exitConfig, "装配失败", err)
	}

	logger := diag.Open(uuid.NewString(), cfg.Logging.Level, cfg.Logging.Dir, cfg.Logging.MaxBytes)
	defer logger.Close()
	term := diag.NewTerminal(stderr, f.status)
	if _, err := pipelineFormat(ctx, w, chat, in, contract.ArtifactID(id), logger, term); err != nil {
		return failRun(stderr, "转换失败", err)
	}
	return nil
}
