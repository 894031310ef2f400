package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	cfgpkg "sftcorpus/internal/config"
	"sftcorpus/internal/diag"
	"sftcorpus/internal/watch"
)

type buildFlags struct {
	config     string
	inputDir   string
	outputDir  string
	trainFile  string
	valFile    string
	testFile   string
	valRatio   float64
	testRatio  float64
	seed       int64
	references []string
	dryRun     bool
	workers    int
	manifest   string
	logLevel   string
	watch      bool
	debounce   time.Duration
	status     bool
}

func newBuildCmd(stderr io.Writer) *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Collect, deduplicate, split and write train/val/test JSONL files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd.Context(), cmd.Flags(), f, stderr)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "配置文件（.yaml/.yml/.json）；缺省依次查找 $SFTCORPUS_CONFIG_FILE 与 ./sftcorpus.{yaml,yml,json}")
	fs.StringVar(&f.inputDir, "input-dir", "", "snippet 输入根目录")
	fs.StringVar(&f.outputDir, "output-dir", "", "输出目录")
	fs.StringVar(&f.trainFile, "train-file", "", "训练集文件名")
	fs.StringVar(&f.valFile, "val-file", "", "验证集文件名")
	fs.StringVar(&f.testFile, "test-file", "", "测试集文件名")
	fs.Float64Var(&f.valRatio, "val-ratio", 0, "验证集比例（默认 0.1）")
	fs.Float64Var(&f.testRatio, "test-ratio", 0, "测试集比例（默认 0.1）")
	fs.Int64Var(&f.seed, "seed", 0, "划分种子（默认 2025）")
	fs.StringArrayVar(&f.references, "reference", nil, "参考表 CSV/TSV（可重复，按给定顺序加载）")
	fs.BoolVar(&f.dryRun, "dry-run", false, "只统计不写文件")
	fs.IntVar(&f.workers, "workers", 0, "文件读取并发度（默认 4）")
	fs.StringVar(&f.manifest, "manifest", "", "划分记录文件（bbolt）；为空不记录")
	fs.StringVar(&f.logLevel, "log-level", "", "日志级别 debug|info|warn|error")
	fs.BoolVar(&f.watch, "watch", false, "首次构建后监听输入变化并重建")
	fs.DurationVar(&f.debounce, "debounce", watch.DefaultDebounce, "监听事件合并窗口")
	fs.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 分行输出")
	return cmd
}

// overlay 只取显式给出的旗标，保证 CLI 的零值（如 --val-ratio 0）也能覆盖。
func (f *buildFlags) overlay(fs *pflag.FlagSet) cfgpkg.Config {
	var c cfgpkg.Config
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("input-dir", func() { c.InputDir = f.inputDir })
	set("output-dir", func() { c.OutputDir = f.outputDir })
	set("train-file", func() { c.Files.Train = f.trainFile })
	set("val-file", func() { c.Files.Val = f.valFile })
	set("test-file", func() { c.Files.Test = f.testFile })
	set("val-ratio", func() { c.ValRatio = &f.valRatio })
	set("test-ratio", func() { c.TestRatio = &f.testRatio })
	set("seed", func() { c.Seed = &f.seed })
	set("reference", func() { c.References = f.references })
	set("dry-run", func() { c.DryRun = &f.dryRun })
	set("workers", func() {
		c.Workers = f.workers
		if f.workers == 0 {
			// 显式 0 交给 Validate 报错，而不是被 Merge 当作未设置
			c.Workers = -1
		}
	})
	set("manifest", func() { c.Manifest = f.manifest })
	set("log-level", func() { c.Logging.Level = f.logLevel })
	return c
}

func runBuild(ctx context.Context, fs *pflag.FlagSet, f *buildFlags, stderr io.Writer) error {
	start := time.Now()
	cfg, err := loadConfig(f.config)
	if err != nil {
		return fail(stderr, exitConfig, "配置解析失败", err)
	}
	cfg = cfgpkg.Merge(cfg, f.overlay(fs))
	if err := cfgpkg.Validate(cfg); err != nil {
		dumpConfig(stderr, cfg)
		return fail(stderr, exitConfig, "配置校验失败", err)
	}

	corrID := uuid.NewString()
	logger := diag.Open(corrID, cfg.Logging.Level, cfg.Logging.Dir, cfg.Logging.MaxBytes)
	defer logger.Close()

	if !cfg.EffectiveDryRun() {
		if err := preflightCheckOutputDir(cfg.OutputDir); err != nil {
			logger.Error("pipeline", diag.CodeConfig, "first error", err)
			return fail(stderr, exitConfig, "输出目录不可写或无法创建", err)
		}
	}
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		logger.Error("pipeline", diag.Classify(err), "first error", err)
		return fail(stderr, exitConfig, "装配失败", err)
	}
	logger.Debug("config", "effective",
		zap.String("input_dir", cfg.InputDir),
		zap.String("output_dir", cfg.OutputDir),
		zap.Strings("references", cfg.References),
		zap.Float64("val_ratio", set.Ratios.Val),
		zap.Float64("test_ratio", set.Ratios.Test),
		zap.Int64("seed", set.Seed),
		zap.Int("workers", set.Workers),
		zap.Bool("dry_run", set.DryRun),
		zap.String("manifest", set.Manifest),
		zap.String("reader", cfg.Components.Reader),
		zap.String("writer", cfg.Components.Writer),
		zap.String("table", cfg.Components.Table))

	term := diag.NewTerminal(stderr, f.status)
	once := func(ctx context.Context, runID string) error {
		s := set
		s.RunID = runID
		t0 := time.Now()
		if _, err := pipelineBuild(ctx, comp, s, logger, term); err != nil {
			logger.Error("pipeline", diag.Classify(err), "first error", err, zap.String("run_id", runID))
			term.RunFinish(false, time.Since(t0))
			return err
		}
		return nil
	}

	err = once(ctx, corrID)
	if !f.watch {
		if err != nil {
			return failRun(stderr, "构建失败", err)
		}
		logger.Info("pipeline", "done", zap.Int64("dur_ms", time.Since(start).Milliseconds()))
		return nil
	}
	if err != nil {
		if ctx.Err() != nil || cfgIsFatal(err) {
			return failRun(stderr, "构建失败", err)
		}
		fprintf(stderr, "构建失败（继续监听）: %v\n", err)
	}
	return watchAndRebuild(ctx, cfg, f.debounce, corrID, once, logger, stderr)
}

// cfgIsFatal: 监听模式下输入根本身不可用时无从监听，直接退出。
func cfgIsFatal(err error) bool {
	return diag.Classify(err) == diag.CodeConfig
}

func watchAndRebuild(ctx context.Context, cfg cfgpkg.Config, debounce time.Duration, corrID string,
	once func(context.Context, string) error, logger *diag.Logger, stderr io.Writer) error {
	w, err := watch.New(watch.Options{
		Debounce:        debounce,
		ExcludeDirNames: readerExcludes(cfg.Options.Reader),
		OnError: func(err error) {
			if ctx.Err() == nil {
				logger.Error("watch", diag.Classify(err), "rebuild failed", err)
			}
		},
	})
	if err != nil {
		return fail(stderr, exitRuntime, "监听初始化失败", err)
	}
	defer w.Close()
	if err := w.AddTree(cfg.InputDir); err != nil {
		return fail(stderr, exitConfig, "监听输入目录失败", err)
	}
	for _, ref := range cfg.References {
		if err := w.AddFile(ref); err != nil {
			return fail(stderr, exitConfig, "监听参考表失败", err)
		}
	}
	logger.Info("watch", "watching", zap.String("root", cfg.InputDir),
		zap.Strings("references", cfg.References), zap.Duration("debounce", debounce))

	round := 0
	err = w.Run(ctx, func(ctx context.Context, changed []string) error {
		round++
		logger.Info("watch", "rebuild", zap.Int("round", round), zap.Strings("changed", changed))
		return once(ctx, fmt.Sprintf("%s-%d", corrID, round))
	})
	if err != nil {
		return fail(stderr, exitRuntime, "监听失败", err)
	}
	logger.Info("watch", "stopped", zap.Int("rounds", round))
	return nil
}

// readerExcludes 取 reader 选项中的排除目录名，监听时同样忽略。
func readerExcludes(raw json.RawMessage) []string {
	var o struct {
		ExcludeDirNames []string `json:"exclude_dir_names"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &o)
	}
	return o.ExcludeDirNames
}

// dumpConfig 打印有效配置，便于诊断。
func dumpConfig(w io.Writer, c cfgpkg.Config) {
	b, err := cfgpkg.MarshalYAML(c)
	if err != nil {
		return
	}
	fprintf(w, "有效配置:\n%s", b)
}
