package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sftcorpus/internal/collect"
	"sftcorpus/internal/dataset"
	"sftcorpus/internal/dedupe"
	"sftcorpus/internal/diag"
	"sftcorpus/internal/manifest"
	"sftcorpus/internal/prompt"
	"sftcorpus/internal/reference"
	"sftcorpus/internal/split"
	"sftcorpus/pkg/contract"
)

// - 单点并发：文件读取在 collect 内按 Workers 并发，其余阶段在调用方 goroutine 顺序执行；
// - 顺序门闩：采集结果按扫描顺序交付，去重与划分只看到确定的顺序；
// - 首错取消：配置错误在任何写出之前返回；写出阶段任一分区失败即取消其余分区。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader contract.Reader
	Writer contract.Writer
	// Table: 参考表默认解析器；TableByExt 按扩展名（小写，含点）覆盖。
	Table      contract.TableReader
	TableByExt map[string]contract.TableReader
	Chat       contract.ChatTemplate
}

// Files 三个分区的工件名（相对输出根）。
type Files struct {
	Train string
	Val   string
	Test  string
}

// Get 返回分区 p 的工件名。
func (f Files) Get(p contract.Partition) string {
	switch p {
	case contract.PartitionTrain:
		return f.Train
	case contract.PartitionVal:
		return f.Val
	case contract.PartitionTest:
		return f.Test
	}
	return ""
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	RunID      string
	InputDir   string
	References []string
	Files      Files
	Ratios     split.Ratios
	Seed       int64
	Workers    int
	Subject    string
	DryRun     bool
	// Manifest: bbolt 文件路径；为空表示不记录划分。
	Manifest      string
	BytesPerToken int
}

// Build 执行构建：Collector → Loader → Deduplicator → Splitter → Writer ×3（→ Manifest）。
// 约束：
// - 比例非法、输入根不可读、参考表不可读均在写出前返回（配置错误）；
// - 记录级问题只计数与记录日志，不中断；
// - 相同输入与种子得到逐字节相同的三个工件，与 Workers 无关。
func Build(ctx context.Context, comp Components, set Settings, logger *diag.Logger, term *diag.Terminal) (Summary, error) {
	sum := newSummary(set)
	start := time.Now()
	if err := sanity(comp, set); err != nil {
		return sum, fmt.Errorf("sanity: %w", err)
	}
	if err := set.Ratios.Validate(); err != nil {
		logger.Error("split", diag.CodeConfig, "ratio invalid", err)
		return sum, err
	}
	term.RunStart("build", set.Workers, set.DryRun)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 采集 + 去重（单 goroutine 持有 seen 集合）
	dd := dedupe.New()
	skips := diag.NewCounters()
	var uniq []contract.Record
	admit := func(stage string, raw *int) func(contract.Result) error {
		return func(r contract.Result) error {
			if r.Skip != nil {
				skips.Inc(string(r.Skip.Reason))
				logger.Skip(stage, *r.Skip)
				return nil
			}
			*raw++
			if rec, ok := dd.Admit(*r.Record); ok {
				uniq = append(uniq, rec)
			} else {
				logger.Debug("dedupe", "duplicate dropped",
					zap.String("source", rec.Metadata.SourcePath), zap.String("content_hash", rec.Metadata.ContentHash))
			}
			return nil
		}
	}

	ct := logger.Start("collect", "scan", zap.String("root", set.InputDir), zap.Int("workers", set.Workers))
	col := collect.New(comp.Reader, collect.Options{
		Workers:    set.Workers,
		Subject:    set.Subject,
		OnProgress: func(done, total int) { term.Progress("collect", done, total) },
	})
	if err := col.Collect(ctx, set.InputDir, admit("collect", &sum.Snippets)); err != nil {
		logger.Error("collect", diag.Classify(err), "collect failed", err)
		return sum, fmt.Errorf("collect: %w", err)
	}
	ct.Finish("collected", int64(sum.Snippets))

	loader := reference.New(comp.Table, reference.Options{Subject: set.Subject, ByExt: comp.TableByExt})
	for _, ref := range set.References {
		rt := logger.Start("reference", "load", zap.String("table", ref))
		before := sum.References
		if err := loader.Load(ctx, ref, admit("reference", &sum.References)); err != nil {
			logger.Error("reference", diag.Classify(err), "load failed", err, zap.String("table", ref))
			return sum, fmt.Errorf("reference: %w", err)
		}
		rt.Finish("loaded", int64(sum.References-before))
	}
	sum.Duplicates = dd.Removed()
	sum.Unique = len(uniq)
	sum.Skipped = skips.Snapshot()
	term.StageFinish("dedupe", fmt.Sprintf("raw %d | unique %d | duplicates %d | skipped %d",
		sum.Snippets+sum.References, sum.Unique, sum.Duplicates, skips.Total()))

	// 划分
	parts, err := split.Split(uniq, set.Ratios, set.Seed)
	if err != nil {
		logger.Error("split", diag.Classify(err), "split failed", err)
		return sum, err
	}
	logger.Info("split", "assigned",
		zap.Int("train", len(parts.Train)), zap.Int("val", len(parts.Val)), zap.Int("test", len(parts.Test)),
		zap.Int64("seed", set.Seed))

	// manifest：dry-run 只读
	store, err := openManifest(set)
	if err != nil {
		logger.Error("manifest", diag.Classify(err), "open failed", err)
		return sum, err
	}
	defer store.Close()
	cur := assignments(parts)
	if prev, prevAssign, err := store.Previous(); err != nil {
		logger.Error("manifest", diag.Classify(err), "read failed", err)
		return sum, fmt.Errorf("manifest: %w", err)
	} else if prev != nil {
		d := manifest.Compare(prevAssign, cur)
		sum.Drift = &d
		sum.PreviousRun = prev.ID
	}

	// 写出：三个分区互不依赖，并行；任一失败取消其余
	if err := writePartitions(ctx, comp.Writer, set, parts, &sum, logger, term); err != nil {
		return sum, err
	}

	if !set.DryRun && store != nil {
		run := manifest.Run{
			ID:        set.RunID,
			Seed:      set.Seed,
			ValRatio:  set.Ratios.Val,
			TestRatio: set.Ratios.Test,
			Train:     len(parts.Train),
			Val:       len(parts.Val),
			Test:      len(parts.Test),
			CreatedAt: time.Now().UTC(),
		}
		if err := store.Save(run, cur); err != nil {
			logger.Error("manifest", diag.Classify(err), "save failed", err)
			return sum, fmt.Errorf("manifest: %w", err)
		}
	}

	sum.Duration = time.Since(start)
	sum.Log(logger)
	term.RunFinish(true, sum.Duration)
	return sum, nil
}

func writePartitions(ctx context.Context, w contract.Writer, set Settings, parts split.Partitions, sum *Summary, logger *diag.Logger, term *diag.Terminal) error {
	dw := dataset.New(w, prompt.MakeEstimator(set.BytesPerToken))
	ps := contract.Partitions()
	stats := make([]dataset.Stats, len(ps))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range ps {
		g.Go(func() error {
			id := contract.ArtifactID(set.Files.Get(p))
			wt := logger.Start("writer", "write", zap.String("artifact", string(id)), zap.Bool("dry_run", set.DryRun))
			st, err := dw.Write(gctx, id, parts.Get(p))
			if err != nil {
				logger.Error("writer", diag.Classify(err), "write failed", err, zap.String("artifact", string(id)))
				return err
			}
			wt.Finish("written", int64(st.Lines), zap.Int64("bytes", st.Bytes))
			stats[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, p := range ps {
		sum.Partitions[p] = stats[i]
		term.Artifact(set.Files.Get(p), stats[i].Lines, stats[i].Bytes)
	}
	return nil
}

func openManifest(set Settings) (*manifest.Store, error) {
	switch {
	case set.Manifest == "":
		return nil, nil
	case set.DryRun:
		return manifest.OpenReadOnly(set.Manifest)
	default:
		return manifest.Open(set.Manifest)
	}
}

func assignments(parts split.Partitions) manifest.Assignments {
	out := make(manifest.Assignments, len(parts.Train)+len(parts.Val)+len(parts.Test))
	for _, p := range contract.Partitions() {
		for _, r := range parts.Get(p) {
			out[r.Metadata.ContentHash] = p
		}
	}
	return out
}

// sanity: 组件齐全与基本设置校验（配置层已做完整校验，此处兜底）。
func sanity(comp Components, set Settings) error {
	switch {
	case comp.Reader == nil:
		return errors.New("reader is nil")
	case comp.Writer == nil:
		return errors.New("writer is nil")
	case len(set.References) > 0 && comp.Table == nil:
		return errors.New("table reader is nil")
	case set.Workers < 1:
		return fmt.Errorf("%w: workers must be >= 1", contract.ErrConfig)
	}
	for _, p := range contract.Partitions() {
		if set.Files.Get(p) == "" {
			return fmt.Errorf("%w: %s file name empty", contract.ErrConfig, p)
		}
	}
	return nil
}
