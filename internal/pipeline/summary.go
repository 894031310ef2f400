package pipeline

import (
	"time"

	"go.uber.org/zap"

	"sftcorpus/internal/dataset"
	"sftcorpus/internal/diag"
	"sftcorpus/internal/manifest"
	"sftcorpus/pkg/contract"
)

// Summary 一次构建的结果汇总。
type Summary struct {
	RunID      string
	DryRun     bool
	Snippets   int
	References int
	Duplicates int
	Unique     int
	Skipped    []diag.Count
	Partitions map[contract.Partition]dataset.Stats
	// Drift: 相对上次记录的划分漂移；无 manifest 或无历史时为 nil。
	Drift       *manifest.Drift
	PreviousRun string
	Duration    time.Duration
}

func newSummary(set Settings) Summary {
	return Summary{
		RunID:      set.RunID,
		DryRun:     set.DryRun,
		Partitions: make(map[contract.Partition]dataset.Stats, 3),
	}
}

// SkippedTotal 返回全部跳过数。
func (s Summary) SkippedTotal() int64 {
	var n int64
	for _, c := range s.Skipped {
		n += c.N
	}
	return n
}

// Total 返回三个分区的合计。
func (s Summary) Total() dataset.Stats {
	var t dataset.Stats
	for _, p := range contract.Partitions() {
		t.Add(s.Partitions[p])
	}
	return t
}

// Log 以一条 info 事件输出汇总。
func (s Summary) Log(logger *diag.Logger) {
	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.Bool("dry_run", s.DryRun),
		zap.Int("snippets", s.Snippets),
		zap.Int("references", s.References),
		zap.Int("duplicates", s.Duplicates),
		zap.Int("unique", s.Unique),
		diag.CountsField("skipped", s.Skipped),
		zap.Int("train", s.Partitions[contract.PartitionTrain].Lines),
		zap.Int("val", s.Partitions[contract.PartitionVal].Lines),
		zap.Int("test", s.Partitions[contract.PartitionTest].Lines),
		zap.Int("tokens", s.Total().Tokens),
		zap.Int64("dur_ms", s.Duration.Milliseconds()),
	}
	if s.Drift != nil {
		fields = append(fields,
			zap.String("previous_run", s.PreviousRun),
			zap.Int("drift_moved", s.Drift.Moved),
			zap.Int("drift_leaked", s.Drift.Leaked),
			zap.Int("drift_added", s.Drift.Added),
			zap.Int("drift_removed", s.Drift.Removed))
	}
	logger.Info("pipeline", "summary", fields...)
}
